package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix         = "PADDOCK"
	defaultConfigPath = "config/config.yaml"
)

// ResolvePath picks the configuration file: the explicit flag, then PADDOCK_CONFIG_PATH, then the default
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return defaultConfigPath
}

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for every optional field.
// A missing file is not an error: defaults and environment variables are used instead.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "paddock")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("storage.sqlite_path", "paddock.db")
	v.SetDefault("storage.competitor_cache_ttl_seconds", 300)

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "paddock")
	v.SetDefault("database.user", "paddock")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("race.track_length", 80.0)
	v.SetDefault("race.step_distance", 0.1)
	v.SetDefault("race.tick_interval_ms", 16)
	v.SetDefault("race.grace_period", 5.0)
	v.SetDefault("race.fatigue_floor", 0.3)
	v.SetDefault("race.stamina_pivot", 12.0)
	v.SetDefault("race.jitter", 0.01)
	v.SetDefault("race.seed", 0)

	v.SetDefault("wagering.house_margin", 0.15)
	v.SetDefault("wagering.min_odds", 1.5)
	v.SetDefault("wagering.max_odds", 10.0)
	v.SetDefault("wagering.default_odds", 3.0)
	v.SetDefault("wagering.max_stake", 0)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.schedule", "@every 2m")
	v.SetDefault("scheduler.betting_window_seconds", 60)

	v.SetDefault("api.address", ":8080")
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("api.feed_enabled", true)
	v.SetDefault("api.admin_token", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.health_port", 8081)

	v.SetDefault("events.kafka.enabled", false)
	v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka.topic", "paddock.races")
	v.SetDefault("events.redis.enabled", false)
	v.SetDefault("events.redis.address", "localhost:6379")
	v.SetDefault("events.redis.password", "")
	v.SetDefault("events.redis.db", 0)
	v.SetDefault("events.redis.channel", "paddock:odds")

	v.SetDefault("wallet.enabled", false)
	v.SetDefault("wallet.url", "")
	v.SetDefault("wallet.api_key", "")
	v.SetDefault("wallet.timeout_seconds", 10)
	v.SetDefault("wallet.retry_attempts", 3)
	v.SetDefault("wallet.requests_per_second", 20)

	v.SetDefault("games.starting_credits", 1000)
	v.SetDefault("games.min_bet", 10)
	v.SetDefault("games.max_bet", 100)
	v.SetDefault("games.bet_step", 10)
	v.SetDefault("games.dice_payout", 5)
	v.SetDefault("games.server_seed", "")

	v.SetDefault("secrets.enabled", false)
	v.SetDefault("secrets.region", "us-east-1")
	v.SetDefault("secrets.name", "")
}
