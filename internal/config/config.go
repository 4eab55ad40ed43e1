// Package config provides configuration management for the paddock game server.
package config

import (
	"fmt"
	"time"
)

// Storage drivers
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Race      RaceConfig      `mapstructure:"race" validate:"required"`
	Wagering  WageringConfig  `mapstructure:"wagering" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	API       APIConfig       `mapstructure:"api" validate:"required"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Events    EventsConfig    `mapstructure:"events"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Games     GamesConfig     `mapstructure:"games" validate:"required"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// StorageConfig selects the store backing races, wagers and game history
type StorageConfig struct {
	Driver                    string `mapstructure:"driver" validate:"required,storagedriver"`
	SQLitePath                string `mapstructure:"sqlite_path"`
	CompetitorCacheTTLSeconds int    `mapstructure:"competitor_cache_ttl_seconds" validate:"gte=0"`
}

// DatabaseConfig represents PostgreSQL connection configuration
type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"gte=0"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// RaceConfig tunes the simulator and the race loop
type RaceConfig struct {
	TrackLength    float64            `mapstructure:"track_length" validate:"gt=0"`
	StepDistance   float64            `mapstructure:"step_distance" validate:"gt=0"`
	TickIntervalMs int                `mapstructure:"tick_interval_ms" validate:"gte=0"`
	GracePeriod    float64            `mapstructure:"grace_period" validate:"gte=0"`
	FatigueFloor   float64            `mapstructure:"fatigue_floor" validate:"gt=0,lte=1"`
	StaminaPivot   float64            `mapstructure:"stamina_pivot" validate:"gt=0"`
	Jitter         float64            `mapstructure:"jitter" validate:"gte=0"`
	Seed           int64              `mapstructure:"seed"`
	Roster         []CompetitorConfig `mapstructure:"roster" validate:"dive"`
}

// CompetitorConfig seeds one competitor of the roster
type CompetitorConfig struct {
	Name    string  `mapstructure:"name" validate:"required"`
	Color   string  `mapstructure:"color" validate:"omitempty,hexcolor"`
	Speed   float64 `mapstructure:"speed" validate:"gte=0,lte=20"`
	Stamina float64 `mapstructure:"stamina" validate:"gte=0,lte=20"`
}

// WageringConfig represents odds and stake limits
type WageringConfig struct {
	HouseMargin float64 `mapstructure:"house_margin" validate:"gte=0,lt=1"`
	MinOdds     float64 `mapstructure:"min_odds" validate:"gt=0"`
	MaxOdds     float64 `mapstructure:"max_odds" validate:"gt=0"`
	DefaultOdds float64 `mapstructure:"default_odds" validate:"gt=0"`
	MaxStake    float64 `mapstructure:"max_stake" validate:"gte=0"`
}

// SchedulerConfig represents the race cadence
type SchedulerConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Schedule             string `mapstructure:"schedule"`
	BettingWindowSeconds int    `mapstructure:"betting_window_seconds" validate:"gte=0"`
}

// APIConfig represents the HTTP game API
type APIConfig struct {
	Address        string   `mapstructure:"address" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	FeedEnabled    bool     `mapstructure:"feed_enabled"`
	// AdminToken guards race creation, start and cancel; empty leaves them open
	AdminToken     string   `mapstructure:"admin_token"`
}

// MetricsConfig represents the operations listener serving health probes, metrics and the live feed
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	HealthPort int    `mapstructure:"health_port" validate:"omitempty,min=1,max=65535"`
}

// EventsConfig represents the outbound event sinks
type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
	Redis RedisConfig `mapstructure:"redis"`
}

// KafkaConfig represents the race event stream
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RedisConfig represents the odds board broadcast channel
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Channel  string `mapstructure:"channel"`
}

// WalletConfig represents the external wallet that receives payouts
type WalletConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	URL               string  `mapstructure:"url" validate:"omitempty,url"`
	APIKey            string  `mapstructure:"api_key"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"gte=0"`
	RetryAttempts     int     `mapstructure:"retry_attempts" validate:"gte=0"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
}

// GamesConfig represents the slot and dice games
type GamesConfig struct {
	StartingCredits int    `mapstructure:"starting_credits" validate:"gt=0"`
	MinBet          int    `mapstructure:"min_bet" validate:"gt=0"`
	MaxBet          int    `mapstructure:"max_bet" validate:"gt=0"`
	BetStep         int    `mapstructure:"bet_step" validate:"gt=0"`
	DicePayout      int    `mapstructure:"dice_payout" validate:"gt=0"`
	ServerSeed      string `mapstructure:"server_seed"`
}

// SecretsConfig points at an optional AWS Secrets Manager secret
type SecretsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Name    string `mapstructure:"name"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string. An explicit URL wins over the discrete fields.
func (c *Config) GetDatabaseDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		sslMode,
	)
}

// TickInterval is the race loop period. Zero means the race is stepped manually.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Race.TickIntervalMs) * time.Millisecond
}

// BettingWindow is how long a scheduled race stays pending before it is started
func (c *Config) BettingWindow() time.Duration {
	return time.Duration(c.Scheduler.BettingWindowSeconds) * time.Second
}

// CompetitorCacheTTL is how long the roster is cached in front of the store
func (c *Config) CompetitorCacheTTL() time.Duration {
	return time.Duration(c.Storage.CompetitorCacheTTLSeconds) * time.Second
}
