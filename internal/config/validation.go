package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("storagedriver", validateStorageDriver)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateStorageDriver(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case StorageMemory, StorageSQLite, StoragePostgres:
		return true
	default:
		return false
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	switch cfg.Storage.Driver {
	case StoragePostgres:
		if cfg.Database.URL == "" && (cfg.Database.Host == "" || cfg.Database.Name == "" || cfg.Database.User == "") {
			return fmt.Errorf("postgres storage requires database.url or database host, name and user")
		}
	case StorageSQLite:
		if cfg.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite storage requires storage.sqlite_path")
		}
	}

	if cfg.Wagering.MaxOdds < cfg.Wagering.MinOdds {
		return fmt.Errorf("wagering.max_odds cannot be below wagering.min_odds")
	}
	if cfg.Wagering.DefaultOdds < cfg.Wagering.MinOdds || cfg.Wagering.DefaultOdds > cfg.Wagering.MaxOdds {
		return fmt.Errorf("wagering.default_odds must lie between min_odds and max_odds")
	}

	if cfg.Games.MaxBet < cfg.Games.MinBet {
		return fmt.Errorf("games.max_bet cannot be below games.min_bet")
	}
	if cfg.Games.MinBet%cfg.Games.BetStep != 0 || cfg.Games.MaxBet%cfg.Games.BetStep != 0 {
		return fmt.Errorf("games bet bounds must be multiples of games.bet_step")
	}

	if cfg.Scheduler.Enabled {
		if _, err := cron.ParseStandard(cfg.Scheduler.Schedule); err != nil {
			return fmt.Errorf("invalid scheduler.schedule %q: %w", cfg.Scheduler.Schedule, err)
		}
	}

	if cfg.Events.Kafka.Enabled && (len(cfg.Events.Kafka.Brokers) == 0 || cfg.Events.Kafka.Topic == "") {
		return fmt.Errorf("kafka events require brokers and a topic")
	}
	if cfg.Events.Redis.Enabled && (cfg.Events.Redis.Address == "" || cfg.Events.Redis.Channel == "") {
		return fmt.Errorf("redis events require an address and a channel")
	}
	if cfg.Wallet.Enabled && cfg.Wallet.URL == "" {
		return fmt.Errorf("wallet requires wallet.url when enabled")
	}
	if cfg.Secrets.Enabled && (cfg.Secrets.Region == "" || cfg.Secrets.Name == "") {
		return fmt.Errorf("secrets overlay requires a region and a secret name")
	}

	if cfg.IsProduction() {
		if cfg.Storage.Driver == StorageMemory {
			return fmt.Errorf("production environment requires persistent storage")
		}
		if cfg.Storage.Driver == StoragePostgres && cfg.Database.URL == "" && cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
		}
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "url":
			fmt.Fprintf(&b, "- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			fmt.Fprintf(&b, "- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			fmt.Fprintf(&b, "- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "storagedriver":
			fmt.Fprintf(&b, "- Field '%s' must be one of: memory, sqlite, postgres\n", field)
		case "oneof":
			fmt.Fprintf(&b, "- Field '%s' has invalid value '%v'\n", field, value)
		default:
			fmt.Fprintf(&b, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}
