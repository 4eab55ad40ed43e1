package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourusername/paddock/internal/config"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/odds"
	"github.com/yourusername/paddock/internal/race"
)

// Config tunes the controller
type Config struct {
	Race race.Config
	Odds odds.Rules
	// TickInterval is the Run loop period
	TickInterval time.Duration
	// MaxStake caps a single wager; zero means no cap
	MaxStake decimal.Decimal
	// Seed makes races reproducible: race n draws from Seed+n. Zero seeds from the clock.
	Seed int64
}

// DefaultConfig is the standard track and pricing with a 16ms tick
func DefaultConfig() Config {
	return Config{
		Race:         race.DefaultConfig(),
		Odds:         odds.DefaultRules(),
		TickInterval: 16 * time.Millisecond,
	}
}

// FromAppConfig maps the race and wagering sections of the application configuration
func FromAppConfig(cfg *config.Config) Config {
	return Config{
		Race: race.Config{
			TrackLength:  cfg.Race.TrackLength,
			StepDistance: cfg.Race.StepDistance,
			GracePeriod:  cfg.Race.GracePeriod,
			FatigueFloor: cfg.Race.FatigueFloor,
			StaminaPivot: cfg.Race.StaminaPivot,
			Jitter:       cfg.Race.Jitter,
		},
		Odds: odds.Rules{
			Payback:   decimal.NewFromInt(1).Sub(decimal.NewFromFloat(cfg.Wagering.HouseMargin)),
			Min:       decimal.NewFromFloat(cfg.Wagering.MinOdds),
			Max:       decimal.NewFromFloat(cfg.Wagering.MaxOdds),
			Default:   decimal.NewFromFloat(cfg.Wagering.DefaultOdds),
			Precision: odds.DefaultRules().Precision,
		},
		TickInterval: cfg.TickInterval(),
		MaxStake:     decimal.NewFromFloat(cfg.Wagering.MaxStake),
		Seed:         cfg.Race.Seed,
	}
}

// Validate checks the race and pricing parameters
func (c Config) Validate() error {
	if err := c.Race.Validate(); err != nil {
		return err
	}
	if err := c.Odds.Validate(); err != nil {
		return err
	}
	if c.TickInterval < 0 {
		return models.NewValidationError("invalid_tick_interval", "tick interval cannot be negative")
	}
	if c.MaxStake.IsNegative() {
		return models.NewValidationError("invalid_stake_limit", "maximum stake cannot be negative")
	}
	return nil
}
