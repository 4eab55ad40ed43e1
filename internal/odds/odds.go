// Package odds prices competitors from the live parimutuel pool.
//
// Prices are recomputed from the wager set on every call and are never cached:
// every new wager moves the pool.
package odds

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourusername/paddock/internal/models"
)

// Rules configures the house margin and the price bounds
type Rules struct {
	// Payback is the share of the pool returned to bettors (1 - house margin)
	Payback decimal.Decimal `json:"payback"`
	Min     decimal.Decimal `json:"min"`
	Max     decimal.Decimal `json:"max"`
	// Default is offered on a competitor nobody has backed yet
	Default decimal.Decimal `json:"default"`
	// Precision rounds quoted prices to this many decimal places; zero quotes the exact price
	Precision int32 `json:"precision"`
}

// DefaultRules keeps a 15% house margin with prices between 1.5x and 10x
func DefaultRules() Rules {
	return Rules{
		Payback: decimal.RequireFromString("0.85"),
		Min:     decimal.RequireFromString("1.5"),
		Max:     decimal.NewFromInt(10),
		Default: decimal.NewFromInt(3),
	}
}

// Validate checks the bounds are coherent
func (r Rules) Validate() error {
	switch {
	case !r.Payback.IsPositive() || r.Payback.GreaterThan(decimal.NewFromInt(1)):
		return models.NewValidationError("invalid_odds_rules", "payback must be in (0, 1]")
	case !r.Min.IsPositive():
		return models.NewValidationError("invalid_odds_rules", "minimum odds must be positive")
	case r.Max.LessThan(r.Min):
		return models.NewValidationError("invalid_odds_rules", "maximum odds below minimum")
	case r.Default.LessThan(r.Min) || r.Default.GreaterThan(r.Max):
		return models.NewValidationError("invalid_odds_rules", "default odds outside bounds")
	case r.Precision < 0:
		return models.NewValidationError("invalid_odds_rules", "precision must not be negative")
	}
	return nil
}

// Price returns the odds for a competitor holding competitorStake out of pool
func (r Rules) Price(pool, competitorStake decimal.Decimal) decimal.Decimal {
	if !competitorStake.IsPositive() {
		return r.Default
	}
	raw := pool.Div(competitorStake).Mul(r.Payback)
	if r.Precision > 0 {
		raw = raw.Round(r.Precision)
	}
	return decimal.Min(r.Max, decimal.Max(r.Min, raw))
}

// Pool sums every stake of the wager set
func Pool(wagers []*models.Wager) decimal.Decimal {
	total := decimal.Zero
	for _, w := range wagers {
		total = total.Add(w.Stake)
	}
	return total
}

// StakeOn sums the stakes placed on one competitor
func StakeOn(wagers []*models.Wager, competitorID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, w := range wagers {
		if w.CompetitorID == competitorID {
			total = total.Add(w.Stake)
		}
	}
	return total
}

// ForCompetitor prices one competitor against the given wagers.
// Pass the wagers placed so far (excluding the one being priced) to get the placement snapshot.
func (r Rules) ForCompetitor(wagers []*models.Wager, competitorID uuid.UUID) decimal.Decimal {
	return r.Price(Pool(wagers), StakeOn(wagers, competitorID))
}

// Calculate prices every competitor of the field
func (r Rules) Calculate(wagers []*models.Wager, field []uuid.UUID) map[uuid.UUID]decimal.Decimal {
	pool := Pool(wagers)
	stakes := make(map[uuid.UUID]decimal.Decimal, len(field))
	for _, w := range wagers {
		stakes[w.CompetitorID] = stakes[w.CompetitorID].Add(w.Stake)
	}

	prices := make(map[uuid.UUID]decimal.Decimal, len(field))
	for _, id := range field {
		prices[id] = r.Price(pool, stakes[id])
	}
	return prices
}
