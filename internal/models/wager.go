package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wager is a stake placed on one competitor of one race
type Wager struct {
	ID           uuid.UUID        `db:"id" json:"id"`
	RaceID       uuid.UUID        `db:"race_id" json:"race_id"`
	CompetitorID uuid.UUID        `db:"competitor_id" json:"competitor_id"`
	Bettor       string           `db:"bettor" json:"bettor"`
	Stake        decimal.Decimal  `db:"stake" json:"stake"`
	Odds         decimal.Decimal  `db:"odds" json:"odds"`
	Payout       *decimal.Decimal `db:"payout" json:"payout"`
	PlacedAt     time.Time        `db:"placed_at" json:"placed_at"`
	SettledAt    *time.Time       `db:"settled_at" json:"settled_at,omitempty"`
}

// WagerRequest is the input for placing a wager
type WagerRequest struct {
	RaceID       uuid.UUID       `json:"race_id"`
	CompetitorID uuid.UUID       `json:"competitor_id"`
	Bettor       string          `json:"bettor" validate:"required,max=64"`
	Stake        decimal.Decimal `json:"stake"`
}

// Validate checks the request shape. Lifecycle checks are left to the controller.
func (r *WagerRequest) Validate() error {
	r.Bettor = strings.TrimSpace(r.Bettor)
	if r.RaceID == uuid.Nil {
		return NewValidationError("invalid_wager", "race id is required")
	}
	if r.CompetitorID == uuid.Nil {
		return NewValidationError("invalid_wager", "competitor id is required")
	}
	if !r.Stake.IsPositive() {
		return NewValidationError("invalid_stake", "stake must be greater than zero")
	}
	return validateStruct("invalid_wager", r)
}

// IsSettled checks if the payout has been fixed
func (w *Wager) IsSettled() bool {
	return w.Payout != nil
}

// IsWinning reports whether the wager was settled with a positive payout
func (w *Wager) IsWinning() bool {
	return w.Payout != nil && w.Payout.IsPositive()
}

// PotentialPayout is what the wager returns if its competitor wins
func (w *Wager) PotentialPayout() decimal.Decimal {
	return w.Stake.Mul(w.Odds)
}
