package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RaceResult is the finishing record of one competitor in a completed race
type RaceResult struct {
	RaceID       uuid.UUID `db:"race_id" json:"race_id"`
	CompetitorID uuid.UUID `db:"competitor_id" json:"competitor_id"`
	Rank         int       `db:"rank" json:"rank"`
	FinishTime   float64   `db:"finish_time" json:"finish_time"`
}

// WagerPayout fixes the payout of a single wager
type WagerPayout struct {
	WagerID uuid.UUID       `json:"wager_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// Settlement is everything written when a race completes. Stores commit it atomically.
type Settlement struct {
	RaceID      uuid.UUID     `json:"race_id"`
	WinnerID    uuid.UUID     `json:"winner_id"`
	CompletedAt time.Time     `json:"completed_at"`
	Results     []RaceResult  `json:"results"`
	Payouts     []WagerPayout `json:"payouts"`
}

// TotalPaid sums all payouts of the settlement
func (s *Settlement) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Payouts {
		total = total.Add(p.Amount)
	}
	return total
}
