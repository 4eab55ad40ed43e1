package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SpinResult is a recorded slot machine spin
type SpinResult struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Player    string          `db:"player" json:"player"`
	Symbols   []string        `db:"symbols" json:"symbols"`
	BetAmount decimal.Decimal `db:"bet_amount" json:"bet_amount"`
	WinAmount decimal.Decimal `db:"win_amount" json:"win_amount"`
	IsWinner  bool            `db:"is_winner" json:"is_winner"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// DiceRoll is a recorded dice game
type DiceRoll struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	Player     string          `db:"player" json:"player"`
	Prediction int             `db:"prediction" json:"prediction"`
	Result     int             `db:"result" json:"result"`
	BetAmount  decimal.Decimal `db:"bet_amount" json:"bet_amount"`
	Payout     decimal.Decimal `db:"payout" json:"payout"`
	Won        bool            `db:"won" json:"won"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
