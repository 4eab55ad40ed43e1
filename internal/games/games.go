// Package games implements the slot machine and dice roll.
package games

import (
	"github.com/yourusername/paddock/internal/config"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/rng"
)

// Symbol is one face of a slot reel
type Symbol string

const (
	Cherry  Symbol = "cherry"
	Lemon   Symbol = "lemon"
	Orange  Symbol = "orange"
	Grape   Symbol = "grape"
	Diamond Symbol = "diamond"
	Seven   Symbol = "seven"
	Star    Symbol = "star"
)

// Symbols is the reel strip; every reel uses the same strip with uniform weights
var Symbols = []Symbol{Cherry, Lemon, Orange, Grape, Diamond, Seven, Star}

// Reels is the number of reels on the machine
const Reels = 3

// Limits bounds a game bet
type Limits struct {
	Min  int64 `json:"min"`
	Max  int64 `json:"max"`
	Step int64 `json:"step"`
}

// DefaultLimits allows 10 to 100 in steps of 10
func DefaultLimits() Limits {
	return Limits{Min: 10, Max: 100, Step: 10}
}

// LimitsFromConfig maps the games section of the configuration
func LimitsFromConfig(cfg config.GamesConfig) Limits {
	return Limits{Min: int64(cfg.MinBet), Max: int64(cfg.MaxBet), Step: int64(cfg.BetStep)}
}

// Check validates a bet against the limits
func (l Limits) Check(bet int64) error {
	if bet < l.Min || bet > l.Max {
		return models.NewValidationError("bet_out_of_range", "bet must be between limits")
	}
	if l.Step > 0 && bet%l.Step != 0 {
		return models.NewValidationError("bet_step", "bet must be a multiple of the bet step")
	}
	return nil
}

// Multiplier is the slot paytable: three diamonds 100x, three sevens 50x, three stars 25x,
// any other triple 10x, any pair 2x.
func Multiplier(reels [Reels]Symbol) int64 {
	a, b, c := reels[0], reels[1], reels[2]
	switch {
	case a == b && b == c:
		switch a {
		case Diamond:
			return 100
		case Seven:
			return 50
		case Star:
			return 25
		default:
			return 10
		}
	case a == b || b == c || a == c:
		return 2
	default:
		return 0
	}
}

// SpinOutcome is the result of one spin
type SpinOutcome struct {
	Reels      [Reels]Symbol `json:"reels"`
	Multiplier int64         `json:"multiplier"`
	Win        int64         `json:"win"`
}

// Won reports whether the spin paid anything
func (o SpinOutcome) Won() bool {
	return o.Win > 0
}

// SlotMachine draws reels from a random source
type SlotMachine struct{}

// Spin draws every reel from src and prices the line
func (SlotMachine) Spin(src rng.Source, bet int64) SpinOutcome {
	var reels [Reels]Symbol
	for i := range reels {
		reels[i] = Symbols[rng.Intn(src, len(Symbols))]
	}
	m := Multiplier(reels)
	return SpinOutcome{Reels: reels, Multiplier: m, Win: bet * m}
}

// Dice faces
const (
	MinFace = 1
	MaxFace = 6
)

// DefaultDicePayout is the multiplier paid on a correct prediction
const DefaultDicePayout = 5

// RollOutcome is the result of one dice roll
type RollOutcome struct {
	Prediction int   `json:"prediction"`
	Result     int   `json:"result"`
	Won        bool  `json:"won"`
	Payout     int64 `json:"payout"`
}

// Dice is a single d6 paying a fixed multiple on an exact prediction
type Dice struct {
	Payout int64
}

// Roll validates the prediction, rolls src and prices the result
func (d Dice) Roll(src rng.Source, bet int64, prediction int) (RollOutcome, error) {
	if prediction < MinFace || prediction > MaxFace {
		return RollOutcome{}, models.NewValidationError("invalid_prediction", "prediction must be between 1 and 6")
	}
	payout := d.Payout
	if payout <= 0 {
		payout = DefaultDicePayout
	}

	result := MinFace + rng.Intn(src, MaxFace)
	out := RollOutcome{Prediction: prediction, Result: result}
	if result == prediction {
		out.Won = true
		out.Payout = bet * payout
	}
	return out, nil
}
