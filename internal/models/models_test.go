package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaceStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to RaceStatus
		want     bool
	}{
		{RaceStatusPending, RaceStatusRunning, true},
		{RaceStatusRunning, RaceStatusCompleted, true},
		{RaceStatusPending, RaceStatusCompleted, false},
		{RaceStatusRunning, RaceStatusPending, false},
		{RaceStatusCompleted, RaceStatusRunning, false},
		{RaceStatusCompleted, RaceStatusPending, false},
		{RaceStatus("scratched"), RaceStatusRunning, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, RaceStatusRunning.Valid())
	assert.False(t, RaceStatus("").Valid())
}

func TestRaceAcceptsWagers(t *testing.T) {
	r := NewRace()
	assert.Equal(t, RaceStatusPending, r.Status)
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.True(t, r.AcceptsWagers())

	r.Status = RaceStatusRunning
	assert.True(t, r.AcceptsWagers())

	r.Status = RaceStatusCompleted
	assert.False(t, r.AcceptsWagers())
	assert.False(t, r.IsCompleted(), "completion needs a timestamp")
}

func TestNewCompetitor(t *testing.T) {
	c, err := NewCompetitor("Thunderbolt", "#8B4513", 15, 12)
	require.NoError(t, err)
	assert.Equal(t, 27.0, c.AbilityScore())

	tests := []struct {
		name           string
		horse, color   string
		speed, stamina float64
	}{
		{"missing name", "", "", 10, 10},
		{"speed above range", "Rocket", "", 20.5, 10},
		{"negative stamina", "Rocket", "", 10, -1},
		{"bad color", "Rocket", "brown", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompetitor(tt.horse, tt.color, tt.speed, tt.stamina)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestWagerRequestValidate(t *testing.T) {
	valid := func() WagerRequest {
		return WagerRequest{
			RaceID:       uuid.New(),
			CompetitorID: uuid.New(),
			Bettor:       "  alice ",
			Stake:        decimal.NewFromInt(10),
		}
	}

	req := valid()
	require.NoError(t, req.Validate())
	assert.Equal(t, "alice", req.Bettor)

	tests := []struct {
		name   string
		mutate func(*WagerRequest)
		code   string
	}{
		{"no race", func(r *WagerRequest) { r.RaceID = uuid.Nil }, "invalid_wager"},
		{"no competitor", func(r *WagerRequest) { r.CompetitorID = uuid.Nil }, "invalid_wager"},
		{"zero stake", func(r *WagerRequest) { r.Stake = decimal.Zero }, "invalid_stake"},
		{"negative stake", func(r *WagerRequest) { r.Stake = decimal.NewFromInt(-5) }, "invalid_stake"},
		{"blank bettor", func(r *WagerRequest) { r.Bettor = "   " }, "invalid_wager"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := req.Validate()
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.code, ve.Code)
		})
	}
}

func TestWagerPayouts(t *testing.T) {
	w := &Wager{Stake: decimal.NewFromInt(100), Odds: decimal.RequireFromString("2.55")}
	assert.False(t, w.IsSettled())
	assert.True(t, decimal.NewFromInt(255).Equal(w.PotentialPayout()))

	zero := decimal.Zero
	w.Payout = &zero
	assert.True(t, w.IsSettled())
	assert.False(t, w.IsWinning())

	paid := w.PotentialPayout()
	w.Payout = &paid
	assert.True(t, w.IsWinning())
}

func TestSettlementTotalPaid(t *testing.T) {
	s := &Settlement{Payouts: []WagerPayout{
		{WagerID: uuid.New(), Amount: decimal.RequireFromString("150.5")},
		{WagerID: uuid.New(), Amount: decimal.Zero},
		{WagerID: uuid.New(), Amount: decimal.RequireFromString("49.5")},
	}}
	assert.True(t, decimal.NewFromInt(200).Equal(s.TotalPaid()))
}

func TestErrorClassification(t *testing.T) {
	raceID := uuid.New()

	stateErr := NewStateError(raceID, RaceStatusRunning, "start")
	stateErr.Cause = ErrRaceAlreadyRunning
	wrapped := fmt.Errorf("scheduler: %w", stateErr)
	assert.True(t, IsState(wrapped))
	assert.ErrorIs(t, wrapped, ErrRaceAlreadyRunning)
	assert.Contains(t, stateErr.Error(), raceID.String())

	persist := NewPersistenceError("create wager", ErrDuplicateKey)
	assert.True(t, IsPersistence(persist))
	assert.ErrorIs(t, persist, ErrDuplicateKey)
	assert.False(t, IsValidation(persist))

	ve := NewValidationError("invalid_stake", "stake must be greater than zero")
	assert.Equal(t, "validation error: stake must be greater than zero (code: invalid_stake)", ve.Error())
	assert.False(t, IsState(ve))
}
