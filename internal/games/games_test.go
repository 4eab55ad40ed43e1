package games

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/repository"
	"github.com/yourusername/paddock/internal/rng"
	"github.com/yourusername/paddock/internal/session"
)

func TestMultiplier(t *testing.T) {
	tests := []struct {
		reels [Reels]Symbol
		want  int64
	}{
		{[Reels]Symbol{Diamond, Diamond, Diamond}, 100},
		{[Reels]Symbol{Seven, Seven, Seven}, 50},
		{[Reels]Symbol{Star, Star, Star}, 25},
		{[Reels]Symbol{Grape, Grape, Grape}, 10},
		{[Reels]Symbol{Cherry, Cherry, Lemon}, 2},
		{[Reels]Symbol{Lemon, Cherry, Cherry}, 2},
		{[Reels]Symbol{Seven, Lemon, Seven}, 2},
		{[Reels]Symbol{Cherry, Lemon, Orange}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Multiplier(tt.reels), "reels %v", tt.reels)
	}
}

func TestSpinDrawsEachReel(t *testing.T) {
	out := SlotMachine{}.Spin(rng.NewFixed(0.6), 10)
	assert.Equal(t, [Reels]Symbol{Diamond, Diamond, Diamond}, out.Reels)
	assert.Equal(t, int64(1000), out.Win)

	out = SlotMachine{}.Spin(rng.NewFixed(0.0, 0.0, 0.2), 20)
	assert.Equal(t, [Reels]Symbol{Cherry, Cherry, Lemon}, out.Reels)
	assert.Equal(t, int64(40), out.Win)
	assert.True(t, out.Won())

	out = SlotMachine{}.Spin(rng.NewFixed(0.0, 0.2, 0.3), 20)
	assert.False(t, out.Won())
}

func TestDiceRoll(t *testing.T) {
	d := Dice{Payout: 5}

	out, err := d.Roll(rng.NewFixed(0.5), 10, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Result)
	assert.True(t, out.Won)
	assert.Equal(t, int64(50), out.Payout)

	out, err = d.Roll(rng.NewFixed(0.99), 10, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, out.Result)
	assert.False(t, out.Won)
	assert.Zero(t, out.Payout)

	for _, p := range []int{0, 7} {
		_, err := d.Roll(rng.NewFixed(0.5), 10, p)
		assert.True(t, models.IsValidation(err))
	}
}

func TestLimits(t *testing.T) {
	l := DefaultLimits()
	assert.NoError(t, l.Check(10))
	assert.NoError(t, l.Check(100))

	for bet, code := range map[int64]string{5: "bet_out_of_range", 110: "bet_out_of_range", 15: "bet_step"} {
		var vErr *models.ValidationError
		require.ErrorAs(t, l.Check(bet), &vErr)
		assert.Equal(t, code, vErr.Code)
	}
}

type brokenHistory struct {
	*repository.MemoryStore
}

func (brokenHistory) SaveSpin(context.Context, *models.SpinResult) error {
	return errors.New("disk full")
}

func newService(src rng.Source, history repository.GameHistoryRepository) (*Service, *session.Registry) {
	reg := session.NewRegistry(decimal.NewFromInt(1000))
	cfg := Config{Limits: DefaultLimits(), DicePayout: DefaultDicePayout}
	return NewService(cfg, reg, history, WithSource(src)), reg
}

func TestServiceSpinUpdatesSessionAndHistory(t *testing.T) {
	store := repository.NewMemoryStore()
	svc, _ := newService(rng.NewFixed(0.6), store)
	ctx := context.Background()

	play, err := svc.Spin(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), play.Outcome.Win)
	assert.True(t, decimal.NewFromInt(1990).Equal(play.Session.Credits))

	spins, err := svc.RecentSpins(ctx, 10)
	require.NoError(t, err)
	require.Len(t, spins, 1)
	assert.Equal(t, []string{"diamond", "diamond", "diamond"}, spins[0].Symbols)
	assert.True(t, spins[0].IsWinner)
}

func TestServiceSpinPersistenceFailureKeepsCredits(t *testing.T) {
	svc, reg := newService(rng.NewFixed(0.6), brokenHistory{repository.NewMemoryStore()})

	_, err := svc.Spin(context.Background(), "alice", 10)
	require.Error(t, err)
	assert.True(t, models.IsPersistence(err))

	s, err := reg.Get("alice")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(s.Snapshot().Credits))
}

func TestServiceRoll(t *testing.T) {
	store := repository.NewMemoryStore()
	svc, _ := newService(rng.NewFixed(0.5), store)
	ctx := context.Background()

	play, err := svc.Roll(ctx, "bob", 20, 4)
	require.NoError(t, err)
	assert.True(t, play.Outcome.Won)
	assert.True(t, decimal.NewFromInt(1080).Equal(play.Session.Credits))

	play, err = svc.Roll(ctx, "bob", 20, 1)
	require.NoError(t, err)
	assert.False(t, play.Outcome.Won)
	assert.True(t, decimal.NewFromInt(1060).Equal(play.Session.Credits))

	_, err = svc.Roll(ctx, "bob", 20, 9)
	assert.True(t, models.IsValidation(err))
	_, err = svc.Roll(ctx, "bob", 25, 3)
	assert.True(t, models.IsValidation(err))

	rolls, err := svc.RecentDiceRolls(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rolls, 2)
}

func TestServiceInsufficientCredits(t *testing.T) {
	reg := session.NewRegistry(decimal.NewFromInt(10))
	svc := NewService(Config{Limits: DefaultLimits()}, reg, repository.NewMemoryStore(), WithSource(rng.NewFixed(0.0, 0.2, 0.3)))
	ctx := context.Background()

	_, err := svc.Spin(ctx, "carol", 10)
	require.NoError(t, err)

	_, err = svc.Spin(ctx, "carol", 10)
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "insufficient_credits", vErr.Code)
}

func TestProvablyFairSourcesReplay(t *testing.T) {
	cfg := Config{Limits: DefaultLimits(), DicePayout: 5, ServerSeed: "server-seed"}
	a := NewService(cfg, session.NewRegistry(decimal.NewFromInt(1000)), repository.NewMemoryStore())
	b := NewService(cfg, session.NewRegistry(decimal.NewFromInt(1000)), repository.NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		pa, err := a.Spin(ctx, "alice", 10)
		require.NoError(t, err)
		pb, err := b.Spin(ctx, "alice", 10)
		require.NoError(t, err)
		assert.Equal(t, pa.Outcome, pb.Outcome)
	}
}
