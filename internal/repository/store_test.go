package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/paddock/internal/database"
	"github.com/yourusername/paddock/internal/models"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedRoster(t *testing.T, store Store, n int) []*models.Competitor {
	t.Helper()
	ctx := context.Background()
	roster := make([]*models.Competitor, 0, n)
	for i := 0; i < n; i++ {
		c, err := models.NewCompetitor("Horse "+string(rune('A'+i)), "#8B4513", 10+float64(i), 12)
		require.NoError(t, err)
		c.CreatedAt = epoch.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.CreateCompetitor(ctx, c))
		roster = append(roster, c)
	}
	return roster
}

func newRace(t *testing.T, store Store) *models.Race {
	t.Helper()
	race := models.NewRace()
	race.CreatedAt = epoch
	require.NoError(t, store.CreateRace(context.Background(), race))
	return race
}

func placeWager(t *testing.T, store Store, race *models.Race, c *models.Competitor, stake string, at int) *models.Wager {
	t.Helper()
	w := &models.Wager{
		ID:           uuid.New(),
		RaceID:       race.ID,
		CompetitorID: c.ID,
		Bettor:       "alice",
		Stake:        decimal.RequireFromString(stake),
		Odds:         decimal.NewFromInt(3),
		PlacedAt:     epoch.Add(time.Duration(at) * time.Second),
	}
	require.NoError(t, store.CreateWager(context.Background(), w))
	return w
}

func settlementFor(race *models.Race, roster []*models.Competitor, wagers ...*models.Wager) *models.Settlement {
	s := &models.Settlement{
		RaceID:      race.ID,
		WinnerID:    roster[0].ID,
		CompletedAt: epoch.Add(time.Minute),
	}
	for i, c := range roster {
		s.Results = append(s.Results, models.RaceResult{RaceID: race.ID, CompetitorID: c.ID, Rank: i + 1, FinishTime: 30 + float64(i)})
	}
	for _, w := range wagers {
		amount := decimal.Zero
		if w.CompetitorID == s.WinnerID {
			amount = w.PotentialPayout()
		}
		s.Payouts = append(s.Payouts, models.WagerPayout{WagerID: w.ID, Amount: amount})
	}
	return s
}

// runStoreContract exercises behaviour every Store implementation must share
func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("race sequence and lookup", func(t *testing.T) {
		store := open(t)
		first := newRace(t, store)
		second := newRace(t, store)
		assert.Greater(t, second.Sequence, first.Sequence)

		got, err := store.GetRace(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RaceStatusPending, got.Status)
		assert.Equal(t, first.Sequence, got.Sequence)
		assert.Nil(t, got.WinnerID)
		assert.Nil(t, got.StartedAt)

		_, err = store.GetRace(ctx, uuid.New())
		assert.ErrorIs(t, err, models.ErrNotFound)

		races, err := store.ListRaces(ctx, 10)
		require.NoError(t, err)
		require.Len(t, races, 2)
		assert.Equal(t, second.ID, races[0].ID)
	})

	t.Run("transitions are guarded", func(t *testing.T) {
		store := open(t)
		race := newRace(t, store)

		require.NoError(t, store.TransitionRace(ctx, race.ID, models.RaceStatusPending, models.RaceStatusRunning, epoch))
		got, err := store.GetRace(ctx, race.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RaceStatusRunning, got.Status)
		require.NotNil(t, got.StartedAt)
		assert.WithinDuration(t, epoch, *got.StartedAt, time.Millisecond)

		err = store.TransitionRace(ctx, race.ID, models.RaceStatusPending, models.RaceStatusRunning, epoch)
		assert.ErrorIs(t, err, models.ErrStaleTransition)

		err = store.TransitionRace(ctx, race.ID, models.RaceStatusRunning, models.RaceStatusCompleted, epoch)
		assert.True(t, models.IsValidation(err))

		err = store.TransitionRace(ctx, uuid.New(), models.RaceStatusPending, models.RaceStatusRunning, epoch)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("roster keeps entry order", func(t *testing.T) {
		store := open(t)
		roster := seedRoster(t, store, 3)

		list, err := store.ListCompetitors(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		for i := range roster {
			assert.Equal(t, roster[i].ID, list[i].ID)
			assert.Equal(t, roster[i].SpeedRating, list[i].SpeedRating)
		}

		assert.ErrorIs(t, store.CreateCompetitor(ctx, roster[0]), models.ErrDuplicateKey)

		_, err = store.GetCompetitor(ctx, uuid.New())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("wagers follow race status", func(t *testing.T) {
		store := open(t)
		roster := seedRoster(t, store, 2)
		race := newRace(t, store)

		w1 := placeWager(t, store, race, roster[0], "100", 1)
		require.NoError(t, store.TransitionRace(ctx, race.ID, models.RaceStatusPending, models.RaceStatusRunning, epoch))
		w2 := placeWager(t, store, race, roster[1], "50.25", 2)

		wagers, err := store.ListWagersByRace(ctx, race.ID)
		require.NoError(t, err)
		require.Len(t, wagers, 2)
		assert.Equal(t, w1.ID, wagers[0].ID)
		assert.Equal(t, w2.ID, wagers[1].ID)
		assert.True(t, decimal.RequireFromString("50.25").Equal(wagers[1].Stake))
		assert.Nil(t, wagers[0].Payout)

		require.NoError(t, store.CommitSettlement(ctx, settlementFor(race, roster, w1, w2)))

		late := &models.Wager{ID: uuid.New(), RaceID: race.ID, CompetitorID: roster[0].ID, Bettor: "bob", Stake: decimal.NewFromInt(10), Odds: decimal.NewFromInt(3), PlacedAt: epoch}
		assert.ErrorIs(t, store.CreateWager(ctx, late), models.ErrRaceClosed)

		late.RaceID = uuid.New()
		assert.ErrorIs(t, store.CreateWager(ctx, late), models.ErrNotFound)
	})

	t.Run("settlement is atomic and single", func(t *testing.T) {
		store := open(t)
		roster := seedRoster(t, store, 3)
		race := newRace(t, store)
		win := placeWager(t, store, race, roster[0], "100", 1)
		lose := placeWager(t, store, race, roster[1], "50", 2)
		require.NoError(t, store.TransitionRace(ctx, race.ID, models.RaceStatusPending, models.RaceStatusRunning, epoch))

		require.NoError(t, store.CommitSettlement(ctx, settlementFor(race, roster, win, lose)))

		got, err := store.GetRace(ctx, race.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RaceStatusCompleted, got.Status)
		require.NotNil(t, got.WinnerID)
		assert.Equal(t, roster[0].ID, *got.WinnerID)
		assert.True(t, got.IsCompleted())

		results, err := store.ListResultsByRace(ctx, race.ID)
		require.NoError(t, err)
		require.Len(t, results, 3)
		for i, r := range results {
			assert.Equal(t, i+1, r.Rank)
			assert.Equal(t, roster[i].ID, r.CompetitorID)
		}

		wagers, err := store.ListWagersByRace(ctx, race.ID)
		require.NoError(t, err)
		require.NotNil(t, wagers[0].Payout)
		require.NotNil(t, wagers[1].Payout)
		assert.True(t, decimal.NewFromInt(300).Equal(*wagers[0].Payout))
		assert.True(t, wagers[1].Payout.IsZero())
		assert.NotNil(t, wagers[0].SettledAt)

		err = store.CommitSettlement(ctx, settlementFor(race, roster, win, lose))
		assert.ErrorIs(t, err, models.ErrAlreadySettled)

		again, err := store.ListWagersByRace(ctx, race.ID)
		require.NoError(t, err)
		assert.True(t, wagers[0].Payout.Equal(*again[0].Payout))
	})

	t.Run("settlement rejects pending race", func(t *testing.T) {
		store := open(t)
		roster := seedRoster(t, store, 2)
		race := newRace(t, store)

		err := store.CommitSettlement(ctx, settlementFor(race, roster))
		assert.ErrorIs(t, err, models.ErrStaleTransition)
	})

	t.Run("partial settlement writes nothing", func(t *testing.T) {
		store := open(t)
		roster := seedRoster(t, store, 2)
		race := newRace(t, store)
		w1 := placeWager(t, store, race, roster[0], "10", 1)
		placeWager(t, store, race, roster[1], "20", 2)
		require.NoError(t, store.TransitionRace(ctx, race.ID, models.RaceStatusPending, models.RaceStatusRunning, epoch))

		err := store.CommitSettlement(ctx, settlementFor(race, roster, w1))
		assert.ErrorIs(t, err, ErrUnsettledWagers)

		got, err := store.GetRace(ctx, race.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RaceStatusRunning, got.Status)
		results, err := store.ListResultsByRace(ctx, race.ID)
		require.NoError(t, err)
		assert.Empty(t, results)
		wagers, err := store.ListWagersByRace(ctx, race.ID)
		require.NoError(t, err)
		assert.Nil(t, wagers[0].Payout)
	})

	t.Run("malformed settlement is rejected", func(t *testing.T) {
		store := open(t)
		roster := seedRoster(t, store, 2)
		race := newRace(t, store)
		s := settlementFor(race, roster)
		s.Results[1].Rank = 1

		assert.True(t, models.IsValidation(store.CommitSettlement(ctx, s)))
	})

	t.Run("game history", func(t *testing.T) {
		store := open(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, store.SaveSpin(ctx, &models.SpinResult{
				ID:        uuid.New(),
				Player:    "alice",
				Symbols:   []string{"🍒", "🍒", string(rune('a' + i))},
				BetAmount: decimal.NewFromInt(10),
				WinAmount: decimal.NewFromInt(20),
				IsWinner:  true,
				CreatedAt: epoch.Add(time.Duration(i) * time.Second),
			}))
		}
		require.NoError(t, store.SaveDiceRoll(ctx, &models.DiceRoll{
			ID: uuid.New(), Player: "bob", Prediction: 4, Result: 4,
			BetAmount: decimal.NewFromInt(10), Payout: decimal.NewFromInt(50), Won: true, CreatedAt: epoch,
		}))

		spins, err := store.RecentSpins(ctx, 2)
		require.NoError(t, err)
		require.Len(t, spins, 2)
		assert.Equal(t, []string{"🍒", "🍒", "c"}, spins[0].Symbols)
		assert.True(t, spins[0].IsWinner)
		assert.True(t, decimal.NewFromInt(20).Equal(spins[0].WinAmount))

		rolls, err := store.RecentDiceRolls(ctx, 10)
		require.NoError(t, err)
		require.Len(t, rolls, 1)
		assert.Equal(t, 4, rolls[0].Result)
		assert.True(t, rolls[0].Won)
		assert.True(t, decimal.NewFromInt(50).Equal(rolls[0].Payout))
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, open(t).Ping(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		store, err := OpenSQLite(filepath.Join(t.TempDir(), "paddock.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestPostgresStore(t *testing.T) {
	db := database.SetupTestDB(t)
	runStoreContract(t, func(t *testing.T) Store {
		require.NoError(t, db.Truncate(context.Background()))
		return NewPostgresStore(db)
	})
}

func TestCachedStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewCachedStore(NewMemoryStore(), time.Minute)
	})
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	race := newRace(t, store)

	got, err := store.GetRace(ctx, race.ID)
	require.NoError(t, err)
	got.Status = models.RaceStatusCompleted

	again, err := store.GetRace(ctx, race.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RaceStatusPending, again.Status)
}
