package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/paddock/internal/config"
	"github.com/yourusername/paddock/internal/events"
	"github.com/yourusername/paddock/internal/feed"
	"github.com/yourusername/paddock/internal/logger"
	"github.com/yourusername/paddock/internal/odds"
	"github.com/yourusername/paddock/internal/race"
	"github.com/yourusername/paddock/internal/repository"
	"github.com/yourusername/paddock/internal/session"
	"github.com/yourusername/paddock/internal/wallet"
)

func testRoster(t *testing.T) []config.CompetitorConfig {
	t.Helper()
	return defaultRoster[:3]
}

func TestSimulateIsReproducible(t *testing.T) {
	roster, err := buildRoster(testRoster(t))
	require.NoError(t, err)

	first, err := simulate(race.DefaultConfig(), roster, 42, 5, 0.016)
	require.NoError(t, err)
	second, err := simulate(race.DefaultConfig(), roster, 42, 5, 0.016)
	require.NoError(t, err)

	require.Len(t, first.Races, 5)
	total := 0
	for i, r := range first.Races {
		assert.Equal(t, int64(42+i), r.Seed)
		require.Len(t, r.Finishes, 3)
		for rank, f := range r.Finishes {
			assert.Equal(t, rank+1, f.Rank)
			assert.Equal(t, second.Races[i].Finishes[rank].Name, f.Name)
			assert.Equal(t, second.Races[i].Finishes[rank].Time, f.Time)
		}
	}
	for _, wins := range first.Wins {
		total += wins
	}
	assert.Equal(t, 5, total)
}

func TestSimulateRejectsBadArguments(t *testing.T) {
	roster, err := buildRoster(testRoster(t))
	require.NoError(t, err)

	_, err = simulate(race.DefaultConfig(), roster, 1, 0, 0.016)
	assert.Error(t, err)
	_, err = simulate(race.DefaultConfig(), roster, 1, 1, 0)
	assert.Error(t, err)
	_, err = simulate(race.DefaultConfig(), nil, 1, 1, 0.016)
	assert.Error(t, err, "an empty field cannot race")
}

func TestPrintReport(t *testing.T) {
	roster, err := buildRoster(testRoster(t))
	require.NoError(t, err)
	report, err := simulate(race.DefaultConfig(), roster, 7, 2, 0.016)
	require.NoError(t, err)

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()
	assert.Contains(t, out, "Race 1 (seed 7")
	assert.Contains(t, out, "Race 2 (seed 8")
	assert.Contains(t, out, "Wins:")
}

func TestPriceRoster(t *testing.T) {
	roster, err := buildRoster(testRoster(t))
	require.NoError(t, err)

	board := priceRoster(odds.DefaultRules(), roster, []decimal.Decimal{
		decimal.NewFromInt(100),
		decimal.NewFromInt(50),
	})
	require.Len(t, board.Lines, 3)
	assert.True(t, decimal.NewFromInt(150).Equal(board.Pool))
	assert.True(t, decimal.RequireFromString("1.5").Equal(board.Lines[0].Odds))
	assert.True(t, decimal.RequireFromString("2.55").Equal(board.Lines[1].Odds))
	assert.True(t, decimal.NewFromInt(3).Equal(board.Lines[2].Odds))

	var buf bytes.Buffer
	printBoard(&buf, roster, board)
	assert.True(t, strings.HasPrefix(buf.String(), "Pool 150.00"))
}

func TestBuildRosterRejectsBadRatings(t *testing.T) {
	_, err := buildRoster([]config.CompetitorConfig{{Name: "Rocket", Speed: 25, Stamina: 10}})
	assert.Error(t, err)
}

func TestSeedRosterOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	log := logger.NewNopLogger()

	require.NoError(t, seedRoster(ctx, store, testRoster(t), log))
	require.NoError(t, seedRoster(ctx, store, defaultRoster, log))

	roster, err := store.ListCompetitors(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 3)
	assert.Equal(t, "Thunderbolt", roster[0].Name)
}

func TestRosterConfigFallsBackToDefault(t *testing.T) {
	c := &config.Config{}
	assert.Equal(t, defaultRoster, rosterConfig(c))

	c.Race.Roster = testRoster(t)[:1]
	assert.Len(t, rosterConfig(c), 1)
}

func TestBuildPublisher(t *testing.T) {
	log := logger.NewNopLogger()
	c := &config.Config{}

	_, ok := buildPublisher(c, nil, log).(events.Nop)
	assert.True(t, ok, "no sinks configured")

	hub := feed.NewHub(nil, log)
	p := buildPublisher(c, hub, log)
	multi, ok := p.(events.Multi)
	require.True(t, ok)
	assert.Len(t, multi, 1)
}

func TestBuildPayerDefaultsToSessions(t *testing.T) {
	sessions := session.NewRegistry(decimal.NewFromInt(1000))
	payer, closeFn := buildPayer(&config.Config{}, sessions, logger.NewNopLogger())
	assert.Same(t, sessions, payer)
	assert.NoError(t, closeFn())
}

func TestBuildPayerUsesWalletWhenEnabled(t *testing.T) {
	c := &config.Config{Wallet: config.WalletConfig{Enabled: true, URL: "http://wallet.local", TimeoutSeconds: 1}}
	account, closeFn := buildPayer(c, session.NewRegistry(decimal.NewFromInt(1000)), logger.NewNopLogger())
	_, ok := account.(*wallet.Client)
	assert.True(t, ok)
	assert.NoError(t, closeFn())
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, buf.String(), "paddock dev")
}
