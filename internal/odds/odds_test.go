package odds

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/rng"
)

func wager(competitorID uuid.UUID, stake string) *models.Wager {
	return &models.Wager{ID: uuid.New(), CompetitorID: competitorID, Stake: decimal.RequireFromString(stake)}
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func TestDefaultRulesValid(t *testing.T) {
	require.NoError(t, DefaultRules().Validate())
}

func TestRulesValidate(t *testing.T) {
	r := DefaultRules()
	r.Max = decimal.NewFromInt(1)
	assert.True(t, models.IsValidation(r.Validate()))

	r = DefaultRules()
	r.Payback = decimal.NewFromInt(2)
	assert.True(t, models.IsValidation(r.Validate()))
}

func TestUnbackedCompetitorGetsDefault(t *testing.T) {
	r := DefaultRules()
	assertDecimal(t, "3", r.ForCompetitor(nil, uuid.New()))

	other := uuid.New()
	assertDecimal(t, "3", r.ForCompetitor([]*models.Wager{wager(other, "500")}, uuid.New()))
}

func TestThreeHorseScenario(t *testing.T) {
	r := DefaultRules()
	c1, c2, c3 := uuid.New(), uuid.New(), uuid.New()
	wagers := []*models.Wager{wager(c1, "100"), wager(c2, "50")}

	prices := r.Calculate(wagers, []uuid.UUID{c1, c2, c3})
	assertDecimal(t, "1.5", prices[c1])
	assertDecimal(t, "2.55", prices[c2])
	assertDecimal(t, "3", prices[c3])
}

func TestPricesFollowPoolExactly(t *testing.T) {
	r := DefaultRules()
	c1, c2 := uuid.New(), uuid.New()
	wagers := []*models.Wager{wager(c1, "90"), wager(c2, "210")}

	// 300 / 90 * 0.85 = 2.8333...
	want := decimal.NewFromInt(300).Div(decimal.NewFromInt(90)).Mul(r.Payback)
	assert.True(t, want.Equal(r.ForCompetitor(wagers, c1)))
	assert.True(t, r.ForCompetitor(wagers, c1).GreaterThan(decimal.RequireFromString("2.8333")))

	r.Precision = 4
	assertDecimal(t, "2.8333", r.ForCompetitor(wagers, c1))
}

func TestCeilingClamp(t *testing.T) {
	r := DefaultRules()
	fav, longshot := uuid.New(), uuid.New()
	wagers := []*models.Wager{wager(fav, "990"), wager(longshot, "10")}

	assertDecimal(t, "10", r.ForCompetitor(wagers, longshot))
	assertDecimal(t, "1.5", r.ForCompetitor(wagers, fav))
}

func TestOddsAlwaysWithinBounds(t *testing.T) {
	r := DefaultRules()
	src := rng.NewSeeded(17)
	field := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}

	for round := 0; round < 200; round++ {
		var wagers []*models.Wager
		count := rng.Intn(src, 12)
		for i := 0; i < count; i++ {
			stake := decimal.NewFromFloat(rng.Uniform(src, 1, 1000)).Round(2)
			if !stake.IsPositive() {
				continue
			}
			wagers = append(wagers, wager(field[rng.Intn(src, len(field))], stake.String()))
		}

		for id, price := range r.Calculate(wagers, field) {
			require.True(t, price.GreaterThanOrEqual(r.Min), "price %s below floor", price)
			require.True(t, price.LessThanOrEqual(r.Max), "price %s above ceiling", price)
			if StakeOn(wagers, id).IsZero() {
				require.True(t, price.Equal(r.Default))
			}
		}
	}
}

func TestBoardTotals(t *testing.T) {
	r := DefaultRules()
	c1, c2, c3 := uuid.New(), uuid.New(), uuid.New()
	race := &models.Race{ID: uuid.New(), Status: models.RaceStatusPending}
	wagers := []*models.Wager{wager(c1, "100"), wager(c2, "50"), wager(c1, "25")}

	board := r.BuildBoard(race, wagers, []uuid.UUID{c1, c2, c3})

	assert.Equal(t, race.ID, board.RaceID)
	assert.Equal(t, 3, board.WagerCount)
	assertDecimal(t, "175", board.Pool)
	require.Len(t, board.Lines, 3)

	line, ok := board.Line(c1)
	require.True(t, ok)
	assert.Equal(t, 2, line.WagerCount)
	assertDecimal(t, "125", line.Stake)
	assertDecimal(t, "1.5", line.Odds)

	line, ok = board.Line(c3)
	require.True(t, ok)
	assert.Equal(t, 0, line.WagerCount)
	assertDecimal(t, "3", line.Odds)

	_, ok = board.Line(uuid.New())
	assert.False(t, ok)
}
