package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(c prometheus.Metric) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	switch {
	case m.Counter != nil:
		return m.GetCounter().GetValue()
	case m.Gauge != nil:
		return m.GetGauge().GetValue()
	}
	return -1
}

func TestMetricsRegistry(t *testing.T) {
	registry := InitRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
	assert.Same(t, registry, GetRegistry())
}

func TestRaceLifecycleMetrics(t *testing.T) {
	InitRegistry()

	started := value(RacesStartedTotal)
	completed := value(RacesCompletedTotal)
	paid := value(PaidOutAmount)

	RecordRaceStarted()
	assert.Equal(t, float64(1), value(RaceRunning))

	RecordRaceCompleted(42.5, 150)
	assert.Equal(t, started+1, value(RacesStartedTotal))
	assert.Equal(t, completed+1, value(RacesCompletedTotal))
	assert.Equal(t, paid+150, value(PaidOutAmount))
	assert.Equal(t, float64(0), value(RaceRunning))
}

func TestWagerMetrics(t *testing.T) {
	InitRegistry()

	placed := value(WagersPlacedTotal)
	rejected := value(WagersRejectedTotal.WithLabelValues("state"))

	RecordWagerPlaced(25)
	RecordWagerRejected("state")

	assert.Equal(t, placed+1, value(WagersPlacedTotal))
	assert.Equal(t, rejected+1, value(WagersRejectedTotal.WithLabelValues("state")))
}

func TestSettlementFailures(t *testing.T) {
	InitRegistry()

	failures := value(SettlementFailuresTotal)
	RecordSettlement(0.01, nil)
	RecordSettlement(0.02, errors.New("boom"))

	assert.Equal(t, failures+1, value(SettlementFailuresTotal))
}

func TestGameMetrics(t *testing.T) {
	InitRegistry()

	wins := value(SlotSpinsTotal.WithLabelValues("win"))
	losses := value(DiceRollsTotal.WithLabelValues("loss"))

	assert.NotPanics(t, func() {
		RecordSlotSpin(true, 200)
		RecordDiceRoll(false, 0)
		RecordWalletCredit(nil)
		RecordWalletDebit(errors.New("declined"))
		RecordEventPublished("kafka", errors.New("unreachable"))
		SetFeedClients(3)
		RecordTick(0.0001)
		RecordRaceCancelled()
		RecordRaceCreated()
	})

	assert.Equal(t, wins+1, value(SlotSpinsTotal.WithLabelValues("win")))
	assert.Equal(t, losses+1, value(DiceRollsTotal.WithLabelValues("loss")))
	assert.Equal(t, float64(3), value(FeedClients))
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()
	RecordRaceCreated()

	handler := Handler()
	require.NotNil(t, handler)
	assert.Implements(t, (*http.Handler)(nil), handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "paddock_races_created_total"))
}

func BenchmarkRecordTick(b *testing.B) {
	InitRegistry()

	for i := 0; i < b.N; i++ {
		RecordTick(0.0001)
	}
}
