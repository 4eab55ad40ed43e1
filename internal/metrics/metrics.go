// Package metrics provides the centralized Prometheus metrics registry for the game server.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paddock"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RacesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "races_created_total",
		Help:      "Total number of races created",
	})
	RacesStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "races_started_total",
		Help:      "Total number of races started",
	})
	RacesCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "races_completed_total",
		Help:      "Total number of races settled",
	})
	RacesCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "races_cancelled_total",
		Help:      "Total number of races cancelled mid-flight",
	})
	WagersPlacedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wagers_placed_total",
		Help:      "Total number of wagers accepted",
	})
	WagersRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wagers_rejected_total",
		Help:      "Total number of wagers rejected by reason",
	}, []string{"reason"})
	SettlementFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlement_failures_total",
		Help:      "Total number of settlement attempts that failed to persist",
	})
)

// Money and occupancy
var (
	StakedAmount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "staked_amount_total",
		Help:      "Total amount staked on races",
	})
	PaidOutAmount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "paid_out_amount_total",
		Help:      "Total amount paid out on settled races",
	})
	RaceRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "race_running",
		Help:      "1 while a race loop is active",
	})
)

// Histogram metrics
var (
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "race_tick_duration_seconds",
		Help:      "Time spent advancing the simulator per tick",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})
	RaceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "race_duration_seconds",
		Help:      "Simulated seconds from start until the last competitor finished",
		Buckets:   []float64{5, 10, 20, 30, 45, 60, 90, 120},
	})
	SettlementLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "settlement_latency_seconds",
		Help:      "Latency of committing a race settlement",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(RacesCreatedTotal)
		registry.MustRegister(RacesStartedTotal)
		registry.MustRegister(RacesCompletedTotal)
		registry.MustRegister(RacesCancelledTotal)
		registry.MustRegister(WagersPlacedTotal)
		registry.MustRegister(WagersRejectedTotal)
		registry.MustRegister(SettlementFailuresTotal)

		registry.MustRegister(StakedAmount)
		registry.MustRegister(PaidOutAmount)
		registry.MustRegister(RaceRunning)

		registry.MustRegister(TickDuration)
		registry.MustRegister(RaceDuration)
		registry.MustRegister(SettlementLatency)

		registry.MustRegister(SlotSpinsTotal)
		registry.MustRegister(DiceRollsTotal)
		registry.MustRegister(GameWinningsTotal)
		registry.MustRegister(WalletCreditsTotal)
		registry.MustRegister(WalletDebitsTotal)
		registry.MustRegister(EventsPublishedTotal)
		registry.MustRegister(FeedClients)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordRaceCreated records a new pending race.
func RecordRaceCreated() {
	RacesCreatedTotal.Inc()
}

// RecordRaceStarted records a race entering the track.
func RecordRaceStarted() {
	RacesStartedTotal.Inc()
	RaceRunning.Set(1)
}

// RecordRaceCompleted records a settled race and how long it ran in simulated seconds.
func RecordRaceCompleted(simulatedSeconds, paidOut float64) {
	RacesCompletedTotal.Inc()
	RaceRunning.Set(0)
	RaceDuration.Observe(simulatedSeconds)
	if paidOut > 0 {
		PaidOutAmount.Add(paidOut)
	}
}

// RecordRaceCancelled records a race stopped without settlement.
func RecordRaceCancelled() {
	RacesCancelledTotal.Inc()
	RaceRunning.Set(0)
}

// RecordWagerPlaced records an accepted wager.
func RecordWagerPlaced(stake float64) {
	WagersPlacedTotal.Inc()
	if stake > 0 {
		StakedAmount.Add(stake)
	}
}

// RecordWagerRejected records a rejected wager by reason (validation, state, persistence).
func RecordWagerRejected(reason string) {
	WagersRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordTick records the time spent in a single simulator advance.
func RecordTick(durationSeconds float64) {
	TickDuration.Observe(durationSeconds)
}

// RecordSettlement records a settlement attempt.
func RecordSettlement(durationSeconds float64, err error) {
	SettlementLatency.Observe(durationSeconds)
	if err != nil {
		SettlementFailuresTotal.Inc()
	}
}
