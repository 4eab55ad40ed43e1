package metrics

import "github.com/prometheus/client_golang/prometheus"

// Side game and integration counters
var (
	SlotSpinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slot_spins_total",
		Help:      "Total number of slot spins by outcome",
	}, []string{"outcome"})

	DiceRollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dice_rolls_total",
		Help:      "Total number of dice rolls by outcome",
	}, []string{"outcome"})

	GameWinningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "game_winnings_total",
		Help:      "Credits paid out by game",
	}, []string{"game"})

	WalletCreditsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_credits_total",
		Help:      "Payout credits sent to the external wallet by status",
	}, []string{"status"})

	WalletDebitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_debits_total",
		Help:      "Wager stakes debited from the external wallet by status",
	}, []string{"status"})

	EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Race events published by sink and status",
	}, []string{"sink", "status"})
)

// FeedClients tracks connected live feed websockets
var FeedClients = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "feed_clients",
	Help:      "Number of connected live feed clients",
})

func outcome(won bool) string {
	if won {
		return "win"
	}
	return "loss"
}

// RecordSlotSpin records a slot spin and its winnings.
func RecordSlotSpin(won bool, winnings float64) {
	SlotSpinsTotal.WithLabelValues(outcome(won)).Inc()
	if winnings > 0 {
		GameWinningsTotal.WithLabelValues("slots").Add(winnings)
	}
}

// RecordDiceRoll records a dice roll and its payout.
func RecordDiceRoll(won bool, payout float64) {
	DiceRollsTotal.WithLabelValues(outcome(won)).Inc()
	if payout > 0 {
		GameWinningsTotal.WithLabelValues("dice").Add(payout)
	}
}

// RecordWalletCredit records the result of crediting a payout to the wallet.
func RecordWalletCredit(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	WalletCreditsTotal.WithLabelValues(status).Inc()
}

// RecordWalletDebit records the result of debiting a wager stake from the wallet.
func RecordWalletDebit(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	WalletDebitsTotal.WithLabelValues(status).Inc()
}

// RecordEventPublished records a publish attempt on an event sink.
func RecordEventPublished(sink string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	EventsPublishedTotal.WithLabelValues(sink, status).Inc()
}

// SetFeedClients updates the connected feed clients gauge.
func SetFeedClients(n int) {
	FeedClients.Set(float64(n))
}
