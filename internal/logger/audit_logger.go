package logger

import (
	"io"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/paddock/internal/models"
)

// AuditLogger provides dedicated audit trail logging for money movements and race transitions.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// LogWagerPlaced logs an accepted wager with its odds snapshot.
func (al *AuditLogger) LogWagerPlaced(w *models.Wager) {
	al.WithFields(logrus.Fields{
		"wager_id":      w.ID.String(),
		"race_id":       w.RaceID.String(),
		"competitor_id": w.CompetitorID.String(),
		"bettor":        w.Bettor,
		"stake":         w.Stake.String(),
		"odds":          w.Odds.String(),
		"placed_at":     w.PlacedAt.Unix(),
	}).Info("Wager placement recorded")
}

// LogRaceTransition logs a race status change.
func (al *AuditLogger) LogRaceTransition(race *models.Race, from, to models.RaceStatus) {
	al.WithFields(logrus.Fields{
		"race_id":   race.ID.String(),
		"sequence":  race.Sequence,
		"old_state": string(from),
		"new_state": string(to),
	}).Info("Race state changed")
}

// LogSettlement logs a committed settlement.
func (al *AuditLogger) LogSettlement(s *models.Settlement) {
	winners := 0
	for _, p := range s.Payouts {
		if p.Amount.IsPositive() {
			winners++
		}
	}
	al.WithFields(logrus.Fields{
		"race_id":        s.RaceID.String(),
		"winner_id":      s.WinnerID.String(),
		"competitors":    len(s.Results),
		"wagers_settled": len(s.Payouts),
		"winning_wagers": winners,
		"total_paid":     s.TotalPaid().String(),
		"completed_at":   s.CompletedAt.Unix(),
	}).Info("Race settlement recorded")
}

// LogRaceCancelled logs a race whose loop was stopped without settlement.
func (al *AuditLogger) LogRaceCancelled(raceID, reason string) {
	al.WithFields(logrus.Fields{
		"race_id": raceID,
		"reason":  reason,
	}).Warn("Race cancelled without settlement")
}

// LogGamePlayed logs a slot spin or dice roll against a player's credits.
func (al *AuditLogger) LogGamePlayed(game, player string, bet, win, balance decimal.Decimal) {
	al.WithFields(logrus.Fields{
		"game":    game,
		"player":  player,
		"bet":     bet.String(),
		"win":     win.String(),
		"balance": balance.String(),
	}).Info("Game round recorded")
}
