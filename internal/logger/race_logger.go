package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// RaceLogger provides dedicated logging for the race loop.
type RaceLogger struct {
	*logrus.Entry
}

// NewRaceLogger creates a new race logger.
func NewRaceLogger(baseLogger *logrus.Logger) *RaceLogger {
	return &RaceLogger{
		Entry: baseLogger.WithField("component", "race"),
	}
}

// LogRaceStarted logs the field entering the track.
func (rl *RaceLogger) LogRaceStarted(raceID string, sequence int64, fieldSize int, baseSpeeds map[string]float64) {
	rl.WithFields(logrus.Fields{
		"race_id":     raceID,
		"sequence":    sequence,
		"field_size":  fieldSize,
		"base_speeds": baseSpeeds,
	}).Info("Race started")
}

// LogRaceFinished logs the finishing order and how long the loop ran.
func (rl *RaceLogger) LogRaceFinished(raceID string, order []string, ticks int, wallTime time.Duration) {
	rl.WithFields(logrus.Fields{
		"race_id":      raceID,
		"finish_order": order,
		"ticks":        ticks,
		"wall_time_ms": wallTime.Milliseconds(),
	}).Info("Race finished")
}

// LogSettlementFailed logs a settlement that must be retried.
func (rl *RaceLogger) LogSettlementFailed(raceID string, err error) {
	rl.WithFields(logrus.Fields{
		"race_id": raceID,
		"error":   err.Error(),
	}).Error("Race settlement failed, race left running")
}
