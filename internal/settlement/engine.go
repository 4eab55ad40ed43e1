// Package settlement fixes race results and wager payouts once a race finishes.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/paddock/internal/logger"
	"github.com/yourusername/paddock/internal/metrics"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/race"
)

// Store is the persistence the engine needs
type Store interface {
	GetRace(ctx context.Context, id uuid.UUID) (*models.Race, error)
	ListWagersByRace(ctx context.Context, raceID uuid.UUID) ([]*models.Wager, error)
	CommitSettlement(ctx context.Context, s *models.Settlement) error
}

// Outcome reports what a Settle call did
type Outcome struct {
	Settlement *models.Settlement
	// AlreadySettled is set when the race was completed before this call; nothing was written
	AlreadySettled bool
}

// Engine settles finished races
type Engine struct {
	store Store
	now   func() time.Time
	log   *logrus.Entry
	audit *logger.AuditLogger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the completion timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger routes engine and audit logs to log
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) {
		e.log = logger.Component(log, "settlement")
		e.audit = logger.NewAuditLogger(log)
	}
}

// NewEngine creates a settlement engine over store
func NewEngine(store Store, opts ...Option) *Engine {
	nop := logger.NewNopLogger()
	e := &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   logger.Component(nop, "settlement"),
		audit: logger.NewAuditLogger(nop),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build computes the settlement of a race from its finish order and wagers.
// Rank is the 1-based position in order; the winner holds rank 1. Winning wagers
// pay stake times their odds snapshot, every other wager pays zero.
func Build(raceID uuid.UUID, order []race.Finish, wagers []*models.Wager, completedAt time.Time) (*models.Settlement, error) {
	if len(order) == 0 {
		return nil, models.NewValidationError("empty_field", "cannot settle a race without finishers")
	}

	s := &models.Settlement{
		RaceID:      raceID,
		WinnerID:    order[0].CompetitorID,
		CompletedAt: completedAt,
		Results:     make([]models.RaceResult, 0, len(order)),
		Payouts:     make([]models.WagerPayout, 0, len(wagers)),
	}

	seen := make(map[uuid.UUID]bool, len(order))
	for i, f := range order {
		if seen[f.CompetitorID] {
			return nil, models.NewValidationError("duplicate_finisher", "competitor "+f.CompetitorID.String()+" finished twice")
		}
		seen[f.CompetitorID] = true
		s.Results = append(s.Results, models.RaceResult{
			RaceID:       raceID,
			CompetitorID: f.CompetitorID,
			Rank:         i + 1,
			FinishTime:   f.Time,
		})
	}

	for _, w := range wagers {
		if w.RaceID != raceID {
			return nil, models.NewValidationError("foreign_wager", "wager "+w.ID.String()+" belongs to another race")
		}
		amount := decimal.Zero
		if w.CompetitorID == s.WinnerID {
			amount = w.PotentialPayout()
		}
		s.Payouts = append(s.Payouts, models.WagerPayout{WagerID: w.ID, Amount: amount})
	}

	return s, nil
}

// Settle completes a running race. Settling an already completed race is a no-op.
// Store failures come back as PersistenceError with the race still running, so the call may be repeated.
func (e *Engine) Settle(ctx context.Context, raceID uuid.UUID, order []race.Finish) (out *Outcome, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordSettlement(time.Since(start).Seconds(), err)
	}()

	current, err := e.store.GetRace(ctx, raceID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("settle race %s: %w", raceID, err)
		}
		return nil, models.NewPersistenceError("get race", err)
	}

	switch current.Status {
	case models.RaceStatusCompleted:
		e.log.WithField("race_id", raceID.String()).Debug("Race already settled, skipping")
		return &Outcome{AlreadySettled: true}, nil
	case models.RaceStatusRunning:
	default:
		return nil, models.NewStateError(raceID, current.Status, "settle")
	}

	wagers, err := e.store.ListWagersByRace(ctx, raceID)
	if err != nil {
		return nil, models.NewPersistenceError("list wagers", err)
	}

	s, err := Build(raceID, order, wagers, e.now())
	if err != nil {
		return nil, err
	}

	if err := e.store.CommitSettlement(ctx, s); err != nil {
		switch {
		case errors.Is(err, models.ErrAlreadySettled):
			e.log.WithField("race_id", raceID.String()).Info("Race settled concurrently, skipping")
			return &Outcome{AlreadySettled: true}, nil
		case errors.Is(err, models.ErrStaleTransition):
			stateErr := models.NewStateError(raceID, current.Status, "settle")
			stateErr.Cause = err
			return nil, stateErr
		case models.IsValidation(err):
			return nil, err
		}
		e.log.WithFields(logrus.Fields{
			"race_id": raceID.String(),
			"error":   err.Error(),
		}).Error("Failed to commit settlement")
		return nil, models.NewPersistenceError("commit settlement", err)
	}

	e.audit.LogSettlement(s)
	e.log.WithFields(logrus.Fields{
		"race_id":    raceID.String(),
		"winner_id":  s.WinnerID.String(),
		"wagers":     len(s.Payouts),
		"total_paid": s.TotalPaid().String(),
	}).Info("Race settled")

	return &Outcome{Settlement: s}, nil
}
