// Package scheduler opens races on a cron cadence and starts them when the betting window closes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/paddock/internal/logger"
	"github.com/yourusername/paddock/internal/models"
)

// RaceRunner creates and starts races
type RaceRunner interface {
	CreateRace(ctx context.Context) (*models.Race, error)
	StartRace(ctx context.Context, raceID uuid.UUID) (*models.Race, error)
}

// Scheduler manages the race cadence
type Scheduler struct {
	cron    *cron.Cron
	runner  RaceRunner
	log     *logrus.Entry
	mu      sync.RWMutex
	running bool
	jobIDs  []cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. Cycles never overlap: a tick that fires while
// the previous betting window is still open is skipped.
func NewScheduler(runner RaceRunner, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	entry := logger.Component(log, "scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(entry))),
		),
		runner: runner,
		log:    entry,
		jobIDs: make([]cron.EntryID, 0),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ScheduleRaces opens a race on every tick of spec and starts it after bettingWindow
func (s *Scheduler) ScheduleRaces(spec string, bettingWindow time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if bettingWindow < 0 {
		return fmt.Errorf("betting window cannot be negative")
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		s.wg.Add(1)
		defer s.wg.Done()
		if _, err := s.RunCycle(s.ctx, bettingWindow); err != nil && !errors.Is(err, context.Canceled) {
			s.log.WithError(err).Warn("Scheduled race cycle failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.log.WithFields(logrus.Fields{
		"schedule":       spec,
		"betting_window": bettingWindow.String(),
	}).Info("Scheduled race cadence")

	return nil
}

// RunCycle creates a race, keeps it open for wagers during bettingWindow, then starts it.
// If another race still holds the track the new race stays pending and the error is returned.
func (s *Scheduler) RunCycle(ctx context.Context, bettingWindow time.Duration) (*models.Race, error) {
	r, err := s.runner.CreateRace(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduled race: %w", err)
	}
	log := s.log.WithField("race_id", r.ID.String())
	log.WithField("betting_window", bettingWindow.String()).Info("Betting open")

	if bettingWindow > 0 {
		timer := time.NewTimer(bettingWindow)
		select {
		case <-ctx.Done():
			timer.Stop()
			return r, ctx.Err()
		case <-timer.C:
		}
	}

	started, err := s.runner.StartRace(ctx, r.ID)
	if err != nil {
		return r, fmt.Errorf("failed to start scheduled race %s: %w", r.ID, err)
	}
	log.Info("Betting closed, race started")
	return started, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.running = true
	s.log.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop cancels any open betting window and waits for in-flight cycles
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.running = false
	s.log.Info("Scheduler stopped")

	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// NextRun returns when the next race opens, or the zero time when stopped
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return time.Time{}
	}

	next := time.Time{}
	for _, id := range s.jobIDs {
		entry := s.cron.Entry(id)
		if entry.Valid() && (next.IsZero() || entry.Next.Before(next)) {
			next = entry.Next
		}
	}
	return next
}
