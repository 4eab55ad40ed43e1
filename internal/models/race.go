package models

import (
	"time"

	"github.com/google/uuid"
)

// RaceStatus is the lifecycle state of a race
type RaceStatus string

const (
	RaceStatusPending   RaceStatus = "pending"
	RaceStatusRunning   RaceStatus = "running"
	RaceStatusCompleted RaceStatus = "completed"
)

// CanTransitionTo reports whether next directly follows s. Transitions never go backwards.
func (s RaceStatus) CanTransitionTo(next RaceStatus) bool {
	switch s {
	case RaceStatusPending:
		return next == RaceStatusRunning
	case RaceStatusRunning:
		return next == RaceStatusCompleted
	default:
		return false
	}
}

// Valid reports whether s is a known status
func (s RaceStatus) Valid() bool {
	switch s {
	case RaceStatusPending, RaceStatusRunning, RaceStatusCompleted:
		return true
	default:
		return false
	}
}

// Race represents a single race instance
type Race struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Sequence    int64      `db:"sequence" json:"sequence"`
	Status      RaceStatus `db:"status" json:"status"`
	WinnerID    *uuid.UUID `db:"winner_id" json:"winner_id,omitempty"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// NewRace creates a pending race. The store assigns the sequence number.
func NewRace() *Race {
	return &Race{
		ID:        uuid.New(),
		Status:    RaceStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// AcceptsWagers reports whether wagers may still be placed on the race
func (r *Race) AcceptsWagers() bool {
	return r.Status == RaceStatusPending || r.Status == RaceStatusRunning
}

// IsCompleted checks if the race has been settled
func (r *Race) IsCompleted() bool {
	return r.Status == RaceStatusCompleted && r.CompletedAt != nil
}
