// Package repository persists races, competitors, wagers, results and game history.
//
// Three stores implement Store: MemoryStore for tests and single-process play,
// SQLiteStore for a single node, PostgresStore for production.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/paddock/internal/models"
)

// RaceRepository defines operations for race data
type RaceRepository interface {
	// CreateRace stores a pending race and assigns its sequence number
	CreateRace(ctx context.Context, race *models.Race) error
	GetRace(ctx context.Context, id uuid.UUID) (*models.Race, error)
	// ListRaces returns the most recent races, newest first
	ListRaces(ctx context.Context, limit int) ([]*models.Race, error)
	// TransitionRace moves a race from one status to the next.
	// It returns models.ErrStaleTransition when the race is no longer in from.
	// Completion is only reachable through CommitSettlement.
	TransitionRace(ctx context.Context, id uuid.UUID, from, to models.RaceStatus, at time.Time) error
}

// CompetitorRepository defines operations for the competitor roster
type CompetitorRepository interface {
	CreateCompetitor(ctx context.Context, c *models.Competitor) error
	GetCompetitor(ctx context.Context, id uuid.UUID) (*models.Competitor, error)
	// ListCompetitors returns the roster in entry order
	ListCompetitors(ctx context.Context) ([]*models.Competitor, error)
}

// WagerRepository defines operations for wagers
type WagerRepository interface {
	// CreateWager stores a wager. It returns models.ErrRaceClosed when the race
	// no longer accepts wagers at the moment of the write.
	CreateWager(ctx context.Context, w *models.Wager) error
	// ListWagersByRace returns the wagers of a race in placement order
	ListWagersByRace(ctx context.Context, raceID uuid.UUID) ([]*models.Wager, error)
}

// RaceResultRepository reads settled results
type RaceResultRepository interface {
	// ListResultsByRace returns results ordered by rank
	ListResultsByRace(ctx context.Context, raceID uuid.UUID) ([]models.RaceResult, error)
}

// SettlementCommitter writes a settlement atomically
type SettlementCommitter interface {
	// CommitSettlement inserts the results, completes the race and fixes every wager payout
	// in one unit. It returns models.ErrAlreadySettled when the race is already completed
	// and models.ErrStaleTransition when the race is not running.
	CommitSettlement(ctx context.Context, s *models.Settlement) error
}

// GameHistoryRepository records slot and dice rounds
type GameHistoryRepository interface {
	SaveSpin(ctx context.Context, spin *models.SpinResult) error
	RecentSpins(ctx context.Context, limit int) ([]*models.SpinResult, error)
	SaveDiceRoll(ctx context.Context, roll *models.DiceRoll) error
	RecentDiceRolls(ctx context.Context, limit int) ([]*models.DiceRoll, error)
}

// Store is the full persistence capability used by the game server
type Store interface {
	RaceRepository
	CompetitorRepository
	WagerRepository
	RaceResultRepository
	SettlementCommitter
	GameHistoryRepository

	Ping(ctx context.Context) error
	Close() error
}

const defaultListLimit = 50

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultListLimit
	}
	return limit
}

// checkTransition rejects transitions that skip, reverse, or complete a race outside settlement
func checkTransition(from, to models.RaceStatus) error {
	if !from.CanTransitionTo(to) || to == models.RaceStatusCompleted {
		return models.NewValidationError("invalid_transition", "race cannot move from "+string(from)+" to "+string(to))
	}
	return nil
}

// checkSettlement validates the shape of a settlement before any write
func checkSettlement(s *models.Settlement) error {
	if len(s.Results) == 0 {
		return models.NewValidationError("invalid_settlement", "settlement has no results")
	}
	ranks := make(map[int]bool, len(s.Results))
	competitors := make(map[uuid.UUID]bool, len(s.Results))
	winnerRanked := false
	for _, r := range s.Results {
		if r.RaceID != s.RaceID {
			return models.NewValidationError("invalid_settlement", "result belongs to another race")
		}
		if r.Rank < 1 || r.Rank > len(s.Results) || ranks[r.Rank] {
			return models.NewValidationError("invalid_settlement", "ranks must be unique and 1-based")
		}
		if competitors[r.CompetitorID] {
			return models.NewValidationError("invalid_settlement", "competitor ranked twice")
		}
		ranks[r.Rank] = true
		competitors[r.CompetitorID] = true
		if r.Rank == 1 && r.CompetitorID == s.WinnerID {
			winnerRanked = true
		}
	}
	if !winnerRanked {
		return models.NewValidationError("invalid_settlement", "winner must hold rank 1")
	}
	for _, p := range s.Payouts {
		if p.Amount.IsNegative() {
			return models.NewValidationError("invalid_settlement", "payout must not be negative")
		}
	}
	return nil
}
