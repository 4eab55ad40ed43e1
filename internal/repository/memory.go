package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourusername/paddock/internal/models"
)

// ErrUnsettledWagers is returned when a settlement does not fix the payout of every wager of its race
var ErrUnsettledWagers = errors.New("settlement does not cover every wager of the race")

// MemoryStore keeps everything in process memory behind a single lock
type MemoryStore struct {
	mu          sync.RWMutex
	sequence    int64
	races       map[uuid.UUID]*models.Race
	raceOrder   []uuid.UUID
	competitors map[uuid.UUID]*models.Competitor
	roster      []uuid.UUID
	wagers      map[uuid.UUID]*models.Wager
	raceWagers  map[uuid.UUID][]uuid.UUID
	results     map[uuid.UUID][]models.RaceResult
	spins       []*models.SpinResult
	rolls       []*models.DiceRoll
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		races:       make(map[uuid.UUID]*models.Race),
		competitors: make(map[uuid.UUID]*models.Competitor),
		wagers:      make(map[uuid.UUID]*models.Wager),
		raceWagers:  make(map[uuid.UUID][]uuid.UUID),
		results:     make(map[uuid.UUID][]models.RaceResult),
	}
}

// CreateRace stores a pending race and assigns its sequence number
func (s *MemoryStore) CreateRace(_ context.Context, race *models.Race) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.races[race.ID]; exists {
		return models.ErrDuplicateKey
	}
	s.sequence++
	race.Sequence = s.sequence
	s.races[race.ID] = cloneRace(race)
	s.raceOrder = append(s.raceOrder, race.ID)
	return nil
}

// GetRace retrieves a race by ID
func (s *MemoryStore) GetRace(_ context.Context, id uuid.UUID) (*models.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	race, ok := s.races[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneRace(race), nil
}

// ListRaces returns the most recent races, newest first
func (s *MemoryStore) ListRaces(_ context.Context, limit int) ([]*models.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = normalizeLimit(limit)
	races := make([]*models.Race, 0, limit)
	for i := len(s.raceOrder) - 1; i >= 0 && len(races) < limit; i-- {
		races = append(races, cloneRace(s.races[s.raceOrder[i]]))
	}
	return races, nil
}

// TransitionRace moves a race between statuses
func (s *MemoryStore) TransitionRace(_ context.Context, id uuid.UUID, from, to models.RaceStatus, at time.Time) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	race, ok := s.races[id]
	if !ok {
		return models.ErrNotFound
	}
	if race.Status != from {
		return models.ErrStaleTransition
	}
	race.Status = to
	if to == models.RaceStatusRunning {
		started := at
		race.StartedAt = &started
	}
	return nil
}

// CreateCompetitor adds a competitor to the roster
func (s *MemoryStore) CreateCompetitor(_ context.Context, c *models.Competitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.competitors[c.ID]; exists {
		return models.ErrDuplicateKey
	}
	copied := *c
	s.competitors[c.ID] = &copied
	s.roster = append(s.roster, c.ID)
	return nil
}

// GetCompetitor retrieves a competitor by ID
func (s *MemoryStore) GetCompetitor(_ context.Context, id uuid.UUID) (*models.Competitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.competitors[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

// ListCompetitors returns the roster in entry order
func (s *MemoryStore) ListCompetitors(_ context.Context) ([]*models.Competitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Competitor, 0, len(s.roster))
	for _, id := range s.roster {
		copied := *s.competitors[id]
		out = append(out, &copied)
	}
	return out, nil
}

// CreateWager stores a wager while its race accepts wagers
func (s *MemoryStore) CreateWager(_ context.Context, w *models.Wager) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	race, ok := s.races[w.RaceID]
	if !ok {
		return models.ErrNotFound
	}
	if _, ok := s.competitors[w.CompetitorID]; !ok {
		return models.ErrNotFound
	}
	if !race.AcceptsWagers() {
		return models.ErrRaceClosed
	}
	if _, exists := s.wagers[w.ID]; exists {
		return models.ErrDuplicateKey
	}
	s.wagers[w.ID] = cloneWager(w)
	s.raceWagers[w.RaceID] = append(s.raceWagers[w.RaceID], w.ID)
	return nil
}

// ListWagersByRace returns the wagers of a race in placement order
func (s *MemoryStore) ListWagersByRace(_ context.Context, raceID uuid.UUID) ([]*models.Wager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.raceWagers[raceID]
	out := make([]*models.Wager, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneWager(s.wagers[id]))
	}
	return out, nil
}

// ListResultsByRace returns results ordered by rank
func (s *MemoryStore) ListResultsByRace(_ context.Context, raceID uuid.UUID) ([]models.RaceResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := append([]models.RaceResult(nil), s.results[raceID]...)
	sort.Slice(results, func(i, j int) bool { return results[i].Rank < results[j].Rank })
	return results, nil
}

// CommitSettlement applies a settlement under the store lock. Nothing is written unless every check passes.
func (s *MemoryStore) CommitSettlement(_ context.Context, st *models.Settlement) error {
	if err := checkSettlement(st); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	race, ok := s.races[st.RaceID]
	if !ok {
		return models.ErrNotFound
	}
	switch race.Status {
	case models.RaceStatusCompleted:
		return models.ErrAlreadySettled
	case models.RaceStatusRunning:
	default:
		return models.ErrStaleTransition
	}
	if len(s.results[st.RaceID]) > 0 {
		return models.ErrDuplicateKey
	}

	payouts := make(map[uuid.UUID]decimal.Decimal, len(st.Payouts))
	for _, p := range st.Payouts {
		w, ok := s.wagers[p.WagerID]
		if !ok || w.RaceID != st.RaceID {
			return models.ErrNotFound
		}
		if w.IsSettled() {
			return models.ErrAlreadySettled
		}
		payouts[p.WagerID] = p.Amount
	}
	if len(payouts) != len(s.raceWagers[st.RaceID]) {
		return ErrUnsettledWagers
	}

	s.results[st.RaceID] = append([]models.RaceResult(nil), st.Results...)

	winner := st.WinnerID
	completed := st.CompletedAt
	race.Status = models.RaceStatusCompleted
	race.WinnerID = &winner
	race.CompletedAt = &completed

	for id, amount := range payouts {
		w := s.wagers[id]
		paid := amount
		settled := st.CompletedAt
		w.Payout = &paid
		w.SettledAt = &settled
	}
	return nil
}

// SaveSpin records a slot spin
func (s *MemoryStore) SaveSpin(_ context.Context, spin *models.SpinResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *spin
	copied.Symbols = append([]string(nil), spin.Symbols...)
	s.spins = append(s.spins, &copied)
	return nil
}

// RecentSpins returns the latest spins, newest first
func (s *MemoryStore) RecentSpins(_ context.Context, limit int) ([]*models.SpinResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = normalizeLimit(limit)
	out := make([]*models.SpinResult, 0, limit)
	for i := len(s.spins) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *s.spins[i]
		copied.Symbols = append([]string(nil), s.spins[i].Symbols...)
		out = append(out, &copied)
	}
	return out, nil
}

// SaveDiceRoll records a dice roll
func (s *MemoryStore) SaveDiceRoll(_ context.Context, roll *models.DiceRoll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *roll
	s.rolls = append(s.rolls, &copied)
	return nil
}

// RecentDiceRolls returns the latest rolls, newest first
func (s *MemoryStore) RecentDiceRolls(_ context.Context, limit int) ([]*models.DiceRoll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = normalizeLimit(limit)
	out := make([]*models.DiceRoll, 0, limit)
	for i := len(s.rolls) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *s.rolls[i]
		out = append(out, &copied)
	}
	return out, nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

func cloneRace(r *models.Race) *models.Race {
	copied := *r
	if r.WinnerID != nil {
		winner := *r.WinnerID
		copied.WinnerID = &winner
	}
	if r.StartedAt != nil {
		started := *r.StartedAt
		copied.StartedAt = &started
	}
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		copied.CompletedAt = &completed
	}
	return &copied
}

func cloneWager(w *models.Wager) *models.Wager {
	copied := *w
	if w.Payout != nil {
		payout := *w.Payout
		copied.Payout = &payout
	}
	if w.SettledAt != nil {
		settled := *w.SettledAt
		copied.SettledAt = &settled
	}
	return &copied
}
