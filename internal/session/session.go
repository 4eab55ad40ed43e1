// Package session owns each player's credit balance.
//
// A Session is mutated only through transition functions that either apply in full
// and return a new Snapshot, or fail and leave the balance untouched.
package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourusername/paddock/internal/models"
)

// Snapshot is an immutable view of a session after a transition
type Snapshot struct {
	Player    string          `json:"player"`
	Credits   decimal.Decimal `json:"credits"`
	Rounds    int             `json:"rounds"`
	LastStake decimal.Decimal `json:"last_stake"`
	LastWin   decimal.Decimal `json:"last_win"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Round plays one game against the stake already reserved and returns the winnings.
// Returning an error rolls the round back.
type Round func() (win decimal.Decimal, err error)

// Session holds one player's credits
type Session struct {
	mu   sync.Mutex
	snap Snapshot
	now  func() time.Time
}

func newSession(player string, credits decimal.Decimal, now func() time.Time) *Session {
	return &Session{
		snap: Snapshot{
			Player:    player,
			Credits:   credits,
			LastStake: decimal.Zero,
			LastWin:   decimal.Zero,
			UpdatedAt: now(),
		},
		now: now,
	}
}

// Snapshot returns the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Play debits stake, runs round and credits its winnings as one transition.
// Rounds of the same session never interleave.
func (s *Session) Play(stake decimal.Decimal, round Round) (Snapshot, error) {
	if !stake.IsPositive() {
		return s.Snapshot(), models.NewValidationError("invalid_stake", "stake must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Credits.LessThan(stake) {
		return s.snap, insufficient(s.snap.Credits, stake)
	}
	win, err := round()
	if err != nil {
		return s.snap, err
	}
	if win.IsNegative() {
		win = decimal.Zero
	}

	next := s.snap
	next.Credits = next.Credits.Sub(stake).Add(win)
	next.Rounds++
	next.LastStake = stake
	next.LastWin = win
	next.Version++
	next.UpdatedAt = s.now()
	s.snap = next
	return next, nil
}

// Deposit adds credits outside of a round, e.g. a settled race payout
func (s *Session) Deposit(amount decimal.Decimal) (Snapshot, error) {
	if !amount.IsPositive() {
		return s.Snapshot(), models.NewValidationError("invalid_amount", "deposit must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap
	next.Credits = next.Credits.Add(amount)
	next.Version++
	next.UpdatedAt = s.now()
	s.snap = next
	return next, nil
}

// Withdraw takes credits outside of a round, e.g. a race wager stake
func (s *Session) Withdraw(amount decimal.Decimal) (Snapshot, error) {
	if !amount.IsPositive() {
		return s.Snapshot(), models.NewValidationError("invalid_amount", "withdrawal must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Credits.LessThan(amount) {
		return s.snap, insufficient(s.snap.Credits, amount)
	}
	next := s.snap
	next.Credits = next.Credits.Sub(amount)
	next.Version++
	next.UpdatedAt = s.now()
	s.snap = next
	return next, nil
}

func insufficient(have, want decimal.Decimal) error {
	return models.NewValidationError("insufficient_credits",
		"stake "+want.String()+" exceeds available credits "+have.String())
}

// Registry tracks the sessions of every player seen so far
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	starting decimal.Decimal
	now      func() time.Time
}

// NewRegistry creates a registry whose new sessions start with startingCredits
func NewRegistry(startingCredits decimal.Decimal) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		starting: startingCredits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the player's session, opening one with the starting credits on first use
func (r *Registry) Get(player string) (*Session, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return nil, models.NewValidationError("invalid_player", "player is required")
	}

	r.mu.RLock()
	s, ok := r.sessions[player]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[player]; ok {
		return s, nil
	}
	s = newSession(player, r.starting, r.now)
	r.sessions[player] = s
	return s, nil
}

// Reset replaces the player's session with a fresh one
func (r *Registry) Reset(player string) (Snapshot, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return Snapshot{}, models.NewValidationError("invalid_player", "player is required")
	}
	s := newSession(player, r.starting, r.now)

	r.mu.Lock()
	r.sessions[player] = s
	r.mu.Unlock()
	return s.Snapshot(), nil
}

// Snapshots lists every session ordered by player
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Player < out[j].Player })
	return out
}

// Debit takes a race wager stake from the bettor's session. Together with Credit it
// lets the registry stand in for an external wallet.
func (r *Registry) Debit(_ context.Context, bettor string, amount decimal.Decimal, _ string) error {
	s, err := r.Get(bettor)
	if err != nil {
		return err
	}
	_, err = s.Withdraw(amount)
	return err
}

// Credit deposits a race payout, or a returned stake, into the bettor's session
func (r *Registry) Credit(_ context.Context, bettor string, amount decimal.Decimal, _ string) error {
	s, err := r.Get(bettor)
	if err != nil {
		return err
	}
	_, err = s.Deposit(amount)
	return err
}
