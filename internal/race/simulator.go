package race

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/rng"
)

// State of the simulation
type State string

const (
	StateAdvancing State = "advancing"
	StateFinished  State = "finished"
)

// Config holds the track and fatigue parameters
type Config struct {
	TrackLength  float64 `json:"track_length"`
	StepDistance float64 `json:"step_distance"`
	GracePeriod  float64 `json:"grace_period"`
	FatigueFloor float64 `json:"fatigue_floor"`
	StaminaPivot float64 `json:"stamina_pivot"`
	Jitter       float64 `json:"jitter"`
}

// DefaultConfig returns the standard track: 80 units between the start and finish posts
func DefaultConfig() Config {
	return Config{
		TrackLength:  80,
		StepDistance: 0.1,
		GracePeriod:  5,
		FatigueFloor: 0.3,
		StaminaPivot: 12,
		Jitter:       0.01,
	}
}

// Validate checks the parameters keep the simulation terminating
func (c Config) Validate() error {
	switch {
	case c.TrackLength <= 0:
		return models.NewValidationError("invalid_race_config", "track length must be positive")
	case c.StepDistance <= 0:
		return models.NewValidationError("invalid_race_config", "step distance must be positive")
	case c.GracePeriod < 0:
		return models.NewValidationError("invalid_race_config", "grace period cannot be negative")
	case c.FatigueFloor <= 0 || c.FatigueFloor > 1:
		return models.NewValidationError("invalid_race_config", "fatigue floor must be in (0, 1]")
	case c.StaminaPivot <= 0:
		return models.NewValidationError("invalid_race_config", "stamina pivot must be positive")
	case c.Jitter < 0:
		return models.NewValidationError("invalid_race_config", "jitter cannot be negative")
	}
	return nil
}

// FatigueFactor is 1 during the grace period, then decays linearly with a slope set by stamina.
// Stamina above the pivot makes the factor grow past 1; there is no ceiling.
func (c Config) FatigueFactor(stamina, elapsed float64) float64 {
	if elapsed <= c.GracePeriod {
		return 1
	}
	return 1 - (elapsed-c.GracePeriod)*(1-stamina/c.StaminaPivot)
}

// EffectiveSpeed applies fatigue to the base speed, never dropping below the floor
func (c Config) EffectiveSpeed(baseSpeed, stamina, elapsed float64) float64 {
	return baseSpeed * math.Max(c.FatigueFloor, c.FatigueFactor(stamina, elapsed))
}

// Entrant is a competitor with the base speed drawn for this race
type Entrant struct {
	CompetitorID uuid.UUID `json:"competitor_id"`
	Stamina      float64   `json:"stamina"`
	BaseSpeed    float64   `json:"base_speed"`
}

// Finish records when a competitor crossed the line
type Finish struct {
	CompetitorID uuid.UUID `json:"competitor_id"`
	Lane         int       `json:"lane"`
	Time         float64   `json:"time"`
}

// Lane is one competitor's display state
type Lane struct {
	CompetitorID uuid.UUID `json:"competitor_id"`
	Progress     float64   `json:"progress"`
	Speed        float64   `json:"speed"`
	Finished     bool      `json:"finished"`
	FinishTime   *float64  `json:"finish_time,omitempty"`
}

// Snapshot is an immutable view of the field after a tick
type Snapshot struct {
	Tick    int     `json:"tick"`
	Elapsed float64 `json:"elapsed"`
	State   State   `json:"state"`
	Lanes   []Lane  `json:"lanes"`
}

// Progress maps competitor to distance covered
func (s Snapshot) Progress() map[uuid.UUID]float64 {
	out := make(map[uuid.UUID]float64, len(s.Lanes))
	for _, l := range s.Lanes {
		out[l.CompetitorID] = l.Progress
	}
	return out
}

// Speeds maps competitor to the speed used on the last tick
func (s Snapshot) Speeds() map[uuid.UUID]float64 {
	out := make(map[uuid.UUID]float64, len(s.Lanes))
	for _, l := range s.Lanes {
		out[l.CompetitorID] = l.Speed
	}
	return out
}

// Finished reports whether every lane crossed the line
func (s Snapshot) Finished() bool {
	return s.State == StateFinished
}

// Simulator advances one race. Advance must be called from a single goroutine.
type Simulator struct {
	cfg      Config
	src      rng.Source
	entrants []Entrant
	progress []float64
	speeds   []float64
	finishAt []float64
	done     []bool
	finishes []Finish
	tick     int
	elapsed  float64
}

// NewSimulator validates the field and draws each competitor's base speed
func NewSimulator(cfg Config, field []*models.Competitor, src rng.Source) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(field) == 0 {
		return nil, models.NewValidationError("empty_field", "a race needs at least one competitor")
	}

	seen := make(map[uuid.UUID]struct{}, len(field))
	entrants := make([]Entrant, 0, len(field))
	for _, c := range field {
		if c == nil {
			return nil, models.NewValidationError("invalid_competitor", "nil competitor in field")
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[c.ID]; dup {
			return nil, models.NewValidationError("duplicate_competitor", "competitor "+c.ID.String()+" entered twice")
		}
		seen[c.ID] = struct{}{}

		base := BaseSpeed(c, src)
		if base <= 0 {
			return nil, models.NewValidationError("zero_speed", "competitor "+c.Name+" has no ability and can never finish")
		}
		entrants = append(entrants, Entrant{CompetitorID: c.ID, Stamina: c.StaminaRating, BaseSpeed: base})
	}

	return NewSimulatorFromEntrants(cfg, entrants, src), nil
}

// NewSimulatorFromEntrants replays a race from already drawn base speeds
func NewSimulatorFromEntrants(cfg Config, entrants []Entrant, src rng.Source) *Simulator {
	n := len(entrants)
	s := &Simulator{
		cfg:      cfg,
		src:      src,
		entrants: append([]Entrant(nil), entrants...),
		progress: make([]float64, n),
		speeds:   make([]float64, n),
		finishAt: make([]float64, n),
		done:     make([]bool, n),
		finishes: make([]Finish, 0, n),
	}
	for i, e := range s.entrants {
		s.speeds[i] = e.BaseSpeed
	}
	return s
}

// Entrants returns the field with drawn base speeds
func (s *Simulator) Entrants() []Entrant {
	return append([]Entrant(nil), s.entrants...)
}

// State returns advancing until every competitor has finished
func (s *Simulator) State() State {
	if len(s.finishes) == len(s.entrants) {
		return StateFinished
	}
	return StateAdvancing
}

// Finished reports whether the race is over
func (s *Simulator) Finished() bool {
	return s.State() == StateFinished
}

// Advance moves every unfinished competitor one step at the given elapsed time (seconds since start).
// Once finished, further calls return the final snapshot unchanged.
func (s *Simulator) Advance(elapsed float64) Snapshot {
	if s.Finished() {
		return s.Snapshot()
	}
	if elapsed < s.elapsed {
		elapsed = s.elapsed
	}
	s.elapsed = elapsed
	s.tick++

	for i, e := range s.entrants {
		if s.done[i] {
			continue
		}
		speed := s.cfg.EffectiveSpeed(e.BaseSpeed, e.Stamina, elapsed)
		s.speeds[i] = speed

		next := s.progress[i] + speed*s.cfg.StepDistance + rng.Uniform(s.src, -s.cfg.Jitter, s.cfg.Jitter)
		if next < 0 {
			next = 0
		}
		if next >= s.cfg.TrackLength {
			next = s.cfg.TrackLength
			s.done[i] = true
			s.finishAt[i] = elapsed
			s.finishes = append(s.finishes, Finish{CompetitorID: e.CompetitorID, Lane: i, Time: elapsed})
		}
		s.progress[i] = next
	}

	return s.Snapshot()
}

// Snapshot copies the current state
func (s *Simulator) Snapshot() Snapshot {
	lanes := make([]Lane, len(s.entrants))
	for i, e := range s.entrants {
		lane := Lane{
			CompetitorID: e.CompetitorID,
			Progress:     s.progress[i],
			Speed:        s.speeds[i],
			Finished:     s.done[i],
		}
		if s.done[i] {
			t := s.finishAt[i]
			lane.FinishTime = &t
		}
		lanes[i] = lane
	}
	return Snapshot{Tick: s.tick, Elapsed: s.elapsed, State: s.State(), Lanes: lanes}
}

// FinishOrder sorts finishers by time. Equal times keep lane order. ok is false until the race is over.
func (s *Simulator) FinishOrder() (order []Finish, ok bool) {
	if !s.Finished() {
		return nil, false
	}
	order = append([]Finish(nil), s.finishes...)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Time != order[j].Time {
			return order[i].Time < order[j].Time
		}
		return order[i].Lane < order[j].Lane
	})
	return order, true
}

// RunFixedStep drives the simulator with a fixed tick until it finishes or maxTicks is reached.
// It returns the last snapshot and whether the race finished.
func RunFixedStep(s *Simulator, tick float64, maxTicks int) (Snapshot, bool) {
	snap := s.Snapshot()
	for i := 1; i <= maxTicks && !snap.Finished(); i++ {
		snap = s.Advance(float64(i) * tick)
	}
	return snap, snap.Finished()
}
