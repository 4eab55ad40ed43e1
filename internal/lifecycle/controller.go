// Package lifecycle drives races from creation through the track to settlement.
//
// The Controller owns the single running race. Wager placement and odds queries
// go through the store under the controller mutex and never touch the simulator;
// the simulator is advanced by one writer at a time (the Run loop or Advance)
// and publishes an immutable snapshot after every tick for display readers.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/paddock/internal/events"
	"github.com/yourusername/paddock/internal/logger"
	"github.com/yourusername/paddock/internal/metrics"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/odds"
	"github.com/yourusername/paddock/internal/race"
	"github.com/yourusername/paddock/internal/repository"
	"github.com/yourusername/paddock/internal/rng"
	"github.com/yourusername/paddock/internal/settlement"
)

var (
	// ErrNoActiveRace is returned by operations that need a race on the track
	ErrNoActiveRace = errors.New("no race is on the track")
	// ErrRaceDetached marks a race left running in storage whose loop was cancelled
	ErrRaceDetached = errors.New("race is not on the track")
	// ErrRaceFinished rejects wagers on a race whose result is known but not yet settled
	ErrRaceFinished = errors.New("race has finished")
)

// Settler completes a finished race
type Settler interface {
	Settle(ctx context.Context, raceID uuid.UUID, order []race.Finish) (*settlement.Outcome, error)
}

// Payer credits winnings to an external wallet
type Payer interface {
	Credit(ctx context.Context, bettor string, amount decimal.Decimal, reference string) error
}

// Escrow takes wager stakes from the bettor's balance. A stake whose wager cannot be
// recorded is returned through Credit.
type Escrow interface {
	Payer
	Debit(ctx context.Context, bettor string, amount decimal.Decimal, reference string) error
}

// SourceFactory returns the random source for a race about to start
type SourceFactory func(r *models.Race) rng.Source

// Positions is the display view of the running race after its latest tick
type Positions struct {
	RaceID    uuid.UUID             `json:"race_id"`
	Snapshot  race.Snapshot         `json:"snapshot"`
	Progress  map[uuid.UUID]float64 `json:"progress"`
	Speeds    map[uuid.UUID]float64 `json:"speeds"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Status describes what is on the track
type Status struct {
	Race            *models.Race `json:"race,omitempty"`
	Running         bool         `json:"running"`
	Tick            int          `json:"tick"`
	Elapsed         float64      `json:"elapsed"`
	SettlementError string       `json:"settlement_error,omitempty"`
}

type activeRace struct {
	race  *models.Race
	field []*models.Competitor
	sim   *race.Simulator
	start time.Time

	// simMu serializes simulator writers
	simMu     sync.Mutex
	stopped   chan struct{}
	stopOnce  sync.Once
	// finished is set once the simulator reports every entrant home
	finished  atomic.Bool
	settleErr error
}

func (a *activeRace) stop() {
	a.stopOnce.Do(func() { close(a.stopped) })
}

func (a *activeRace) isStopped() bool {
	select {
	case <-a.stopped:
		return true
	default:
		return false
	}
}

// Controller runs the race lifecycle
type Controller struct {
	cfg       Config
	store     repository.Store
	settler   Settler
	publisher events.Publisher
	payer     Payer
	escrow    Escrow
	now       func() time.Time
	sources   SourceFactory

	log     *logrus.Entry
	raceLog *logger.RaceLogger
	audit   *logger.AuditLogger

	// mu guards active and serializes wager writes, transitions and settlement
	mu        sync.Mutex
	active    *activeRace
	positions atomic.Pointer[Positions]
	wake      chan struct{}
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces the wall clock used for elapsed time and timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithSources replaces the per-race random source
func WithSources(f SourceFactory) Option {
	return func(c *Controller) { c.sources = f }
}

// WithPublisher sends lifecycle events to p
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithPayer credits winning wagers through p after settlement
func WithPayer(p Payer) Option {
	return func(c *Controller) { c.payer = p }
}

// WithEscrow debits each wager's stake through e before the wager is recorded
func WithEscrow(e Escrow) Option {
	return func(c *Controller) { c.escrow = e }
}

// WithLogger routes controller logs to log
func WithLogger(log *logrus.Logger) Option {
	return func(c *Controller) {
		c.log = logger.Component(log, "lifecycle")
		c.raceLog = logger.NewRaceLogger(log)
		c.audit = logger.NewAuditLogger(log)
	}
}

// NewController validates cfg and builds a controller over store
func NewController(cfg Config, store repository.Store, settler Settler, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nop := logger.NewNopLogger()
	c := &Controller{
		cfg:       cfg,
		store:     store,
		settler:   settler,
		publisher: events.Nop{},
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.Component(nop, "lifecycle"),
		raceLog:   logger.NewRaceLogger(nop),
		audit:     logger.NewAuditLogger(nop),
		wake:      make(chan struct{}, 1),
	}
	c.sources = c.defaultSource
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Controller) defaultSource(r *models.Race) rng.Source {
	if c.cfg.Seed != 0 {
		return rng.NewSeeded(c.cfg.Seed + r.Sequence)
	}
	return rng.NewTimeSeeded()
}

// CreateRace opens a new pending race. It is allowed while another race runs.
func (c *Controller) CreateRace(ctx context.Context) (*models.Race, error) {
	r := models.NewRace()
	r.CreatedAt = c.now()
	if err := c.store.CreateRace(ctx, r); err != nil {
		return nil, models.NewPersistenceError("create race", err)
	}

	metrics.RecordRaceCreated()
	c.log.WithFields(logrus.Fields{
		"race_id":  r.ID.String(),
		"sequence": r.Sequence,
	}).Info("Race created")
	c.publish(ctx, events.RaceCreated, r.ID, r)
	return r, nil
}

// PlaceWager accepts a stake on a pending or running race. The odds are fixed from
// the pool as it stood before this wager.
func (c *Controller) PlaceWager(ctx context.Context, req models.WagerRequest) (*models.Wager, error) {
	w, board, err := c.placeWager(ctx, req)
	if err != nil {
		metrics.RecordWagerRejected(rejectReason(err))
		c.log.WithFields(logrus.Fields{
			"race_id": req.RaceID.String(),
			"bettor":  req.Bettor,
			"error":   err.Error(),
		}).Debug("Wager rejected")
		return nil, err
	}

	stake, _ := w.Stake.Float64()
	metrics.RecordWagerPlaced(stake)
	c.audit.LogWagerPlaced(w)
	c.publish(ctx, events.WagerPlaced, w.RaceID, w)
	c.publish(ctx, events.OddsUpdated, w.RaceID, board)
	return w, nil
}

func (c *Controller) placeWager(ctx context.Context, req models.WagerRequest) (*models.Wager, odds.Board, error) {
	if err := req.Validate(); err != nil {
		return nil, odds.Board{}, err
	}
	if c.cfg.MaxStake.IsPositive() && req.Stake.GreaterThan(c.cfg.MaxStake) {
		return nil, odds.Board{}, models.NewValidationError("stake_limit", "stake exceeds the maximum of "+c.cfg.MaxStake.String())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.getRace(ctx, req.RaceID)
	if err != nil {
		return nil, odds.Board{}, err
	}
	if !r.AcceptsWagers() {
		return nil, odds.Board{}, models.NewStateError(r.ID, r.Status, "place wager")
	}
	if r.Status == models.RaceStatusRunning && (c.active == nil || c.active.race.ID != r.ID) {
		stateErr := models.NewStateError(r.ID, r.Status, "place wager")
		stateErr.Cause = ErrRaceDetached
		return nil, odds.Board{}, stateErr
	}
	if r.Status == models.RaceStatusRunning && c.active.finished.Load() {
		stateErr := models.NewStateError(r.ID, r.Status, "place wager")
		stateErr.Cause = ErrRaceFinished
		return nil, odds.Board{}, stateErr
	}

	field, err := c.fieldFor(ctx, r)
	if err != nil {
		return nil, odds.Board{}, err
	}
	if !containsCompetitor(field, req.CompetitorID) {
		return nil, odds.Board{}, models.NewValidationError("unknown_competitor", "competitor "+req.CompetitorID.String()+" is not in the field")
	}

	wagers, err := c.store.ListWagersByRace(ctx, r.ID)
	if err != nil {
		return nil, odds.Board{}, models.NewPersistenceError("list wagers", err)
	}

	w := &models.Wager{
		ID:           uuid.New(),
		RaceID:       r.ID,
		CompetitorID: req.CompetitorID,
		Bettor:       req.Bettor,
		Stake:        req.Stake,
		Odds:         c.cfg.Odds.ForCompetitor(wagers, req.CompetitorID),
		PlacedAt:     c.now(),
	}
	if err := c.debitStake(ctx, w); err != nil {
		return nil, odds.Board{}, err
	}
	if err := c.store.CreateWager(ctx, w); err != nil {
		c.refundStake(ctx, w)
		if errors.Is(err, models.ErrRaceClosed) {
			stateErr := models.NewStateError(r.ID, r.Status, "place wager")
			stateErr.Cause = err
			return nil, odds.Board{}, stateErr
		}
		return nil, odds.Board{}, models.NewPersistenceError("create wager", err)
	}

	board := c.cfg.Odds.BuildBoard(r, append(wagers, w), competitorIDs(field))
	return w, board, nil
}

// Board prices every competitor of a race from its current wagers
func (c *Controller) Board(ctx context.Context, raceID uuid.UUID) (odds.Board, error) {
	r, err := c.getRace(ctx, raceID)
	if err != nil {
		return odds.Board{}, err
	}
	c.mu.Lock()
	field, err := c.fieldFor(ctx, r)
	c.mu.Unlock()
	if err != nil {
		return odds.Board{}, err
	}
	wagers, err := c.store.ListWagersByRace(ctx, raceID)
	if err != nil {
		return odds.Board{}, models.NewPersistenceError("list wagers", err)
	}
	return c.cfg.Odds.BuildBoard(r, wagers, competitorIDs(field)), nil
}

// Odds returns the current price of every competitor of a race
func (c *Controller) Odds(ctx context.Context, raceID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	board, err := c.Board(ctx, raceID)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]decimal.Decimal, len(board.Lines))
	for _, l := range board.Lines {
		out[l.CompetitorID] = l.Odds
	}
	return out, nil
}

// StartRace puts a pending race on the track with the current roster.
// Base speeds are drawn here and fixed for the whole race.
func (c *Controller) StartRace(ctx context.Context, raceID uuid.UUID) (*models.Race, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.getRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	if c.active != nil {
		stateErr := models.NewStateError(r.ID, r.Status, "start")
		stateErr.Cause = models.ErrRaceAlreadyRunning
		return nil, stateErr
	}
	if r.Status != models.RaceStatusPending {
		return nil, models.NewStateError(r.ID, r.Status, "start")
	}

	field, err := c.store.ListCompetitors(ctx)
	if err != nil {
		return nil, models.NewPersistenceError("list competitors", err)
	}
	sim, err := race.NewSimulator(c.cfg.Race, field, c.sources(r))
	if err != nil {
		return nil, err
	}

	startedAt := c.now()
	if err := c.store.TransitionRace(ctx, r.ID, models.RaceStatusPending, models.RaceStatusRunning, startedAt); err != nil {
		if errors.Is(err, models.ErrStaleTransition) {
			stateErr := models.NewStateError(r.ID, r.Status, "start")
			stateErr.Cause = err
			return nil, stateErr
		}
		return nil, models.NewPersistenceError("start race", err)
	}
	r.Status = models.RaceStatusRunning
	r.StartedAt = &startedAt

	a := &activeRace{
		race:    r,
		field:   field,
		sim:     sim,
		start:   startedAt,
		stopped: make(chan struct{}),
	}
	c.active = a
	c.storePositions(a, sim.Snapshot())

	select {
	case c.wake <- struct{}{}:
	default:
	}

	speeds := make(map[string]float64, len(field))
	for _, e := range sim.Entrants() {
		speeds[e.CompetitorID.String()] = e.BaseSpeed
	}
	metrics.RecordRaceStarted()
	c.audit.LogRaceTransition(r, models.RaceStatusPending, models.RaceStatusRunning)
	c.raceLog.LogRaceStarted(r.ID.String(), r.Sequence, len(field), speeds)
	c.publish(ctx, events.RaceStarted, r.ID, sim.Entrants())

	out := *r
	return &out, nil
}

// Advance steps the running race to elapsed seconds since its start.
// When the step finishes the race, settlement runs before Advance returns.
func (c *Controller) Advance(ctx context.Context, elapsed float64) (race.Snapshot, error) {
	a := c.current()
	if a == nil {
		return race.Snapshot{}, ErrNoActiveRace
	}
	return c.step(ctx, a, elapsed)
}

// Run drives started races with a ticker until ctx is done. Elapsed time is measured
// from the clock reading taken when the race went running.
func (c *Controller) Run(ctx context.Context) error {
	if c.cfg.TickInterval <= 0 {
		return fmt.Errorf("race loop needs a positive tick interval")
	}
	c.log.WithField("tick_interval", c.cfg.TickInterval.String()).Info("Race loop started")
	for {
		if a := c.current(); a != nil {
			c.drive(ctx, a)
		}
		select {
		case <-ctx.Done():
			c.log.Info("Race loop stopped")
			return ctx.Err()
		case <-c.wake:
		}
	}
}

func (c *Controller) drive(ctx context.Context, a *activeRace) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopped:
			return
		case <-ticker.C:
			snap, err := c.step(ctx, a, c.now().Sub(a.start).Seconds())
			if err != nil || snap.Finished() {
				return
			}
		}
	}
}

func (c *Controller) step(ctx context.Context, a *activeRace, elapsed float64) (race.Snapshot, error) {
	a.simMu.Lock()
	if a.isStopped() {
		a.simMu.Unlock()
		return race.Snapshot{}, ErrNoActiveRace
	}
	if a.finished.Load() {
		snap := a.sim.Snapshot()
		a.simMu.Unlock()
		return snap, c.finish(ctx, a)
	}

	began := time.Now()
	snap := a.sim.Advance(elapsed)
	metrics.RecordTick(time.Since(began).Seconds())
	c.storePositions(a, snap)
	if snap.Finished() {
		a.finished.Store(true)
	}
	a.simMu.Unlock()

	c.publish(ctx, events.RaceProgress, a.race.ID, snap)
	if !snap.Finished() {
		return snap, nil
	}
	return snap, c.finish(ctx, a)
}

// finish settles a race whose simulator reported finished
func (c *Controller) finish(ctx context.Context, a *activeRace) error {
	order, _ := a.sim.FinishOrder()

	c.mu.Lock()
	if c.active != a {
		c.mu.Unlock()
		return ErrNoActiveRace
	}
	out, err := c.settler.Settle(ctx, a.race.ID, order)
	if err != nil {
		a.settleErr = err
		c.mu.Unlock()
		c.raceLog.LogSettlementFailed(a.race.ID.String(), err)
		return err
	}
	a.settleErr = nil
	c.active = nil
	a.stop()
	c.mu.Unlock()

	ids := make([]string, len(order))
	for i, f := range order {
		ids[i] = f.CompetitorID.String()
	}
	snap := a.sim.Snapshot()
	c.raceLog.LogRaceFinished(a.race.ID.String(), ids, snap.Tick, c.now().Sub(a.start))

	if out.AlreadySettled {
		metrics.RaceRunning.Set(0)
		return nil
	}

	paid, _ := out.Settlement.TotalPaid().Float64()
	metrics.RecordRaceCompleted(snap.Elapsed, paid)
	completed := *a.race
	completed.Status = models.RaceStatusCompleted
	completed.WinnerID = &out.Settlement.WinnerID
	completed.CompletedAt = &out.Settlement.CompletedAt
	c.audit.LogRaceTransition(&completed, models.RaceStatusRunning, models.RaceStatusCompleted)
	c.publish(ctx, events.RaceSettled, a.race.ID, out.Settlement)
	c.creditWinners(ctx, a.race.ID)
	return nil
}

// RetrySettlement re-runs settlement for a finished race whose settlement failed
func (c *Controller) RetrySettlement(ctx context.Context) error {
	a := c.current()
	if a == nil {
		return ErrNoActiveRace
	}
	if !a.finished.Load() {
		return models.NewStateError(a.race.ID, a.race.Status, "settle unfinished")
	}
	return c.finish(ctx, a)
}

// Cancel stops the running race without settling it. Position state is discarded
// and the race stays running in storage; no further wagers are taken on it.
func (c *Controller) Cancel(ctx context.Context, reason string) error {
	c.mu.Lock()
	a := c.active
	if a == nil {
		c.mu.Unlock()
		return ErrNoActiveRace
	}
	c.active = nil
	a.stop()
	c.mu.Unlock()

	a.simMu.Lock()
	c.positions.Store(nil)
	a.simMu.Unlock()

	metrics.RecordRaceCancelled()
	c.audit.LogRaceCancelled(a.race.ID.String(), reason)
	c.publish(ctx, events.RaceCancelled, a.race.ID, map[string]string{"reason": reason})
	return nil
}

// Positions returns the latest tick of the running race. It never blocks on the simulator.
func (c *Controller) Positions() (*Positions, bool) {
	p := c.positions.Load()
	return p, p != nil
}

// Status reports the race on the track, if any
func (c *Controller) Status() Status {
	a := c.current()
	if a == nil {
		return Status{}
	}
	out := *a.race
	st := Status{Race: &out, Running: true}
	if p, ok := c.Positions(); ok && p.RaceID == a.race.ID {
		st.Tick = p.Snapshot.Tick
		st.Elapsed = p.Snapshot.Elapsed
	}
	c.mu.Lock()
	if a.settleErr != nil {
		st.SettlementError = a.settleErr.Error()
	}
	c.mu.Unlock()
	return st
}

// Field returns the competitors of a race in entry order: the entrants once it has
// started, the current roster before
func (c *Controller) Field(ctx context.Context, raceID uuid.UUID) ([]*models.Competitor, error) {
	r, err := c.getRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fieldFor(ctx, r)
}

func (c *Controller) current() *activeRace {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// fieldFor must be called with mu held
func (c *Controller) fieldFor(ctx context.Context, r *models.Race) ([]*models.Competitor, error) {
	if c.active != nil && c.active.race.ID == r.ID {
		return c.active.field, nil
	}
	field, err := c.store.ListCompetitors(ctx)
	if err != nil {
		return nil, models.NewPersistenceError("list competitors", err)
	}
	return field, nil
}

func (c *Controller) getRace(ctx context.Context, id uuid.UUID) (*models.Race, error) {
	r, err := c.store.GetRace(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("race %s: %w", id, err)
		}
		return nil, models.NewPersistenceError("get race", err)
	}
	return r, nil
}

func (c *Controller) storePositions(a *activeRace, snap race.Snapshot) {
	c.positions.Store(&Positions{
		RaceID:    a.race.ID,
		Snapshot:  snap,
		Progress:  snap.Progress(),
		Speeds:    snap.Speeds(),
		UpdatedAt: c.now(),
	})
}

func (c *Controller) debitStake(ctx context.Context, w *models.Wager) error {
	if c.escrow == nil {
		return nil
	}
	err := c.escrow.Debit(ctx, w.Bettor, w.Stake, "stake:"+w.ID.String())
	if err == nil || models.IsValidation(err) {
		return err
	}
	return models.NewPersistenceError("debit stake", err)
}

func (c *Controller) refundStake(ctx context.Context, w *models.Wager) {
	if c.escrow == nil {
		return
	}
	if err := c.escrow.Credit(ctx, w.Bettor, w.Stake, "refund:"+w.ID.String()); err != nil {
		c.log.WithFields(logrus.Fields{
			"wager_id": w.ID.String(),
			"bettor":   w.Bettor,
			"amount":   w.Stake.String(),
			"error":    err.Error(),
		}).Error("Failed to return stake of unrecorded wager")
	}
}

func (c *Controller) creditWinners(ctx context.Context, raceID uuid.UUID) {
	if c.payer == nil {
		return
	}
	wagers, err := c.store.ListWagersByRace(ctx, raceID)
	if err != nil {
		c.log.WithError(err).WithField("race_id", raceID.String()).Error("Failed to load wagers for wallet credit")
		return
	}
	for _, w := range wagers {
		if !w.IsWinning() {
			continue
		}
		if err := c.payer.Credit(ctx, w.Bettor, *w.Payout, w.ID.String()); err != nil {
			c.log.WithFields(logrus.Fields{
				"wager_id": w.ID.String(),
				"bettor":   w.Bettor,
				"amount":   w.Payout.String(),
				"error":    err.Error(),
			}).Error("Failed to credit payout to wallet")
		}
	}
}

func (c *Controller) publish(ctx context.Context, t events.Type, raceID uuid.UUID, payload interface{}) {
	e, err := events.New(t, raceID, payload)
	if err == nil {
		err = c.publisher.Publish(ctx, e)
	}
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"event":   string(t),
			"race_id": raceID.String(),
			"error":   err.Error(),
		}).Warn("Failed to publish event")
	}
}

func rejectReason(err error) string {
	switch {
	case models.IsValidation(err):
		return "validation"
	case models.IsState(err):
		return "state"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "persistence"
	}
}

func containsCompetitor(field []*models.Competitor, id uuid.UUID) bool {
	for _, c := range field {
		if c.ID == id {
			return true
		}
	}
	return false
}

func competitorIDs(field []*models.Competitor) []uuid.UUID {
	ids := make([]uuid.UUID, len(field))
	for i, c := range field {
		ids[i] = c.ID
	}
	return ids
}
