package games

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/paddock/internal/config"
	"github.com/yourusername/paddock/internal/logger"
	"github.com/yourusername/paddock/internal/metrics"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/repository"
	"github.com/yourusername/paddock/internal/rng"
	"github.com/yourusername/paddock/internal/session"
)

// Config holds the game rules
type Config struct {
	Limits     Limits
	DicePayout int64
	// ServerSeed switches draws to per-player HMAC sources; empty uses a clock-seeded source
	ServerSeed string
}

// ConfigFromApp maps the games section of the configuration
func ConfigFromApp(cfg config.GamesConfig) Config {
	return Config{
		Limits:     LimitsFromConfig(cfg),
		DicePayout: int64(cfg.DicePayout),
		ServerSeed: cfg.ServerSeed,
	}
}

// SpinPlay is a completed spin with the resulting session state
type SpinPlay struct {
	Outcome SpinOutcome        `json:"outcome"`
	Session session.Snapshot   `json:"session"`
	Record  *models.SpinResult `json:"record"`
}

// RollPlay is a completed dice roll with the resulting session state
type RollPlay struct {
	Outcome RollOutcome      `json:"outcome"`
	Session session.Snapshot `json:"session"`
	Record  *models.DiceRoll `json:"record"`
}

// Service plays rounds against player sessions and records them
type Service struct {
	cfg      Config
	sessions *session.Registry
	history  repository.GameHistoryRepository
	slots    SlotMachine
	dice     Dice
	now      func() time.Time
	log      *logrus.Entry
	audit    *logger.AuditLogger

	srcMu   sync.Mutex
	shared  rng.Source
	players map[string]rng.Source
}

// Option configures a Service
type Option func(*Service)

// WithSource draws every round from src
func WithSource(src rng.Source) Option {
	return func(s *Service) { s.shared = src }
}

// WithLogger routes game and audit logs to log
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) {
		s.log = logger.Component(log, "games")
		s.audit = logger.NewAuditLogger(log)
	}
}

// NewService creates the game service
func NewService(cfg Config, sessions *session.Registry, history repository.GameHistoryRepository, opts ...Option) *Service {
	nop := logger.NewNopLogger()
	s := &Service{
		cfg:      cfg,
		sessions: sessions,
		history:  history,
		dice:     Dice{Payout: cfg.DicePayout},
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.Component(nop, "games"),
		audit:    logger.NewAuditLogger(nop),
		players:  make(map[string]rng.Source),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shared == nil && cfg.ServerSeed == "" {
		s.shared = rng.NewTimeSeeded()
	}
	return s
}

func (s *Service) source(player string) rng.Source {
	if s.shared != nil {
		return s.shared
	}
	s.srcMu.Lock()
	defer s.srcMu.Unlock()
	src, ok := s.players[player]
	if !ok {
		src = rng.NewHMAC(s.cfg.ServerSeed, player)
		s.players[player] = src
	}
	return src
}

// Limits returns the bet bounds
func (s *Service) Limits() Limits {
	return s.cfg.Limits
}

// Spin plays one slot round for player
func (s *Service) Spin(ctx context.Context, player string, bet int64) (*SpinPlay, error) {
	if err := s.cfg.Limits.Check(bet); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(player)
	if err != nil {
		return nil, err
	}

	play := &SpinPlay{}
	snap, err := sess.Play(decimal.NewFromInt(bet), func() (decimal.Decimal, error) {
		out := s.slots.Spin(s.source(player), bet)
		symbols := make([]string, len(out.Reels))
		for i, sym := range out.Reels {
			symbols[i] = string(sym)
		}
		rec := &models.SpinResult{
			ID:        uuid.New(),
			Player:    player,
			Symbols:   symbols,
			BetAmount: decimal.NewFromInt(bet),
			WinAmount: decimal.NewFromInt(out.Win),
			IsWinner:  out.Won(),
			CreatedAt: s.now(),
		}
		if err := s.history.SaveSpin(ctx, rec); err != nil {
			return decimal.Zero, models.NewPersistenceError("save spin", err)
		}
		play.Outcome = out
		play.Record = rec
		return rec.WinAmount, nil
	})
	if err != nil {
		return nil, err
	}
	play.Session = snap

	metrics.RecordSlotSpin(play.Outcome.Won(), float64(play.Outcome.Win))
	s.audit.LogGamePlayed("slots", snap.Player, snap.LastStake, snap.LastWin, snap.Credits)
	return play, nil
}

// Roll plays one dice round for player
func (s *Service) Roll(ctx context.Context, player string, bet int64, prediction int) (*RollPlay, error) {
	if err := s.cfg.Limits.Check(bet); err != nil {
		return nil, err
	}
	if prediction < MinFace || prediction > MaxFace {
		return nil, models.NewValidationError("invalid_prediction", "prediction must be between 1 and 6")
	}
	sess, err := s.sessions.Get(player)
	if err != nil {
		return nil, err
	}

	play := &RollPlay{}
	snap, err := sess.Play(decimal.NewFromInt(bet), func() (decimal.Decimal, error) {
		out, err := s.dice.Roll(s.source(player), bet, prediction)
		if err != nil {
			return decimal.Zero, err
		}
		rec := &models.DiceRoll{
			ID:         uuid.New(),
			Player:     player,
			Prediction: out.Prediction,
			Result:     out.Result,
			BetAmount:  decimal.NewFromInt(bet),
			Payout:     decimal.NewFromInt(out.Payout),
			Won:        out.Won,
			CreatedAt:  s.now(),
		}
		if err := s.history.SaveDiceRoll(ctx, rec); err != nil {
			return decimal.Zero, models.NewPersistenceError("save dice roll", err)
		}
		play.Outcome = out
		play.Record = rec
		return rec.Payout, nil
	})
	if err != nil {
		return nil, err
	}
	play.Session = snap

	metrics.RecordDiceRoll(play.Outcome.Won, float64(play.Outcome.Payout))
	s.audit.LogGamePlayed("dice", snap.Player, snap.LastStake, snap.LastWin, snap.Credits)
	return play, nil
}

// RecentSpins lists the latest recorded spins
func (s *Service) RecentSpins(ctx context.Context, limit int) ([]*models.SpinResult, error) {
	spins, err := s.history.RecentSpins(ctx, limit)
	if err != nil {
		return nil, models.NewPersistenceError("list spins", err)
	}
	return spins, nil
}

// RecentDiceRolls lists the latest recorded dice rolls
func (s *Service) RecentDiceRolls(ctx context.Context, limit int) ([]*models.DiceRoll, error) {
	rolls, err := s.history.RecentDiceRolls(ctx, limit)
	if err != nil {
		return nil, models.NewPersistenceError("list dice rolls", err)
	}
	return rolls, nil
}
