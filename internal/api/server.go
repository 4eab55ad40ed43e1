// Package api exposes races, wagers, the track and the casino games over HTTP.
package api

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/paddock/internal/config"
	"github.com/yourusername/paddock/internal/games"
	"github.com/yourusername/paddock/internal/lifecycle"
	"github.com/yourusername/paddock/internal/logger"
	"github.com/yourusername/paddock/internal/repository"
	"github.com/yourusername/paddock/internal/session"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Config holds the HTTP settings
type Config struct {
	AppName        string
	AllowedOrigins []string
	AdminToken     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// ConfigFromApp maps the api section of the configuration
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		AppName:        cfg.App.Name,
		AllowedOrigins: cfg.API.AllowedOrigins,
		AdminToken:     cfg.API.AdminToken,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Deps are the services behind the routes
type Deps struct {
	Controller *lifecycle.Controller
	Store      repository.Store
	Games      *games.Service
	Sessions   *session.Registry
	Logger     *logrus.Logger
}

// Server is the game API
type Server struct {
	app      *fiber.App
	ctrl     *lifecycle.Controller
	store    repository.Store
	games    *games.Service
	sessions *session.Registry
	log      *logrus.Entry
}

// NewServer builds the routing table
func NewServer(cfg Config, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &Server{
		ctrl:     deps.Controller,
		store:    deps.Store,
		games:    deps.Games,
		sessions: deps.Sessions,
		log:      logger.Component(log, "api"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
		Immutable:             true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          s.handleError,
	})

	origins := "*"
	if len(cfg.AllowedOrigins) > 0 {
		origins = strings.Join(cfg.AllowedOrigins, ",")
	}
	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{AllowOrigins: origins}))
	s.app.Use(requestLogger(s.log))

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api")
	admin := adminGuard(cfg.AdminToken)

	api.Get("/competitors", s.listCompetitors)

	races := api.Group("/races")
	races.Get("/", s.listRaces)
	races.Post("/", admin, s.createRace)
	races.Get("/:id", s.getRace)
	races.Get("/:id/field", s.raceField)
	races.Get("/:id/board", s.raceBoard)
	races.Get("/:id/wagers", s.listWagers)
	races.Post("/:id/wagers", s.placeWager)
	races.Post("/:id/start", admin, s.startRace)

	track := api.Group("/track")
	track.Get("/", s.trackStatus)
	track.Get("/positions", s.trackPositions)
	track.Post("/cancel", admin, s.cancelRace)
	track.Post("/settle", admin, s.retrySettlement)

	g := api.Group("/games")
	g.Get("/limits", s.gameLimits)
	g.Post("/slots/spin", s.spin)
	g.Get("/slots/history", s.spinHistory)
	g.Post("/dice/roll", s.roll)
	g.Get("/dice/history", s.rollHistory)

	sessions := api.Group("/sessions")
	sessions.Get("/", s.listSessions)
	sessions.Get("/:player", s.getSession)
	sessions.Post("/:player/reset", s.resetSession)

	return s
}

// App exposes the fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	s.log.WithField("address", addr).Info("Game API listening")
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
