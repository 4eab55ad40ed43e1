package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yourusername/paddock/internal/api"
	"github.com/yourusername/paddock/internal/feed"
	"github.com/yourusername/paddock/internal/games"
	"github.com/yourusername/paddock/internal/health"
	"github.com/yourusername/paddock/internal/lifecycle"
	"github.com/yourusername/paddock/internal/metrics"
	"github.com/yourusername/paddock/internal/repository"
	"github.com/yourusername/paddock/internal/scheduler"
	"github.com/yourusername/paddock/internal/session"
	"github.com/yourusername/paddock/internal/settlement"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game server",
	Long: `Runs the race loop, the game API and the operations listener
(health probes, metrics and the live feed). With the scheduler enabled a
new race opens on every tick of the configured schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
		"storage":     cfg.Storage.Driver,
		"version":     Version,
	}).Info("Paddock starting")

	metrics.InitRegistry()

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLog.WithError(err).Error("Failed to close store")
		}
	}()

	if err := seedRoster(ctx, store, rosterConfig(cfg), appLog); err != nil {
		return err
	}

	sessions := session.NewRegistry(decimal.NewFromInt(int64(cfg.Games.StartingCredits)))

	var hub *feed.Hub
	if cfg.API.FeedEnabled {
		hub = feed.NewHub(cfg.API.AllowedOrigins, appLog)
	}
	publisher := buildPublisher(cfg, hub, appLog)
	defer func() {
		if err := publisher.Close(); err != nil {
			appLog.WithError(err).Error("Failed to close event publishers")
		}
	}()

	account, closeAccount := buildPayer(cfg, sessions, appLog)
	defer func() {
		if err := closeAccount(); err != nil {
			appLog.WithError(err).Error("Failed to close wallet client")
		}
	}()

	ctrl, err := lifecycle.NewController(
		lifecycle.FromAppConfig(cfg),
		store,
		settlement.NewEngine(store, settlement.WithLogger(appLog)),
		lifecycle.WithPublisher(publisher),
		lifecycle.WithPayer(account),
		lifecycle.WithEscrow(account),
		lifecycle.WithLogger(appLog),
	)
	if err != nil {
		return fmt.Errorf("failed to create race controller: %w", err)
	}

	gameSvc := games.NewService(games.ConfigFromApp(cfg.Games), sessions, store, games.WithLogger(appLog))

	ops := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Port:        cfg.Metrics.HealthPort,
		Logger:      appLog,
		Checks:      map[string]health.Checker{"store": store},
	})
	if cfg.Metrics.Enabled {
		ops.Mount(cfg.Metrics.Path, metrics.Handler())
	}
	if hub != nil {
		ops.Mount("/feed", hub)
	}
	if err := ops.Start(ctx); err != nil {
		return fmt.Errorf("failed to start operations server: %w", err)
	}

	errCh := make(chan error, 2)

	if cfg.TickInterval() > 0 {
		go func() {
			if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("race loop: %w", err)
			}
		}()
	} else {
		appLog.Warn("Tick interval is zero; races only advance when stepped manually")
	}

	apiSrv := api.NewServer(api.ConfigFromApp(cfg), api.Deps{
		Controller: ctrl,
		Store:      store,
		Games:      gameSvc,
		Sessions:   sessions,
		Logger:     appLog,
	})
	go func() {
		if err := apiSrv.Listen(cfg.API.Address); err != nil {
			errCh <- fmt.Errorf("game api: %w", err)
		}
	}()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(ctrl, appLog)
		if err := sched.ScheduleRaces(cfg.Scheduler.Schedule, cfg.BettingWindow()); err != nil {
			return fmt.Errorf("failed to schedule races: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		appLog.WithField("next_race", sched.NextRun().Format(time.RFC3339)).Info("Race scheduler running")
	}

	ops.SetReady(true)
	appLog.WithFields(logrus.Fields{
		"api_address": cfg.API.Address,
		"ops_port":    cfg.Metrics.HealthPort,
		"feed":        hub != nil,
		"scheduler":   sched != nil,
	}).Info("Paddock is running")

	var runErr error
	select {
	case <-ctx.Done():
		appLog.Info("Shutdown signal received")
	case runErr = <-errCh:
		appLog.WithError(runErr).Error("Component failed, shutting down")
	}

	ops.SetReady(false)
	if sched != nil {
		if err := sched.Stop(); err != nil {
			appLog.WithError(err).Error("Error stopping scheduler")
		}
	}
	if status := ctrl.Status(); status.Running {
		if err := ctrl.Cancel(context.Background(), "server shutdown"); err != nil && !errors.Is(err, lifecycle.ErrNoActiveRace) {
			appLog.WithError(err).Error("Failed to stop the running race")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("Error shutting down game API")
	}
	if err := ops.Shutdown(); err != nil {
		appLog.WithError(err).Error("Error shutting down operations server")
	}

	appLog.Info("Paddock shut down")
	return runErr
}
