// Package main is the paddock command: the game server and its operator tools.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yourusername/paddock/internal/config"
	"github.com/yourusername/paddock/internal/logger"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	cfg        *config.Config
	appLog     *logrus.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (default $PADDOCK_CONFIG_PATH or config/config.yaml)")
	rootCmd.AddCommand(serveCmd, simulateCmd, oddsCmd, migrateCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "paddock",
	Short: "Horse racing and casino game server",
	Long: `paddock runs simulated horse races with parimutuel wagering next to
slot and dice games, and ships the operator tools that go with them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		appLog = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "paddock %s (%s)\n", Version, GitCommit)
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	c, err := config.LoadWithDefaults(config.ResolvePath(configFile))
	if err != nil {
		return err
	}

	if c.Secrets.Enabled {
		if err := config.LoadSecretsFromAWS(ctx, c); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	if err := config.Validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = c
	return nil
}
