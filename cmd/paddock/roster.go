package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/paddock/internal/config"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/repository"
)

// defaultRoster is used when the configuration names no competitors
var defaultRoster = []config.CompetitorConfig{
	{Name: "Thunderbolt", Color: "#8B4513", Speed: 15, Stamina: 12},
	{Name: "Silver Arrow", Color: "#C0C0C0", Speed: 13, Stamina: 15},
	{Name: "Midnight Run", Color: "#1A1A2E", Speed: 17, Stamina: 9},
	{Name: "Golden Dawn", Color: "#DAA520", Speed: 14, Stamina: 13},
	{Name: "Storm Chaser", Color: "#4682B4", Speed: 16, Stamina: 10},
	{Name: "Lucky Clover", Color: "#228B22", Speed: 12, Stamina: 16},
}

func rosterConfig(c *config.Config) []config.CompetitorConfig {
	if len(c.Race.Roster) > 0 {
		return c.Race.Roster
	}
	return defaultRoster
}

// buildRoster turns the configured roster into competitors in entry order
func buildRoster(entries []config.CompetitorConfig) ([]*models.Competitor, error) {
	out := make([]*models.Competitor, 0, len(entries))
	for _, e := range entries {
		comp, err := models.NewCompetitor(e.Name, e.Color, e.Speed, e.Stamina)
		if err != nil {
			return nil, fmt.Errorf("competitor %q: %w", e.Name, err)
		}
		out = append(out, comp)
	}
	return out, nil
}

// seedRoster stores the configured roster when the store has none yet
func seedRoster(ctx context.Context, store repository.Store, entries []config.CompetitorConfig, log *logrus.Logger) error {
	existing, err := store.ListCompetitors(ctx)
	if err != nil {
		return fmt.Errorf("failed to list competitors: %w", err)
	}
	if len(existing) > 0 {
		log.WithField("competitors", len(existing)).Info("Roster already seeded")
		return nil
	}

	roster, err := buildRoster(entries)
	if err != nil {
		return err
	}
	for _, comp := range roster {
		if err := store.CreateCompetitor(ctx, comp); err != nil {
			return fmt.Errorf("failed to store competitor %q: %w", comp.Name, err)
		}
	}
	log.WithField("competitors", len(roster)).Info("Roster seeded")
	return nil
}
