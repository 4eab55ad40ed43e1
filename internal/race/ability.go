// Package race simulates a horse race: ability profiles, fatigue, positions and finish order.
package race

import (
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/rng"
)

// SpeedVariance is the multiplicative spread applied to base speed once per race start
const SpeedVariance = 0.075

// ratingScale normalises the combined speed and stamina rating
const ratingScale = 20.0

// BaseSpeed draws a competitor's base speed for one race. The draw is never stored on the competitor.
func BaseSpeed(c *models.Competitor, src rng.Source) float64 {
	variance := 1 + rng.Uniform(src, -SpeedVariance, SpeedVariance)
	return (c.AbilityScore() / ratingScale) * variance
}
