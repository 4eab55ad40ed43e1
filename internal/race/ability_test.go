package race

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/rng"
)

func competitor(name string, speed, stamina float64) *models.Competitor {
	return &models.Competitor{ID: uuid.New(), Name: name, SpeedRating: speed, StaminaRating: stamina}
}

func TestBaseSpeedWithoutVariance(t *testing.T) {
	c := competitor("Even Keel", 10, 10)
	assert.Equal(t, 1.0, BaseSpeed(c, rng.NewFixed(0.5)))
}

func TestBaseSpeedLowerBound(t *testing.T) {
	c := competitor("Slow Start", 12, 8)
	assert.InDelta(t, 0.925, BaseSpeed(c, rng.NewFixed(0)), 1e-12)
}

func TestBaseSpeedStaysWithinVariance(t *testing.T) {
	src := rng.NewSeeded(99)
	c := competitor("Wanderer", 14, 6)
	nominal := (14.0 + 6.0) / 20.0

	for i := 0; i < 5000; i++ {
		speed := BaseSpeed(c, src)
		require.GreaterOrEqual(t, speed, nominal*(1-SpeedVariance)-1e-12)
		require.LessOrEqual(t, speed, nominal*(1+SpeedVariance)+1e-12)
	}
}

func TestBaseSpeedRedrawnPerRace(t *testing.T) {
	src := rng.NewSeeded(3)
	c := competitor("Twice", 10, 10)

	first := BaseSpeed(c, src)
	second := BaseSpeed(c, src)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 10.0, c.SpeedRating)
}
