package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating bounds for competitor abilities
const (
	MinRating = 0.0
	MaxRating = 20.0
)

// Competitor is a horse that can be entered into a race. It is immutable once created.
type Competitor struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name" validate:"required,max=64"`
	Color         string    `db:"color" json:"color" validate:"omitempty,hexcolor"`
	SpeedRating   float64   `db:"speed_rating" json:"speed_rating" validate:"gte=0,lte=20"`
	StaminaRating float64   `db:"stamina_rating" json:"stamina_rating" validate:"gte=0,lte=20"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// NewCompetitor builds and validates a competitor with a fresh identity
func NewCompetitor(name, color string, speed, stamina float64) (*Competitor, error) {
	c := &Competitor{
		ID:            uuid.New(),
		Name:          name,
		Color:         color,
		SpeedRating:   speed,
		StaminaRating: stamina,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks identity and rating bounds
func (c *Competitor) Validate() error {
	if c.ID == uuid.Nil {
		return NewValidationError("invalid_competitor", "competitor id is required")
	}
	return validateStruct("invalid_competitor", c)
}

// AbilityScore is the combined rating used by the ability model
func (c *Competitor) AbilityScore() float64 {
	return c.SpeedRating + c.StaminaRating
}
