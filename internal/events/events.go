// Package events publishes race lifecycle, wager and odds events to outbound sinks.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names an event
type Type string

const (
	RaceCreated   Type = "race.created"
	RaceStarted   Type = "race.started"
	RaceProgress  Type = "race.progress"
	RaceSettled   Type = "race.settled"
	RaceCancelled Type = "race.cancelled"
	WagerPlaced   Type = "wager.placed"
	OddsUpdated   Type = "odds.updated"
)

// Event is the envelope written to every sink
type Event struct {
	ID      uuid.UUID       `json:"id"`
	Type    Type            `json:"type"`
	RaceID  uuid.UUID       `json:"race_id"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New wraps payload in an envelope
func New(t Type, raceID uuid.UUID, payload interface{}) (Event, error) {
	e := Event{
		ID:     uuid.New(),
		Type:   t,
		RaceID: raceID,
		At:     time.Now().UTC(),
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
		}
		e.Payload = b
	}
	return e, nil
}

// Decode unmarshals the payload into v
func (e Event) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return errors.New("event has no payload")
	}
	return json.Unmarshal(e.Payload, v)
}

// Publisher delivers events to a sink. Publish must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi fans an event out to several publishers. Every sink is attempted; failures are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Filter forwards only the listed event types to Next
type Filter struct {
	Next  Publisher
	Types []Type
}

func (f Filter) Publish(ctx context.Context, e Event) error {
	for _, t := range f.Types {
		if t == e.Type {
			return f.Next.Publish(ctx, e)
		}
	}
	return nil
}

func (f Filter) Close() error { return f.Next.Close() }
