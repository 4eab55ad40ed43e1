package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) Close() error {
	r.closed = true
	return r.err
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeRedis struct {
	published map[string][][]byte
	stored    map[string][]byte
	err       error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{published: map[string][][]byte{}, stored: map[string][]byte{}}
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.published[channel] = append(f.published[channel], message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.stored[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Close() error { return nil }

type payload struct {
	Stake string `json:"stake"`
}

func TestNewEventRoundTripsPayload(t *testing.T) {
	raceID := uuid.New()
	e, err := New(WagerPlaced, raceID, payload{Stake: "100"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, raceID, e.RaceID)

	var got payload
	require.NoError(t, e.Decode(&got))
	assert.Equal(t, "100", got.Stake)

	empty, err := New(RaceCreated, raceID, nil)
	require.NoError(t, err)
	assert.Error(t, empty.Decode(&got))
}

func TestMultiAttemptsEverySink(t *testing.T) {
	failing := &recorder{err: errors.New("broker down")}
	healthy := &recorder{}
	m := Multi{failing, healthy}

	e, _ := New(RaceStarted, uuid.New(), nil)
	err := m.Publish(context.Background(), e)

	assert.ErrorContains(t, err, "broker down")
	assert.Len(t, healthy.events, 1)
	assert.Len(t, failing.events, 1)

	_ = m.Close()
	assert.True(t, healthy.closed)
}

func TestFilterForwardsListedTypes(t *testing.T) {
	next := &recorder{}
	f := Filter{Next: next, Types: []Type{OddsUpdated}}

	started, _ := New(RaceStarted, uuid.New(), nil)
	odds, _ := New(OddsUpdated, uuid.New(), nil)
	require.NoError(t, f.Publish(context.Background(), started))
	require.NoError(t, f.Publish(context.Background(), odds))

	require.Len(t, next.events, 1)
	assert.Equal(t, OddsUpdated, next.events[0].Type)
}

func TestKafkaPublisherKeysByRace(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)

	e, _ := New(RaceSettled, uuid.New(), payload{Stake: "5"})
	require.NoError(t, p.Publish(context.Background(), e))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, e.RaceID.String(), string(msg.Key))
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, string(RaceSettled), string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	p := NewKafkaPublisher(&fakeWriter{err: errors.New("leader not available")})
	e, _ := New(RaceStarted, uuid.New(), nil)

	err := p.Publish(context.Background(), e)
	assert.ErrorContains(t, err, "leader not available")
}

func TestRedisPublisherStoresBoard(t *testing.T) {
	client := newFakeRedis()
	p := NewRedisPublisher(client, "paddock:odds")
	raceID := uuid.New()

	odds, _ := New(OddsUpdated, raceID, payload{Stake: "150"})
	require.NoError(t, p.Publish(context.Background(), odds))
	started, _ := New(RaceStarted, raceID, nil)
	require.NoError(t, p.Publish(context.Background(), started))

	assert.Len(t, client.published["paddock:odds"], 2)
	assert.JSONEq(t, `{"stake":"150"}`, string(client.stored[BoardKey("paddock:odds", raceID.String())]))
	assert.Len(t, client.stored, 1)
}

func TestRedisPublisherError(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	p := NewRedisPublisher(client, "paddock:odds")

	e, _ := New(RaceStarted, uuid.New(), nil)
	assert.ErrorContains(t, p.Publish(context.Background(), e), "connection refused")
}
