package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourusername/paddock/internal/metrics"
)

const (
	sinkRedis = "redis"
	boardTTL  = time.Hour
)

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisPublisher broadcasts events on a pub/sub channel. Odds updates are also kept
// under a per-race key so late subscribers can read the current board.
type RedisPublisher struct {
	client  redisClient
	channel string
}

// NewRedisClient connects to the configured redis
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisPublisher creates a publisher on channel
func NewRedisPublisher(client redisClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// BoardKey is where the latest odds board of a race is stored
func BoardKey(channel, raceID string) string {
	return channel + ":board:" + raceID
}

// Publish sends e on the channel
func (p *RedisPublisher) Publish(ctx context.Context, e Event) (err error) {
	defer func() { metrics.RecordEventPublished(sinkRedis, err) }()

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if e.Type == OddsUpdated && len(e.Payload) > 0 {
		if err := p.client.Set(ctx, BoardKey(p.channel, e.RaceID.String()), []byte(e.Payload), boardTTL).Err(); err != nil {
			return fmt.Errorf("failed to store odds board: %w", err)
		}
	}
	if err := p.client.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("failed to publish %s to redis: %w", e.Type, err)
	}
	return nil
}

// Close closes the client
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
