package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/yourusername/paddock/internal/models"
)

const rosterKey = "competitors:roster"

// CachedStore fronts a Store with an in-memory cache for the competitor roster.
// Competitors are immutable, so entries only go stale when the roster grows.
type CachedStore struct {
	Store
	cache     *cache.Cache
	ttl       time.Duration
	hitCount  atomic.Uint64
	missCount atomic.Uint64
}

// NewCachedStore wraps store. A non-positive ttl disables expiry.
func NewCachedStore(store Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	cleanup := ttl * 2
	if ttl == cache.NoExpiration {
		cleanup = 0
	}
	return &CachedStore{
		Store: store,
		cache: cache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

func competitorKey(id uuid.UUID) string {
	return "competitor:" + id.String()
}

// CreateCompetitor writes through and drops the cached roster
func (s *CachedStore) CreateCompetitor(ctx context.Context, c *models.Competitor) error {
	if err := s.Store.CreateCompetitor(ctx, c); err != nil {
		return err
	}
	s.cache.Delete(rosterKey)
	return nil
}

// GetCompetitor serves from cache when possible
func (s *CachedStore) GetCompetitor(ctx context.Context, id uuid.UUID) (*models.Competitor, error) {
	if cached, found := s.cache.Get(competitorKey(id)); found {
		if c, ok := cached.(models.Competitor); ok {
			s.hitCount.Add(1)
			return &c, nil
		}
	}
	s.missCount.Add(1)

	c, err := s.Store.GetCompetitor(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(competitorKey(id), *c, s.ttl)
	return c, nil
}

// ListCompetitors serves the roster from cache when possible
func (s *CachedStore) ListCompetitors(ctx context.Context) ([]*models.Competitor, error) {
	if cached, found := s.cache.Get(rosterKey); found {
		if roster, ok := cached.([]models.Competitor); ok {
			s.hitCount.Add(1)
			return copyRoster(roster), nil
		}
	}
	s.missCount.Add(1)

	list, err := s.Store.ListCompetitors(ctx)
	if err != nil {
		return nil, err
	}
	roster := make([]models.Competitor, len(list))
	for i, c := range list {
		roster[i] = *c
		s.cache.Set(competitorKey(c.ID), *c, s.ttl)
	}
	s.cache.Set(rosterKey, roster, s.ttl)
	return list, nil
}

// Stats returns cache hits and misses
func (s *CachedStore) Stats() (hits, misses uint64) {
	return s.hitCount.Load(), s.missCount.Load()
}

func copyRoster(roster []models.Competitor) []*models.Competitor {
	out := make([]*models.Competitor, len(roster))
	for i := range roster {
		c := roster[i]
		out[i] = &c
	}
	return out
}
