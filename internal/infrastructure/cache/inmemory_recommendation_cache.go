package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/google/uuid"
)

// InMemoryRecommendationCache caches recommendations in process memory.
// Used when Redis is disabled, and in tests.
type InMemoryRecommendationCache struct {
	mu      sync.RWMutex
	entries map[string]inMemoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type inMemoryEntry struct {
	rec       *recovery.CategoryRecommendation
	expiresAt time.Time
}

// NewInMemoryRecommendationCache creates an in-memory recommendation
// cache with the given entry lifetime
func NewInMemoryRecommendationCache(ttl time.Duration) *InMemoryRecommendationCache {
	if ttl <= 0 {
		ttl = defaultRecommendationTTL
	}
	return &InMemoryRecommendationCache{
		entries: make(map[string]inMemoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a cached recommendation; nil means miss
func (c *InMemoryRecommendationCache) Get(_ context.Context, tenantID, customerID uuid.UUID, asOf time.Time) (*recovery.CategoryRecommendation, error) {
	key := recommendationKey(tenantID, customerID, asOf)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}
	return entry.rec, nil
}

// Set stores a recommendation
func (c *InMemoryRecommendationCache) Set(_ context.Context, tenantID, customerID uuid.UUID, asOf time.Time, rec *recovery.CategoryRecommendation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[recommendationKey(tenantID, customerID, asOf)] = inMemoryEntry{
		rec:       rec,
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

// Invalidate removes all cached recommendations for a customer
func (c *InMemoryRecommendationCache) Invalidate(_ context.Context, tenantID, customerID uuid.UUID) error {
	prefix := strings.TrimSuffix(recommendationKeyPattern(tenantID, customerID), "*")

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}
