package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/arcollect/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	recommendationKeyPrefix  = "recovery:rec"
	defaultRecommendationTTL = 15 * time.Minute
	scanBatchSize            = 100
)

func recommendationKey(tenantID, customerID uuid.UUID, asOf time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", recommendationKeyPrefix, tenantID, customerID, asOf.Format("2006-01-02"))
}

func recommendationKeyPattern(tenantID, customerID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s:*", recommendationKeyPrefix, tenantID, customerID)
}

// RedisRecommendationCache caches category recommendations in Redis
type RedisRecommendationCache struct {
	client     *redis.Client
	ownsClient bool
	ttl        time.Duration
	logger     *zap.Logger
}

// RedisRecommendationCacheOption is a functional option for configuring
// the cache
type RedisRecommendationCacheOption func(*RedisRecommendationCache)

// WithTTL sets the cache entry lifetime
func WithTTL(ttl time.Duration) RedisRecommendationCacheOption {
	return func(c *RedisRecommendationCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger for the cache
func WithCacheLogger(logger *zap.Logger) RedisRecommendationCacheOption {
	return func(c *RedisRecommendationCache) {
		c.logger = logger
	}
}

// NewRedisRecommendationCache creates a Redis-backed recommendation
// cache, verifying connectivity before returning
func NewRedisRecommendationCache(cfg config.RedisConfig, opts ...RedisRecommendationCacheOption) (*RedisRecommendationCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisRecommendationCache{
		client:     client,
		ownsClient: true,
		ttl:        defaultRecommendationTTL,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache, nil
}

// NewRedisRecommendationCacheWithClient creates a cache with an existing
// Redis client. The caller retains ownership of the client.
func NewRedisRecommendationCacheWithClient(client *redis.Client, opts ...RedisRecommendationCacheOption) *RedisRecommendationCache {
	cache := &RedisRecommendationCache{
		client:     client,
		ownsClient: false,
		ttl:        defaultRecommendationTTL,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Get retrieves a cached recommendation; nil means miss
func (c *RedisRecommendationCache) Get(ctx context.Context, tenantID, customerID uuid.UUID, asOf time.Time) (*recovery.CategoryRecommendation, error) {
	data, err := c.client.Get(ctx, recommendationKey(tenantID, customerID, asOf)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var rec recovery.CategoryRecommendation
	if err := json.Unmarshal(data, &rec); err != nil {
		// a corrupt entry is treated as a miss
		c.logger.Warn("dropping undecodable recommendation cache entry",
			zap.String("customer_id", customerID.String()),
			zap.Error(err))
		return nil, nil
	}
	return &rec, nil
}

// Set stores a recommendation with the configured TTL
func (c *RedisRecommendationCache) Set(ctx context.Context, tenantID, customerID uuid.UUID, asOf time.Time, rec *recovery.CategoryRecommendation) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, recommendationKey(tenantID, customerID, asOf), data, c.ttl).Err()
}

// Invalidate removes all cached recommendations for a customer
func (c *RedisRecommendationCache) Invalidate(ctx context.Context, tenantID, customerID uuid.UUID) error {
	pattern := recommendationKeyPattern(tenantID, customerID)
	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()

	keys := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanBatchSize {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

// Close releases the Redis client if this cache owns it
func (c *RedisRecommendationCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}
