package cache

import (
	"context"
	"testing"
	"time"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRecommendationCache(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	customerID := uuid.New()
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	rec := &recovery.CategoryRecommendation{
		CustomerID:          customerID,
		RecommendedCategory: recovery.CategoryBeta,
		OnTimePercentage:    decimal.NewFromInt(80),
	}

	t.Run("set then get", func(t *testing.T) {
		c := NewInMemoryRecommendationCache(time.Minute)
		require.NoError(t, c.Set(ctx, tenantID, customerID, asOf, rec))

		got, err := c.Get(ctx, tenantID, customerID, asOf)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, recovery.CategoryBeta, got.RecommendedCategory)
	})

	t.Run("miss returns nil without error", func(t *testing.T) {
		c := NewInMemoryRecommendationCache(time.Minute)
		got, err := c.Get(ctx, tenantID, customerID, asOf)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("different as-of dates are separate entries", func(t *testing.T) {
		c := NewInMemoryRecommendationCache(time.Minute)
		require.NoError(t, c.Set(ctx, tenantID, customerID, asOf, rec))

		got, err := c.Get(ctx, tenantID, customerID, asOf.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("expired entries read as misses", func(t *testing.T) {
		c := NewInMemoryRecommendationCache(time.Minute)
		current := asOf
		c.now = func() time.Time { return current }

		require.NoError(t, c.Set(ctx, tenantID, customerID, asOf, rec))
		current = current.Add(2 * time.Minute)

		got, err := c.Get(ctx, tenantID, customerID, asOf)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("invalidate removes every as-of entry for the customer", func(t *testing.T) {
		c := NewInMemoryRecommendationCache(time.Minute)
		require.NoError(t, c.Set(ctx, tenantID, customerID, asOf, rec))
		require.NoError(t, c.Set(ctx, tenantID, customerID, asOf.AddDate(0, 0, 1), rec))
		otherCustomer := uuid.New()
		require.NoError(t, c.Set(ctx, tenantID, otherCustomer, asOf, rec))

		require.NoError(t, c.Invalidate(ctx, tenantID, customerID))

		got, err := c.Get(ctx, tenantID, customerID, asOf)
		require.NoError(t, err)
		assert.Nil(t, got)
		got, err = c.Get(ctx, tenantID, otherCustomer, asOf)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}
