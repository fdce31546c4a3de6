package recovery

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineConfigValidate(t *testing.T) {
	t.Run("default configuration is valid", func(t *testing.T) {
		assert.NoError(t, DefaultEngineConfig().Validate())
	})

	t.Run("negative grace period is rejected", func(t *testing.T) {
		cfg := DefaultEngineConfig()
		cfg.GracePeriodDays = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, IsConfigurationError(err))
	})

	t.Run("negative partial payment threshold is rejected", func(t *testing.T) {
		cfg := DefaultEngineConfig()
		cfg.PartialPaymentThreshold = decimal.NewFromInt(-1)
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing band is rejected", func(t *testing.T) {
		cfg := DefaultEngineConfig()
		cfg.Bands = cfg.Bands[:3]
		assert.Error(t, cfg.Validate())
	})

	t.Run("duplicate category band is rejected", func(t *testing.T) {
		cfg := DefaultEngineConfig()
		cfg.Bands[1].Category = CategoryAlpha
		assert.Error(t, cfg.Validate())
	})

	t.Run("band referencing New is rejected", func(t *testing.T) {
		cfg := DefaultEngineConfig()
		cfg.Bands[0].Category = CategoryNew
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-descending bounds are rejected", func(t *testing.T) {
		cfg := DefaultEngineConfig()
		cfg.Bands[1].MinPercent = decimal.NewFromInt(95)
		assert.Error(t, cfg.Validate())
	})

	t.Run("gap above zero is rejected", func(t *testing.T) {
		cfg := DefaultEngineConfig()
		cfg.Bands[3].MinPercent = decimal.NewFromInt(10)
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gap")
	})

	t.Run("bound above 100 is rejected", func(t *testing.T) {
		cfg := DefaultEngineConfig()
		cfg.Bands[0].MinPercent = decimal.NewFromInt(120)
		assert.Error(t, cfg.Validate())
	})

	t.Run("override rule with unknown kind is rejected", func(t *testing.T) {
		cfg := DefaultEngineConfig()
		cfg.OverrideRules[0].Kind = "SOMETHING_ELSE"
		assert.Error(t, cfg.Validate())
	})

	t.Run("override rule targeting New is rejected", func(t *testing.T) {
		cfg := DefaultEngineConfig()
		cfg.OverrideRules[0].Result = CategoryNew
		assert.Error(t, cfg.Validate())
	})

	t.Run("override rule with zero threshold is rejected", func(t *testing.T) {
		cfg := DefaultEngineConfig()
		cfg.OverrideRules[0].ThresholdDays = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestBandFor(t *testing.T) {
	cfg := DefaultEngineConfig()

	cases := []struct {
		percent  string
		expected CustomerCategory
	}{
		{"100", CategoryAlpha},
		{"90", CategoryAlpha},
		{"89.99", CategoryBeta},
		{"75", CategoryBeta},
		{"74.99", CategoryGamma},
		{"50", CategoryGamma},
		{"49.99", CategoryDelta},
		{"0", CategoryDelta},
	}
	for _, tc := range cases {
		t.Run(tc.percent+" percent", func(t *testing.T) {
			got := cfg.BandFor(decimal.RequireFromString(tc.percent))
			assert.Equal(t, tc.expected, got)
		})
	}
}
