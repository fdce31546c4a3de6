package config

import (
	"os"
	"testing"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"ARC_APP_NAME":                  os.Getenv("ARC_APP_NAME"),
		"ARC_APP_ENV":                   os.Getenv("ARC_APP_ENV"),
		"ARC_APP_PORT":                  os.Getenv("ARC_APP_PORT"),
		"ARC_DATABASE_DRIVER":           os.Getenv("ARC_DATABASE_DRIVER"),
		"ARC_DATABASE_HOST":             os.Getenv("ARC_DATABASE_HOST"),
		"ARC_DATABASE_PORT":             os.Getenv("ARC_DATABASE_PORT"),
		"ARC_DATABASE_PASSWORD":         os.Getenv("ARC_DATABASE_PASSWORD"),
		"ARC_DATABASE_SSLMODE":          os.Getenv("ARC_DATABASE_SSLMODE"),
		"ARC_ENGINE_GRACE_PERIOD_DAYS":  os.Getenv("ARC_ENGINE_GRACE_PERIOD_DAYS"),
		"ARC_ENGINE_ALPHA_MIN_PERCENT":  os.Getenv("ARC_ENGINE_ALPHA_MIN_PERCENT"),
		"ARC_ENGINE_BETA_MIN_PERCENT":   os.Getenv("ARC_ENGINE_BETA_MIN_PERCENT"),
		"ARC_ENGINE_GAMMA_MIN_PERCENT":  os.Getenv("ARC_ENGINE_GAMMA_MIN_PERCENT"),
		"ARC_ENGINE_MAX_OVERDUE_DAYS":   os.Getenv("ARC_ENGINE_MAX_OVERDUE_DAYS"),
		"ARC_ENGINE_WORKERS":            os.Getenv("ARC_ENGINE_WORKERS"),
		"ARC_REDIS_ENABLED":             os.Getenv("ARC_REDIS_ENABLED"),
		"ARC_HTTP_CORS_ALLOW_ORIGINS":   os.Getenv("ARC_HTTP_CORS_ALLOW_ORIGINS"),
		"ARC_CACHE_RECOMMENDATION_TTL":  os.Getenv("ARC_CACHE_RECOMMENDATION_TTL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "arcollect-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "arcollect", cfg.Database.DBName)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, 8, cfg.Engine.Workers)
		assert.Equal(t, "90", cfg.Engine.AlphaMinPercent)
		assert.Equal(t, 90, cfg.Engine.MaxOverdueDays)
		assert.Equal(t, 180, cfg.Engine.NoHistoryOverdueDays)
	})

	t.Run("environment variables override defaults", func(t *testing.T) {
		clearEnv()
		os.Setenv("ARC_APP_PORT", "9090")
		os.Setenv("ARC_DATABASE_DRIVER", "sqlite")
		os.Setenv("ARC_ENGINE_MAX_OVERDUE_DAYS", "120")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9090", cfg.App.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, 120, cfg.Engine.MaxOverdueDays)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		clearEnv()
		os.Setenv("ARC_DATABASE_DRIVER", "oracle")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects invalid band percentages", func(t *testing.T) {
		clearEnv()
		os.Setenv("ARC_ENGINE_ALPHA_MIN_PERCENT", "not-a-number")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects non-descending bands", func(t *testing.T) {
		clearEnv()
		os.Setenv("ARC_ENGINE_ALPHA_MIN_PERCENT", "40")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production requires database password", func(t *testing.T) {
		clearEnv()
		os.Setenv("ARC_APP_ENV", "production")
		os.Setenv("ARC_DATABASE_SSLMODE", "require")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")
	})
}

func TestEngineConfig(t *testing.T) {
	t.Run("builds a valid domain configuration from defaults", func(t *testing.T) {
		cfg := &Config{}
		applyDefaults(cfg)

		engineCfg, err := cfg.EngineConfig()
		require.NoError(t, err)
		require.Len(t, engineCfg.Bands, 4)
		assert.Equal(t, recovery.CategoryAlpha, engineCfg.Bands[0].Category)
		assert.Equal(t, "90", engineCfg.Bands[0].MinPercent.String())
		assert.True(t, engineCfg.Bands[3].MinPercent.IsZero())
		require.Len(t, engineCfg.OverrideRules, 2)
		assert.Equal(t, recovery.OverrideMaxOverdueDays, engineCfg.OverrideRules[0].Kind)
		assert.Equal(t, 90, engineCfg.OverrideRules[0].ThresholdDays)
		assert.Equal(t, recovery.OverrideNoPaymentHistory, engineCfg.OverrideRules[1].Kind)
		assert.Equal(t, recovery.CategoryDelta, engineCfg.OverrideRules[1].Result)
	})

	t.Run("custom override thresholds flow through", func(t *testing.T) {
		cfg := &Config{}
		applyDefaults(cfg)
		cfg.Engine.MaxOverdueDays = 60
		cfg.Engine.NoHistoryOverdueDays = 365

		engineCfg, err := cfg.EngineConfig()
		require.NoError(t, err)
		assert.Equal(t, 60, engineCfg.OverrideRules[0].ThresholdDays)
		assert.Equal(t, 365, engineCfg.OverrideRules[1].ThresholdDays)
		assert.Contains(t, engineCfg.OverrideRules[0].Description, "60 days")
	})
}

func TestDatabaseDSN(t *testing.T) {
	d := &DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "arcollect",
		Password: "p@ss/word",
		DBName:   "arcollect",
		SSLMode:  "require",
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// special characters must be escaped
	assert.NotContains(t, dsn, "p@ss/word")
}
