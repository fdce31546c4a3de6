package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Engine   EngineConfig
	Cache    CacheConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string // used when Driver is sqlite
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// EngineConfig holds the classifier and accrual policy knobs. Threshold
// band minimums are percentages; override thresholds are in days.
type EngineConfig struct {
	GracePeriodDays         int
	PartialPaymentThreshold string // decimal amount, e.g. "1.00"
	AlphaMinPercent         string
	BetaMinPercent          string
	GammaMinPercent         string
	MaxOverdueDays          int
	NoHistoryOverdueDays    int
	Workers                 int // batch recalculation concurrency
}

// CacheConfig holds recommendation cache settings
type CacheConfig struct {
	RecommendationTTL time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ARC_ prefix (e.g., ARC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ARC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Engine: EngineConfig{
			GracePeriodDays:         v.GetInt("engine.grace_period_days"),
			PartialPaymentThreshold: v.GetString("engine.partial_payment_threshold"),
			AlphaMinPercent:         v.GetString("engine.alpha_min_percent"),
			BetaMinPercent:          v.GetString("engine.beta_min_percent"),
			GammaMinPercent:         v.GetString("engine.gamma_min_percent"),
			MaxOverdueDays:          v.GetInt("engine.max_overdue_days"),
			NoHistoryOverdueDays:    v.GetInt("engine.no_history_overdue_days"),
			Workers:                 v.GetInt("engine.workers"),
		},
		Cache: CacheConfig{
			RecommendationTTL: v.GetDuration("cache.recommendation_ttl"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "arcollect-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "arcollect"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "arcollect.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}
	}

	defaults := recovery.DefaultEngineConfig()
	if cfg.Engine.GracePeriodDays == 0 {
		cfg.Engine.GracePeriodDays = defaults.GracePeriodDays
	}
	if cfg.Engine.PartialPaymentThreshold == "" {
		cfg.Engine.PartialPaymentThreshold = defaults.PartialPaymentThreshold.String()
	}
	if cfg.Engine.AlphaMinPercent == "" {
		cfg.Engine.AlphaMinPercent = "90"
	}
	if cfg.Engine.BetaMinPercent == "" {
		cfg.Engine.BetaMinPercent = "75"
	}
	if cfg.Engine.GammaMinPercent == "" {
		cfg.Engine.GammaMinPercent = "50"
	}
	if cfg.Engine.MaxOverdueDays == 0 {
		cfg.Engine.MaxOverdueDays = 90
	}
	if cfg.Engine.NoHistoryOverdueDays == 0 {
		cfg.Engine.NoHistoryOverdueDays = 180
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = 8
	}
	if cfg.Cache.RecommendationTTL == 0 {
		cfg.Cache.RecommendationTTL = 15 * time.Minute
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	// Engine policy values are validated by the domain when the engine
	// is built; parse errors surface here so a bad config never starts
	// the server.
	if _, err := c.EngineConfig(); err != nil {
		return err
	}

	return nil
}

// EngineConfig builds the domain engine configuration from the loaded
// settings. Band minimums come from config; band order and override
// rule semantics are fixed.
func (c *Config) EngineConfig() (recovery.EngineConfig, error) {
	parse := func(key, value string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("engine.%s: invalid decimal %q", key, value)
		}
		return d, nil
	}

	alpha, err := parse("alpha_min_percent", c.Engine.AlphaMinPercent)
	if err != nil {
		return recovery.EngineConfig{}, err
	}
	beta, err := parse("beta_min_percent", c.Engine.BetaMinPercent)
	if err != nil {
		return recovery.EngineConfig{}, err
	}
	gamma, err := parse("gamma_min_percent", c.Engine.GammaMinPercent)
	if err != nil {
		return recovery.EngineConfig{}, err
	}
	partial, err := parse("partial_payment_threshold", c.Engine.PartialPaymentThreshold)
	if err != nil {
		return recovery.EngineConfig{}, err
	}

	cfg := recovery.EngineConfig{
		GracePeriodDays:         c.Engine.GracePeriodDays,
		PartialPaymentThreshold: partial,
		Bands: []recovery.ThresholdBand{
			{Category: recovery.CategoryAlpha, MinPercent: alpha},
			{Category: recovery.CategoryBeta, MinPercent: beta},
			{Category: recovery.CategoryGamma, MinPercent: gamma},
			{Category: recovery.CategoryDelta, MinPercent: decimal.Zero},
		},
		OverrideRules: []recovery.OverrideRule{
			{
				Kind:          recovery.OverrideMaxOverdueDays,
				Description:   fmt.Sprintf("invoice overdue beyond %d days", c.Engine.MaxOverdueDays),
				ThresholdDays: c.Engine.MaxOverdueDays,
				Result:        recovery.CategoryGamma,
			},
			{
				Kind:          recovery.OverrideNoPaymentHistory,
				Description:   fmt.Sprintf("no payment history with invoice overdue beyond %d days", c.Engine.NoHistoryOverdueDays),
				ThresholdDays: c.Engine.NoHistoryOverdueDays,
				Result:        recovery.CategoryDelta,
			},
		},
	}
	if err := cfg.Validate(); err != nil {
		return recovery.EngineConfig{}, err
	}
	return cfg, nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
