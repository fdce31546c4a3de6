package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apprecovery "github.com/arcollect/backend/internal/application/recovery"
	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/arcollect/backend/internal/infrastructure/cache"
	"github.com/arcollect/backend/internal/infrastructure/config"
	"github.com/arcollect/backend/internal/infrastructure/logger"
	"github.com/arcollect/backend/internal/infrastructure/persistence"
	"github.com/arcollect/backend/internal/interfaces/http/handler"
	"github.com/arcollect/backend/internal/interfaces/http/middleware"
	"github.com/arcollect/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting receivables recovery backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	receiptRepo := persistence.NewGormReceiptRepository(db.DB)
	accountRepo := persistence.NewGormCustomerAccountRepository(db.DB)
	changeRepo := persistence.NewGormCategoryChangeRepository(db.DB)

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		log.Fatal("Invalid engine configuration", zap.Error(err))
	}
	engine, err := recovery.NewEngine(engineCfg)
	if err != nil {
		log.Fatal("Failed to construct recovery engine", zap.Error(err))
	}

	var recCache apprecovery.RecommendationCache
	var redisCache *cache.RedisRecommendationCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisRecommendationCache(cfg.Redis,
			cache.WithTTL(cfg.Cache.RecommendationTTL),
			cache.WithCacheLogger(log))
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		recCache = redisCache
		log.Info("Recommendation cache backed by Redis", zap.String("addr", cfg.Redis.Addr()))
	} else {
		recCache = cache.NewInMemoryRecommendationCache(cfg.Cache.RecommendationTTL)
		log.Info("Recommendation cache running in-memory")
	}
	defer func() {
		if redisCache != nil {
			if err := redisCache.Close(); err != nil {
				log.Error("Error closing Redis connection", zap.Error(err))
			}
		}
	}()

	recoveryService := apprecovery.NewRecoveryService(
		invoiceRepo, receiptRepo, accountRepo, changeRepo, engine,
		apprecovery.WithRecommendationCache(recCache),
		apprecovery.WithLogger(log),
		apprecovery.WithWorkerCount(cfg.Engine.Workers),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to set up request validator", zap.Error(err))
	}

	ginEngine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxy configuration", zap.Error(err))
		}
	}

	ginEngine.Use(middleware.RequestID())
	ginEngine.Use(logger.GinMiddleware(log))
	ginEngine.Use(logger.Recovery(log))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	ginEngine.Use(middleware.CORSWithConfig(corsConfig))

	r := router.NewRouter(ginEngine, router.WithAPIVersion("v1"))
	r.Register(handler.NewRecoveryHandler(recoveryService, engine))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited")
}
