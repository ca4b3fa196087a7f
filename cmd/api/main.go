package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"real-estate-catalog/internal/analytics"
	"real-estate-catalog/internal/cache"
	"real-estate-catalog/internal/catalog"
	"real-estate-catalog/internal/cleanup"
	"real-estate-catalog/internal/config"
	"real-estate-catalog/internal/database"
	"real-estate-catalog/internal/handlers"
	"real-estate-catalog/internal/leads"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/metrics"
	"real-estate-catalog/internal/pipeline"
	"real-estate-catalog/internal/ratelimit"
	"real-estate-catalog/internal/recommend"
	"real-estate-catalog/internal/scheduler"
	"real-estate-catalog/internal/search"
	"real-estate-catalog/internal/slug"
	"real-estate-catalog/internal/snapshot"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := getEnv("CONFIG_PATH", "config/catalog.yaml")
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		logrus.WithError(err).WithField("path", configPath).Fatal("Failed to load configuration")
	}

	log := logging.New(appConfig.Logging)
	log.WithFields(logrus.Fields{
		"path":   configPath,
		"driver": appConfig.Database.Driver,
		"cache":  appConfig.Cache.Backend,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := database.Open(appConfig.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer gormDB.Close()

	if err := gormDB.InitSchema(); err != nil {
		log.WithError(err).Fatal("Failed to initialize schema")
	}

	sharedCache, closeCache := newCache(ctx, appConfig, log)
	defer closeCache()

	// Services
	catalogService := catalog.NewService(gormDB, slug.NewResolver(gormDB, gormDB), sharedCache, log)
	viewService := analytics.NewService(gormDB.DB(), appConfig.Analytics.IPHashKey, log)
	recommendEngine := recommend.NewEngine(gormDB, viewService, catalogService, sharedCache,
		appConfig.Analytics.GetTrendingWindow(), log)
	leadService := leads.NewService(gormDB.DB(), log)
	snapshotService := snapshot.NewService(gormDB.DB(), log)
	cleanupService := cleanup.NewService(gormDB.DB(), log)

	opts := []pipeline.Option{
		pipeline.WithHistory(snapshotService),
		pipeline.WithDeleteLog(cleanupService),
		pipeline.WithCache(sharedCache),
	}
	if appConfig.Mutation.Transactional {
		opts = append(opts, pipeline.WithTransactions(pipeline.GormTx(gormDB)))
		log.Info("Admin writes run in a single transaction")
	}

	// Search index and its sync worker
	var searcher handlers.Searcher
	var queueWorker *scheduler.QueueWorker
	if appConfig.Search.Enabled {
		searchClient := search.NewSearchClient(appConfig.Search.Meilisearch, log)
		if err := searchClient.InitIndex(); err != nil {
			log.WithError(err).Warn("Failed to initialize search index")
		}
		searcher = searchClient

		queueWorker = scheduler.NewQueueWorker(gormDB.DB(), searchClient, catalogService,
			appConfig.Scheduler.GetSyncInterval(), appConfig.Scheduler.SyncBatchSize, log)
		opts = append(opts, pipeline.WithSearchQueue(queueWorker))
		queueWorker.Start(ctx)
		defer queueWorker.Stop()
	}

	writePipeline := pipeline.New(gormDB, log, opts...)

	var limiter *ratelimit.Limiter
	if appConfig.RateLimit.Enabled {
		limiter = ratelimit.New(appConfig.RateLimit)
		log.WithFields(logrus.Fields{
			"per_minute": appConfig.RateLimit.RequestsPerMinute,
			"per_hour":   appConfig.RateLimit.RequestsPerHour,
		}).Info("Lead rate limiter initialized")
	}

	deps := scheduler.Deps{
		Purger:   cleanupService,
		Featured: catalogService,
		Trending: recommendEngine,
	}
	if limiter != nil {
		deps.Limiter = limiter
	}
	appScheduler := scheduler.NewScheduler(appConfig, deps, log)
	if err := appScheduler.Start(); err != nil {
		log.WithError(err).Warn("Failed to start scheduler")
	}
	defer appScheduler.Stop()

	// Router
	gin.SetMode(appConfig.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware())
	if appConfig.Logging.LogRequests {
		r.Use(logging.RequestLogger(log))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     appConfig.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if err := gormDB.Ping(c.Request.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status": status,
			"time":   time.Now().UTC(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.NewPublicHandler(handlers.PublicDeps{
		Catalog:       catalogService,
		Recommend:     recommendEngine,
		Views:         viewService,
		Leads:         leadService,
		Searcher:      searcher,
		Store:         gormDB,
		Limiter:       limiter,
		Server:        appConfig.Server,
		TrendingLimit: appConfig.Analytics.TrendingLimit,
	}, log).Register(r)

	adminDeps := handlers.AdminDeps{
		DB:        gormDB,
		Pipeline:  writePipeline,
		Catalog:   catalogService,
		Leads:     leadService,
		Snapshots: snapshotService,
		Cleanup:   cleanupService,
		Views:     viewService,
		Limiter:   limiter,
		Config:    appConfig,
	}
	if queueWorker != nil {
		adminDeps.Queue = queueWorker
	}
	handlers.NewAdminHandler(adminDeps, log).Register(r)

	srv := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", appConfig.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}

// newCache builds the configured cache backend. A Redis backend that
// cannot be reached falls back to the in-process store.
func newCache(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*cache.Cache, func()) {
	if cfg.Cache.Backend == "redis" {
		store, err := cache.NewRedisStore(ctx, cfg.Cache.Redis, cfg.Cache.Prefix)
		if err == nil {
			log.WithField("addr", cfg.Cache.Redis.Addr).Info("Using Redis cache")
			return cache.New(store, cfg.Cache.GetTTL(), log), func() { _ = store.Close() }
		}
		log.WithError(err).Warn("Redis unavailable, using in-memory cache")
	}
	store := cache.NewMemoryStore(time.Minute)
	return cache.New(store, cfg.Cache.GetTTL(), log), store.Close
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
