package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/lookout-dev/lookout/db"
	"github.com/lookout-dev/lookout/internal/analytics"
	"github.com/lookout-dev/lookout/internal/audit"
	"github.com/lookout-dev/lookout/internal/auth"
	"github.com/lookout-dev/lookout/internal/cache"
	"github.com/lookout-dev/lookout/internal/engine"
	"github.com/lookout-dev/lookout/internal/handlers"
	"github.com/lookout-dev/lookout/internal/incidents"
	"github.com/lookout-dev/lookout/internal/notifications"
	"github.com/lookout-dev/lookout/internal/router"
	"github.com/lookout-dev/lookout/internal/runner"
	"github.com/lookout-dev/lookout/internal/scheduler"
	"github.com/lookout-dev/lookout/internal/status"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger, err := zap.NewProduction()

	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := auth.InitJWTSecret(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}

	dsn := os.Getenv("DATABASE_URL")

	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if err := db.ConnectDatabase(dsn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	dedupCache := newDedupCache(logger)
	auditSink := newAuditSink(logger)
	publisher := newPublisher(logger)

	registry := notifications.NewDefaultRegistry()
	triggers := notifications.NewGormTriggerStore(db.DB, logger)
	dispatcher := notifications.NewDispatcher(triggers, dedupCache, registry, auditSink, logger)

	hub := handlers.NewHub()

	eng := engine.New(
		status.NewGormStore(db.DB, logger),
		incidents.NewGormStore(db.DB, logger),
		engine.NewGormMonitorStore(db.DB, logger),
		dispatcher,
		auditSink,
		hub,
		logger,
	)

	probeRunner := runner.New(publisher, eng, runner.NewGormCheckStore(db.DB), logger)

	if err := scheduler.Initialize(probeRunner); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	go pruneTriggers(triggers, logger)

	r := router.NewRouter(router.Config{
		StatusUpdates: handlers.NewStatusUpdateHandler(eng),
		Hub:           hub,
		CronSecret:    os.Getenv("CRON_SECRET"),
	})

	port := os.Getenv("PORT")

	if port == "" {
		port = "3000"
		log.Println("PORT not set, defaulting to 3000")
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newDedupCache(logger *zap.Logger) cache.Cache {
	addr := os.Getenv("REDIS_ADDR")

	if addr == "" {
		logger.Info("REDIS_ADDR not set, notification dedup relies on trigger rows alone")
		return cache.NopCache{}
	}

	redisDB := 0

	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			redisDB = n
		}
	}

	c := cache.NewRedisCache(addr, os.Getenv("REDIS_PASSWORD"), redisDB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		logger.Warn("redis unreachable, notification dedup relies on trigger rows alone", zap.Error(err))
		return cache.NopCache{}
	}

	return c
}

func newAuditSink(logger *zap.Logger) audit.Sink {
	url := os.Getenv("NATS_URL")

	if url == "" {
		logger.Info("NATS_URL not set, audit entries will be dropped")
		return audit.NopSink{}
	}

	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1))

	if err != nil {
		logger.Warn("NATS unreachable, audit entries will be dropped", zap.Error(err))
		return audit.NopSink{}
	}

	subject := os.Getenv("AUDIT_SUBJECT")

	if subject == "" {
		subject = "lookout.audit"
	}

	return audit.NewNATSSink(conn, subject, logger)
}

func newPublisher(logger *zap.Logger) analytics.Publisher {
	baseURL := os.Getenv("ANALYTICS_URL")

	if baseURL == "" {
		logger.Info("ANALYTICS_URL not set, probe records will not be exported")
		return analytics.NopPublisher{}
	}

	return analytics.NewIngestClient(baseURL, os.Getenv("ANALYTICS_TOKEN"), logger)
}

// pruneTriggers sweeps expired notification dedup rows once an hour.
func pruneTriggers(triggers *notifications.GormTriggerStore, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		pruned, err := triggers.PruneExpired(context.Background())

		if err != nil {
			logger.Warn("failed to prune notification triggers", zap.Error(err))
			continue
		}

		if pruned > 0 {
			logger.Info("pruned expired notification triggers", zap.Int64("count", pruned))
		}
	}
}
