package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stemsi/exstem-assessment/internal/cache"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/event"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/queue"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/router"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
	"github.com/stemsi/exstem-assessment/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Invalid configuration")
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Strs("category_order", categoryNames(cfg)).
		Msg("Starting ExStem Assessment")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Connect to RabbitMQ (optional) ────────────────────────────────
	publisher, err := event.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
	}
	defer publisher.Close()

	// ─── Initialize Store, Cache and Queue ─────────────────────────────
	store := repository.NewPostgresStore(pool, cfg.TxIsolation)

	sharedCache := cache.NewRedisCache(rdb, cfg.CacheDefaultTTL)
	localCache := cache.NewMemoryCache(cfg.LocalCacheSize, cfg.LocalCacheTTL)
	layered := cache.NewLayered(localCache, sharedCache, log)

	certQueue := queue.NewRedisQueue(rdb,
		config.WorkerKey.CertificateQueue,
		config.WorkerKey.CertificateDelayedQueue,
		config.WorkerKey.CertificateDeadQueue,
	)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	tracker := service.NewProgressTracker(store, layered, cfg.CacheDefaultTTL, cfg.CategoryOrder, log)
	answerService := service.NewAnswerService(store, layered, cfg.CacheDefaultTTL, tracker, log)
	syncService := service.NewSyncService(store, layered, cfg.CacheDefaultTTL, cfg.CategoryOrder, log)
	completionService := service.NewCompletionService(
		store, layered, cfg.CacheDefaultTTL, layered,
		certQueue, publisher, cfg.CertificateJobMaxAttempts, log,
	)
	allocatorService := service.NewAllocatorService(
		store, layered, cfg.CacheDefaultTTL, cfg.CategoryOrder, cfg.DefaultQuestionsPerCategory, log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	deps := map[string]handler.Pinger{
		"postgres": pool,
		"redis":    handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}
	handlers := &router.Handlers{
		Assessment:   handler.NewAssessmentHandler(tracker, answerService, syncService, completionService),
		AdminSession: handler.NewAdminSessionHandler(allocatorService),
		System:       handler.NewSystemHandler(deps, certQueue, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	certificateWorker := worker.NewCertificateWorker(
		certQueue, publisher, cfg.CertificateJobBackoff, cfg.CertificateRetryPollInterval, log,
	)
	if publisher.Enabled() {
		workers.Add(1)
		go func() {
			defer workers.Done()
			certificateWorker.Start(workerCtx)
		}()
	} else {
		log.Warn().Str("queue", config.WorkerKey.CertificateQueue).
			Msg("Event publishing disabled, certificate jobs stay queued until a broker is configured")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the certificate worker; an in-flight job finishes its current attempt.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

func categoryNames(cfg *config.Config) []string {
	names := make([]string, len(cfg.CategoryOrder))
	for i, c := range cfg.CategoryOrder {
		names[i] = string(c)
	}
	return names
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
