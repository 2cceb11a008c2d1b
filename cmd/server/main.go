package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizrun-backend/internal/config"
	"github.com/stemsi/quizrun-backend/internal/database"
	"github.com/stemsi/quizrun-backend/internal/handler"
	"github.com/stemsi/quizrun-backend/internal/logger"
	"github.com/stemsi/quizrun-backend/internal/repository"
	"github.com/stemsi/quizrun-backend/internal/router"
	"github.com/stemsi/quizrun-backend/internal/service"
	"github.com/stemsi/quizrun-backend/internal/validator"
	"github.com/stemsi/quizrun-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting QuizRun Backend")

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

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	store := service.NewRedisStore(rdb, cfg.Quiz.SnapshotTTL)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo, store)
	registry := service.NewRegistry(cfg.Quiz.SessionRetention)
	quizService, err := service.NewQuizService(cfg.Quiz, questionRepo, attemptRepo, store, registry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize quiz service")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	pingers := map[string]handler.Pinger{
		"postgres": pool.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	handlers := &router.Handlers{
		Auth:   handler.NewAuthHandler(authService, log),
		Quiz:   handler.NewQuizHandler(quizService, log),
		WS:     handler.NewWSHandler(quizService, store, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(rdb, quizService, pingers, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	for _, start := range []func(context.Context){
		worker.NewAutosaveWorker(pool, rdb, log).Start,
		worker.NewScoringWorker(pool, rdb, log).Start,
		worker.NewQuestionOrderWorker(pool, rdb, log).Start,
		worker.NewEventWorker(pool, rdb, log).Start,
	} {
		workers.Go(func() { start(workerCtx) })
	}

	janitorCtx, janitorCancel := context.WithCancel(ctx)
	go quizService.RunJanitor(janitorCtx)

	// ─── Prewarm Inventory Cache ──────────────────────────────────────
	if _, err := quizService.Inventory(ctx); err != nil {
		log.Warn().Err(err).Msg("Inventory prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	// 2. Stop countdowns. Snapshots stay in Redis for the next process.
	janitorCancel()
	quizService.Shutdown()

	// 3. Stop background workers and wait for their buffers to flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
