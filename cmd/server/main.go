package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/campushub/assess-backend/internal/catalog"
	"github.com/campushub/assess-backend/internal/config"
	"github.com/campushub/assess-backend/internal/database"
	"github.com/campushub/assess-backend/internal/engine"
	"github.com/campushub/assess-backend/internal/handler"
	"github.com/campushub/assess-backend/internal/logger"
	"github.com/campushub/assess-backend/internal/middleware"
	"github.com/campushub/assess-backend/internal/router"
	"github.com/campushub/assess-backend/internal/store"
	"github.com/campushub/assess-backend/internal/validator"
	"github.com/campushub/assess-backend/internal/websocket"
	"github.com/campushub/assess-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store_driver", cfg.StoreDriver).
		Msg("Starting CampusHub Assessment Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Attempt Store ────────────────────────────────────────────
	// A failed open degrades to an in-memory store: sessions still run,
	// attempt history just does not survive a restart.
	st := openStore(ctx, cfg, log)
	defer st.Close()

	// ─── Load Exam Catalog ─────────────────────────────────────────────
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.CatalogPath).Msg("Catalog load failed, starting with empty catalog")
		cat = catalog.Empty()
	}
	log.Info().Int("exams", cat.Len()).Msg("Catalog ready")

	// ─── Initialize Engine + Event Hub ─────────────────────────────────
	hub := websocket.NewHub(log)
	eng := engine.New(cat, st, hub, middleware.DefaultUserID, log)

	// ─── Start Countdown Worker ────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	countdown := worker.NewCountdownWorker(eng, cfg.TickInterval, log)
	go countdown.Start(workerCtx)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(cfg),
		Exam:    handler.NewExamHandler(eng),
		Session: handler.NewSessionHandler(eng),
		WS:      handler.NewWSHandler(eng, hub, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
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

	// 2. Stop the countdown and wait for pending attempt writes.
	workerCancel()
	eng.Drain()

	log.Info().Msg("Shutdown complete")
}

// openStore opens the configured attempt store, falling back to memory
// when the backing database cannot be opened or migrated.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) store.Store {
	migrations := engine.StoreMigrations()

	if cfg.StoreDriver != "memory" {
		db, err := database.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, log)
		if err == nil {
			st, serr := store.NewSQL(ctx, db, cfg.StoreName, engine.SchemaVersion, migrations, log)
			if serr == nil {
				return st
			}
			db.Close()
			err = serr
		}
		var openErr *store.OpenError
		if errors.As(err, &openErr) {
			log.Warn().Err(openErr).Str("store", openErr.Name).Msg("Store open failed, falling back to in-memory store")
		} else {
			log.Warn().Err(err).Msg("Database unavailable, falling back to in-memory store")
		}
	}

	st, err := store.NewMemory(cfg.StoreName, engine.SchemaVersion, migrations)
	if err != nil {
		log.Fatal().Err(err).Msg("In-memory store init failed")
	}
	return st
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
