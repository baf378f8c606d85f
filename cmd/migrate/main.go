package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/campushub/assess-backend/internal/config"
	"github.com/campushub/assess-backend/internal/database"
	"github.com/campushub/assess-backend/internal/engine"
	"github.com/campushub/assess-backend/internal/logger"
	"github.com/campushub/assess-backend/internal/store"
)

// Opens the configured store and applies any pending schema migrations,
// then exits. Useful for upgrading a database before a deploy without
// starting the server.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if cfg.StoreDriver == "memory" {
		log.Fatal().Msg("Nothing to migrate for the in-memory store")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	st, err := store.NewSQL(ctx, db, cfg.StoreName, engine.SchemaVersion, engine.StoreMigrations(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	st.Close()

	log.Info().
		Str("store", cfg.StoreName).
		Int("version", engine.SchemaVersion).
		Msg("Store is up to date")
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
