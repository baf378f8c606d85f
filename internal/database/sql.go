package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Open creates and validates a database handle for the record store.
// Supported drivers: "sqlite" (embedded, the default) and "postgres".
func Open(ctx context.Context, driver, dsn string, log zerolog.Logger) (*sql.DB, error) {
	var drvName string
	switch driver {
	case "sqlite":
		drvName = "sqlite" // modernc driver
	case "postgres":
		drvName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	tunePool(driver, db)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == "sqlite" {
		for _, pragma := range []string{
			"PRAGMA foreign_keys = ON;",
			"PRAGMA journal_mode = WAL;",
			"PRAGMA synchronous = NORMAL;",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("apply pragma: %w", err)
			}
		}
	}

	log.Info().
		Str("driver", driver).
		Msg("Record store database connected")

	return db, nil
}

// tunePool keeps the sqlite pool at a single connection (single writer);
// postgres gets a modest server-side pool.
func tunePool(driver string, db *sql.DB) {
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(45 * time.Minute)
}
