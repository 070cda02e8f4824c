package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"layofflens/aggregator/internal/database/migrations"
)

// DB wraps the sqlite connection pool.
type DB struct {
	*sqlx.DB
	readOnly bool
}

// NewDB opens the database and applies connection pragmas. The schema is not
// touched here; call Migrate before first use.
func NewDB(cfg *Config) (*DB, error) {
	if cfg.DBPath != ":memory:" {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(err, "create database directory")
			}
		}
	}

	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}

	// WAL lets the HTTP readers run while a pipeline run is writing.
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=%d",
		cfg.DBPath, cfg.BusyTimeoutMS)
	if cfg.ReadOnly {
		dsn += "&mode=ro"
	}
	log.Info().Str("path", cfg.DBPath).Str("mode", modeStr(cfg.ReadOnly)).Msg("Opening database")

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = %d;", cfg.CacheSizeKB),
		"PRAGMA temp_store = MEMORY;",
	}
	if cfg.ReadOnly {
		pragmas = append(pragmas, "PRAGMA query_only = ON;")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("Failed to set PRAGMA")
		}
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping database (%s)", modeStr(cfg.ReadOnly))
	}

	return &DB{DB: db, readOnly: cfg.ReadOnly}, nil
}

// Migrate applies the bundled schema migrations. It is a no-op on read-only
// connections.
func (db *DB) Migrate(ctx context.Context) error {
	if db.readOnly {
		log.Debug().Msg("Skipping migrations for read-only connection")
		return nil
	}

	files, err := migrations.LoadMigrations(migrations.Files)
	if err != nil {
		return err
	}
	if err := migrations.RunMigrations(ctx, db.DB.DB, files); err != nil {
		return err
	}
	log.Debug().Int("count", len(files)).Msg("Database schema up to date")
	return nil
}

func modeStr(readOnly bool) string {
	if readOnly {
		return "read-only"
	}
	return "read-write"
}

// Exists reports whether a database file is present at dbPath.
func Exists(dbPath string) bool {
	info, err := os.Stat(dbPath)
	return err == nil && !info.IsDir()
}

// DeleteDB removes the database file and its WAL sidecars if they exist.
func DeleteDB(dbPath string) error {
	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", path)
		}
	}
	log.Info().Str("path", dbPath).Msg("Deleted database")
	return nil
}
