// Package repo implements the record stores behind the waitlist: GORM-backed
// SQLite and Postgres stores, and a REST store speaking the PostgREST
// dialect. This file contains database bootstrapping helpers and schema
// migrations.
package repo

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-waitlist-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	tunePool(db)
	instrument(db)
	return db, nil
}

// PostgresOptions controls how OpenPostgres waits for the server at startup.
type PostgresOptions struct {
	Attempts uint
	Delay    time.Duration
}

// OpenPostgres connects to dsn, retrying while the server comes up
// (containers commonly start the app before the database is accepting).
func OpenPostgres(ctx context.Context, dsn string, opts PostgresOptions) (*gorm.DB, error) {
	if opts.Attempts == 0 {
		opts.Attempts = 5
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}

	var db *gorm.DB
	err := retry.Do(
		func() error {
			d, err := gorm.Open(postgres.Open(dsn), gormConfig())
			if err != nil {
				return err
			}
			sqlDB, err := d.DB()
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := sqlDB.PingContext(pingCtx); err != nil {
				_ = sqlDB.Close()
				return err
			}
			db = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(opts.Attempts),
		retry.Delay(opts.Delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("postgres not ready, retrying")
		}),
	)
	if err != nil {
		return nil, err
	}

	tunePool(db)
	instrument(db)
	return db, nil
}

// AutoMigrate creates or updates the waitlist and rate-limit tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.WaitlistEntry{},
		&domain.RateLimitWindow{},
	)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}
}

func tunePool(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

// instrument attaches OpenTelemetry query spans. Failure is logged, not fatal.
func instrument(db *gorm.DB) {
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		log.Warn().Err(err).Msg("gorm tracing plugin not installed")
	}
}
