package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-waitlist-backend/internal/config"
	"github.com/tbourn/go-waitlist-backend/internal/emailcheck"
	"github.com/tbourn/go-waitlist-backend/internal/http/handlers"
	"github.com/tbourn/go-waitlist-backend/internal/ratelimit"
	"github.com/tbourn/go-waitlist-backend/internal/repo"
	"github.com/tbourn/go-waitlist-backend/internal/services"
)

// storeBundle is the record store selected by STORE_DRIVER. Store and
// Pinger are nil when the driver lacks credentials; DB is set only for the
// GORM drivers.
type storeBundle struct {
	Store  services.WaitlistStore
	Pinger handlers.Pinger
	DB     *gorm.DB
}

// Close releases the database pool, if any.
func (b *storeBundle) Close() {
	if b.DB == nil {
		return
	}
	if sqlDB, err := b.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func buildStore(ctx context.Context, cfg config.StoreConfig, timeout time.Duration) (*storeBundle, error) {
	if !cfg.Configured() {
		log.Warn().Str("driver", cfg.Driver).Msg("record store not configured; submissions will fail until it is")
		return &storeBundle{}, nil
	}

	switch cfg.Driver {
	case config.DriverREST:
		s, err := repo.NewRESTStore(repo.RESTOptions{
			BaseURL:    cfg.URL,
			ServiceKey: cfg.ServiceKey,
			Table:      cfg.Table,
			Timeout:    timeout,
		})
		if err != nil {
			return nil, err
		}
		return &storeBundle{Store: s, Pinger: s}, nil

	case config.DriverSQLite, config.DriverPostgres:
		var (
			db  *gorm.DB
			err error
		)
		if cfg.Driver == config.DriverSQLite {
			db, err = repo.OpenSQLite(cfg.DBPath)
		} else {
			db, err = repo.OpenPostgres(ctx, cfg.DatabaseURL, repo.PostgresOptions{
				Attempts: uint(cfg.ConnectAttempts),
				Delay:    cfg.ConnectDelay,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
		}
		if err := repo.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		r := repo.NewWaitlistRepo(db)
		return &storeBundle{Store: r, Pinger: r, DB: db}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// buildLimiter returns the intake limiter. The sql backend shares counters
// through db and prunes finished windows in the background until ctx ends.
func buildLimiter(ctx context.Context, cfg config.IntakeConfig, db *gorm.DB) (*ratelimit.Limiter, error) {
	if cfg.RateBackend != config.BackendSQL {
		return ratelimit.NewLimiter(ratelimit.NewMemoryStore(0), cfg.RateMax, cfg.RateWindow), nil
	}
	if db == nil {
		return nil, fmt.Errorf("rate limit backend %q needs a configured database store", cfg.RateBackend)
	}
	s := ratelimit.NewSQLStore(db)
	if err := s.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate rate limit windows: %w", err)
	}
	go purgeWindows(ctx, s, cfg.RateWindow)
	return ratelimit.NewLimiter(s, cfg.RateMax, cfg.RateWindow), nil
}

func purgeWindows(ctx context.Context, s *ratelimit.SQLStore, win time.Duration) {
	every := 10 * win
	if every < time.Minute {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := s.Purge(ctx, win, now)
			if err != nil {
				log.Warn().Err(err).Msg("purge rate limit windows")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("purged rate limit windows")
			}
		}
	}
}

func loadDenylist(path string) (*emailcheck.Denylist, error) {
	d, err := emailcheck.LoadDenylist(path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		log.Info().Str("file", path).Int("domains", d.Len()).Msg("disposable domain denylist loaded")
	}
	return d, nil
}
