package ratelimit

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-waitlist-backend/internal/domain"
)

// upsertWindow performs the read-reset-increment in one statement, so
// concurrent processes sharing the database see a consistent counter.
// Parameters: key, now, now, window, now, window, now.
// Requires SQLite >= 3.35 or PostgreSQL (both support UPSERT ... RETURNING).
const upsertWindow = `
INSERT INTO rate_limit_windows (bucket_key, hits, window_start_ms)
VALUES (?, 1, ?)
ON CONFLICT (bucket_key) DO UPDATE SET
	hits = CASE WHEN ? > rate_limit_windows.window_start_ms + ?
		THEN 1 ELSE rate_limit_windows.hits + 1 END,
	window_start_ms = CASE WHEN ? > rate_limit_windows.window_start_ms + ?
		THEN ? ELSE rate_limit_windows.window_start_ms END
RETURNING hits, window_start_ms`

// SQLStore is a Store backed by the rate_limit_windows table, shared by
// every process pointed at the same database.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore returns a SQLStore on db. Call Migrate once before use.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the rate_limit_windows table if needed.
func (s *SQLStore) Migrate() error {
	return s.db.AutoMigrate(&domain.RateLimitWindow{})
}

// Increment implements Store.
func (s *SQLStore) Increment(ctx context.Context, key string, win time.Duration, now time.Time) (int, time.Time, error) {
	nowMs := now.UnixMilli()
	winMs := win.Milliseconds()

	var row domain.RateLimitWindow
	err := s.db.WithContext(ctx).
		Raw(upsertWindow, key, nowMs, nowMs, winMs, nowMs, winMs, nowMs).
		Scan(&row).Error
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit upsert: %w", err)
	}
	return row.Count, time.UnixMilli(row.WindowStartMs), nil
}

// Purge deletes windows that ended before cutoff and returns how many were removed.
func (s *SQLStore) Purge(ctx context.Context, win time.Duration, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("window_start_ms + ? < ?", win.Milliseconds(), cutoff.UnixMilli()).
		Delete(&domain.RateLimitWindow{})
	return res.RowsAffected, res.Error
}
