package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/tbourn/go-waitlist-backend/internal/domain"
)

// ErrDuplicate is returned by record stores when the email already exists.
var ErrDuplicate = errors.New("duplicate waitlist entry")

// ErrNotConfigured is returned by Ping when no backing store is available.
var ErrNotConfigured = errors.New("record store not configured")

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// WaitlistRepo persists waitlist entries through GORM (SQLite or Postgres).
type WaitlistRepo struct {
	db *gorm.DB
}

// NewWaitlistRepo returns a WaitlistRepo on db.
func NewWaitlistRepo(db *gorm.DB) *WaitlistRepo {
	return &WaitlistRepo{db: db}
}

// DB exposes the underlying handle (shared with the SQL rate-limit store).
func (r *WaitlistRepo) DB() *gorm.DB { return r.db }

// ExistsByEmail reports whether an entry with exactly this email exists.
// Callers pass the normalized (lowercased) address.
func (r *WaitlistRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.WaitlistEntry{}).
		Where("email = ?", email).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert stores e. A unique-index violation on email is reported as ErrDuplicate.
func (r *WaitlistRepo) Insert(ctx context.Context, e *domain.WaitlistEntry) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (r *WaitlistRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsDuplicate reports whether err is a unique-constraint violation from any
// supported driver.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return true
	}
	// SQLite without error translation reports the constraint in the message.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
