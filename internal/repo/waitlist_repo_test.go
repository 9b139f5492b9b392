package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-waitlist-backend/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func entry(email string) *domain.WaitlistEntry {
	return &domain.WaitlistEntry{
		ID:           uuid.NewString(),
		Email:        email,
		SubscribedAt: time.Now().UTC(),
		Source:       "landing_page",
		IPAddress:    "203.0.113.7",
		UserAgent:    "test-agent",
	}
}

func TestWaitlistRepo_InsertAndExists(t *testing.T) {
	r := NewWaitlistRepo(newTestDB(t))
	ctx := context.Background()

	ok, err := r.ExistsByEmail(ctx, "a@example.com")
	if err != nil || ok {
		t.Fatalf("ExistsByEmail before insert = %v, %v; want false, nil", ok, err)
	}
	if err := r.Insert(ctx, entry("a@example.com")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ok, err = r.ExistsByEmail(ctx, "a@example.com")
	if err != nil || !ok {
		t.Fatalf("ExistsByEmail after insert = %v, %v; want true, nil", ok, err)
	}
	if ok, _ := r.ExistsByEmail(ctx, "b@example.com"); ok {
		t.Fatalf("unrelated email reported as existing")
	}
}

func TestWaitlistRepo_InsertDuplicate(t *testing.T) {
	r := NewWaitlistRepo(newTestDB(t))
	ctx := context.Background()

	if err := r.Insert(ctx, entry("dup@example.com")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := r.Insert(ctx, entry("dup@example.com"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second insert err = %v; want ErrDuplicate", err)
	}
}

func TestWaitlistRepo_Ping(t *testing.T) {
	r := NewWaitlistRepo(newTestDB(t))
	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if r.DB() == nil {
		t.Fatalf("DB() returned nil")
	}
}

func TestWaitlistRepo_CanceledContext(t *testing.T) {
	r := NewWaitlistRepo(newTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.ExistsByEmail(ctx, "a@example.com"); err == nil {
		t.Fatalf("expected error on canceled context")
	}
}

func TestIsDuplicate(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrDuplicate, true},
		{"wrapped sentinel", fmt.Errorf("x: %w", ErrDuplicate), true},
		{"gorm", gorm.ErrDuplicatedKey, true},
		{"pg 23505", &pgconn.PgError{Code: "23505"}, true},
		{"pg other", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite text", errors.New("UNIQUE constraint failed: waitlist.email"), true},
		{"pg text", errors.New(`duplicate key value violates unique constraint "ux_waitlist_email"`), true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDuplicate(tc.err); got != tc.want {
				t.Fatalf("IsDuplicate(%v) = %v; want %v", tc.err, got, tc.want)
			}
		})
	}
}

// TestWaitlistRepo_Postgres runs against a real server when
// WAITLIST_TEST_DATABASE_URL is set.
func TestWaitlistRepo_Postgres(t *testing.T) {
	dsn := os.Getenv("WAITLIST_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("WAITLIST_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := OpenPostgres(ctx, dsn, PostgresOptions{Attempts: 3, Delay: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	r := NewWaitlistRepo(db)

	email := "it-" + uuid.NewString() + "@example.com"
	t.Cleanup(func() { db.Where("email = ?", email).Delete(&domain.WaitlistEntry{}) })

	if err := r.Insert(ctx, entry(email)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := r.Insert(ctx, entry(email)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate insert err = %v; want ErrDuplicate", err)
	}
	if ok, err := r.ExistsByEmail(ctx, email); err != nil || !ok {
		t.Fatalf("ExistsByEmail = %v, %v", ok, err)
	}
}
