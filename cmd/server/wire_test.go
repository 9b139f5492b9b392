package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-waitlist-backend/internal/config"
	"github.com/tbourn/go-waitlist-backend/internal/domain"
	"github.com/tbourn/go-waitlist-backend/internal/repo"
)

func TestBuildStore_UnconfiguredRESTIsNil(t *testing.T) {
	b, err := buildStore(context.Background(), config.StoreConfig{Driver: config.DriverREST}, time.Second)
	require.NoError(t, err)
	assert.Nil(t, b.Store)
	assert.Nil(t, b.Pinger)
	assert.Nil(t, b.DB)
	b.Close()
}

func TestBuildStore_REST(t *testing.T) {
	b, err := buildStore(context.Background(), config.StoreConfig{
		Driver:     config.DriverREST,
		URL:        "https://proj.example.co",
		ServiceKey: "service-key",
		Table:      "waitlist",
	}, time.Second)
	require.NoError(t, err)
	assert.IsType(t, &repo.RESTStore{}, b.Store)
	assert.NotNil(t, b.Pinger)
	assert.Nil(t, b.DB)
}

func TestBuildStore_SQLiteMigratesAndStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waitlist.db")
	b, err := buildStore(context.Background(), config.StoreConfig{Driver: config.DriverSQLite, DBPath: path}, time.Second)
	require.NoError(t, err)
	t.Cleanup(b.Close)

	ctx := context.Background()
	require.NoError(t, b.Pinger.Ping(ctx))
	require.NoError(t, b.Store.Insert(ctx, &domain.WaitlistEntry{
		ID: "e1", Email: "a@example.com", SubscribedAt: time.Now().UTC(), Source: "landing_page",
	}))
	ok, err := b.Store.ExistsByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestBuildLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	intake := config.IntakeConfig{RateMax: 3, RateWindow: time.Minute, RateBackend: config.BackendMemory}

	l, err := buildLimiter(ctx, intake, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Max)

	intake.RateBackend = config.BackendSQL
	_, err = buildLimiter(ctx, intake, nil)
	assert.Error(t, err, "sql backend without a database")

	b, err := buildStore(ctx, config.StoreConfig{Driver: config.DriverSQLite, DBPath: filepath.Join(t.TempDir(), "w.db")}, time.Second)
	require.NoError(t, err)
	t.Cleanup(b.Close)

	l, err = buildLimiter(ctx, intake, b.DB)
	require.NoError(t, err)
	now := time.Now()
	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "intake:192.0.2.1", now)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "intake:192.0.2.1", now)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 60, d.RetryAfter)
}

func TestLoadDenylist(t *testing.T) {
	d, err := loadDenylist("")
	require.NoError(t, err)
	assert.True(t, d.Contains("mailinator.com"))

	path := filepath.Join(t.TempDir(), "extra.txt")
	require.NoError(t, os.WriteFile(path, []byte("# local additions\nthrowaway.test\n"), 0o600))
	d, err = loadDenylist(path)
	require.NoError(t, err)
	assert.True(t, d.Contains("throwaway.test"))

	_, err = loadDenylist(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
