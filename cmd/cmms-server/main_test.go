package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicaleng/cmms/internal/platform/middleware"
	"github.com/clinicaleng/cmms/internal/platform/notification"
)

func TestMigrationSource_Embedded(t *testing.T) {
	names, err := fs.Glob(migrationSource(""), "*.sql")
	require.NoError(t, err)
	assert.Contains(t, names, "001_core.sql")
}

func TestMigrationSource_DirOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "009_extra.sql"), []byte("SELECT 1;"), 0o600))

	names, err := fs.Glob(migrationSource(dir), "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"009_extra.sql"}, names)
}

func TestPublicLimiter_MemoryFallback(t *testing.T) {
	l := publicLimiter(nil, 2)
	_, ok := l.(*middleware.MemoryLimiter)
	require.True(t, ok, "expected in-process limiter without redis")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		allowed, _, err := l.Allow(ctx, "eq-1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, retry, err := l.Allow(ctx, "eq-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Positive(t, retry)

	allowed, _, err = l.Allow(ctx, "eq-2")
	require.NoError(t, err)
	assert.True(t, allowed, "buckets are per key")
}

func TestPublicLimiter_ClampsZeroBudget(t *testing.T) {
	allowed, _, err := publicLimiter(nil, 0).Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestNotificationSender_LogWithoutRedis(t *testing.T) {
	_, ok := notificationSender(nil, "cmms:notifications", zerolog.Nop()).(notification.LogSender)
	assert.True(t, ok)
}

func realIPFor(t *testing.T, extract echo.IPExtractor, remote, xff string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/public/equipment/abc/tickets", nil)
	req.RemoteAddr = remote
	req.Header.Set(echo.HeaderXForwardedFor, xff)
	return extract(req)
}

func TestIPExtractor_IgnoresForwardedForByDefault(t *testing.T) {
	assert.Equal(t, "203.0.113.7", realIPFor(t, ipExtractor(nil), "203.0.113.7:5000", "198.51.100.1"))
	assert.Equal(t, "10.0.0.5", realIPFor(t, ipExtractor(nil), "10.0.0.5:5000", "198.51.100.1"),
		"private peers are not trusted implicitly")
}

func TestIPExtractor_TrustedProxy(t *testing.T) {
	extract := ipExtractor([]string{"10.0.0.0/8"})
	assert.Equal(t, "198.51.100.1", realIPFor(t, extract, "10.0.0.5:5000", "198.51.100.1"))
	assert.Equal(t, "203.0.113.7", realIPFor(t, extract, "203.0.113.7:5000", "198.51.100.1"),
		"header from an untrusted peer is ignored")
}

func TestPublicTicketLimit_SpoofedForwardedFor(t *testing.T) {
	e := echo.New()
	e.IPExtractor = ipExtractor(nil)
	e.POST("/public/equipment/:id/tickets", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	}, middleware.RateLimit(publicLimiter(nil, 10), middleware.ByRouteParam("id")))

	passed := 0
	last := 0
	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodPost, "/public/equipment/abc/tickets", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusCreated {
			passed++
		}
		last = rec.Code
	}
	assert.LessOrEqual(t, passed, 11)
	assert.Equal(t, http.StatusTooManyRequests, last)
}
