package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
)

// Limiter decides whether the request identified by key may proceed. When it
// refuses, retryAfter says how long the caller should wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, retryAfter time.Duration, err error)
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// refill is how long an empty bucket takes to fill up again.
func (c RateLimitConfig) refill() time.Duration {
	if c.RequestsPerSecond <= 0 {
		return time.Hour
	}
	return time.Duration(float64(c.BurstSize) / c.RequestsPerSecond * float64(time.Second))
}

// MemoryLimiter keeps one token bucket per key in process memory. Idle
// buckets are dropped by Sweep so that the key space cannot grow unbounded.
type MemoryLimiter struct {
	mu       sync.Mutex
	cfg      RateLimitConfig
	limiters map[string]*bucket
	now      func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg, limiters: make(map[string]*bucket), now: time.Now}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	now := m.now()
	b, ok := m.limiters[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(m.cfg.RequestsPerSecond), m.cfg.BurstSize)}
		m.limiters[key] = b
	}
	b.lastSeen = now
	m.mu.Unlock()

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second, nil
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d, nil
	}
	return true, 0, nil
}

// Len reports how many keys currently hold a bucket.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters)
}

// Sweep drops buckets not used within idle and returns how many went.
func (m *MemoryLimiter) Sweep(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-idle)
	n := 0
	for key, b := range m.limiters {
		if b.lastSeen.Before(cutoff) {
			delete(m.limiters, key)
			n++
		}
	}
	return n
}

// StartCleanup sweeps every interval until ctx is cancelled, dropping only
// buckets idle long enough to have refilled. It blocks, so run it in a
// goroutine.
func (m *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	idle := m.cfg.refill()
	if idle < interval {
		idle = interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(idle)
		}
	}
}

// KeyFunc derives the rate limit key for a request.
type KeyFunc func(c echo.Context) string

// ByTenantAndIP keys on the caller address, scoped by tenant when known. The
// address comes from the echo IPExtractor, which must not trust client
// supplied forwarding headers.
func ByTenantAndIP(c echo.Context) string {
	key := c.RealIP()
	if tid, ok := c.Get("jwt_tenant_id").(string); ok && tid != "" {
		key = tid + ":" + key
	}
	return key
}

// ByRouteParam keys on a path parameter, used for the public ticket endpoint
// where the equipment id is the natural bucket.
func ByRouteParam(name string) KeyFunc {
	return func(c echo.Context) string {
		return c.Path() + ":" + c.Param(name) + ":" + c.RealIP()
	}
}

// RateLimit rejects requests the limiter refuses with 429. Limiter failures
// let the request through.
func RateLimit(l Limiter, key KeyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, retry, err := l.Allow(c.Request().Context(), key(c))
			if err != nil {
				c.Logger().Warnf("rate limiter unavailable: %v", err)
				return next(c)
			}
			if !ok {
				secs := int(retry.Seconds())
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, apperr.Response{Error: "limite de requisições excedido"})
			}
			return next(c)
		}
	}
}
