package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	every rate.Limit
	burst int
	idle  time.Duration
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLimiter allows perMinute events per key with the given burst. Keys idle
// for ten minutes are forgotten.
func NewLimiter(perMinute float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		m:     make(map[string]*limiterEntry),
		every: rate.Limit(perMinute / 60),
		burst: burst,
		idle:  10 * time.Minute,
	}
}

func (l *Limiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.m {
		if now.Sub(e.seen) > l.idle {
			delete(l.m, k)
		}
	}
	e, ok := l.m[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.every, l.burst)}
		l.m[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

// RateLimit rejects requests over the per-client budget with 429.
func RateLimit(l *Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": http.StatusText(http.StatusTooManyRequests),
				})
			}
			return next(c)
		}
	}
}
