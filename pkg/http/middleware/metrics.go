package middleware

import (
	"strconv"
	"time"

	applogger "DCAClock/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcaclock_http_requests_total",
			Help: "Control-plane HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dcaclock_http_request_duration_seconds",
			Help:    "Control-plane HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"route", "method"},
	)
)

// Metrics records request counters keyed by the echo route template so label
// cardinality stays bounded. Slow and failed requests are logged.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := c.Response().Status
			dur := time.Since(start)

			httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(route, method).Observe(dur.Seconds())

			switch {
			case status >= 500:
				l.Error("http request failed",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Int("status", status),
					applogger.Duration("duration_ms", dur),
				)
			case slowThreshold > 0 && dur >= slowThreshold:
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Duration("duration_ms", dur),
				)
			}
			return nil
		}
	}
}
