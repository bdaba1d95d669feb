package middleware

import (
	"time"

	applogger "DCAClock/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs one debug line per request.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			l.Debug("http request",
				applogger.String("method", c.Request().Method),
				applogger.String("uri", c.Request().RequestURI),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("duration_ms", time.Since(start)),
			)
			return nil
		}
	}
}
