package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	corsMethods = "GET, POST, PATCH, OPTIONS"
	corsHeaders = "Content-Type, Authorization"
)

// CORS lets an operator dashboard on one of origins call the control plane.
// Requests from other origins pass through without CORS headers, so the
// browser blocks them. "*" allows any origin.
func CORS(origins []string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get("Origin")
			if origin == "" || !(allowed["*"] || allowed[origin]) {
				return next(c)
			}

			h := c.Response().Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
