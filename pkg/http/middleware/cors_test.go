package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func corsServer(origins ...string) *echo.Echo {
	e := echo.New()
	e.Use(CORS(origins))
	e.GET("/api/configs", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.OPTIONS("/api/configs", func(c echo.Context) error { return c.NoContent(http.StatusMethodNotAllowed) })
	return e
}

func TestCORSAllowedOrigin(t *testing.T) {
	e := corsServer("https://ops.example.com")
	req := httptest.NewRequest(http.MethodGet, "/api/configs", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestCORSUnknownOriginGetsNoHeaders(t *testing.T) {
	e := corsServer("https://ops.example.com")
	req := httptest.NewRequest(http.MethodGet, "/api/configs", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	e := corsServer("*")
	req := httptest.NewRequest(http.MethodOptions, "/api/configs", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != corsMethods {
		t.Fatalf("allow-methods = %q", got)
	}
}
