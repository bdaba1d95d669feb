package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestLimiterPerKey(t *testing.T) {
	l := NewLimiter(1, 2)
	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst of 2 should pass")
	}
	if l.Allow("a") {
		t.Fatalf("third request should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("other keys have their own bucket")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	e := echo.New()
	e.POST("/run", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RateLimit(NewLimiter(1, 1)))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
}
