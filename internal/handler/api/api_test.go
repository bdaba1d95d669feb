package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"DCAClock/internal/domain/models"
	"DCAClock/internal/repository"
	"DCAClock/internal/usecase"
	"DCAClock/pkg/cache"
	xlogger "DCAClock/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec.Code, env
}

func configsServer(seed map[string]models.AssetTradeConfig) *echo.Echo {
	store := repository.NewMemoryConfigStore(seed)
	h := NewConfigsEchoHandler(xlogger.Nop(), usecase.NewConfigUseCase(store, usecase.RetryPolicy{Attempts: 1}))
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func TestConfigsCreateWithoutAmountUsesDefault(t *testing.T) {
	store := repository.NewMemoryConfigStore(nil)
	uc := usecase.NewConfigUseCase(store, usecase.RetryPolicy{Attempts: 1},
		usecase.WithConfigDefaultAmount(decimal.NewFromInt(800)))
	e := echo.New()
	NewConfigsEchoHandler(xlogger.Nop(), uc).RegisterRoutes(e)

	code, env := do(t, e, http.MethodPost, "/api/configs", `{"key":"sol_thb","time":"06:45"}`)
	if code != http.StatusCreated {
		t.Fatalf("create: %d %s", code, env.Data)
	}
	var created models.ConfigResponse
	_ = json.Unmarshal(env.Data, &created)
	if created.Amount != "800" {
		t.Fatalf("amount = %q, want the configured default", created.Amount)
	}

	if code, _ := do(t, e, http.MethodPost, "/api/configs", `{"key":"ada_thb","time":"06:45","amount":"-1"}`); code != http.StatusBadRequest {
		t.Fatalf("negative amount: expected 400, got %d", code)
	}
}

func TestConfigsCreateGetUpdate(t *testing.T) {
	e := configsServer(nil)

	code, env := do(t, e, http.MethodPost, "/api/configs", `{"key":"btc_thb","time":"09:15","amount":"800"}`)
	if code != http.StatusCreated {
		t.Fatalf("create: %d %s", code, env.Data)
	}
	var created models.ConfigResponse
	_ = json.Unmarshal(env.Data, &created)
	if created.Key != "BTC_THB" || !created.BuyEnabled || created.Version != 1 {
		t.Fatalf("unexpected create response %+v", created)
	}

	if code, _ := do(t, e, http.MethodPost, "/api/configs", `{"key":"BTC_THB","time":"10:00","amount":"1"}`); code != http.StatusConflict {
		t.Fatalf("duplicate create: expected 409, got %d", code)
	}

	code, env = do(t, e, http.MethodPatch, "/api/configs/BTC_THB", `{"buy_enabled":false,"amount":"1000"}`)
	if code != http.StatusOK {
		t.Fatalf("update: %d %s", code, env.Data)
	}
	var updated models.ConfigResponse
	_ = json.Unmarshal(env.Data, &updated)
	if updated.BuyEnabled || updated.Amount != "1000" || updated.Time != "09:15" {
		t.Fatalf("unexpected update response %+v", updated)
	}

	if code, _ := do(t, e, http.MethodGet, "/api/configs/ETH_THB", ""); code != http.StatusNotFound {
		t.Fatalf("missing key: expected 404, got %d", code)
	}
	if code, _ := do(t, e, http.MethodGet, "/api/configs", ""); code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", code)
	}
}

func TestConfigsRejectInvalidInput(t *testing.T) {
	e := configsServer(map[string]models.AssetTradeConfig{
		"BTC_THB": {Time: "09:00", Amount: decimal.NewFromInt(800), BuyEnabled: true},
	})
	cases := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/configs", `{"key":"ETH_THB","time":"9:00","amount":"10"}`},
		{http.MethodPost, "/api/configs", `{"key":"ETH_THB","time":"09:00","amount":"-1"}`},
		{http.MethodPatch, "/api/configs/BTC_THB", `{"amount":"abc"}`},
		{http.MethodPatch, "/api/configs/BTC_THB", `{}`},
	}
	for _, tc := range cases {
		if code, env := do(t, e, tc.method, tc.path, tc.body); code != http.StatusBadRequest {
			t.Fatalf("%s %s %s: expected 400, got %d %s", tc.method, tc.path, tc.body, code, env.Data)
		}
	}
}

func TestRecommendationLookup(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	recs := repository.NewCacheRecommendations(mc, time.Hour)
	_ = recs.Put(context.Background(), models.RecommendationView{Symbol: "BTC/USDT", Time: "09:00"})

	h := NewRunsEchoHandler(xlogger.Nop(), nil, nil, recs, []string{"BTC/USDT", "ETH/USDT"})
	e := echo.New()
	h.RegisterRoutes(e)

	code, env := do(t, e, http.MethodGet, "/api/recommendations/btc-usdt", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var view models.RecommendationView
	_ = json.Unmarshal(env.Data, &view)
	if view.Time != "09:00" {
		t.Fatalf("unexpected view %+v", view)
	}
	if code, _ := do(t, e, http.MethodGet, "/api/recommendations/ETH_USDT", ""); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestHealthReportsDegradedDependency(t *testing.T) {
	h := NewHealthEchoHandler(map[string]func(context.Context) error{
		"redis":      func(context.Context) error { return errors.New("connection refused") },
		"clickhouse": func(context.Context) error { return nil },
	})
	e := echo.New()
	h.RegisterRoutes(e)

	code, env := do(t, e, http.MethodGet, "/api/health", "")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	var res healthResponse
	_ = json.Unmarshal(env.Data, &res)
	if res.Status != "degraded" || res.Checks["clickhouse"] != "ok" {
		t.Fatalf("unexpected health %+v", res)
	}
}
