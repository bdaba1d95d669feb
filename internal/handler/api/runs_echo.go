package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	"DCAClock/internal/usecase"
	xhttp "DCAClock/pkg/http"
	"DCAClock/pkg/http/middleware"
	xlogger "DCAClock/pkg/logger"
	"DCAClock/pkg/util"

	"github.com/labstack/echo/v4"
)

// RunsEchoHandler exposes manual analysis and trigger runs plus the latest
// recommendations. Runs are rate limited per client.
type RunsEchoHandler struct {
	logger   *xlogger.Logger
	analysis *usecase.AnalysisUseCase
	trigger  *usecase.TriggerUseCase
	recs     domrepo.RecommendationCache
	symbols  []string
	limiter  *middleware.Limiter
	now      func() time.Time
}

func NewRunsEchoHandler(
	logger *xlogger.Logger,
	analysis *usecase.AnalysisUseCase,
	trigger *usecase.TriggerUseCase,
	recs domrepo.RecommendationCache,
	symbols []string,
) *RunsEchoHandler {
	return &RunsEchoHandler{
		logger:   logger,
		analysis: analysis,
		trigger:  trigger,
		recs:     recs,
		symbols:  symbols,
		limiter:  middleware.NewLimiter(6, 2),
		now:      time.Now,
	}
}

func (h *RunsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	limited := middleware.RateLimit(h.limiter)
	g.POST("/analysis/run", h.RunAnalysis, limited)
	g.POST("/trigger/run", h.RunTrigger, limited)
	g.GET("/recommendations/:symbol", h.Recommendation)
}

func (h *RunsEchoHandler) RunAnalysis(c echo.Context) error {
	req := &models.RunAnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asOf := h.now()
	if req.AsOf != "" {
		t, ok := util.ParseTime(req.AsOf)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("as_of must be RFC3339 or unix seconds"))
		}
		asOf = t
	}
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = h.symbols
	}

	rep := h.analysis.Run(c.Request().Context(), symbols, asOf)
	h.logger.Info("manual analysis run",
		xlogger.Strings("symbols", symbols), xlogger.Bool("failed", rep.Failed()))
	return xhttp.SuccessResponse(c, rep)
}

func (h *RunsEchoHandler) RunTrigger(c echo.Context) error {
	req := &models.RunTriggerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	at := h.now()
	if req.At != "" {
		t, ok := util.ParseTime(req.At)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("at must be RFC3339 or unix seconds"))
		}
		at = t
	}

	rep := h.trigger.Run(c.Request().Context(), at)
	if rep.Err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("trigger run failed").WithError(rep.Err))
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *RunsEchoHandler) Recommendation(c echo.Context) error {
	req := &models.RecommendationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := h.resolveSymbol(req.Symbol)
	view, err := h.recs.Latest(c.Request().Context(), symbol)
	if err != nil {
		h.logger.Error("load recommendation error", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("recommendation cache unavailable").WithError(err))
	}
	if view == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no recommendation for %s", symbol))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, view)
}

// resolveSymbol maps "btc-usdt" or "BTC_USDT" back to the configured pair.
func (h *RunsEchoHandler) resolveSymbol(s string) string {
	want := squash(s)
	for _, sym := range h.symbols {
		if squash(sym) == want {
			return sym
		}
	}
	return strings.ToUpper(s)
}

func squash(s string) string {
	return strings.NewReplacer("/", "", "_", "", "-", "").Replace(strings.ToUpper(s))
}

// HealthEchoHandler reports liveness and the state of each dependency.
type HealthEchoHandler struct {
	checks map[string]func(context.Context) error
	now    func() time.Time
}

func NewHealthEchoHandler(checks map[string]func(context.Context) error) *HealthEchoHandler {
	return &HealthEchoHandler{checks: checks, now: time.Now}
}

func (h *HealthEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/health", h.Health)
}

type healthResponse struct {
	Status string            `json:"status"`
	Time   time.Time         `json:"time"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *HealthEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	res := healthResponse{Status: "ok", Time: h.now().UTC()}
	if len(h.checks) > 0 {
		res.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			res.Status = "degraded"
			res.Checks[name] = err.Error()
			continue
		}
		res.Checks[name] = "ok"
	}
	if res.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, res)
	}
	return xhttp.SuccessResponse(c, res)
}
