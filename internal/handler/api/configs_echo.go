package api

import (
	"errors"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
	"DCAClock/internal/usecase"
	xhttp "DCAClock/pkg/http"
	xlogger "DCAClock/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// ConfigsEchoHandler serves the operator control plane for trade configs.
type ConfigsEchoHandler struct {
	logger  *xlogger.Logger
	configs *usecase.ConfigUseCase
}

func NewConfigsEchoHandler(logger *xlogger.Logger, configs *usecase.ConfigUseCase) *ConfigsEchoHandler {
	return &ConfigsEchoHandler{logger: logger, configs: configs}
}

func (h *ConfigsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/configs", h.List)
	g.GET("/configs/:key", h.Get)
	g.POST("/configs", h.Create)
	g.PATCH("/configs/:key", h.Update)
}

func (h *ConfigsEchoHandler) List(c echo.Context) error {
	all, err := h.configs.List(c.Request().Context())
	if err != nil {
		h.logger.Error("list configs error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, configError(err))
	}
	rows := make([]models.ConfigResponse, 0, len(all))
	for _, kc := range all {
		rows = append(rows, models.NewConfigResponse(kc.Key, kc.Config))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ConfigsEchoHandler) Get(c echo.Context) error {
	req := &models.ConfigKeyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cfg, err := h.configs.Get(c.Request().Context(), req.Key)
	if err != nil {
		return xhttp.AppErrorResponse(c, configError(err))
	}
	return xhttp.SuccessResponse(c, models.NewConfigResponse(usecase.NormalizeKey(req.Key), cfg))
}

func (h *ConfigsEchoHandler) Create(c echo.Context) error {
	req := &models.CreateConfigRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	enabled := true
	if req.BuyEnabled != nil {
		enabled = *req.BuyEnabled
	}
	// Empty amount leaves the zero value, which the use case replaces with
	// the configured default.
	var amount decimal.Decimal
	if req.Amount != "" {
		amount = decimal.RequireFromString(req.Amount)
	}
	cfg, err := h.configs.Create(c.Request().Context(), usecase.CreateConfigParams{
		Key:        req.Key,
		Time:       req.Time,
		Amount:     amount,
		BuyEnabled: enabled,
	})
	if err != nil {
		return xhttp.AppErrorResponse(c, configError(err))
	}
	h.logger.Info("trade config created", xlogger.String("key", req.Key), xlogger.String("time", cfg.Time))
	return xhttp.CreatedResponse(c, models.NewConfigResponse(usecase.NormalizeKey(req.Key), cfg))
}

func (h *ConfigsEchoHandler) Update(c echo.Context) error {
	req := &models.UpdateConfigRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Amount == nil && req.BuyEnabled == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("nothing to update"))
	}
	p := usecase.UpdateConfigParams{Key: req.Key, BuyEnabled: req.BuyEnabled}
	if req.Amount != nil {
		amount := decimal.RequireFromString(*req.Amount)
		p.Amount = &amount
	}
	cfg, err := h.configs.Update(c.Request().Context(), p)
	if err != nil {
		return xhttp.AppErrorResponse(c, configError(err))
	}
	h.logger.Info("trade config updated",
		xlogger.String("key", req.Key),
		xlogger.Bool("buy_enabled", cfg.BuyEnabled),
		xlogger.Stringer("amount", cfg.Amount))
	return xhttp.SuccessResponse(c, models.NewConfigResponse(usecase.NormalizeKey(req.Key), cfg))
}

func configError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, errs.ErrConfigNotFound):
		return xhttp.NotFoundErrorf("trade config not found").WithError(err)
	case errors.Is(err, errs.ErrConfigExists):
		return xhttp.ConflictErrorf("trade config already exists").WithError(err)
	case errors.Is(err, errs.ErrVersionConflict):
		return xhttp.ConflictErrorf("trade config changed concurrently, retry").WithError(err)
	case errors.Is(err, errs.ErrInvalidTargetTime), errors.Is(err, errs.ErrInvalidAmount):
		return xhttp.BadRequestErrorf("%v", err).WithError(err)
	default:
		return xhttp.InternalErrorf("trade config store unavailable").WithError(err)
	}
}
