package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"DCAClock/pkg/http/middleware"
	applogger "DCAClock/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsPath     string   // empty disables /metrics
	CORSOrigins     []string // empty disables CORS
}

// Server wraps Echo HTTP server.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	logger *applogger.Logger
}

// NewServer creates the control-plane HTTP server.
func NewServer(logger *applogger.Logger, handlers []Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MetricsPath:     "/metrics",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if logger == nil {
		logger = applogger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover(logger))
	e.Use(middleware.RequestLogging(logger))
	e.Use(middleware.Metrics(logger, 2*time.Second))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORS(cfg.CORSOrigins))
	}

	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
	if cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	return &Server{echo: e, config: cfg, logger: logger}
}

// Start starts the HTTP server in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	go func() {
		s.logger.Info("http server listening", applogger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// WithHost sets server host.
func WithHost(host string) ServerOption {
	return func(c *ServerConfig) { c.Host = host }
}

// WithPort sets server port.
func WithPort(port int) ServerOption {
	return func(c *ServerConfig) { c.Port = port }
}

// WithTimeouts sets read/write/shutdown timeouts.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.ShutdownTimeout = shutdown
	}
}

// WithMetricsPath sets the Prometheus scrape path; empty disables it.
func WithMetricsPath(path string) ServerOption {
	return func(c *ServerConfig) { c.MetricsPath = path }
}

// WithCORS allows browser calls from the given origins.
func WithCORS(origins []string) ServerOption {
	return func(c *ServerConfig) { c.CORSOrigins = origins }
}
