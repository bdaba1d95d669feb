package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"DCAClock/internal/usecase"
	"DCAClock/pkg/config"
	xhttp "DCAClock/pkg/http"
	applogger "DCAClock/pkg/logger"
)

// App is the long-running service: control-plane HTTP, the scheduler and,
// when enabled, the live candle collector. Infrastructure clients are
// closed by the injector's cleanup, not here.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	httpServer *xhttp.Server
	scheduler  *Scheduler
	collector  *usecase.CandleCollector
}

// New creates the application. scheduler and collector may be nil when
// disabled in config.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	httpServer *xhttp.Server,
	scheduler *Scheduler,
	collector *usecase.CandleCollector,
) *App {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		scheduler:  scheduler,
		collector:  collector,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	if a.scheduler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.scheduler.Run(ctx)
		}()
	} else {
		a.logger.Warn("scheduler disabled, trades fire only via the trigger job or API")
	}

	if a.collector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.collector.Run(ctx); err != nil {
				a.logger.Error("collector error", applogger.Error(err))
			}
		}()
		a.logger.Info("collector started", applogger.Strings("symbols", a.cfg.Collector.Symbols))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		cancel()
		wg.Wait()
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	a.logger.Info("shutdown signal received", applogger.String("signal", sig.String()))

	return a.shutdown(cancel, &wg)
}

// shutdown stops accepting requests first, then cancels the background
// loops and waits for them, bounded by the shutdown timeout.
func (a *App) shutdown(cancel context.CancelFunc, wg *sync.WaitGroup) error {
	timeout := a.cfg.Server.ShutdownTimeout
	ctx, done := context.WithTimeout(context.Background(), timeout)
	defer done()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}

	cancel()
	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		a.logger.Warn("background jobs did not stop in time", applogger.Duration("timeout_ms", timeout))
	}

	a.logger.Info("shutdown complete")
	return firstErr
}

// Jobs exposes the scheduled jobs as one-shot commands for an external
// scheduler (cron, Lambda-style invocations).
type Jobs struct {
	symbols  []string
	analysis AnalysisRunner
	trigger  TriggerRunner
	logger   *applogger.Logger
	now      func() time.Time
}

func NewJobs(symbols []string, analysis AnalysisRunner, trigger TriggerRunner, logger *applogger.Logger) *Jobs {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Jobs{symbols: symbols, analysis: analysis, trigger: trigger, logger: logger, now: time.Now}
}

// Analyze runs one analysis pass as of asOf (zero = now).
func (j *Jobs) Analyze(ctx context.Context, asOf time.Time) usecase.AnalysisReport {
	if asOf.IsZero() {
		asOf = j.now()
	}
	report := j.analysis.Run(ctx, j.symbols, asOf)
	logAnalysisReport(j.logger, report)
	return report
}

// Trigger runs one trigger pass at the given instant (zero = now).
func (j *Jobs) Trigger(ctx context.Context, at time.Time) usecase.TriggerReport {
	if at.IsZero() {
		at = j.now()
	}
	report := j.trigger.Run(ctx, at)
	logTriggerReport(j.logger, report)
	return report
}
