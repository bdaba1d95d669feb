package server

import (
	"context"
	"fmt"
	"time"

	"DCAClock/internal/usecase"
	applogger "DCAClock/pkg/logger"
	"DCAClock/pkg/util"
)

// AnalysisRunner is the nightly slot analysis.
type AnalysisRunner interface {
	Run(ctx context.Context, symbols []string, asOf time.Time) usecase.AnalysisReport
}

// TriggerRunner is the periodic trade trigger.
type TriggerRunner interface {
	Run(ctx context.Context, now time.Time) usecase.TriggerReport
}

// Scheduler drives both jobs from one goroutine, so an analysis run and a
// trigger run never overlap inside the process.
type Scheduler struct {
	loc      *time.Location
	interval time.Duration
	hour     int
	minute   int
	symbols  []string
	analysis AnalysisRunner
	trigger  TriggerRunner
	logger   *applogger.Logger
	now      func() time.Time
}

func NewScheduler(
	loc *time.Location,
	interval time.Duration,
	analysisAt string,
	symbols []string,
	analysis AnalysisRunner,
	trigger TriggerRunner,
	logger *applogger.Logger,
) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("trigger interval must be positive, got %s", interval)
	}
	hour, minute, err := util.ParseClock(analysisAt)
	if err != nil {
		return nil, fmt.Errorf("analysis time: %w", err)
	}
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Scheduler{
		loc:      loc,
		interval: interval,
		hour:     hour,
		minute:   minute,
		symbols:  symbols,
		analysis: analysis,
		trigger:  trigger,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Run fires the trigger immediately and then every interval, and the
// analysis once per local day at the configured clock. It blocks until ctx
// ends.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	next := s.nextAnalysis(s.now())
	timer := time.NewTimer(next.Sub(s.now()))
	defer timer.Stop()

	s.logger.Info("scheduler started",
		applogger.Duration("trigger_interval_ms", s.interval),
		applogger.String("next_analysis", next.Format(time.RFC3339)))

	s.runTrigger(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runTrigger(ctx)
		case <-timer.C:
			s.runAnalysis(ctx)
			next = s.nextAnalysis(s.now())
			timer.Reset(next.Sub(s.now()))
		}
	}
}

// nextAnalysis is the first analysis clock strictly after now.
func (s *Scheduler) nextAnalysis(now time.Time) time.Time {
	at := util.AtClock(now, s.loc, s.hour, s.minute)
	if !at.After(now) {
		at = util.AtClock(now.In(s.loc).AddDate(0, 0, 1), s.loc, s.hour, s.minute)
	}
	return at
}

func (s *Scheduler) runTrigger(ctx context.Context) {
	report := s.trigger.Run(ctx, s.now())
	logTriggerReport(s.logger, report)
}

func (s *Scheduler) runAnalysis(ctx context.Context) {
	report := s.analysis.Run(ctx, s.symbols, s.now())
	logAnalysisReport(s.logger, report)
}

func logTriggerReport(l *applogger.Logger, r usecase.TriggerReport) {
	if r.Err != nil {
		l.Error("trigger run failed", applogger.Error(r.Err))
		return
	}
	fired := 0
	for _, res := range r.Results {
		if res.Outcome == usecase.OutcomeFilled {
			fired++
		}
	}
	if failed := r.PersistenceFailures(); len(failed) > 0 {
		keys := make([]string, len(failed))
		for i, f := range failed {
			keys[i] = f.Key
		}
		l.Error("trigger run left unpersisted buys", applogger.Strings("keys", keys))
	}
	if fired > 0 {
		l.Info("trigger run complete", applogger.Int("assets", len(r.Results)), applogger.Int("fired", fired))
		return
	}
	l.Debug("trigger run complete", applogger.Int("assets", len(r.Results)))
}

func logAnalysisReport(l *applogger.Logger, r usecase.AnalysisReport) {
	persisted := 0
	for _, res := range r.Results {
		if res.Outcome == usecase.AnalysisPersisted {
			persisted++
		}
	}
	fields := []applogger.Field{
		applogger.Int("symbols", len(r.Results)),
		applogger.Int("persisted", persisted),
	}
	if r.Failed() {
		l.Warn("analysis run finished with failures", fields...)
		return
	}
	l.Info("analysis run complete", fields...)
}
