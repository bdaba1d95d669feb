package advisory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
	"DCAClock/internal/services/slots"
)

type stubProvider struct {
	advice *models.Advice
	err    error
	delay  time.Duration
	panics bool
}

func (s stubProvider) Suggest(ctx context.Context, _ string, _ []models.PeriodResult) (*models.Advice, error) {
	if s.panics {
		panic("boom")
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.advice, s.err
}

func testAggregate() *slots.Aggregate {
	champ := models.SlotStatistic{Slot: 28, MedianMiss: 0.001, WinRate: 0.8, SampleCount: 30}
	p := models.PeriodResult{
		Symbol:       "BTC/USDT",
		PeriodDays:   30,
		CompleteDays: 30,
		Champion:     champ,
		Ranked:       []models.SlotStatistic{champ},
	}
	return &slots.Aggregate{
		Symbol:  "BTC/USDT",
		Periods: []models.PeriodResult{p},
		Primary: &p,
	}
}

func TestResolveAgreement(t *testing.T) {
	r := NewResolver(stubProvider{advice: &models.Advice{Time: "07:00", Reason: "same"}}, time.Second, nil)
	rec := r.Resolve(context.Background(), testAggregate())
	if rec.Time != "07:00" || rec.Source != models.SourceAI || !rec.Agreed {
		t.Fatalf("unexpected: %+v", rec)
	}
	if rec.QuantTime != "07:00" || rec.PrimaryPeriod != 30 {
		t.Fatalf("quant fields wrong: %s %d", rec.QuantTime, rec.PrimaryPeriod)
	}
}

func TestResolveAIDisagrees(t *testing.T) {
	r := NewResolver(stubProvider{advice: &models.Advice{Time: "06:45"}}, time.Second, nil)
	rec := r.Resolve(context.Background(), testAggregate())
	if rec.Time != "06:45" || rec.Source != models.SourceAI || rec.Agreed {
		t.Fatalf("unexpected: %+v", rec)
	}
}

func TestResolveInvalidAdvisoryTime(t *testing.T) {
	r := NewResolver(stubProvider{advice: &models.Advice{Time: "25:99"}}, time.Second, nil)
	rec := r.Resolve(context.Background(), testAggregate())
	if rec.Time != "07:00" || rec.Source != models.SourceQuantitativeFallback {
		t.Fatalf("expected fallback, got %+v", rec)
	}
	if rec.AdvisoryTime != "25:99" || !strings.Contains(rec.AdvisoryError, "25:99") {
		t.Fatalf("advisory details lost: %+v", rec)
	}
}

func TestResolveProviderError(t *testing.T) {
	r := NewResolver(stubProvider{err: errors.New("quota")}, time.Second, nil)
	rec := r.Resolve(context.Background(), testAggregate())
	if rec.Time != "07:00" || rec.Source != models.SourceQuantitativeFallback {
		t.Fatalf("expected fallback, got %+v", rec)
	}
	if !strings.Contains(rec.AdvisoryError, "quota") {
		t.Fatalf("error not recorded: %q", rec.AdvisoryError)
	}
}

func TestResolveTimeout(t *testing.T) {
	r := NewResolver(stubProvider{advice: &models.Advice{Time: "01:00"}, delay: 200 * time.Millisecond}, 20*time.Millisecond, nil)
	start := time.Now()
	rec := r.Resolve(context.Background(), testAggregate())
	if time.Since(start) > 150*time.Millisecond {
		t.Fatalf("resolver waited for slow provider")
	}
	if rec.Time != "07:00" || rec.Source != models.SourceQuantitativeFallback {
		t.Fatalf("expected fallback, got %+v", rec)
	}
}

func TestResolvePanickingProvider(t *testing.T) {
	r := NewResolver(stubProvider{panics: true}, time.Second, nil)
	rec := r.Resolve(context.Background(), testAggregate())
	if rec.Source != models.SourceQuantitativeFallback || !strings.Contains(rec.AdvisoryError, "panic") {
		t.Fatalf("unexpected: %+v", rec)
	}
}

func TestResolveWithoutProvider(t *testing.T) {
	r := NewResolver(Noop{}, time.Second, nil)
	rec := r.Resolve(context.Background(), testAggregate())
	if rec.Time != "07:00" || rec.Source != models.SourceQuantitativeFallback || rec.AdvisoryError != "" {
		t.Fatalf("unexpected: %+v", rec)
	}
}

func TestAskWrapsAdvisoryUnavailable(t *testing.T) {
	r := NewResolver(stubProvider{err: errors.New("down")}, time.Second, nil)
	_, err := r.ask(context.Background(), testAggregate())
	if !errors.Is(err, errs.ErrAdvisoryUnavailable) {
		t.Fatalf("expected ErrAdvisoryUnavailable, got %v", err)
	}
}
