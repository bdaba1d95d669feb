package guard

import (
	"errors"
	"testing"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
)

var bkk = time.FixedZone("ICT", 7*3600)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.June, day, hour, minute, 0, 0, bkk)
}

func record(clock, lastBuy string) models.AssetTradeConfig {
	return models.AssetTradeConfig{Time: clock, BuyEnabled: true, LastBuyDate: lastBuy}
}

func TestDecide(t *testing.T) {
	g := New(bkk)
	cases := []struct {
		name  string
		cfg   models.AssetTradeConfig
		now   time.Time
		state State
		fire  bool
	}{
		{"due at target", record("07:00", "2024-06-09"), at(10, 7, 0), StateEligible, true},
		{"late within catch-up", record("07:00", "2024-06-09"), at(10, 7, 2), StateEligible, true},
		{"lead tolerance", record("07:00", "2024-06-09"), at(10, 6, 59), StateEligible, true},
		{"too early", record("07:00", "2024-06-09"), at(10, 6, 58), StateIdle, false},
		{"catch-up edge", record("07:00", "2024-06-09"), at(10, 7, 10), StateEligible, true},
		{"missed window", record("07:00", "2024-06-09"), at(10, 7, 11), StateIdle, false},
		{"already bought today", record("07:00", "2024-06-10"), at(10, 7, 2), StateIdle, false},
		{"future date blocks", record("07:00", "2024-06-11"), at(10, 7, 2), StateIdle, false},
		{"never bought", record("07:00", ""), at(10, 7, 0), StateEligible, true},
		{"disabled", models.AssetTradeConfig{Time: "07:00"}, at(10, 7, 0), StateDisabled, false},
		{"midnight target no wrap", record("00:00", "2024-06-09"), at(10, 23, 59), StateIdle, false},
		{"late evening target", record("23:55", "2024-06-09"), at(10, 23, 59), StateEligible, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := g.Decide("BTC_THB", tc.cfg, tc.now)
			if d.State != tc.state || d.Fire != tc.fire {
				t.Fatalf("got state=%s fire=%v (%s), want %s %v", d.State, d.Fire, d.Reason, tc.state, tc.fire)
			}
			if d.Err != nil {
				t.Fatalf("unexpected error: %v", d.Err)
			}
			if d.Today != "2024-06-10" {
				t.Fatalf("today = %s", d.Today)
			}
		})
	}
}

func TestDecideUsesGuardTimezone(t *testing.T) {
	g := New(bkk)
	// 00:02 UTC on the 10th is 07:02 in Bangkok.
	now := time.Date(2024, time.June, 10, 0, 2, 0, 0, time.UTC)
	d := g.Decide("BTC_THB", record("07:00", "2024-06-09"), now)
	if !d.Fire || d.Delta != 2*time.Minute {
		t.Fatalf("got %+v", d)
	}
}

func TestDecideInvalidTime(t *testing.T) {
	g := New(bkk)
	for _, clock := range []string{"", "7:00", "24:00", "12:60", "ab:cd"} {
		d := g.Decide("BTC_THB", record(clock, ""), at(10, 7, 0))
		if d.Fire || d.State != StateIdle || !errors.Is(d.Err, errs.ErrInvalidTargetTime) {
			t.Fatalf("%q: got %+v", clock, d)
		}
	}
}

func TestDisabledWinsOverInvalidTime(t *testing.T) {
	g := New(bkk)
	d := g.Decide("BTC_THB", models.AssetTradeConfig{Time: "bad"}, at(10, 7, 0))
	if d.State != StateDisabled || d.Err != nil {
		t.Fatalf("got %+v", d)
	}
}

func TestCustomWindows(t *testing.T) {
	g := New(bkk, WithLeadTolerance(0), WithCatchUpWindow(time.Hour))
	if d := g.Decide("X", record("07:00", ""), at(10, 6, 59)); d.Fire {
		t.Fatalf("fired before target with zero lead")
	}
	if d := g.Decide("X", record("07:00", ""), at(10, 7, 45)); !d.Fire {
		t.Fatalf("did not fire inside widened catch-up")
	}
}

func TestCommit(t *testing.T) {
	g := New(bkk)
	cfg := models.AssetTradeConfig{Time: "07:00", BuyEnabled: true, LastBuyDate: "2024-06-09", Version: 4}

	got, err := g.Commit(cfg, "2024-06-10")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got.LastBuyDate != "2024-06-10" || got.Time != "07:00" || got.Version != 4 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if d := g.Decide("BTC_THB", got, at(10, 7, 2)); d.Fire {
		t.Fatalf("fired again after commit")
	}

	if _, err := g.Commit(got, "2024-06-09"); !errors.Is(err, errs.ErrNonMonotonicDate) {
		t.Fatalf("expected ErrNonMonotonicDate, got %v", err)
	}
	if _, err := g.Commit(cfg, "06/10/2024"); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}
