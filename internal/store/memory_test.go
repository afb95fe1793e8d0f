package store

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lossnet/pain-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func makeEvent(id string, ts time.Time, equity, leverage float64) *model.LossEvent {
	return &model.LossEvent{
		ID:             id,
		TraderID:       "trader-1",
		DollarLoss:     d(100),
		AccountEquity:  d(equity),
		PositionSize:   d(equity / 2),
		Leverage:       leverage,
		Volatility:     0.3,
		TimeInPosition: 1,
		Timestamp:      ts,
	}
}

func makeScore(mult float64) *model.PainScore {
	return &model.PainScore{
		TraderID:          "trader-1",
		DollarLoss:        d(100),
		PainMultiplier:    d(mult),
		PainWeightedScore: d(100 * mult),
	}
}

func TestGetProfile_UnknownTrader(t *testing.T) {
	s := NewMemoryStore(10, 30*24*time.Hour)
	_, err := s.GetProfile(context.Background(), "nobody")
	if err != ErrProfileNotFound {
		t.Errorf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestGetRecentEvents_UnknownTraderIsEmpty(t *testing.T) {
	s := NewMemoryStore(10, 30*24*time.Hour)
	events, err := s.GetRecentEvents(context.Background(), "nobody", t0.Add(-time.Hour), t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected empty history for unknown trader, got %d entries", len(events))
	}
}

func TestRecordLoss_CreatesProfileOnFirstSight(t *testing.T) {
	s := NewMemoryStore(10, 30*24*time.Hour)
	ctx := context.Background()

	if err := s.RecordLoss(ctx, makeEvent("e1", t0, 2_000, 10), makeScore(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := s.GetProfile(ctx, "trader-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.FirstSeen.Equal(t0) {
		t.Errorf("first seen = %v, want %v", p.FirstSeen, t0)
	}
	if p.LossCount != 1 {
		t.Errorf("loss count = %d, want 1", p.LossCount)
	}
	if !p.TotalDollarLosses.Equal(d(100)) {
		t.Errorf("total losses = %s, want 100", p.TotalDollarLosses)
	}
	if !p.TotalPainScore.Equal(d(500)) {
		t.Errorf("total pain = %s, want 500", p.TotalPainScore)
	}
}

func TestRecordLoss_ExtremaAndRunningMean(t *testing.T) {
	s := NewMemoryStore(10, 30*24*time.Hour)
	ctx := context.Background()

	s.RecordLoss(ctx, makeEvent("e1", t0, 2_000, 10), makeScore(5))
	s.RecordLoss(ctx, makeEvent("e2", t0.Add(time.Hour), 8_000, 20), makeScore(8))
	s.RecordLoss(ctx, makeEvent("e3", t0.Add(2*time.Hour), 1_000, 3), makeScore(2))

	p, _ := s.GetProfile(ctx, "trader-1")

	if !p.MaxEquitySeen.Equal(d(8_000)) {
		t.Errorf("max equity = %s, want 8000", p.MaxEquitySeen)
	}
	if !p.MinEquitySeen.Equal(d(1_000)) {
		t.Errorf("min equity = %s, want 1000", p.MinEquitySeen)
	}
	if p.MaxEquitySeen.LessThan(p.MinEquitySeen) {
		t.Error("max equity must never drop below min equity")
	}
	wantAvg := (10.0 + 20 + 3) / 3
	if math.Abs(p.AvgLeverage-wantAvg) > 1e-9 {
		t.Errorf("avg leverage = %v, want %v", p.AvgLeverage, wantAvg)
	}
	if !p.MaxPainMultiplier.Equal(d(8)) {
		t.Errorf("max multiplier = %s, want 8", p.MaxPainMultiplier)
	}
}

func TestRecordLoss_DisplayHistoryEviction(t *testing.T) {
	s := NewMemoryStore(3, 30*24*time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ev := makeEvent(fmt.Sprintf("e%d", i), t0.Add(time.Duration(i)*time.Minute), 2_000, 10)
		s.RecordLoss(ctx, ev, makeScore(5))
	}

	p, _ := s.GetProfile(ctx, "trader-1")
	if len(p.RecentHistory) != 3 {
		t.Fatalf("display history length = %d, want capacity 3", len(p.RecentHistory))
	}
	// Oldest evicted first: survivors are e2, e3, e4 in order.
	for i, want := range []string{"e2", "e3", "e4"} {
		if p.RecentHistory[i].ID != want {
			t.Errorf("history[%d] = %s, want %s", i, p.RecentHistory[i].ID, want)
		}
	}
	// The frequency log is time-bounded, not display-capped.
	if len(p.PainLog) != 5 {
		t.Errorf("pain log length = %d, want 5", len(p.PainLog))
	}
}

func TestRecordLoss_PainLogRetentionPruning(t *testing.T) {
	s := NewMemoryStore(10, 7*24*time.Hour)
	ctx := context.Background()

	s.RecordLoss(ctx, makeEvent("old", t0, 2_000, 10), makeScore(5))
	s.RecordLoss(ctx, makeEvent("new", t0.Add(10*24*time.Hour), 2_000, 10), makeScore(5))

	p, _ := s.GetProfile(ctx, "trader-1")
	if len(p.PainLog) != 1 {
		t.Fatalf("pain log length = %d, want 1 after pruning", len(p.PainLog))
	}
	if !p.PainLog[0].Timestamp.Equal(t0.Add(10 * 24 * time.Hour)) {
		t.Errorf("surviving entry has wrong timestamp: %v", p.PainLog[0].Timestamp)
	}
}

// Entries can land with out-of-order timestamps; pruning must catch an
// expired entry even when a fresher one precedes it in the log.
func TestRecordLoss_PruneHandlesOutOfOrderTimestamps(t *testing.T) {
	s := NewMemoryStore(10, 30*24*time.Hour)
	ctx := context.Background()

	s.RecordLoss(ctx, makeEvent("fresh", t0, 2_000, 10), makeScore(5))
	s.RecordLoss(ctx, makeEvent("stale", t0.Add(-40*24*time.Hour), 2_000, 10), makeScore(5))
	s.RecordLoss(ctx, makeEvent("trigger", t0.Add(time.Hour), 2_000, 10), makeScore(5))

	p, _ := s.GetProfile(ctx, "trader-1")
	if len(p.PainLog) != 2 {
		t.Fatalf("pain log length = %d, want 2 after pruning", len(p.PainLog))
	}
	for _, e := range p.PainLog {
		if e.Timestamp.Before(t0) {
			t.Errorf("expired entry survived pruning: %v", e.Timestamp)
		}
	}
}

// A client-supplied timestamp far in the future must not drag the
// retention horizon forward and wipe valid history.
func TestRecordLoss_FutureTimestampDoesNotWipeLog(t *testing.T) {
	s := NewMemoryStore(10, 30*24*time.Hour)
	ctx := context.Background()

	now := time.Now().UTC()
	s.RecordLoss(ctx, makeEvent("current", now, 2_000, 10), makeScore(5))
	s.RecordLoss(ctx, makeEvent("future", now.Add(10*365*24*time.Hour), 2_000, 10), makeScore(5))

	p, _ := s.GetProfile(ctx, "trader-1")
	if len(p.PainLog) != 2 {
		t.Fatalf("pain log length = %d, want 2 (current entry must survive)", len(p.PainLog))
	}
}

// GetRecentEvents called before recording an event must not include
// entries at or after the query boundary (the event being scored).
func TestGetRecentEvents_WindowIsHalfOpen(t *testing.T) {
	s := NewMemoryStore(10, 30*24*time.Hour)
	ctx := context.Background()

	s.RecordLoss(ctx, makeEvent("e1", t0, 2_000, 10), makeScore(5))
	s.RecordLoss(ctx, makeEvent("e2", t0.Add(20*time.Minute), 2_000, 10), makeScore(5))

	// Scoring a third event at t0+40m: window is [t0+40m-7d, t0+40m).
	at := t0.Add(40 * time.Minute)
	events, err := s.GetRecentEvents(ctx, "trader-1", at.Add(-7*24*time.Hour), at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 prior events, got %d", len(events))
	}

	// Scoring the second event: its own timestamp must be excluded.
	at = t0.Add(20 * time.Minute)
	events, _ = s.GetRecentEvents(ctx, "trader-1", at.Add(-7*24*time.Hour), at)
	if len(events) != 1 {
		t.Fatalf("expected 1 strictly-prior event, got %d", len(events))
	}
	if !events[0].Timestamp.Equal(t0) {
		t.Errorf("prior event timestamp = %v, want %v", events[0].Timestamp, t0)
	}
}

func TestListProfiles_FirstSeenOrder(t *testing.T) {
	s := NewMemoryStore(10, 30*24*time.Hour)
	ctx := context.Background()

	for i, id := range []string{"charlie", "alice", "bob"} {
		ev := makeEvent(fmt.Sprintf("e%d", i), t0.Add(time.Duration(i)*time.Minute), 2_000, 10)
		ev.TraderID = id
		score := makeScore(5)
		score.TraderID = id
		s.RecordLoss(ctx, ev, score)
	}

	profiles, err := s.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(profiles))
	}
	for i, want := range []string{"charlie", "alice", "bob"} {
		if profiles[i].TraderID != want {
			t.Errorf("profiles[%d] = %s, want %s (first-seen order)", i, profiles[i].TraderID, want)
		}
	}
}

// Snapshots must not alias internal state.
func TestGetProfile_ReturnsCopy(t *testing.T) {
	s := NewMemoryStore(10, 30*24*time.Hour)
	ctx := context.Background()

	s.RecordLoss(ctx, makeEvent("e1", t0, 2_000, 10), makeScore(5))

	p1, _ := s.GetProfile(ctx, "trader-1")
	p1.PainLog[0].DollarLoss = d(999_999)
	p1.TotalPainScore = d(0)

	p2, _ := s.GetProfile(ctx, "trader-1")
	if !p2.PainLog[0].DollarLoss.Equal(d(100)) {
		t.Error("mutating a returned profile leaked into store state")
	}
}
