package store

import (
	"context"
	"sync"
	"time"

	"github.com/lossnet/pain-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and single-node deployments without a database.
//
// The display history is count-capped (oldest evicted first) and the
// pain log is time-pruned on every write, so memory per account stays
// constant regardless of how long a trader keeps losing.
type MemoryStore struct {
	mu              sync.RWMutex
	profiles        map[string]*model.AccountProfile
	order           []string // trader IDs in first-seen order
	displayCapacity int
	retention       time.Duration
}

// NewMemoryStore creates an in-memory store with the given display
// history capacity and pain-log retention horizon.
func NewMemoryStore(displayCapacity int, retention time.Duration) *MemoryStore {
	if displayCapacity < 1 {
		displayCapacity = 1
	}
	return &MemoryStore{
		profiles:        make(map[string]*model.AccountProfile),
		displayCapacity: displayCapacity,
		retention:       retention,
	}
}

func (s *MemoryStore) RecordLoss(_ context.Context, event *model.LossEvent, score *model.PainScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[event.TraderID]
	if !ok {
		p = &model.AccountProfile{
			TraderID:      event.TraderID,
			FirstSeen:     event.Timestamp,
			MaxEquitySeen: event.AccountEquity,
			MinEquitySeen: event.AccountEquity,
		}
		s.profiles[event.TraderID] = p
		s.order = append(s.order, event.TraderID)
	}

	p.TotalDollarLosses = p.TotalDollarLosses.Add(event.DollarLoss)
	p.TotalPainScore = p.TotalPainScore.Add(score.PainWeightedScore)
	p.LossCount++

	if event.AccountEquity.GreaterThan(p.MaxEquitySeen) {
		p.MaxEquitySeen = event.AccountEquity
	}
	if event.AccountEquity.LessThan(p.MinEquitySeen) {
		p.MinEquitySeen = event.AccountEquity
	}

	// Incremental running mean: avg_new = avg_old*(n-1)/n + x/n.
	n := float64(p.LossCount)
	p.AvgLeverage = p.AvgLeverage*(n-1)/n + event.Leverage/n

	if score.PainMultiplier.GreaterThan(p.MaxPainMultiplier) {
		p.MaxPainMultiplier = score.PainMultiplier
	}

	// Capped display history, oldest evicted first.
	p.RecentHistory = append(p.RecentHistory, *event)
	if len(p.RecentHistory) > s.displayCapacity {
		p.RecentHistory = p.RecentHistory[len(p.RecentHistory)-s.displayCapacity:]
	}

	// Frequency-tracking pain log, pruned at the retention horizon.
	p.PainLog = append(p.PainLog, model.PainLogEntry{
		Timestamp:  event.Timestamp,
		DollarLoss: event.DollarLoss,
		PainScore:  score.PainWeightedScore,
		Multiplier: score.PainMultiplier,
	})
	if s.retention > 0 {
		// Scan the whole log rather than cutting a prefix: entries may
		// arrive with out-of-order timestamps. The horizon is clamped
		// to the wall clock so one far-future client timestamp cannot
		// wipe the log.
		horizon := pruneHorizon(event.Timestamp, s.retention)
		kept := p.PainLog[:0]
		for _, e := range p.PainLog {
			if !e.Timestamp.Before(horizon) {
				kept = append(kept, e)
			}
		}
		p.PainLog = kept
	}

	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, traderID string) (*model.AccountProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[traderID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := copyProfile(p)
	return &cp, nil
}

func (s *MemoryStore) GetRecentEvents(_ context.Context, traderID string, since, before time.Time) ([]model.PainLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[traderID]
	if !ok {
		return nil, nil
	}
	var out []model.PainLogEntry
	for _, e := range p.PainLog {
		if !e.Timestamp.Before(since) && e.Timestamp.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListProfiles(_ context.Context) ([]model.AccountProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]model.AccountProfile, 0, len(s.order))
	for _, id := range s.order {
		profiles = append(profiles, copyProfile(s.profiles[id]))
	}
	return profiles, nil
}

// pruneHorizon computes the retention cutoff for an event timestamp,
// never trusting a timestamp ahead of the wall clock.
func pruneHorizon(eventTime time.Time, retention time.Duration) time.Time {
	ref := eventTime
	if now := time.Now().UTC(); ref.After(now) {
		ref = now
	}
	return ref.Add(-retention)
}

// copyProfile deep-copies a profile so callers cannot mutate store state
// through the returned slices.
func copyProfile(p *model.AccountProfile) model.AccountProfile {
	cp := *p
	cp.RecentHistory = append([]model.LossEvent(nil), p.RecentHistory...)
	cp.PainLog = append([]model.PainLogEntry(nil), p.PainLog...)
	return cp
}
