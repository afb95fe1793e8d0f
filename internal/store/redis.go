package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lossnet/pain-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis
// read-through cache. Writes go to the primary store and invalidate the
// cache; profile reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

// RecordLoss writes through to the primary and invalidates the trader's
// cached profile plus the profile-list snapshot.
func (s *CachedStore) RecordLoss(ctx context.Context, event *model.LossEvent, score *model.PainScore) error {
	if err := s.primary.RecordLoss(ctx, event, score); err != nil {
		return err
	}
	s.rdb.Del(ctx, profileKey(event.TraderID), profileListKey)
	return nil
}

func (s *CachedStore) GetProfile(ctx context.Context, traderID string) (*model.AccountProfile, error) {
	data, err := s.rdb.Get(ctx, profileKey(traderID)).Bytes()
	if err == nil {
		var p model.AccountProfile
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetProfile(ctx, traderID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, profileKey(traderID), data, s.ttl)
	}
	return p, nil
}

// GetRecentEvents is never cached: it feeds the frequency factor, which
// must see strictly-current history.
func (s *CachedStore) GetRecentEvents(ctx context.Context, traderID string, since, before time.Time) ([]model.PainLogEntry, error) {
	return s.primary.GetRecentEvents(ctx, traderID, since, before)
}

func (s *CachedStore) ListProfiles(ctx context.Context) ([]model.AccountProfile, error) {
	data, err := s.rdb.Get(ctx, profileListKey).Bytes()
	if err == nil {
		var profiles []model.AccountProfile
		if json.Unmarshal(data, &profiles) == nil {
			return profiles, nil
		}
	}

	profiles, err := s.primary.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(profiles); err == nil {
		s.rdb.Set(ctx, profileListKey, data, s.ttl)
	}
	return profiles, nil
}

const profileListKey = "profiles:all"

func profileKey(traderID string) string { return fmt.Sprintf("profile:%s", traderID) }
