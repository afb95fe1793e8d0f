// Package store defines the persistence interface for account profiles
// and their pain history. Implementations include PostgreSQL (source of
// truth), Redis (read-through cache), and in-memory (for testing and
// single-node deployments).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lossnet/pain-engine/internal/model"
)

// ErrProfileNotFound is returned on lookups for a trader with no
// recorded history. Reads never create profiles as a side effect.
var ErrProfileNotFound = errors.New("store: account profile not found")

// Store is the persistence interface for the scoring engine.
type Store interface {
	// RecordLoss applies one scored loss event to the trader's profile,
	// creating the profile on first sight. Running sums, extrema, the
	// incremental leverage mean, the capped display history, and the
	// frequency-tracking pain log are all updated atomically.
	RecordLoss(ctx context.Context, event *model.LossEvent, score *model.PainScore) error

	// GetProfile retrieves a trader's profile, including both history logs.
	// Returns ErrProfileNotFound for unknown traders.
	GetProfile(ctx context.Context, traderID string) (*model.AccountProfile, error)

	// GetRecentEvents returns the trader's pain-log entries with
	// timestamps in [since, before). Callers score an event against
	// GetRecentEvents(..., eventTime-window, eventTime) BEFORE recording
	// it, so the frequency factor reflects strictly-prior history.
	// Unknown traders yield an empty slice, not an error: a first loss
	// legitimately has no history.
	GetRecentEvents(ctx context.Context, traderID string, since, before time.Time) ([]model.PainLogEntry, error)

	// ListProfiles returns snapshots of every profile in first-seen
	// order. The order is part of the contract: leaderboard ties are
	// broken by discovery order.
	ListProfiles(ctx context.Context) ([]model.AccountProfile, error)
}
