// Package ingest provides the HTTP handlers and scoring pipeline for
// recording loss events and querying profiles, network metrics,
// leaderboards, and volatility impact reports.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ingest

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lossnet/pain-engine/internal/analytics"
	"github.com/lossnet/pain-engine/internal/metrics"
	"github.com/lossnet/pain-engine/internal/model"
	"github.com/lossnet/pain-engine/internal/painscore"
	"github.com/lossnet/pain-engine/internal/params"
	"github.com/lossnet/pain-engine/internal/pattern"
	"github.com/lossnet/pain-engine/internal/store"
)

// lockStripes is the number of per-trader mutex stripes. Updates to one
// account must be serialized (the frequency factor reads history
// strictly prior to the event being recorded); updates to different
// accounts have no ordering constraint, so they only contend on stripe
// collisions.
const lockStripes = 64

// Service handles loss-event ingestion and analytics queries.
type Service struct {
	store  store.Store
	calc   *painscore.Calculator
	params params.Params
	wsHub  *WSHub // optional hub for real-time pain-feed broadcasts

	traderLocks [lockStripes]sync.Mutex

	// Last network pain concentration observed by the aggregator; feeds
	// pattern insights without a full profile scan per loss. Guarded by
	// concMu; negative until the first aggregation.
	concMu        sync.RWMutex
	concentration float64
}

// NewService creates the ingestion service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, calc *painscore.Calculator, p params.Params, hub *WSHub) *Service {
	return &Service{
		store:         st,
		calc:          calc,
		params:        p,
		wsHub:         hub,
		concentration: -1,
	}
}

// --- Request/Response types ---

// LossRequest is the JSON body for POST /api/v1/losses.
type LossRequest struct {
	TraderID       string          `json:"trader_id"`
	Asset          string          `json:"asset,omitempty"`
	DollarLoss     decimal.Decimal `json:"dollar_loss"`
	AccountEquity  decimal.Decimal `json:"account_equity"`
	PositionSize   decimal.Decimal `json:"position_size"`
	Leverage       float64         `json:"leverage"`
	Volatility     float64         `json:"volatility"`
	TimeInPosition float64         `json:"time_in_position"`
	Timestamp      *time.Time      `json:"timestamp,omitempty"` // defaults to now
}

// LossResponse is returned from POST /api/v1/losses.
type LossResponse struct {
	Score   model.PainScore  `json:"score"`
	Pattern pattern.Analysis `json:"pattern"`
}

// --- HTTP Handlers ---

// RecordLoss handles POST /api/v1/losses.
// Validates, scores against strictly-prior history, records, and
// returns the full score plus pattern analysis.
func (s *Service) RecordLoss(w http.ResponseWriter, r *http.Request) {
	var req LossRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TraderID == "" {
		writeError(w, "trader_id is required", http.StatusBadRequest)
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}

	event := model.LossEvent{
		ID:             uuid.New().String(),
		TraderID:       req.TraderID,
		Asset:          req.Asset,
		DollarLoss:     req.DollarLoss,
		AccountEquity:  req.AccountEquity,
		PositionSize:   req.PositionSize,
		Leverage:       req.Leverage,
		Volatility:     req.Volatility,
		TimeInPosition: req.TimeInPosition,
		Timestamp:      ts,
	}

	ctx := r.Context()

	// Serialize scoring+recording per trader.
	lock := s.traderLock(event.TraderID)
	lock.Lock()
	defer lock.Unlock()

	window := time.Duration(s.params.Scoring.FrequencyWindowDays) * 24 * time.Hour
	prior, err := s.store.GetRecentEvents(ctx, event.TraderID, ts.Add(-window), ts)
	if err != nil {
		writeError(w, "failed to load trader history", http.StatusInternalServerError)
		return
	}

	score, err := s.calc.Compute(event, prior)
	if err != nil {
		var verr *painscore.ValidationError
		if errors.As(err, &verr) {
			metrics.ValidationRejections.WithLabelValues(verr.Field).Inc()
			writeValidationError(w, verr)
			return
		}
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.RecordLoss(ctx, &event, &score); err != nil {
		writeError(w, "failed to record loss", http.StatusInternalServerError)
		return
	}

	metrics.LossesScored.WithLabelValues(string(score.TraderTier)).Inc()
	metrics.PainMultiplier.Observe(score.PainMultiplier.InexactFloat64())

	analysis := pattern.Analyze(score, s.lastConcentration())

	slog.Info("loss scored",
		"event_id", event.ID,
		"trader", event.TraderID,
		"tier", score.TraderTier,
		"loss", event.DollarLoss.String(),
		"multiplier", score.PainMultiplier.String(),
		"level", score.PainLevel,
		"pattern", analysis.BehaviorPattern,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:       "loss_scored",
			EventID:    event.ID,
			TraderID:   event.TraderID,
			Tier:       string(score.TraderTier),
			PainLevel:  score.PainLevel,
			Multiplier: score.PainMultiplier.String(),
			PainScore:  score.PainWeightedScore.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(LossResponse{Score: score, Pattern: analysis})
}

// GetProfile handles GET /api/v1/profiles/{traderID}.
func (s *Service) GetProfile(w http.ResponseWriter, r *http.Request) {
	traderID := chi.URLParam(r, "traderID")

	profile, err := s.store.GetProfile(r.Context(), traderID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			writeError(w, "no history for trader "+traderID, http.StatusNotFound)
			return
		}
		writeError(w, "failed to load profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

// GetNetworkMetrics handles GET /api/v1/network/metrics.
func (s *Service) GetNetworkMetrics(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListProfiles(r.Context())
	if err != nil {
		writeError(w, "failed to load profiles", http.StatusInternalServerError)
		return
	}

	m := analytics.Aggregate(profiles, s.params.TierThresholds(), time.Now().UTC())
	s.setConcentration(m.PainConcentration)
	metrics.TrackedAccounts.Set(float64(m.TotalTraders))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

// GetLeaderboard handles GET /api/v1/leaderboard?limit=N (default 10).
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	profiles, err := s.store.ListProfiles(r.Context())
	if err != nil {
		writeError(w, "failed to load profiles", http.StatusInternalServerError)
		return
	}

	entries := analytics.TopByPain(profiles, limit, s.params.TierThresholds())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// AnalyzeImpact handles POST /api/v1/impact.
// Body: {"asset": "...", "time_window_hours": N}; window defaults to 24h.
func (s *Service) AnalyzeImpact(w http.ResponseWriter, r *http.Request) {
	var ev analytics.VolatilityEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if ev.TimeWindowHours <= 0 {
		ev.TimeWindowHours = 24
	}

	profiles, err := s.store.ListProfiles(r.Context())
	if err != nil {
		writeError(w, "failed to load profiles", http.StatusInternalServerError)
		return
	}

	report := analytics.AnalyzeImpact(ev, profiles, time.Now().UTC(), s.params.TierThresholds())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// --- internals ---

func (s *Service) traderLock(traderID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(traderID))
	return &s.traderLocks[h.Sum32()%lockStripes]
}

func (s *Service) lastConcentration() float64 {
	s.concMu.RLock()
	defer s.concMu.RUnlock()
	return s.concentration
}

func (s *Service) setConcentration(c float64) {
	if math.IsNaN(c) {
		return
	}
	s.concMu.Lock()
	s.concentration = c
	s.concMu.Unlock()
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeValidationError reports the violated field and constraint.
func writeValidationError(w http.ResponseWriter, verr *painscore.ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{
		"error":      verr.Error(),
		"field":      verr.Field,
		"constraint": verr.Constraint,
	})
}
