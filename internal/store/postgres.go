package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lossnet/pain-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
//
// Expected schema:
//
//	account_profiles(trader_id TEXT PK, first_seen TIMESTAMPTZ,
//	    total_dollar_losses NUMERIC, total_pain_score NUMERIC,
//	    loss_count INT, max_equity_seen NUMERIC, min_equity_seen NUMERIC,
//	    avg_leverage DOUBLE PRECISION, max_pain_multiplier NUMERIC)
//	loss_events(id TEXT PK, trader_id TEXT, asset TEXT,
//	    dollar_loss NUMERIC, account_equity NUMERIC, position_size NUMERIC,
//	    leverage DOUBLE PRECISION, volatility DOUBLE PRECISION,
//	    time_in_position DOUBLE PRECISION, timestamp TIMESTAMPTZ)
//	pain_log(trader_id TEXT, timestamp TIMESTAMPTZ,
//	    dollar_loss NUMERIC, pain_score NUMERIC, multiplier NUMERIC)
type PostgresStore struct {
	pool            *pgxpool.Pool
	displayCapacity int
	retention       time.Duration
}

// NewPostgresStore creates a PostgreSQL-backed store with the given
// display history capacity and pain-log retention horizon.
func NewPostgresStore(pool *pgxpool.Pool, displayCapacity int, retention time.Duration) *PostgresStore {
	if displayCapacity < 1 {
		displayCapacity = 1
	}
	return &PostgresStore{pool: pool, displayCapacity: displayCapacity, retention: retention}
}

func (s *PostgresStore) RecordLoss(ctx context.Context, e *model.LossEvent, score *model.PainScore) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("record loss: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Upsert the profile. The incremental leverage mean and extrema are
	// computed in SQL against the pre-event row.
	_, err = tx.Exec(ctx,
		`INSERT INTO account_profiles
		     (trader_id, first_seen, total_dollar_losses, total_pain_score, loss_count,
		      max_equity_seen, min_equity_seen, avg_leverage, max_pain_multiplier)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, 1, $5::NUMERIC, $5::NUMERIC, $6, $7::NUMERIC)
		 ON CONFLICT (trader_id) DO UPDATE SET
		     total_dollar_losses = account_profiles.total_dollar_losses + EXCLUDED.total_dollar_losses,
		     total_pain_score    = account_profiles.total_pain_score + EXCLUDED.total_pain_score,
		     loss_count          = account_profiles.loss_count + 1,
		     max_equity_seen     = GREATEST(account_profiles.max_equity_seen, EXCLUDED.max_equity_seen),
		     min_equity_seen     = LEAST(account_profiles.min_equity_seen, EXCLUDED.min_equity_seen),
		     avg_leverage        = account_profiles.avg_leverage
		                           * account_profiles.loss_count / (account_profiles.loss_count + 1)
		                           + EXCLUDED.avg_leverage / (account_profiles.loss_count + 1),
		     max_pain_multiplier = GREATEST(account_profiles.max_pain_multiplier, EXCLUDED.max_pain_multiplier)`,
		e.TraderID, e.Timestamp,
		e.DollarLoss.String(), score.PainWeightedScore.String(),
		e.AccountEquity.String(), e.Leverage, score.PainMultiplier.String(),
	)
	if err != nil {
		return fmt.Errorf("record loss: upsert profile: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO loss_events
		     (id, trader_id, asset, dollar_loss, account_equity, position_size,
		      leverage, volatility, time_in_position, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8, $9, $10)`,
		e.ID, e.TraderID, e.Asset,
		e.DollarLoss.String(), e.AccountEquity.String(), e.PositionSize.String(),
		e.Leverage, e.Volatility, e.TimeInPosition, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("record loss: insert event: %w", err)
	}

	// Evict display history beyond capacity, oldest first.
	_, err = tx.Exec(ctx,
		`DELETE FROM loss_events
		 WHERE trader_id = $1 AND id NOT IN (
		     SELECT id FROM loss_events
		     WHERE trader_id = $1
		     ORDER BY timestamp DESC, id DESC
		     LIMIT $2)`,
		e.TraderID, s.displayCapacity,
	)
	if err != nil {
		return fmt.Errorf("record loss: trim history: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO pain_log (trader_id, timestamp, dollar_loss, pain_score, multiplier)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC)`,
		e.TraderID, e.Timestamp,
		e.DollarLoss.String(), score.PainWeightedScore.String(), score.PainMultiplier.String(),
	)
	if err != nil {
		return fmt.Errorf("record loss: insert pain log: %w", err)
	}

	if s.retention > 0 {
		_, err = tx.Exec(ctx,
			`DELETE FROM pain_log WHERE trader_id = $1 AND timestamp < $2`,
			e.TraderID, pruneHorizon(e.Timestamp, s.retention),
		)
		if err != nil {
			return fmt.Errorf("record loss: prune pain log: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetProfile(ctx context.Context, traderID string) (*model.AccountProfile, error) {
	p, err := s.scanProfile(ctx, traderID)
	if err != nil {
		return nil, err
	}

	events, err := s.recentEvents(ctx, traderID)
	if err != nil {
		return nil, err
	}
	p.RecentHistory = events

	entries, err := s.painLog(ctx, traderID)
	if err != nil {
		return nil, err
	}
	p.PainLog = entries

	return p, nil
}

func (s *PostgresStore) GetRecentEvents(ctx context.Context, traderID string, since, before time.Time) ([]model.PainLogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT timestamp, dollar_loss::TEXT, pain_score::TEXT, multiplier::TEXT
		 FROM pain_log
		 WHERE trader_id = $1 AND timestamp >= $2 AND timestamp < $3
		 ORDER BY timestamp`,
		traderID, since, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPainLog(rows)
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]model.AccountProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT trader_id, first_seen,
		        total_dollar_losses::TEXT, total_pain_score::TEXT, loss_count,
		        max_equity_seen::TEXT, min_equity_seen::TEXT,
		        avg_leverage, max_pain_multiplier::TEXT
		 FROM account_profiles
		 ORDER BY first_seen, trader_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []model.AccountProfile
	index := make(map[string]int)
	for rows.Next() {
		p, err := scanProfileRow(rows)
		if err != nil {
			return nil, err
		}
		index[p.TraderID] = len(profiles)
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Attach pain logs in one pass so the impact analyzer can window them.
	logRows, err := s.pool.Query(ctx,
		`SELECT trader_id, timestamp, dollar_loss::TEXT, pain_score::TEXT, multiplier::TEXT
		 FROM pain_log ORDER BY trader_id, timestamp`)
	if err != nil {
		return nil, err
	}
	defer logRows.Close()

	for logRows.Next() {
		var traderID string
		var entry model.PainLogEntry
		var lossS, scoreS, multS string
		if err := logRows.Scan(&traderID, &entry.Timestamp, &lossS, &scoreS, &multS); err != nil {
			return nil, err
		}
		entry.DollarLoss, _ = decimal.NewFromString(lossS)
		entry.PainScore, _ = decimal.NewFromString(scoreS)
		entry.Multiplier, _ = decimal.NewFromString(multS)
		if i, ok := index[traderID]; ok {
			profiles[i].PainLog = append(profiles[i].PainLog, entry)
		}
	}
	return profiles, logRows.Err()
}

// --- row scanning helpers ---

type profileScanner interface {
	Scan(dest ...any) error
}

func scanProfileRow(row profileScanner) (*model.AccountProfile, error) {
	var p model.AccountProfile
	var totalLossS, totalPainS, maxEqS, minEqS, maxMultS string

	if err := row.Scan(&p.TraderID, &p.FirstSeen,
		&totalLossS, &totalPainS, &p.LossCount,
		&maxEqS, &minEqS, &p.AvgLeverage, &maxMultS); err != nil {
		return nil, err
	}

	p.TotalDollarLosses, _ = decimal.NewFromString(totalLossS)
	p.TotalPainScore, _ = decimal.NewFromString(totalPainS)
	p.MaxEquitySeen, _ = decimal.NewFromString(maxEqS)
	p.MinEquitySeen, _ = decimal.NewFromString(minEqS)
	p.MaxPainMultiplier, _ = decimal.NewFromString(maxMultS)
	return &p, nil
}

func (s *PostgresStore) scanProfile(ctx context.Context, traderID string) (*model.AccountProfile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT trader_id, first_seen,
		        total_dollar_losses::TEXT, total_pain_score::TEXT, loss_count,
		        max_equity_seen::TEXT, min_equity_seen::TEXT,
		        avg_leverage, max_pain_multiplier::TEXT
		 FROM account_profiles WHERE trader_id = $1`, traderID)

	p, err := scanProfileRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile %s: %w", traderID, err)
	}
	return p, nil
}

func (s *PostgresStore) recentEvents(ctx context.Context, traderID string) ([]model.LossEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, trader_id, asset,
		        dollar_loss::TEXT, account_equity::TEXT, position_size::TEXT,
		        leverage, volatility, time_in_position, timestamp
		 FROM loss_events WHERE trader_id = $1
		 ORDER BY timestamp, id`, traderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.LossEvent
	for rows.Next() {
		var e model.LossEvent
		var lossS, equityS, positionS string
		if err := rows.Scan(&e.ID, &e.TraderID, &e.Asset,
			&lossS, &equityS, &positionS,
			&e.Leverage, &e.Volatility, &e.TimeInPosition, &e.Timestamp); err != nil {
			return nil, err
		}
		e.DollarLoss, _ = decimal.NewFromString(lossS)
		e.AccountEquity, _ = decimal.NewFromString(equityS)
		e.PositionSize, _ = decimal.NewFromString(positionS)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) painLog(ctx context.Context, traderID string) ([]model.PainLogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT timestamp, dollar_loss::TEXT, pain_score::TEXT, multiplier::TEXT
		 FROM pain_log WHERE trader_id = $1 ORDER BY timestamp`, traderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPainLog(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPainLog(rows pgxRows) ([]model.PainLogEntry, error) {
	var entries []model.PainLogEntry
	for rows.Next() {
		var e model.PainLogEntry
		var lossS, scoreS, multS string
		if err := rows.Scan(&e.Timestamp, &lossS, &scoreS, &multS); err != nil {
			return nil, err
		}
		e.DollarLoss, _ = decimal.NewFromString(lossS)
		e.PainScore, _ = decimal.NewFromString(scoreS)
		e.Multiplier, _ = decimal.NewFromString(multS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
