package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hetulpatel/crossarb/internal/models"
)

// ErrNoSnapshot is returned by LoadSnapshot before the first cycle is stored.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Name identifies the store as a snapshot sink.
func (s *Store) Name() string {
	return "sqlite"
}

// Publish stores snap as the current cycle.
func (s *Store) Publish(ctx context.Context, snap *models.Snapshot) error {
	return s.ReplaceSnapshot(ctx, snap)
}

// ReplaceSnapshot swaps the stored cycle for snap in one transaction, so a
// reader never sees rows from two cycles.
func (s *Store) ReplaceSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if s == nil || s.db == nil || snap == nil {
		return fmt.Errorf("sqlite store not initialized or snapshot nil")
	}
	errsJSON, err := json.Marshal(snap.SourceErrors)
	if err != nil {
		return fmt.Errorf("marshal source errors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+`;`); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO snapshot_meta (
	snapshot_id, started_at, completed_at, records_a, records_b,
	pair_count, opportunity_count, source_errors_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID,
		snap.StartedAt.UTC().Format(time.RFC3339Nano),
		snap.CompletedAt.UTC().Format(time.RFC3339Nano),
		snap.RecordsA,
		snap.RecordsB,
		len(snap.Pairs),
		len(snap.Opportunities),
		string(errsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot meta: %w", err)
	}

	pairStmt, err := tx.PrepareContext(ctx, `
INSERT INTO matched_pairs (
	pair_id, snapshot_id, method, score,
	a_venue, a_source_id, a_canonical_id, a_title, a_key,
	b_venue, b_source_id, b_canonical_id, b_title, b_key
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer pairStmt.Close()
	for i := range snap.Pairs {
		p := &snap.Pairs[i]
		if _, err := pairStmt.ExecContext(ctx,
			p.ID(), snap.ID, string(p.Method), p.Score,
			string(p.A.Venue), p.A.SourceID, p.A.CanonicalID, p.A.RawTitle, p.A.NormalizedKey,
			string(p.B.Venue), p.B.SourceID, p.B.CanonicalID, p.B.RawTitle, p.B.NormalizedKey,
		); err != nil {
			return fmt.Errorf("insert pair %s: %w", p.ID(), err)
		}
	}

	oppStmt, err := tx.PrepareContext(ctx, `
INSERT INTO opportunities (
	pair_id, strategy, snapshot_id, rank, outcome_a, outcome_b,
	price_a, price_b, unit_cost, profit_fraction,
	depth_a_usd, depth_b_usd, capacity_usd
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer oppStmt.Close()
	for i := range snap.Opportunities {
		o := &snap.Opportunities[i]
		if _, err := oppStmt.ExecContext(ctx,
			o.PairID, string(o.Strategy), snap.ID, i, o.OutcomeA, o.OutcomeB,
			o.PriceA, o.PriceB, o.UnitCost, o.ProfitFraction,
			o.DepthAUSD, o.DepthBUSD, o.CapacityUSD,
		); err != nil {
			return fmt.Errorf("insert opportunity %s/%s: %w", o.PairID, o.Strategy, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads the stored cycle back. Pair records carry only the
// identity and title fields that are persisted.
func (s *Store) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var (
		snap               models.Snapshot
		started, completed string
		errsJSON           sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT snapshot_id, started_at, completed_at, records_a, records_b, source_errors_json
FROM snapshot_meta LIMIT 1`).Scan(&snap.ID, &started, &completed, &snap.RecordsA, &snap.RecordsB, &errsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot meta: %w", err)
	}
	snap.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	snap.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
	if errsJSON.Valid && errsJSON.String != "" && errsJSON.String != "null" {
		if err := json.Unmarshal([]byte(errsJSON.String), &snap.SourceErrors); err != nil {
			return nil, fmt.Errorf("decode source errors: %w", err)
		}
	}

	pairs, byID, err := s.loadPairs(ctx)
	if err != nil {
		return nil, err
	}
	snap.Pairs = pairs

	opps, err := s.loadOpportunities(ctx, byID)
	if err != nil {
		return nil, err
	}
	snap.Opportunities = opps
	return &snap, nil
}

func (s *Store) loadPairs(ctx context.Context) ([]models.MatchedPair, map[string]models.MatchedPair, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT pair_id, method, score,
	a_venue, a_source_id, a_canonical_id, a_title, a_key,
	b_venue, b_source_id, b_canonical_id, b_title, b_key
FROM matched_pairs ORDER BY a_key, a_source_id`)
	if err != nil {
		return nil, nil, fmt.Errorf("query pairs: %w", err)
	}
	defer rows.Close()

	var out []models.MatchedPair
	byID := make(map[string]models.MatchedPair)
	for rows.Next() {
		var (
			id string
			p  models.MatchedPair
		)
		if err := rows.Scan(&id, &p.Method, &p.Score,
			&p.A.Venue, &p.A.SourceID, &p.A.CanonicalID, &p.A.RawTitle, &p.A.NormalizedKey,
			&p.B.Venue, &p.B.SourceID, &p.B.CanonicalID, &p.B.RawTitle, &p.B.NormalizedKey,
		); err != nil {
			return nil, nil, fmt.Errorf("scan pair: %w", err)
		}
		out = append(out, p)
		byID[id] = p
	}
	return out, byID, rows.Err()
}

func (s *Store) loadOpportunities(ctx context.Context, pairs map[string]models.MatchedPair) ([]models.ArbitrageOpportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT pair_id, strategy, outcome_a, outcome_b, price_a, price_b,
	unit_cost, profit_fraction, depth_a_usd, depth_b_usd, capacity_usd
FROM opportunities ORDER BY rank`)
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()

	var out []models.ArbitrageOpportunity
	for rows.Next() {
		var o models.ArbitrageOpportunity
		if err := rows.Scan(&o.PairID, &o.Strategy, &o.OutcomeA, &o.OutcomeB, &o.PriceA, &o.PriceB,
			&o.UnitCost, &o.ProfitFraction, &o.DepthAUSD, &o.DepthBUSD, &o.CapacityUSD,
		); err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		o.Pair = pairs[o.PairID]
		out = append(out, o)
	}
	return out, rows.Err()
}
