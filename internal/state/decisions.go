// ./internal/state/decisions.go
package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/suivoice/atm/internal/types"
)

// ArchiveDecision persists a ledger entry. The in-memory ledger is bounded;
// the archive keeps the full history for offline analysis.
func (s *Store) ArchiveDecision(ctx context.Context, d types.TreasuryDecision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archived_decisions
			(id, decided_at, kind, trigger_name, action, reasoning, risk_score,
			 amount_usd, tx_ref, chain, venue, succeeded, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, NULLIF($11, ''), $12, NULLIF($13, ''))
		ON CONFLICT (id) DO NOTHING`,
		d.ID, d.Timestamp, string(d.Kind), d.Trigger, d.Action, d.Reasoning, d.RiskScore,
		d.AmountUSD, d.TxRef, string(d.Chain), string(d.Venue), d.Succeeded, d.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to archive decision %s: %w", d.ID, err)
	}
	return nil
}

// ArchivedDecisions returns the most recent archived decisions, newest first.
func (s *Store) ArchivedDecisions(ctx context.Context, limit int) ([]types.TreasuryDecision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, decided_at, kind, trigger_name, action, reasoning, risk_score,
		       COALESCE(amount_usd, 0), COALESCE(tx_ref, ''), chain, COALESCE(venue, ''),
		       succeeded, COALESCE(idempotency_key, '')
		FROM archived_decisions
		ORDER BY decided_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived decisions: %w", err)
	}
	defer rows.Close()

	var decisions []types.TreasuryDecision
	for rows.Next() {
		var d types.TreasuryDecision
		var kind, chain, venue string
		if err := rows.Scan(&d.ID, &d.Timestamp, &kind, &d.Trigger, &d.Action, &d.Reasoning,
			&d.RiskScore, &d.AmountUSD, &d.TxRef, &chain, &venue, &d.Succeeded, &d.IdempotencyKey); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}
		d.Kind = types.DecisionKind(kind)
		d.Chain = types.Chain(chain)
		d.Venue = types.Venue(venue)
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// CompletedIdempotencyKeys loads the idempotency keys of every archived
// decision that succeeded, used to rebuild the replay guard on startup.
func (s *Store) CompletedIdempotencyKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idempotency_key FROM archived_decisions
		WHERE succeeded AND idempotency_key IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query idempotency keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key sql.NullString
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan idempotency key: %w", err)
		}
		if key.Valid && key.String != "" {
			keys = append(keys, key.String)
		}
	}
	return keys, rows.Err()
}
