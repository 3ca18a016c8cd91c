// ./internal/state/intents.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/suivoice/atm/internal/types"
)

// InsertIntent persists a new queued intent and returns it with its
// generated ID and timestamp filled in.
func (s *Store) InsertIntent(ctx context.Context, functionName string, args []byte) (types.OfflineIntent, error) {
	if len(args) == 0 {
		args = []byte("{}")
	}
	intent := types.OfflineIntent{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		FunctionName: functionName,
		Args:         args,
		Status:       types.IntentQueued,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offline_intents (id, created_at, function_name, args, status)
		VALUES ($1, $2, $3, $4, $5)`,
		intent.ID, intent.Timestamp, intent.FunctionName, []byte(intent.Args), string(intent.Status))
	if err != nil {
		return types.OfflineIntent{}, fmt.Errorf("failed to insert intent: %w", err)
	}

	s.logger.Info().Str("intent_id", intent.ID).Str("function", functionName).Msg("Intent queued")
	return intent, nil
}

// QueuedIntents returns all queued intents in arrival order.
func (s *Store) QueuedIntents(ctx context.Context) ([]types.OfflineIntent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, function_name, args, status, COALESCE(error, ''), processed_at
		FROM offline_intents
		WHERE status = 'queued'
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query queued intents: %w", err)
	}
	defer rows.Close()
	return scanIntents(rows)
}

// RecentIntents returns the most recent intents of any status, newest first.
func (s *Store) RecentIntents(ctx context.Context, limit int) ([]types.OfflineIntent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, function_name, args, status, COALESCE(error, ''), processed_at
		FROM offline_intents
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent intents: %w", err)
	}
	defer rows.Close()
	return scanIntents(rows)
}

func scanIntents(rows *sql.Rows) ([]types.OfflineIntent, error) {
	var intents []types.OfflineIntent
	for rows.Next() {
		var it types.OfflineIntent
		var args []byte
		var status string
		var processedAt sql.NullTime
		if err := rows.Scan(&it.ID, &it.Timestamp, &it.FunctionName, &args, &status, &it.Error, &processedAt); err != nil {
			return nil, fmt.Errorf("failed to scan intent row: %w", err)
		}
		it.Args = args
		it.Status = types.IntentStatus(status)
		if processedAt.Valid {
			t := processedAt.Time
			it.ProcessedAt = &t
		}
		intents = append(intents, it)
	}
	return intents, rows.Err()
}

// ClaimIntent moves an intent from queued to processing. The status guard in
// the WHERE clause makes the claim atomic; a false return means another
// drain pass got there first or the intent is already terminal.
func (s *Store) ClaimIntent(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE offline_intents SET status = 'processing'
		WHERE id = $1 AND status = 'queued'`, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim intent %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result for intent %s: %w", id, err)
	}
	return n == 1, nil
}

// CompleteIntent marks a processing intent completed.
func (s *Store) CompleteIntent(ctx context.Context, id string) error {
	return s.finishIntent(ctx, id, types.IntentCompleted, "")
}

// FailIntent marks a processing intent failed, recording the error text.
func (s *Store) FailIntent(ctx context.Context, id string, errMsg string) error {
	return s.finishIntent(ctx, id, types.IntentFailed, errMsg)
}

func (s *Store) finishIntent(ctx context.Context, id string, status types.IntentStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE offline_intents SET status = $2, error = NULLIF($3, ''), processed_at = $4
		WHERE id = $1 AND status = 'processing'`,
		id, string(status), errMsg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark intent %s %s: %w", id, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for intent %s: %w", id, err)
	}
	if n != 1 {
		return fmt.Errorf("intent %s was not in processing state", id)
	}
	return nil
}
