/*

OfflineIntentQueue: durable FIFO of user commands captured while the client
was disconnected. Intents replay in arrival order through the same executor
entry point as live commands, each tagged with its intent ID as idempotency
key so a reconnect storm can never double-apply one.

Draining is guarded by a single atomic flag: a drain that starts while
another is running returns immediately.

*/

package queue

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/executor"
	"github.com/suivoice/atm/internal/types"
)

// IntentStore is the persistence surface the queue needs.
type IntentStore interface {
	InsertIntent(ctx context.Context, functionName string, args []byte) (types.OfflineIntent, error)
	QueuedIntents(ctx context.Context) ([]types.OfflineIntent, error)
	ClaimIntent(ctx context.Context, id string) (bool, error)
	CompleteIntent(ctx context.Context, id string) error
	FailIntent(ctx context.Context, id string, errMsg string) error
}

// CommandRunner executes a parsed command.
type CommandRunner interface {
	Execute(ctx context.Context, cmd executor.Command) (string, error)
}

// Queue replays durably stored intents through the executor.
type Queue struct {
	store    IntentStore
	runner   CommandRunner
	draining atomic.Bool
	logger   zerolog.Logger
}

func New(store IntentStore, runner CommandRunner, logger zerolog.Logger) *Queue {
	return &Queue{
		store:  store,
		runner: runner,
		logger: logger.With().Str("component", "intent_queue").Logger(),
	}
}

// Enqueue validates and stores a new intent for later replay. Validation
// happens at enqueue time so a malformed command fails while the user is
// still around to hear about it.
func (q *Queue) Enqueue(ctx context.Context, functionName string, args []byte) (types.OfflineIntent, error) {
	if _, err := executor.ParseCommand(functionName, args); err != nil {
		return types.OfflineIntent{}, fmt.Errorf("rejecting intent: %w", err)
	}
	return q.store.InsertIntent(ctx, functionName, args)
}

// Drain replays every queued intent in arrival order. A drain already in
// progress makes this call a no-op. Intents fail independently: one bad
// intent is marked failed and the drain moves on.
func (q *Queue) Drain(ctx context.Context) ([]types.IntentResult, error) {
	if !q.draining.CompareAndSwap(false, true) {
		q.logger.Debug().Msg("Drain already in progress, skipping")
		return nil, nil
	}
	defer q.draining.Store(false)

	intents, err := q.store.QueuedIntents(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading queued intents: %w", err)
	}
	if len(intents) == 0 {
		return nil, nil
	}
	q.logger.Info().Int("count", len(intents)).Msg("Draining offline intents")

	results := make([]types.IntentResult, 0, len(intents))
	for _, intent := range intents {
		results = append(results, q.replay(ctx, intent))
	}
	return results, nil
}

func (q *Queue) replay(ctx context.Context, intent types.OfflineIntent) types.IntentResult {
	claimed, err := q.store.ClaimIntent(ctx, intent.ID)
	if err != nil {
		q.logger.Error().Err(err).Str("intent_id", intent.ID).Msg("Failed to claim intent")
		return types.IntentResult{IntentID: intent.ID, Status: types.IntentQueued, Message: err.Error()}
	}
	if !claimed {
		// Terminal already, or another pass claimed it.
		return types.IntentResult{IntentID: intent.ID, Status: intent.Status, Message: "not claimable"}
	}

	cmd, err := executor.ParseCommand(intent.FunctionName, intent.Args)
	if err != nil {
		return q.fail(ctx, intent.ID, err)
	}
	cmd.IdempotencyKey = intent.ID

	msg, err := q.runner.Execute(ctx, cmd)
	if err != nil {
		return q.fail(ctx, intent.ID, err)
	}

	if err := q.store.CompleteIntent(ctx, intent.ID); err != nil {
		q.logger.Error().Err(err).Str("intent_id", intent.ID).Msg("Failed to mark intent completed")
	}
	q.logger.Info().Str("intent_id", intent.ID).Str("function", intent.FunctionName).Msg("Intent replayed")
	return types.IntentResult{IntentID: intent.ID, Status: types.IntentCompleted, Message: msg}
}

func (q *Queue) fail(ctx context.Context, id string, cause error) types.IntentResult {
	if err := q.store.FailIntent(ctx, id, cause.Error()); err != nil {
		q.logger.Error().Err(err).Str("intent_id", id).Msg("Failed to mark intent failed")
	}
	q.logger.Warn().Err(cause).Str("intent_id", id).Msg("Intent replay failed")
	return types.IntentResult{IntentID: id, Status: types.IntentFailed, Message: cause.Error()}
}
