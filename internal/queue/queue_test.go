package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/executor"
	"github.com/suivoice/atm/internal/types"
)

// memStore is an in-memory IntentStore with the same claim semantics as the
// database: only queued intents are claimable.
type memStore struct {
	mu      sync.Mutex
	intents []types.OfflineIntent
	nextID  int
}

func (m *memStore) InsertIntent(ctx context.Context, functionName string, args []byte) (types.OfflineIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	intent := types.OfflineIntent{
		ID:           fmt.Sprintf("intent-%d", m.nextID),
		Timestamp:    time.Now().UTC(),
		FunctionName: functionName,
		Args:         json.RawMessage(args),
		Status:       types.IntentQueued,
	}
	m.intents = append(m.intents, intent)
	return intent, nil
}

func (m *memStore) QueuedIntents(ctx context.Context) ([]types.OfflineIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.OfflineIntent
	for _, i := range m.intents {
		if i.Status == types.IntentQueued {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *memStore) ClaimIntent(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for n := range m.intents {
		if m.intents[n].ID == id && m.intents[n].Status == types.IntentQueued {
			m.intents[n].Status = types.IntentProcessing
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CompleteIntent(ctx context.Context, id string) error {
	return m.finish(id, types.IntentCompleted, "")
}

func (m *memStore) FailIntent(ctx context.Context, id string, errMsg string) error {
	return m.finish(id, types.IntentFailed, errMsg)
}

func (m *memStore) finish(id string, status types.IntentStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for n := range m.intents {
		if m.intents[n].ID == id {
			m.intents[n].Status = status
			m.intents[n].Error = errMsg
			return nil
		}
	}
	return fmt.Errorf("intent %s not found", id)
}

func (m *memStore) statusOf(id string) types.IntentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.intents {
		if i.ID == id {
			return i.Status
		}
	}
	return ""
}

// scriptedRunner fails commands whose venue matches failVenue and records the
// order and idempotency keys of everything it sees.
type scriptedRunner struct {
	mu        sync.Mutex
	failVenue string
	executed  []executor.Command
	block     chan struct{} // when set, Execute parks until it is closed
}

func (r *scriptedRunner) Execute(ctx context.Context, cmd executor.Command) (string, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.executed = append(r.executed, cmd)
	r.mu.Unlock()
	if r.failVenue != "" && cmd.VenueName == r.failVenue {
		return "", errors.New("venue temporarily unavailable")
	}
	return "ok", nil
}

func (r *scriptedRunner) commands() []executor.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]executor.Command(nil), r.executed...)
}

func TestEnqueueValidatesUpFront(t *testing.T) {
	q := New(&memStore{}, &scriptedRunner{}, zerolog.Nop())
	ctx := context.Background()

	intent, err := q.Enqueue(ctx, "safety_deposit", []byte(`{"amount_usd": 100}`))
	if err != nil {
		t.Fatal(err)
	}
	if intent.ID == "" || intent.Status != types.IntentQueued {
		t.Fatalf("unexpected stored intent: %+v", intent)
	}

	if _, err := q.Enqueue(ctx, "safety_deposit", []byte(`{}`)); err == nil {
		t.Fatal("a malformed command must be rejected at enqueue time")
	}
	if _, err := q.Enqueue(ctx, "launch_rocket", nil); err == nil {
		t.Fatal("an unknown command must be rejected at enqueue time")
	}
}

func TestDrainReplaysInOrderWithIndependentFailures(t *testing.T) {
	store := &memStore{}
	runner := &scriptedRunner{failVenue: "cetus"}
	q := New(store, runner, zerolog.Nop())
	ctx := context.Background()

	a, _ := q.Enqueue(ctx, "safety_deposit", []byte(`{"amount_usd": 100}`))
	b, _ := q.Enqueue(ctx, "yield_withdraw", []byte(`{"venue": "cetus", "amount_usd": 50}`))
	c, _ := q.Enqueue(ctx, "risk_assessment", nil)

	results, err := q.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected three results, got %d", len(results))
	}
	if results[0].IntentID != a.ID || results[1].IntentID != b.ID || results[2].IntentID != c.ID {
		t.Fatalf("expected arrival order, got %+v", results)
	}
	if results[0].Status != types.IntentCompleted || results[2].Status != types.IntentCompleted {
		t.Fatalf("expected the surrounding intents to complete: %+v", results)
	}
	if results[1].Status != types.IntentFailed {
		t.Fatalf("expected the middle intent to fail without stopping the drain: %+v", results[1])
	}

	if store.statusOf(b.ID) != types.IntentFailed {
		t.Fatalf("expected the failure persisted, got %s", store.statusOf(b.ID))
	}

	// Each replay carries its intent ID as idempotency key.
	cmds := runner.commands()
	if len(cmds) != 3 {
		t.Fatalf("expected three executions, got %d", len(cmds))
	}
	for i, id := range []string{a.ID, b.ID, c.ID} {
		if cmds[i].IdempotencyKey != id {
			t.Fatalf("command %d carries key %q, want %q", i, cmds[i].IdempotencyKey, id)
		}
	}
}

func TestDrainSecondPassFindsNothing(t *testing.T) {
	store := &memStore{}
	q := New(store, &scriptedRunner{}, zerolog.Nop())
	ctx := context.Background()

	q.Enqueue(ctx, "risk_assessment", nil)
	if _, err := q.Drain(ctx); err != nil {
		t.Fatal(err)
	}

	results, err := q.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Fatalf("expected an empty second drain, got %+v", results)
	}
}

func TestDrainConcurrentCallIsNoOp(t *testing.T) {
	store := &memStore{}
	runner := &scriptedRunner{block: make(chan struct{})}
	q := New(store, runner, zerolog.Nop())
	ctx := context.Background()

	q.Enqueue(ctx, "risk_assessment", nil)

	first := make(chan []types.IntentResult)
	go func() {
		results, _ := q.Drain(ctx)
		first <- results
	}()

	// Wait for the first drain to claim the intent and park in Execute.
	deadline := time.After(2 * time.Second)
	for store.statusOf("intent-1") != types.IntentProcessing {
		select {
		case <-deadline:
			t.Fatal("first drain never claimed the intent")
		case <-time.After(time.Millisecond):
		}
	}

	results, err := q.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Fatalf("a drain during a drain must be a no-op, got %+v", results)
	}

	close(runner.block)
	if got := <-first; len(got) != 1 || got[0].Status != types.IntentCompleted {
		t.Fatalf("the original drain should finish its work, got %+v", got)
	}
}

func TestDrainSkipsAlreadyClaimedIntents(t *testing.T) {
	store := &memStore{}
	runner := &scriptedRunner{}
	q := New(store, runner, zerolog.Nop())
	ctx := context.Background()

	intent, _ := q.Enqueue(ctx, "risk_assessment", nil)
	// Simulate another replica holding the claim between listing and replay.
	store.ClaimIntent(ctx, intent.ID)

	// The listing sees nothing queued anymore.
	results, err := q.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Fatalf("expected nothing to replay, got %+v", results)
	}
	if len(runner.commands()) != 0 {
		t.Fatal("a claimed intent must not execute twice")
	}
}
