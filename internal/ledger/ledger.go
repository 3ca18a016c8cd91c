/*

DecisionLedger: append-only, bounded log of executed and attempted treasury
decisions, plus the optimistic portfolio book (safety balance and one yield
position per venue+chain pair). The ledger is the single writer of the
treasury state's last-decision and risk-score fields; TreasuryState itself is
recomputed from live balances on every query and never stored.

Decisions are immutable once recorded. Corrections are new decisions that
reference the old one by ID in their reasoning text.

*/

package ledger

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/types"
)

// DefaultCapacity bounds the ledger when no capacity is configured.
const DefaultCapacity = 50

// Ledger owns the decision sequence and the position book.
type Ledger struct {
	mu        sync.Mutex
	capacity  int
	decisions []types.TreasuryDecision

	// Explicit last-decision-of-kind index so hysteresis checks do not
	// rescan the ledger.
	lastOfKind map[types.DecisionKind]time.Time

	// Idempotency keys of successfully completed decisions, used to skip
	// blind replays of offline intents.
	completedKeys map[string]struct{}

	safetyUSD float64
	positions map[string]types.YieldPosition
	riskScore float64

	logger zerolog.Logger
}

// New constructs a ledger with the given capacity and opening safety balance.
func New(capacity int, openingSafetyUSD float64, logger zerolog.Logger) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		capacity:      capacity,
		decisions:     make([]types.TreasuryDecision, 0, capacity),
		lastOfKind:    make(map[types.DecisionKind]time.Time),
		completedKeys: make(map[string]struct{}),
		safetyUSD:     openingSafetyUSD,
		positions:     make(map[string]types.YieldPosition),
		logger:        logger.With().Str("component", "decision_ledger").Logger(),
	}
}

// Record appends a decision, evicting the oldest entry once capacity is
// exceeded. Successful decisions update the last-of-kind index and register
// their idempotency key.
func (l *Ledger) Record(d types.TreasuryDecision) types.TreasuryDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.decisions) == l.capacity {
		evicted := l.decisions[0]
		copy(l.decisions, l.decisions[1:])
		l.decisions = l.decisions[:l.capacity-1]
		l.logger.Debug().Str("evicted_id", evicted.ID).Msg("Ledger capacity reached, oldest decision evicted")
	}
	l.decisions = append(l.decisions, d)
	l.riskScore = d.RiskScore

	if d.Succeeded {
		l.lastOfKind[d.Kind] = d.Timestamp
		if d.IdempotencyKey != "" {
			l.completedKeys[d.IdempotencyKey] = struct{}{}
		}
	}

	l.logger.Info().
		Str("decision_id", d.ID).
		Str("kind", string(d.Kind)).
		Str("action", d.Action).
		Float64("amount_usd", d.AmountUSD).
		Bool("succeeded", d.Succeeded).
		Msg("Decision recorded")
	return d
}

// Decisions returns the recorded decisions, newest first.
func (l *Ledger) Decisions() []types.TreasuryDecision {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.TreasuryDecision, len(l.decisions))
	for i, d := range l.decisions {
		out[len(l.decisions)-1-i] = d
	}
	return out
}

// Len reports how many decisions are currently retained.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.decisions)
}

// LastOfKind returns when a decision of the given kind last succeeded.
func (l *Ledger) LastOfKind(kind types.DecisionKind) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts, ok := l.lastOfKind[kind]
	return ts, ok
}

// SeedCompletedKeys preloads the replay guard, typically from the decision
// archive on startup so reconnect replays stay idempotent across restarts.
func (l *Ledger) SeedCompletedKeys(keys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range keys {
		if key != "" {
			l.completedKeys[key] = struct{}{}
		}
	}
}

// HasCompletedKey reports whether an idempotency key already completed.
func (l *Ledger) HasCompletedKey(key string) bool {
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.completedKeys[key]
	return ok
}

func positionKey(venue types.Venue, chain types.Chain) string {
	return string(venue) + "|" + string(chain)
}

// ApplyDeposit moves funds from the safety balance into a yield position.
// The same (venue, chain) pair mutates in place; at most one position exists
// per pair.
func (l *Ledger) ApplyDeposit(venue types.Venue, chain types.Chain, asset string, amountUSD, apy float64, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amountUSD > l.safetyUSD {
		amountUSD = l.safetyUSD
	}
	l.safetyUSD -= amountUSD

	key := positionKey(venue, chain)
	pos, ok := l.positions[key]
	if !ok {
		pos = types.YieldPosition{Venue: venue, Chain: chain, Asset: asset, OpenedAt: at}
	}
	pos.Asset = asset
	pos.Apy = apy
	pos.Principal += amountUSD
	pos.PrincipalUSD += amountUSD
	l.positions[key] = pos
}

// ApplyWithdraw moves funds from one yield position back to safety. The
// position is removed when fully drained. Returns the amount actually moved.
func (l *Ledger) ApplyWithdraw(venue types.Venue, chain types.Chain, amountUSD float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := positionKey(venue, chain)
	pos, ok := l.positions[key]
	if !ok {
		return 0
	}
	if amountUSD <= 0 || amountUSD >= pos.PrincipalUSD {
		amountUSD = pos.PrincipalUSD
		delete(l.positions, key)
	} else {
		pos.Principal -= amountUSD
		pos.PrincipalUSD -= amountUSD
		l.positions[key] = pos
	}
	l.safetyUSD += amountUSD
	return amountUSD
}

// MoveYieldToSafety reduces every position pro-rata until amountUSD has been
// shifted back to the safety balance. Returns the amount actually moved.
func (l *Ledger) MoveYieldToSafety(amountUSD float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0.0
	for _, pos := range l.positions {
		total += pos.PrincipalUSD
	}
	if total <= 0 || amountUSD <= 0 {
		return 0
	}
	if amountUSD > total {
		amountUSD = total
	}

	ratio := amountUSD / total
	for key, pos := range l.positions {
		cut := pos.PrincipalUSD * ratio
		pos.Principal -= cut
		pos.PrincipalUSD -= cut
		if pos.PrincipalUSD <= 0.01 {
			delete(l.positions, key)
		} else {
			l.positions[key] = pos
		}
	}
	l.safetyUSD += amountUSD
	return amountUSD
}

// Positions returns a copy of the current yield positions.
func (l *Ledger) Positions() []types.YieldPosition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.YieldPosition, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, pos)
	}
	return out
}

// SafetyBalanceUSD returns the current safety vault balance.
func (l *Ledger) SafetyBalanceUSD() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.safetyUSD
}

// Snapshot recomputes the treasury state from live balances. Allocation
// percentages are never cached.
func (l *Ledger) Snapshot() types.TreasuryState {
	l.mu.Lock()
	defer l.mu.Unlock()

	yieldTotal := 0.0
	positions := make([]types.YieldPosition, 0, len(l.positions))
	for _, pos := range l.positions {
		yieldTotal += pos.PrincipalUSD
		positions = append(positions, pos)
	}

	state := types.TreasuryState{
		SafetyBalanceUSD: l.safetyUSD,
		YieldTotalUSD:    yieldTotal,
		Positions:        positions,
		RiskScore:        l.riskScore,
	}
	if n := len(l.decisions); n > 0 {
		last := l.decisions[n-1]
		state.LastDecision = &last
	}

	total := l.safetyUSD + yieldTotal
	if total > 0 {
		state.AllocationSafetyPct = l.safetyUSD / total * 100
		state.AllocationYieldPct = yieldTotal / total * 100
	}
	return state
}
