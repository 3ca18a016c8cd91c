/*

This file contains the types for treasury decisions and the derived treasury
state snapshot consumed by the UI and the risk scorer.

*/

package types

import "time"

// DecisionKind categorizes an entry of the decision ledger.
type DecisionKind string

const (
	DecisionSafetyDeposit  DecisionKind = "safety_deposit"
	DecisionYieldWithdraw  DecisionKind = "yield_withdraw"
	DecisionRebalance      DecisionKind = "rebalance"
	DecisionRiskAssessment DecisionKind = "risk_assessment"
	DecisionAutoSafety     DecisionKind = "auto_safety"
	DecisionAutoRedeploy   DecisionKind = "auto_redeploy"
)

// TreasuryDecision is one append-only ledger entry. Decisions are never
// edited after creation; corrections are new decisions referencing the old
// one by ID in their reasoning text.
type TreasuryDecision struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Kind      DecisionKind `json:"kind"`
	Trigger   string       `json:"trigger"`
	Action    string       `json:"action"`
	Reasoning string       `json:"reasoning"`
	RiskScore float64      `json:"risk_score"`
	AmountUSD float64      `json:"amount_usd,omitempty"`
	TxRef     string       `json:"tx_ref,omitempty"`
	Chain     Chain        `json:"chain"`
	Venue     Venue        `json:"venue,omitempty"`
	Succeeded bool         `json:"succeeded"`

	// IdempotencyKey ties a decision back to the intent that produced it so
	// a replayed offline intent can be detected and skipped.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// TreasuryState is a derived snapshot, recomputed from the ledger and the
// live position book on every query. It is never stored independently.
type TreasuryState struct {
	SafetyBalanceUSD    float64           `json:"safety_balance_usd"`
	YieldTotalUSD       float64           `json:"yield_total_usd"`
	Positions           []YieldPosition   `json:"positions"`
	LastDecision        *TreasuryDecision `json:"last_decision,omitempty"`
	RiskScore           float64           `json:"risk_score"`
	AllocationSafetyPct float64           `json:"allocation_safety_pct"`
	AllocationYieldPct  float64           `json:"allocation_yield_pct"`
}

// TotalUSD returns the combined treasury value.
func (s TreasuryState) TotalUSD() float64 {
	return s.SafetyBalanceUSD + s.YieldTotalUSD
}
