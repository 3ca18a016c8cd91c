/*

This file contains the types for risk scoring and the configurable risk
profiles selectable at runtime.

*/

package types

// RiskBand buckets the 0-100 composite score.
type RiskBand string

const (
	RiskBandLow    RiskBand = "LOW"
	RiskBandMedium RiskBand = "MEDIUM"
	RiskBandHigh   RiskBand = "HIGH"
)

// RiskAssessment is the output of one scoring pass.
type RiskAssessment struct {
	Score           float64  `json:"score"`
	Band            RiskBand `json:"band"`
	TargetSafetyPct float64  `json:"target_safety_pct"`
	TargetYieldPct  float64  `json:"target_yield_pct"`

	// Component values, pre-weighting, each clamped to [0,100].
	PriceDropComponent float64 `json:"price_drop_component"`
	FundingComponent   float64 `json:"funding_component"`
	YieldComponent     float64 `json:"yield_component"`

	// Triggers are audit-trail strings for signals that crossed a fixed
	// threshold. They do not alter the score.
	Triggers []string `json:"triggers,omitempty"`
}

// RiskProfile is one of the fixed user-selectable risk levels. Changing the
// active profile takes effect on the next scheduler cycle.
type RiskProfile struct {
	Name                  string  `json:"name"`
	RebalanceThresholdApy float64 `json:"rebalance_threshold_apy"`
	MaxAllocationPct      float64 `json:"max_allocation_pct"`
	AllowCrossChain       bool    `json:"allow_cross_chain"`
	MinTvlUSD             float64 `json:"min_tvl_usd"`
}
