/*

RebalancePolicy: the pure decision function at the heart of the engine.
Branches are evaluated in strict priority order, first match wins:

  1. crash safety    - spot below the absolute floor, bypasses hysteresis
  2. yield rebalance - best net APY above the profile floor, rate limited
  3. allocation drift - actual split too far from the risk target
  4. hold            - informational, nothing to execute

Every branch embeds the concrete signal values in its reasoning text; the
audit trail depends on that, never on a vague "conditions changed".

*/

package policy

import (
	"fmt"
	"time"

	"github.com/suivoice/atm/internal/types"
)

// Action tags the direction of a recommended transfer.
type Action string

const (
	ActionMoveToSafety Action = "move_to_safety"
	ActionDeployYield  Action = "deploy_yield"
	ActionHold         Action = "hold"
)

// Params are the fixed thresholds the policy evaluates against.
type Params struct {
	Profile           types.RiskProfile
	CrashFloorUSD     float64
	HysteresisWindow  time.Duration // minimum gap between yield rebalances
	DriftThresholdPct float64
	MinTradeUSD       float64
}

// Decision is the policy's recommendation for one evaluation.
type Decision struct {
	Kind       types.DecisionKind
	Action     Action
	AmountUSD  float64
	Venue      types.Venue
	Chain      types.Chain
	Trigger    string
	Reasoning  string
	Actionable bool
}

// Decide evaluates the branch ladder. It is a pure function of its inputs:
// the current treasury state, the risk assessment, the best available yield
// opportunity (nil with a reason when none passed the profile filters), the
// current spot price, and the time of the last successful yield rebalance.
func Decide(now time.Time, state types.TreasuryState, assessment types.RiskAssessment,
	best *types.YieldOpportunity, bestReason string, spotPrice float64,
	lastRebalance time.Time, haveLast bool, p Params) Decision {

	// 1. Crash safety. Highest priority, ignores hysteresis entirely.
	if spotPrice > 0 && spotPrice < p.CrashFloorUSD && state.YieldTotalUSD > 0 {
		amount := state.YieldTotalUSD / 2
		return Decision{
			Kind:       types.DecisionAutoSafety,
			Action:     ActionMoveToSafety,
			AmountUSD:  amount,
			Venue:      types.VenueVault,
			Chain:      types.ChainSui,
			Trigger:    "crash_floor",
			Actionable: true,
			Reasoning: fmt.Sprintf("spot price $%.4f is below the crash floor $%.2f; moving half of the yield balance ($%.2f of $%.2f) to the safety vault",
				spotPrice, p.CrashFloorUSD, amount, state.YieldTotalUSD),
		}
	}

	// 2. Yield-based rebalance, behind the hysteresis window.
	if best != nil && best.NetApy >= p.Profile.RebalanceThresholdApy {
		if !haveLast || now.Sub(lastRebalance) >= p.HysteresisWindow {
			amount := deployableUSD(state, assessment, p)
			if amount >= p.MinTradeUSD {
				return Decision{
					Kind:       types.DecisionRebalance,
					Action:     ActionDeployYield,
					AmountUSD:  amount,
					Venue:      best.Venue,
					Chain:      best.Chain,
					Trigger:    "yield_opportunity",
					Actionable: true,
					Reasoning: fmt.Sprintf("%s on %s offers %.2f%% net APY (gross %.2f%%, bridge cost %.2f%%), above the %s threshold of %.2f%%; deploying $%.2f from safety",
						best.Venue, best.Chain, best.NetApy, best.GrossApy, best.BridgeCostPct,
						p.Profile.Name, p.Profile.RebalanceThresholdApy, amount),
				}
			}
		}
	}

	// 3. Allocation drift against the risk target.
	total := state.TotalUSD()
	if total > 0 {
		drift := state.AllocationSafetyPct - assessment.TargetSafetyPct
		if drift > p.DriftThresholdPct || drift < -p.DriftThresholdPct {
			amount := (drift / 100) * total
			if amount < 0 {
				amount = -amount
			}
			if amount >= p.MinTradeUSD {
				if drift > 0 && best != nil {
					// Safety-heavy: deploy the excess into the best venue.
					return Decision{
						Kind:       types.DecisionRebalance,
						Action:     ActionDeployYield,
						AmountUSD:  amount,
						Venue:      best.Venue,
						Chain:      best.Chain,
						Trigger:    "allocation_drift",
						Actionable: true,
						Reasoning: fmt.Sprintf("safety allocation %.1f%% exceeds the %.1f%% target by %.1f points (threshold %.1f); deploying $%.2f into %s at %.2f%% net APY",
							state.AllocationSafetyPct, assessment.TargetSafetyPct, drift, p.DriftThresholdPct, amount, best.Venue, best.NetApy),
					}
				}
				if drift < 0 {
					// Yield-heavy: pull the deficit back to safety.
					return Decision{
						Kind:       types.DecisionRebalance,
						Action:     ActionMoveToSafety,
						AmountUSD:  amount,
						Venue:      types.VenueVault,
						Chain:      types.ChainSui,
						Trigger:    "allocation_drift",
						Actionable: true,
						Reasoning: fmt.Sprintf("safety allocation %.1f%% is %.1f points below the %.1f%% target (threshold %.1f); moving $%.2f back to the safety vault",
							state.AllocationSafetyPct, -drift, assessment.TargetSafetyPct, p.DriftThresholdPct, amount),
					}
				}
			}
		}
	}

	// 4. Nothing warranted; report balances for the audit trail.
	reasoning := fmt.Sprintf("allocations within target: safety $%.2f (%.1f%%), yield $%.2f (%.1f%%), risk score %.1f (%s)",
		state.SafetyBalanceUSD, state.AllocationSafetyPct, state.YieldTotalUSD, state.AllocationYieldPct,
		assessment.Score, assessment.Band)
	if best == nil && bestReason != "" {
		reasoning += "; " + bestReason
	}
	return Decision{
		Kind:      types.DecisionRiskAssessment,
		Action:    ActionHold,
		Trigger:   "no_action",
		Reasoning: reasoning,
	}
}

// deployableUSD sizes a yield deployment: the safety balance above the risk
// target, capped by the profile's maximum yield allocation.
func deployableUSD(state types.TreasuryState, assessment types.RiskAssessment, p Params) float64 {
	total := state.TotalUSD()
	if total <= 0 {
		return 0
	}
	excess := state.SafetyBalanceUSD - total*assessment.TargetSafetyPct/100
	maxYield := total*p.Profile.MaxAllocationPct/100 - state.YieldTotalUSD
	if maxYield < excess {
		excess = maxYield
	}
	if excess < 0 {
		return 0
	}
	return excess
}
