package policy

import (
	"strings"
	"testing"
	"time"

	"github.com/suivoice/atm/internal/config"
	"github.com/suivoice/atm/internal/types"
)

var evalTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testParams() Params {
	return Params{
		Profile:           config.RiskProfiles["moderate"],
		CrashFloorUSD:     0.50,
		HysteresisWindow:  5 * time.Minute,
		DriftThresholdPct: 10.0,
		MinTradeUSD:       25.0,
	}
}

func balancedState(safetyUSD, yieldUSD float64) types.TreasuryState {
	total := safetyUSD + yieldUSD
	s := types.TreasuryState{SafetyBalanceUSD: safetyUSD, YieldTotalUSD: yieldUSD}
	if total > 0 {
		s.AllocationSafetyPct = safetyUSD / total * 100
		s.AllocationYieldPct = yieldUSD / total * 100
	}
	return s
}

func mediumAssessment() types.RiskAssessment {
	return types.RiskAssessment{Score: 47, Band: types.RiskBandMedium, TargetSafetyPct: 40, TargetYieldPct: 60}
}

func naviOpportunity(netApy float64) *types.YieldOpportunity {
	return &types.YieldOpportunity{
		ID: "NAVI:sui:USDC", Venue: types.VenueNavi, Chain: types.ChainSui, Asset: "USDC",
		GrossApy: netApy, NetApy: netApy, TvlUSD: 2_000_000, IsNative: true,
	}
}

func TestDecideYieldOpportunity(t *testing.T) {
	state := balancedState(60_000, 40_000) // 60/40 against a 40/60 target
	best := naviOpportunity(12.0)

	got := Decide(evalTime, state, mediumAssessment(), best, "", 1.80, time.Time{}, false, testParams())

	if !got.Actionable || got.Action != ActionDeployYield {
		t.Fatalf("expected a deploy decision, got %+v", got)
	}
	if got.Kind != types.DecisionRebalance || got.Trigger != "yield_opportunity" {
		t.Fatalf("unexpected kind/trigger: %+v", got)
	}
	// Excess over the 40% safety target: 60k - 40k = 20k, under the 70% cap.
	if got.AmountUSD != 20_000 {
		t.Fatalf("expected $20000 sized from the target excess, got %v", got.AmountUSD)
	}
	if got.Venue != types.VenueNavi {
		t.Fatalf("expected the best venue, got %s", got.Venue)
	}
	if !strings.Contains(got.Reasoning, "12.00% net APY") || !strings.Contains(got.Reasoning, "NAVI") {
		t.Fatalf("reasoning must cite the concrete rate and venue: %q", got.Reasoning)
	}
}

func TestDecideYieldBlockedByHysteresis(t *testing.T) {
	state := balancedState(60_000, 40_000)
	last := evalTime.Add(-2 * time.Minute) // inside the 5m window

	got := Decide(evalTime, state, mediumAssessment(), naviOpportunity(12.0), "", 1.80, last, true, testParams())

	if got.Action == ActionDeployYield && got.Trigger == "yield_opportunity" {
		t.Fatalf("hysteresis window must block the yield branch: %+v", got)
	}
}

func TestDecideYieldAllowedAfterWindow(t *testing.T) {
	state := balancedState(60_000, 40_000)
	last := evalTime.Add(-6 * time.Minute)

	got := Decide(evalTime, state, mediumAssessment(), naviOpportunity(12.0), "", 1.80, last, true, testParams())
	if got.Trigger != "yield_opportunity" {
		t.Fatalf("expected the yield branch after the window elapsed, got %+v", got)
	}
}

func TestDecideYieldBelowProfileThresholdIgnored(t *testing.T) {
	state := balancedState(50_000, 50_000)
	// 4% is under the moderate 5% floor.
	got := Decide(evalTime, state, mediumAssessment(), naviOpportunity(4.0), "", 1.80, time.Time{}, false, testParams())
	if got.Trigger == "yield_opportunity" {
		t.Fatalf("sub-threshold APY must not trigger a rebalance: %+v", got)
	}
}

func TestDecideYieldRespectsMaxAllocationCap(t *testing.T) {
	// A low-risk 15/85 target would deploy $45k of excess, but the moderate
	// profile caps yield at 70% of the treasury: only $30k fits.
	low := types.RiskAssessment{Score: 9, Band: types.RiskBandLow, TargetSafetyPct: 15, TargetYieldPct: 85}
	state := balancedState(60_000, 40_000)
	got := Decide(evalTime, state, low, naviOpportunity(12.0), "", 1.80, time.Time{}, false, testParams())
	if got.Trigger != "yield_opportunity" {
		t.Fatalf("expected the yield branch, got %+v", got)
	}
	if got.AmountUSD != 30_000 {
		t.Fatalf("expected the allocation cap to size the trade at $30000, got %v", got.AmountUSD)
	}
}

func TestDecideDustFallsThroughToHold(t *testing.T) {
	// Excess over target is $10, below the $25 minimum trade.
	state := balancedState(40_010, 59_990)
	got := Decide(evalTime, state, mediumAssessment(), naviOpportunity(12.0), "", 1.80, time.Time{}, false, testParams())
	if got.Actionable {
		t.Fatalf("dust-sized trades must not execute: %+v", got)
	}
	if got.Action != ActionHold || got.Trigger != "no_action" {
		t.Fatalf("expected hold, got %+v", got)
	}
}

func TestDecideCrashFloorBypassesHysteresis(t *testing.T) {
	state := balancedState(30_000, 70_000)
	last := evalTime.Add(-time.Minute) // would block the yield branch

	got := Decide(evalTime, state, mediumAssessment(), naviOpportunity(12.0), "", 0.42, last, true, testParams())

	if !got.Actionable || got.Action != ActionMoveToSafety {
		t.Fatalf("crash floor must force a safety move, got %+v", got)
	}
	if got.Kind != types.DecisionAutoSafety || got.Trigger != "crash_floor" {
		t.Fatalf("unexpected kind/trigger: %+v", got)
	}
	if got.AmountUSD != 35_000 {
		t.Fatalf("expected half the yield balance, got %v", got.AmountUSD)
	}
	if got.Venue != types.VenueVault {
		t.Fatalf("safety moves target the vault, got %s", got.Venue)
	}
	if !strings.Contains(got.Reasoning, "$0.4200") || !strings.Contains(got.Reasoning, "crash floor") {
		t.Fatalf("reasoning must cite the spot price: %q", got.Reasoning)
	}
}

func TestDecideCrashFloorNeedsDeployedFunds(t *testing.T) {
	state := balancedState(100_000, 0)
	got := Decide(evalTime, state, mediumAssessment(), nil, "no opportunities", 0.42, time.Time{}, false, testParams())
	if got.Trigger == "crash_floor" {
		t.Fatalf("nothing to protect with zero yield balance: %+v", got)
	}
}

func TestDecideCrashFloorIgnoresUnavailablePrice(t *testing.T) {
	state := balancedState(30_000, 70_000)
	got := Decide(evalTime, state, mediumAssessment(), nil, "", -1, time.Time{}, false, testParams())
	if got.Trigger == "crash_floor" {
		t.Fatalf("sentinel price must not read as a crash: %+v", got)
	}
}

func TestDecideDriftSafetyHeavyDeploys(t *testing.T) {
	// 55% safety against a 40% target: 15 points of drift, over the 10
	// threshold. Best APY under the profile floor keeps branch 2 quiet.
	state := balancedState(55_000, 45_000)
	got := Decide(evalTime, state, mediumAssessment(), naviOpportunity(4.0), "", 1.80, time.Time{}, false, testParams())

	if got.Trigger != "allocation_drift" || got.Action != ActionDeployYield {
		t.Fatalf("expected a drift deploy, got %+v", got)
	}
	if got.AmountUSD != 15_000 {
		t.Fatalf("expected the full drift amount $15000, got %v", got.AmountUSD)
	}
}

func TestDecideDriftYieldHeavyWithdraws(t *testing.T) {
	// 25% safety against a 40% target.
	state := balancedState(25_000, 75_000)
	got := Decide(evalTime, state, mediumAssessment(), nil, "filtered out", 1.80, time.Time{}, false, testParams())

	if got.Trigger != "allocation_drift" || got.Action != ActionMoveToSafety {
		t.Fatalf("expected a drift withdrawal, got %+v", got)
	}
	if got.AmountUSD != 15_000 {
		t.Fatalf("expected $15000 pulled back, got %v", got.AmountUSD)
	}
	if got.Venue != types.VenueVault {
		t.Fatalf("withdrawals go to the vault, got %s", got.Venue)
	}
}

func TestDecideDriftInsideThresholdHolds(t *testing.T) {
	// 45% safety against a 40% target: 5 points, inside the threshold.
	state := balancedState(45_000, 55_000)
	got := Decide(evalTime, state, mediumAssessment(), nil, "", 1.80, time.Time{}, false, testParams())

	if got.Action != ActionHold {
		t.Fatalf("expected hold inside the drift threshold, got %+v", got)
	}
	if got.Actionable {
		t.Fatal("hold decisions must not be actionable")
	}
	if !strings.Contains(got.Reasoning, "allocations within target") {
		t.Fatalf("hold reasoning must report the balances: %q", got.Reasoning)
	}
}

func TestDecideHoldCarriesFilterReason(t *testing.T) {
	state := balancedState(45_000, 55_000)
	got := Decide(evalTime, state, mediumAssessment(), nil, "2 opportunities scanned, none passed", 1.80, time.Time{}, false, testParams())
	if !strings.Contains(got.Reasoning, "none passed") {
		t.Fatalf("hold reasoning should explain why no opportunity qualified: %q", got.Reasoning)
	}
}

func TestDecideEmptyTreasuryHolds(t *testing.T) {
	got := Decide(evalTime, types.TreasuryState{}, mediumAssessment(), nil, "", 1.80, time.Time{}, false, testParams())
	if got.Actionable || got.Action != ActionHold {
		t.Fatalf("an empty treasury has nothing to do, got %+v", got)
	}
}
