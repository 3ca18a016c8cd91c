package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/aggregator"
	"github.com/suivoice/atm/internal/config"
	"github.com/suivoice/atm/internal/ledger"
	"github.com/suivoice/atm/internal/risk"
	"github.com/suivoice/atm/internal/router"
	"github.com/suivoice/atm/internal/signals"
	"github.com/suivoice/atm/internal/types"
	"github.com/suivoice/atm/internal/venues"
)

type stubPrice float64

func (s stubPrice) SpotPrice(ctx context.Context, asset string) (float64, error) {
	return float64(s), nil
}

type stubPools []types.PoolYield

func (s stubPools) PoolYields(ctx context.Context) ([]types.PoolYield, error) { return s, nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "atm", Network: "testnet", OpeningBalanceUSD: 100_000},
		Scheduler: config.SchedulerConfig{
			Interval:            time.Minute,
			HysteresisIntervals: 5,
		},
		Risk: config.RiskConfig{
			Level:             "moderate",
			CrashFloorUSD:     0.50,
			SafetyDropPct:     8.0,
			RecoveryPct:       5.0,
			MinDeployApy:      4.0,
			DriftThresholdPct: 10.0,
			MinTradeUSD:       25.0,
			HistoryLength:     288,
		},
		Ledger: config.LedgerConfig{Capacity: 50},
	}
}

func newTestExecutor(t *testing.T, sources signals.Sources) (*Executor, *ledger.Ledger) {
	t.Helper()
	cfg := testConfig()
	cache := signals.New(sources, time.Second, zerolog.Nop())
	agg := aggregator.New(cache, zerolog.Nop())
	scorer := risk.New(cache, agg, cfg.Risk.HistoryLength, zerolog.Nop())
	rt := router.New(venues.NewRegistry(cfg.App.Network, zerolog.Nop()), zerolog.Nop())
	book := ledger.New(cfg.Ledger.Capacity, cfg.App.OpeningBalanceUSD, zerolog.Nop())
	return New(cfg, agg, scorer, rt, book, nil, zerolog.Nop()), book
}

func TestExecuteUnknownCommand(t *testing.T) {
	e, _ := newTestExecutor(t, signals.Sources{})
	if _, err := e.Execute(context.Background(), Command{Kind: "frobnicate"}); err == nil {
		t.Fatal("expected an error for an unknown command kind")
	}
}

func TestExecuteSafetyDepositNoYield(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{})
	_, err := e.Execute(context.Background(), Command{Kind: CmdSafetyDeposit, AmountUSD: 1_000})
	if err == nil {
		t.Fatal("expected an error with nothing deployed")
	}
	// The failed attempt still lands in the audit trail.
	decisions := book.Decisions()
	if len(decisions) != 1 || decisions[0].Succeeded {
		t.Fatalf("expected one failed decision, got %+v", decisions)
	}
	if decisions[0].Kind != types.DecisionSafetyDeposit {
		t.Fatalf("unexpected decision kind %s", decisions[0].Kind)
	}
}

func TestExecuteSafetyDepositMovesFunds(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{})
	book.ApplyDeposit(types.VenueNavi, types.ChainSui, "USDC", 40_000, 6.0, time.Now())

	msg, err := e.Execute(context.Background(), Command{Kind: CmdSafetyDeposit, AmountUSD: 10_000})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "$10000.00") {
		t.Fatalf("unexpected result message %q", msg)
	}
	if got := book.SafetyBalanceUSD(); got != 70_000 {
		t.Fatalf("expected safety at 70000, got %v", got)
	}
	d := book.Decisions()[0]
	if !d.Succeeded || d.Trigger != "manual" || d.Venue != types.VenueVault {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.TxRef == "" {
		t.Fatal("expected a transaction reference on the decision")
	}
}

func TestExecuteSafetyDepositClampsToYieldBalance(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{})
	book.ApplyDeposit(types.VenueNavi, types.ChainSui, "USDC", 5_000, 6.0, time.Now())

	if _, err := e.Execute(context.Background(), Command{Kind: CmdSafetyDeposit, AmountUSD: 50_000}); err != nil {
		t.Fatal(err)
	}
	if got := book.SafetyBalanceUSD(); got != 100_000 {
		t.Fatalf("expected the full balance back, got %v", got)
	}
}

func TestExecuteYieldWithdraw(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{})
	book.ApplyDeposit(types.VenueNavi, types.ChainSui, "USDC", 30_000, 6.0, time.Now())

	msg, err := e.Execute(context.Background(), Command{Kind: CmdYieldWithdraw, VenueName: "Navi Protocol", AmountUSD: 10_000})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "NAVI") {
		t.Fatalf("unexpected result message %q", msg)
	}
	if got := book.SafetyBalanceUSD(); got != 80_000 {
		t.Fatalf("expected safety at 80000, got %v", got)
	}
	d := book.Decisions()[0]
	if d.Kind != types.DecisionYieldWithdraw || !d.Succeeded || d.AmountUSD != 10_000 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestExecuteYieldWithdrawRejectsVault(t *testing.T) {
	e, _ := newTestExecutor(t, signals.Sources{})
	_, err := e.Execute(context.Background(), Command{Kind: CmdYieldWithdraw, VenueName: "safety vault", AmountUSD: 100})
	if err == nil {
		t.Fatal("the vault is not a yield venue")
	}
}

func TestExecuteYieldWithdrawUnknownVenue(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{})
	_, err := e.Execute(context.Background(), Command{Kind: CmdYieldWithdraw, VenueName: "galactic bank", AmountUSD: 100})
	if err == nil {
		t.Fatal("expected a resolution error")
	}
	if book.Len() != 0 {
		t.Fatal("a name that never resolved should not reach the ledger")
	}
}

func TestExecuteYieldWithdrawNoPosition(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{})
	_, err := e.Execute(context.Background(), Command{Kind: CmdYieldWithdraw, VenueName: "navi", AmountUSD: 100})
	if err == nil {
		t.Fatal("expected an error with no open position")
	}
	decisions := book.Decisions()
	if len(decisions) != 1 || decisions[0].Succeeded {
		t.Fatalf("expected a failed decision in the trail, got %+v", decisions)
	}
}

func TestExecuteIdempotentReplaySkipped(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{})
	book.ApplyDeposit(types.VenueNavi, types.ChainSui, "USDC", 40_000, 6.0, time.Now())

	cmd := Command{Kind: CmdSafetyDeposit, AmountUSD: 10_000, IdempotencyKey: "intent-1"}
	if _, err := e.Execute(context.Background(), cmd); err != nil {
		t.Fatal(err)
	}
	before := book.SafetyBalanceUSD()

	msg, err := e.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "skipped") {
		t.Fatalf("expected the replay skipped, got %q", msg)
	}
	if book.SafetyBalanceUSD() != before {
		t.Fatal("a skipped replay must not move funds")
	}
	if book.Len() != 1 {
		t.Fatalf("a skipped replay must not add decisions, got %d", book.Len())
	}
}

func TestExecuteRiskAssessmentRecordsComponents(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{Price: stubPrice(1.80)})
	msg, err := e.Execute(context.Background(), Command{Kind: CmdRiskAssessment})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "risk score") {
		t.Fatalf("unexpected result message %q", msg)
	}
	d := book.Decisions()[0]
	if d.Kind != types.DecisionRiskAssessment || !d.Succeeded {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if !strings.Contains(d.Reasoning, "components:") {
		t.Fatalf("reasoning must break out the components: %q", d.Reasoning)
	}
}

func TestExecuteTreasuryStateIsJSON(t *testing.T) {
	e, _ := newTestExecutor(t, signals.Sources{})
	msg, err := e.Execute(context.Background(), Command{Kind: CmdTreasuryState})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "safety_balance_usd") {
		t.Fatalf("expected a JSON snapshot, got %q", msg)
	}
}

func TestRunPolicyWithActsOnSuppliedAssessment(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{})
	book.ApplyDeposit(types.VenueNavi, types.ChainSui, "USDC", 90_000, 6.0, time.Now())

	// Safety sits at 10% against a 40% target: the drift branch should pull
	// the 30% shortfall back without taking a fresh signal sample.
	assessment := types.RiskAssessment{
		Score: 45, Band: types.RiskBandMedium,
		TargetSafetyPct: 40, TargetYieldPct: 60,
	}
	d, applied, err := e.RunPolicyWith(context.Background(), "auto", assessment)
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatalf("expected the drift branch to act, got %+v", d)
	}
	if d.Trigger != "auto/allocation_drift" || d.AmountUSD != 30_000 {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.RiskScore != 45 {
		t.Fatalf("expected the supplied assessment's score on the decision, got %v", d.RiskScore)
	}
	if got := e.scorer.History().Len(); got != 0 {
		t.Fatalf("expected no price sample taken, got %d", got)
	}
}

func TestRunPolicyHoldRecordsNothing(t *testing.T) {
	// No feeds: no best opportunity, so even heavy safety drift holds.
	e, book := newTestExecutor(t, signals.Sources{Price: stubPrice(1.80)})

	d, applied, err := e.RunPolicy(context.Background(), "auto")
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Fatalf("expected a hold, got %+v", d)
	}
	if d.Reasoning == "" {
		t.Fatal("a hold still explains itself to the caller")
	}
	if book.Len() != 0 {
		t.Fatalf("holds must not reach the ledger, got %d decisions", book.Len())
	}
}

func TestRunPolicyDeploysIntoBestVenue(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{
		Price: stubPrice(1.80),
		Pools: stubPools{{Venue: types.VenueNavi, Chain: types.ChainSui, Asset: "USDC", Apy: 12.0, TvlUSD: 2_000_000}},
	})

	d, applied, err := e.RunPolicy(context.Background(), "auto")
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatalf("expected a deployment, got %+v", d)
	}
	if d.Kind != types.DecisionRebalance || d.Venue != types.VenueNavi {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.Trigger != "auto/yield_opportunity" {
		t.Fatalf("the trigger must carry its source, got %q", d.Trigger)
	}
	// Fresh treasury at a LOW target: deployment is capped by the moderate
	// profile's 70% yield allocation.
	if d.AmountUSD != 70_000 {
		t.Fatalf("expected $70000 deployed, got %v", d.AmountUSD)
	}
	positions := book.Positions()
	if len(positions) != 1 || positions[0].Venue != types.VenueNavi || positions[0].Apy != 12.0 {
		t.Fatalf("unexpected position book: %+v", positions)
	}
}

func TestAutoMoveToSafety(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{})
	book.ApplyDeposit(types.VenueNavi, types.ChainSui, "USDC", 40_000, 6.0, time.Now())

	d, err := e.AutoMoveToSafety(context.Background(), types.DecisionAutoSafety, "price_drop",
		"spot fell 9.0% below the 24h high", 40_000, 62)
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != types.DecisionAutoSafety || d.Trigger != "auto/price_drop" {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if book.SafetyBalanceUSD() != 100_000 {
		t.Fatalf("expected everything pulled back, got %v", book.SafetyBalanceUSD())
	}
	if _, ok := book.LastOfKind(types.DecisionAutoSafety); !ok {
		t.Fatal("expected the auto_safety marker for recovery gating")
	}
}

func TestAutoDeploy(t *testing.T) {
	e, book := newTestExecutor(t, signals.Sources{})
	opp := types.YieldOpportunity{
		Venue: types.VenueScallop, Chain: types.ChainSui, Asset: "USDC", GrossApy: 6.0, NetApy: 6.0, TvlUSD: 3_000_000,
	}
	d, err := e.AutoDeploy(context.Background(), types.DecisionAutoRedeploy, "price_recovery",
		"spot recovered 6.0% off the 24h low", 20_000, opp, 30)
	if err != nil {
		t.Fatal(err)
	}
	if d.Kind != types.DecisionAutoRedeploy || d.Trigger != "auto/price_recovery" {
		t.Fatalf("unexpected decision: %+v", d)
	}
	positions := book.Positions()
	if len(positions) != 1 || positions[0].Venue != types.VenueScallop || positions[0].PrincipalUSD != 20_000 {
		t.Fatalf("unexpected position book: %+v", positions)
	}
}
