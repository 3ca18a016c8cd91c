/*

The Executor is the single execution entry point. Voice commands, API calls,
replayed offline intents and scheduler cycles all funnel through it, and all
of them serialize behind one mutex so no two executions can interleave their
reads and writes of the portfolio book.

Failures are recorded as failed decisions in the ledger, then returned; a
failed execution is still part of the audit trail.

*/

package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/aggregator"
	"github.com/suivoice/atm/internal/config"
	"github.com/suivoice/atm/internal/ledger"
	"github.com/suivoice/atm/internal/policy"
	"github.com/suivoice/atm/internal/risk"
	"github.com/suivoice/atm/internal/router"
	"github.com/suivoice/atm/internal/types"
)

// DecisionArchiver persists decisions beyond the bounded in-memory ledger.
// May be nil when running without a database.
type DecisionArchiver interface {
	ArchiveDecision(ctx context.Context, d types.TreasuryDecision) error
}

// Executor dispatches validated commands and applies policy decisions.
type Executor struct {
	mu sync.Mutex

	cfg     *config.Config
	agg     *aggregator.Aggregator
	scorer  *risk.Scorer
	router  *router.Router
	book    *ledger.Ledger
	archive DecisionArchiver

	logger zerolog.Logger
	now    func() time.Time
}

func New(cfg *config.Config, agg *aggregator.Aggregator, scorer *risk.Scorer,
	rt *router.Router, book *ledger.Ledger, archive DecisionArchiver, logger zerolog.Logger) *Executor {
	return &Executor{
		cfg:     cfg,
		agg:     agg,
		scorer:  scorer,
		router:  rt,
		book:    book,
		archive: archive,
		logger:  logger.With().Str("component", "executor").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (e *Executor) policyParams() policy.Params {
	return policy.Params{
		Profile:           e.cfg.Profile(),
		CrashFloorUSD:     e.cfg.Risk.CrashFloorUSD,
		HysteresisWindow:  time.Duration(e.cfg.Scheduler.HysteresisIntervals) * e.cfg.Scheduler.Interval,
		DriftThresholdPct: e.cfg.Risk.DriftThresholdPct,
		MinTradeUSD:       e.cfg.Risk.MinTradeUSD,
	}
}

// Execute dispatches one validated command and returns a human-readable
// result for the voice layer. Replayed intents carrying an idempotency key
// that already completed are skipped, not re-run.
func (e *Executor) Execute(ctx context.Context, cmd Command) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cmd.IdempotencyKey != "" && e.book.HasCompletedKey(cmd.IdempotencyKey) {
		e.logger.Info().Str("idempotency_key", cmd.IdempotencyKey).Str("kind", string(cmd.Kind)).
			Msg("Skipping replayed command, idempotency key already completed")
		return fmt.Sprintf("%s already executed, skipped (key %s)", cmd.Kind, cmd.IdempotencyKey), nil
	}

	switch cmd.Kind {
	case CmdSafetyDeposit:
		return e.safetyDeposit(ctx, cmd)
	case CmdYieldWithdraw:
		return e.yieldWithdraw(ctx, cmd)
	case CmdRebalance:
		return e.manualRebalance(ctx, cmd)
	case CmdRiskAssessment:
		return e.riskAssessment(ctx, cmd)
	case CmdTreasuryState:
		return e.treasuryState()
	default:
		return "", fmt.Errorf("unknown command %q", cmd.Kind)
	}
}

// record stamps, appends and archives a decision.
func (e *Executor) record(ctx context.Context, d types.TreasuryDecision) types.TreasuryDecision {
	d.ID = uuid.NewString()
	d.Timestamp = e.now()
	e.book.Record(d)
	if e.archive != nil {
		if err := e.archive.ArchiveDecision(ctx, d); err != nil {
			e.logger.Error().Err(err).Str("decision_id", d.ID).Msg("Failed to archive decision")
		}
	}
	return d
}

func (e *Executor) safetyDeposit(ctx context.Context, cmd Command) (string, error) {
	snap := e.book.Snapshot()
	if snap.YieldTotalUSD <= 0 {
		e.record(ctx, types.TreasuryDecision{
			Kind: types.DecisionSafetyDeposit, Trigger: "manual", Chain: types.ChainSui, Venue: types.VenueVault,
			Action:    fmt.Sprintf("requested safety deposit of $%.2f", cmd.AmountUSD),
			Reasoning: "no yield positions to draw from",
			RiskScore: snap.RiskScore, IdempotencyKey: cmd.IdempotencyKey,
		})
		return "", fmt.Errorf("no yield balance available for a safety deposit")
	}

	amount := cmd.AmountUSD
	if amount > snap.YieldTotalUSD {
		amount = snap.YieldTotalUSD
	}

	plan, err := e.router.BuildDeposit(types.VenueVault, config.HomeAsset, amount)
	if err != nil {
		e.record(ctx, types.TreasuryDecision{
			Kind: types.DecisionSafetyDeposit, Trigger: "manual", Chain: types.ChainSui, Venue: types.VenueVault,
			Action:    fmt.Sprintf("requested safety deposit of $%.2f", cmd.AmountUSD),
			Reasoning: fmt.Sprintf("failed to build vault deposit: %v", err),
			RiskScore: snap.RiskScore, AmountUSD: amount, IdempotencyKey: cmd.IdempotencyKey,
		})
		return "", fmt.Errorf("building safety deposit: %w", err)
	}

	moved := e.book.MoveYieldToSafety(amount)
	e.record(ctx, types.TreasuryDecision{
		Kind: types.DecisionSafetyDeposit, Trigger: "manual", Chain: types.ChainSui, Venue: types.VenueVault,
		Action: fmt.Sprintf("moved $%.2f from yield positions to the safety vault", moved),
		Reasoning: fmt.Sprintf("user requested a $%.2f safety deposit; drew $%.2f pro-rata across %d yield positions",
			cmd.AmountUSD, moved, len(snap.Positions)),
		RiskScore: snap.RiskScore, AmountUSD: moved, TxRef: plan.TxRef(),
		Succeeded: true, IdempotencyKey: cmd.IdempotencyKey,
	})
	return fmt.Sprintf("moved $%.2f to the safety vault", moved), nil
}

func (e *Executor) yieldWithdraw(ctx context.Context, cmd Command) (string, error) {
	venue, err := e.router.Resolve(cmd.VenueName)
	if err != nil {
		return "", err
	}
	if venue == types.VenueVault {
		return "", fmt.Errorf("the safety vault is not a yield venue; use safety_deposit to move funds into it")
	}
	chain := config.VenueChains[venue]
	snap := e.book.Snapshot()

	var pos *types.YieldPosition
	for i := range snap.Positions {
		if snap.Positions[i].Venue == venue && snap.Positions[i].Chain == chain {
			pos = &snap.Positions[i]
			break
		}
	}
	if pos == nil {
		e.record(ctx, types.TreasuryDecision{
			Kind: types.DecisionYieldWithdraw, Trigger: "manual", Chain: chain, Venue: venue,
			Action:    fmt.Sprintf("requested withdrawal of $%.2f from %s", cmd.AmountUSD, venue),
			Reasoning: fmt.Sprintf("no open position in %s on %s", venue, chain),
			RiskScore: snap.RiskScore, IdempotencyKey: cmd.IdempotencyKey,
		})
		return "", fmt.Errorf("no position in %s to withdraw from", venue)
	}

	amount := cmd.AmountUSD
	if amount > pos.PrincipalUSD {
		amount = pos.PrincipalUSD
	}

	plan, err := e.router.BuildWithdraw(venue, pos.Asset, amount)
	if err != nil {
		e.record(ctx, types.TreasuryDecision{
			Kind: types.DecisionYieldWithdraw, Trigger: "manual", Chain: chain, Venue: venue,
			Action:    fmt.Sprintf("requested withdrawal of $%.2f from %s", cmd.AmountUSD, venue),
			Reasoning: fmt.Sprintf("failed to build withdrawal: %v", err),
			RiskScore: snap.RiskScore, AmountUSD: amount, IdempotencyKey: cmd.IdempotencyKey,
		})
		return "", fmt.Errorf("building withdrawal from %s: %w", venue, err)
	}

	moved := e.book.ApplyWithdraw(venue, chain, amount)
	e.record(ctx, types.TreasuryDecision{
		Kind: types.DecisionYieldWithdraw, Trigger: "manual", Chain: chain, Venue: venue,
		Action: fmt.Sprintf("withdrew $%.2f from %s on %s back to safety", moved, venue, chain),
		Reasoning: fmt.Sprintf("user requested a $%.2f withdrawal; position held $%.2f",
			cmd.AmountUSD, pos.PrincipalUSD),
		RiskScore: snap.RiskScore, AmountUSD: moved, TxRef: plan.TxRef(),
		Succeeded: true, IdempotencyKey: cmd.IdempotencyKey,
	})
	return fmt.Sprintf("withdrew $%.2f from %s", moved, venue), nil
}

func (e *Executor) manualRebalance(ctx context.Context, cmd Command) (string, error) {
	d, applied, err := e.runPolicyLocked(ctx, "manual", cmd.IdempotencyKey, e.scorer.Assess(ctx, e.cfg.Profile()))
	if err != nil {
		return "", err
	}
	if !applied {
		return "no rebalance warranted: " + d.Reasoning, nil
	}
	return d.Action, nil
}

func (e *Executor) riskAssessment(ctx context.Context, cmd Command) (string, error) {
	profile := e.cfg.Profile()
	a := e.scorer.Assess(ctx, profile)

	reasoning := fmt.Sprintf("components: price drop %.1f, funding %.1f, yield %.1f; target split %.0f/%.0f safety/yield",
		a.PriceDropComponent, a.FundingComponent, a.YieldComponent, a.TargetSafetyPct, a.TargetYieldPct)
	for _, t := range a.Triggers {
		reasoning += "; " + t
	}

	e.record(ctx, types.TreasuryDecision{
		Kind: types.DecisionRiskAssessment, Trigger: "manual", Chain: types.ChainSui,
		Action:    fmt.Sprintf("risk score %.1f (%s)", a.Score, a.Band),
		Reasoning: reasoning,
		RiskScore: a.Score, Succeeded: true, IdempotencyKey: cmd.IdempotencyKey,
	})
	return fmt.Sprintf("risk score %.1f, band %s, target allocation %.0f%% safety / %.0f%% yield",
		a.Score, a.Band, a.TargetSafetyPct, a.TargetYieldPct), nil
}

func (e *Executor) treasuryState() (string, error) {
	snap := e.book.Snapshot()
	b, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encoding treasury state: %w", err)
	}
	return string(b), nil
}

// RunPolicy takes a fresh risk assessment, then evaluates the standard
// rebalance ladder and applies the outcome. Returns the recorded decision
// and whether anything was applied; a hold applies nothing and records
// nothing.
func (e *Executor) RunPolicy(ctx context.Context, source string) (types.TreasuryDecision, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runPolicyLocked(ctx, source, "", e.scorer.Assess(ctx, e.cfg.Profile()))
}

// RunPolicyWith evaluates the ladder against an assessment the caller
// already took, so a scheduler cycle acts on the exact signals it logged
// and the price history sees one append per cycle.
func (e *Executor) RunPolicyWith(ctx context.Context, source string, assessment types.RiskAssessment) (types.TreasuryDecision, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runPolicyLocked(ctx, source, "", assessment)
}

func (e *Executor) runPolicyLocked(ctx context.Context, source, idemKey string,
	assessment types.RiskAssessment) (types.TreasuryDecision, bool, error) {

	profile := e.cfg.Profile()
	best, bestReason := e.agg.FindBest(ctx, profile)
	snap := e.book.Snapshot()

	spot := 0.0
	if pt, ok := e.scorer.History().Latest(); ok {
		spot = pt.Price
	}
	last, haveLast := e.book.LastOfKind(types.DecisionRebalance)

	dec := policy.Decide(e.now(), snap, assessment, best, bestReason, spot, last, haveLast, e.policyParams())
	if !dec.Actionable {
		// A hold records nothing; the reasoning still goes back to the caller.
		return types.TreasuryDecision{Reasoning: dec.Reasoning}, false, nil
	}
	d, err := e.applyLocked(ctx, dec, assessment.Score, source, idemKey, best)
	return d, err == nil, err
}

// applyLocked turns a policy decision into ledger mutations plus one record.
func (e *Executor) applyLocked(ctx context.Context, dec policy.Decision, riskScore float64,
	source, idemKey string, best *types.YieldOpportunity) (types.TreasuryDecision, error) {

	trigger := source + "/" + dec.Trigger

	switch dec.Action {
	case policy.ActionDeployYield:
		asset := config.SettlementAsset
		apy := 0.0
		if best != nil {
			asset = best.Asset
			apy = best.NetApy
		}
		plan, err := e.router.BuildDeposit(dec.Venue, asset, dec.AmountUSD)
		if err != nil {
			e.record(ctx, types.TreasuryDecision{
				Kind: dec.Kind, Trigger: trigger, Chain: dec.Chain, Venue: dec.Venue,
				Action:    fmt.Sprintf("deploy $%.2f into %s", dec.AmountUSD, dec.Venue),
				Reasoning: fmt.Sprintf("%s; failed to build deposit: %v", dec.Reasoning, err),
				RiskScore: riskScore, AmountUSD: dec.AmountUSD, IdempotencyKey: idemKey,
			})
			return types.TreasuryDecision{}, fmt.Errorf("building deposit into %s: %w", dec.Venue, err)
		}
		e.book.ApplyDeposit(dec.Venue, dec.Chain, asset, dec.AmountUSD, apy, e.now())
		d := e.record(ctx, types.TreasuryDecision{
			Kind: dec.Kind, Trigger: trigger, Chain: dec.Chain, Venue: dec.Venue,
			Action:    fmt.Sprintf("deployed $%.2f into %s on %s", dec.AmountUSD, dec.Venue, dec.Chain),
			Reasoning: dec.Reasoning,
			RiskScore: riskScore, AmountUSD: dec.AmountUSD, TxRef: plan.TxRef(),
			Succeeded: true, IdempotencyKey: idemKey,
		})
		return d, nil

	case policy.ActionMoveToSafety:
		plan, err := e.router.BuildDeposit(types.VenueVault, config.HomeAsset, dec.AmountUSD)
		if err != nil {
			e.record(ctx, types.TreasuryDecision{
				Kind: dec.Kind, Trigger: trigger, Chain: types.ChainSui, Venue: types.VenueVault,
				Action:    fmt.Sprintf("move $%.2f to the safety vault", dec.AmountUSD),
				Reasoning: fmt.Sprintf("%s; failed to build vault deposit: %v", dec.Reasoning, err),
				RiskScore: riskScore, AmountUSD: dec.AmountUSD, IdempotencyKey: idemKey,
			})
			return types.TreasuryDecision{}, fmt.Errorf("building safety move: %w", err)
		}
		moved := e.book.MoveYieldToSafety(dec.AmountUSD)
		d := e.record(ctx, types.TreasuryDecision{
			Kind: dec.Kind, Trigger: trigger, Chain: types.ChainSui, Venue: types.VenueVault,
			Action:    fmt.Sprintf("moved $%.2f from yield to the safety vault", moved),
			Reasoning: dec.Reasoning,
			RiskScore: riskScore, AmountUSD: moved, TxRef: plan.TxRef(),
			Succeeded: true, IdempotencyKey: idemKey,
		})
		return d, nil

	default:
		return types.TreasuryDecision{}, fmt.Errorf("unapplicable policy action %q", dec.Action)
	}
}

// AutoMoveToSafety executes a scheduler-triggered defensive move. The
// reasoning must already embed the signal values that fired the trigger.
func (e *Executor) AutoMoveToSafety(ctx context.Context, kind types.DecisionKind, trigger, reasoning string,
	amountUSD, riskScore float64) (types.TreasuryDecision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyLocked(ctx, policy.Decision{
		Kind: kind, Action: policy.ActionMoveToSafety, AmountUSD: amountUSD,
		Venue: types.VenueVault, Chain: types.ChainSui,
		Trigger: trigger, Reasoning: reasoning, Actionable: true,
	}, riskScore, "auto", "", nil)
}

// AutoDeploy executes a scheduler-triggered redeploy from safety into a
// scanned opportunity.
func (e *Executor) AutoDeploy(ctx context.Context, kind types.DecisionKind, trigger, reasoning string,
	amountUSD float64, opp types.YieldOpportunity, riskScore float64) (types.TreasuryDecision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyLocked(ctx, policy.Decision{
		Kind: kind, Action: policy.ActionDeployYield, AmountUSD: amountUSD,
		Venue: opp.Venue, Chain: opp.Chain,
		Trigger: trigger, Reasoning: reasoning, Actionable: true,
	}, riskScore, "auto", "", &opp)
}
