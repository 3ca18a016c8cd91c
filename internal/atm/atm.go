package atm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/aggregator"
	"github.com/suivoice/atm/internal/config"
	"github.com/suivoice/atm/internal/executor"
	"github.com/suivoice/atm/internal/ledger"
	"github.com/suivoice/atm/internal/logger"
	"github.com/suivoice/atm/internal/queue"
	"github.com/suivoice/atm/internal/risk"
	"github.com/suivoice/atm/internal/types"
)

// signalWindow is the rolling window the safety and recovery triggers
// evaluate price extremes over.
const signalWindow = 24 * time.Hour

// ATM is the autonomous treasury manager: one scheduler owning one timer,
// running risk-driven optimization cycles against the shared executor.
type ATM struct {
	logger zerolog.Logger
	cfg    *config.Config
	scorer *risk.Scorer
	agg    *aggregator.Aggregator
	exec   *executor.Executor
	book   *ledger.Ledger
	queue  *queue.Queue // nil when running without persistence

	mu      sync.Mutex // guards running/cancel
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// busy makes cycles non-reentrant: a tick that fires while a cycle is
	// still executing is dropped, not queued.
	busy       atomic.Bool
	cycleCount atomic.Int64

	now func() time.Time
}

// Config holds the dependencies for creating a new ATM instance.
type Config struct {
	AppConfig  *config.Config
	Scorer     *risk.Scorer
	Aggregator *aggregator.Aggregator
	Executor   *executor.Executor
	Ledger     *ledger.Ledger
	Queue      *queue.Queue
}

// New creates an ATM instance with dependency injection.
func New(cfg Config) (*ATM, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("ATM configuration validation failed: %w", err)
	}
	return &ATM{
		logger: logger.GetForComponent("atm_core"),
		cfg:    cfg.AppConfig,
		scorer: cfg.Scorer,
		agg:    cfg.Aggregator,
		exec:   cfg.Executor,
		book:   cfg.Ledger,
		queue:  cfg.Queue,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.AppConfig == nil {
		return fmt.Errorf("app config cannot be nil")
	}
	if cfg.Scorer == nil {
		return fmt.Errorf("risk scorer cannot be nil")
	}
	if cfg.Aggregator == nil {
		return fmt.Errorf("yield aggregator cannot be nil")
	}
	if cfg.Executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}
	if cfg.Ledger == nil {
		return fmt.Errorf("decision ledger cannot be nil")
	}
	return nil
}

// Start transitions Stopped -> Running: starts the repeating timer and runs
// the first cycle immediately. Starting a running scheduler is an error.
func (a *ATM) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	a.running = true

	go a.runLoop(ctx)
	a.logger.Info().Dur("interval", a.cfg.Scheduler.Interval).Msg("Scheduler started")
	return nil
}

// Stop cancels the timer. Only future ticks are prevented; an in-flight
// cycle runs to completion.
func (a *ATM) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()

	cancel()
	<-done
	a.logger.Info().Msg("Scheduler stopped")
}

// Running reports the scheduler state.
func (a *ATM) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// CycleCount returns how many cycles have been initiated.
func (a *ATM) CycleCount() int64 {
	return a.cycleCount.Load()
}

func (a *ATM) runLoop(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.cfg.Scheduler.Interval)
	defer ticker.Stop()

	// First cycle runs immediately.
	a.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("Scheduler loop exiting")
			return
		case <-ticker.C:
			a.RunCycle(ctx)
		}
	}
}

// RunCycle executes one optimization cycle. The ladder is strict: the risk
// assessment always runs, then the first firing branch wins and the cycle
// ends. Every cycle records at most one decision.
func (a *ATM) RunCycle(ctx context.Context) {
	if !a.busy.CompareAndSwap(false, true) {
		a.logger.Warn().Msg("Previous cycle still executing, tick dropped")
		return
	}
	defer a.busy.Store(false)

	cycleStart := a.now()
	cycle := a.cycleCount.Add(1)
	cycleLogger := a.logger.With().Str("cycle_id", uuid.NewString()).Int64("cycle", cycle).Logger()
	cycleLogger.Info().Msg("--- Starting optimization cycle ---")

	profile := a.cfg.Profile()
	assessment := a.scorer.Assess(ctx, profile)

	hist := a.scorer.History()
	latest, ok := hist.Latest()
	if !ok {
		cycleLogger.Warn().Msg("Cycle ended: no price signal available")
		return
	}

	cycleLogger.Info().
		Float64("spot", latest.Price).
		Float64("risk_score", assessment.Score).
		Str("band", string(assessment.Band)).
		Msg("Cycle signals assessed")

	if a.trySafetyTrigger(ctx, cycleLogger, latest.Price, assessment) {
		a.logCycleEnd(cycleLogger, cycleStart)
		return
	}
	if a.tryRecoveryTrigger(ctx, cycleLogger, latest.Price, assessment) {
		a.logCycleEnd(cycleLogger, cycleStart)
		return
	}

	d, applied, err := a.exec.RunPolicyWith(ctx, "auto", assessment)
	switch {
	case err != nil:
		cycleLogger.Error().Err(err).Msg("Policy execution failed")
	case applied:
		cycleLogger.Info().Str("decision_id", d.ID).Str("kind", string(d.Kind)).
			Float64("amount_usd", d.AmountUSD).Msg("Policy decision applied")
	default:
		cycleLogger.Info().Str("reason", d.Reasoning).Msg("No action warranted")
	}
	a.logCycleEnd(cycleLogger, cycleStart)
}

// trySafetyTrigger fires when spot has fallen hard off the rolling window
// high. It moves the entire yield balance into the safety vault.
func (a *ATM) trySafetyTrigger(ctx context.Context, cycleLogger zerolog.Logger,
	spot float64, assessment types.RiskAssessment) bool {

	high := a.scorer.History().WindowHigh(signalWindow)
	if high <= 0 {
		return false
	}
	threshold := high * (1 - a.cfg.Risk.SafetyDropPct/100)
	if spot > threshold {
		return false
	}

	snap := a.book.Snapshot()
	if snap.YieldTotalUSD < a.cfg.Risk.MinTradeUSD {
		cycleLogger.Info().Float64("yield_usd", snap.YieldTotalUSD).
			Msg("Safety trigger fired but yield balance below minimum trade size")
		return false
	}

	reasoning := fmt.Sprintf("spot $%.4f fell %.1f%%+ off the 24h high $%.4f (trigger at $%.4f); moving the full yield balance of $%.2f to the safety vault",
		spot, a.cfg.Risk.SafetyDropPct, high, threshold, snap.YieldTotalUSD)

	_, err := a.exec.AutoMoveToSafety(ctx, types.DecisionAutoSafety, "price_drop", reasoning,
		snap.YieldTotalUSD, assessment.Score)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Safety move failed")
		return true // the branch fired and recorded a failed decision
	}
	cycleLogger.Info().Float64("spot", spot).Float64("window_high", high).
		Float64("moved_usd", snap.YieldTotalUSD).Msg("Safety trigger executed")
	return true
}

// tryRecoveryTrigger redeploys part of the safety balance after a defensive
// move, once spot has recovered off the window low and a good enough venue
// exists. It only fires while a safety move is outstanding, meaning no
// redeploy has happened since.
func (a *ATM) tryRecoveryTrigger(ctx context.Context, cycleLogger zerolog.Logger,
	spot float64, assessment types.RiskAssessment) bool {

	lastSafety, haveSafety := a.book.LastOfKind(types.DecisionAutoSafety)
	if !haveSafety {
		return false
	}
	if lastRedeploy, ok := a.book.LastOfKind(types.DecisionAutoRedeploy); ok && lastRedeploy.After(lastSafety) {
		return false
	}

	low := a.scorer.History().WindowLow(signalWindow)
	if low <= 0 {
		return false
	}
	threshold := low * (1 + a.cfg.Risk.RecoveryPct/100)
	if spot < threshold {
		return false
	}

	best, _ := a.agg.FindBest(ctx, a.cfg.Profile())
	if best == nil || best.NetApy < a.cfg.Risk.MinDeployApy {
		return false
	}

	snap := a.book.Snapshot()
	shortfall := snap.TotalUSD()*assessment.TargetYieldPct/100 - snap.YieldTotalUSD
	amount := shortfall / 2
	if amount < a.cfg.Risk.MinTradeUSD {
		return false
	}

	reasoning := fmt.Sprintf("spot $%.4f recovered %.1f%%+ above the 24h low $%.4f and %s offers %.2f%% net APY (floor %.2f%%); redeploying $%.2f of the $%.2f yield shortfall",
		spot, a.cfg.Risk.RecoveryPct, low, best.Venue, best.NetApy, a.cfg.Risk.MinDeployApy, amount, shortfall)

	_, err := a.exec.AutoDeploy(ctx, types.DecisionAutoRedeploy, "price_recovery", reasoning,
		amount, *best, assessment.Score)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Recovery redeploy failed")
		return true
	}
	cycleLogger.Info().Float64("spot", spot).Float64("window_low", low).
		Float64("redeployed_usd", amount).Str("venue", string(best.Venue)).Msg("Recovery trigger executed")
	return true
}

// OnConnectivityRestored drains the offline intent queue. Called once per
// connectivity-restore event; overlapping calls are absorbed by the queue's
// own in-flight guard.
func (a *ATM) OnConnectivityRestored(ctx context.Context) []types.IntentResult {
	if a.queue == nil {
		return nil
	}
	results, err := a.queue.Drain(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Intent queue drain failed")
		return nil
	}
	return results
}

func (a *ATM) logCycleEnd(cycleLogger zerolog.Logger, start time.Time) {
	cycleLogger.Info().Str("cycle_duration", a.now().Sub(start).String()).Msg("--- Cycle completed ---")
}
