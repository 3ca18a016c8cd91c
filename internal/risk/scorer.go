/*

RiskScorer: turns price-trend, funding-rate, and yield-spread signals into a
0-100 composite risk score and a target safety/yield allocation split.

    risk = 0.4*priceDrop + 0.3*funding + 0.3*yield

Each component is independently clamped to [0,100]. Only downside price moves
count; negative funding (bearish positioning) raises risk; scarce yield
raises risk. All inputs are taken through the signal cache so a single
assessment sees one consistent snapshot.

*/

package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/aggregator"
	"github.com/suivoice/atm/internal/config"
	"github.com/suivoice/atm/internal/signals"
	"github.com/suivoice/atm/internal/types"
)

// Component weights.
const (
	priceWeight   = 0.4
	fundingWeight = 0.3
	yieldWeight   = 0.3

	// Band boundaries on the composite score.
	highBandFloor   = 65.0
	mediumBandFloor = 35.0

	// Audit-trail trigger thresholds. These never change the score.
	dropTriggerPct    = 5.0
	fundingTriggerPct = -10.0
	yieldTriggerApy   = 2.0

	changeWindow = 24 * time.Hour
)

// Scorer computes risk assessments. It owns the bounded price history.
type Scorer struct {
	cache   *signals.Cache
	agg     *aggregator.Aggregator
	history *History
	logger  zerolog.Logger
	now     func() time.Time
}

// New constructs a scorer with a price history of historyLen points.
func New(cache *signals.Cache, agg *aggregator.Aggregator, historyLen int, logger zerolog.Logger) *Scorer {
	return &Scorer{
		cache:   cache,
		agg:     agg,
		history: NewHistory(historyLen),
		logger:  logger.With().Str("component", "risk_scorer").Logger(),
		now:     time.Now,
	}
}

// History exposes the rolling price buffer for the scheduler's safety and
// recovery trigger checks.
func (s *Scorer) History() *History {
	return s.history
}

// Assess appends the current spot price to the history and computes the
// composite score, band, target split, and audit triggers.
func (s *Scorer) Assess(ctx context.Context, profile types.RiskProfile) types.RiskAssessment {
	price := s.cache.SpotPrice(ctx, config.HomeAsset)
	s.history.Append(price, s.now().UTC())

	pctChange := s.history.ChangePct(changeWindow)
	priceDrop := clamp(max(0, -pctChange) * 5)

	var fundingSum float64
	for _, market := range config.TrackedMarkets {
		fundingSum += s.cache.Funding(ctx, market)
	}
	avgFunding := signals.FundingNeutral
	if len(config.TrackedMarkets) > 0 {
		avgFunding = fundingSum / float64(len(config.TrackedMarkets))
	}
	funding := clamp(-avgFunding*2 + 50)

	best, _ := s.agg.FindBest(ctx, profile)
	bestNetApy := 0.0
	if best != nil {
		bestNetApy = best.NetApy
	}
	yield := clamp((5 - bestNetApy) * 20)

	score := priceWeight*priceDrop + fundingWeight*funding + yieldWeight*yield

	assessment := types.RiskAssessment{
		Score:              score,
		PriceDropComponent: priceDrop,
		FundingComponent:   funding,
		YieldComponent:     yield,
	}
	assessment.Band, assessment.TargetSafetyPct, assessment.TargetYieldPct = band(score)
	assessment.Triggers = s.triggers(pctChange, avgFunding, bestNetApy, best)

	s.logger.Debug().
		Float64("score", score).
		Str("band", string(assessment.Band)).
		Float64("pct_change_24h", pctChange).
		Float64("avg_funding", avgFunding).
		Float64("best_net_apy", bestNetApy).
		Msg("Risk assessment computed")

	return assessment
}

func (s *Scorer) triggers(pctChange, avgFunding, bestNetApy float64, best *types.YieldOpportunity) []string {
	var out []string
	if pctChange <= -dropTriggerPct {
		out = append(out, fmt.Sprintf("%s down %.1f%% over 24h", config.HomeAsset, -pctChange))
	}
	if avgFunding <= fundingTriggerPct {
		out = append(out, fmt.Sprintf("funding negative at %.1f%% annualized", avgFunding))
	}
	if best == nil {
		out = append(out, "no deployable yield opportunity")
	} else if bestNetApy < yieldTriggerApy {
		out = append(out, fmt.Sprintf("best net yield only %.2f%% (%s)", bestNetApy, best.Venue))
	}
	return out
}

// band maps the composite score to its band and target safety/yield split.
func band(score float64) (types.RiskBand, float64, float64) {
	switch {
	case score >= highBandFloor:
		return types.RiskBandHigh, 70, 30
	case score >= mediumBandFloor:
		return types.RiskBandMedium, 40, 60
	default:
		return types.RiskBandLow, 15, 85
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
