/*

YieldAggregator: merges the generic pool list, the fresher native feed, and
funding-carry legs into one opportunity list ranked by net APY after bridge
costs. The aggregator owns no durable state; every scan produces immutable
snapshots that supersede the previous ones.

*/

package aggregator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/config"
	"github.com/suivoice/atm/internal/signals"
	"github.com/suivoice/atm/internal/types"
)

// Aggregator produces the ranked opportunity list consumed by the risk
// scorer and the rebalance policy.
type Aggregator struct {
	cache  *signals.Cache
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs an aggregator over the signal cache.
func New(cache *signals.Cache, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		cache:  cache,
		logger: logger.With().Str("component", "yield_aggregator").Logger(),
		now:    time.Now,
	}
}

// Scan returns every eligible opportunity sorted descending by net APY.
func (a *Aggregator) Scan(ctx context.Context) []types.YieldOpportunity {
	observed := a.now().UTC()

	// (a) generic pool list, filtered to the allow-list.
	opportunities := make([]types.YieldOpportunity, 0, 8)
	index := make(map[string]int) // venue|asset -> position in opportunities
	for _, pool := range a.cache.PoolYields(ctx) {
		if pool.Apy <= 0 || pool.TvlUSD <= config.MinPoolTvlUSD {
			continue
		}
		if !config.ComboAllowed(pool.Venue, pool.Chain, pool.Asset) {
			continue
		}
		opp := types.YieldOpportunity{
			ID:         opportunityID(pool.Venue, pool.Chain, pool.Asset),
			Venue:      pool.Venue,
			Chain:      pool.Chain,
			Asset:      pool.Asset,
			GrossApy:   pool.Apy,
			TvlUSD:     pool.TvlUSD,
			IsNative:   pool.Chain == types.ChainSui,
			ObservedAt: observed,
		}
		index[overlayKey(pool.Venue, pool.Asset)] = len(opportunities)
		opportunities = append(opportunities, opp)
	}

	// (b) overlay the fresher native feed onto matching same-chain entries.
	for _, pool := range a.cache.NativeYields(ctx) {
		i, ok := index[overlayKey(pool.Venue, pool.Asset)]
		if !ok {
			continue
		}
		opportunities[i].GrossApy = pool.Apy
		opportunities[i].TvlUSD = pool.TvlUSD
		opportunities[i].IsNative = true
		opportunities[i].BridgeCostPct = 0
	}

	// (c) funding-carry legs for markets above the annualized floor.
	for _, market := range config.TrackedMarkets {
		rate := a.cache.Funding(ctx, market)
		if math.Abs(rate) < config.FundingFloorPct {
			continue
		}
		side := "short" // positive funding: shorts collect
		if rate < 0 {
			side = "long"
		}
		book := a.cache.Orderbook(ctx, market)
		opportunities = append(opportunities, types.YieldOpportunity{
			ID:         fmt.Sprintf("%s:%s:%s:%s", types.VenueBluefin, types.ChainSui, market, side),
			Venue:      types.VenueBluefin,
			Chain:      types.ChainSui,
			Asset:      market,
			GrossApy:   math.Abs(rate),
			TvlUSD:     book.BidDepth + book.AskDepth,
			IsNative:   true,
			ObservedAt: observed,
		})
	}

	// (d) net out bridge costs from the treasury's home chain.
	for i := range opportunities {
		if opportunities[i].IsNative {
			opportunities[i].BridgeCostPct = 0
		} else {
			opportunities[i].BridgeCostPct = config.BridgeCostPct(types.ChainSui, opportunities[i].Chain)
		}
		opportunities[i].NetApy = opportunities[i].GrossApy - opportunities[i].BridgeCostPct
	}

	// (e) rank by net APY, stable so feed order breaks ties.
	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].NetApy > opportunities[j].NetApy
	})

	a.logger.Debug().Int("opportunities", len(opportunities)).Msg("Yield scan complete")
	return opportunities
}

// FindBest returns the highest-ranked opportunity passing the risk profile's
// cross-chain permission and TVL floor, or nil with an explanation.
func (a *Aggregator) FindBest(ctx context.Context, profile types.RiskProfile) (*types.YieldOpportunity, string) {
	scanned := a.Scan(ctx)
	if len(scanned) == 0 {
		return nil, "no yield opportunities available from any feed"
	}

	for i := range scanned {
		opp := scanned[i]
		if !profile.AllowCrossChain && opp.Chain != types.ChainSui {
			continue
		}
		if opp.TvlUSD < profile.MinTvlUSD {
			continue
		}
		return &opp, ""
	}

	return nil, fmt.Sprintf("%d opportunities scanned, none passed the %s profile filters (cross-chain allowed: %t, min TVL $%.0f)",
		len(scanned), profile.Name, profile.AllowCrossChain, profile.MinTvlUSD)
}

func opportunityID(venue types.Venue, chain types.Chain, asset string) string {
	return fmt.Sprintf("%s:%s:%s", venue, chain, strings.ToUpper(asset))
}

func overlayKey(venue types.Venue, asset string) string {
	return string(venue) + "|" + strings.ToUpper(asset)
}
