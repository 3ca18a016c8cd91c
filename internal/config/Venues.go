/*

This file contains the static venue tables: the canonical venue registry, the
free-text synonym table used by the protocol router, the allow-list of
venue+chain+asset combinations the aggregator will consider, and the per-route
bridge cost table.

If a venue is missing here the aggregator will never deploy into it, no
matter what the yield feeds report. Keep these in sync with governance.

*/

package config

import (
	"strings"

	"github.com/suivoice/atm/internal/types"
)

const (
	// HomeAsset is the treasury's native asset on the home chain.
	HomeAsset = "SUI"
	// SettlementAsset is the stable asset every cross-chain hop settles
	// through before bridging.
	SettlementAsset = "USDC"

	// MinPoolTvlUSD is the TVL floor below which generic pool-list entries
	// are discarded during a scan.
	MinPoolTvlUSD = 100_000.0

	// FundingFloorPct is the minimum annualized funding magnitude for a
	// perp market to surface as a funding-carry opportunity.
	FundingFloorPct = 5.0
)

// VenueChains maps each canonical venue to the chain it lives on.
var VenueChains = map[types.Venue]types.Chain{
	types.VenueVault:    types.ChainSui,
	types.VenueNavi:     types.ChainSui,
	types.VenueScallop:  types.ChainSui,
	types.VenueCetus:    types.ChainSui,
	types.VenueBluefin:  types.ChainSui,
	types.VenueAave:     types.ChainBase,
	types.VenueMoonwell: types.ChainBase,
}

// VenueSynonyms resolves free-text venue names, as spoken or typed by the
// user, to canonical identifiers. Keys are lowercase.
var VenueSynonyms = map[string]types.Venue{
	"vault":         types.VenueVault,
	"safety":        types.VenueVault,
	"safety vault":  types.VenueVault,
	"navi":          types.VenueNavi,
	"navi protocol": types.VenueNavi,
	"scallop":       types.VenueScallop,
	"cetus":         types.VenueCetus,
	"bluefin":       types.VenueBluefin,
	"aave":          types.VenueAave,
	"aave v3":       types.VenueAave,
	"moonwell":      types.VenueMoonwell,
}

// allowKey builds the allow-list lookup key.
func allowKey(venue types.Venue, chain types.Chain, asset string) string {
	return string(venue) + "|" + string(chain) + "|" + strings.ToUpper(asset)
}

// allowedCombos is the closed set of venue+chain+asset combinations the
// aggregator may deploy into.
var allowedCombos = map[string]struct{}{
	allowKey(types.VenueNavi, types.ChainSui, "USDC"):      {},
	allowKey(types.VenueNavi, types.ChainSui, "SUI"):       {},
	allowKey(types.VenueScallop, types.ChainSui, "USDC"):   {},
	allowKey(types.VenueCetus, types.ChainSui, "USDC"):     {},
	allowKey(types.VenueAave, types.ChainBase, "USDC"):     {},
	allowKey(types.VenueMoonwell, types.ChainBase, "USDC"): {},
}

// ComboAllowed reports whether a venue+chain+asset combination is eligible
// for deployment.
func ComboAllowed(venue types.Venue, chain types.Chain, asset string) bool {
	_, ok := allowedCombos[allowKey(venue, chain, asset)]
	return ok
}

// BridgeCosts is the static per-route bridge cost table, in APY percentage
// points, keyed by FROM_TO chain pair. Same-chain routes cost nothing and
// have no entry.
var BridgeCosts = map[string]float64{
	"sui_base": 0.30,
	"base_sui": 0.25,
}

// BridgeCostPct returns the bridge cost between two chains, 0 for same-chain.
func BridgeCostPct(from, to types.Chain) float64 {
	if from == to {
		return 0
	}
	return BridgeCosts[string(from)+"_"+string(to)]
}

// TrackedMarkets lists the perpetual markets whose funding rates feed the
// risk scorer and the funding-carry leg of the aggregator.
var TrackedMarkets = []string{"SUI-PERP", "BTC-PERP", "ETH-PERP"}

// RiskProfiles are the fixed user-selectable risk levels. Changing the
// active level takes effect on the next scheduler cycle, not retroactively.
var RiskProfiles = map[string]types.RiskProfile{
	"conservative": {
		Name:                  "conservative",
		RebalanceThresholdApy: 8.0,
		MaxAllocationPct:      50.0,
		AllowCrossChain:       false,
		MinTvlUSD:             1_000_000,
	},
	"moderate": {
		Name:                  "moderate",
		RebalanceThresholdApy: 5.0,
		MaxAllocationPct:      70.0,
		AllowCrossChain:       true,
		MinTvlUSD:             250_000,
	},
	"aggressive": {
		Name:                  "aggressive",
		RebalanceThresholdApy: 3.0,
		MaxAllocationPct:      90.0,
		AllowCrossChain:       true,
		MinTvlUSD:             100_000,
	},
}
