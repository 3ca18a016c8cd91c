/*

This file contains the types for yield opportunities and positions, the state
needed for aggregation and rebalancing decisions.

*/

package types

import "time"

// Chain identifies one of the networks the treasury operates on.
type Chain string

const (
	ChainSui  Chain = "sui"  // Home chain; safety vault and native venues live here.
	ChainBase Chain = "base" // Secondary EVM chain, reached through a bridge hop.
)

// Venue is the canonical identifier of a protocol capable of holding funds.
type Venue string

const (
	VenueVault    Venue = "VAULT" // The safety vault on the home chain.
	VenueNavi     Venue = "NAVI"
	VenueScallop  Venue = "SCALLOP"
	VenueCetus    Venue = "CETUS"
	VenueBluefin  Venue = "BLUEFIN"
	VenueAave     Venue = "AAVE"
	VenueMoonwell Venue = "MOONWELL"
)

// YieldOpportunity is an immutable snapshot of a deployable yield source.
// Newer scans supersede older snapshots; entries are never mutated.
// NetApy = GrossApy - BridgeCostPct, with BridgeCostPct 0 for native venues.
type YieldOpportunity struct {
	ID            string    `json:"id"`
	Venue         Venue     `json:"venue"`
	Chain         Chain     `json:"chain"`
	Asset         string    `json:"asset"`
	GrossApy      float64   `json:"gross_apy"`
	NetApy        float64   `json:"net_apy"`
	BridgeCostPct float64   `json:"bridge_cost_pct"`
	TvlUSD        float64   `json:"tvl_usd"`
	IsNative      bool      `json:"is_native"`
	ObservedAt    time.Time `json:"observed_at"`
}

// YieldPosition tracks funds deployed into a venue. At most one position
// exists per (venue, chain) pair; re-deploying overwrites it in place.
type YieldPosition struct {
	Venue        Venue     `json:"venue"`
	Chain        Chain     `json:"chain"`
	Asset        string    `json:"asset"`
	Principal    float64   `json:"principal"`
	PrincipalUSD float64   `json:"principal_usd"`
	Apy          float64   `json:"apy"`
	EarnedUSD    float64   `json:"earned_usd"`
	OpenedAt     time.Time `json:"opened_at"`
}

// PoolYield is one entry of the cross-protocol pool list as served by the
// generic yield feed, before allow-list filtering and bridge-cost netting.
type PoolYield struct {
	Venue  Venue   `json:"venue"`
	Chain  Chain   `json:"chain"`
	Asset  string  `json:"asset"`
	Apy    float64 `json:"apy"`
	TvlUSD float64 `json:"tvl_usd"`
}

// FundingRate is an annualized perpetual funding observation. Sign follows
// the long side: positive means longs pay shorts.
type FundingRate struct {
	Market        string  `json:"market"`
	AnnualizedPct float64 `json:"annualized_pct"`
}

// PricePoint is one entry of the bounded price history ring buffer.
type PricePoint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderbookSnapshot is a shallow market-depth observation used by the signal
// cache's shortest-lived signal class.
type OrderbookSnapshot struct {
	Market    string    `json:"market"`
	BestBid   float64   `json:"best_bid"`
	BestAsk   float64   `json:"best_ask"`
	BidDepth  float64   `json:"bid_depth_usd"`
	AskDepth  float64   `json:"ask_depth_usd"`
	FetchedAt time.Time `json:"fetched_at"`
}
