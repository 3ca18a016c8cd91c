package signals

import (
	"context"

	"github.com/suivoice/atm/internal/types"
)

// PriceSource serves spot prices for an asset symbol.
type PriceSource interface {
	SpotPrice(ctx context.Context, asset string) (float64, error)
}

// PoolYieldSource serves the generic cross-protocol pool list.
type PoolYieldSource interface {
	PoolYields(ctx context.Context) ([]types.PoolYield, error)
}

// NativeYieldSource serves the fresher protocol-native yield feed for
// same-chain venues.
type NativeYieldSource interface {
	NativeYields(ctx context.Context) ([]types.PoolYield, error)
}

// FundingSource serves annualized perpetual funding rates.
type FundingSource interface {
	FundingRate(ctx context.Context, market string) (types.FundingRate, error)
}

// OrderbookSource serves shallow market-depth snapshots.
type OrderbookSource interface {
	Orderbook(ctx context.Context, market string) (types.OrderbookSnapshot, error)
}

// Sources bundles every upstream feed the cache fronts. A nil field is
// treated as a permanently unavailable signal.
type Sources struct {
	Price     PriceSource
	Pools     PoolYieldSource
	Native    NativeYieldSource
	Funding   FundingSource
	Orderbook OrderbookSource
}

// Unavailable sentinels. Downstream scoring always receives a numeric input;
// these values mark a signal that could not be fetched and has no cached
// fallback.
const (
	// PriceUnavailable flags a missing spot price. Callers must treat any
	// non-positive price as absent.
	PriceUnavailable float64 = -1

	// FundingNeutral stands in for a missing funding rate. Zero is the
	// neutral funding level, so scoring degrades gracefully.
	FundingNeutral float64 = 0
)
