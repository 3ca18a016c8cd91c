package datafetcher

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/types"
)

// PoolListFetcher retrieves the generic cross-protocol pool list.
type PoolListFetcher struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewPoolListFetcher constructs a fetcher for the generic yield feed.
func NewPoolListFetcher(url string, timeout time.Duration, logger zerolog.Logger) *PoolListFetcher {
	return &PoolListFetcher{
		url:    strings.TrimRight(url, "/"),
		client: newHTTPClient(timeout),
		logger: logger.With().Str("component", "pool_fetcher").Logger(),
	}
}

type poolListResponse struct {
	Pools []struct {
		Venue  string  `json:"venue"`
		Chain  string  `json:"chain"`
		Asset  string  `json:"asset"`
		Apy    float64 `json:"apy"`
		TvlUSD float64 `json:"tvl_usd"`
	} `json:"pools"`
}

// PoolYields implements signals.PoolYieldSource.
func (f *PoolListFetcher) PoolYields(ctx context.Context) ([]types.PoolYield, error) {
	var resp poolListResponse
	if err := getJSON(ctx, f.client, f.url, &resp); err != nil {
		return nil, err
	}

	yields := make([]types.PoolYield, 0, len(resp.Pools))
	for _, p := range resp.Pools {
		yields = append(yields, types.PoolYield{
			Venue:  types.Venue(strings.ToUpper(p.Venue)),
			Chain:  types.Chain(strings.ToLower(p.Chain)),
			Asset:  strings.ToUpper(p.Asset),
			Apy:    p.Apy,
			TvlUSD: p.TvlUSD,
		})
	}
	f.logger.Debug().Int("pools", len(yields)).Msg("Fetched generic pool list")
	return yields, nil
}

// NativeFeedFetcher retrieves the protocol-native yield feed, which is
// fresher than the generic list for same-chain venues.
type NativeFeedFetcher struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewNativeFeedFetcher constructs a fetcher for the native yield feed.
func NewNativeFeedFetcher(url string, timeout time.Duration, logger zerolog.Logger) *NativeFeedFetcher {
	return &NativeFeedFetcher{
		url:    strings.TrimRight(url, "/"),
		client: newHTTPClient(timeout),
		logger: logger.With().Str("component", "native_feed_fetcher").Logger(),
	}
}

// NativeYields implements signals.NativeYieldSource. The native feed only
// carries home-chain venues.
func (f *NativeFeedFetcher) NativeYields(ctx context.Context) ([]types.PoolYield, error) {
	var resp poolListResponse
	if err := getJSON(ctx, f.client, f.url, &resp); err != nil {
		return nil, err
	}

	yields := make([]types.PoolYield, 0, len(resp.Pools))
	for _, p := range resp.Pools {
		chain := types.Chain(strings.ToLower(p.Chain))
		if chain != types.ChainSui {
			continue
		}
		yields = append(yields, types.PoolYield{
			Venue:  types.Venue(strings.ToUpper(p.Venue)),
			Chain:  chain,
			Asset:  strings.ToUpper(p.Asset),
			Apy:    p.Apy,
			TvlUSD: p.TvlUSD,
		})
	}
	f.logger.Debug().Int("pools", len(yields)).Msg("Fetched native yield feed")
	return yields, nil
}
