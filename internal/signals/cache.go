/*

MarketSignalCache: a TTL-bounded cache in front of the external price, yield,
funding, and orderbook sources. Upstream failures are absorbed by serving the
last known good value; only a signal that has never been fetched degrades to
its unavailable sentinel. Freshness windows differ by signal class.

*/

package signals

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/types"
)

// Per-class freshness windows.
const (
	SpotPriceTTL   = 30 * time.Second
	PoolYieldTTL   = 60 * time.Second
	NativeYieldTTL = 120 * time.Second
	FundingTTL     = 60 * time.Second
	OrderbookTTL   = 15 * time.Second
)

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache fronts a Sources bundle with per-key TTLs and stale fallback.
type Cache struct {
	mu      sync.Mutex
	sources Sources
	timeout time.Duration
	entries map[string]entry
	logger  zerolog.Logger
	now     func() time.Time
}

// New constructs a signal cache. Every upstream call is bounded by timeout.
func New(sources Sources, timeout time.Duration, logger zerolog.Logger) *Cache {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Cache{
		sources: sources,
		timeout: timeout,
		entries: make(map[string]entry),
		logger:  logger.With().Str("component", "signal_cache").Logger(),
		now:     time.Now,
	}
}

// lookup implements the shared hit/refresh/stale/sentinel path. The entry
// timestamp is refreshed on every successful fetch, whether or not the value
// changed. Readers get no freshness guarantee beyond this call.
//
// The lock is not held across the upstream call, so a slow feed never
// blocks lookups of other keys. Concurrent misses on the same key may each
// fetch; the later store wins.
func lookup[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, sentinel T, fetch func(context.Context) (T, error)) T {
	c.mu.Lock()
	now := c.now()
	cached, have := c.entries[key]
	c.mu.Unlock()

	if have && now.Sub(cached.fetchedAt) < ttl {
		return cached.value.(T)
	}

	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	value, err := fetch(fctx)
	if err == nil {
		c.mu.Lock()
		c.entries[key] = entry{value: value, fetchedAt: now}
		c.mu.Unlock()
		return value
	}

	if have {
		c.logger.Warn().Err(err).Str("key", key).
			Dur("age", now.Sub(cached.fetchedAt)).
			Msg("Signal refresh failed, serving stale value")
		return cached.value.(T)
	}

	c.logger.Warn().Err(err).Str("key", key).Msg("Signal unavailable, no cached fallback")
	return sentinel
}

// SpotPrice returns the cached spot price for an asset, PriceUnavailable if
// the signal cannot be served at all.
func (c *Cache) SpotPrice(ctx context.Context, asset string) float64 {
	return lookup(ctx, c, "spot:"+asset, SpotPriceTTL, PriceUnavailable, func(fctx context.Context) (float64, error) {
		if c.sources.Price == nil {
			return 0, errNoSource
		}
		return c.sources.Price.SpotPrice(fctx, asset)
	})
}

// PoolYields returns the generic cross-protocol pool list, nil when the
// signal has never been available.
func (c *Cache) PoolYields(ctx context.Context) []types.PoolYield {
	return lookup(ctx, c, "pools", PoolYieldTTL, nil, func(fctx context.Context) ([]types.PoolYield, error) {
		if c.sources.Pools == nil {
			return nil, errNoSource
		}
		return c.sources.Pools.PoolYields(fctx)
	})
}

// NativeYields returns the protocol-native same-chain yield feed.
func (c *Cache) NativeYields(ctx context.Context) []types.PoolYield {
	return lookup(ctx, c, "native", NativeYieldTTL, nil, func(fctx context.Context) ([]types.PoolYield, error) {
		if c.sources.Native == nil {
			return nil, errNoSource
		}
		return c.sources.Native.NativeYields(fctx)
	})
}

// Funding returns the annualized funding rate for a market, FundingNeutral
// when unavailable.
func (c *Cache) Funding(ctx context.Context, market string) float64 {
	return lookup(ctx, c, "funding:"+market, FundingTTL, FundingNeutral, func(fctx context.Context) (float64, error) {
		if c.sources.Funding == nil {
			return 0, errNoSource
		}
		rate, err := c.sources.Funding.FundingRate(fctx, market)
		if err != nil {
			return 0, err
		}
		return rate.AnnualizedPct, nil
	})
}

// Orderbook returns a shallow depth snapshot, the zero value when
// unavailable.
func (c *Cache) Orderbook(ctx context.Context, market string) types.OrderbookSnapshot {
	return lookup(ctx, c, "book:"+market, OrderbookTTL, types.OrderbookSnapshot{}, func(fctx context.Context) (types.OrderbookSnapshot, error) {
		if c.sources.Orderbook == nil {
			return types.OrderbookSnapshot{}, errNoSource
		}
		return c.sources.Orderbook.Orderbook(fctx, market)
	})
}

var errNoSource = errors.New("signal source not configured")
