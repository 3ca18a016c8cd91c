package datafetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PriceFetcher retrieves USD spot prices from the price feed.
type PriceFetcher struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewPriceFetcher constructs a spot price fetcher.
func NewPriceFetcher(baseURL string, timeout time.Duration, logger zerolog.Logger) *PriceFetcher {
	return &PriceFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
		logger:  logger.With().Str("component", "price_fetcher").Logger(),
	}
}

type spotPriceResponse struct {
	Asset    string  `json:"asset"`
	PriceUSD float64 `json:"price_usd"`
}

// SpotPrice implements signals.PriceSource.
func (f *PriceFetcher) SpotPrice(ctx context.Context, asset string) (float64, error) {
	endpoint := f.baseURL + "/spot?asset=" + url.QueryEscape(strings.ToUpper(asset))

	var resp spotPriceResponse
	if err := getJSON(ctx, f.client, endpoint, &resp); err != nil {
		return 0, err
	}
	if resp.PriceUSD <= 0 {
		return 0, fmt.Errorf("price feed returned non-positive price %f for %s", resp.PriceUSD, asset)
	}

	f.logger.Debug().Str("asset", asset).Float64("price_usd", resp.PriceUSD).Msg("Fetched spot price")
	return resp.PriceUSD, nil
}
