package datafetcher

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/types"
)

// FundingFetcher retrieves annualized perp funding rates and shallow
// orderbook snapshots from the derivatives feed.
type FundingFetcher struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewFundingFetcher constructs a derivatives feed fetcher.
func NewFundingFetcher(baseURL string, timeout time.Duration, logger zerolog.Logger) *FundingFetcher {
	return &FundingFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
		logger:  logger.With().Str("component", "funding_fetcher").Logger(),
	}
}

type fundingResponse struct {
	Market        string  `json:"market"`
	AnnualizedPct float64 `json:"annualized_pct"`
}

// FundingRate implements signals.FundingSource. The returned rate is signed:
// positive means longs pay shorts.
func (f *FundingFetcher) FundingRate(ctx context.Context, market string) (types.FundingRate, error) {
	endpoint := f.baseURL + "/funding?market=" + url.QueryEscape(market)

	var resp fundingResponse
	if err := getJSON(ctx, f.client, endpoint, &resp); err != nil {
		return types.FundingRate{}, err
	}

	f.logger.Debug().Str("market", market).Float64("annualized_pct", resp.AnnualizedPct).Msg("Fetched funding rate")
	return types.FundingRate{Market: market, AnnualizedPct: resp.AnnualizedPct}, nil
}

type orderbookResponse struct {
	Market   string  `json:"market"`
	BestBid  float64 `json:"best_bid"`
	BestAsk  float64 `json:"best_ask"`
	BidDepth float64 `json:"bid_depth_usd"`
	AskDepth float64 `json:"ask_depth_usd"`
}

// Orderbook implements signals.OrderbookSource.
func (f *FundingFetcher) Orderbook(ctx context.Context, market string) (types.OrderbookSnapshot, error) {
	endpoint := f.baseURL + "/orderbook?market=" + url.QueryEscape(market)

	var resp orderbookResponse
	if err := getJSON(ctx, f.client, endpoint, &resp); err != nil {
		return types.OrderbookSnapshot{}, err
	}

	return types.OrderbookSnapshot{
		Market:    market,
		BestBid:   resp.BestBid,
		BestAsk:   resp.BestAsk,
		BidDepth:  resp.BidDepth,
		AskDepth:  resp.AskDepth,
		FetchedAt: time.Now().UTC(),
	}, nil
}
