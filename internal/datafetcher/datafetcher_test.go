package datafetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/suivoice/atm/internal/types"
)

func TestPoolListFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pools":[
			{"venue":"navi","chain":"SUI","asset":"usdc","apy":5.5,"tvl_usd":1500000},
			{"venue":"aave","chain":"base","asset":"USDC","apy":6.1,"tvl_usd":9000000}
		]}`))
	}))
	defer srv.Close()

	f := NewPoolListFetcher(srv.URL, time.Second, zerolog.Nop())
	pools, err := f.PoolYields(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected two pools, got %d", len(pools))
	}
	// Names are normalized to the canonical casing.
	if pools[0].Venue != types.VenueNavi || pools[0].Chain != types.ChainSui || pools[0].Asset != "USDC" {
		t.Fatalf("unexpected normalization: %+v", pools[0])
	}
	if pools[1].Venue != types.VenueAave || pools[1].Apy != 6.1 {
		t.Fatalf("unexpected pool: %+v", pools[1])
	}
}

func TestNativeFeedFetcherDropsForeignChains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pools":[
			{"venue":"navi","chain":"sui","asset":"USDC","apy":5.8,"tvl_usd":1500000},
			{"venue":"aave","chain":"base","asset":"USDC","apy":6.1,"tvl_usd":9000000}
		]}`))
	}))
	defer srv.Close()

	f := NewNativeFeedFetcher(srv.URL, time.Second, zerolog.Nop())
	pools, err := f.NativeYields(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pools) != 1 || pools[0].Venue != types.VenueNavi {
		t.Fatalf("the native feed only carries home-chain venues, got %+v", pools)
	}
}

func TestPriceFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/spot" || r.URL.Query().Get("asset") != "SUI" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"asset":"SUI","price_usd":1.84}`))
	}))
	defer srv.Close()

	f := NewPriceFetcher(srv.URL, time.Second, zerolog.Nop())
	price, err := f.SpotPrice(context.Background(), "sui")
	if err != nil {
		t.Fatal(err)
	}
	if price != 1.84 {
		t.Fatalf("expected 1.84, got %v", price)
	}
}

func TestPriceFetcherRejectsNonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"asset":"SUI","price_usd":0}`))
	}))
	defer srv.Close()

	f := NewPriceFetcher(srv.URL, time.Second, zerolog.Nop())
	if _, err := f.SpotPrice(context.Background(), "SUI"); err == nil {
		t.Fatal("a zero price must be an error, not a value")
	}
}

func TestFundingFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/funding":
			w.Write([]byte(`{"market":"SUI-PERP","annualized_pct":-12.5}`))
		case "/orderbook":
			w.Write([]byte(`{"market":"SUI-PERP","best_bid":1.83,"best_ask":1.85,"bid_depth_usd":300000,"ask_depth_usd":250000}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFundingFetcher(srv.URL, time.Second, zerolog.Nop())

	rate, err := f.FundingRate(context.Background(), "SUI-PERP")
	if err != nil {
		t.Fatal(err)
	}
	if rate.Market != "SUI-PERP" || rate.AnnualizedPct != -12.5 {
		t.Fatalf("unexpected funding rate: %+v", rate)
	}

	book, err := f.Orderbook(context.Background(), "SUI-PERP")
	if err != nil {
		t.Fatal(err)
	}
	if book.BestBid != 1.83 || book.BidDepth != 300_000 || book.AskDepth != 250_000 {
		t.Fatalf("unexpected orderbook: %+v", book)
	}
	if book.FetchedAt.IsZero() {
		t.Fatal("expected a fetch timestamp")
	}
}

func TestFetcherSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	pf := NewPoolListFetcher(srv.URL, time.Second, zerolog.Nop())
	if _, err := pf.PoolYields(context.Background()); err == nil {
		t.Fatal("expected an error for a 502 response")
	}

	prf := NewPriceFetcher(srv.URL, time.Second, zerolog.Nop())
	if _, err := prf.SpotPrice(context.Background(), "SUI"); err == nil {
		t.Fatal("expected an error for a 502 response")
	}
}
