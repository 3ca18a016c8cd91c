package cli

import (
	"context"
	"fmt"

	"github.com/suivoice/atm/internal/aggregator"
	"github.com/suivoice/atm/internal/atm"
	"github.com/suivoice/atm/internal/config"
	"github.com/suivoice/atm/internal/datafetcher"
	"github.com/suivoice/atm/internal/executor"
	"github.com/suivoice/atm/internal/ledger"
	"github.com/suivoice/atm/internal/logger"
	"github.com/suivoice/atm/internal/queue"
	"github.com/suivoice/atm/internal/risk"
	"github.com/suivoice/atm/internal/router"
	"github.com/suivoice/atm/internal/signals"
	"github.com/suivoice/atm/internal/state"
	"github.com/suivoice/atm/internal/venues"
	"github.com/suivoice/atm/internal/web"
)

// application is the fully wired component graph.
type application struct {
	cfg       *config.Config
	store     *state.Store
	book      *ledger.Ledger
	agg       *aggregator.Aggregator
	scorer    *risk.Scorer
	exec      *executor.Executor
	queue     *queue.Queue
	scheduler *atm.ATM
	server    *web.Server
}

// buildApplication wires every component bottom-up: store, feeds, cache,
// scoring, book, execution, scheduler, web.
func buildApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	lg := *logger.Get()

	store, err := state.Open(cfg.Database, lg)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	sources := signals.Sources{
		Price:     datafetcher.NewPriceFetcher(cfg.Feeds.PricesURL, cfg.Feeds.Timeout, lg),
		Pools:     datafetcher.NewPoolListFetcher(cfg.Feeds.PoolsURL, cfg.Feeds.Timeout, lg),
		Native:    datafetcher.NewNativeFeedFetcher(cfg.Feeds.NativeURL, cfg.Feeds.Timeout, lg),
		Funding:   datafetcher.NewFundingFetcher(cfg.Feeds.FundingURL, cfg.Feeds.Timeout, lg),
		Orderbook: datafetcher.NewFundingFetcher(cfg.Feeds.OrderbookURL, cfg.Feeds.Timeout, lg),
	}
	cache := signals.New(sources, cfg.Feeds.Timeout, lg)

	agg := aggregator.New(cache, lg)
	scorer := risk.New(cache, agg, cfg.Risk.HistoryLength, lg)
	book := ledger.New(cfg.Ledger.Capacity, cfg.App.OpeningBalanceUSD, lg)

	// Restore the replay guard so intents completed before a restart do not
	// re-execute on the next drain.
	keys, err := store.CompletedIdempotencyKeys(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading idempotency keys: %w", err)
	}
	book.SeedCompletedKeys(keys)

	registry := venues.NewRegistry(cfg.App.Network, lg)
	rt := router.New(registry, lg)
	exec := executor.New(cfg, agg, scorer, rt, book, store, lg)
	q := queue.New(store, exec, lg)

	scheduler, err := atm.New(atm.Config{
		AppConfig:  cfg,
		Scorer:     scorer,
		Aggregator: agg,
		Executor:   exec,
		Ledger:     book,
		Queue:      q,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	server := web.NewServer(cfg.Web.Port, exec, book, agg, scheduler, q, store)

	return &application{
		cfg:       cfg,
		store:     store,
		book:      book,
		agg:       agg,
		scorer:    scorer,
		exec:      exec,
		queue:     q,
		scheduler: scheduler,
		server:    server,
	}, nil
}

func (a *application) close() {
	a.store.Close()
}
