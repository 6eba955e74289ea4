package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Sentinel/internal/domain/models"
	"Sentinel/pkg/config"
	applogger "Sentinel/pkg/logger"
	"Sentinel/pkg/queue"
	"Sentinel/pkg/util"
)

// MarketFeed is the upstream surface the collector consumes. The source
// router satisfies it.
type MarketFeed interface {
	Quote(ctx context.Context, code string) (models.Quote, error)
	History(ctx context.Context, code string, days int) (models.HistoricalSeries, error)
	Breadth(ctx context.Context) (models.MarketBreadth, error)
	Flow(ctx context.Context) (models.MoneyFlow, error)
	Indices(ctx context.Context, codes []string) ([]models.IndexQuote, error)
	News(ctx context.Context, code string, limit int) ([]string, error)
	MacroNews(ctx context.Context, limit int) ([]string, error)
}

// Collector gathers one full market snapshot per run: the market-wide
// feeds plus quote, history, and news for every watchlist symbol, fanned
// out over a bounded worker pool.
type Collector struct {
	feed    MarketFeed
	cfg     config.CollectorConfig
	symbols []config.Stock
	indices []string
	logger  *applogger.Logger
}

// NewCollector creates a collector over the configured watchlist.
func NewCollector(feed MarketFeed, cfg *config.Config, l *applogger.Logger) *Collector {
	return &Collector{
		feed:    feed,
		cfg:     cfg.Collector,
		symbols: cfg.Watchlist,
		indices: cfg.Indices,
		logger:  l,
	}
}

// Collect runs one collection pass. Market breadth rides the pool with
// everything else but stays the liveness gate: it is checked at the
// fan-in barrier, and without it the run aborts. Everything else
// degrades into Failures and a Partial snapshot.
func (c *Collector) Collect(ctx context.Context) (*models.MarketSnapshot, error) {
	started := time.Now()

	snap := &models.MarketSnapshot{
		AsOf:   started,
		Stocks: make([]models.StockData, 0, len(c.symbols)),
	}

	var mu sync.Mutex
	pool := queue.NewPool(queue.PoolConfig{
		Workers:   c.cfg.Workers,
		QueueSize: len(c.symbols) + 4,
	})
	defer pool.Close()

	fail := func(code, feed string, err error) {
		mu.Lock()
		snap.Failures = append(snap.Failures, models.FetchFailure{Code: code, Feed: feed, Error: err.Error()})
		mu.Unlock()
	}

	submit := func(task queue.Task) {
		if err := pool.Submit(ctx, task); err != nil {
			fail("", "submit", err)
		}
	}

	// market-wide feeds; breadth is mandatory, the rest degrade
	var breadthErr error
	submit(func(ctx context.Context) error {
		breadth, err := c.feed.Breadth(ctx)
		mu.Lock()
		if err != nil {
			breadthErr = err
		} else {
			snap.Breadth = &breadth
		}
		mu.Unlock()
		return nil
	})

	submit(func(ctx context.Context) error {
		flow, err := c.feed.Flow(ctx)
		if err != nil {
			fail("", "flow", err)
			return nil
		}
		mu.Lock()
		snap.Flow = flow
		mu.Unlock()
		return nil
	})

	submit(func(ctx context.Context) error {
		indices, err := c.feed.Indices(ctx, c.indices)
		if err != nil {
			fail("", "indices", err)
			return nil
		}
		mu.Lock()
		snap.Indices = indices
		mu.Unlock()
		return nil
	})

	submit(func(ctx context.Context) error {
		news, err := c.feed.MacroNews(ctx, c.cfg.NewsCount)
		if err != nil {
			fail("", "macro_news", err)
			return nil
		}
		mu.Lock()
		snap.MacroNews = news
		mu.Unlock()
		return nil
	})

	// per-symbol fan-out; one failed symbol never blocks the rest
	for _, stock := range c.symbols {
		stock := stock
		submit(func(ctx context.Context) error {
			data, err := c.collectSymbol(ctx, stock)
			if err != nil {
				fail(stock.Code, "symbol", err)
				return nil
			}
			mu.Lock()
			snap.Stocks = append(snap.Stocks, data)
			mu.Unlock()
			return nil
		})
	}

	// fan-in barrier: the snapshot is complete only when every task is done
	pool.Wait()

	if breadthErr != nil {
		return nil, fmt.Errorf("market breadth unavailable, aborting run: %w", breadthErr)
	}

	snap.Partial = len(snap.Failures) > 0
	c.logger.Info("collection finished",
		applogger.Int("stocks", len(snap.Stocks)),
		applogger.Int("failures", len(snap.Failures)),
		applogger.Duration("elapsed", time.Since(started)),
		applogger.Any("partial", snap.Partial),
	)
	return snap, nil
}

func (c *Collector) collectSymbol(ctx context.Context, stock config.Stock) (models.StockData, error) {
	quote, err := c.feed.Quote(ctx, stock.Code)
	if err != nil {
		return models.StockData{}, fmt.Errorf("quote: %w", err)
	}

	history, err := c.feed.History(ctx, stock.Code, c.cfg.HistoryDays)
	if err != nil {
		return models.StockData{}, fmt.Errorf("history: %w", err)
	}

	name := stock.Name
	if name == "" {
		name = quote.Name
	}

	// news is best-effort; a missing feed must not drop the symbol
	news, err := c.feed.News(ctx, stock.Code, c.cfg.NewsCount)
	if err != nil {
		c.logger.Debug("news unavailable",
			applogger.String("code", stock.Code),
			applogger.Error(err),
		)
		news = nil
	}

	return models.StockData{
		Code:    stock.Code,
		Name:    name,
		Quote:   quote,
		History: history,
		News:    news,
	}, nil
}

// TradingDay reports the exchange-local date key for a snapshot.
func TradingDay(snap *models.MarketSnapshot) string {
	return util.DayKey(snap.AsOf)
}
