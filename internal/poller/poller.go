package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhkang/kiwoom-trader/internal/api"
	"github.com/dhkang/kiwoom-trader/internal/model"
)

// WatchlistSource provides the stock codes to poll.
type WatchlistSource interface {
	Codes() []string
}

// WatchlistFunc is a function adapter for WatchlistSource.
type WatchlistFunc func() []string

func (f WatchlistFunc) Codes() []string { return f() }

// QuoteHandler receives fetched quote snapshots.
type QuoteHandler interface {
	HandleQuote(quote model.Quote) error
}

// QuoteHandlerFunc is a function adapter for QuoteHandler.
type QuoteHandlerFunc func(model.Quote) error

func (f QuoteHandlerFunc) HandleQuote(q model.Quote) error { return f(q) }

// CandleHandler receives fetched daily bars.
type CandleHandler interface {
	HandleCandles(code string, candles []model.Candle) error
}

// CandleHandlerFunc is a function adapter for CandleHandler.
type CandleHandlerFunc func(string, []model.Candle) error

func (f CandleHandlerFunc) HandleCandles(code string, candles []model.Candle) error {
	return f(code, candles)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval
	Concurrency int           // Max concurrent requests
	Timeout     time.Duration // Per-request timeout
	CandleBars  int           // Daily bars to fetch per stock
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
		CandleBars:  300,
	}
}

// Poller periodically fetches quote snapshots and daily bars for the
// watchlist via the REST API. The stream covers intraday movement; the
// poller keeps the history the risk engine reads fresh.
type Poller struct {
	cfg       Config
	client    *api.Client
	watchlist WatchlistSource
	quotes    QuoteHandler
	candles   CandleHandler
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. Either handler may be nil.
func New(cfg Config, client *api.Client, watchlist WatchlistSource, quotes QuoteHandler, candles CandleHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:       cfg,
		client:    client,
		watchlist: watchlist,
		quotes:    quotes,
		candles:   candles,
		logger:    logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("watchlist poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("watchlist poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll fetches all watched stocks concurrently.
func (p *Poller) pollAll() {
	start := time.Now()

	codes := p.watchlist.Codes()
	if len(codes) == 0 {
		p.logger.Debug("empty watchlist, nothing to poll")
		return
	}

	// Semaphore for bounded concurrency. The API client additionally
	// rate-limits, but bounding here keeps a large watchlist from
	// stacking up goroutines.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, errors atomic.Int64

	for _, code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			if err := p.pollStock(code); err != nil {
				p.logger.Warn("failed to poll stock",
					"code", code,
					"err", err,
				)
				errors.Add(1)
				return
			}

			fetched.Add(1)
		}(code)
	}

	wg.Wait()

	p.logger.Info("poll cycle complete",
		"stocks", len(codes),
		"fetched", fetched.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

// pollStock fetches and handles a single stock's quote and daily bars.
func (p *Poller) pollStock(code string) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	if p.quotes != nil {
		quote, err := p.client.GetQuote(ctx, code)
		if err != nil {
			return err
		}
		if err := p.quotes.HandleQuote(quote); err != nil {
			return err
		}
	}

	if p.candles != nil {
		bars, err := p.client.GetDailyCandles(ctx, code, time.Now(), p.cfg.CandleBars)
		if err != nil {
			return err
		}
		if err := p.candles.HandleCandles(code, bars); err != nil {
			return err
		}
	}

	return nil
}
