package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/dhkang/kiwoom-trader/internal/api"
	"github.com/dhkang/kiwoom-trader/internal/auth"
	"github.com/dhkang/kiwoom-trader/internal/config"
	"github.com/dhkang/kiwoom-trader/internal/database"
	"github.com/dhkang/kiwoom-trader/internal/guard"
	"github.com/dhkang/kiwoom-trader/internal/journal"
	"github.com/dhkang/kiwoom-trader/internal/metrics"
	"github.com/dhkang/kiwoom-trader/internal/model"
	"github.com/dhkang/kiwoom-trader/internal/poller"
	"github.com/dhkang/kiwoom-trader/internal/portfolio"
	"github.com/dhkang/kiwoom-trader/internal/quotecache"
	"github.com/dhkang/kiwoom-trader/internal/router"
	"github.com/dhkang/kiwoom-trader/internal/stream"
	"github.com/dhkang/kiwoom-trader/internal/version"
	"github.com/dhkang/kiwoom-trader/internal/writer"
)

const reconcileInterval = time.Minute

// accountState holds the latest cash balance from reconciliation,
// shared between the reconcile loop and the order handler.
type accountState struct {
	mu   sync.RWMutex
	cash decimal.Decimal
}

func (a *accountState) setCash(c decimal.Decimal) {
	a.mu.Lock()
	a.cash = c
	a.mu.Unlock()
}

func (a *accountState) Cash() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cash
}

func main() {
	configPath := flag.String("config", "configs/trader.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting trader",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.RestURL,
		"watchlist", len(cfg.Instance.Watchlist),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Timescale.Host,
		"port", cfg.Database.Timescale.Port,
		"database", cfg.Database.Timescale.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database.Timescale)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Metrics
	mets := metrics.New()
	go func() {
		if err := mets.Serve(ctx, cfg.Metrics.Port, cfg.Metrics.Path, logger); err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Token source and REST client
	tokens := auth.NewTokenSource(cfg.API.RestURL, cfg.API.AppKey, cfg.API.AppSecret,
		auth.WithLogger(logger),
	)
	breaker := api.NewBreaker("kiwoom-rest")
	apiClient := api.NewClient(cfg.API.RestURL, tokens,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
		api.WithBreaker(breaker),
		api.WithRequestHook(func(apiID string, err error) {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			mets.APIRequests.WithLabelValues(apiID, outcome).Inc()
		}),
	)

	// Quote cache
	cache := quotecache.New(cfg.Cache, logger)
	defer cache.Close()

	// Stream manager: approval key fetched fresh on every (re)connect
	mgrCfg := stream.ManagerConfig{
		WSURL:              cfg.API.WSURL,
		SubscribeTimeout:   cfg.Stream.SubscribeTimeout,
		ReconnectBaseDelay: cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Stream.ReconnectMaxDelay,
		PingTimeout:        cfg.Stream.PingTimeout,
		WriteTimeout:       cfg.Stream.WriteTimeout,
		BufferSize:         cfg.Stream.BufferSize,
	}
	mgr := stream.NewManager(mgrCfg, apiClient.GetApprovalKey, logger)

	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to start stream manager", "error", err)
		os.Exit(1)
	}
	defer stopComponent(mgr.Stop, "stream manager", logger)

	// Message router
	rt := router.NewRouter(router.DefaultRouterConfig(), mgr.Messages(), logger)
	if err := rt.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}
	defer stopComponent(rt.Stop, "router", logger)

	bufs := rt.Buffers()

	// Writers
	writerCfg := writer.WriterConfig{
		BatchSize:     cfg.Writers.BatchSize,
		FlushInterval: cfg.Writers.FlushInterval,
	}
	candleBuf := router.NewGrowableBuffer[writer.CandleMsg](cfg.Writers.BufferSize)

	tickWriter := writer.NewTickWriter(writerCfg, bufs.Tick, pool, logger)
	bookWriter := writer.NewBookWriter(writerCfg, bufs.Book, pool, logger)
	fillWriter := writer.NewFillWriter(writerCfg, bufs.Fill, pool, logger)
	candleWriter := writer.NewCandleWriter(writerCfg, candleBuf, pool, logger)

	for name, w := range map[string]interface {
		Start(context.Context) error
	}{
		"tick writer":   tickWriter,
		"book writer":   bookWriter,
		"fill writer":   fillWriter,
		"candle writer": candleWriter,
	} {
		if err := w.Start(ctx); err != nil {
			logger.Error("failed to start writer", "writer", name, "error", err)
			os.Exit(1)
		}
	}
	defer stopComponent(tickWriter.Stop, "tick writer", logger)
	defer stopComponent(bookWriter.Stop, "book writer", logger)
	defer stopComponent(fillWriter.Stop, "fill writer", logger)
	defer stopComponent(candleWriter.Stop, "candle writer", logger)

	// Portfolio tracking and pre-trade limits
	tracker := portfolio.NewTracker(logger)
	account := &accountState{cash: decimal.Zero}
	jnl := journal.New(pool, logger)
	limits := guard.New(guard.Config{
		MaxOrderKRW:      decimal.NewFromInt(cfg.Risk.MaxOrderKRW),
		MaxPositionKRW:   decimal.NewFromInt(cfg.Risk.MaxPositionKRW),
		MaxOpenPositions: cfg.Risk.MaxOpenPositions,
	}, logger)

	// Initial holdings snapshot
	if err := reconcile(ctx, apiClient, cfg.Instance.Account, tracker, account, mets, logger); err != nil {
		logger.Error("initial balance snapshot failed", "error", err)
		os.Exit(1)
	}
	logger.Info("holdings loaded", "positions", len(tracker.Positions()))

	// Real-time balance frames override individual positions
	go balanceLoop(ctx, bufs.Balance, tracker)

	// Periodic REST reconciliation; the broker's books are authoritative
	go func() {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := reconcile(ctx, apiClient, cfg.Instance.Account, tracker, account, mets, logger); err != nil {
					logger.Warn("balance reconciliation failed", "error", err)
				}
			}
		}
	}()

	// Candle/quote poller
	pollerCfg := poller.Config{
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		Timeout:     cfg.Poller.Timeout,
		CandleBars:  cfg.Risk.LookbackDays,
	}
	snap := poller.New(pollerCfg, apiClient,
		poller.WatchlistFunc(func() []string { return cfg.Instance.Watchlist }),
		poller.QuoteHandlerFunc(func(q model.Quote) error {
			return cache.Set(ctx, q)
		}),
		poller.CandleHandlerFunc(func(code string, candles []model.Candle) error {
			for _, c := range candles {
				candleBuf.Send(writer.CandleMsg{Interval: "1d", Candle: c})
			}
			return nil
		}),
		logger,
	)
	if err := snap.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}
	defer stopComponent(snap.Stop, "poller", logger)

	// Subscribe the watchlist: market data per stock, plus the
	// account-wide execution and balance feeds.
	subCtx, subCancel := context.WithTimeout(ctx, 30*time.Second)
	err = mgr.Subscribe(subCtx,
		[]stream.RealType{stream.TypeTick, stream.TypeBestQuote, stream.TypeOrderBook},
		cfg.Instance.Watchlist,
	)
	subCancel()
	if err != nil {
		logger.Error("failed to subscribe watchlist", "error", err)
		os.Exit(1)
	}

	subCtx, subCancel = context.WithTimeout(ctx, 30*time.Second)
	err = mgr.Subscribe(subCtx,
		[]stream.RealType{stream.TypeOrderFill, stream.TypeBalance},
		[]string{""},
	)
	subCancel()
	if err != nil {
		logger.Error("failed to subscribe account feeds", "error", err)
		os.Exit(1)
	}

	logger.Info("subscriptions registered", "stats", mgr.Stats())

	// Metrics sampler
	go sampleLoop(ctx, mets, mgr, rt, breaker, tracker, map[string]statser{
		"ticks":       tickWriter,
		"best_quotes": bookWriter,
		"fills":       fillWriter,
		"candles":     candleWriter,
	})

	// Health and order entry server
	const healthPort = 8080

	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", healthPort),
		Handler: createHandler(handlerDeps{
			pool:    pool,
			mgr:     mgr,
			rt:      rt,
			client:  apiClient,
			cache:   cache,
			tracker: tracker,
			account: account,
			limits:  limits,
			journal: jnl,
			mets:    mets,
			acct:    cfg.Instance.Account,
			logger:  logger,
		}),
	}

	go func() {
		logger.Info("starting http server", "port", healthPort)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("trader running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", healthPort),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	if err := tokens.Revoke(shutdownCtx); err != nil {
		logger.Warn("token revoke failed", "error", err)
	}

	logger.Info("trader stopped")
}

// stopComponent wraps a Stop call with a bounded timeout for deferred use.
func stopComponent(stop func(context.Context) error, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("component stop failed", "component", name, "error", err)
	}
}

// balanceLoop applies real-time holdings frames to the tracker.
func balanceLoop(ctx context.Context, buf *router.GrowableBuffer[router.BalanceMsg], tracker *portfolio.Tracker) {
	for {
		msg, ok := buf.Receive()
		if !ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		tracker.Update(msg.Code, msg.Quantity, msg.AvgPrice)
	}
}

// reconcile fetches the account snapshot and replaces tracked state.
func reconcile(
	ctx context.Context,
	client *api.Client,
	account string,
	tracker *portfolio.Tracker,
	state *accountState,
	mets *metrics.Metrics,
	logger *slog.Logger,
) error {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	balance, holdings, err := client.GetBalance(reqCtx, account)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}

	tracker.SetHoldings(holdings)
	state.setCash(balance.Cash)

	exposure, _ := tracker.TotalExposure().Float64()
	mets.OpenPositions.Set(float64(len(tracker.Positions())))
	mets.ExposureKRW.Set(exposure)

	logger.Debug("reconciled holdings",
		"positions", len(holdings),
		"cash", balance.Cash,
	)
	return nil
}

// statser is the writer stats surface the sampler needs.
type statser interface {
	Stats() writer.WriterMetrics
}

// sampleLoop publishes component statistics as Prometheus metrics.
// Counters are advanced by the delta since the previous sample.
func sampleLoop(
	ctx context.Context,
	mets *metrics.Metrics,
	mgr stream.Manager,
	rt router.Router,
	breaker *gobreaker.CircuitBreaker,
	tracker *portfolio.Tracker,
	writers map[string]statser,
) {
	var prevMgr stream.ManagerStats
	var prevRt router.RouterStats
	prevWriters := make(map[string]writer.WriterMetrics, len(writers))

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ms := mgr.Stats()
		mets.FramesReceived.Add(float64(ms.FramesRead - prevMgr.FramesRead))
		mets.PingsEchoed.Add(float64(ms.PingsEchoed - prevMgr.PingsEchoed))
		mets.Reconnects.Add(float64(ms.Reconnects - prevMgr.Reconnects))
		mets.Subscriptions.Set(float64(ms.Subscriptions))
		prevMgr = ms

		rs := rt.Stats()
		mets.ParseErrors.Add(float64(rs.ParseErrors - prevRt.ParseErrors))
		mets.EntriesRouted.WithLabelValues("tick").
			Add(float64(rs.TickBuffer.TotalReceived - prevRt.TickBuffer.TotalReceived))
		mets.EntriesRouted.WithLabelValues("book").
			Add(float64(rs.BookBuffer.TotalReceived - prevRt.BookBuffer.TotalReceived))
		mets.EntriesRouted.WithLabelValues("fill").
			Add(float64(rs.FillBuffer.TotalReceived - prevRt.FillBuffer.TotalReceived))
		mets.EntriesRouted.WithLabelValues("balance").
			Add(float64(rs.BalanceBuffer.TotalReceived - prevRt.BalanceBuffer.TotalReceived))
		mets.BufferDepth.WithLabelValues("tick").Set(float64(rs.TickBuffer.Count))
		mets.BufferDepth.WithLabelValues("book").Set(float64(rs.BookBuffer.Count))
		mets.BufferDepth.WithLabelValues("fill").Set(float64(rs.FillBuffer.Count))
		mets.BufferDepth.WithLabelValues("balance").Set(float64(rs.BalanceBuffer.Count))
		prevRt = rs

		for table, w := range writers {
			ws := w.Stats()
			prev := prevWriters[table]
			mets.RowsInserted.WithLabelValues(table).Add(float64(ws.Inserts - prev.Inserts))
			mets.RowConflicts.WithLabelValues(table).Add(float64(ws.Conflicts - prev.Conflicts))
			mets.WriteErrors.WithLabelValues(table).Add(float64(ws.Errors - prev.Errors))
			prevWriters[table] = ws
		}

		if breaker.State() == gobreaker.StateOpen {
			mets.BreakerOpen.Set(1)
		} else {
			mets.BreakerOpen.Set(0)
		}

		exposure, _ := tracker.TotalExposure().Float64()
		mets.OpenPositions.Set(float64(len(tracker.Positions())))
		mets.ExposureKRW.Set(exposure)
	}
}
