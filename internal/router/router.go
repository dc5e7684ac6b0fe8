package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dhkang/kiwoom-trader/internal/stream"
)

// Router parses REAL frames from the stream Manager and routes each
// data entry to a typed buffer for the Writers.
type Router interface {
	// Start begins routing messages from the input channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Buffers returns output buffers for writers to consume.
	Buffers() RouterBuffers

	// Stats returns current router statistics.
	Stats() RouterStats
}

// RouterBuffers provides access to output buffers for writers.
type RouterBuffers struct {
	Tick    *GrowableBuffer[TickMsg]
	Book    *GrowableBuffer[BookMsg]
	Fill    *GrowableBuffer[FillMsg]
	Balance *GrowableBuffer[BalanceMsg]
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	FramesReceived int64
	EntriesRouted  int64
	ParseErrors    int64
	UnknownTypes   int64
	TickBuffer     BufferStats
	BookBuffer     BufferStats
	FillBuffer     BufferStats
	BalanceBuffer  BufferStats
}

// router is the internal implementation.
type router struct {
	cfg    RouterConfig
	logger *slog.Logger

	// Input from stream Manager
	input <-chan stream.RawMessage

	// Output to Writers
	tickBuf    *GrowableBuffer[TickMsg]
	bookBuf    *GrowableBuffer[BookMsg]
	fillBuf    *GrowableBuffer[FillMsg]
	balanceBuf *GrowableBuffer[BalanceMsg]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	received    int64
	routed      int64
	parseErrors int64
	unknown     int64
}

// NewRouter creates a new message Router.
func NewRouter(cfg RouterConfig, input <-chan stream.RawMessage, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:        cfg,
		logger:     logger,
		input:      input,
		tickBuf:    NewGrowableBuffer[TickMsg](cfg.TickBufferSize),
		bookBuf:    NewGrowableBuffer[BookMsg](cfg.BookBufferSize),
		fillBuf:    NewGrowableBuffer[FillMsg](cfg.FillBufferSize),
		balanceBuf: NewGrowableBuffer[BalanceMsg](cfg.BalanceBufferSize),
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started",
		"tick_buffer", r.cfg.TickBufferSize,
		"book_buffer", r.cfg.BookBufferSize,
		"fill_buffer", r.cfg.FillBufferSize,
		"balance_buffer", r.cfg.BalanceBufferSize,
	)

	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
	}

	r.tickBuf.Close()
	r.bookBuf.Close()
	r.fillBuf.Close()
	r.balanceBuf.Close()

	return nil
}

// Buffers returns output buffers for writers.
func (r *router) Buffers() RouterBuffers {
	return RouterBuffers{
		Tick:    r.tickBuf,
		Book:    r.bookBuf,
		Fill:    r.fillBuf,
		Balance: r.balanceBuf,
	}
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		FramesReceived: r.received,
		EntriesRouted:  r.routed,
		ParseErrors:    r.parseErrors,
		UnknownTypes:   r.unknown,
		TickBuffer:     r.tickBuf.Stats(),
		BookBuffer:     r.bookBuf.Stats(),
		FillBuffer:     r.fillBuf.Stats(),
		BalanceBuffer:  r.balanceBuf.Stats(),
	}
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// realFrame is the shape of a REAL frame's payload.
type realFrame struct {
	Trnm string            `json:"trnm"`
	Data []stream.RealData `json:"data"`
}

// route parses a single REAL frame and routes its entries.
func (r *router) route(raw stream.RawMessage) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	var frame realFrame
	if err := json.Unmarshal(raw.Data, &frame); err != nil {
		r.logger.Warn("failed to parse frame", "error", err)
		r.mu.Lock()
		r.parseErrors++
		r.mu.Unlock()
		return
	}

	receivedAt := raw.ReceivedAt.UnixMicro()

	for _, entry := range frame.Data {
		var sent bool
		var err error

		switch entry.Type {
		case stream.TypeTick:
			var msg TickMsg
			msg, err = parseTick(entry, receivedAt)
			if err == nil {
				sent = r.tickBuf.Send(msg)
			}

		case stream.TypeBestQuote, stream.TypeOrderBook:
			var msg BookMsg
			msg, err = parseBook(entry, receivedAt)
			if err == nil {
				sent = r.bookBuf.Send(msg)
			}

		case stream.TypeOrderFill:
			var msg FillMsg
			msg, err = parseFill(entry, receivedAt)
			if err == nil {
				sent = r.fillBuf.Send(msg)
			}

		case stream.TypeBalance:
			var msg BalanceMsg
			msg, err = parseBalance(entry, receivedAt)
			if err == nil {
				sent = r.balanceBuf.Send(msg)
			}

		default:
			r.mu.Lock()
			r.unknown++
			r.mu.Unlock()
			r.logger.Debug("skipping real-time type", "type", entry.Type, "item", entry.Item)
			continue
		}

		if err != nil {
			r.logger.Warn("failed to parse entry",
				"type", entry.Type,
				"item", entry.Item,
				"error", err,
			)
			r.mu.Lock()
			r.parseErrors++
			r.mu.Unlock()
			continue
		}

		if sent {
			r.mu.Lock()
			r.routed++
			r.mu.Unlock()
		}
	}
}
