package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dhkang/kiwoom-trader/internal/router"
)

// FillWriter consumes FillMsg from the router buffer and writes to the
// fills table. Fills arrive rarely compared to market data, so the
// batch is flushed on every message; losing an execution report to a
// crash costs real reconciliation work.
type FillWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *router.GrowableBuffer[router.FillMsg]

	db batchSender

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	metrics WriterMetrics
}

// NewFillWriter creates a new FillWriter.
func NewFillWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[router.FillMsg],
	db batchSender,
	logger *slog.Logger,
) *FillWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FillWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
	}
}

// Start begins consuming messages and writing to the database.
func (w *FillWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.consumeLoop()

	w.logger.Info("fill writer started")
	return nil
}

// Stop gracefully shuts down the writer.
func (w *FillWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping fill writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("fill writer stopped")
	case <-ctx.Done():
		w.logger.Warn("fill writer stop timed out")
	}

	// Drain anything left in the buffer. The internal context is
	// canceled by now, so the final insert runs on the caller's.
	if rest := w.input.DrainTo(0); len(rest) > 0 {
		w.insert(ctx, rest)
	}

	return nil
}

// Stats returns current metrics.
func (w *FillWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

func (w *FillWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			msg, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.insert(w.ctx, []router.FillMsg{msg})
		}
	}
}

// insert writes fills immediately with ON CONFLICT DO NOTHING.
func (w *FillWriter) insert(ctx context.Context, msgs []router.FillMsg) {
	batch := &pgx.Batch{}
	for _, msg := range msgs {
		r := w.transform(msg)
		batch.Queue(`
			INSERT INTO fills (broker_order_id, code, side, quantity, price, received_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (broker_order_id, received_at) DO NOTHING
		`, r.BrokerOrderID, r.Code, r.Side, r.Quantity, r.Price, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	var conflicts int
	for range msgs {
		ct, err := results.Exec()
		if err != nil {
			w.logger.Error("fill insert failed", "error", err)
			w.mu.Lock()
			w.metrics.Errors++
			w.mu.Unlock()
			return
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	w.mu.Lock()
	w.metrics.Inserts += int64(len(msgs) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.mu.Unlock()
}

// transform converts a FillMsg to a fillRow.
func (w *FillWriter) transform(msg router.FillMsg) fillRow {
	return fillRow{
		BrokerOrderID: msg.BrokerOrderID,
		Code:          msg.Code,
		Side:          msg.Side,
		Quantity:      msg.Quantity,
		Price:         krw(msg.Price),
		ReceivedAt:    msg.ReceivedAt,
	}
}
