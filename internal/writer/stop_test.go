package writer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/dhkang/kiwoom-trader/internal/router"
)

// recordingDB captures each SendBatch call, including whether the
// context was already canceled when the call was made.
type recordingDB struct {
	mu    sync.Mutex
	calls []recordedBatch
}

type recordedBatch struct {
	ctxErr error
	rows   int
}

func (f *recordingDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedBatch{ctxErr: ctx.Err(), rows: b.Len()})
	return &recordedResults{}
}

func (f *recordingDB) batches() []recordedBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedBatch, len(f.calls))
	copy(out, f.calls)
	return out
}

// recordedResults reports every queued statement as a fresh insert.
type recordedResults struct{}

func (r *recordedResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}
func (r *recordedResults) Query() (pgx.Rows, error) { return nil, nil }
func (r *recordedResults) QueryRow() pgx.Row        { return nil }
func (r *recordedResults) Close() error             { return nil }

func TestFillWriter_StopDrainUsesCallerContext(t *testing.T) {
	db := &recordingDB{}
	input := router.NewGrowableBuffer[router.FillMsg](10)
	w := NewFillWriter(DefaultWriterConfig(), input, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Cancel the internal context and wait for the consume loop to
	// exit, so the fill below can only be written by the Stop drain.
	w.cancel()
	w.wg.Wait()

	input.Send(router.FillMsg{
		BrokerOrderID: "0000012345",
		Code:          "005930",
		Side:          "buy",
		Quantity:      10,
		Price:         decimal.NewFromInt(71200),
		ReceivedAt:    1766455815123456,
	})

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	calls := db.batches()
	if len(calls) != 1 {
		t.Fatalf("SendBatch calls = %d, want 1", len(calls))
	}
	if calls[0].ctxErr != nil {
		t.Errorf("drain insert ran on a dead context: %v", calls[0].ctxErr)
	}
	if calls[0].rows != 1 {
		t.Errorf("drained rows = %d, want 1", calls[0].rows)
	}
	if stats := w.Stats(); stats.Inserts != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want 1 insert and no errors", stats)
	}
}

func TestTickWriter_StopFlushesPendingBatch(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     100, // Large batch so nothing auto-flushes
		FlushInterval: time.Hour,
	}
	db := &recordingDB{}
	input := router.NewGrowableBuffer[router.TickMsg](10)
	w := NewTickWriter(cfg, input, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	w.cancel()
	w.wg.Wait()

	w.handleMessage(router.TickMsg{
		Code:  "005930",
		Price: decimal.NewFromInt(71200),
	})
	// Left in the buffer, picked up only by the Stop drain.
	input.Send(router.TickMsg{
		Code:  "000660",
		Price: decimal.NewFromInt(198500),
	})

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	calls := db.batches()
	if len(calls) != 1 {
		t.Fatalf("SendBatch calls = %d, want 1", len(calls))
	}
	if calls[0].ctxErr != nil {
		t.Errorf("final flush ran on a dead context: %v", calls[0].ctxErr)
	}
	if calls[0].rows != 2 {
		t.Errorf("flushed rows = %d, want 2", calls[0].rows)
	}
	if stats := w.Stats(); stats.Inserts != 2 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want 2 inserts and no errors", stats)
	}
}

func TestBookWriter_StopFlushesPendingBatch(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	db := &recordingDB{}
	input := router.NewGrowableBuffer[router.BookMsg](10)
	w := NewBookWriter(cfg, input, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	w.cancel()
	w.wg.Wait()

	input.Send(router.BookMsg{
		Code:    "005930",
		BestAsk: decimal.NewFromInt(71300),
		BestBid: decimal.NewFromInt(71200),
	})

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	calls := db.batches()
	if len(calls) != 1 {
		t.Fatalf("SendBatch calls = %d, want 1", len(calls))
	}
	if calls[0].ctxErr != nil {
		t.Errorf("final flush ran on a dead context: %v", calls[0].ctxErr)
	}
	if stats := w.Stats(); stats.Inserts != 1 {
		t.Errorf("Inserts = %d, want 1", stats.Inserts)
	}
}

func TestCandleWriter_StopFlushesPendingBatch(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	db := &recordingDB{}
	input := router.NewGrowableBuffer[CandleMsg](10)
	w := NewCandleWriter(cfg, input, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	w.cancel()
	w.wg.Wait()

	w.handleMessage(CandleMsg{Interval: "1d"})

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	calls := db.batches()
	if len(calls) != 1 {
		t.Fatalf("SendBatch calls = %d, want 1", len(calls))
	}
	if calls[0].ctxErr != nil {
		t.Errorf("final flush ran on a dead context: %v", calls[0].ctxErr)
	}
	if stats := w.Stats(); stats.Inserts != 1 {
		t.Errorf("Inserts = %d, want 1", stats.Inserts)
	}
}
