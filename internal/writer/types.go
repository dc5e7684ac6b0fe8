package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// batchSender issues a pgx batch. *pgxpool.Pool satisfies it; tests
// substitute a fake to exercise the flush paths without a database.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     1000,
		FlushInterval: 5 * time.Second,
	}
}

// tickRow represents a row for the ticks table.
type tickRow struct {
	Code       string
	ExchangeTs int64 // Microseconds, 0 when the feed omitted the time
	ReceivedAt int64 // Microseconds
	Price      int64 // KRW
	Change     int64 // KRW, signed
	ChangeRate float64
	Volume     int64 // Negative = seller-initiated
	CumVolume  int64
}

// bookRow represents a row for the best_quotes table.
type bookRow struct {
	Code       string
	ExchangeTs int64
	ReceivedAt int64
	BestAsk    int64 // KRW
	BestBid    int64 // KRW
}

// fillRow represents a row for the fills table.
type fillRow struct {
	BrokerOrderID string
	Code          string
	Side          string // "buy" or "sell"
	Quantity      int64
	Price         int64 // KRW
	ReceivedAt    int64
}

// candleRow represents a row for the candles table.
type candleRow struct {
	Code     string
	Interval string // "1d", "1m", ...
	OpenTs   int64  // Microseconds
	Open     int64  // KRW
	High     int64
	Low      int64
	Close    int64
	Volume   int64
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

// krw converts a decimal price to whole won for storage. The exchange
// quotes equities in integer won.
func krw(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
