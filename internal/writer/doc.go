// Package writer contains batch database writers.
//
// Each writer consumes one typed buffer from the router (or the candle
// poller), accumulates rows, and flushes with pgx.Batch when the batch
// fills or the flush interval elapses. Inserts use ON CONFLICT DO
// NOTHING so replays and re-polls stay idempotent; tables are
// append-only.
//
// Prices are stored as whole won. The exchange quotes equities in
// integer KRW, so nothing is lost.
package writer
