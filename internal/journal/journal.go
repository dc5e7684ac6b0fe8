package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Kind classifies a journal entry.
type Kind string

const (
	KindOrder  Kind = "order"  // Order submitted
	KindFill   Kind = "fill"   // Execution received
	KindCancel Kind = "cancel" // Order cancelled
	KindReject Kind = "reject" // Rejected by a pre-trade limit or the broker
)

// Entry is one journaled trading event.
type Entry struct {
	ID            uuid.UUID
	Kind          Kind
	Code          string
	Side          string
	Quantity      int64
	Price         int64 // KRW
	BrokerOrderID string
	Note          string
	CreatedAt     int64 // µs since epoch
}

// Journal persists trading events for audit and the report CLI.
type Journal struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Journal on the given pool.
func New(db *pgxpool.Pool, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, logger: logger}
}

// normalize fills defaulted fields before insert.
func (e *Entry) normalize() {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMicro()
	}
}

// Record inserts one entry.
func (j *Journal) Record(ctx context.Context, entry Entry) error {
	entry.normalize()

	_, err := j.db.Exec(ctx, `
		INSERT INTO journal (id, kind, code, side, quantity, price, broker_order_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, string(entry.Kind), entry.Code, entry.Side, entry.Quantity,
		entry.Price, entry.BrokerOrderID, entry.Note, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("record journal entry: %w", err)
	}

	j.logger.Debug("journaled",
		"kind", entry.Kind,
		"code", entry.Code,
		"side", entry.Side,
		"quantity", entry.Quantity,
	)
	return nil
}

// Recent returns the latest n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := j.db.Query(ctx, `
		SELECT id, kind, code, side, quantity, price, broker_order_id, note, created_at
		FROM journal
		ORDER BY created_at DESC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.Code, &e.Side, &e.Quantity,
			&e.Price, &e.BrokerOrderID, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}
