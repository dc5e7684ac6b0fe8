package guard

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dhkang/kiwoom-trader/internal/model"
)

// Limit names a pre-trade check.
type Limit string

const (
	LimitMaxOrderNotional    Limit = "max_order_notional"
	LimitMaxPositionNotional Limit = "max_position_notional"
	LimitMaxOpenPositions    Limit = "max_open_positions"
	LimitInsufficientCash    Limit = "insufficient_cash"
)

// LimitError reports which limit rejected an order and by how much.
type LimitError struct {
	Limit   Limit
	Code    string
	Current decimal.Decimal
	Max     decimal.Decimal
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("order rejected by %s for %s: %s exceeds %s",
		e.Limit, e.Code, e.Current, e.Max)
}

// Config holds the account-level limits.
type Config struct {
	MaxOrderKRW      decimal.Decimal // Max notional per order
	MaxPositionKRW   decimal.Decimal // Max notional per symbol after the order
	MaxOpenPositions int             // Max distinct symbols held
}

// Position is the guard's view of one holding.
type Position struct {
	Code     string
	Quantity int64
	AvgPrice decimal.Decimal
}

// Notional returns quantity × average price.
func (p Position) Notional() decimal.Decimal {
	return p.AvgPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// Guard enforces pre-trade limits in front of order submission.
type Guard struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Guard.
func New(cfg Config, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{cfg: cfg, logger: logger}
}

// Check validates an order against the limits given current positions
// and available cash. price is the reference price used for notional
// (the limit price, or the latest quote for market orders). A non-nil
// error is always a *LimitError.
func (g *Guard) Check(order model.Order, price decimal.Decimal, positions []Position, cash decimal.Decimal) error {
	notional := price.Mul(decimal.NewFromInt(order.Quantity))

	if g.cfg.MaxOrderKRW.IsPositive() && notional.GreaterThan(g.cfg.MaxOrderKRW) {
		return g.reject(&LimitError{
			Limit:   LimitMaxOrderNotional,
			Code:    order.Code,
			Current: notional,
			Max:     g.cfg.MaxOrderKRW,
		})
	}

	// Sells reduce exposure; the remaining limits gate buys only.
	if order.Side == model.SideSell {
		return nil
	}

	var existing Position
	held := 0
	for _, p := range positions {
		if p.Quantity == 0 {
			continue
		}
		held++
		if p.Code == order.Code {
			existing = p
		}
	}

	if g.cfg.MaxPositionKRW.IsPositive() {
		after := existing.Notional().Add(notional)
		if after.GreaterThan(g.cfg.MaxPositionKRW) {
			return g.reject(&LimitError{
				Limit:   LimitMaxPositionNotional,
				Code:    order.Code,
				Current: after,
				Max:     g.cfg.MaxPositionKRW,
			})
		}
	}

	if g.cfg.MaxOpenPositions > 0 && existing.Quantity == 0 && held >= g.cfg.MaxOpenPositions {
		return g.reject(&LimitError{
			Limit:   LimitMaxOpenPositions,
			Code:    order.Code,
			Current: decimal.NewFromInt(int64(held)),
			Max:     decimal.NewFromInt(int64(g.cfg.MaxOpenPositions)),
		})
	}

	if notional.GreaterThan(cash) {
		return g.reject(&LimitError{
			Limit:   LimitInsufficientCash,
			Code:    order.Code,
			Current: notional,
			Max:     cash,
		})
	}

	return nil
}

func (g *Guard) reject(err *LimitError) error {
	g.logger.Warn("order rejected",
		"limit", err.Limit,
		"code", err.Code,
		"current", err.Current,
		"max", err.Max,
	)
	return err
}
