package portfolio

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dhkang/kiwoom-trader/internal/model"
)

// Position is one tracked holding.
type Position struct {
	Code     string
	Quantity int64
	AvgPrice decimal.Decimal
}

// Notional returns quantity × average price.
func (p Position) Notional() decimal.Decimal {
	return p.AvgPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// Tracker maintains positions from streaming fills, reconciled
// against REST holdings snapshots. The snapshot is authoritative: the
// broker's books win over locally accumulated fills.
type Tracker struct {
	logger *slog.Logger

	mu        sync.RWMutex
	positions map[string]Position
}

// NewTracker creates an empty Tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger:    logger,
		positions: make(map[string]Position),
	}
}

// Apply updates a position from an execution report. Buys blend the
// average price; sells reduce quantity without touching it. The live
// trader feeds the tracker from balance frames via Update, which carry
// the broker's post-trade state; Apply is for callers that only see
// fills, such as replaying a recorded session.
func (t *Tracker) Apply(fill model.Fill) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.positions[fill.Code]
	pos.Code = fill.Code

	switch fill.Side {
	case model.SideBuy:
		oldNotional := pos.AvgPrice.Mul(decimal.NewFromInt(pos.Quantity))
		newQty := pos.Quantity + fill.Quantity
		if newQty > 0 {
			pos.AvgPrice = oldNotional.Add(fill.Notional()).
				Div(decimal.NewFromInt(newQty))
		}
		pos.Quantity = newQty

	case model.SideSell:
		pos.Quantity -= fill.Quantity
		if pos.Quantity < 0 {
			// A sell beyond the tracked quantity means local state has
			// drifted; clamp and let the next reconciliation correct it.
			t.logger.Warn("fill exceeds tracked position",
				"code", fill.Code,
				"fill_qty", fill.Quantity,
			)
			pos.Quantity = 0
		}
	}

	if pos.Quantity == 0 {
		delete(t.positions, fill.Code)
		return
	}
	t.positions[fill.Code] = pos
}

// Update sets one position outright, from a real-time balance frame.
// The broker reports the full post-trade quantity and average price,
// so no blending is needed.
func (t *Tracker) Update(code string, quantity int64, avgPrice decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if quantity == 0 {
		delete(t.positions, code)
		return
	}
	t.positions[code] = Position{Code: code, Quantity: quantity, AvgPrice: avgPrice}
}

// SetHoldings replaces all positions with a REST holdings snapshot.
func (t *Tracker) SetHoldings(holdings []model.Holding) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.positions = make(map[string]Position, len(holdings))
	for _, h := range holdings {
		if h.Quantity == 0 {
			continue
		}
		t.positions[h.Code] = Position{
			Code:     h.Code,
			Quantity: h.Quantity,
			AvgPrice: h.AvgPrice,
		}
	}
}

// Positions returns a snapshot of all positions, sorted by code.
func (t *Tracker) Positions() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Position returns the position for one code; ok is false when flat.
func (t *Tracker) Position(code string) (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.positions[code]
	return p, ok
}

// TotalExposure returns the summed notional of all positions at their
// average prices.
func (t *Tracker) TotalExposure() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := decimal.Zero
	for _, p := range t.positions {
		total = total.Add(p.Notional())
	}
	return total
}

// Weights returns each position's share of total exposure, sorted by
// code. Used by the diversification metrics.
func (t *Tracker) Weights() []float64 {
	positions := t.Positions()
	total := t.TotalExposure()
	if total.IsZero() {
		return nil
	}

	out := make([]float64, len(positions))
	for i, p := range positions {
		w, _ := p.Notional().Div(total).Float64()
		out[i] = w
	}
	return out
}
