package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Market Data Types
// -----------------------------------------------------------------------------

// Quote is a point-in-time price snapshot for a stock.
type Quote struct {
	Code       string          // Stock code (e.g., "005930")
	Name       string          // Stock name
	Price      decimal.Decimal // Current price (KRW)
	Change     decimal.Decimal // Change vs. previous close (signed)
	ChangeRate float64         // Change rate (%)
	Volume     int64           // Accumulated volume
	Value      int64           // Accumulated traded value (KRW, millions)
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	PrevClose  decimal.Decimal
	ExchangeTS int64 // Broker timestamp (µs since epoch)
	ReceivedAt int64 // Local receive timestamp (µs since epoch)
}

// Candle is a single OHLCV bar.
type Candle struct {
	Code   string
	Date   time.Time // Bar open time (KST date for daily bars)
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// BookLevel is one price level of the order book.
type BookLevel struct {
	Price decimal.Decimal
	Size  int64
}

// OrderBook is the ten-level aggregated order book for a stock.
type OrderBook struct {
	Code       string
	Asks       []BookLevel // Ascending from best ask
	Bids       []BookLevel // Descending from best bid
	ExchangeTS int64       // µs since epoch
	ReceivedAt int64       // µs since epoch
}

// Tick is a single executed trade observed on the real-time stream.
type Tick struct {
	Code       string
	Price      decimal.Decimal
	Change     decimal.Decimal
	Volume     int64 // Signed: positive = buy-side execution
	CumVolume  int64 // Accumulated session volume
	ExchangeTS int64 // µs since epoch
	ReceivedAt int64 // µs since epoch
}

// -----------------------------------------------------------------------------
// Account Types
// -----------------------------------------------------------------------------

// Balance is the account cash summary.
type Balance struct {
	Account       string
	Cash          decimal.Decimal // Withdrawable cash (KRW)
	TotalEval     decimal.Decimal // Total evaluation amount
	TotalPurchase decimal.Decimal // Total purchase amount
	PnL           decimal.Decimal // Unrealized profit/loss
	UpdatedAt     int64           // µs since epoch
}

// Holding is one position reported by the brokerage.
type Holding struct {
	Account      string
	Code         string
	Name         string
	Quantity     int64
	AvgPrice     decimal.Decimal
	CurrentPrice decimal.Decimal
	EvalAmount   decimal.Decimal
	PnL          decimal.Decimal
	PnLRate      float64
}

// -----------------------------------------------------------------------------
// Order Types
// -----------------------------------------------------------------------------

// Side distinguishes buy and sell orders.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType distinguishes market and limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// Order is an order as tracked locally. ClientOrderID is assigned before
// submission so a retried submit is recognizable during reconciliation.
type Order struct {
	ClientOrderID uuid.UUID
	BrokerOrderID string // Assigned by the brokerage on acceptance
	Account       string
	Code          string
	Side          Side
	Type          OrderType
	Quantity      int64
	LimitPrice    decimal.Decimal // Zero for market orders
	Status        string          // "accepted", "partial", "filled", "cancelled", "rejected"
	SubmittedAt   int64           // µs since epoch
}

// Fill is an execution report for an order.
type Fill struct {
	ExecID        string // Brokerage execution number
	BrokerOrderID string
	Code          string
	Side          Side
	Quantity      int64
	Price         decimal.Decimal
	Fee           decimal.Decimal
	Tax           decimal.Decimal
	ExchangeTS    int64 // µs since epoch
	ReceivedAt    int64 // µs since epoch
}

// Notional returns price × quantity for the fill.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(decimal.NewFromInt(f.Quantity))
}
