package router

import (
	"github.com/shopspring/decimal"
)

// RouterConfig configures buffer sizes for each output stream.
type RouterConfig struct {
	TickBufferSize    int
	BookBufferSize    int
	FillBufferSize    int
	BalanceBufferSize int
}

// DefaultRouterConfig returns sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		TickBufferSize:    50000,
		BookBufferSize:    50000,
		FillBufferSize:    10000,
		BalanceBufferSize: 10000,
	}
}

// TickMsg is a parsed stock execution (real-time type 0B).
type TickMsg struct {
	Code       string          // Stock code
	Price      decimal.Decimal // Execution price (sign stripped)
	Change     decimal.Decimal // Change vs. previous close (signed)
	ChangeRate float64         // Change rate in percent
	Volume     int64           // Execution volume, negative when seller-initiated
	CumVolume  int64           // Accumulated volume for the session
	ExchangeTs int64           // Exchange execution time (microseconds since epoch, KST session date)
	ReceivedAt int64           // Local receive timestamp (microseconds since epoch)
}

// BookMsg is a parsed best-quote update (real-time types 0C/0D).
type BookMsg struct {
	Code       string
	BestAsk    decimal.Decimal
	BestBid    decimal.Decimal
	ExchangeTs int64
	ReceivedAt int64
}

// FillMsg is a parsed own-order execution report (real-time type 00).
type FillMsg struct {
	BrokerOrderID string
	Code          string
	Side          string // "buy" or "sell"
	Quantity      int64
	Price         decimal.Decimal
	ReceivedAt    int64
}

// BalanceMsg is a parsed holdings update (real-time type 04).
type BalanceMsg struct {
	Code       string
	Quantity   int64
	AvgPrice   decimal.Decimal
	ReceivedAt int64
}
