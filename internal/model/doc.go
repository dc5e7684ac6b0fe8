// Package model defines the domain types shared across the trader.
//
// Conventions:
//   - Money is decimal.Decimal in KRW; Kiwoom prices are whole won.
//   - Timestamps are int64 microseconds since epoch. ExchangeTS is the
//     broker's clock; ReceivedAt is ours.
//   - Stock codes are the 6-digit KRX codes (e.g., "005930").
package model
