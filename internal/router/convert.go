package router

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dhkang/kiwoom-trader/internal/stream"
)

// kst is the exchange timezone. Real-time frames carry session-local
// HHMMSS times only.
var kst = time.FixedZone("KST", 9*60*60)

// parseTick converts a type-0B entry into a TickMsg.
func parseTick(entry stream.RealData, receivedAt int64) (TickMsg, error) {
	code := entry.Item
	if c := entry.Values[stream.FieldCode]; c != "" {
		code = c
	}

	price, err := parseUnsigned(entry.Values[stream.FieldPrice])
	if err != nil {
		return TickMsg{}, fmt.Errorf("price: %w", err)
	}
	change, err := parseDecimal(entry.Values[stream.FieldChange])
	if err != nil {
		return TickMsg{}, fmt.Errorf("change: %w", err)
	}
	rate, err := parseFloat(entry.Values[stream.FieldRate])
	if err != nil {
		return TickMsg{}, fmt.Errorf("rate: %w", err)
	}
	volume, err := parseSignedInt(entry.Values[stream.FieldVolume])
	if err != nil {
		return TickMsg{}, fmt.Errorf("volume: %w", err)
	}
	cumVolume, err := parseSignedInt(entry.Values[stream.FieldCumVolume])
	if err != nil {
		return TickMsg{}, fmt.Errorf("cum volume: %w", err)
	}

	return TickMsg{
		Code:       code,
		Price:      price,
		Change:     change,
		ChangeRate: rate,
		Volume:     volume,
		CumVolume:  cumVolume,
		ExchangeTs: sessionTime(entry.Values[stream.FieldTime]),
		ReceivedAt: receivedAt,
	}, nil
}

// parseBook converts a type-0C/0D entry into a BookMsg.
func parseBook(entry stream.RealData, receivedAt int64) (BookMsg, error) {
	ask, err := parseUnsigned(entry.Values[stream.FieldBestAsk])
	if err != nil {
		return BookMsg{}, fmt.Errorf("best ask: %w", err)
	}
	bid, err := parseUnsigned(entry.Values[stream.FieldBestBid])
	if err != nil {
		return BookMsg{}, fmt.Errorf("best bid: %w", err)
	}

	return BookMsg{
		Code:       entry.Item,
		BestAsk:    ask,
		BestBid:    bid,
		ExchangeTs: sessionTime(entry.Values[stream.FieldTime]),
		ReceivedAt: receivedAt,
	}, nil
}

// parseFill converts a type-00 entry into a FillMsg.
func parseFill(entry stream.RealData, receivedAt int64) (FillMsg, error) {
	code := strings.TrimPrefix(entry.Values[stream.FieldCode], "A")
	if code == "" {
		code = entry.Item
	}

	qty, err := parseSignedInt(entry.Values[stream.FieldFillQty])
	if err != nil {
		return FillMsg{}, fmt.Errorf("quantity: %w", err)
	}
	price, err := parseUnsigned(entry.Values[stream.FieldFillPrice])
	if err != nil {
		return FillMsg{}, fmt.Errorf("price: %w", err)
	}

	side := "sell"
	if entry.Values[stream.FieldOrderSide] == "2" {
		side = "buy"
	}

	return FillMsg{
		BrokerOrderID: entry.Values[stream.FieldOrderID],
		Code:          code,
		Side:          side,
		Quantity:      qty,
		Price:         price,
		ReceivedAt:    receivedAt,
	}, nil
}

// parseBalance converts a type-04 entry into a BalanceMsg.
func parseBalance(entry stream.RealData, receivedAt int64) (BalanceMsg, error) {
	code := strings.TrimPrefix(entry.Values[stream.FieldCode], "A")
	if code == "" {
		code = entry.Item
	}

	qty, err := parseSignedInt(entry.Values[stream.FieldHoldQty])
	if err != nil {
		return BalanceMsg{}, fmt.Errorf("quantity: %w", err)
	}
	avg, err := parseUnsigned(entry.Values[stream.FieldAvgPrice])
	if err != nil {
		return BalanceMsg{}, fmt.Errorf("avg price: %w", err)
	}

	return BalanceMsg{
		Code:       code,
		Quantity:   qty,
		AvgPrice:   avg,
		ReceivedAt: receivedAt,
	}, nil
}

// parseUnsigned parses a numeric string, dropping the +/- direction
// marker the feed prefixes onto prices.
func parseUnsigned(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "+-")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// parseDecimal parses a numeric string keeping its sign.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// parseSignedInt parses an integer string keeping its sign.
func parseSignedInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// parseFloat parses a float string keeping its sign.
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// sessionTime joins an HHMMSS execution time to today's KST date and
// returns microseconds since epoch. Returns 0 when the field is absent
// or malformed.
func sessionTime(hhmmss string) int64 {
	if len(hhmmss) != 6 {
		return 0
	}
	now := time.Now().In(kst)
	t, err := time.ParseInLocation("20060102150405", now.Format("20060102")+hhmmss, kst)
	if err != nil {
		return 0
	}
	return t.UnixMicro()
}
