package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dhkang/kiwoom-trader/internal/model"
)

// GetDailyCandles fetches daily OHLCV bars for a stock, newest first as
// the broker returns them, converted to oldest-first. The broker pages
// through history via cont-yn/next-key headers; maxBars bounds how far
// back to walk (0 = first page only).
func (c *Client) GetDailyCandles(ctx context.Context, code string, baseDate time.Time, maxBars int) ([]model.Candle, error) {
	req := map[string]string{
		"stk_cd":       code,
		"base_dt":      baseDate.In(kst).Format("20060102"),
		"upd_stkpc_tp": "1", // Adjusted prices
	}

	var candles []model.Candle
	err := c.callPaged(ctx, apiDailyCandles, pathChart, req, func(page []byte) error {
		var wire dailyCandlesWire
		if err := json.Unmarshal(page, &wire); err != nil {
			return fmt.Errorf("unmarshal daily chart: %w", err)
		}

		for _, cw := range wire.Candles {
			candle, err := convertCandle(code, cw, "20060102")
			if err != nil {
				return err
			}
			candles = append(candles, candle)
			if maxBars > 0 && len(candles) >= maxBars {
				return errPageLimit
			}
		}
		if maxBars == 0 {
			return errPageLimit
		}
		return nil
	})
	if err != nil && err != errPageLimit {
		return nil, err
	}

	reverse(candles)
	return candles, nil
}

// GetMinuteCandles fetches minute bars for a stock (first page only;
// intraday history beyond one page is not needed by the poller).
func (c *Client) GetMinuteCandles(ctx context.Context, code string, interval int) ([]model.Candle, error) {
	req := map[string]string{
		"stk_cd":       code,
		"tic_scope":    fmt.Sprintf("%d", interval),
		"upd_stkpc_tp": "1",
	}

	var wire minuteCandlesWire
	if err := c.call(ctx, apiMinuteCandles, pathChart, req, &wire); err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(wire.Candles))
	for _, cw := range wire.Candles {
		candle, err := convertCandle(code, cw, "20060102150405")
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	reverse(candles)
	return candles, nil
}

// errPageLimit stops callPaged early once enough bars are collected.
var errPageLimit = fmt.Errorf("page limit reached")

func convertCandle(code string, wire candleWire, layout string) (model.Candle, error) {
	date, err := time.ParseInLocation(layout, wire.Date, kst)
	if err != nil {
		return model.Candle{}, fmt.Errorf("candle date %q: %w", wire.Date, err)
	}
	open, err := parsePrice(wire.Open)
	if err != nil {
		return model.Candle{}, fmt.Errorf("candle open: %w", err)
	}
	high, err := parsePrice(wire.High)
	if err != nil {
		return model.Candle{}, fmt.Errorf("candle high: %w", err)
	}
	low, err := parsePrice(wire.Low)
	if err != nil {
		return model.Candle{}, fmt.Errorf("candle low: %w", err)
	}
	cls, err := parsePrice(wire.Close)
	if err != nil {
		return model.Candle{}, fmt.Errorf("candle close: %w", err)
	}
	volume, err := parseInt(wire.Volume)
	if err != nil {
		return model.Candle{}, fmt.Errorf("candle volume: %w", err)
	}

	return model.Candle{
		Code:   code,
		Date:   date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  cls,
		Volume: volume,
	}, nil
}

func reverse(candles []model.Candle) {
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
}
