package api

import (
	"context"
	"fmt"
	"time"

	"github.com/dhkang/kiwoom-trader/internal/model"
)

// GetQuote fetches the current quote for a stock.
func (c *Client) GetQuote(ctx context.Context, code string) (model.Quote, error) {
	req := map[string]string{"stk_cd": code}

	var wire quoteWire
	if err := c.call(ctx, apiStockInfo, pathStockInfo, req, &wire); err != nil {
		return model.Quote{}, err
	}

	return convertQuote(wire)
}

func convertQuote(wire quoteWire) (model.Quote, error) {
	price, err := parsePrice(wire.CurPrice)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote price: %w", err)
	}
	change, err := parseSigned(wire.Change)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote change: %w", err)
	}
	rate, err := parseFloat(wire.ChangeRate)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote change rate: %w", err)
	}
	volume, err := parseInt(wire.Volume)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote volume: %w", err)
	}
	value, err := parseInt(wire.Value)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote value: %w", err)
	}
	open, err := parsePrice(wire.Open)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote open: %w", err)
	}
	high, err := parsePrice(wire.High)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote high: %w", err)
	}
	low, err := parsePrice(wire.Low)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote low: %w", err)
	}
	prevClose, err := parsePrice(wire.PrevClose)
	if err != nil {
		return model.Quote{}, fmt.Errorf("quote prev close: %w", err)
	}

	return model.Quote{
		Code:       wire.Code,
		Name:       wire.Name,
		Price:      price,
		Change:     change,
		ChangeRate: rate,
		Volume:     volume,
		Value:      value,
		Open:       open,
		High:       high,
		Low:        low,
		PrevClose:  prevClose,
		ReceivedAt: time.Now().UnixMicro(),
	}, nil
}

// GetOrderBook fetches the ten-level order book for a stock.
func (c *Client) GetOrderBook(ctx context.Context, code string) (model.OrderBook, error) {
	req := map[string]string{"stk_cd": code}

	var wire orderBookWire
	if err := c.call(ctx, apiOrderBook, pathMarket, req, &wire); err != nil {
		return model.OrderBook{}, err
	}

	book := model.OrderBook{
		Code:       code,
		Asks:       make([]model.BookLevel, 0, len(wire.Asks)),
		Bids:       make([]model.BookLevel, 0, len(wire.Bids)),
		ReceivedAt: time.Now().UnixMicro(),
	}

	for _, lv := range wire.Asks {
		level, err := convertBookLevel(lv)
		if err != nil {
			return model.OrderBook{}, fmt.Errorf("ask level: %w", err)
		}
		book.Asks = append(book.Asks, level)
	}
	for _, lv := range wire.Bids {
		level, err := convertBookLevel(lv)
		if err != nil {
			return model.OrderBook{}, fmt.Errorf("bid level: %w", err)
		}
		book.Bids = append(book.Bids, level)
	}

	return book, nil
}

func convertBookLevel(wire bookLevelWire) (model.BookLevel, error) {
	price, err := parsePrice(wire.Price)
	if err != nil {
		return model.BookLevel{}, err
	}
	size, err := parseInt(wire.Size)
	if err != nil {
		return model.BookLevel{}, err
	}
	return model.BookLevel{Price: price, Size: size}, nil
}

// StockInfo is a listed-stock search result.
type StockInfo struct {
	Code   string
	Name   string
	Market string
}

// SearchStocks returns listed stocks, optionally filtered by market
// ("0" = KOSPI, "10" = KOSDAQ, "" = all).
func (c *Client) SearchStocks(ctx context.Context, market string) ([]StockInfo, error) {
	req := map[string]string{"mrkt_tp": market}

	var wire stockListWire
	if err := c.call(ctx, apiStockList, pathStockInfo, req, &wire); err != nil {
		return nil, err
	}

	stocks := make([]StockInfo, 0, len(wire.Stocks))
	for _, s := range wire.Stocks {
		stocks = append(stocks, StockInfo{
			Code:   s.Code,
			Name:   s.Name,
			Market: s.Market,
		})
	}
	return stocks, nil
}

// GetApprovalKey fetches the WebSocket approval key for the stream layer.
func (c *Client) GetApprovalKey(ctx context.Context) (string, error) {
	var wire approvalKeyWire
	if err := c.call(ctx, apiApprovalKey, pathApproval, map[string]string{}, &wire); err != nil {
		return "", err
	}
	if wire.ApprovalKey == "" {
		return "", fmt.Errorf("approval key response empty")
	}
	return wire.ApprovalKey, nil
}
