package api

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dhkang/kiwoom-trader/internal/model"
)

// OrderRequest describes an order to submit. ClientOrderID is optional;
// when zero a new one is assigned so retried submissions after an
// ambiguous failure stay recognizable during reconciliation.
type OrderRequest struct {
	Account       string
	Code          string
	Side          model.Side
	Type          model.OrderType
	Quantity      int64
	LimitPrice    decimal.Decimal // Required for limit orders
	ClientOrderID uuid.UUID
}

func (r *OrderRequest) validate() error {
	if r.Account == "" {
		return fmt.Errorf("order account is required")
	}
	if r.Code == "" {
		return fmt.Errorf("order stock code is required")
	}
	if r.Quantity < 1 {
		return fmt.Errorf("order quantity must be >= 1, got %d", r.Quantity)
	}
	if r.Type == model.OrderTypeLimit && !r.LimitPrice.IsPositive() {
		return fmt.Errorf("limit order requires a positive price")
	}
	switch r.Side {
	case model.SideBuy, model.SideSell:
	default:
		return fmt.Errorf("order side must be buy or sell, got %q", r.Side)
	}
	return nil
}

// tradeType maps the order type to the broker's trade type code.
func (r *OrderRequest) tradeType() string {
	if r.Type == model.OrderTypeMarket {
		return "3" // Market
	}
	return "0" // Limit
}

// PlaceOrder submits a new order and returns the locally tracked Order
// with the broker-assigned order number filled in.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (model.Order, error) {
	if err := req.validate(); err != nil {
		return model.Order{}, err
	}

	clientOrderID := req.ClientOrderID
	if clientOrderID == uuid.Nil {
		clientOrderID = uuid.New()
	}

	apiID := apiOrderBuy
	if req.Side == model.SideSell {
		apiID = apiOrderSell
	}

	body := map[string]string{
		"acnt_no": req.Account,
		"dmst_tp": "KRX",
		"stk_cd":  req.Code,
		"ord_qty": fmt.Sprintf("%d", req.Quantity),
		"trde_tp": req.tradeType(),
		"ord_uv":  "",
	}
	if req.Type == model.OrderTypeLimit {
		body["ord_uv"] = req.LimitPrice.String()
	}

	var wire orderResponseWire
	if err := c.call(ctx, apiID, pathOrder, body, &wire); err != nil {
		return model.Order{}, err
	}
	if wire.OrderID == "" {
		return model.Order{}, fmt.Errorf("order accepted but no order number returned")
	}

	order := model.Order{
		ClientOrderID: clientOrderID,
		BrokerOrderID: wire.OrderID,
		Account:       req.Account,
		Code:          req.Code,
		Side:          req.Side,
		Type:          req.Type,
		Quantity:      req.Quantity,
		LimitPrice:    req.LimitPrice,
		Status:        "accepted",
		SubmittedAt:   time.Now().UnixMicro(),
	}

	c.logger.Info("order placed",
		"code", req.Code,
		"side", req.Side,
		"qty", req.Quantity,
		"broker_order_id", wire.OrderID,
		"client_order_id", clientOrderID,
	)

	return order, nil
}

// ModifyOrder changes the price and/or quantity of an open order.
// Returns the broker's new order number (modifications re-number).
func (c *Client) ModifyOrder(ctx context.Context, account, orderID, code string, quantity int64, price decimal.Decimal) (string, error) {
	if quantity < 1 {
		return "", fmt.Errorf("modify quantity must be >= 1, got %d", quantity)
	}
	if !price.IsPositive() {
		return "", fmt.Errorf("modify requires a positive price")
	}

	body := map[string]string{
		"acnt_no":     account,
		"dmst_tp":     "KRX",
		"orig_ord_no": orderID,
		"stk_cd":      code,
		"mdfy_qty":    fmt.Sprintf("%d", quantity),
		"mdfy_uv":     price.String(),
	}

	var wire orderResponseWire
	if err := c.call(ctx, apiOrderModify, pathOrder, body, &wire); err != nil {
		return "", err
	}

	c.logger.Info("order modified",
		"orig_order_id", orderID,
		"new_order_id", wire.OrderID,
		"qty", quantity,
		"price", price,
	)

	return wire.OrderID, nil
}

// CancelOrder cancels an open order. Quantity 0 cancels the full
// remaining amount.
func (c *Client) CancelOrder(ctx context.Context, account, orderID, code string, quantity int64) error {
	body := map[string]string{
		"acnt_no":     account,
		"dmst_tp":     "KRX",
		"orig_ord_no": orderID,
		"stk_cd":      code,
		"cncl_qty":    fmt.Sprintf("%d", quantity),
	}

	var wire orderResponseWire
	if err := c.call(ctx, apiOrderCancel, pathOrder, body, &wire); err != nil {
		return err
	}

	c.logger.Info("order cancelled",
		"order_id", orderID,
		"code", code,
		"qty", quantity,
	)

	return nil
}
