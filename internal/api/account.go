package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dhkang/kiwoom-trader/internal/model"
)

// GetBalance fetches the account cash summary and holdings in one call;
// the broker reports them together on the evaluation-balance endpoint.
func (c *Client) GetBalance(ctx context.Context, account string) (model.Balance, []model.Holding, error) {
	req := map[string]string{
		"acnt_no": account,
		"qry_tp":  "1", // Aggregate
		"dmst_tp": "KRX",
	}

	var (
		balance  model.Balance
		holdings []model.Holding
		first    = true
	)

	err := c.callPaged(ctx, apiBalance, pathAccount, req, func(page []byte) error {
		var wire balanceWire
		if err := json.Unmarshal(page, &wire); err != nil {
			return fmt.Errorf("unmarshal balance: %w", err)
		}

		if first {
			first = false
			b, err := convertBalance(account, wire)
			if err != nil {
				return err
			}
			balance = b
		}

		for _, hw := range wire.Holdings {
			h, err := convertHolding(account, hw)
			if err != nil {
				return err
			}
			holdings = append(holdings, h)
		}
		return nil
	})
	if err != nil {
		return model.Balance{}, nil, err
	}

	return balance, holdings, nil
}

func convertBalance(account string, wire balanceWire) (model.Balance, error) {
	cash, err := parsePrice(wire.Cash)
	if err != nil {
		return model.Balance{}, fmt.Errorf("balance cash: %w", err)
	}
	totalEval, err := parsePrice(wire.TotalEval)
	if err != nil {
		return model.Balance{}, fmt.Errorf("balance total eval: %w", err)
	}
	totalPurchase, err := parsePrice(wire.TotalPurchase)
	if err != nil {
		return model.Balance{}, fmt.Errorf("balance total purchase: %w", err)
	}
	pnl, err := parseSigned(wire.PnL)
	if err != nil {
		return model.Balance{}, fmt.Errorf("balance pnl: %w", err)
	}

	return model.Balance{
		Account:       account,
		Cash:          cash,
		TotalEval:     totalEval,
		TotalPurchase: totalPurchase,
		PnL:           pnl,
		UpdatedAt:     time.Now().UnixMicro(),
	}, nil
}

func convertHolding(account string, wire holdingWire) (model.Holding, error) {
	qty, err := parseInt(wire.Quantity)
	if err != nil {
		return model.Holding{}, fmt.Errorf("holding quantity: %w", err)
	}
	avgPrice, err := parsePrice(wire.AvgPrice)
	if err != nil {
		return model.Holding{}, fmt.Errorf("holding avg price: %w", err)
	}
	curPrice, err := parsePrice(wire.CurPrice)
	if err != nil {
		return model.Holding{}, fmt.Errorf("holding current price: %w", err)
	}
	evalAmt, err := parsePrice(wire.EvalAmt)
	if err != nil {
		return model.Holding{}, fmt.Errorf("holding eval amount: %w", err)
	}
	pnl, err := parseSigned(wire.PnL)
	if err != nil {
		return model.Holding{}, fmt.Errorf("holding pnl: %w", err)
	}
	pnlRate, err := parseFloat(wire.PnLRate)
	if err != nil {
		return model.Holding{}, fmt.Errorf("holding pnl rate: %w", err)
	}

	return model.Holding{
		Account:      account,
		Code:         wire.Code,
		Name:         wire.Name,
		Quantity:     qty,
		AvgPrice:     avgPrice,
		CurrentPrice: curPrice,
		EvalAmount:   evalAmt,
		PnL:          pnl,
		PnLRate:      pnlRate,
	}, nil
}

// UnfilledOrder is an open order reported by the brokerage.
type UnfilledOrder struct {
	OrderID   string
	Code      string
	Name      string
	Side      model.Side
	Quantity  int64
	OpenQty   int64
	FilledQty int64
	Price     string
}

// GetUnfilledOrders fetches all open (not fully filled) orders.
func (c *Client) GetUnfilledOrders(ctx context.Context, account string) ([]UnfilledOrder, error) {
	req := map[string]string{
		"acnt_no":    account,
		"all_stk_tp": "0", // All stocks
	}

	var orders []UnfilledOrder
	err := c.callPaged(ctx, apiUnfilled, pathAccount, req, func(page []byte) error {
		var wire unfilledWire
		if err := json.Unmarshal(page, &wire); err != nil {
			return fmt.Errorf("unmarshal unfilled orders: %w", err)
		}

		for _, ow := range wire.Orders {
			qty, err := parseInt(ow.Quantity)
			if err != nil {
				return fmt.Errorf("unfilled quantity: %w", err)
			}
			openQty, err := parseInt(ow.OpenQty)
			if err != nil {
				return fmt.Errorf("unfilled open qty: %w", err)
			}
			filledQty, err := parseInt(ow.FilledQty)
			if err != nil {
				return fmt.Errorf("unfilled filled qty: %w", err)
			}

			orders = append(orders, UnfilledOrder{
				OrderID:   ow.OrderID,
				Code:      ow.Code,
				Name:      ow.Name,
				Side:      sideFromName(ow.Side),
				Quantity:  qty,
				OpenQty:   openQty,
				FilledQty: filledQty,
				Price:     ow.Price,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return orders, nil
}

// GetFills fetches today's executions for the account.
func (c *Client) GetFills(ctx context.Context, account string) ([]model.Fill, error) {
	req := map[string]string{
		"acnt_no": account,
		"qry_tp":  "1", // Executed only
	}

	var fills []model.Fill
	err := c.callPaged(ctx, apiFills, pathAccount, req, func(page []byte) error {
		var wire fillsWire
		if err := json.Unmarshal(page, &wire); err != nil {
			return fmt.Errorf("unmarshal fills: %w", err)
		}

		for _, fw := range wire.Fills {
			fill, err := convertFill(fw)
			if err != nil {
				return err
			}
			fills = append(fills, fill)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return fills, nil
}

func convertFill(wire fillWire) (model.Fill, error) {
	qty, err := parseInt(wire.Quantity)
	if err != nil {
		return model.Fill{}, fmt.Errorf("fill quantity: %w", err)
	}
	price, err := parsePrice(wire.Price)
	if err != nil {
		return model.Fill{}, fmt.Errorf("fill price: %w", err)
	}
	fee, err := parsePrice(wire.Fee)
	if err != nil {
		return model.Fill{}, fmt.Errorf("fill fee: %w", err)
	}
	tax, err := parsePrice(wire.Tax)
	if err != nil {
		return model.Fill{}, fmt.Errorf("fill tax: %w", err)
	}

	exchangeTS := int64(0)
	if wire.Time != "" {
		now := time.Now().In(kst)
		if t, err := time.ParseInLocation("20060102150405", now.Format("20060102")+wire.Time, kst); err == nil {
			exchangeTS = t.UnixMicro()
		}
	}

	return model.Fill{
		ExecID:        wire.ExecID,
		BrokerOrderID: wire.OrderID,
		Code:          wire.Code,
		Side:          sideFromName(wire.Side),
		Quantity:      qty,
		Price:         price,
		Fee:           fee,
		Tax:           tax,
		ExchangeTS:    exchangeTS,
		ReceivedAt:    time.Now().UnixMicro(),
	}, nil
}

// sideFromName maps the broker's Korean side labels to model.Side.
func sideFromName(name string) model.Side {
	switch name {
	case "매수", "매수정정", "buy":
		return model.SideBuy
	default:
		return model.SideSell
	}
}
