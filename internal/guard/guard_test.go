package guard

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dhkang/kiwoom-trader/internal/model"
)

func testGuard() *Guard {
	return New(Config{
		MaxOrderKRW:      decimal.NewFromInt(10_000_000),
		MaxPositionKRW:   decimal.NewFromInt(30_000_000),
		MaxOpenPositions: 3,
	}, nil)
}

func buyOrder(code string, qty int64) model.Order {
	return model.Order{
		Code:     code,
		Side:     model.SideBuy,
		Type:     model.OrderTypeLimit,
		Quantity: qty,
	}
}

func krw(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestCheckPasses(t *testing.T) {
	g := testGuard()

	err := g.Check(buyOrder("005930", 100), krw(71200), nil, krw(100_000_000))
	if err != nil {
		t.Errorf("Check = %v, want nil", err)
	}
}

func TestCheckMaxOrderNotional(t *testing.T) {
	g := testGuard()

	// 200 × 71,200 = 14,240,000 > 10,000,000.
	err := g.Check(buyOrder("005930", 200), krw(71200), nil, krw(100_000_000))

	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error type = %T, want *LimitError", err)
	}
	if limitErr.Limit != LimitMaxOrderNotional {
		t.Errorf("Limit = %s, want %s", limitErr.Limit, LimitMaxOrderNotional)
	}
}

func TestCheckMaxPositionNotional(t *testing.T) {
	g := testGuard()

	positions := []Position{
		{Code: "005930", Quantity: 400, AvgPrice: krw(70000)}, // 28M held
	}

	// 28M + 7.12M > 30M.
	err := g.Check(buyOrder("005930", 100), krw(71200), positions, krw(100_000_000))

	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error type = %T, want *LimitError", err)
	}
	if limitErr.Limit != LimitMaxPositionNotional {
		t.Errorf("Limit = %s, want %s", limitErr.Limit, LimitMaxPositionNotional)
	}
}

func TestCheckMaxOpenPositions(t *testing.T) {
	g := testGuard()

	positions := []Position{
		{Code: "005930", Quantity: 10, AvgPrice: krw(70000)},
		{Code: "000660", Quantity: 10, AvgPrice: krw(190000)},
		{Code: "035720", Quantity: 10, AvgPrice: krw(45000)},
	}

	// A fourth symbol breaches the count limit.
	err := g.Check(buyOrder("005380", 10), krw(240000), positions, krw(100_000_000))

	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error type = %T, want *LimitError", err)
	}
	if limitErr.Limit != LimitMaxOpenPositions {
		t.Errorf("Limit = %s, want %s", limitErr.Limit, LimitMaxOpenPositions)
	}

	// Adding to an existing symbol is fine at the count limit.
	if err := g.Check(buyOrder("005930", 10), krw(71200), positions, krw(100_000_000)); err != nil {
		t.Errorf("add to existing position = %v, want nil", err)
	}
}

func TestCheckInsufficientCash(t *testing.T) {
	g := testGuard()

	err := g.Check(buyOrder("005930", 100), krw(71200), nil, krw(1_000_000))

	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error type = %T, want *LimitError", err)
	}
	if limitErr.Limit != LimitInsufficientCash {
		t.Errorf("Limit = %s, want %s", limitErr.Limit, LimitInsufficientCash)
	}
}

func TestCheckSellSkipsExposureLimits(t *testing.T) {
	g := testGuard()

	order := model.Order{
		Code:     "005930",
		Side:     model.SideSell,
		Quantity: 100,
	}

	// No cash, full positions: a sell within order-notional still passes.
	positions := []Position{
		{Code: "005930", Quantity: 400, AvgPrice: krw(70000)},
		{Code: "000660", Quantity: 10, AvgPrice: krw(190000)},
		{Code: "035720", Quantity: 10, AvgPrice: krw(45000)},
	}
	if err := g.Check(order, krw(71200), positions, krw(0)); err != nil {
		t.Errorf("sell Check = %v, want nil", err)
	}
}

func TestCheckZeroLimitsDisabled(t *testing.T) {
	g := New(Config{}, nil)

	// All limits zero: only cash is enforced.
	err := g.Check(buyOrder("005930", 1000), krw(71200), nil, krw(100_000_000))
	if err != nil {
		t.Errorf("Check with limits disabled = %v, want nil", err)
	}
}

func TestLimitErrorMessage(t *testing.T) {
	err := &LimitError{
		Limit:   LimitMaxOrderNotional,
		Code:    "005930",
		Current: krw(14_240_000),
		Max:     krw(10_000_000),
	}
	want := "order rejected by max_order_notional for 005930: 14240000 exceeds 10000000"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
