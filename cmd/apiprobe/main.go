// apiprobe exercises each REST endpoint group against a live account
// and reports per-transaction results. Useful for verifying app keys
// and sandbox connectivity before running the trader.
//
// Usage: go run ./cmd/apiprobe --config configs/trader.local.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dhkang/kiwoom-trader/internal/api"
	"github.com/dhkang/kiwoom-trader/internal/auth"
	"github.com/dhkang/kiwoom-trader/internal/config"
)

type probeResult struct {
	Name    string `json:"name"`
	APIID   string `json:"api_id"`
	OK      bool   `json:"ok"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed"`
}

func main() {
	configPath := flag.String("config", "configs/trader.local.yaml", "path to config file")
	code := flag.String("code", "005930", "stock code to probe market data with")
	jsonOut := flag.Bool("json", false, "emit JSON instead of text")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tokens := auth.NewTokenSource(cfg.API.RestURL, cfg.API.AppKey, cfg.API.AppSecret,
		auth.WithLogger(logger),
	)
	client := api.NewClient(cfg.API.RestURL, tokens,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(0, time.Second), // probes report the first failure
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
	)

	probes := []struct {
		name  string
		apiID string
		run   func(context.Context) (string, error)
	}{
		{"oauth token", "oauth2/token", func(ctx context.Context) (string, error) {
			if _, err := tokens.Token(ctx); err != nil {
				return "", err
			}
			return "token issued", nil
		}},
		{"quote", "ka10001", func(ctx context.Context) (string, error) {
			q, err := client.GetQuote(ctx, *code)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s %s KRW", q.Code, q.Price), nil
		}},
		{"order book", "ka10004", func(ctx context.Context) (string, error) {
			ob, err := client.GetOrderBook(ctx, *code)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d ask / %d bid levels", len(ob.Asks), len(ob.Bids)), nil
		}},
		{"daily candles", "ka10081", func(ctx context.Context) (string, error) {
			candles, err := client.GetDailyCandles(ctx, *code, time.Now(), 30)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d bars", len(candles)), nil
		}},
		{"minute candles", "ka10080", func(ctx context.Context) (string, error) {
			candles, err := client.GetMinuteCandles(ctx, *code, 1)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d bars", len(candles)), nil
		}},
		{"stock search", "ka10099", func(ctx context.Context) (string, error) {
			stocks, err := client.SearchStocks(ctx, "0") // KOSPI
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d listed stocks", len(stocks)), nil
		}},
		{"balance", "kt00018", func(ctx context.Context) (string, error) {
			balance, holdings, err := client.GetBalance(ctx, cfg.Instance.Account)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d holdings, %s KRW cash", len(holdings), balance.Cash), nil
		}},
		{"unfilled orders", "ka10075", func(ctx context.Context) (string, error) {
			orders, err := client.GetUnfilledOrders(ctx, cfg.Instance.Account)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d open orders", len(orders)), nil
		}},
		{"fills", "ka10076", func(ctx context.Context) (string, error) {
			fills, err := client.GetFills(ctx, cfg.Instance.Account)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d fills today", len(fills)), nil
		}},
		{"approval key", "au10001", func(ctx context.Context) (string, error) {
			key, err := client.GetApprovalKey(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("key length %d", len(key)), nil
		}},
	}

	results := make([]probeResult, 0, len(probes))
	failed := 0

	for _, p := range probes {
		start := time.Now()
		detail, err := p.run(ctx)
		res := probeResult{
			Name:    p.name,
			APIID:   p.apiID,
			OK:      err == nil,
			Detail:  detail,
			Elapsed: time.Since(start).Round(time.Millisecond).String(),
		}
		if err != nil {
			res.Error = err.Error()
			failed++
		}
		results = append(results, res)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "encode results: %v\n", err)
			os.Exit(1)
		}
	} else {
		for _, r := range results {
			status := "ok  "
			note := r.Detail
			if !r.OK {
				status = "FAIL"
				note = r.Error
			}
			fmt.Printf("%s  %-16s %-8s %-8s %s\n", status, r.Name, r.APIID, r.Elapsed, note)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
