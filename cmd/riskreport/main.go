package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dhkang/kiwoom-trader/internal/api"
	"github.com/dhkang/kiwoom-trader/internal/auth"
	"github.com/dhkang/kiwoom-trader/internal/config"
	"github.com/dhkang/kiwoom-trader/internal/risk"
	"github.com/dhkang/kiwoom-trader/internal/version"
)

// output is the full report document, one entry per analyzed stock.
type output struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Benchmark   string        `json:"benchmark,omitempty"`
	Stocks      []stockReport `json:"stocks"`
	Portfolio   *diversify    `json:"portfolio,omitempty"`
}

type stockReport struct {
	Code   string      `json:"code"`
	Report risk.Report `json:"report"`
}

type diversify struct {
	AvgPairwiseCorrelation float64 `json:"avg_pairwise_correlation"`
	DiversificationScore   float64 `json:"diversification_score"`
}

func main() {
	configPath := flag.String("config", "configs/trader.local.yaml", "path to config file")
	codesFlag := flag.String("codes", "", "comma-separated stock codes (defaults to the configured watchlist)")
	benchmark := flag.String("benchmark", "069500", "benchmark code for beta (KODEX 200)")
	days := flag.Int("days", 0, "history window in daily bars (defaults to config lookback)")
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

	codes := cfg.Instance.Watchlist
	if *codesFlag != "" {
		codes = strings.Split(*codesFlag, ",")
	}
	if len(codes) == 0 {
		fmt.Fprintln(os.Stderr, "no stock codes: pass -codes or configure a watchlist")
		os.Exit(1)
	}

	bars := cfg.Risk.LookbackDays
	if *days > 0 {
		bars = *days
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tokens := auth.NewTokenSource(cfg.API.RestURL, cfg.API.AppKey, cfg.API.AppSecret,
		auth.WithLogger(logger),
	)
	client := api.NewClient(cfg.API.RestURL, tokens,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
	)

	analyzer := risk.NewAnalyzer(risk.Config{
		ConfidenceLevel: cfg.Risk.ConfidenceLevel,
		RiskFreeRate:    cfg.Risk.RiskFreeRate,
	})

	now := time.Now()
	benchCandles, err := client.GetDailyCandles(ctx, *benchmark, now, bars)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch benchmark %s: %v\n", *benchmark, err)
		os.Exit(1)
	}

	doc := output{
		GeneratedAt: now,
		Benchmark:   *benchmark,
	}

	// Return series per code, for the diversification section.
	returnSeries := make([][]float64, 0, len(codes))

	for _, code := range codes {
		code = strings.TrimSpace(code)
		candles, err := client.GetDailyCandles(ctx, code, now, bars)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fetch %s: %v\n", code, err)
			os.Exit(1)
		}

		report, err := analyzer.Analyze(code, candles, benchCandles)
		if err != nil {
			fmt.Fprintf(os.Stderr, "analyze %s: %v\n", code, err)
			os.Exit(1)
		}

		doc.Stocks = append(doc.Stocks, stockReport{
			Code:   code,
			Report: report,
		})
		returnSeries = append(returnSeries, risk.Returns(risk.Closes(candles)))
	}

	if len(codes) > 1 {
		if d, ok := diversification(returnSeries); ok {
			doc.Portfolio = d
		}
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printText(doc)
}

// diversification aligns the return series to the shortest and
// computes the portfolio-level correlation summary.
func diversification(series [][]float64) (*diversify, bool) {
	minLen := len(series[0])
	for _, s := range series[1:] {
		if len(s) < minLen {
			minLen = len(s)
		}
	}
	aligned := make([][]float64, len(series))
	for i, s := range series {
		aligned[i] = s[len(s)-minLen:]
	}

	avg, err := risk.AvgPairwiseCorrelation(aligned)
	if err != nil {
		return nil, false
	}
	score, err := risk.DiversificationScore(aligned)
	if err != nil {
		return nil, false
	}
	return &diversify{
		AvgPairwiseCorrelation: avg,
		DiversificationScore:   score,
	}, true
}

func printText(doc output) {
	fmt.Printf("risk report %s (benchmark %s, riskreport %s)\n\n",
		doc.GeneratedAt.Format("2006-01-02 15:04"), doc.Benchmark, version.Version)

	for _, s := range doc.Stocks {
		r := s.Report
		fmt.Printf("%s  score %.1f/100\n", s.Code, r.Score)
		fmt.Printf("  volatility   hist %6.2f%%  parkinson %6.2f%%  garman-klass %6.2f%%\n",
			r.HistoricalVol*100, r.ParkinsonVol*100, r.GarmanKlassVol*100)
		fmt.Printf("  tail         VaR %5.2f%%  CVaR %5.2f%%  max drawdown %5.2f%%\n",
			r.HistoricalVaR*100, r.CVaR*100, r.MaxDrawdown*100)
		if r.HasBeta {
			fmt.Printf("  benchmark    beta %.3f\n", r.Beta)
		}
		fmt.Printf("  shape        skew %+.3f  excess kurtosis %+.3f\n", r.Skewness, r.Kurtosis)
		fmt.Printf("  ratios       sharpe %.3f  sortino %.3f  omega %.3f\n\n",
			r.Sharpe, r.Sortino, r.Omega)
	}

	if doc.Portfolio != nil {
		fmt.Printf("portfolio    avg pairwise corr %.3f  diversification %.3f\n",
			doc.Portfolio.AvgPairwiseCorrelation, doc.Portfolio.DiversificationScore)
	}
}
