package poller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dhkang/kiwoom-trader/internal/api"
	"github.com/dhkang/kiwoom-trader/internal/auth"
	"github.com/dhkang/kiwoom-trader/internal/model"
)

func newPollServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth2/token":
			json.NewEncoder(w).Encode(map[string]any{
				"return_code": 0,
				"return_msg":  "ok",
				"token_type":  "bearer",
				"token":       "test-token",
				"expires_dt":  time.Now().Add(24 * time.Hour).Format("20060102150405"),
			})
		case strings.HasPrefix(r.URL.Path, "/api/dostk/stkinfo"):
			json.NewEncoder(w).Encode(map[string]any{
				"return_code": 0,
				"return_msg":  "ok",
				"stk_cd":      "005930",
				"cur_prc":     "+71200",
			})
		case strings.HasPrefix(r.URL.Path, "/api/dostk/chart"):
			json.NewEncoder(w).Encode(map[string]any{
				"return_code": 0,
				"return_msg":  "ok",
				"stk_cd":      "005930",
				"stk_dt_pole_chart_qry": []map[string]string{
					{"dt": "20260820", "open_pric": "72000", "high_pric": "72400", "low_pric": "71000", "cur_prc": "71200", "trde_qty": "100"},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newPollClient(srv *httptest.Server) *api.Client {
	tokens := auth.NewTokenSource(srv.URL, "key", "secret")
	return api.NewClient(srv.URL, tokens, api.WithRateLimit(1000, 1000))
}

func TestPollerPollAll(t *testing.T) {
	srv := newPollServer(t)
	defer srv.Close()

	var quoteCount, candleCount atomic.Int32
	quotes := QuoteHandlerFunc(func(q model.Quote) error {
		quoteCount.Add(1)
		return nil
	})
	candles := CandleHandlerFunc(func(code string, bars []model.Candle) error {
		if len(bars) == 0 {
			t.Error("HandleCandles called with no bars")
		}
		candleCount.Add(1)
		return nil
	})

	cfg := Config{
		Interval:    time.Hour, // Long interval, triggered manually.
		Concurrency: 4,
		Timeout:     5 * time.Second,
		CandleBars:  10,
	}

	watchlist := WatchlistFunc(func() []string {
		return []string{"005930", "000660", "035720"}
	})

	p := New(cfg, newPollClient(srv), watchlist, quotes, candles, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.ctx = ctx

	p.pollAll()

	if got := quoteCount.Load(); got != 3 {
		t.Errorf("quoteCount = %d, want 3", got)
	}
	if got := candleCount.Load(); got != 3 {
		t.Errorf("candleCount = %d, want 3", got)
	}
}

func TestPollerHandlerError(t *testing.T) {
	srv := newPollServer(t)
	defer srv.Close()

	quotes := QuoteHandlerFunc(func(q model.Quote) error {
		return errors.New("handler failed")
	})

	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second

	p := New(cfg, newPollClient(srv), WatchlistFunc(func() []string { return []string{"005930"} }), quotes, nil, nil)
	p.ctx = context.Background()

	if err := p.pollStock("005930"); err == nil {
		t.Error("pollStock = nil error, want handler error")
	}
}

func TestPollerStartStop(t *testing.T) {
	srv := newPollServer(t)
	defer srv.Close()

	cfg := Config{
		Interval:    time.Hour,
		Concurrency: 2,
		Timeout:     5 * time.Second,
		CandleBars:  10,
	}

	p := New(cfg, newPollClient(srv), WatchlistFunc(func() []string { return nil }), nil, nil, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
