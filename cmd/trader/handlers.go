package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dhkang/kiwoom-trader/internal/api"
	"github.com/dhkang/kiwoom-trader/internal/guard"
	"github.com/dhkang/kiwoom-trader/internal/journal"
	"github.com/dhkang/kiwoom-trader/internal/metrics"
	"github.com/dhkang/kiwoom-trader/internal/model"
	"github.com/dhkang/kiwoom-trader/internal/portfolio"
	"github.com/dhkang/kiwoom-trader/internal/quotecache"
	"github.com/dhkang/kiwoom-trader/internal/risk"
	"github.com/dhkang/kiwoom-trader/internal/router"
	"github.com/dhkang/kiwoom-trader/internal/stream"
)

// handlerDeps collects everything the HTTP surface needs.
type handlerDeps struct {
	pool    *pgxpool.Pool
	mgr     stream.Manager
	rt      router.Router
	client  *api.Client
	cache   quotecache.Cache
	tracker *portfolio.Tracker
	account *accountState
	limits  *guard.Guard
	journal *journal.Journal
	mets    *metrics.Metrics
	acct    string
	logger  *slog.Logger
}

// orderRequest is the JSON body for POST /orders.
type orderRequest struct {
	Code       string `json:"code"`
	Side       string `json:"side"`  // "buy" or "sell"
	Type       string `json:"type"`  // "limit" or "market"
	Quantity   int64  `json:"quantity"`
	LimitPrice int64  `json:"limit_price"` // KRW, required for limit orders
}

// createHandler builds the health, debug, and order entry routes.
func createHandler(deps handlerDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check database
		if err := deps.pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["timescaledb"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["timescaledb"] = "connected"
		}

		// Check stream
		ms := deps.mgr.Stats()
		health.Components["stream"] = map[string]interface{}{
			"connected":     ms.Connected,
			"subscriptions": ms.Subscriptions,
			"frames_read":   ms.FramesRead,
			"reconnects":    ms.Reconnects,
		}
		if !ms.Connected {
			health.Status = "degraded"
		}

		rs := deps.rt.Stats()
		health.Components["router"] = map[string]interface{}{
			"entries_routed": rs.EntriesRouted,
			"parse_errors":   rs.ParseErrors,
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/positions", func(w http.ResponseWriter, r *http.Request) {
		positions := deps.tracker.Positions()
		doc := map[string]interface{}{
			"count":     len(positions),
			"exposure":  deps.tracker.TotalExposure(),
			"cash":      deps.account.Cash(),
			"positions": positions,
		}
		if hhi, err := risk.HHI(deps.tracker.Weights()); err == nil {
			doc["concentration_hhi"] = hhi
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	})

	mux.HandleFunc("/debug/journal", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		n := 50
		if v := r.URL.Query().Get("n"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				n = parsed
			}
		}

		entries, err := deps.journal.Recent(ctx, n)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   len(entries),
			"entries": entries,
		})
	})

	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handleOrder(w, r, deps)
	})

	return mux
}

// handleOrder runs an order through the pre-trade limits, submits it,
// and journals the outcome.
func handleOrder(w http.ResponseWriter, r *http.Request, deps handlerDeps) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	side := model.Side(req.Side)
	if side != model.SideBuy && side != model.SideSell {
		http.Error(w, "side must be buy or sell", http.StatusBadRequest)
		return
	}
	orderType := model.OrderType(req.Type)
	if orderType != model.OrderTypeLimit && orderType != model.OrderTypeMarket {
		http.Error(w, "type must be limit or market", http.StatusBadRequest)
		return
	}

	order := model.Order{
		Account:    deps.acct,
		Code:       req.Code,
		Side:       side,
		Type:       orderType,
		Quantity:   req.Quantity,
		LimitPrice: decimal.NewFromInt(req.LimitPrice),
	}

	// Market orders are checked at the latest cached quote.
	checkPrice := order.LimitPrice
	if orderType == model.OrderTypeMarket {
		quote, ok, err := deps.cache.Get(ctx, req.Code)
		if err != nil || !ok {
			http.Error(w, "no reference price for market order", http.StatusConflict)
			return
		}
		checkPrice = quote.Price
	}

	positions := make([]guard.Position, 0)
	for _, p := range deps.tracker.Positions() {
		positions = append(positions, guard.Position{
			Code:     p.Code,
			Quantity: p.Quantity,
			AvgPrice: p.AvgPrice,
		})
	}

	if err := deps.limits.Check(order, checkPrice, positions, deps.account.Cash()); err != nil {
		var limitErr *guard.LimitError
		if errors.As(err, &limitErr) {
			deps.mets.OrdersRejected.WithLabelValues(string(limitErr.Limit)).Inc()
			if jerr := deps.journal.Record(ctx, journal.Entry{
				Kind:     journal.KindReject,
				Code:     req.Code,
				Side:     req.Side,
				Quantity: req.Quantity,
				Price:    checkPrice.Round(0).IntPart(),
				Note:     limitErr.Error(),
			}); jerr != nil {
				deps.logger.Warn("failed to journal rejection", "error", jerr)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	placed, err := deps.client.PlaceOrder(ctx, api.OrderRequest{
		Account:    deps.acct,
		Code:       req.Code,
		Side:       side,
		Type:       orderType,
		Quantity:   req.Quantity,
		LimitPrice: order.LimitPrice,
	})
	if err != nil {
		deps.logger.Error("order submission failed",
			"code", req.Code,
			"side", req.Side,
			"error", err,
		)
		if jerr := deps.journal.Record(ctx, journal.Entry{
			Kind:     journal.KindReject,
			Code:     req.Code,
			Side:     req.Side,
			Quantity: req.Quantity,
			Price:    checkPrice.Round(0).IntPart(),
			Note:     err.Error(),
		}); jerr != nil {
			deps.logger.Warn("failed to journal rejection", "error", jerr)
		}
		http.Error(w, "order rejected by broker", http.StatusBadGateway)
		return
	}

	deps.mets.OrdersSubmitted.WithLabelValues(req.Side).Inc()
	if err := deps.journal.Record(ctx, journal.Entry{
		ID:            placed.ClientOrderID,
		Kind:          journal.KindOrder,
		Code:          req.Code,
		Side:          req.Side,
		Quantity:      req.Quantity,
		Price:         checkPrice.Round(0).IntPart(),
		BrokerOrderID: placed.BrokerOrderID,
	}); err != nil {
		deps.logger.Warn("failed to journal order", "error", err)
	}

	deps.logger.Info("order submitted",
		"code", req.Code,
		"side", req.Side,
		"quantity", req.Quantity,
		"broker_order_id", placed.BrokerOrderID,
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"client_order_id": placed.ClientOrderID.String(),
		"broker_order_id": placed.BrokerOrderID,
		"status":          placed.Status,
	})
}
