package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the trader.
type Metrics struct {
	registry *prometheus.Registry

	// Stream
	FramesReceived prometheus.Counter
	PingsEchoed    prometheus.Counter
	Reconnects     prometheus.Counter
	Subscriptions  prometheus.Gauge

	// Router
	EntriesRouted *prometheus.CounterVec
	ParseErrors   prometheus.Counter
	BufferDepth   *prometheus.GaugeVec

	// Writers
	RowsInserted *prometheus.CounterVec
	RowConflicts *prometheus.CounterVec
	WriteErrors  *prometheus.CounterVec

	// REST API
	APIRequests *prometheus.CounterVec
	BreakerOpen prometheus.Gauge

	// Trading
	OrdersSubmitted *prometheus.CounterVec
	OrdersRejected  *prometheus.CounterVec
	OpenPositions   prometheus.Gauge
	ExposureKRW     prometheus.Gauge
}

// New creates a Metrics set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "trader_stream_frames_received_total",
			Help: "WebSocket frames received.",
		}),
		PingsEchoed: factory.NewCounter(prometheus.CounterOpts{
			Name: "trader_stream_pings_echoed_total",
			Help: "Broker PING frames echoed.",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "trader_stream_reconnects_total",
			Help: "WebSocket reconnections.",
		}),
		Subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trader_stream_subscriptions",
			Help: "Active real-time subscriptions.",
		}),

		EntriesRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_router_entries_routed_total",
			Help: "REAL entries routed, by destination buffer.",
		}, []string{"buffer"}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "trader_router_parse_errors_total",
			Help: "Frames or entries that failed to parse.",
		}),
		BufferDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trader_router_buffer_depth",
			Help: "Items waiting in each router buffer.",
		}, []string{"buffer"}),

		RowsInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_writer_rows_inserted_total",
			Help: "Rows inserted, by table.",
		}, []string{"table"}),
		RowConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_writer_row_conflicts_total",
			Help: "Rows skipped on conflict, by table.",
		}, []string{"table"}),
		WriteErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_writer_errors_total",
			Help: "Failed batch writes, by table.",
		}, []string{"table"}),

		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_api_requests_total",
			Help: "REST requests, by api-id and outcome.",
		}, []string{"api_id", "outcome"}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trader_api_breaker_open",
			Help: "1 when the REST circuit breaker is open.",
		}),

		OrdersSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_submitted_total",
			Help: "Orders submitted, by side.",
		}, []string{"side"}),
		OrdersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_rejected_total",
			Help: "Orders rejected pre-trade, by limit.",
		}, []string{"limit"}),
		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trader_open_positions",
			Help: "Distinct symbols currently held.",
		}),
		ExposureKRW: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trader_exposure_krw",
			Help: "Total position notional in KRW.",
		}),
	}
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a scrape endpoint until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, port int, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server started", "port", port, "path", path)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
