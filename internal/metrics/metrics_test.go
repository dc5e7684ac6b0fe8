package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsScrape(t *testing.T) {
	m := New()

	m.FramesReceived.Inc()
	m.EntriesRouted.WithLabelValues("tick").Add(3)
	m.RowsInserted.WithLabelValues("ticks").Add(10)
	m.APIRequests.WithLabelValues("ka10001", "ok").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()

	for _, want := range []string{
		"trader_stream_frames_received_total 1",
		`trader_router_entries_routed_total{buffer="tick"} 3`,
		`trader_writer_rows_inserted_total{table="ticks"} 10`,
		`trader_api_requests_total{api_id="ka10001",outcome="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestNewRegistriesIndependent(t *testing.T) {
	a := New()
	b := New()

	a.FramesReceived.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "trader_stream_frames_received_total 1") {
		t.Error("registries share state")
	}
}
