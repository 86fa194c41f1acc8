package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	_ "github.com/Sternrassler/arxiv-client/pkg/client"
	"github.com/Sternrassler/arxiv-client/pkg/metrics"
)

func TestRegistry(t *testing.T) {
	if metrics.Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
	if metrics.Gatherer != prometheus.DefaultGatherer {
		t.Error("Gatherer should be the default Prometheus gatherer")
	}
}

func TestHandlerExposesClientMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)

	// Unlabelled collectors are exported before first use.
	for _, name := range []string{
		"arxiv_request_duration_seconds",
		"arxiv_entries_dropped_total",
		"arxiv_pages_fetched_total",
		"arxiv_results_yielded_total",
		"arxiv_rate_limit_errors_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestTotals(t *testing.T) {
	reg := prometheus.NewRegistry()
	orig := metrics.Gatherer
	metrics.Gatherer = reg
	t.Cleanup(func() { metrics.Gatherer = orig })

	vec := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "test_requests_total",
		Help: "test",
	}, []string{"status"})
	vec.WithLabelValues("200").Add(3)
	vec.WithLabelValues("503").Add(2)
	promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "test"}).Set(7)

	totals, err := metrics.Totals("test_requests_total", "test_gauge", "test_missing_total")
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals["test_requests_total"] != 5 {
		t.Errorf("test_requests_total = %v, want 5", totals["test_requests_total"])
	}
	if totals["test_gauge"] != 0 {
		t.Errorf("gauges are not summed, got %v", totals["test_gauge"])
	}
	if v, ok := totals["test_missing_total"]; !ok || v != 0 {
		t.Errorf("missing family = %v, %v; want 0, true", v, ok)
	}
}
