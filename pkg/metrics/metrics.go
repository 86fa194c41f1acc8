// Package metrics exposes the Prometheus registry shared by the arXiv client.
// All metrics are defined in their respective packages (client, pagination,
// ratelimit, download) via promauto and land in the default registry.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Registry is the default Prometheus registry used by the arXiv client.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back everything registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Totals sums every sample of the named counter families. Families that
// have not been exported yet are reported as zero.
func Totals(names ...string) (map[string]float64, error) {
	totals := make(map[string]float64, len(names))
	for _, name := range names {
		totals[name] = 0
	}

	families, err := Gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, ok := totals[mf.GetName()]; !ok || mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
		totals[mf.GetName()] = sum
	}
	return totals, nil
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - arxiv_rate_limit_wait_seconds{limiter} (Histogram): Time spent waiting for a request slot
//   - arxiv_rate_limit_errors_total (Counter): Redis failures while acquiring a slot
//
// Pagination Metrics (pkg/pagination):
//   - arxiv_pages_fetched_total (Counter): Pages delivered to cursors
//   - arxiv_results_yielded_total (Counter): Results handed to callers
//
// Request Metrics (pkg/client):
//   - arxiv_requests_total{status} (Counter): Page requests by HTTP status or network_error
//   - arxiv_request_duration_seconds (Histogram): Page request duration
//   - arxiv_entries_dropped_total (Counter): Entries dropped for a missing id
//
// Retry Metrics (pkg/client):
//   - arxiv_retries_total{error_class} (Counter): Retry attempts by error class
//   - arxiv_retry_exhausted_total{error_class} (Counter): Pages that exhausted all attempts
//
// Download Metrics (pkg/download):
//   - arxiv_downloads_total{kind, status} (Counter): Document downloads by kind and outcome
//
// Example Prometheus Queries:
//
//   # Retry rate by class
//   sum by (error_class) (rate(arxiv_retries_total[5m]))
//
//   # Share of non-200 responses
//   sum(rate(arxiv_requests_total{status!="200"}[5m])) / sum(rate(arxiv_requests_total[5m]))
//
//   # P95 time waiting on the limiter
//   histogram_quantile(0.95, rate(arxiv_rate_limit_wait_seconds_bucket[5m]))
