package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for request spacing.
var (
	rateLimitWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arxiv_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a request slot by limiter kind",
		Buckets: []float64{0, 0.1, 0.5, 1, 2, 3, 5, 10},
	}, []string{"limiter"})

	rateLimitErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arxiv_rate_limit_errors_total",
		Help: "Total number of shared limiter store errors",
	})
)

const (
	kindInterval = "interval"
	kindRedis    = "redis"
)
