package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/arxiv-client/pkg/feed"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arxiv_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arxiv_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// FetchPage requests one page and decodes it, retrying transport failures
// and unexpected empty pages up to NumRetries times with Delay between
// attempts. Every attempt first waits on the rate limiter.
//
// first marks the first page of a search, where zero results is a valid
// answer rather than a failure.
func (c *Client) FetchPage(ctx context.Context, pageURL string, first bool) (*feed.Page, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.NumRetries; attempt++ {
		if attempt > 0 {
			errorClass := classifyError(lastErr)
			retriesTotal.WithLabelValues(string(errorClass)).Inc()

			c.logger.Debug().
				Str("url", pageURL).
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Dur("delay", c.config.Delay).
				Msg("Retrying page after delay")

			if err := sleep(ctx, c.config.Delay); err != nil {
				return nil, err
			}
		}

		page, err := c.tryPage(ctx, pageURL, first, attempt)
		if err == nil {
			if attempt > 0 {
				c.logger.Info().
					Str("url", pageURL).
					Int("attempt", attempt).
					Msg("Page succeeded after retry")
			}
			return page, nil
		}

		if !shouldRetry(err) {
			return nil, err
		}
		lastErr = err

		c.logger.Warn().
			Err(err).
			Str("url", pageURL).
			Str("error_class", string(classifyError(err))).
			Int("attempt", attempt).
			Msg("Page fetch failed")
	}

	errorClass := classifyError(lastErr)
	retryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	c.logger.Error().
		Str("url", pageURL).
		Str("error_class", string(errorClass)).
		Int("max_attempts", c.config.NumRetries+1).
		Msg("Retry attempts exhausted")

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, c.config.NumRetries+1, lastErr)
}

// tryPage makes a single attempt.
func (c *Client) tryPage(ctx context.Context, pageURL string, first bool, attempt int) (*feed.Page, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	c.logger.Debug().
		Str("url", pageURL).
		Int("attempt", attempt).
		Msg("Requesting page")

	start := time.Now()
	status, body, err := c.transport.Get(ctx, pageURL, c.header)
	requestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &TransportError{URL: pageURL, Attempt: attempt, Err: err}
	}

	requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	if status < 200 || status >= 300 {
		return nil, &TransportError{URL: pageURL, Attempt: attempt, StatusCode: status}
	}

	if body == nil {
		body = []byte{}
	}
	page, err := feed.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", pageURL, err)
	}
	c.logDiagnostics(pageURL, page)

	if page.Size() == 0 && !first {
		return nil, &EmptyPageError{URL: pageURL, Attempt: attempt, Page: page}
	}
	return page, nil
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
