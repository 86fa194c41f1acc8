// Package client provides the arXiv API client with rate limiting,
// retries, and lazy pagination.
package client

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/arxiv-client/pkg/download"
	"github.com/Sternrassler/arxiv-client/pkg/feed"
	"github.com/Sternrassler/arxiv-client/pkg/pagination"
	"github.com/Sternrassler/arxiv-client/pkg/ratelimit"
)

// Prometheus metrics for API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arxiv_requests_total",
		Help: "Total API requests by HTTP status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arxiv_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	entriesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arxiv_entries_dropped_total",
		Help: "Total feed entries dropped for missing required fields",
	})
)

// Client is the arXiv API client. It is safe for concurrent use; all
// searches on one Client share its rate limiter.
type Client struct {
	transport  Transport
	limiter    ratelimit.Limiter
	downloader *download.Downloader
	httpClient *http.Client
	header     http.Header
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.With().Str("component", "arxiv-client").Logger()

	httpClient, err := newHTTPClient(cfg.Timeout, cfg.Proxy)
	if err != nil {
		return nil, err
	}

	transport := cfg.Transport
	if transport == nil {
		transport = NewHTTPTransport(httpClient)
	}

	limiter := cfg.Limiter
	switch {
	case limiter != nil:
	case cfg.Redis != nil:
		limiter = ratelimit.NewRedisLimiter(cfg.Redis, cfg.RedisKey, cfg.Delay, logger)
	default:
		limiter = ratelimit.NewIntervalLimiter(cfg.Delay)
	}

	header := http.Header{}
	header.Set("User-Agent", cfg.UserAgent)

	return &Client{
		transport: transport,
		limiter:   limiter,
		downloader: download.New(download.Config{
			HTTPClient: httpClient,
			UserAgent:  cfg.UserAgent,
			Limiter:    limiter,
		}),
		httpClient: httpClient,
		header:     header,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// Limiter returns the limiter gating this client's requests.
func (c *Client) Limiter() ratelimit.Limiter {
	return c.limiter
}

// Cursor validates s and returns a cursor positioned at offset. No request
// is made until the first call to Next.
func (c *Client) Cursor(s Search, offset int) (*pagination.Cursor, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, &ConfigurationError{Field: "offset", Reason: "must not be negative"}
	}

	fetcher := pagination.PageFetcherFunc(func(ctx context.Context, pageOffset int, first bool) (*feed.Page, error) {
		pageURL, err := QueryURL(c.config.BaseURL, s, pageOffset, c.config.PageSize)
		if err != nil {
			return nil, err
		}
		return c.FetchPage(ctx, pageURL, first)
	})

	return pagination.NewCursor(fetcher, offset, s.MaxResults), nil
}

// Results returns the results of s from the absolute offset onwards as a
// lazy sequence. Pages are requested only as the caller consumes results.
// Any failure, including an invalid search, ends the sequence with a final
// (nil, err) pair.
func (c *Client) Results(ctx context.Context, s Search, offset int) iter.Seq2[*feed.Result, error] {
	cursor, err := c.Cursor(s, offset)
	if err != nil {
		return func(yield func(*feed.Result, error) bool) {
			yield(nil, err)
		}
	}
	return cursor.All(ctx)
}

// Item is one element of a Stream.
type Item struct {
	Result *feed.Result
	Err    error
}

// Stream runs the search in its own goroutine and delivers results on the
// returned channel, which is closed at the end. A failure arrives as a final
// Item with Err set. Cancel ctx to stop early.
func (c *Client) Stream(ctx context.Context, s Search, offset int) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)
		for r, err := range c.Results(ctx, s, offset) {
			select {
			case out <- Item{Result: r, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Collect drains the search into a slice. On failure it returns the results
// produced so far together with the error.
func (c *Client) Collect(ctx context.Context, s Search, offset int) ([]*feed.Result, error) {
	var results []*feed.Result
	for r, err := range c.Results(ctx, s, offset) {
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// DownloadPDF saves the primary document of r into dir. An empty filename
// selects the default derived from the id and title.
func (c *Client) DownloadPDF(ctx context.Context, r *feed.Result, dir, filename string) (string, error) {
	return c.downloader.PDF(ctx, r, dir, filename)
}

// DownloadSource saves the source tarball of r into dir. An empty filename
// selects the default derived from the id and title.
func (c *Client) DownloadSource(ctx context.Context, r *feed.Result, dir, filename string) (string, error) {
	return c.downloader.Source(ctx, r, dir, filename)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// logDiagnostics reports the soft warnings produced while decoding a page.
func (c *Client) logDiagnostics(pageURL string, page *feed.Page) {
	for _, w := range page.Warnings {
		var malformedEntry *feed.MalformedEntryError
		var malformedFeed *feed.MalformedFeedError
		switch {
		case errors.As(w, &malformedEntry):
			entriesDroppedTotal.Inc()
			c.logger.Warn().
				Str("url", pageURL).
				Int("index", malformedEntry.Index).
				Str("field", malformedEntry.Field).
				Msg("Dropped malformed entry")
		case errors.As(w, &malformedFeed):
			c.logger.Warn().
				Err(malformedFeed.Err).
				Str("url", pageURL).
				Msg("Got malformed feed")
		default:
			c.logger.Warn().
				Err(w).
				Str("url", pageURL).
				Msg("Feed warning")
		}
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("arxiv client (%s, page size %d, delay %v)",
		c.config.BaseURL, c.config.PageSize, c.config.Delay)
}
