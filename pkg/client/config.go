package client

import (
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/arxiv-client/pkg/ratelimit"
)

// Defaults follow the API user manual: at most one request every three
// seconds and at most 2000 results per request.
const (
	DefaultBaseURL    = "https://export.arxiv.org/api/query"
	DefaultUserAgent  = "arxiv-client/1.0"
	DefaultPageSize   = 100
	MaxPageSize       = 2000
	DefaultDelay      = 3 * time.Second
	DefaultNumRetries = 3
	DefaultTimeout    = 30 * time.Second
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the query endpoint.
	BaseURL string

	// UserAgent identifies the client on every request.
	UserAgent string

	// PageSize is the number of results requested per page (1..MaxPageSize).
	PageSize int

	// Delay is the minimum spacing between requests and the wait before
	// each retry.
	Delay time.Duration

	// NumRetries is the number of retries per page after the first attempt.
	NumRetries int

	// Timeout bounds each HTTP request made by the default transport.
	Timeout time.Duration

	// Proxy is an optional HTTP proxy URL for the default transport.
	Proxy string

	// Transport replaces the default HTTP transport (for testing).
	Transport Transport

	// Limiter replaces the limiter built from Delay. Share one limiter
	// between clients that must not exceed the rate together.
	Limiter ratelimit.Limiter

	// Redis, when set and Limiter is nil, makes the rate limit shared by
	// every process using the same RedisKey.
	Redis    *redis.Client
	RedisKey string
}

// DefaultConfig returns a configuration that respects the API terms.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		UserAgent:  DefaultUserAgent,
		PageSize:   DefaultPageSize,
		Delay:      DefaultDelay,
		NumRetries: DefaultNumRetries,
		Timeout:    DefaultTimeout,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return &ConfigurationError{Field: "base_url", Reason: "is required"}
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigurationError{Field: "base_url", Reason: "must be an absolute URL"}
	}
	if c.UserAgent == "" {
		return &ConfigurationError{Field: "user_agent", Reason: "is required"}
	}
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return &ConfigurationError{Field: "page_size", Reason: "must be between 1 and 2000"}
	}
	if c.Delay < 0 {
		return &ConfigurationError{Field: "delay", Reason: "must not be negative"}
	}
	if c.NumRetries < 0 {
		return &ConfigurationError{Field: "num_retries", Reason: "must not be negative"}
	}
	if c.Timeout < 0 {
		return &ConfigurationError{Field: "timeout", Reason: "must not be negative"}
	}
	if c.Proxy != "" {
		if u, err := url.Parse(c.Proxy); err != nil || u.Host == "" {
			return &ConfigurationError{Field: "proxy", Reason: "must be a URL"}
		}
	}
	return nil
}
