// Package ratelimit spaces outbound requests to the arXiv API.
//
// The API terms ask for no more than one request every few seconds from a
// single client. A Limiter enforces a minimum interval between consecutive
// acquisitions across every goroutine sharing it. IntervalLimiter does so
// inside one process; RedisLimiter extends the guarantee to every process
// pointed at the same Redis key.
package ratelimit

import (
	"context"
	"time"
)

// RedisKeyLastRequest is the default key holding the shared request slot.
const RedisKeyLastRequest = "arxiv:rate_limit:last_request"

// Limiter gates outbound requests.
type Limiter interface {
	// Acquire blocks until the caller's request slot comes up. Slots are
	// spaced one interval apart from when the previous slot was granted;
	// a caller that resumes late after the grant may start its request
	// slightly less than one interval before the next one. It fails only
	// when ctx is done or the backing store is unreachable.
	Acquire(ctx context.Context) error

	// State returns a snapshot for health reporting.
	State() State
}

// State is a point-in-time view of a limiter.
type State struct {
	// Interval is the minimum spacing between requests.
	Interval time.Duration `json:"interval"`

	// LastAcquire is when the most recent Acquire returned in this process.
	LastAcquire time.Time `json:"last_acquire"`

	// Acquisitions counts successful Acquire calls in this process.
	Acquisitions int64 `json:"acquisitions"`

	// Shared is true when the interval is enforced across processes.
	Shared bool `json:"shared"`
}

// NextAllowed returns the earliest time the next request may start, as far
// as this process knows. The zero time means immediately.
func (s State) NextAllowed() time.Time {
	if s.LastAcquire.IsZero() {
		return time.Time{}
	}
	return s.LastAcquire.Add(s.Interval)
}

// TimeUntilNext returns how long a caller would wait right now.
// Returns 0 if a request may start immediately.
func (s State) TimeUntilNext() time.Duration {
	next := s.NextAllowed()
	if next.IsZero() {
		return 0
	}
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}
