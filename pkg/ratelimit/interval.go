package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IntervalLimiter spaces requests within one process. It is safe for
// concurrent use; concurrent callers are admitted one at a time, each slot
// one interval after the previous slot was due. Spacing is measured
// between grants, so scheduler latency on the return path is not added to
// the gap.
type IntervalLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration

	mu    sync.Mutex
	last  time.Time
	count int64
}

// NewIntervalLimiter creates a limiter admitting one request per interval.
// A non-positive interval disables waiting.
func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &IntervalLimiter{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Acquire implements Limiter. The first call returns immediately.
func (l *IntervalLimiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for request slot: %w", err)
	}
	now := time.Now()
	rateLimitWaitSeconds.WithLabelValues(kindInterval).Observe(now.Sub(start).Seconds())

	l.mu.Lock()
	l.last = now
	l.count++
	l.mu.Unlock()
	return nil
}

// State implements Limiter.
func (l *IntervalLimiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Interval:     l.interval,
		LastAcquire:  l.last,
		Acquisitions: l.count,
	}
}
