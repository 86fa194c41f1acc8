package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisLimiter enforces a minimum interval between requests across every
// process sharing the same Redis key.
//
// A request slot is taken with SET NX PX: the key exists for exactly one
// interval after each admitted request, so a failed SET means another
// caller went recently and the key's remaining TTL is the wait.
type RedisLimiter struct {
	redis    *redis.Client
	key      string
	interval time.Duration
	logger   zerolog.Logger

	// mu queues local callers so they do not all poll Redis at once.
	mu sync.Mutex

	stateMu sync.Mutex
	last    time.Time
	count   int64
}

// NewRedisLimiter creates a shared limiter. An empty key selects
// RedisKeyLastRequest.
func NewRedisLimiter(redisClient *redis.Client, key string, interval time.Duration, logger zerolog.Logger) *RedisLimiter {
	if key == "" {
		key = RedisKeyLastRequest
	}
	return &RedisLimiter{
		redis:    redisClient,
		key:      key,
		interval: interval,
		logger:   logger,
	}
}

// Acquire implements Limiter.
func (l *RedisLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	if l.interval > 0 {
		if err := l.takeSlot(ctx); err != nil {
			return err
		}
	}
	now := time.Now()
	rateLimitWaitSeconds.WithLabelValues(kindRedis).Observe(now.Sub(start).Seconds())

	l.stateMu.Lock()
	l.last = now
	l.count++
	l.stateMu.Unlock()
	return nil
}

func (l *RedisLimiter) takeSlot(ctx context.Context) error {
	for {
		ok, err := l.redis.SetNX(ctx, l.key, time.Now().UnixMilli(), l.interval).Result()
		if err != nil {
			rateLimitErrorsTotal.Inc()
			return fmt.Errorf("take request slot: %w", err)
		}
		if ok {
			return nil
		}

		ttl, err := l.redis.PTTL(ctx, l.key).Result()
		if err != nil {
			rateLimitErrorsTotal.Inc()
			return fmt.Errorf("read request slot ttl: %w", err)
		}

		wait := ttl
		switch {
		case ttl == -1:
			// Key without expiry, e.g. written by hand. Bound it and retry.
			l.logger.Warn().Str("key", l.key).Msg("Request slot has no expiry; resetting")
			if err := l.redis.PExpire(ctx, l.key, l.interval).Err(); err != nil {
				rateLimitErrorsTotal.Inc()
				return fmt.Errorf("expire request slot: %w", err)
			}
			continue
		case ttl <= 0:
			// Expired between SET and PTTL.
			wait = time.Millisecond
		}

		l.logger.Debug().
			Str("key", l.key).
			Dur("wait", wait).
			Msg("Waiting for shared request slot")

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for request slot: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}

// State implements Limiter.
func (l *RedisLimiter) State() State {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return State{
		Interval:     l.interval,
		LastAcquire:  l.last,
		Acquisitions: l.count,
		Shared:       true,
	}
}
