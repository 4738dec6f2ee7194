package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/trawlkit/trawl/internal/ports"
)

type bucket struct {
	mu              sync.Mutex
	callsPerSecond  float64
	lastDispatch    time.Time
	totalRequests   int64
	allowedRequests int64
	waitedRequests  int64
	totalWaitTime   time.Duration
}

// Limiter spaces dispatches so that consecutive calls for one key are
// at least 1/rate apart. Keys with no limit (rate <= 0) never wait.
type Limiter struct {
	buckets sync.Map
	logger  *slog.Logger
}

func NewLimiter(logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Limiter{
		logger: logger.With("component", "rate-limiter"),
	}
}

func (l *Limiter) getBucket(key string) *bucket {
	if value, ok := l.buckets.Load(key); ok {
		return value.(*bucket)
	}

	value, _ := l.buckets.LoadOrStore(key, &bucket{})
	return value.(*bucket)
}

func (l *Limiter) SetLimit(key string, callsPerSecond float64) {
	b := l.getBucket(key)

	b.mu.Lock()
	b.callsPerSecond = callsPerSecond
	b.mu.Unlock()

	l.logger.Debug("rate limit set", "key", key, "calls_per_second", callsPerSecond)
}

// Wait blocks until the minimum interval since the key's last dispatch
// has elapsed, then stamps the dispatch. Returns ctx.Err() if the
// context ends first; the dispatch is not stamped in that case.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	b := l.getBucket(key)

	b.mu.Lock()
	b.totalRequests++

	if b.callsPerSecond <= 0 {
		b.allowedRequests++
		b.lastDispatch = time.Now()
		b.mu.Unlock()
		return nil
	}

	interval := time.Duration(float64(time.Second) / b.callsPerSecond)
	now := time.Now()
	wait := time.Duration(0)
	if !b.lastDispatch.IsZero() {
		if elapsed := now.Sub(b.lastDispatch); elapsed < interval {
			wait = interval - elapsed
		}
	}

	if wait <= 0 {
		b.allowedRequests++
		b.lastDispatch = now
		b.mu.Unlock()
		return nil
	}

	b.waitedRequests++
	b.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	b.mu.Lock()
	b.allowedRequests++
	b.totalWaitTime += wait
	b.lastDispatch = time.Now()
	b.mu.Unlock()

	l.logger.Debug("rate limit wait satisfied", "key", key, "waited", wait)
	return nil
}

func (l *Limiter) Reset(key string) {
	if value, ok := l.buckets.Load(key); ok {
		b := value.(*bucket)
		b.mu.Lock()
		b.lastDispatch = time.Time{}
		b.totalRequests = 0
		b.allowedRequests = 0
		b.waitedRequests = 0
		b.totalWaitTime = 0
		b.mu.Unlock()
	}
}

func (l *Limiter) Metrics(key string) ports.RateLimiterMetrics {
	b := l.getBucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	return ports.RateLimiterMetrics{
		TotalRequests:   b.totalRequests,
		AllowedRequests: b.allowedRequests,
		WaitedRequests:  b.waitedRequests,
		TotalWaitTime:   float64(b.totalWaitTime) / float64(time.Millisecond),
		LastDispatch:    b.lastDispatch,
	}
}
