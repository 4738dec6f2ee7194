package ports

import (
	"context"
	"time"
)

// RateLimiter spaces dispatches per key. A key with no configured limit
// never waits.
type RateLimiter interface {
	SetLimit(key string, callsPerSecond float64)
	Wait(ctx context.Context, key string) error
	Reset(key string)
	Metrics(key string) RateLimiterMetrics
}

type RateLimiterMetrics struct {
	TotalRequests   int64     `json:"total_requests"`
	AllowedRequests int64     `json:"allowed_requests"`
	WaitedRequests  int64     `json:"waited_requests"`
	TotalWaitTime   float64   `json:"total_wait_time_ms"`
	LastDispatch    time.Time `json:"last_dispatch"`
}
