package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trawlkit/trawl/internal/domain"
	"github.com/trawlkit/trawl/internal/ports"
)

// Instance wraps one node with cross-cutting execution policy: input
// validation, rate limiting, retry with backoff, per-attempt timeout,
// and bookkeeping. Instances are exclusively owned by the engine that
// created them and live for the lifetime of the loaded workflow.
type Instance struct {
	def     domain.NodeDefinition
	node    ports.Node
	policy  domain.NodePolicy
	limiter ports.RateLimiter
	logger  *slog.Logger

	mu             sync.Mutex
	active         bool
	executionCount int
	errorCount     int
	lastError      string
	lastDispatch   time.Time
}

func NewInstance(def domain.NodeDefinition, node ports.Node, policy domain.NodePolicy, limiter ports.RateLimiter, logger *slog.Logger) *Instance {
	if logger == nil {
		logger = slog.Default()
	}

	limiter.SetLimit(def.ID, policy.RateLimit)

	return &Instance{
		def:     def,
		node:    node,
		policy:  policy,
		limiter: limiter,
		logger:  logger.With("component", "node-runtime", "node_id", def.ID),
		active:  true,
	}
}

func (i *Instance) ID() string {
	return i.def.ID
}

func (i *Instance) Definition() domain.NodeDefinition {
	return i.def
}

func (i *Instance) Node() ports.Node {
	return i.node
}

func (i *Instance) Policy() domain.NodePolicy {
	return i.policy
}

// SetActive lets an operator disable a node between runs without
// removing it from the graph.
func (i *Instance) SetActive(active bool) {
	i.mu.Lock()
	i.active = active
	i.mu.Unlock()
}

// Reset clears the bookkeeping counters without destroying the
// instance.
func (i *Instance) Reset() {
	i.mu.Lock()
	i.executionCount = 0
	i.errorCount = 0
	i.lastError = ""
	i.lastDispatch = time.Time{}
	i.mu.Unlock()

	i.limiter.Reset(i.def.ID)
}

func (i *Instance) Stats() domain.NodeStats {
	i.mu.Lock()
	defer i.mu.Unlock()

	stats := domain.NodeStats{
		NodeID:         i.def.ID,
		Active:         i.active,
		ExecutionCount: i.executionCount,
		ErrorCount:     i.errorCount,
		LastError:      i.lastError,
	}
	if !i.lastDispatch.IsZero() {
		dispatch := i.lastDispatch
		stats.LastDispatch = &dispatch
	}
	return stats
}

// Run executes the node under the instance's policy. It always returns
// a result; execution failures are values on it, never raised.
func (i *Instance) Run(ctx context.Context, inputs map[string]interface{}) *domain.NodeResult {
	start := time.Now()

	i.mu.Lock()
	active := i.active
	i.mu.Unlock()

	if !active {
		return i.failure(start, domain.ErrNodeInactive.Error())
	}

	if err := i.validateInputs(inputs); err != nil {
		i.logger.Debug("input validation failed", "error", err.Error())
		return i.failure(start, err.Error())
	}

	attempts := i.policy.MaxRetries + 1
	var result *domain.NodeResult

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, i.policy.RetryDelay); err != nil {
				break
			}
		}

		if err := i.limiter.Wait(ctx, i.def.ID); err != nil {
			i.logger.Debug("rate limit wait aborted", "error", err.Error())
			break
		}

		i.mu.Lock()
		i.executionCount++
		i.lastDispatch = time.Now()
		i.mu.Unlock()

		result = i.attempt(ctx, inputs)
		if result.Success {
			i.logger.Debug("node execution succeeded", "attempt", attempt)
			return i.stamp(result, start)
		}

		i.mu.Lock()
		i.errorCount++
		i.lastError = result.Error
		i.mu.Unlock()

		i.logger.Debug("node execution attempt failed",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", result.Error,
		)
	}

	if result == nil {
		return i.failure(start, ctx.Err().Error())
	}
	return i.stamp(result, start)
}

// attempt bounds one Execute call with the per-attempt timeout. The
// node runs on its own goroutine so a stuck Execute cannot wedge the
// scheduling loop; a timed-out attempt counts against the retry
// budget. Cancellation of ctx is cooperative: the node sees it through
// its own context and is allowed to finish the attempt.
func (i *Instance) attempt(ctx context.Context, inputs map[string]interface{}) *domain.NodeResult {
	attemptCtx, cancel := context.WithTimeout(ctx, i.policy.Timeout)
	defer cancel()

	type outcome struct {
		result *domain.NodeResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("node panicked: %v", r)}
			}
		}()

		result, err := i.node.Execute(attemptCtx, inputs)
		done <- outcome{result: result, err: err}
	}()

	deadline := time.NewTimer(i.policy.Timeout)
	defer deadline.Stop()

	select {
	case out := <-done:
		switch {
		case out.err != nil && errors.Is(out.err, context.DeadlineExceeded):
			return &domain.NodeResult{Success: false, Error: domain.ErrAttemptTimeout.Error()}
		case out.err != nil:
			return &domain.NodeResult{Success: false, Error: out.err.Error()}
		case out.result == nil:
			return &domain.NodeResult{Success: false, Error: domain.ErrNilResult.Error()}
		default:
			return out.result
		}
	case <-deadline.C:
		return &domain.NodeResult{Success: false, Error: domain.ErrAttemptTimeout.Error()}
	}
}

func (i *Instance) validateInputs(inputs map[string]interface{}) error {
	for _, declared := range i.node.Inputs() {
		if ports.IsOptionalInput(declared) {
			continue
		}
		if _, ok := inputs[declared]; !ok {
			return &domain.ValidationError{
				NodeID:  i.def.ID,
				Field:   declared,
				Message: "missing required input",
			}
		}
	}
	return nil
}

func (i *Instance) failure(start time.Time, message string) *domain.NodeResult {
	return i.stamp(&domain.NodeResult{Success: false, Error: message}, start)
}

func (i *Instance) stamp(result *domain.NodeResult, start time.Time) *domain.NodeResult {
	result.NodeID = i.def.ID
	result.Duration = time.Since(start)
	result.CompletedAt = time.Now()
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
