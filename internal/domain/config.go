package domain

import (
	"fmt"
	"time"
)

// Reserved parameter keys understood by the runtime wrapper on every
// node type. Remaining parameters are node-type-specific.
const (
	ParamMaxRetries = "max_retries"
	ParamRetryDelay = "retry_delay"
	ParamTimeout    = "timeout"
	ParamRateLimit  = "rate_limit"
)

// NodePolicy is the cross-cutting execution policy applied by the
// runtime wrapper. Durations in the parameter map are seconds.
type NodePolicy struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	RateLimit  float64
}

func DefaultNodePolicy() NodePolicy {
	return NodePolicy{
		MaxRetries: 3,
		RetryDelay: time.Second,
		Timeout:    30 * time.Second,
		RateLimit:  0,
	}
}

// PolicyFromParameters overlays reserved parameter keys onto the
// default policy. A malformed value is a ValidationError.
func PolicyFromParameters(nodeID string, params map[string]interface{}) (NodePolicy, error) {
	policy := DefaultNodePolicy()

	if raw, ok := params[ParamMaxRetries]; ok {
		n, err := asNumber(raw)
		if err != nil || n < 0 {
			return policy, &ValidationError{NodeID: nodeID, Field: ParamMaxRetries, Message: "must be a non-negative number"}
		}
		policy.MaxRetries = int(n)
	}

	if raw, ok := params[ParamRetryDelay]; ok {
		n, err := asNumber(raw)
		if err != nil || n < 0 {
			return policy, &ValidationError{NodeID: nodeID, Field: ParamRetryDelay, Message: "must be a non-negative number of seconds"}
		}
		policy.RetryDelay = time.Duration(n * float64(time.Second))
	}

	if raw, ok := params[ParamTimeout]; ok {
		n, err := asNumber(raw)
		if err != nil || n <= 0 {
			return policy, &ValidationError{NodeID: nodeID, Field: ParamTimeout, Message: "must be a positive number of seconds"}
		}
		policy.Timeout = time.Duration(n * float64(time.Second))
	}

	if raw, ok := params[ParamRateLimit]; ok {
		n, err := asNumber(raw)
		if err != nil || n < 0 {
			return policy, &ValidationError{NodeID: nodeID, Field: ParamRateLimit, Message: "must be a non-negative number of calls per second"}
		}
		policy.RateLimit = n
	}

	return policy, nil
}

func asNumber(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
