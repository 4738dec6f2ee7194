package domain

import (
	"time"
)

// NodeResult is the only thing the engine observes about a node run.
// Payload is producer-defined; downstream nodes consume it through
// their declared input names.
type NodeResult struct {
	NodeID      string                 `json:"node_id"`
	Success     bool                   `json:"success"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Duration    time.Duration          `json:"duration"`
	CompletedAt time.Time              `json:"completed_at"`
}

// ExecutionRecord is an append-only log entry retained for the lifetime
// of the engine that produced it.
type ExecutionRecord struct {
	ID        string        `json:"id"`
	NodeID    string        `json:"node_id"`
	Timestamp time.Time     `json:"timestamp"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

type RunResult struct {
	RunID          string                 `json:"run_id"`
	WorkflowID     string                 `json:"workflow_id"`
	Success        bool                   `json:"success"`
	Cancelled      bool                   `json:"cancelled,omitempty"`
	Elapsed        time.Duration          `json:"elapsed"`
	NodeResults    map[string]*NodeResult `json:"node_results"`
	CompletedNodes int                    `json:"completed_nodes"`
	TotalNodes     int                    `json:"total_nodes"`
}

// NodeStats exposes a node instance's bookkeeping counters.
type NodeStats struct {
	NodeID         string     `json:"node_id"`
	Active         bool       `json:"active"`
	ExecutionCount int        `json:"execution_count"`
	ErrorCount     int        `json:"error_count"`
	LastError      string     `json:"last_error,omitempty"`
	LastDispatch   *time.Time `json:"last_dispatch,omitempty"`
}
