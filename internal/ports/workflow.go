package ports

import (
	"time"
)

// WorkflowStatus is a side-effect-free snapshot of one loaded workflow.
type WorkflowStatus struct {
	WorkflowID      string     `json:"workflow_id"`
	Name            string     `json:"name"`
	NodeCount       int        `json:"node_count"`
	ConnectionCount int        `json:"connection_count"`
	Running         bool       `json:"running"`
	LastRun         *time.Time `json:"last_run,omitempty"`
}

type WorkflowSummary struct {
	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name"`
	NodeCount  int    `json:"node_count"`
	Running    bool   `json:"running"`
}
