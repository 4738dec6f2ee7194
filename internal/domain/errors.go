package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrWorkflowActive   = errors.New("workflow already running")
	ErrWorkflowExists   = errors.New("workflow already loaded")
	ErrNodeInactive     = errors.New("node is deactivated")
	ErrAttemptTimeout   = errors.New("execute attempt timed out")
	ErrNilResult        = errors.New("node returned nil result")
)

// ValidationError marks a structural defect in a workflow definition or
// a missing mandatory input at dispatch time. Never retried.
type ValidationError struct {
	NodeID  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	switch {
	case e.NodeID != "" && e.Field != "":
		return fmt.Sprintf("validation: node %s: %s: %s", e.NodeID, e.Field, e.Message)
	case e.NodeID != "":
		return fmt.Sprintf("validation: node %s: %s", e.NodeID, e.Message)
	default:
		return "validation: " + e.Message
	}
}

// ValidationErrors aggregates every defect found in one pass so the
// caller sees the full list, not just the first failure.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(e), strings.Join(msgs, "; "))
}

// CycleError reports a dependency cycle found at load time. Nodes are
// listed in path order.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Nodes, " -> ")
}

type ManagerError struct {
	WorkflowID string
	Op         string
	Err        error
}

func (e *ManagerError) Error() string {
	return fmt.Sprintf("manager[%s] %s: %v", e.WorkflowID, e.Op, e.Err)
}

func (e *ManagerError) Unwrap() error {
	return e.Err
}

func NewManagerError(workflowID, op string, err error) *ManagerError {
	return &ManagerError{WorkflowID: workflowID, Op: op, Err: err}
}

func IsValidationError(err error) bool {
	var single *ValidationError
	var list ValidationErrors
	return errors.As(err, &single) || errors.As(err, &list)
}

func IsCycleError(err error) bool {
	var cycleErr *CycleError
	return errors.As(err, &cycleErr)
}

func IsManagerError(err error) bool {
	var managerErr *ManagerError
	return errors.As(err, &managerErr)
}

func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

func IsWorkflowActive(err error) bool {
	return errors.Is(err, ErrWorkflowActive)
}

func IsAttemptTimeout(err error) bool {
	return errors.Is(err, ErrAttemptTimeout)
}
