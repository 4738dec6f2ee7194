// Package trawl provides a single-process workflow execution engine
// that orchestrates heterogeneous data-collection tasks as a directed
// acyclic graph of typed nodes.
//
// Concrete units of work (scrapers, filters, transformers, storage
// writers) implement the Node contract and are registered under a type
// tag; workflow definitions wire registered types together through
// named inputs and outputs. The engine handles dependency ordering,
// concurrent execution of independent branches, per-node retry,
// backoff, rate limiting, and timeouts, and partial-failure
// containment: a failing branch never aborts its siblings.
//
// Basic usage:
//
//	manager := trawl.New(logger)
//	manager.RegisterNode("fetch", newFetchNode)
//
//	def, _ := trawl.ParseDefinition(data)
//	id, err := manager.Load(def)
//	result, err := manager.Execute(ctx, id, map[string]interface{}{"seed": "https://example.com"})
package trawl

import (
	"log/slog"

	"github.com/trawlkit/trawl/internal/core"
	"github.com/trawlkit/trawl/internal/domain"
	"github.com/trawlkit/trawl/internal/ports"
)

// Manager is the registry of loaded workflow definitions and the entry
// point for starting and tracking runs.
type Manager = core.Manager

// Node is the capability surface every pluggable unit of work
// implements: declared inputs, declared outputs, and an Execute body.
type Node = ports.Node

// Factory builds a Node from its definition; registered per type tag.
type Factory = ports.Factory

// ParameterSchema supplies a parameter struct for load-time shape
// validation of a node type's parameter map.
type ParameterSchema = ports.ParameterSchema

// WorkflowDefinition is the structured document a workflow is loaded
// from.
type WorkflowDefinition = domain.WorkflowDefinition

// NodeDefinition describes one node in a workflow definition.
type NodeDefinition = domain.NodeDefinition

// ConnectionDefinition wires one node's named output to another node's
// named input.
type ConnectionDefinition = domain.ConnectionDefinition

// NodeResult is what a node execution produces and what downstream
// nodes consume.
type NodeResult = domain.NodeResult

// RunResult aggregates one run: overall success, elapsed time, and
// every node's individual outcome.
type RunResult = domain.RunResult

// ExecutionRecord is one append-only history entry per node run.
type ExecutionRecord = domain.ExecutionRecord

// NodeStats exposes a node instance's execution counters.
type NodeStats = domain.NodeStats

// NodePolicy is the per-node cross-cutting execution policy.
type NodePolicy = domain.NodePolicy

// WorkflowStatus is a side-effect-free snapshot of a loaded workflow.
type WorkflowStatus = ports.WorkflowStatus

// WorkflowSummary is the List() element for a loaded workflow.
type WorkflowSummary = ports.WorkflowSummary

// ValidationError marks a structural defect in a definition or a
// missing mandatory input at dispatch time.
type ValidationError = domain.ValidationError

// ValidationErrors is the full list of defects found in one load.
type ValidationErrors = domain.ValidationErrors

// CycleError reports a dependency cycle detected at load time.
type CycleError = domain.CycleError

// ManagerError wraps manager-level failures such as unknown or
// already-active workflow ids.
type ManagerError = domain.ManagerError

var (
	ErrWorkflowNotFound = domain.ErrWorkflowNotFound
	ErrWorkflowActive   = domain.ErrWorkflowActive
	ErrWorkflowExists   = domain.ErrWorkflowExists
	ErrNodeInactive     = domain.ErrNodeInactive
	ErrAttemptTimeout   = domain.ErrAttemptTimeout
)

// TriggerInput is the input name through which root nodes receive the
// run's trigger payload.
const TriggerInput = ports.TriggerInput

// OptionalPrefix marks a declared input name as optional.
const OptionalPrefix = ports.OptionalPrefix

// New constructs a Manager with an empty node-type registry.
func New(logger *slog.Logger) *Manager {
	return core.NewManager(logger)
}

// ParseDefinition decodes a JSON or YAML workflow definition document.
func ParseDefinition(data []byte) (*WorkflowDefinition, error) {
	return domain.ParseDefinition(data)
}

// DefaultNodePolicy returns the policy applied when a node's parameter
// map sets no overrides: 3 retries, 1s retry delay, 30s timeout, no
// rate limit.
func DefaultNodePolicy() NodePolicy {
	return domain.DefaultNodePolicy()
}
