package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/trawlkit/trawl/internal/adapters/graph"
	"github.com/trawlkit/trawl/internal/adapters/runtime"
	"github.com/trawlkit/trawl/internal/domain"
)

// Engine executes one loaded workflow definition. Node instances are
// created at load time and owned exclusively by this engine; the
// execution-record history spans the engine's lifetime.
type Engine struct {
	def       *domain.WorkflowDefinition
	graph     *graph.Graph
	instances map[string]*runtime.Instance
	inbound   map[string][]domain.ConnectionDefinition
	logger    *slog.Logger

	// maxConcurrent bounds simultaneously running nodes per run;
	// zero or negative means unbounded.
	maxConcurrent int

	mu      sync.Mutex
	history []domain.ExecutionRecord
}

func New(def *domain.WorkflowDefinition, g *graph.Graph, instances map[string]*runtime.Instance, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	inbound := make(map[string][]domain.ConnectionDefinition)
	for _, conn := range def.Connections {
		inbound[conn.To] = append(inbound[conn.To], conn)
	}

	return &Engine{
		def:       def,
		graph:     g,
		instances: instances,
		inbound:   inbound,
		logger:    logger.With("component", "engine", "workflow_id", def.ID),
	}
}

func (e *Engine) SetMaxConcurrent(n int) {
	e.maxConcurrent = n
}

func (e *Engine) Definition() *domain.WorkflowDefinition {
	return e.def
}

func (e *Engine) NodeCount() int {
	return len(e.instances)
}

func (e *Engine) ConnectionCount() int {
	return len(e.def.Connections)
}

func (e *Engine) Instance(id string) *runtime.Instance {
	return e.instances[id]
}

// Reset clears every node instance's counters. The history is kept.
func (e *Engine) Reset() {
	for _, instance := range e.instances {
		instance.Reset()
	}
}

// History returns a copy of the append-only execution log.
func (e *Engine) History() []domain.ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	records := make([]domain.ExecutionRecord, len(e.history))
	copy(records, e.history)
	return records
}

type nodeOutcome struct {
	nodeID string
	result *domain.NodeResult
}

// Run drives the definition to completion for a single run. Cancelling
// ctx stops new dispatches; nodes already dispatched finish their
// current attempt and their results are still recorded.
func (e *Engine) Run(ctx context.Context, trigger map[string]interface{}) *domain.RunResult {
	start := time.Now()
	runID := uuid.NewString()

	e.logger.Info("run started", "run_id", runID, "nodes", len(e.instances))

	results := make(map[string]*domain.NodeResult, len(e.instances))
	dispatched := make(map[string]struct{}, len(e.instances))
	ready := e.graph.Roots()
	cancelled := false
	inFlight := 0

	outcomes := make(chan nodeOutcome, len(e.instances))

	group := &errgroup.Group{}
	if e.maxConcurrent > 0 {
		group.SetLimit(e.maxConcurrent)
	}

	for {
		if !cancelled {
			for _, nodeID := range ready {
				if _, seen := dispatched[nodeID]; seen {
					continue
				}
				dispatched[nodeID] = struct{}{}
				inFlight++

				id := nodeID
				inputs := e.buildInputs(id, trigger, results)
				group.Go(func() error {
					outcomes <- nodeOutcome{nodeID: id, result: e.instances[id].Run(ctx, inputs)}
					return nil
				})
			}
		}
		ready = ready[:0]

		if inFlight == 0 {
			break
		}

		if cancelled {
			out := <-outcomes
			inFlight--
			e.complete(runID, out, results)
			continue
		}

		select {
		case out := <-outcomes:
			inFlight--
			e.complete(runID, out, results)

			for _, dependent := range e.graph.Dependents(out.nodeID) {
				if e.upstreamsDone(dependent, results) {
					ready = append(ready, dependent)
				}
			}
		case <-ctx.Done():
			cancelled = true
			e.logger.Info("run cancelled, draining in-flight nodes", "run_id", runID, "in_flight", inFlight)
		}
	}

	_ = group.Wait()

	success := !cancelled && len(results) == len(e.instances)
	for _, result := range results {
		if !result.Success {
			success = false
			break
		}
	}

	run := &domain.RunResult{
		RunID:          runID,
		WorkflowID:     e.def.ID,
		Success:        success,
		Cancelled:      cancelled,
		Elapsed:        time.Since(start),
		NodeResults:    results,
		CompletedNodes: len(results),
		TotalNodes:     len(e.instances),
	}

	e.logger.Info("run finished",
		"run_id", runID,
		"success", run.Success,
		"completed", run.CompletedNodes,
		"total", run.TotalNodes,
		"elapsed", run.Elapsed,
	)

	return run
}

func (e *Engine) complete(runID string, out nodeOutcome, results map[string]*domain.NodeResult) {
	results[out.nodeID] = out.result

	record := domain.ExecutionRecord{
		ID:        uuid.NewString(),
		NodeID:    out.nodeID,
		Timestamp: out.result.CompletedAt,
		Success:   out.result.Success,
		Duration:  out.result.Duration,
		Error:     out.result.Error,
	}

	e.mu.Lock()
	e.history = append(e.history, record)
	e.mu.Unlock()

	if out.result.Success {
		e.logger.Debug("node completed", "run_id", runID, "node_id", out.nodeID, "duration", out.result.Duration)
	} else {
		e.logger.Debug("node failed", "run_id", runID, "node_id", out.nodeID, "error", out.result.Error)
	}
}

func (e *Engine) upstreamsDone(nodeID string, results map[string]*domain.NodeResult) bool {
	for _, upstream := range e.graph.Dependencies(nodeID) {
		if _, done := results[upstream]; !done {
			return false
		}
	}
	return true
}
