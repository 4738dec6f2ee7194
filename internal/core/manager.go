package core

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/trawlkit/trawl/internal/adapters/config"
	"github.com/trawlkit/trawl/internal/adapters/engine"
	"github.com/trawlkit/trawl/internal/adapters/graph"
	"github.com/trawlkit/trawl/internal/adapters/ratelimit"
	"github.com/trawlkit/trawl/internal/adapters/registry"
	"github.com/trawlkit/trawl/internal/adapters/runtime"
	"github.com/trawlkit/trawl/internal/domain"
	"github.com/trawlkit/trawl/internal/ports"
)

type workflowEntry struct {
	def     *domain.WorkflowDefinition
	engine  *engine.Engine
	running bool
	lastRun *time.Time
}

// Manager owns the set of loaded workflow definitions and mediates
// concurrent runs. Distinct workflow ids may run concurrently; a
// second run of an id already active is rejected.
type Manager struct {
	registry  ports.NodeRegistry
	validator *config.Validator
	logger    *slog.Logger

	mu        sync.Mutex
	workflows map[string]*workflowEntry
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	reg := registry.NewAdapter(logger)

	return &Manager{
		registry:  reg,
		validator: config.NewValidator(reg, logger),
		logger:    logger.With("component", "manager"),
		workflows: make(map[string]*workflowEntry),
	}
}

func (m *Manager) Registry() ports.NodeRegistry {
	return m.registry
}

func (m *Manager) RegisterNode(typeTag string, factory ports.Factory) error {
	return m.registry.Register(typeTag, factory)
}

func (m *Manager) RegisterNodeWithSchema(typeTag string, factory ports.Factory, schema ports.ParameterSchema) error {
	return m.registry.RegisterWithSchema(typeTag, factory, schema)
}

// Load validates the definition, builds its dependency graph,
// instantiates every node, and stores a ready engine keyed by the
// workflow id. Load-time errors abort the whole load; no partially
// built engine is ever stored.
func (m *Manager) Load(def *domain.WorkflowDefinition) (string, error) {
	if err := m.validator.Validate(def); err != nil {
		return "", err
	}

	g, err := graph.Build(def)
	if err != nil {
		return "", err
	}

	limiter := ratelimit.NewLimiter(m.logger)
	instances := make(map[string]*runtime.Instance, len(def.Nodes))
	var inputErrs domain.ValidationErrors

	for _, nodeDef := range def.Nodes {
		factory, err := m.registry.Resolve(nodeDef.Type)
		if err != nil {
			return "", err
		}

		node, err := factory(nodeDef)
		if err != nil {
			return "", &domain.ValidationError{NodeID: nodeDef.ID, Message: "factory failed: " + err.Error()}
		}

		policy, err := domain.PolicyFromParameters(nodeDef.ID, nodeDef.Parameters)
		if err != nil {
			return "", err
		}

		instances[nodeDef.ID] = runtime.NewInstance(nodeDef, node, policy, limiter, m.logger)
	}

	// A connection's destination input must be one the destination
	// node declares as accepted.
	for _, conn := range def.Connections {
		instance := instances[conn.To]
		if instance == nil {
			continue
		}
		if !ports.DeclaresInput(instance.Node(), conn.ToInput) {
			inputErrs = append(inputErrs, &domain.ValidationError{
				NodeID:  conn.To,
				Field:   conn.ToInput,
				Message: "connection targets an undeclared input",
			})
		}
	}
	if len(inputErrs) > 0 {
		return "", inputErrs
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workflows[def.ID]; exists {
		return "", domain.NewManagerError(def.ID, "load", domain.ErrWorkflowExists)
	}

	m.workflows[def.ID] = &workflowEntry{
		def:    def,
		engine: engine.New(def, g, instances, m.logger),
	}

	m.logger.Info("workflow loaded", "workflow_id", def.ID, "nodes", len(def.Nodes), "connections", len(def.Connections))
	return def.ID, nil
}

// Execute runs a loaded workflow. The id is marked active for the
// duration of the run, including failed runs.
func (m *Manager) Execute(ctx context.Context, workflowID string, trigger map[string]interface{}) (*domain.RunResult, error) {
	m.mu.Lock()
	entry, exists := m.workflows[workflowID]
	if !exists {
		m.mu.Unlock()
		return nil, domain.NewManagerError(workflowID, "execute", domain.ErrWorkflowNotFound)
	}
	if entry.running {
		m.mu.Unlock()
		return nil, domain.NewManagerError(workflowID, "execute", domain.ErrWorkflowActive)
	}
	entry.running = true
	m.mu.Unlock()

	defer func() {
		now := time.Now()
		m.mu.Lock()
		entry.running = false
		entry.lastRun = &now
		m.mu.Unlock()
	}()

	return entry.engine.Run(ctx, trigger), nil
}

// Status reports a workflow's shape and run state without side
// effects.
func (m *Manager) Status(workflowID string) (*ports.WorkflowStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.workflows[workflowID]
	if !exists {
		return nil, domain.NewManagerError(workflowID, "status", domain.ErrWorkflowNotFound)
	}

	return &ports.WorkflowStatus{
		WorkflowID:      workflowID,
		Name:            entry.def.Name,
		NodeCount:       entry.engine.NodeCount(),
		ConnectionCount: entry.engine.ConnectionCount(),
		Running:         entry.running,
		LastRun:         entry.lastRun,
	}, nil
}

func (m *Manager) List() []ports.WorkflowSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summaries := make([]ports.WorkflowSummary, 0, len(m.workflows))
	for id, entry := range m.workflows {
		summaries = append(summaries, ports.WorkflowSummary{
			WorkflowID: id,
			Name:       entry.def.Name,
			NodeCount:  entry.engine.NodeCount(),
			Running:    entry.running,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].WorkflowID < summaries[j].WorkflowID
	})
	return summaries
}

// History returns the engine-lifetime execution records for a loaded
// workflow.
func (m *Manager) History(workflowID string) ([]domain.ExecutionRecord, error) {
	m.mu.Lock()
	entry, exists := m.workflows[workflowID]
	m.mu.Unlock()

	if !exists {
		return nil, domain.NewManagerError(workflowID, "history", domain.ErrWorkflowNotFound)
	}
	return entry.engine.History(), nil
}

// NodeStats exposes one node instance's counters.
func (m *Manager) NodeStats(workflowID, nodeID string) (*domain.NodeStats, error) {
	m.mu.Lock()
	entry, exists := m.workflows[workflowID]
	m.mu.Unlock()

	if !exists {
		return nil, domain.NewManagerError(workflowID, "node_stats", domain.ErrWorkflowNotFound)
	}

	instance := entry.engine.Instance(nodeID)
	if instance == nil {
		return nil, domain.NewManagerError(workflowID, "node_stats", domain.ErrWorkflowNotFound)
	}

	stats := instance.Stats()
	return &stats, nil
}

// SetNodeActive toggles a node instance between runs without removing
// it from the graph.
func (m *Manager) SetNodeActive(workflowID, nodeID string, active bool) error {
	m.mu.Lock()
	entry, exists := m.workflows[workflowID]
	m.mu.Unlock()

	if !exists {
		return domain.NewManagerError(workflowID, "set_node_active", domain.ErrWorkflowNotFound)
	}

	instance := entry.engine.Instance(nodeID)
	if instance == nil {
		return domain.NewManagerError(workflowID, "set_node_active", domain.ErrWorkflowNotFound)
	}

	instance.SetActive(active)
	return nil
}

// Unload removes a workflow that is not currently running.
func (m *Manager) Unload(workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.workflows[workflowID]
	if !exists {
		return domain.NewManagerError(workflowID, "unload", domain.ErrWorkflowNotFound)
	}
	if entry.running {
		return domain.NewManagerError(workflowID, "unload", domain.ErrWorkflowActive)
	}

	delete(m.workflows, workflowID)
	m.logger.Info("workflow unloaded", "workflow_id", workflowID)
	return nil
}
