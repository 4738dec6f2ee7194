package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trawlkit/trawl/internal/adapters/graph"
	"github.com/trawlkit/trawl/internal/adapters/ratelimit"
	"github.com/trawlkit/trawl/internal/adapters/runtime"
	"github.com/trawlkit/trawl/internal/domain"
	"github.com/trawlkit/trawl/internal/ports"
)

// recorder tracks node start order across a run.
type recorder struct {
	mu     sync.Mutex
	starts []string
}

func (r *recorder) record(id string) {
	r.mu.Lock()
	r.starts = append(r.starts, id)
	r.mu.Unlock()
}

func (r *recorder) index(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.starts {
		if s == id {
			return i
		}
	}
	return -1
}

type testNode struct {
	id       string
	inputs   []string
	rec      *recorder
	fail     bool
	sleep    time.Duration
	payload  map[string]interface{}
	lastSeen map[string]interface{}
	mu       sync.Mutex
}

func (n *testNode) Inputs() []string  { return n.inputs }
func (n *testNode) Outputs() []string { return []string{"out"} }

func (n *testNode) Execute(ctx context.Context, inputs map[string]interface{}) (*domain.NodeResult, error) {
	if n.rec != nil {
		n.rec.record(n.id)
	}

	n.mu.Lock()
	n.lastSeen = inputs
	n.mu.Unlock()

	if n.sleep > 0 {
		// Deliberately not ctx-aware: cancellation tests rely on the
		// attempt running to completion.
		time.Sleep(n.sleep)
	}

	if n.fail {
		return &domain.NodeResult{Success: false, Error: "scripted failure"}, nil
	}

	payload := n.payload
	if payload == nil {
		payload = map[string]interface{}{"out": n.id}
	}
	return &domain.NodeResult{Success: true, Payload: payload}, nil
}

func (n *testNode) seen() map[string]interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastSeen
}

type testWorkflow struct {
	def   *domain.WorkflowDefinition
	nodes map[string]*testNode
}

func buildEngine(t *testing.T, wf testWorkflow) *Engine {
	t.Helper()

	g, err := graph.Build(wf.def)
	require.NoError(t, err)

	limiter := ratelimit.NewLimiter(nil)
	instances := make(map[string]*runtime.Instance, len(wf.def.Nodes))
	for _, nodeDef := range wf.def.Nodes {
		policy := domain.NodePolicy{MaxRetries: 0, RetryDelay: time.Millisecond, Timeout: time.Second}
		if raw, ok := nodeDef.Parameters[domain.ParamMaxRetries]; ok {
			policy.MaxRetries = raw.(int)
		}
		instances[nodeDef.ID] = runtime.NewInstance(nodeDef, wf.nodes[nodeDef.ID], policy, limiter, nil)
	}

	return New(wf.def, g, instances, nil)
}

func diamondWorkflow(rec *recorder) testWorkflow {
	// A and D are roots; B depends on A; C depends on B and D.
	nodes := map[string]*testNode{
		"a": {id: "a", rec: rec},
		"b": {id: "b", rec: rec, inputs: []string{"?feed"}},
		"c": {id: "c", rec: rec, inputs: []string{"?left", "?right"}},
		"d": {id: "d", rec: rec},
	}

	def := &domain.WorkflowDefinition{
		ID: "wf",
		Nodes: []domain.NodeDefinition{
			{ID: "a", Type: "test"}, {ID: "b", Type: "test"},
			{ID: "c", Type: "test"}, {ID: "d", Type: "test"},
		},
		Connections: []domain.ConnectionDefinition{
			{From: "a", FromOutput: "out", To: "b", ToInput: "feed"},
			{From: "b", FromOutput: "out", To: "c", ToInput: "left"},
			{From: "d", FromOutput: "out", To: "c", ToInput: "right"},
		},
	}

	return testWorkflow{def: def, nodes: nodes}
}

func TestRunRespectsDependencyOrder(t *testing.T) {
	rec := &recorder{}
	e := buildEngine(t, diamondWorkflow(rec))

	result := e.Run(context.Background(), nil)

	require.True(t, result.Success)
	assert.Equal(t, 4, result.CompletedNodes)
	assert.Equal(t, 4, result.TotalNodes)

	// A before B, B and D before C; A and D in either relative order.
	assert.Less(t, rec.index("a"), rec.index("b"))
	assert.Less(t, rec.index("b"), rec.index("c"))
	assert.Less(t, rec.index("d"), rec.index("c"))
}

func TestRunAggregateSuccessRequiresAllNodes(t *testing.T) {
	rec := &recorder{}
	wf := diamondWorkflow(rec)
	wf.nodes["d"].fail = true
	e := buildEngine(t, wf)

	result := e.Run(context.Background(), nil)

	require.False(t, result.Success)
	// Every node still reports an individual outcome.
	assert.Equal(t, 4, result.CompletedNodes)
	assert.False(t, result.NodeResults["d"].Success)
	assert.True(t, result.NodeResults["a"].Success)
	assert.True(t, result.NodeResults["c"].Success)
}

func TestFailedUpstreamSurfacesAsDependentValidation(t *testing.T) {
	// B requires its input; A fails, so B is still enqueued and fails
	// its own input validation instead of being skipped.
	nodes := map[string]*testNode{
		"a": {id: "a", fail: true},
		"b": {id: "b", inputs: []string{"feed"}},
	}
	def := &domain.WorkflowDefinition{
		ID:    "wf",
		Nodes: []domain.NodeDefinition{{ID: "a", Type: "test"}, {ID: "b", Type: "test"}},
		Connections: []domain.ConnectionDefinition{
			{From: "a", FromOutput: "out", To: "b", ToInput: "feed"},
		},
	}
	e := buildEngine(t, testWorkflow{def: def, nodes: nodes})

	result := e.Run(context.Background(), nil)

	require.False(t, result.Success)
	assert.Equal(t, 2, result.CompletedNodes)
	require.NotNil(t, result.NodeResults["b"])
	assert.Contains(t, result.NodeResults["b"].Error, "missing required input")
	// B's execute body never ran.
	assert.Nil(t, nodes["b"].seen())
}

func TestNamedOutputRouting(t *testing.T) {
	nodes := map[string]*testNode{
		"a": {id: "a", payload: map[string]interface{}{"page": "<html>", "status": 200}},
		"b": {id: "b", inputs: []string{"document"}},
	}
	def := &domain.WorkflowDefinition{
		ID:    "wf",
		Nodes: []domain.NodeDefinition{{ID: "a", Type: "test"}, {ID: "b", Type: "test"}},
		Connections: []domain.ConnectionDefinition{
			{From: "a", FromOutput: "page", To: "b", ToInput: "document"},
		},
	}
	e := buildEngine(t, testWorkflow{def: def, nodes: nodes})

	result := e.Run(context.Background(), nil)

	require.True(t, result.Success)
	assert.Equal(t, "<html>", nodes["b"].seen()["document"])
}

func TestWholePayloadFallback(t *testing.T) {
	payload := map[string]interface{}{"rows": []interface{}{1, 2}}
	nodes := map[string]*testNode{
		"a": {id: "a", payload: payload},
		"b": {id: "b", inputs: []string{"data"}},
	}
	def := &domain.WorkflowDefinition{
		ID:    "wf",
		Nodes: []domain.NodeDefinition{{ID: "a", Type: "test"}, {ID: "b", Type: "test"}},
		Connections: []domain.ConnectionDefinition{
			// "everything" is not a key in A's payload.
			{From: "a", FromOutput: "everything", To: "b", ToInput: "data"},
		},
	}
	e := buildEngine(t, testWorkflow{def: def, nodes: nodes})

	result := e.Run(context.Background(), nil)

	require.True(t, result.Success)
	assert.Equal(t, payload, nodes["b"].seen()["data"])
}

func TestTriggerInjectedOnlyIntoDeclaringRoots(t *testing.T) {
	nodes := map[string]*testNode{
		"a": {id: "a", inputs: []string{ports.TriggerInput}},
		"b": {id: "b"},
		"c": {id: "c", inputs: []string{"?feed", "?" + ports.TriggerInput}},
	}
	def := &domain.WorkflowDefinition{
		ID: "wf",
		Nodes: []domain.NodeDefinition{
			{ID: "a", Type: "test"}, {ID: "b", Type: "test"}, {ID: "c", Type: "test"},
		},
		Connections: []domain.ConnectionDefinition{
			{From: "a", FromOutput: "out", To: "c", ToInput: "feed"},
		},
	}
	e := buildEngine(t, testWorkflow{def: def, nodes: nodes})

	trigger := map[string]interface{}{"seed": "https://example.com"}
	result := e.Run(context.Background(), trigger)

	require.True(t, result.Success)
	assert.Equal(t, trigger, nodes["a"].seen()[ports.TriggerInput])
	// B is a root but declares no trigger input.
	assert.NotContains(t, nodes["b"].seen(), ports.TriggerInput)
	// C declares one but is not a root.
	assert.NotContains(t, nodes["c"].seen(), ports.TriggerInput)
}

func TestIndependentBranchesRunConcurrently(t *testing.T) {
	nodes := map[string]*testNode{
		"a": {id: "a", sleep: 100 * time.Millisecond},
		"b": {id: "b", sleep: 100 * time.Millisecond},
		"c": {id: "c", sleep: 100 * time.Millisecond},
	}
	def := &domain.WorkflowDefinition{
		ID: "wf",
		Nodes: []domain.NodeDefinition{
			{ID: "a", Type: "test"}, {ID: "b", Type: "test"}, {ID: "c", Type: "test"},
		},
	}
	e := buildEngine(t, testWorkflow{def: def, nodes: nodes})

	start := time.Now()
	result := e.Run(context.Background(), nil)

	require.True(t, result.Success)
	// Serial execution would take >= 300ms.
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestMaxConcurrentSerializesDispatch(t *testing.T) {
	nodes := map[string]*testNode{
		"a": {id: "a", sleep: 50 * time.Millisecond},
		"b": {id: "b", sleep: 50 * time.Millisecond},
	}
	def := &domain.WorkflowDefinition{
		ID:    "wf",
		Nodes: []domain.NodeDefinition{{ID: "a", Type: "test"}, {ID: "b", Type: "test"}},
	}
	e := buildEngine(t, testWorkflow{def: def, nodes: nodes})
	e.SetMaxConcurrent(1)

	start := time.Now()
	result := e.Run(context.Background(), nil)

	require.True(t, result.Success)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestCancellationStopsNewDispatches(t *testing.T) {
	rec := &recorder{}
	nodes := map[string]*testNode{
		"a": {id: "a", rec: rec, sleep: 80 * time.Millisecond},
		"b": {id: "b", rec: rec},
	}
	def := &domain.WorkflowDefinition{
		ID:    "wf",
		Nodes: []domain.NodeDefinition{{ID: "a", Type: "test"}, {ID: "b", Type: "test"}},
		Connections: []domain.ConnectionDefinition{
			{From: "a", FromOutput: "out", To: "b", ToInput: "in"},
		},
	}
	e := buildEngine(t, testWorkflow{def: def, nodes: nodes})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := e.Run(ctx, nil)

	require.False(t, result.Success)
	assert.True(t, result.Cancelled)
	// A was in flight and finished; its result is recorded.
	require.NotNil(t, result.NodeResults["a"])
	// B was never dispatched.
	assert.Nil(t, result.NodeResults["b"])
	assert.Equal(t, 1, result.CompletedNodes)
	assert.Equal(t, -1, rec.index("b"))
}

func TestHistoryIsAppendOnlyAcrossRuns(t *testing.T) {
	rec := &recorder{}
	e := buildEngine(t, diamondWorkflow(rec))

	e.Run(context.Background(), nil)
	e.Run(context.Background(), nil)

	history := e.History()
	assert.Len(t, history, 8)
	for _, record := range history {
		assert.NotEmpty(t, record.ID)
		assert.NotEmpty(t, record.NodeID)
		assert.False(t, record.Timestamp.IsZero())
	}
}

func TestFanInMergesObjectPayloads(t *testing.T) {
	nodes := map[string]*testNode{
		"a": {id: "a", payload: map[string]interface{}{"doc": map[string]interface{}{"title": "A"}}},
		"b": {id: "b", payload: map[string]interface{}{"doc": map[string]interface{}{"body": "B"}}},
		"c": {id: "c", inputs: []string{"doc"}},
	}
	def := &domain.WorkflowDefinition{
		ID: "wf",
		Nodes: []domain.NodeDefinition{
			{ID: "a", Type: "test"}, {ID: "b", Type: "test"}, {ID: "c", Type: "test"},
		},
		Connections: []domain.ConnectionDefinition{
			{From: "a", FromOutput: "doc", To: "c", ToInput: "doc"},
			{From: "b", FromOutput: "doc", To: "c", ToInput: "doc"},
		},
	}
	e := buildEngine(t, testWorkflow{def: def, nodes: nodes})

	result := e.Run(context.Background(), nil)

	require.True(t, result.Success)
	doc, ok := nodes["c"].seen()["doc"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "A", doc["title"])
	assert.Equal(t, "B", doc["body"])
}

func TestRunRetriesViaPolicy(t *testing.T) {
	// One node configured with retries through its parameter map.
	flaky := &flakyNode{succeedOn: 3}
	def := &domain.WorkflowDefinition{
		ID: "wf",
		Nodes: []domain.NodeDefinition{
			{ID: "a", Type: "test", Parameters: map[string]interface{}{domain.ParamMaxRetries: 2}},
		},
	}

	g, err := graph.Build(def)
	require.NoError(t, err)
	instances := map[string]*runtime.Instance{
		"a": runtime.NewInstance(def.Nodes[0], flaky,
			domain.NodePolicy{MaxRetries: 2, RetryDelay: time.Millisecond, Timeout: time.Second},
			ratelimit.NewLimiter(nil), nil),
	}
	e := New(def, g, instances, nil)

	result := e.Run(context.Background(), nil)

	require.True(t, result.Success)
	assert.Equal(t, 3, flaky.calls)
}

type flakyNode struct {
	mu        sync.Mutex
	calls     int
	succeedOn int
}

func (n *flakyNode) Inputs() []string  { return nil }
func (n *flakyNode) Outputs() []string { return nil }
func (n *flakyNode) Execute(ctx context.Context, inputs map[string]interface{}) (*domain.NodeResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.calls < n.succeedOn {
		return &domain.NodeResult{Success: false, Error: "flaky"}, nil
	}
	return &domain.NodeResult{Success: true}, nil
}
