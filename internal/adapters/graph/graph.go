package graph

import (
	"sort"

	"github.com/trawlkit/trawl/internal/domain"
)

// Graph is the execution-order structure derived from a definition's
// connections. Built once at load time; read-only afterwards.
type Graph struct {
	order      []string
	upstream   map[string]map[string]struct{}
	downstream map[string]map[string]struct{}
}

// Build derives the dependency graph and rejects cycles. Connection
// endpoints are assumed to reference existing nodes; the config
// validator enforces that before Build runs.
func Build(def *domain.WorkflowDefinition) (*Graph, error) {
	g := &Graph{
		order:      make([]string, 0, len(def.Nodes)),
		upstream:   make(map[string]map[string]struct{}, len(def.Nodes)),
		downstream: make(map[string]map[string]struct{}, len(def.Nodes)),
	}

	for _, node := range def.Nodes {
		g.order = append(g.order, node.ID)
		g.upstream[node.ID] = make(map[string]struct{})
		g.downstream[node.ID] = make(map[string]struct{})
	}

	for _, conn := range def.Connections {
		if _, ok := g.upstream[conn.To]; !ok {
			continue
		}
		if _, ok := g.downstream[conn.From]; !ok {
			continue
		}
		g.upstream[conn.To][conn.From] = struct{}{}
		g.downstream[conn.From][conn.To] = struct{}{}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &domain.CycleError{Nodes: cycle}
	}

	return g, nil
}

// Roots returns nodes with no upstream dependencies, in definition
// order.
func (g *Graph) Roots() []string {
	roots := make([]string, 0)
	for _, id := range g.order {
		if len(g.upstream[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

func (g *Graph) Dependencies(id string) []string {
	return sortedKeys(g.upstream[id])
}

func (g *Graph) Dependents(id string) []string {
	return sortedKeys(g.downstream[id])
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.upstream[id]
	return ok
}

func (g *Graph) NodeCount() int {
	return len(g.order)
}

const (
	colorUnvisited = iota
	colorOnStack
	colorDone
)

// findCycle runs a depth-first traversal tracking the recursion stack.
// Revisiting a node still on the stack means a cycle; the returned
// slice is the cycle's node ids in path order.
func (g *Graph) findCycle() []string {
	colors := make(map[string]int, len(g.order))
	stack := make([]string, 0, len(g.order))

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = colorOnStack
		stack = append(stack, id)

		for _, next := range sortedKeys(g.downstream[id]) {
			switch colors[next] {
			case colorOnStack:
				for i, onStack := range stack {
					if onStack == next {
						return append([]string(nil), stack[i:]...)
					}
				}
			case colorUnvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = colorDone
		return nil
	}

	for _, id := range g.order {
		if colors[id] == colorUnvisited {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
