package ports

import (
	"context"
	"strings"

	"github.com/trawlkit/trawl/internal/domain"
)

// TriggerInput is the input name through which root nodes receive the
// run's trigger payload.
const TriggerInput = "trigger"

// OptionalPrefix marks a declared input as optional, e.g. "?metadata".
const OptionalPrefix = "?"

// Node is the capability surface every unit of work implements.
// Execute must honor ctx and must not assume it runs on any particular
// goroutine; blocking I/O belongs inside Execute, never in Inputs or
// Outputs.
type Node interface {
	Inputs() []string
	Outputs() []string
	Execute(ctx context.Context, inputs map[string]interface{}) (*domain.NodeResult, error)
}

// Factory builds a node instance from its definition. Registered per
// type tag; the sole integration point for concrete collaborators.
type Factory func(def domain.NodeDefinition) (Node, error)

func IsOptionalInput(name string) bool {
	return strings.HasPrefix(name, OptionalPrefix)
}

// InputName strips the optional marker from a declared input name.
func InputName(name string) string {
	return strings.TrimPrefix(name, OptionalPrefix)
}

// DeclaresInput reports whether name (marker-stripped) appears among
// the node's declared inputs.
func DeclaresInput(node Node, name string) bool {
	for _, declared := range node.Inputs() {
		if InputName(declared) == name {
			return true
		}
	}
	return false
}
