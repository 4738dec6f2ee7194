package domain

// Position is the optional UI placement of a node. The engine ignores
// it; it is preserved so definitions round-trip unchanged.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type NodeDefinition struct {
	ID         string                 `json:"id" yaml:"id"`
	Type       string                 `json:"type" yaml:"type"`
	Name       string                 `json:"name" yaml:"name"`
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Position   *Position              `json:"position,omitempty" yaml:"position,omitempty"`
}

type ConnectionDefinition struct {
	From       string `json:"from" yaml:"from"`
	FromOutput string `json:"fromOutput" yaml:"fromOutput"`
	To         string `json:"to" yaml:"to"`
	ToInput    string `json:"toInput" yaml:"toInput"`
}

// WorkflowDefinition is immutable once loaded; the manager that loaded
// it is its sole owner.
type WorkflowDefinition struct {
	ID          string                 `json:"id" yaml:"id"`
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []NodeDefinition       `json:"nodes" yaml:"nodes"`
	Connections []ConnectionDefinition `json:"connections" yaml:"connections"`
	Settings    map[string]interface{} `json:"settings,omitempty" yaml:"settings,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (d *WorkflowDefinition) Node(id string) *NodeDefinition {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}
