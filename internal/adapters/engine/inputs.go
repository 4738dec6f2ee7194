package engine

import (
	"github.com/trawlkit/trawl/internal/domain"
	"github.com/trawlkit/trawl/internal/ports"
)

// buildInputs assembles a node's input map from its inbound
// connections. For each connection the matching named output is read
// from the upstream result's payload; when the payload has no entry
// under that name, the entire payload is passed instead. This
// whole-payload fallback is a deliberate contract, not an accident:
// producer nodes that emit a single unnamed document stay wireable
// without declaring synthetic output names.
//
// The trigger payload is injected only into root nodes that declare a
// "trigger" input. Values from multiple upstreams landing on one input
// merge per domain.MergePayloadValue, in connection order.
func (e *Engine) buildInputs(nodeID string, trigger map[string]interface{}, results map[string]*domain.NodeResult) map[string]interface{} {
	inputs := make(map[string]interface{})

	for _, conn := range e.inbound[nodeID] {
		upstream, done := results[conn.From]
		if !done || len(upstream.Payload) == 0 {
			// Nothing to wire; a missing mandatory input surfaces as a
			// validation failure on this node's own attempt.
			continue
		}

		value, ok := upstream.Payload[conn.FromOutput]
		if !ok {
			value = upstream.Payload
		}

		if existing, present := inputs[conn.ToInput]; present {
			inputs[conn.ToInput] = domain.MergePayloadValue(existing, value)
		} else {
			inputs[conn.ToInput] = value
		}
	}

	if trigger != nil && len(e.graph.Dependencies(nodeID)) == 0 {
		if instance := e.instances[nodeID]; instance != nil && ports.DeclaresInput(instance.Node(), ports.TriggerInput) {
			inputs[ports.TriggerInput] = trigger
		}
	}

	return inputs
}
