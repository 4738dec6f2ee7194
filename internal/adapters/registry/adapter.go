package registry

import (
	"log/slog"
	"sync"

	"github.com/trawlkit/trawl/internal/ports"
)

type entry struct {
	factory ports.Factory
	schema  ports.ParameterSchema
}

// Adapter is the typed node-type registry: type tag -> factory.
type Adapter struct {
	entries map[string]entry
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewAdapter(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		entries: make(map[string]entry),
		logger:  logger.With("component", "node-registry"),
	}
}

func (r *Adapter) Register(typeTag string, factory ports.Factory) error {
	return r.RegisterWithSchema(typeTag, factory, nil)
}

func (r *Adapter) RegisterWithSchema(typeTag string, factory ports.Factory, schema ports.ParameterSchema) error {
	if typeTag == "" {
		r.logger.Error("attempted to register node type with empty tag")
		return &ports.RegistrationError{TypeTag: typeTag, Reason: "type tag cannot be empty"}
	}

	if factory == nil {
		r.logger.Error("attempted to register nil factory", "type", typeTag)
		return &ports.RegistrationError{TypeTag: typeTag, Reason: "factory cannot be nil"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[typeTag]; exists {
		r.logger.Debug("node type registration failed - already exists", "type", typeTag)
		return &ports.RegistrationError{TypeTag: typeTag, Reason: "type already registered"}
	}

	r.entries[typeTag] = entry{factory: factory, schema: schema}
	r.logger.Debug("node type registered", "type", typeTag, "total_types", len(r.entries))
	return nil
}

func (r *Adapter) Resolve(typeTag string) (ports.Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[typeTag]
	if !exists {
		r.logger.Debug("node type not found", "type", typeTag)
		return nil, &ports.RegistrationError{TypeTag: typeTag, Reason: "type not registered"}
	}

	return e.factory, nil
}

func (r *Adapter) Schema(typeTag string) (ports.ParameterSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[typeTag]
	if !exists || e.schema == nil {
		return nil, false
	}
	return e.schema, true
}

func (r *Adapter) Has(typeTag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.entries[typeTag]
	return exists
}

func (r *Adapter) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.entries))
	for tag := range r.entries {
		tags = append(tags, tag)
	}
	return tags
}

func (r *Adapter) Unregister(typeTag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[typeTag]; !exists {
		return &ports.RegistrationError{TypeTag: typeTag, Reason: "type not registered"}
	}

	delete(r.entries, typeTag)
	r.logger.Debug("node type unregistered", "type", typeTag, "remaining_types", len(r.entries))
	return nil
}
