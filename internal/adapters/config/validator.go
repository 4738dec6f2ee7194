package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/trawlkit/trawl/internal/domain"
	"github.com/trawlkit/trawl/internal/ports"
	"github.com/trawlkit/trawl/internal/xjson"
)

// Validator structurally checks a workflow definition before any node
// is instantiated. It collects every distinct defect rather than
// stopping at the first.
type Validator struct {
	registry ports.NodeRegistry
	validate *validator.Validate
	logger   *slog.Logger
}

func NewValidator(registry ports.NodeRegistry, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Validator{
		registry: registry,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "config-validator"),
	}
}

// Validate returns nil for a well-formed definition, otherwise a
// domain.ValidationErrors listing every defect found.
func (v *Validator) Validate(def *domain.WorkflowDefinition) error {
	var errs domain.ValidationErrors

	if def.ID == "" {
		errs = append(errs, &domain.ValidationError{Field: "id", Message: "workflow id is required"})
	}

	seen := make(map[string]struct{}, len(def.Nodes))
	for _, node := range def.Nodes {
		if node.ID == "" {
			errs = append(errs, &domain.ValidationError{Field: "nodes", Message: "node id is required"})
			continue
		}

		if _, dup := seen[node.ID]; dup {
			errs = append(errs, &domain.ValidationError{NodeID: node.ID, Message: "duplicate node id"})
			continue
		}
		seen[node.ID] = struct{}{}

		if !v.registry.Has(node.Type) {
			errs = append(errs, &domain.ValidationError{NodeID: node.ID, Field: "type", Message: fmt.Sprintf("unknown node type %q", node.Type)})
			continue
		}

		errs = append(errs, v.validateParameters(node)...)
	}

	for i, conn := range def.Connections {
		if _, ok := seen[conn.From]; !ok {
			errs = append(errs, &domain.ValidationError{
				Field:   fmt.Sprintf("connections[%d].from", i),
				Message: fmt.Sprintf("connection references unknown node %q", conn.From),
			})
		}
		if _, ok := seen[conn.To]; !ok {
			errs = append(errs, &domain.ValidationError{
				Field:   fmt.Sprintf("connections[%d].to", i),
				Message: fmt.Sprintf("connection references unknown node %q", conn.To),
			})
		}
	}

	if len(errs) > 0 {
		v.logger.Debug("workflow definition rejected", "workflow_id", def.ID, "errors", len(errs))
		return errs
	}

	return nil
}

func (v *Validator) validateParameters(node domain.NodeDefinition) domain.ValidationErrors {
	var errs domain.ValidationErrors

	if _, err := domain.PolicyFromParameters(node.ID, node.Parameters); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			errs = append(errs, ve)
		} else {
			errs = append(errs, &domain.ValidationError{NodeID: node.ID, Message: err.Error()})
		}
	}

	schema, ok := v.registry.Schema(node.Type)
	if !ok {
		return errs
	}

	params := schema()
	if err := xjson.Convert(node.Parameters, params); err != nil {
		errs = append(errs, &domain.ValidationError{NodeID: node.ID, Field: "parameters", Message: err.Error()})
		return errs
	}

	if err := v.validate.Struct(params); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			errs = append(errs, &domain.ValidationError{NodeID: node.ID, Field: "parameters", Message: err.Error()})
			return errs
		}
		for _, fe := range fieldErrs {
			errs = append(errs, &domain.ValidationError{
				NodeID:  node.ID,
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
			})
		}
	}

	return errs
}
