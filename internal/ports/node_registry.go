package ports

import (
	"fmt"
)

// ParameterSchema returns a fresh parameter struct for a node type.
// The config validator projects the definition's parameter map onto it
// and runs struct validation; a nil schema skips shape checking.
type ParameterSchema func() interface{}

type NodeRegistry interface {
	Register(typeTag string, factory Factory) error
	RegisterWithSchema(typeTag string, factory Factory, schema ParameterSchema) error
	Resolve(typeTag string) (Factory, error)
	Schema(typeTag string) (ParameterSchema, bool)
	Has(typeTag string) bool
	List() []string
	Unregister(typeTag string) error
}

type RegistrationError struct {
	TypeTag string
	Reason  string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register node type %q: %s", e.TypeTag, e.Reason)
}
