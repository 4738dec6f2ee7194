package domain

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/trawlkit/trawl/internal/xjson"
)

// ParseDefinition decodes a workflow definition document. JSON and YAML
// are both accepted; a document whose first significant byte is '{' is
// treated as JSON. Structural validation is the config validator's job,
// not the codec's.
func ParseDefinition(data []byte) (*WorkflowDefinition, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty workflow definition")
	}

	var def WorkflowDefinition

	if trimmed[0] == '{' {
		if err := xjson.Unmarshal(trimmed, &def); err != nil {
			return nil, fmt.Errorf("decode workflow definition: %w", err)
		}
		return &def, nil
	}

	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode workflow definition: %w", err)
	}
	return &def, nil
}
