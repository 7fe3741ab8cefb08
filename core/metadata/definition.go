package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definitions is the document layout accepted by ParseDefinitions.
type Definitions struct {
	Entities []*Entity `yaml:"entities"`
}

// ParseDefinitions decodes a YAML (or JSON) entity definition document.
func ParseDefinitions(data []byte) ([]*Entity, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse entity definitions: %w", err)
	}
	if len(defs.Entities) == 0 {
		return nil, fmt.Errorf("parse entity definitions: no entities defined")
	}
	return defs.Entities, nil
}

// LoadFile reads and parses an entity definition file.
func LoadFile(path string) ([]*Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity definitions: %w", err)
	}
	return ParseDefinitions(data)
}
