package release

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Requirement names a single role or collection dependency.
type Requirement struct {
	Name    string `yaml:"name,omitempty"`
	Src     string `yaml:"src,omitempty"`
	Version string `yaml:"version,omitempty"`
}

// Requirements is the parsed form of a requirements.yml file.
type Requirements struct {
	Roles       []Requirement `yaml:"roles,omitempty"`
	Collections []Requirement `yaml:"collections,omitempty"`
}

// LoadRequirements reads and parses a requirements file. A missing file is
// not an error; an empty Requirements is returned so a collection without
// external dependencies needs no file at all.
func LoadRequirements(path string) (*Requirements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Requirements{}, nil
		}
		return nil, fmt.Errorf("failed to read requirements: %w", err)
	}

	var r Requirements
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse requirements %s: %w", path, err)
	}
	return &r, nil
}

// Validate checks that every listed requirement is resolvable.
func (r *Requirements) Validate() error {
	for i, role := range r.Roles {
		if role.Name == "" && role.Src == "" {
			return fmt.Errorf("role requirement %d has neither a name nor a src", i)
		}
	}
	for i, col := range r.Collections {
		if col.Name == "" && col.Src == "" {
			return fmt.Errorf("collection requirement %d has neither a name nor a src", i)
		}
	}
	return nil
}

// Count returns the total number of requirements listed.
func (r *Requirements) Count() int {
	return len(r.Roles) + len(r.Collections)
}
