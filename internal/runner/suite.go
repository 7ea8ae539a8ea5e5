package runner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"wirebridge/internal/table"
)

// Step is one line of a scenario, optionally carrying a table.
type Step struct {
	Text  string       `yaml:"text"`
	Table *table.Table `yaml:"table,omitempty"`
}

// Scenario is a named sequence of steps.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Suite is the contents of a steps file.
type Suite struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// ParseSuite decodes a steps file.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse steps: %w", err)
	}
	for i, sc := range s.Scenarios {
		if sc.Name == "" {
			s.Scenarios[i].Name = fmt.Sprintf("scenario %d", i+1)
		}
		for j, st := range sc.Steps {
			if st.Text == "" {
				return nil, fmt.Errorf("parse steps: %s step %d has no text", s.Scenarios[i].Name, j+1)
			}
		}
	}
	return &s, nil
}

// LoadSuite reads and decodes the steps file at path.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	return ParseSuite(data)
}
