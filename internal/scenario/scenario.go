// Package scenario loads and runs YAML and JSON request scenarios against a
// running PayPal twin.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is an ordered list of API calls with their expected results.
type Scenario struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description,omitempty"`
	Setup       Setup             `yaml:"setup" json:"setup"`
	Variables   map[string]string `yaml:"variables" json:"variables,omitempty"`
	Steps       []Step            `yaml:"steps" json:"steps"`
}

// Setup runs through the admin API before the first step.
type Setup struct {
	Reset bool   `yaml:"reset" json:"reset,omitempty"`
	Seed  string `yaml:"seed" json:"seed,omitempty"`
	// Approve lists subscription IDs to approve after seeding.
	Approve []string `yaml:"approve" json:"approve,omitempty"`
}

// Step is a single request/assert pair. Capture copies values out of the
// response body into variables for later steps.
type Step struct {
	Name    string            `yaml:"name" json:"name"`
	Request Request           `yaml:"request" json:"request"`
	Capture map[string]string `yaml:"capture" json:"capture,omitempty"`
	Assert  Assert            `yaml:"assert" json:"assert"`
}

// Request is relative to the twin's base URL. Body may be a string or any
// structure that marshals to JSON.
type Request struct {
	Method  string            `yaml:"method" json:"method"`
	Path    string            `yaml:"path" json:"path"`
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`
	Body    any               `yaml:"body" json:"body,omitempty"`
}

// Assert holds the expected status and body. Body keys are dotted paths
// such as "links[0].rel"; values are compared after template expansion.
type Assert struct {
	Status       int               `yaml:"status" json:"status,omitempty"`
	BodyContains string            `yaml:"body_contains" json:"body_contains,omitempty"`
	Headers      map[string]string `yaml:"headers" json:"headers,omitempty"`
	Body         map[string]any    `yaml:"body" json:"body,omitempty"`
}

// LoadScenario parses a scenario file; the format is picked by extension.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		err = json.Unmarshal(data, &s)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q (expected .json, .yaml, or .yml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}

	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one step is required", path)
	}
	for i, step := range s.Steps {
		if step.Request.Method == "" || step.Request.Path == "" {
			return nil, fmt.Errorf("scenario %s: step %d needs a method and a path", path, i+1)
		}
	}

	return &s, nil
}

// LoadDir loads every scenario file in dir, in name order.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}

	var scenarios []*Scenario
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}

	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	return scenarios, nil
}

// Load accepts either a single scenario file or a directory of them.
func Load(path string) ([]*Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	s, err := LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return []*Scenario{s}, nil
}
