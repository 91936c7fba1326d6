package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session against one fixture: bring it up, run
// steps on the loop, then check the trace.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture names the node factory, see FixtureNames.
	Fixture string `yaml:"fixture"`

	// StartupTimeout bounds the owner thread handshake. Defaults to
	// DefaultStartupTimeout.
	StartupTimeout Duration `yaml:"startup_timeout,omitempty"`

	// ReadyTimeout bounds the wait for the node's Loaded event. Zero is
	// unbounded.
	ReadyTimeout Duration `yaml:"ready_timeout,omitempty"`

	// Steps run in order, each as one loop work item.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace once all steps ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation on the node under test.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Target names the element the step acts on. Empty means the first
	// button in the tree.
	Target string `yaml:"target,omitempty"`

	// Verifier is the verifier name for set_verifier.
	Verifier string `yaml:"verifier,omitempty"`

	// Enabled is the value for set_enabled.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Expect checks the target's state after the step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause lists observed fields to check. Unset fields are not
// checked.
type ExpectClause struct {
	Enabled  *bool   `yaml:"enabled,omitempty"`
	Verifier *string `yaml:"verifier,omitempty"` // "" expects no verifier
	Clicks   *int    `yaml:"clicks,omitempty"`
	Loaded   *bool   `yaml:"loaded,omitempty"`
}

// Step actions.
const (
	ActionFind          = "find"
	ActionSetVerifier   = "set_verifier"
	ActionClearVerifier = "clear_verifier"
	ActionResetVerifier = "reset_verifier"
	ActionSetEnabled    = "set_enabled"
	ActionClick         = "click"
	ActionExpect        = "expect"
)

var stepActions = map[string]bool{
	ActionFind:          true,
	ActionSetVerifier:   true,
	ActionClearVerifier: true,
	ActionResetVerifier: true,
	ActionSetEnabled:    true,
	ActionClick:         true,
	ActionExpect:        true,
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// UnmarshalYAML parses strings such as "10s" or "250ms".
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"10s\"", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	if parsed < 0 {
		return fmt.Errorf("line %d: duration must not be negative", node.Line)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarioFiles returns the .yaml and .yml files under dir, in
// lexical order. A non-empty filter is a glob matched against the file
// name without extension.
func FindScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Fixture == "" {
		return fmt.Errorf("fixture is required")
	}
	if _, ok := LookupFixture(s.Fixture); !ok {
		return fmt.Errorf("unknown fixture %q (known: %s)", s.Fixture, strings.Join(FixtureNames(), ", "))
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	if s.Action == "" {
		return fmt.Errorf("steps[%d]: action is required", index)
	}
	if !stepActions[s.Action] {
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}

	switch s.Action {
	case ActionSetVerifier:
		if s.Verifier == "" {
			return fmt.Errorf("steps[%d]: verifier is required for set_verifier", index)
		}
	case ActionSetEnabled:
		if s.Enabled == nil {
			return fmt.Errorf("steps[%d]: enabled is required for set_enabled", index)
		}
	case ActionExpect:
		if s.Expect == nil {
			return fmt.Errorf("steps[%d]: expect is required for expect", index)
		}
	}
	return nil
}
