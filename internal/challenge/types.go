package challenge

import (
	"errors"
	"fmt"
)

// ErrSetupFailed marks an environment problem while preparing the VM for
// validation. It is never caused by the learner's work and callers should
// present it as such.
var ErrSetupFailed = errors.New("challenge setup failed")

// Step is one shell command run during challenge setup.
type Step struct {
	// Command is executed verbatim on the target VM.
	Command string `yaml:"command"`
	// TimeoutSeconds bounds the command; zero means the engine default.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// Hint is a piece of progressive guidance with a score cost.
type Hint struct {
	Text string `yaml:"text"`
	Cost int    `yaml:"cost"`
}

// Definition is one challenge as authored in a definition file. It is
// loaded once per run and read-only during execution.
type Definition struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category,omitempty"`
	Difficulty  string   `yaml:"difficulty,omitempty"`
	Score       int      `yaml:"score,omitempty"`
	Concepts    []string `yaml:"concepts,omitempty"`

	Setup []Step `yaml:"setup,omitempty"`
	// SimulatedAction reproduces the learner-visible scenario (a broken
	// service, a planted file) after setup and before validation.
	SimulatedAction *Step `yaml:"simulated_action,omitempty"`

	Validation []Assertion `yaml:"validation"`
	Hints      []Hint      `yaml:"hints,omitempty"`
	Flag       string      `yaml:"flag,omitempty"`
}

// validate enforces the required fields beyond what decoding checks.
func (d *Definition) validate() error {
	if d.ID == "" {
		return fmt.Errorf("challenge is missing required field %q", "id")
	}
	if d.Name == "" {
		return fmt.Errorf("challenge %s is missing required field %q", d.ID, "name")
	}
	if d.Description == "" {
		return fmt.Errorf("challenge %s is missing required field %q", d.ID, "description")
	}
	if len(d.Validation) == 0 {
		return fmt.Errorf("challenge %s must declare at least one validation assertion", d.ID)
	}
	for i := range d.Validation {
		if err := d.Validation[i].validate(); err != nil {
			return fmt.Errorf("challenge %s: assertion %d: %w", d.ID, i, err)
		}
	}
	for i, hint := range d.Hints {
		if hint.Text == "" {
			return fmt.Errorf("challenge %s: hint %d has no text", d.ID, i)
		}
		if hint.Cost < 0 {
			return fmt.Errorf("challenge %s: hint %d has a negative cost", d.ID, i)
		}
	}
	return nil
}
