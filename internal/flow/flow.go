// Package flow describes the fixed sequence of screen actions that turns a
// freshly launched application into a filtered results list, and runs it.
package flow

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/homescout/internal/device"
	"github.com/jmylchreest/homescout/internal/listing"
)

//go:embed seloger.yaml
var defaultFlow []byte

// Action is the kind of a step.
type Action string

const (
	ActionClick        Action = "click"
	ActionType         Action = "type"
	ActionPickChild    Action = "pick_child"
	ActionHideKeyboard Action = "hide_keyboard"
	ActionWait         Action = "wait"
	ActionBack         Action = "back"
)

// Step is one screen action.
type Step struct {
	Name    string         `json:"name" yaml:"name" validate:"required"`
	Action  Action         `json:"action" yaml:"action" validate:"required,oneof=click type pick_child hide_keyboard wait back"`
	Locator device.Locator `json:"locator,omitempty" yaml:"locator,omitempty"`

	// Text is typed by "type" steps. It is a text/template rendered with
	// Params, e.g. "{{.Location}}".
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Focus clicks the field before typing into it.
	Focus bool `json:"focus,omitempty" yaml:"focus,omitempty"`

	// Child is the 1-based child picked by "pick_child" steps.
	Child int `json:"child,omitempty" yaml:"child,omitempty" validate:"min=0"`

	// Pause is slept after the step succeeds.
	Pause time.Duration `json:"pause,omitempty" yaml:"pause,omitempty"`

	// Optional steps log their failure and let the flow continue.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Flow is a complete search definition for one application.
type Flow struct {
	Name string `json:"name" yaml:"name" validate:"required"`

	// App is the application id that is terminated and relaunched before
	// every search.
	App string `json:"app" yaml:"app" validate:"required"`

	// LaunchPause is slept after the application is activated.
	LaunchPause time.Duration `json:"launch_pause,omitempty" yaml:"launch_pause,omitempty"`

	Steps   []Step         `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
	Listing listing.Layout `json:"listing" yaml:"listing"`
}

// Params are the values substituted into step texts.
type Params struct {
	Location string
	MinPrice int
	MaxPrice int
}

// Default returns the embedded SeLoger flow.
func Default() (*Flow, error) {
	return Parse(defaultFlow)
}

// FromFile loads a flow from a YAML or JSON file. An empty path returns the
// embedded default.
func FromFile(path string) (*Flow, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a flow. JSON documents are accepted since YAML
// is a superset of JSON.
func Parse(data []byte) (*Flow, error) {
	var f Flow
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse flow: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

var validate = validator.New()

// Validate checks the flow structure, the per-action step requirements and
// the text templates.
func (f *Flow) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid flow: %w", err)
	}

	var errs []error
	for i, s := range f.Steps {
		if err := s.check(); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s Step) check() error {
	switch s.Action {
	case ActionClick, ActionWait:
		if s.Locator == "" {
			return errors.New("locator is required")
		}
	case ActionType:
		if s.Locator == "" {
			return errors.New("locator is required")
		}
		if s.Text == "" {
			return errors.New("text is required")
		}
		if _, err := template.New(s.Name).Option("missingkey=error").Parse(s.Text); err != nil {
			return fmt.Errorf("text template: %w", err)
		}
	case ActionPickChild:
		if s.Locator == "" {
			return errors.New("locator is required")
		}
		if s.Child < 1 {
			return errors.New("child must be at least 1")
		}
	}
	return nil
}

// Render returns the text typed by the step.
func (s Step) Render(p Params) (string, error) {
	tmpl, err := template.New(s.Name).Option("missingkey=error").Parse(s.Text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, p); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// YAML returns the flow as a YAML document.
func (f *Flow) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
