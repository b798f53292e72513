// Package schema derives tool-parameter schemas from Go structs and validates
// the arguments a model sends back.
package schema

import (
	"errors"
	"strings"
)

// FieldType represents the JSON type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field represents a single field in the schema.
type Field struct {
	Name        string    `json:"name,omitempty"`
	Type        FieldType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required,omitempty"`
	Items       *Field    `json:"items,omitempty"`      // For array types
	Properties  []Field   `json:"properties,omitempty"` // For object types
	Validators  []string  `json:"validators,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty"`
	Examples    []string  `json:"examples,omitempty"`
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ErrInvalidArguments is wrapped by every error Decode returns.
var ErrInvalidArguments = errors.New("invalid arguments")

// ValidationErrors collects every failed rule of one value.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets callers match ErrInvalidArguments.
func (e ValidationErrors) Unwrap() error { return ErrInvalidArguments }
