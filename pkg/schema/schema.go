package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Schema describes the arguments of one tool.
type Schema struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`

	target   reflect.Type // Original struct type for decoding
	validate *validator.Validate
}

// SchemaOption configures schema creation.
type SchemaOption func(*schemaBuilder)

type schemaBuilder struct {
	name        string
	description string
}

// WithDescription sets the schema description.
func WithDescription(desc string) SchemaOption {
	return func(b *schemaBuilder) {
		b.description = desc
	}
}

// WithName overrides the schema name, which defaults to the struct name.
func WithName(name string) SchemaOption {
	return func(b *schemaBuilder) {
		b.name = name
	}
}

// NewSchema creates a Schema from a struct type using reflection.
//
// Fields are named after their json tag and are required unless the tag has
// omitempty or the field is a pointer. The description tag documents a field
// and numeric bounds and enums are read from the validate tag.
func NewSchema[T any](opts ...SchemaOption) (Schema, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return Schema{}, errors.New("schema must be created from a struct type, got interface")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Schema{}, fmt.Errorf("schema must be created from a struct type, got %v", t.Kind())
	}

	builder := &schemaBuilder{name: t.Name()}
	for _, opt := range opts {
		opt(builder)
	}

	fields, err := extractFields(t)
	if err != nil {
		return Schema{}, err
	}

	return Schema{
		Name:        builder.name,
		Description: builder.description,
		Fields:      fields,
		target:      t,
		validate:    validator.New(),
	}, nil
}

// MustSchema is like NewSchema but panics on error. It is meant for package
// level tool definitions.
func MustSchema[T any](opts ...SchemaOption) Schema {
	s, err := NewSchema[T](opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// extractFields recursively extracts field definitions from a struct type.
func extractFields(t reflect.Type) ([]Field, error) {
	fields := make([]Field, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("json") == "-" {
			continue
		}

		field, err := extractFieldFromType(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		field.Name = getJSONName(sf)
		field.Description = sf.Tag.Get("description")
		field.Required = !hasOmitempty(sf) && sf.Type.Kind() != reflect.Ptr
		field.Validators = parseValidators(sf.Tag.Get("validate"))
		applyValidatorHints(&field)

		if examples := sf.Tag.Get("examples"); examples != "" {
			field.Examples = strings.Split(examples, ",")
		}

		fields = append(fields, field)
	}

	return fields, nil
}

// extractFieldFromType extracts a Field definition from a reflect.Type.
func extractFieldFromType(t reflect.Type) (Field, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	field := Field{}

	switch t.Kind() {
	case reflect.String:
		field.Type = TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		field.Type = TypeInteger
	case reflect.Float32, reflect.Float64:
		field.Type = TypeNumber
	case reflect.Bool:
		field.Type = TypeBoolean
	case reflect.Slice:
		field.Type = TypeArray
		itemField, err := extractFieldFromType(t.Elem())
		if err != nil {
			return Field{}, err
		}
		field.Items = &itemField
	case reflect.Struct:
		field.Type = TypeObject
		props, err := extractFields(t)
		if err != nil {
			return Field{}, err
		}
		field.Properties = props
	case reflect.Map:
		field.Type = TypeObject
	default:
		return Field{}, fmt.Errorf("unsupported type: %v", t.Kind())
	}

	return field, nil
}

// applyValidatorHints copies the bounds a model can respect up front into the
// schema: numeric limits and enumerations.
func applyValidatorHints(f *Field) {
	numeric := f.Type == TypeInteger || f.Type == TypeNumber
	for _, v := range f.Validators {
		name, param, _ := strings.Cut(v, "=")
		switch {
		case name == "oneof" && f.Type == TypeString:
			f.Enum = strings.Fields(param)
		case numeric && (name == "min" || name == "gte"):
			if n, err := strconv.ParseFloat(param, 64); err == nil {
				f.Minimum = &n
			}
		case numeric && (name == "max" || name == "lte"):
			if n, err := strconv.ParseFloat(param, 64); err == nil {
				f.Maximum = &n
			}
		}
	}
}

// getJSONName returns the JSON field name from struct tags.
func getJSONName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" || tag == "-" {
		return sf.Name
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		return parts[0]
	}
	return sf.Name
}

// hasOmitempty checks if the json tag contains omitempty.
func hasOmitempty(sf reflect.StructField) bool {
	tag := sf.Tag.Get("json")
	return strings.Contains(tag, "omitempty")
}

// parseValidators extracts validator tags.
func parseValidators(tag string) []string {
	if tag == "" {
		return nil
	}
	return strings.Split(tag, ",")
}

// Decode parses raw JSON arguments into out, which must be a pointer to the
// schema's struct type, and runs the validate rules. Unknown fields are
// rejected. The returned error wraps ErrInvalidArguments.
func (s Schema) Decode(raw []byte, out any) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", out)
	}
	if s.target != nil && v.Elem().Type() != s.target {
		return fmt.Errorf("decode target is %s, schema describes %s", v.Elem().Type(), s.target)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	if errs := s.Validate(out); len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate checks a struct value against its validate tags.
func (s Schema) Validate(data any) ValidationErrors {
	if s.validate == nil {
		return nil
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	err := s.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: s.Name, Message: err.Error()}}
	}

	names := s.jsonNames()
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		name := e.Field()
		if jn, ok := names[e.StructField()]; ok {
			name = jn
		}
		out = append(out, ValidationError{
			Field:   name,
			Message: formatValidationError(e, names),
			Value:   e.Value(),
		})
	}
	return out
}

// jsonNames maps top-level struct field names to their argument names.
func (s Schema) jsonNames() map[string]string {
	names := map[string]string{}
	if s.target == nil {
		return names
	}
	for i := 0; i < s.target.NumField(); i++ {
		sf := s.target.Field(i)
		names[sf.Name] = getJSONName(sf)
	}
	return names
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError, names map[string]string) string {
	param := e.Param()
	if jn, ok := names[param]; ok {
		param = jn
	}
	switch e.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", param)
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", param)
	case "gtefield":
		return fmt.Sprintf("must be greater than or equal to %s", param)
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", param)
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
