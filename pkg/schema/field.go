package schema

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// FieldSpec declares one field of a Definition. A FieldSpec is a value;
// the Definition keeps its own copy once the field is attached.
type FieldSpec struct {
	Name      string
	Type      FieldType
	Default   any            // applied when the payload omits the field or supplies nil
	Required  bool           // satisfied by a non-nil value or a Default
	Choices   []any          // allowed values; empty means any
	Validator func(any) bool // optional predicate; not persisted
}

// Check runs the type, choice and validator checks on a supplied, non-nil
// value. Failures are *types.FieldError wrapping ErrFieldTypeMismatch,
// ErrChoiceViolation or ErrValidatorRejected.
func (f FieldSpec) Check(v any) error {
	if !f.Type.Accepts(v) {
		return &types.FieldError{
			Field: f.Name,
			Value: v,
			Err:   fmt.Errorf("%w: want %s, got %T", types.ErrFieldTypeMismatch, f.Type, v),
		}
	}
	if len(f.Choices) > 0 && !f.allows(v) {
		return &types.FieldError{Field: f.Name, Value: v, Err: types.ErrChoiceViolation}
	}
	if f.Validator != nil && !f.Validator(v) {
		return &types.FieldError{Field: f.Name, Value: v, Err: types.ErrValidatorRejected}
	}
	return nil
}

func (f FieldSpec) allows(v any) bool {
	for _, c := range f.Choices {
		if record.Equal(c, v) {
			return true
		}
	}
	return false
}

// normalized returns f with Default and Choices in stored form, after
// checking that they fit the declared type.
func (f FieldSpec) normalized() (FieldSpec, error) {
	if f.Name == "" || !isIdentifier(f.Name) {
		return f, fmt.Errorf("%w: field name %q", types.ErrInvalidDefinition, f.Name)
	}
	if !f.Type.Valid() {
		return f, fmt.Errorf("%w: field %q: %w", types.ErrInvalidDefinition, f.Name, types.ErrUnknownFieldType)
	}
	if f.Default != nil {
		f.Default = record.Normalize(f.Default)
		if !f.Type.Accepts(f.Default) {
			return f, fmt.Errorf("%w: field %q: default %v is not a %s", types.ErrInvalidDefinition, f.Name, f.Default, f.Type)
		}
	}
	if len(f.Choices) > 0 {
		choices := make([]any, len(f.Choices))
		for i, c := range f.Choices {
			choices[i] = record.Normalize(c)
		}
		f.Choices = choices
		if f.Default != nil && !f.allows(f.Default) {
			return f, fmt.Errorf("%w: field %q: default %v is not among the choices", types.ErrInvalidDefinition, f.Name, f.Default)
		}
	}
	return f, nil
}

// fieldConfig is the mapping form accepted by Configure for
// "definition.fields.<name>".
type fieldConfig struct {
	Type     FieldType `mapstructure:"type"`
	Default  any       `mapstructure:"default"`
	Required bool      `mapstructure:"required"`
	Choices  []any     `mapstructure:"choices"`
}

// DecodeFieldSpec builds a FieldSpec named name from a mapping such as
// {"type": "string", "required": true, "choices": ["a", "b"]}. Unknown keys
// and unknown type names are rejected with ErrInvalidDefinition.
func DecodeFieldSpec(name string, m map[string]any) (FieldSpec, error) {
	var cfg fieldConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.TextUnmarshallerHookFunc(),
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return FieldSpec{}, err
	}
	if err := dec.Decode(m); err != nil {
		return FieldSpec{}, fmt.Errorf("%w: field %q: %v", types.ErrInvalidDefinition, name, err)
	}
	return FieldSpec{
		Name:     name,
		Type:     cfg.Type,
		Default:  cfg.Default,
		Required: cfg.Required,
		Choices:  cfg.Choices,
	}, nil
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return s != ""
}
