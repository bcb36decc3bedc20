package schema

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// Constraint keys with meaning to tables. Other constraint keys are stored
// and persisted but not interpreted.
const (
	ConstraintMaxEntries = "max_entries"
	ConstraintMaxBytes   = "max_bytes"
)

// Configuration roots accepted by Configure.
const (
	RootDefinition  = "definition"
	RootConstraints = "constraints"
)

// Reference records that a field points at a field of another table. It is
// metadata only; nothing enforces it.
type Reference struct {
	Table string `mapstructure:"table"`
	Field string `mapstructure:"field"`
}

func (r Reference) String() string { return r.Table + "." + r.Field }

// Definition is the schema of one table. Create it with NewDefinition and
// change it only through Configure. Unique sets, index sets and the primary
// key always name declared fields.
type Definition struct {
	fields      []FieldSpec
	unique      [][]string
	indexes     [][]string
	references  map[string]Reference
	primaryKey  []string
	constraints map[string]any
}

// Option configures a Definition under construction.
type Option func(*Definition) error

// WithField declares a field. A later declaration of the same name
// replaces the earlier one in place.
func WithField(spec FieldSpec) Option {
	return func(d *Definition) error { return d.setField(spec) }
}

// WithUnique adds a unique set over the named fields.
func WithUnique(fields ...string) Option {
	return func(d *Definition) error {
		d.unique = appendSet(d.unique, fields)
		return nil
	}
}

// WithIndex adds an advisory lookup index over the named fields.
func WithIndex(fields ...string) Option {
	return func(d *Definition) error {
		d.indexes = appendSet(d.indexes, fields)
		return nil
	}
}

// WithReference records that field refers to ref.
func WithReference(field string, ref Reference) Option {
	return func(d *Definition) error {
		d.references[field] = ref
		return nil
	}
}

// WithPrimaryKey sets the primary key, a field name or a composite.
func WithPrimaryKey(fields ...string) Option {
	return func(d *Definition) error {
		d.primaryKey = slices.Clone(fields)
		return nil
	}
}

// WithConstraint sets a constraint value.
func WithConstraint(key string, value any) Option {
	return func(d *Definition) error { return d.setConstraint(key, value) }
}

// NewDefinition builds a Definition from options and checks that every
// unique set, index and primary key names declared fields.
// Returns ErrInvalidDefinition otherwise.
func NewDefinition(opts ...Option) (*Definition, error) {
	d := &Definition{
		references:  make(map[string]Reference),
		constraints: make(map[string]any),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if err := d.check(); err != nil {
		return nil, err
	}
	return d, nil
}

// MustDefinition is NewDefinition that panics on error, for static schemas.
func MustDefinition(opts ...Option) *Definition {
	d, err := NewDefinition(opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Fields returns the declared fields in declaration order.
func (d *Definition) Fields() []FieldSpec { return slices.Clone(d.fields) }

// Field returns the field named name.
func (d *Definition) Field(name string) (FieldSpec, bool) {
	i := d.fieldIndex(name)
	if i < 0 {
		return FieldSpec{}, false
	}
	return d.fields[i], true
}

// Unique returns the unique sets.
func (d *Definition) Unique() [][]string { return cloneSets(d.unique) }

// Indexes returns the advisory index sets.
func (d *Definition) Indexes() [][]string { return cloneSets(d.indexes) }

// References returns the field references.
func (d *Definition) References() map[string]Reference {
	out := make(map[string]Reference, len(d.references))
	for k, v := range d.references {
		out[k] = v
	}
	return out
}

// PrimaryKey returns the primary key fields, or nil when none is set.
func (d *Definition) PrimaryKey() []string { return slices.Clone(d.primaryKey) }

// Constraint returns the value stored under key.
func (d *Definition) Constraint(key string) (any, bool) {
	v, ok := d.constraints[key]
	return record.Normalize(v), ok
}

// Constraints returns a copy of every constraint.
func (d *Definition) Constraints() map[string]any {
	out := make(map[string]any, len(d.constraints))
	for k, v := range d.constraints {
		out[k] = record.Normalize(v)
	}
	return out
}

// MaxEntries returns the configured entry-count limit, or
// types.DefaultMaxEntries when none is configured.
func (d *Definition) MaxEntries() int {
	if n, ok := d.constraints[ConstraintMaxEntries].(int64); ok && n > 0 {
		return int(n)
	}
	return types.DefaultMaxEntries
}

// MaxBytes returns the configured byte limit over all stored records, or 0
// (unlimited).
func (d *Definition) MaxBytes() int {
	if n, ok := d.constraints[ConstraintMaxBytes].(int64); ok {
		return int(n)
	}
	return 0
}

// Clone returns an independent copy of d.
func (d *Definition) Clone() *Definition {
	c := &Definition{
		fields:      slices.Clone(d.fields),
		unique:      cloneSets(d.unique),
		indexes:     cloneSets(d.indexes),
		references:  d.References(),
		primaryKey:  slices.Clone(d.primaryKey),
		constraints: make(map[string]any, len(d.constraints)),
	}
	for k, v := range d.constraints {
		c.constraints[k] = v
	}
	return c
}

// Validate checks a candidate record against the declared fields and
// returns it completed with defaults. Required fields are checked first for
// every field, then each supplied value's type, choices and validator.
// Fields the definition does not declare pass through unchecked. Uniqueness
// and size are table concerns and are not checked here.
func (d *Definition) Validate(r record.Record) (record.Record, error) {
	defaults := make(map[string]any)
	for _, f := range d.fields {
		if v, ok := r.Get(f.Name); ok && v != nil {
			continue
		}
		switch {
		case f.Default != nil:
			defaults[f.Name] = f.Default
		case f.Required:
			return r, &types.FieldError{Field: f.Name, Err: types.ErrRequiredFieldMissing}
		}
	}
	for _, f := range d.fields {
		v, ok := r.Get(f.Name)
		if !ok || v == nil {
			continue
		}
		if err := f.Check(v); err != nil {
			return r, err
		}
	}
	if len(defaults) == 0 {
		return r, nil
	}
	return r.Update(defaults), nil
}

// Configure changes the definition at a dotted path:
//
//	definition.fields.<name>       FieldSpec or mapping (see DecodeFieldSpec)
//	definition.unique              [][]string, or []string for a single set
//	definition.indexes             [][]string, or []string for a single set
//	definition.references.<field>  Reference, mapping or "table.field"
//	definition.primary_key         string or []string
//	constraints.<key>              any value; max_entries and max_bytes must
//	                               be non-negative integers
//
// Any other root returns ErrConfigurationScope; a malformed path or value
// under an accepted root returns ErrInvalidDefinition. A failed Configure
// leaves d unchanged.
func (d *Definition) Configure(path string, value any) error {
	root, rest, _ := strings.Cut(path, ".")
	next := d.Clone()
	var err error
	switch root {
	case RootDefinition:
		err = next.configureDefinition(rest, value)
	case RootConstraints:
		err = next.setConstraint(rest, value)
	default:
		return fmt.Errorf("%w: %q", types.ErrConfigurationScope, path)
	}
	if err != nil {
		return err
	}
	if err := next.check(); err != nil {
		return err
	}
	*d = *next
	return nil
}

func (d *Definition) configureDefinition(path string, value any) error {
	attr, name, _ := strings.Cut(path, ".")
	switch attr {
	case "fields":
		if name == "" {
			return fmt.Errorf("%w: definition.fields needs a field name", types.ErrInvalidDefinition)
		}
		spec, err := toFieldSpec(name, value)
		if err != nil {
			return err
		}
		return d.setField(spec)
	case "unique", "indexes":
		sets, err := toSets(value)
		if err != nil {
			return fmt.Errorf("%w: definition.%s: %v", types.ErrInvalidDefinition, attr, err)
		}
		if attr == "unique" {
			d.unique = sets
		} else {
			d.indexes = sets
		}
		return nil
	case "references":
		if name == "" {
			return fmt.Errorf("%w: definition.references needs a field name", types.ErrInvalidDefinition)
		}
		ref, err := toReference(value)
		if err != nil {
			return fmt.Errorf("%w: definition.references.%s: %v", types.ErrInvalidDefinition, name, err)
		}
		d.references[name] = ref
		return nil
	case "primary_key":
		fields, err := toFieldList(value)
		if err != nil {
			return fmt.Errorf("%w: definition.primary_key: %v", types.ErrInvalidDefinition, err)
		}
		d.primaryKey = fields
		return nil
	}
	return fmt.Errorf("%w: unknown attribute definition.%s", types.ErrInvalidDefinition, attr)
}

func (d *Definition) setField(spec FieldSpec) error {
	spec, err := spec.normalized()
	if err != nil {
		return err
	}
	if i := d.fieldIndex(spec.Name); i >= 0 {
		d.fields[i] = spec
		return nil
	}
	d.fields = append(d.fields, spec)
	return nil
}

func (d *Definition) setConstraint(key string, value any) error {
	if key == "" {
		return fmt.Errorf("%w: constraints needs a key", types.ErrInvalidDefinition)
	}
	value = record.Normalize(value)
	if key == ConstraintMaxEntries || key == ConstraintMaxBytes {
		n, ok := nonNegativeInt(value)
		if !ok {
			return fmt.Errorf("%w: constraints.%s must be a non-negative integer, got %v", types.ErrInvalidDefinition, key, value)
		}
		value = n
	}
	d.constraints[key] = value
	return nil
}

func (d *Definition) fieldIndex(name string) int {
	return slices.IndexFunc(d.fields, func(f FieldSpec) bool { return f.Name == name })
}

// check enforces that unique sets, indexes and the primary key name
// declared fields.
func (d *Definition) check() error {
	named := func(kind string, fields []string) error {
		if len(fields) == 0 {
			return fmt.Errorf("%w: empty %s set", types.ErrInvalidDefinition, kind)
		}
		for _, f := range fields {
			if d.fieldIndex(f) < 0 {
				return fmt.Errorf("%w: %s names undeclared field %q", types.ErrInvalidDefinition, kind, f)
			}
		}
		return nil
	}
	for _, set := range d.unique {
		if err := named("unique", set); err != nil {
			return err
		}
	}
	for _, set := range d.indexes {
		if err := named("index", set); err != nil {
			return err
		}
	}
	if d.primaryKey != nil {
		if err := named("primary key", d.primaryKey); err != nil {
			return err
		}
	}
	return nil
}

func toFieldSpec(name string, value any) (FieldSpec, error) {
	switch v := value.(type) {
	case FieldSpec:
		v.Name = name
		return v, nil
	case *FieldSpec:
		if v == nil {
			break
		}
		spec := *v
		spec.Name = name
		return spec, nil
	case FieldType:
		return FieldSpec{Name: name, Type: v}, nil
	case string:
		t, err := ParseFieldType(v)
		if err != nil {
			return FieldSpec{}, fmt.Errorf("%w: field %q: %w", types.ErrInvalidDefinition, name, err)
		}
		return FieldSpec{Name: name, Type: t}, nil
	case map[string]any:
		return DecodeFieldSpec(name, v)
	}
	return FieldSpec{}, fmt.Errorf("%w: field %q: unsupported value %T", types.ErrInvalidDefinition, name, value)
}

func toFieldList(value any) ([]string, error) {
	if s, ok := value.(string); ok {
		return []string{s}, nil
	}
	var out []string
	if err := mapstructure.Decode(value, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toSets(value any) ([][]string, error) {
	var sets [][]string
	if err := mapstructure.Decode(value, &sets); err == nil {
		return sets, nil
	}
	single, err := toFieldList(value)
	if err != nil {
		return nil, err
	}
	return [][]string{single}, nil
}

func toReference(value any) (Reference, error) {
	switch v := value.(type) {
	case Reference:
		return v, nil
	case string:
		table, field, ok := strings.Cut(v, ".")
		if !ok || table == "" || field == "" {
			return Reference{}, fmt.Errorf("want \"table.field\", got %q", v)
		}
		return Reference{Table: table, Field: field}, nil
	}
	var ref Reference
	if err := mapstructure.Decode(value, &ref); err != nil {
		return Reference{}, err
	}
	if ref.Table == "" || ref.Field == "" {
		return Reference{}, fmt.Errorf("reference needs table and field")
	}
	return ref, nil
}

func nonNegativeInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), n >= 0
	case int8:
		return int64(n), n >= 0
	case int16:
		return int64(n), n >= 0
	case int32:
		return int64(n), n >= 0
	case int64:
		return n, n >= 0
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		if n >= 0 && n == math.Trunc(n) && n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

func appendSet(sets [][]string, fields []string) [][]string {
	return append(sets, slices.Clone(fields))
}

func cloneSets(sets [][]string) [][]string {
	if sets == nil {
		return nil
	}
	out := make([][]string, len(sets))
	for i, s := range sets {
		out[i] = slices.Clone(s)
	}
	return out
}
