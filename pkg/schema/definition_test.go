package schema

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

func TestParseFieldType(t *testing.T) {
	for _, ft := range FieldTypes() {
		got, err := ParseFieldType(strings.ToUpper(ft.String()))
		require.NoError(t, err)
		assert.Equal(t, ft, got)
	}

	_, err := ParseFieldType("blob")
	assert.ErrorIs(t, err, types.ErrUnknownFieldType)
	assert.False(t, FieldType(0).Valid())
}

func TestFieldTypeAccepts(t *testing.T) {
	tests := []struct {
		ft     FieldType
		accept []any
		reject []any
	}{
		{Boolean, []any{true}, []any{"true", 1}},
		{Date, []any{record.NewDate(2025, 1, 2)}, []any{time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC), "2025-01-02"}},
		{Datetime, []any{time.Now()}, []any{"now"}},
		{Decimal, []any{decimal.NewFromInt(1), 1.5, 2}, []any{"1.5"}},
		{Dictionary, []any{map[string]any{}, record.New(nil)}, []any{[]any{}}},
		{Float, []any{1.5, float32(2)}, []any{1, decimal.NewFromInt(1)}},
		{Integer, []any{1, int64(2), uint8(3)}, []any{1.0, "1"}},
		{List, []any{[]any{1}}, []any{record.Tuple{1}, record.NewSet(1)}},
		{Path, []any{record.Path("/tmp")}, []any{"/tmp"}},
		{Set, []any{record.NewSet(1, 2)}, []any{[]any{1, 2}}},
		{String, []any{"x"}, []any{record.Path("x"), 1}},
		{Time, []any{record.NewTimeOfDay(1, 2, 3, 0)}, []any{record.NewDate(2025, 1, 1)}},
		{Tuple, []any{record.Tuple{1, 2}}, []any{[]any{1, 2}}},
		{UUID, []any{uuid.New()}, []any{uuid.NewString()}},
	}
	require.Len(t, tests, len(FieldTypes()))
	for _, tt := range tests {
		t.Run(tt.ft.String(), func(t *testing.T) {
			for _, v := range tt.accept {
				assert.True(t, tt.ft.Accepts(v), "%s should accept %#v", tt.ft, v)
			}
			for _, v := range tt.reject {
				assert.False(t, tt.ft.Accepts(v), "%s should reject %#v", tt.ft, v)
			}
			assert.False(t, tt.ft.Accepts(nil))
		})
	}
}

func usersDefinition(t *testing.T) *Definition {
	t.Helper()
	d, err := NewDefinition(
		WithField(FieldSpec{Name: "email", Type: String, Required: true}),
		WithField(FieldSpec{Name: "age", Type: Integer, Validator: func(v any) bool {
			n, _ := record.Compare(v, 0)
			return n >= 0
		}}),
		WithField(FieldSpec{Name: "role", Type: String, Default: "member", Choices: []any{"member", "admin"}}),
		WithUnique("email"),
	)
	require.NoError(t, err)
	return d
}

func TestValidate(t *testing.T) {
	d := usersDefinition(t)

	tests := []struct {
		name    string
		payload map[string]any
		wantErr error
		field   string
	}{
		{"ok", map[string]any{"email": "a@x.com", "age": 3}, nil, ""},
		{"missing required", map[string]any{"age": 3}, types.ErrRequiredFieldMissing, "email"},
		{"nil required", map[string]any{"email": nil}, types.ErrRequiredFieldMissing, "email"},
		{"type mismatch", map[string]any{"email": 42}, types.ErrFieldTypeMismatch, "email"},
		{"choice", map[string]any{"email": "a@x.com", "role": "root"}, types.ErrChoiceViolation, "role"},
		{"validator", map[string]any{"email": "a@x.com", "age": -1}, types.ErrValidatorRejected, "age"},
		{"undeclared passes", map[string]any{"email": "a@x.com", "nick": 1}, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Validate(record.New(tt.payload))
			if tt.wantErr == nil {
				require.NoError(t, err)
				role, ok := got.Get("role")
				assert.True(t, ok)
				assert.Equal(t, "member", role)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			var fe *types.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestValidateRequiredWithDefault(t *testing.T) {
	d, err := NewDefinition(WithField(FieldSpec{Name: "status", Type: String, Required: true, Default: "open"}))
	require.NoError(t, err)

	got, err := d.Validate(record.New(nil))
	require.NoError(t, err)
	status, _ := got.Get("status")
	assert.Equal(t, "open", status)
}

func TestNewDefinitionRejectsUndeclaredFields(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"unique", WithUnique("nope")},
		{"index", WithIndex("email", "nope")},
		{"primary key", WithPrimaryKey("nope")},
		{"empty unique", WithUnique()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDefinition(WithField(FieldSpec{Name: "email", Type: String}), tt.opt)
			assert.ErrorIs(t, err, types.ErrInvalidDefinition)
		})
	}
}

func TestNewDefinitionRejectsBadFields(t *testing.T) {
	bad := []FieldSpec{
		{Name: "", Type: String},
		{Name: "a.b", Type: String},
		{Name: "x", Type: FieldType(99)},
		{Name: "x", Type: Integer, Default: "zero"},
		{Name: "x", Type: String, Default: "c", Choices: []any{"a", "b"}},
	}
	for _, spec := range bad {
		_, err := NewDefinition(WithField(spec))
		assert.ErrorIs(t, err, types.ErrInvalidDefinition, "%+v", spec)
	}
}

func TestConfigureScope(t *testing.T) {
	d := usersDefinition(t)

	err := d.Configure("definition.fields.email", FieldSpec{Type: String, Required: true})
	require.NoError(t, err)

	err = d.Configure("storage.path", "/tmp/x")
	require.ErrorIs(t, err, types.ErrConfigurationScope)
	assert.Contains(t, err.Error(), "storage.path")

	assert.ErrorIs(t, d.Configure("definition", nil), types.ErrInvalidDefinition)
	assert.ErrorIs(t, d.Configure("", nil), types.ErrConfigurationScope)
}

func TestConfigureFieldFromMapping(t *testing.T) {
	d := usersDefinition(t)

	err := d.Configure("definition.fields.score", map[string]any{
		"type":     "FLOAT",
		"required": false,
		"default":  0.0,
	})
	require.NoError(t, err)

	f, ok := d.Field("score")
	require.True(t, ok)
	assert.Equal(t, Float, f.Type)
	assert.Equal(t, 0.0, f.Default)

	err = d.Configure("definition.fields.bad", map[string]any{"type": "string", "colour": "red"})
	assert.ErrorIs(t, err, types.ErrInvalidDefinition)
	err = d.Configure("definition.fields.bad", map[string]any{"type": "blob"})
	assert.ErrorIs(t, err, types.ErrInvalidDefinition)
	_, ok = d.Field("bad")
	assert.False(t, ok)
}

func TestConfigureSetsAndReferences(t *testing.T) {
	d := usersDefinition(t)

	require.NoError(t, d.Configure("definition.unique", []any{[]any{"email"}, []any{"email", "role"}}))
	assert.Equal(t, [][]string{{"email"}, {"email", "role"}}, d.Unique())

	require.NoError(t, d.Configure("definition.indexes", []string{"age"}))
	assert.Equal(t, [][]string{{"age"}}, d.Indexes())

	require.NoError(t, d.Configure("definition.primary_key", "email"))
	assert.Equal(t, []string{"email"}, d.PrimaryKey())

	require.NoError(t, d.Configure("definition.references.role", "roles.name"))
	require.NoError(t, d.Configure("definition.references.email", map[string]any{"table": "accounts", "field": "email"}))
	assert.Equal(t, map[string]Reference{
		"role":  {Table: "roles", Field: "name"},
		"email": {Table: "accounts", Field: "email"},
	}, d.References())

	err := d.Configure("definition.unique", []string{"ghost"})
	require.ErrorIs(t, err, types.ErrInvalidDefinition)
	assert.Equal(t, [][]string{{"email"}, {"email", "role"}}, d.Unique(), "failed configure leaves definition unchanged")
}

func TestConfigureConstraints(t *testing.T) {
	d := usersDefinition(t)
	assert.Equal(t, types.DefaultMaxEntries, d.MaxEntries())
	assert.Equal(t, 0, d.MaxBytes())

	require.NoError(t, d.Configure("constraints.max_entries", 2))
	require.NoError(t, d.Configure("constraints.max_bytes", 2048.0))
	require.NoError(t, d.Configure("constraints.note", "free-form"))
	assert.Equal(t, 2, d.MaxEntries())
	assert.Equal(t, 2048, d.MaxBytes())
	note, ok := d.Constraint("note")
	require.True(t, ok)
	assert.Equal(t, "free-form", note)

	assert.ErrorIs(t, d.Configure("constraints.max_entries", -1), types.ErrInvalidDefinition)
	assert.ErrorIs(t, d.Configure("constraints.max_bytes", "big"), types.ErrInvalidDefinition)
	assert.ErrorIs(t, d.Configure("constraints", 1), types.ErrInvalidDefinition)
	assert.Equal(t, 2, d.MaxEntries())
}

func TestCloneIsIndependent(t *testing.T) {
	d := usersDefinition(t)
	c := d.Clone()

	require.NoError(t, c.Configure("definition.fields.extra", "string"))
	require.NoError(t, c.Configure("constraints.max_entries", 5))

	_, ok := d.Field("extra")
	assert.False(t, ok)
	assert.Equal(t, types.DefaultMaxEntries, d.MaxEntries())
	assert.Len(t, c.Fields(), len(d.Fields())+1)
}
