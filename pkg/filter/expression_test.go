package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		path    string
		op      Operator
		literal any
	}{
		{"age >= 18", "age", OpGreaterEqual, int64(18)},
		{"age>=18", "age", OpGreaterEqual, int64(18)},
		{"score < -1.5", "score", OpLess, -1.5},
		{"big == 1e3", "big", OpEqual, 1000.0},
		{"name == 'Alice'", "name", OpEqual, "Alice"},
		{`name != "O\"Neil"`, "name", OpNotEqual, `O"Neil`},
		{"name == 'it\\'s'", "name", OpEqual, "it's"},
		{"address.city == 'Berlin'", "address.city", OpEqual, "Berlin"},
		{"active == TRUE", "active", OpEqual, true},
		{"role in ['a', 'b']", "role", OpIn, []any{"a", "b"}},
		{"role NOT IN []", "role", OpNotIn, []any{}},
		{"grid in [[1, 2], [3]]", "grid", OpIn, []any{[]any{int64(1), int64(2)}, []any{int64(3)}}},
		{"deleted is null", "deleted", OpIs, nil},
		{"deleted IS NOT None", "deleted", OpIsNot, nil},
		{"flag is not false", "flag", OpIsNot, false},
		{"x <= 0", "x", OpLessEqual, int64(0)},
		{"x > 0", "x", OpGreater, int64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.path, e.Path())
			assert.Equal(t, tt.op, e.Operator())
			assert.Equal(t, tt.literal, e.Literal())
			assert.Equal(t, tt.in, e.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		in    string
		token string
		pos   int
	}{
		{"age >=* 18", ">=*", 4},
		{"age === 18", "===", 4},
		{"age 18", "18", 4},
		{"age", "", 3},
		{"", "", 0},
		{">= 18", ">=", 0},
		{"age >=", "", 6},
		{"name == 'Alice", "'Alice", 8},
		{"a..b == 1", ".", 2},
		{"a. == 1", "==", 3},
		{"age == 18 19", "19", 10},
		{"role in 'a'", "a", 8},
		{"role in [1, 2", "[", 8},
		{"role in [1 2]", "2", 11},
		{"age == eighteen", "eighteen", 7},
		{"age contains 1", "contains", 4},
		{"age not 1", "not", 4},
		{"1age == 1", "1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := Parse(tt.in)
			require.ErrorIs(t, err, types.ErrFilterStringFormat)
			var se *types.SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.token, se.Token)
			assert.Equal(t, tt.pos, se.Pos)
			assert.Equal(t, tt.in, se.Input)
		})
	}
}

func TestParseMalformedOperatorMessage(t *testing.T) {
	_, err := Parse("age >=* 18")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `">=*"`)
}

func TestParseIsRequiresNullOrBool(t *testing.T) {
	for _, in := range []string{"age is 18", "name is not 'x'", "tags is [1]"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, types.ErrUnsupportedOperator, in)
		assert.NotErrorIs(t, err, types.ErrFilterStringFormat, in)
	}
}

func people() []record.Entry {
	return []record.Entry{
		{ID: "1", Record: record.New(map[string]any{"name": "Alice", "age": 30, "tags": []any{"admin"}})},
		{ID: "2", Record: record.New(map[string]any{"name": "Bob", "age": 25, "nick": nil})},
	}
}

func TestEvaluate(t *testing.T) {
	id := uuid.MustParse("0190a5a4-1c4e-7c3a-8f44-333333333333")
	r := record.New(map[string]any{
		"name":    "Alice",
		"age":     30,
		"score":   4.5,
		"active":  true,
		"nick":    nil,
		"id":      id,
		"home":    record.Path("/home/alice"),
		"born":    record.NewDate(1995, time.May, 17),
		"tags":    []any{"Admin", "ops"},
		"address": map[string]any{"city": "Berlin"},
		"labels":  record.NewSet("a", "b"),
		"coords":  record.Tuple{1, 2},
	})

	tests := []struct {
		in   string
		want bool
	}{
		{"name == 'alice'", true},
		{"name == 'ALICE'", true},
		{"name != 'bob'", true},
		{"age == 30.0", true},
		{"age >= 18", true},
		{"age < 30", false},
		{"age <= 30", true},
		{"score > 4", true},
		{"age == '30'", false},
		{"address.city == 'berlin'", true},
		{"address.zip == 'x'", false},
		{"missing >= 1", false},
		{"missing is null", false},
		{"nick is null", true},
		{"nick is not null", false},
		{"nick == 'x'", false},
		{"nick != 'x'", true},
		{"nick > 1", false},
		{"active is true", true},
		{"active is not false", true},
		{"age is null", false},
		{"name in ['bob', 'alice']", true},
		{"name not in ['bob', 'alice']", false},
		{"age in [1, 30]", true},
		{"tags == ['admin', 'OPS']", true},
		{"id == '0190a5a4-1c4e-7c3a-8f44-333333333333'", true},
		{"id in ['0190a5a4-1c4e-7c3a-8f44-333333333333']", true},
		{"home == '/home/alice'", true},
		{"born == '1995-05-17'", true},
		{"born < '2000-01-01'", true},
		{"born > '1995-05-17T00:00:00Z'", false},
		{"name > 'aaron'", true},
		{"home == '/HOME/Alice'", true},
		{"labels == ['b', 'A']", true},
		{"labels == ['a']", false},
		{"labels != ['a', 'b']", false},
		{"labels in [['a'], ['a', 'b']]", true},
		{"coords == [1, 2]", true},
		{"coords == [2, 1]", false},
		{"coords in [[0, 0], [1, 2]]", true},
		{"coords not in [[1, 2]]", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := MustParse(tt.in).Evaluate(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCaseSensitive(t *testing.T) {
	r := record.New(map[string]any{"name": "Alice"})

	got, err := MustParse("name == 'alice'", WithCaseSensitive()).Evaluate(r)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = MustParse("name == 'Alice'", WithFlags(CaseSensitive)).Evaluate(r)
	require.NoError(t, err)
	assert.True(t, got)

	p := record.New(map[string]any{"home": record.Path("/Tmp/X")})
	got, err = MustParse("home == '/tmp/x'", WithCaseSensitive()).Evaluate(p)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateUnorderedOperands(t *testing.T) {
	r := record.New(map[string]any{"name": "Alice", "active": true, "tags": []any{1}})

	for _, in := range []string{"name > 3", "active < true", "tags >= 1", "name <= [1]"} {
		_, err := MustParse(in).Evaluate(r)
		assert.ErrorIs(t, err, types.ErrUnsupportedOperator, in)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	r := record.New(map[string]any{"name": "Alice", "tags": []any{"A"}})
	before := r.ToMap()
	e := MustParse("tags == ['a']")

	for range 3 {
		got, err := e.Evaluate(r)
		require.NoError(t, err)
		assert.True(t, got)
	}
	assert.Equal(t, before, r.ToMap())
}
