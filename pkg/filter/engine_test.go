package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

func ids(entries []record.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestFilterAdultsUnderAll(t *testing.T) {
	e := NewEngine(ScopeAll, MustParse("age >= 18"))

	res, err := e.Filter(people())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(res.Entries))
	assert.Equal(t, 2, res.Considered)
	assert.Equal(t, 2, res.Matched)
}

func TestFilterWithoutFilters(t *testing.T) {
	tests := []struct {
		scope Scope
		want  []string
	}{
		{ScopeAll, []string{"1", "2"}},
		{ScopeAny, []string{}},
		{ScopeNone, []string{"1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.scope.String(), func(t *testing.T) {
			res, err := NewEngine(tt.scope).Filter(people())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(res.Entries))
			assert.Equal(t, len(tt.want), res.Matched)
		})
	}
}

func TestScopeLaws(t *testing.T) {
	entries := []record.Entry{
		{ID: "a", Record: record.New(map[string]any{"n": 1, "s": "x"})},
		{ID: "b", Record: record.New(map[string]any{"n": 2, "s": "y"})},
		{ID: "c", Record: record.New(map[string]any{"n": 3, "s": "x"})},
		{ID: "d", Record: record.New(map[string]any{"s": "z"})},
	}
	filters := []*Expression{MustParse("n >= 2"), MustParse("s == 'x'")}

	per := make([]map[string]bool, len(filters))
	for i, f := range filters {
		res, err := NewEngine(ScopeAll, f).Filter(entries)
		require.NoError(t, err)
		per[i] = make(map[string]bool)
		for _, id := range ids(res.Entries) {
			per[i][id] = true
		}
	}

	var wantAll, wantAny, wantNone []string
	for _, e := range entries {
		matchAll, matchAny := true, false
		for i := range filters {
			matchAll = matchAll && per[i][e.ID]
			matchAny = matchAny || per[i][e.ID]
		}
		if matchAll {
			wantAll = append(wantAll, e.ID)
		}
		if matchAny {
			wantAny = append(wantAny, e.ID)
		} else {
			wantNone = append(wantNone, e.ID)
		}
	}

	for scope, want := range map[Scope][]string{ScopeAll: wantAll, ScopeAny: wantAny, ScopeNone: wantNone} {
		res, err := NewEngine(scope, filters...).Filter(entries)
		require.NoError(t, err)
		assert.Equal(t, want, ids(res.Entries), scope.String())
	}
	assert.Equal(t, []string{"c"}, wantAll)
	assert.Equal(t, []string{"a", "b", "c"}, wantAny)
	assert.Equal(t, []string{"d"}, wantNone)
}

func TestEngineAddDeduplicates(t *testing.T) {
	e := NewEngine(ScopeAll)
	require.NoError(t, e.AddString("age >= 18"))
	require.NoError(t, e.AddString("age>=18"))
	require.NoError(t, e.AddString("age >= 18", WithCaseSensitive()))
	assert.Equal(t, 2, e.Len())

	assert.True(t, e.Remove("age >= 18"))
	assert.Equal(t, 0, e.Len())
	assert.False(t, e.Remove("age >= 18"))

	require.NoError(t, e.AddString("age < 3"))
	e.Clear()
	assert.Equal(t, 0, e.Len())
	require.Error(t, e.AddString("age >=* 18"))
}

func TestEngineZeroValue(t *testing.T) {
	var e Engine
	e.Add(MustParse("name == 'bob'"))

	res, err := e.Filter(people())
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(res.Entries))
}

func TestFilterPropagatesEvaluationErrors(t *testing.T) {
	e := NewEngine(ScopeAll, MustParse("name > 1"))

	_, err := e.Filter(people())
	assert.ErrorIs(t, err, types.ErrUnsupportedOperator)
}

func TestParseScope(t *testing.T) {
	for _, s := range []Scope{ScopeAll, ScopeAny, ScopeNone} {
		got, err := ParseScope(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseScope("any")
	require.NoError(t, err)
	assert.Equal(t, ScopeAny, got)

	_, err = ParseScope("SOME")
	assert.ErrorIs(t, err, types.ErrInvalidScope)
}
