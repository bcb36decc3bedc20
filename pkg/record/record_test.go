package record

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Record {
	return New(map[string]any{
		"name": "Alice",
		"age":  30,
		"address": map[string]any{
			"city": "Berlin",
			"geo":  map[string]any{"lat": 52.5},
		},
		"tags": []string{"admin", "ops"},
	})
}

func TestGet(t *testing.T) {
	r := sample()

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"name", "Alice", true},
		{"age", 30, true},
		{"address.city", "Berlin", true},
		{"address.geo.lat", 52.5, true},
		{"address.zip", nil, false},
		{"name.first", nil, false},
		{"missing", nil, false},
		{"tags.0", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := r.Get(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetIntoNestedRecord(t *testing.T) {
	inner := New(map[string]any{"x": 1})
	r := New(map[string]any{"inner": inner})

	got, ok := r.Get("inner.x")
	require.True(t, ok)
	assert.Equal(t, 1, got)
}

func TestNewCopiesInput(t *testing.T) {
	input := map[string]any{"nested": map[string]any{"k": "v"}, "list": []any{1, 2}}
	r := New(input)

	input["nested"].(map[string]any)["k"] = "changed"
	input["list"].([]any)[0] = 99
	input["extra"] = true

	got, _ := r.Get("nested.k")
	assert.Equal(t, "v", got)
	list, _ := r.Get("list")
	assert.Equal(t, []any{1, 2}, list)
	assert.False(t, r.Has("extra"))
}

func TestAccessorsReturnIndependentCopies(t *testing.T) {
	r := sample()

	m := r.ToMap()
	m["name"] = "Mallory"
	m["address"].(map[string]any)["city"] = "Paris"

	l := r.ToList()
	l[0] = "overwritten"

	v, _ := r.Get("address")
	v.(map[string]any)["city"] = "Rome"

	city, _ := r.Get("address.city")
	assert.Equal(t, "Berlin", city)
	name, _ := r.Get("name")
	assert.Equal(t, "Alice", name)
	assert.True(t, r.Equal(sample()))
}

func TestUpdateLeavesOriginalUntouched(t *testing.T) {
	r := sample()
	before := r.ToMap()

	u := r.Update(map[string]any{"age": 31, "email": "a@x.com"})

	assert.Equal(t, before, r.ToMap())
	age, _ := u.Get("age")
	assert.Equal(t, 31, age)
	assert.True(t, u.Has("email"))
	assert.False(t, r.Has("email"))
	assert.Equal(t, append(r.Keys(), "email"), u.Keys())
}

func TestUpdateIsShallow(t *testing.T) {
	r := sample()
	u := r.Update(map[string]any{"address": map[string]any{"zip": "10115"}})

	_, ok := u.Get("address.city")
	assert.False(t, ok, "nested mapping is replaced, not merged")
	zip, _ := u.Get("address.zip")
	assert.Equal(t, "10115", zip)
}

func TestWithout(t *testing.T) {
	r := sample()
	before := r.ToMap()

	w := r.Without("age")
	assert.False(t, w.Has("age"))
	assert.Equal(t, r.Len()-1, w.Len())
	assert.Equal(t, before, r.ToMap())

	same := r.Without("nope")
	assert.True(t, same.Equal(r))
}

func TestRoundTrip(t *testing.T) {
	records := []Record{
		sample(),
		New(nil),
		New(map[string]any{
			"when":  NewDate(2025, time.September, 5),
			"at":    NewTimeOfDay(13, 30, 0, 0),
			"id":    uuid.MustParse("0190a5a4-1c4e-7c3a-8f44-111111111111"),
			"price": decimal.RequireFromString("19.99"),
			"set":   NewSet("b", "a", "b"),
			"pair":  Tuple{1, "x"},
			"path":  Path("/tmp/x"),
		}),
	}
	for _, r := range records {
		back := New(r.ToMap())
		assert.True(t, back.Equal(r), "round trip of %v", r)
	}
}

func TestFromPairsKeepsOrder(t *testing.T) {
	r := FromPairs([]string{"z", "a", "m", "a"}, []any{1, 2, 3, 4})

	assert.Equal(t, []string{"z", "a", "m"}, r.Keys())
	assert.Equal(t, []any{1, 4, 3}, r.ToList())
	assert.Equal(t, Tuple{1, 4, 3}, r.ToTuple())
}

func TestEqualIgnoresKeyOrderAndNumericKind(t *testing.T) {
	a := FromPairs([]string{"x", "y"}, []any{1, "s"})
	b := FromPairs([]string{"y", "x"}, []any{"s", 1.0})
	c := FromPairs([]string{"x"}, []any{1})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestNormalizesNamedTypes(t *testing.T) {
	type color string
	type level int
	r := New(map[string]any{
		"color":  color("red"),
		"level":  level(3),
		"scores": map[string]int{"a": 1},
	})

	c, _ := r.Get("color")
	assert.Equal(t, "red", c)
	l, _ := r.Get("level")
	assert.Equal(t, int64(3), l)
	s, _ := r.Get("scores")
	assert.Equal(t, map[string]any{"a": 1}, s)
}

func TestMarshalJSONKeepsKeyOrder(t *testing.T) {
	r := FromPairs([]string{"b", "a"}, []any{1, NewSet(2, 1)})

	b, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":[1,2]}`, string(b))

	size, err := r.Size()
	require.NoError(t, err)
	assert.Equal(t, len(b), size)
}
