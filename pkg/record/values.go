package record

import (
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/copystructure"
	"github.com/shopspring/decimal"
)

// Tuple is a fixed-length sequence value.
type Tuple []any

// Path is a filesystem path value.
type Path string

// Set is an unordered collection of distinct values. NewSet removes
// duplicates (by Equal) and keeps the elements in canonical Key order, so
// two sets holding the same elements are identical slices.
type Set []any

// NewSet returns a Set of the distinct items.
func NewSet(items ...any) Set {
	keyed := make(map[string]any, len(items))
	for _, it := range items {
		keyed[Key(it)] = it
	}
	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Set, len(keys))
	for i, k := range keys {
		out[i] = keyed[k]
	}
	return out
}

// Contains reports whether v is an element of s.
func (s Set) Contains(v any) bool {
	for _, it := range s {
		if Equal(it, v) {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the set as a JSON array in canonical order.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any(NewSet(s...)))
}

// NewDate returns the date value for the given day: a UTC time.Time at
// midnight.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NewTimeOfDay returns the time value for the given clock reading: a UTC
// time.Time on 0000-01-01, the same value time.Parse("15:04:05", ...) yields.
func NewTimeOfDay(hour, minute, second, nsec int) time.Time {
	return time.Date(0, time.January, 1, hour, minute, second, nsec, time.UTC)
}

// IsDate reports whether t carries no clock component.
func IsDate(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

// IsTimeOfDay reports whether t carries no date component.
func IsTimeOfDay(t time.Time) bool {
	y, m, d := t.Date()
	return y == 0 && m == time.January && d == 1
}

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	recordType  = reflect.TypeOf(Record{})
)

// Decimals, UUIDs and Records are immutable values; copystructure would
// otherwise walk their unexported fields.
func init() {
	identity := func(v any) (any, error) { return v, nil }
	copystructure.Copiers[decimalType] = identity
	copystructure.Copiers[uuidType] = identity
	copystructure.Copiers[recordType] = identity
}

// isOpaque reports whether v is a struct-like value normalize must leave alone.
func isOpaque(v any) bool {
	switch v.(type) {
	case time.Time, uuid.UUID, decimal.Decimal:
		return true
	}
	return false
}
