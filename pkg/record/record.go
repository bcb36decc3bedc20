// Package record implements Record, the immutable keyed value container that
// tables store and the filter and query engines read.
//
// A Record has no mutating method. Construction deep-copies its input and
// every accessor returns an independent copy, so a Record can be shared
// between goroutines without synchronization. "Modifications" (Update,
// Without) return new Records.
package record

import (
	"bytes"
	"reflect"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/copystructure"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is an immutable mapping from string keys to values that preserves
// key insertion order. The zero Record is empty and ready to use.
type Record struct {
	keys []string
	data map[string]any
}

// Entry pairs a stored Record with its table-unique identifier.
type Entry struct {
	ID     string
	Record Record
}

// New returns a Record holding a deep copy of m. Keys are ordered
// lexically because Go maps carry no order; use FromPairs to choose one.
func New(m map[string]any) Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return build(keys, m)
}

// FromPairs returns a Record with the given keys in the given order. Later
// duplicates of a key overwrite the earlier value but keep its position.
// Missing values (len(values) < len(keys)) are nil.
func FromPairs(keys []string, values []any) Record {
	m := make(map[string]any, len(keys))
	ordered := make([]string, 0, len(keys))
	for i, k := range keys {
		if _, seen := m[k]; !seen {
			ordered = append(ordered, k)
		}
		var v any
		if i < len(values) {
			v = values[i]
		}
		m[k] = v
	}
	return build(ordered, m)
}

func build(keys []string, m map[string]any) Record {
	r := Record{keys: keys, data: make(map[string]any, len(keys))}
	for _, k := range keys {
		r.data[k] = normalize(clone(m[k]))
	}
	return r
}

// Get resolves a dot-separated path, descending into nested mappings and
// Records. The boolean is false when any segment is absent or the value at
// a segment cannot be traversed; Get never fails otherwise.
func (r Record) Get(path string) (any, bool) {
	v, ok := r.lookup(path)
	if !ok {
		return nil, false
	}
	return clone(v), true
}

// lookup is Get without the defensive copy. The returned value must not
// escape the package.
func (r Record) lookup(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var cur any = r
	for _, seg := range segments {
		switch node := cur.(type) {
		case Record:
			v, ok := node.data[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether key is present at the top level.
func (r Record) Has(key string) bool {
	_, ok := r.data[key]
	return ok
}

// Len returns the number of top-level keys.
func (r Record) Len() int { return len(r.keys) }

// Keys returns the top-level keys in order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Update returns a new Record equal to r with partial's keys overlaid.
// The merge is shallow: a nested mapping in partial replaces the whole
// value. Existing keys keep their position; new keys are appended in
// lexical order. r is unaffected.
func (r Record) Update(partial map[string]any) Record {
	added := make([]string, 0, len(partial))
	for k := range partial {
		if !r.Has(k) {
			added = append(added, k)
		}
	}
	sort.Strings(added)

	keys := make([]string, 0, len(r.keys)+len(added))
	keys = append(keys, r.keys...)
	keys = append(keys, added...)

	m := make(map[string]any, len(keys))
	for k, v := range r.data {
		m[k] = v
	}
	for k, v := range partial {
		m[k] = v
	}
	return build(keys, m)
}

// Without returns a new Record lacking key. When key is absent the result
// equals r.
func (r Record) Without(key string) Record {
	keys := make([]string, 0, len(r.keys))
	m := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		if k == key {
			continue
		}
		keys = append(keys, k)
		m[k] = r.data[k]
	}
	return build(keys, m)
}

// ToMap returns an independent copy of the mapping.
func (r Record) ToMap() map[string]any {
	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		out[k] = clone(r.data[k])
	}
	return out
}

// ToList returns an independent copy of the values in key order.
func (r Record) ToList() []any {
	out := make([]any, len(r.keys))
	for i, k := range r.keys {
		out[i] = clone(r.data[k])
	}
	return out
}

// ToTuple returns the values in key order as a fixed Tuple.
func (r Record) ToTuple() Tuple {
	return Tuple(r.ToList())
}

// Equal reports structural equality: the same key set with equal values.
// Key order does not participate.
func (r Record) Equal(other Record) bool {
	if len(r.keys) != len(other.keys) {
		return false
	}
	for k, v := range r.data {
		ov, ok := other.data[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as a JSON object in key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.data[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Size returns the length in bytes of the record's JSON encoding. Tables
// use it to enforce byte limits.
func (r Record) Size() (int, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// String implements fmt.Stringer.
func (r Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return "Record{?}"
	}
	return string(b)
}

// Normalize returns a private copy of v converted to the value kinds a
// Record stores. Schemas use it to check defaults and choices the way Add
// will see them.
func Normalize(v any) any {
	return normalize(clone(v))
}

// clone deep-copies v. Values copystructure cannot handle are returned as is.
func clone(v any) any {
	switch v.(type) {
	case nil, bool, string, Path, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64, Record:
		return v
	}
	if isOpaque(v) {
		return v
	}
	c, err := copystructure.Copy(v)
	if err != nil {
		return v
	}
	return c
}

// normalize converts user-supplied containers and named scalar types to the
// closed set of value kinds the package works with: typed slices become
// []any, string-keyed maps become map[string]any, named strings and numbers
// become their base types. The argument must already be a private copy.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64, Path, Record:
		return x
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case Tuple:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case Set:
		items := make([]any, len(x))
		for i := range x {
			items[i] = normalize(x[i])
		}
		return NewSet(items...)
	case map[string]any:
		for k := range x {
			x[k] = normalize(x[k])
		}
		return x
	}
	if isOpaque(v) {
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}
