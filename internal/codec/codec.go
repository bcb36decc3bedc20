// Package codec converts definitions and records to and from JSON for the
// stores and the CLI. Declared fields are encoded according to their
// FieldType so that dates, times, decimals, UUIDs, sets and tuples come back
// as the same kinds of values; undeclared fields round-trip as plain JSON.
package codec

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/schema"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// numbers keeps JSON numbers as text so integral values can become int64.
var numbers = jsoniter.Config{UseNumber: true, EscapeHTML: true}.Froze()

// Wire layouts for time values.
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05.999999999"
	DatetimeLayout = time.RFC3339Nano
)

// EncodeValue returns the JSON-ready form of v for a field of type ft. A
// zero ft encodes v as an undeclared value.
func EncodeValue(ft schema.FieldType, v any) any {
	if v == nil {
		return nil
	}
	switch ft {
	case schema.Date:
		if t, ok := v.(time.Time); ok {
			return t.Format(DateLayout)
		}
	case schema.Time:
		if t, ok := v.(time.Time); ok {
			return t.Format(TimeLayout)
		}
	}
	return plain(v)
}

// plain converts the value kinds a Record holds to JSON-ready values.
func plain(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(DatetimeLayout)
	case uuid.UUID:
		return x.String()
	case decimal.Decimal:
		return x.String()
	case record.Path:
		return string(x)
	case record.Set:
		return plainSlice(x)
	case record.Tuple:
		return plainSlice(x)
	case []any:
		return plainSlice(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plain(e)
		}
		return out
	case record.Record:
		keys := x.Keys()
		vals := make([]any, len(keys))
		for i, k := range keys {
			e, _ := x.Get(k)
			vals[i] = plain(e)
		}
		return record.FromPairs(keys, vals)
	}
	return v
}

func plainSlice(s []any) []any {
	out := make([]any, len(s))
	for i, e := range s {
		out[i] = plain(e)
	}
	return out
}

// DecodeValue converts raw JSON into the stored form for a field of type
// ft. A zero ft decodes plain JSON with integral numbers as int64.
func DecodeValue(ft schema.FieldType, raw []byte) (any, error) {
	var v any
	if err := numbers.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return convert(ft, v)
}

func convert(ft schema.FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch ft {
	case schema.Date:
		return parseTime(v, DateLayout)
	case schema.Time:
		return parseTime(v, TimeLayout)
	case schema.Datetime:
		return parseTime(v, DatetimeLayout)
	case schema.Decimal:
		return parseDecimal(v)
	case schema.UUID:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("uuid: want string, got %T", v)
		}
		return uuid.Parse(s)
	case schema.Path:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("path: want string, got %T", v)
		}
		return record.Path(s), nil
	case schema.Float:
		if n, ok := v.(interface{ Float64() (float64, error) }); ok {
			return n.Float64()
		}
	case schema.Set:
		if s, ok := v.([]any); ok {
			return record.NewSet(untyped(s).([]any)...), nil
		}
	case schema.Tuple:
		if s, ok := v.([]any); ok {
			return record.Tuple(untyped(s).([]any)), nil
		}
	}
	return untyped(v), nil
}

// untyped replaces JSON numbers with int64 or float64 throughout v.
func untyped(v any) any {
	switch x := v.(type) {
	case interface {
		Int64() (int64, error)
		Float64() (float64, error)
	}:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = untyped(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = untyped(x[k])
		}
		return x
	}
	return v
}

func parseTime(v any, layout string) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("time: want string, got %T", v)
	}
	return time.Parse(layout, s)
}

func parseDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case string:
		return decimal.NewFromString(x)
	case fmt.Stringer:
		return decimal.NewFromString(x.String())
	}
	return decimal.Decimal{}, fmt.Errorf("decimal: want string or number, got %T", v)
}
