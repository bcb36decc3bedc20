package record

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Equal reports structural equality of two values. Numbers compare by value
// across integer, float and decimal kinds; sets compare without regard to
// order; sequences, tuples and mappings compare element-wise. Values of
// unrelated kinds are unequal.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if IsNumber(a) && IsNumber(b) {
		c, ok := compareNumbers(a, b)
		return ok && c == 0
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case Path:
		y, ok := b.(Path)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case uuid.UUID:
		y, ok := b.(uuid.UUID)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		return ok && equalSeq(x, y)
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalSeq(x, y)
	case Set:
		y, ok := b.(Set)
		if !ok || len(x) != len(y) {
			return false
		}
		for _, it := range x {
			if !y.Contains(it) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case Record:
		y, ok := b.(Record)
		return ok && x.Equal(y)
	}
	return reflect.DeepEqual(a, b)
}

func equalSeq(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Compare orders two mutually ordered values: number with number, string
// with string, path with path, time with time. It returns -1, 0 or 1 and
// true, or false when the values are not mutually ordered.
func Compare(a, b any) (int, bool) {
	if IsNumber(a) && IsNumber(b) {
		return compareNumbers(a, b)
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case Path:
		if y, ok := b.(Path); ok {
			return strings.Compare(string(x), string(y)), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	}
	return 0, false
}

// IsNumber reports whether v is an integer, float or decimal value.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, decimal.Decimal:
		return true
	}
	return false
}

// IsInteger reports whether v is an integer value.
func IsInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func compareNumbers(a, b any) (int, bool) {
	da, aDec := a.(decimal.Decimal)
	db, bDec := b.(decimal.Decimal)
	if aDec || bDec {
		if !aDec {
			var ok bool
			if da, ok = toDecimal(a); !ok {
				return 0, false
			}
		}
		if !bDec {
			var ok bool
			if db, ok = toDecimal(b); !ok {
				return 0, false
			}
		}
		return da.Cmp(db), true
	}
	if ia, ok := toInt64(a); ok {
		if ib, ok := toInt64(b); ok {
			switch {
			case ia < ib:
				return -1, true
			case ia > ib:
				return 1, true
			}
			return 0, true
		}
	}
	fa, _ := toFloat(a)
	fb, _ := toFloat(b)
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return 0, false
	}
	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	}
	return 0, true
}

func toInt64(v any) (int64, bool) {
	switch i := v.(type) {
	case int:
		return int64(i), true
	case int8:
		return int64(i), true
	case int16:
		return int64(i), true
	case int32:
		return int64(i), true
	case int64:
		return i, true
	case uint:
		return int64(i), uint64(i) <= math.MaxInt64
	case uint8:
		return int64(i), true
	case uint16:
		return int64(i), true
	case uint32:
		return int64(i), true
	case uint64:
		return int64(i), i <= math.MaxInt64
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	case decimal.Decimal:
		return f.InexactFloat64(), true
	case uint:
		return float64(f), true
	case uint64:
		return float64(f), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	if d, ok := v.(decimal.Decimal); ok {
		return d, true
	}
	if i, ok := toInt64(v); ok {
		return decimal.NewFromInt(i), true
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(f), true
}

// Key returns a canonical string for a tuple of values such that
// Key(a...) == Key(b...) whenever the tuples are Equal element-wise. Tables
// use it to index unique constraints.
func Key(values ...any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = key(v)
	}
	return strings.Join(parts, "\x1f")
}

func key(v any) string {
	if v == nil {
		return "null"
	}
	if IsNumber(v) {
		return "n:" + numberKey(v)
	}
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case string:
		return "s:" + strconv.Quote(x)
	case Path:
		return "p:" + strconv.Quote(string(x))
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return "u:" + x.String()
	case []any:
		return "l[" + Key(x...) + "]"
	case Tuple:
		return "t[" + Key(x...) + "]"
	case Set:
		keys := make([]string, len(x))
		for i, it := range x {
			keys[i] = key(it)
		}
		sort.Strings(keys)
		return "S[" + strings.Join(keys, "\x1f") + "]"
	case map[string]any:
		return mapKey(x)
	case Record:
		return mapKey(x.data)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

func mapKey(m map[string]any) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = strconv.Quote(k) + "=" + key(m[k])
	}
	return "{" + strings.Join(parts, "\x1f") + "}"
}

// numberKey formats every number through decimal so that equal values of
// different kinds share one key.
func numberKey(v any) string {
	d, ok := toDecimal(v)
	if !ok {
		f, _ := toFloat(v)
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if d.IsInteger() {
		return d.Truncate(0).String()
	}
	return d.String()
}
