package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// timeLayouts are tried in order when a string literal meets a stored time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"15:04:05",
}

// Evaluate applies the predicate to r. A path that does not resolve yields
// false. A stored null never satisfies an ordering operator.
// Ordering operators on operands that are not mutually ordered return
// ErrUnsupportedOperator.
func (e *Expression) Evaluate(r record.Record) (bool, error) {
	v, ok := r.Get(e.path)
	if !ok {
		return false, nil
	}

	switch e.op {
	case OpIs:
		return identical(v, e.literal), nil
	case OpIsNot:
		return !identical(v, e.literal), nil
	}

	if e.op == OpIn || e.op == OpNotIn {
		items, _ := e.literal.([]any)
		if !e.CaseSensitive() {
			v = fold(v)
		}
		found := false
		for _, item := range items {
			item = coerce(item, v)
			if !e.CaseSensitive() {
				item = fold(item)
			}
			if record.Equal(v, item) {
				found = true
				break
			}
		}
		return found == (e.op == OpIn), nil
	}

	lit := coerce(e.literal, v)
	if !e.CaseSensitive() {
		v, lit = fold(v), fold(lit)
	}

	switch e.op {
	case OpEqual:
		return record.Equal(v, lit), nil
	case OpNotEqual:
		return !record.Equal(v, lit), nil
	}

	if v == nil {
		return false, nil
	}
	c, ok := record.Compare(v, lit)
	if !ok {
		return false, fmt.Errorf("%w: %q between %s and %s in %q",
			types.ErrUnsupportedOperator, e.op.String(), describe(v), describe(lit), e.text)
	}
	switch e.op {
	case OpLess:
		return c < 0, nil
	case OpGreater:
		return c > 0, nil
	case OpLessEqual:
		return c <= 0, nil
	case OpGreaterEqual:
		return c >= 0, nil
	}
	return false, fmt.Errorf("%w: %v", types.ErrUnsupportedOperator, e.op)
}

// identical implements is/is not: the literal is nil or a bool.
func identical(v, lit any) bool {
	if lit == nil {
		return v == nil
	}
	b, ok := v.(bool)
	return ok && b == lit.(bool)
}

// coerce converts a literal to the kind of the stored value: strings to
// UUIDs, paths and times, sequences to sets and tuples, element by element
// where the stored value has a matching element. Literals that do not
// convert are returned unchanged and simply compare unequal.
func coerce(lit, stored any) any {
	switch l := lit.(type) {
	case string:
		return coerceString(l, stored)
	case []any:
		switch s := stored.(type) {
		case record.Set:
			var elem any
			if len(s) > 0 {
				elem = s[0]
			}
			out := make([]any, len(l))
			for i, item := range l {
				out[i] = coerce(item, elem)
			}
			return record.NewSet(out...)
		case record.Tuple:
			return record.Tuple(coerceItems(l, s))
		case []any:
			return coerceItems(l, s)
		}
	}
	return lit
}

// coerceItems coerces each literal item against the stored item at the same
// position.
func coerceItems(lit, stored []any) []any {
	out := make([]any, len(lit))
	for i, item := range lit {
		if i < len(stored) {
			out[i] = coerce(item, stored[i])
		} else {
			out[i] = item
		}
	}
	return out
}

func coerceString(s string, stored any) any {
	switch stored.(type) {
	case uuid.UUID:
		if id, err := uuid.Parse(s); err == nil {
			return id
		}
	case record.Path:
		return record.Path(s)
	case time.Time:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return s
}

// fold lower-cases strings and paths, descending into sequences, sets and
// mappings.
func fold(v any) any {
	switch x := v.(type) {
	case string:
		return strings.ToLower(x)
	case record.Path:
		return record.Path(strings.ToLower(string(x)))
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = fold(x[i])
		}
		return out
	case record.Tuple:
		out := make(record.Tuple, len(x))
		for i := range x {
			out[i] = fold(x[i])
		}
		return out
	case record.Set:
		out := make([]any, len(x))
		for i := range x {
			out[i] = fold(x[i])
		}
		return record.NewSet(out...)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = fold(val)
		}
		return out
	}
	return v
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
