// Package schema describes the allowed shape of table records: a closed set
// of field types, per-field specifications and the table Definition that
// gathers them with unique sets, indexes, references, a primary key and
// size constraints.
package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// FieldType is the declared type tag of a field.
type FieldType int

// Field types. The zero FieldType is invalid.
const (
	Boolean FieldType = iota + 1
	Date
	Datetime
	Decimal
	Dictionary
	Float
	Integer
	List
	Path
	Set
	String
	Time
	Tuple
	UUID
)

var fieldTypeNames = map[FieldType]string{
	Boolean:    "boolean",
	Date:       "date",
	Datetime:   "datetime",
	Decimal:    "decimal",
	Dictionary: "dictionary",
	Float:      "float",
	Integer:    "integer",
	List:       "list",
	Path:       "path",
	Set:        "set",
	String:     "string",
	Time:       "time",
	Tuple:      "tuple",
	UUID:       "uuid",
}

// FieldTypes returns every valid FieldType in declaration order.
func FieldTypes() []FieldType {
	out := make([]FieldType, 0, len(fieldTypeNames))
	for t := Boolean; t <= UUID; t++ {
		out = append(out, t)
	}
	return out
}

// ParseFieldType returns the FieldType named s, ignoring case.
// Returns ErrUnknownFieldType if s names no type.
func ParseFieldType(s string) (FieldType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range fieldTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", types.ErrUnknownFieldType, s)
}

// Valid reports whether t is one of the declared field types.
func (t FieldType) Valid() bool {
	_, ok := fieldTypeNames[t]
	return ok
}

func (t FieldType) String() string {
	if n, ok := fieldTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// MarshalText encodes the type by name.
func (t FieldType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", types.ErrUnknownFieldType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *FieldType) UnmarshalText(b []byte) error {
	parsed, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Accepts reports whether v has the runtime shape of t. v is expected in
// the normalized form a Record stores (see record.Normalize). nil is never
// accepted; callers handle absent values before asking.
func (t FieldType) Accepts(v any) bool {
	switch t {
	case Boolean:
		_, ok := v.(bool)
		return ok
	case Date:
		tm, ok := v.(time.Time)
		return ok && record.IsDate(tm)
	case Datetime:
		_, ok := v.(time.Time)
		return ok
	case Decimal:
		return record.IsNumber(v)
	case Dictionary:
		switch v.(type) {
		case map[string]any, record.Record:
			return true
		}
		return false
	case Float:
		switch v.(type) {
		case float32, float64:
			return true
		}
		return false
	case Integer:
		return record.IsInteger(v)
	case List:
		_, ok := v.([]any)
		return ok
	case Path:
		_, ok := v.(record.Path)
		return ok
	case Set:
		_, ok := v.(record.Set)
		return ok
	case String:
		_, ok := v.(string)
		return ok
	case Time:
		tm, ok := v.(time.Time)
		return ok && record.IsTimeOfDay(tm)
	case Tuple:
		_, ok := v.(record.Tuple)
		return ok
	case UUID:
		_, ok := v.(uuid.UUID)
		return ok
	}
	return false
}
