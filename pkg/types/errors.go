package types

import (
	"errors"
	"fmt"
)

// Record and table validation errors. Returned by Table.Add, usually wrapped
// in a FieldError naming the offending field.
var (
	ErrImmutabilityViolation     = errors.New("record is immutable")
	ErrRequiredFieldMissing      = errors.New("required field missing")
	ErrFieldTypeMismatch         = errors.New("field type mismatch")
	ErrChoiceViolation           = errors.New("value not in allowed choices")
	ErrValidatorRejected         = errors.New("value rejected by validator")
	ErrUniqueConstraintViolation = errors.New("unique constraint violation")
	ErrSizeExceeded              = errors.New("size limit exceeded")
)

// Definition errors.
var (
	ErrConfigurationScope = errors.New("configuration path outside definition or constraints")
	ErrInvalidDefinition  = errors.New("invalid definition")
	ErrUnknownFieldType   = errors.New("unknown field type")
)

// Expression errors. Syntax errors arrive as *SyntaxError.
var (
	ErrFilterStringFormat  = errors.New("malformed filter string")
	ErrQueryStringFormat   = errors.New("malformed query string")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrInvalidScope        = errors.New("invalid filter scope")
	ErrUnknownTable        = errors.New("unknown table")
	ErrNoQuery             = errors.New("no query set")
)

// Table and registry operation errors.
var (
	ErrNotFound    = errors.New("entry not found")
	ErrInvalidID   = errors.New("invalid entry identifier")
	ErrInvalidName = errors.New("invalid table name")
	ErrTableExists = errors.New("table already exists")
	ErrClosed      = errors.New("database is closed")
)

// FieldError reports a validation failure on a single field, or on a set of
// fields for unique constraints (Field holds the comma-joined names).
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("field %q: %v (value %v)", e.Field, e.Err, e.Value)
}

func (e *FieldError) Unwrap() error { return e.Err }

// SyntaxError reports a malformed filter or query string. Pos is the 0-based
// byte offset of Token within Input. Kind is ErrFilterStringFormat or
// ErrQueryStringFormat; Cause is set when a query clause failed as a filter.
type SyntaxError struct {
	Kind    error
	Input   string
	Token   string
	Pos     int
	Message string
	Cause   error
}

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("%v at position %d", e.Kind, e.Pos)
	if e.Token != "" {
		msg += fmt.Sprintf(" near %q", e.Token)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *SyntaxError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// TableError names the table an operation could not resolve.
type TableError struct {
	Table string
	Err   error
}

func (e *TableError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%v: clause has no table prefix and no default table", e.Err)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Table)
}

func (e *TableError) Unwrap() error { return e.Err }
