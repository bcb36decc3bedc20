// Package types defines the error taxonomy, structured error carriers and
// the Config shared by every Pebble package.
//
// Callers match errors by kind with errors.Is against the sentinels declared
// here; FieldError, SyntaxError and TableError carry the details.
package types
