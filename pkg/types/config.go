package types

import "errors"

// DefaultMaxEntries is the entry-count limit applied to a table whose
// definition does not configure constraints.max_entries.
const DefaultMaxEntries = 200000

// Config holds backend selection and limits for opening a database.
type Config struct {
	Backend       string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir       string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	MaxEntries    int    `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries"`
	MaxBytes      int    `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`
	CaseSensitive bool   `json:"case_sensitive" yaml:"case_sensitive" mapstructure:"case_sensitive"`
}

// Supported backend names.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// Config validation errors.
var (
	ErrBackendEmpty      = errors.New("backend must not be empty")
	ErrBackendUnknown    = errors.New("unknown backend")
	ErrMaxEntriesInvalid = errors.New("max entries must not be negative")
	ErrMaxBytesInvalid   = errors.New("max bytes must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendJSONL:  true,
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.MaxEntries < 0 {
		return ErrMaxEntriesInvalid
	}
	if c.MaxBytes < 0 {
		return ErrMaxBytesInvalid
	}
	return nil
}

// EffectiveMaxEntries returns MaxEntries, or DefaultMaxEntries when unset.
func (c Config) EffectiveMaxEntries() int {
	if c.MaxEntries == 0 {
		return DefaultMaxEntries
	}
	return c.MaxEntries
}
