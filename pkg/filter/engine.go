package filter

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// Scope decides how an Engine combines its filters.
type Scope int

// Scopes. The zero Scope is ScopeAll.
const (
	ScopeAll  Scope = iota // every filter matches
	ScopeAny               // at least one filter matches
	ScopeNone              // no filter matches
)

var scopeNames = map[Scope]string{
	ScopeAll:  "ALL",
	ScopeAny:  "ANY",
	ScopeNone: "NONE",
}

// ParseScope parses ALL, ANY or NONE, ignoring case.
func ParseScope(s string) (Scope, error) {
	for sc, name := range scopeNames {
		if strings.EqualFold(s, name) {
			return sc, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", types.ErrInvalidScope, s)
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Scope(%d)", int(s))
}

// Result is the outcome of Engine.Filter.
type Result struct {
	Entries    []record.Entry // matching entries in input order
	Considered int
	Matched    int
}

// Engine applies a set of filters under one scope. An Engine is not safe
// for concurrent mutation; Filter and Match only read.
type Engine struct {
	filters []*Expression
	keys    map[string]bool
	scope   Scope
}

// NewEngine returns an Engine with the given scope and filters.
func NewEngine(scope Scope, filters ...*Expression) *Engine {
	e := &Engine{scope: scope, keys: make(map[string]bool)}
	e.Add(filters...)
	return e
}

// Add registers filters. A filter equal to one already registered (same
// path, operator, literal and flags) is ignored.
func (e *Engine) Add(filters ...*Expression) {
	if e.keys == nil {
		e.keys = make(map[string]bool)
	}
	for _, f := range filters {
		if f == nil || e.keys[f.key()] {
			continue
		}
		e.keys[f.key()] = true
		e.filters = append(e.filters, f)
	}
}

// AddString parses s and registers it.
func (e *Engine) AddString(s string, opts ...Option) error {
	f, err := Parse(s, opts...)
	if err != nil {
		return err
	}
	e.Add(f)
	return nil
}

// Remove unregisters filters whose text is s and reports whether any was
// registered.
func (e *Engine) Remove(s string) bool {
	s = strings.TrimSpace(s)
	kept := e.filters[:0]
	removed := false
	for _, f := range e.filters {
		if f.text == s {
			delete(e.keys, f.key())
			removed = true
			continue
		}
		kept = append(kept, f)
	}
	e.filters = kept
	return removed
}

// Clear unregisters every filter.
func (e *Engine) Clear() {
	e.filters = nil
	e.keys = make(map[string]bool)
}

// SetScope changes the scope.
func (e *Engine) SetScope(s Scope) { e.scope = s }

// Scope returns the scope.
func (e *Engine) Scope() Scope { return e.scope }

// Filters returns the registered filters in registration order.
func (e *Engine) Filters() []*Expression {
	out := make([]*Expression, len(e.filters))
	copy(out, e.filters)
	return out
}

// Len returns the number of registered filters.
func (e *Engine) Len() int { return len(e.filters) }

// Match reports whether r satisfies the engine. With no filters, ALL and
// NONE match every record and ANY matches none. Filters are evaluated in
// registration order and evaluation stops once the outcome is decided.
func (e *Engine) Match(r record.Record) (bool, error) {
	for _, f := range e.filters {
		ok, err := f.Evaluate(r)
		if err != nil {
			return false, err
		}
		switch {
		case e.scope == ScopeAll && !ok:
			return false, nil
		case e.scope == ScopeAny && ok:
			return true, nil
		case e.scope == ScopeNone && ok:
			return false, nil
		}
	}
	return e.scope != ScopeAny, nil
}

// Filter returns the entries that satisfy the engine, in input order.
func (e *Engine) Filter(entries []record.Entry) (Result, error) {
	res := Result{Entries: []record.Entry{}, Considered: len(entries)}
	for _, entry := range entries {
		ok, err := e.Match(entry.Record)
		if err != nil {
			return Result{}, fmt.Errorf("entry %s: %w", entry.ID, err)
		}
		if ok {
			res.Entries = append(res.Entries, entry)
		}
	}
	res.Matched = len(res.Entries)
	return res, nil
}
