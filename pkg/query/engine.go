package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/pebble/pkg/filter"
	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// Match is one entry of a query result with the table it came from.
type Match struct {
	Table string
	Entry record.Entry
}

// Result is the outcome of Engine.Query. Matches are ordered by table, in
// the order tables are first referenced by the query, then by insertion
// order within each table.
type Result struct {
	Query   string
	Matches []Match
	Total   int
}

// Engine runs a query over named record collections. Registering replaces
// a table's entries; the engine reads them and never mutates them.
type Engine struct {
	tables map[string][]record.Entry
	names  []string
	expr   *Expression
}

// NewEngine returns an Engine with no tables and no query.
func NewEngine() *Engine {
	return &Engine{tables: make(map[string][]record.Entry)}
}

// Register makes entries queryable as table name.
func (e *Engine) Register(name string, entries []record.Entry) {
	if e.tables == nil {
		e.tables = make(map[string][]record.Entry)
	}
	if _, ok := e.tables[name]; !ok {
		e.names = append(e.names, name)
	}
	e.tables[name] = entries
}

// Tables returns the registered table names in registration order.
func (e *Engine) Tables() []string { return slices.Clone(e.names) }

// SetQuery parses s and makes it the current query.
func (e *Engine) SetQuery(s string, opts ...filter.Option) error {
	x, err := Parse(s, opts...)
	if err != nil {
		return err
	}
	e.expr = x
	return nil
}

// SetExpression makes x the current query.
func (e *Engine) SetExpression(x *Expression) { e.expr = x }

// Expression returns the current query, or nil.
func (e *Engine) Expression() *Expression { return e.expr }

// Resolve maps a clause path to its table and the field path within it.
// A path whose first segment names a registered table (and has more
// segments) uses that table. Otherwise, when exactly one table is
// registered, the whole path applies to it, provided a dotted path's first
// segment is a top-level key of one of its entries (or the table is empty).
// Otherwise the clause is unresolvable and Resolve returns a
// *types.TableError wrapping ErrUnknownTable.
func (e *Engine) Resolve(path string) (table, field string, err error) {
	prefix, rest, qualified := strings.Cut(path, ".")
	if qualified {
		if _, ok := e.tables[prefix]; ok {
			return prefix, rest, nil
		}
	}
	if len(e.names) == 1 {
		only := e.names[0]
		if !qualified || e.hasKey(only, prefix) {
			return only, path, nil
		}
	}
	if !qualified {
		prefix = ""
	}
	return "", "", &types.TableError{Table: prefix, Err: types.ErrUnknownTable}
}

// hasKey reports whether an entry of table holds key at the top level. An
// empty table accepts any key.
func (e *Engine) hasKey(table, key string) bool {
	entries := e.tables[table]
	if len(entries) == 0 {
		return true
	}
	for _, entry := range entries {
		if entry.Record.Has(key) {
			return true
		}
	}
	return false
}

type entryKey struct {
	table string
	id    string
}

// Query runs the current query. Each clause yields the set of entries of
// its table that satisfy it; sets combine left to right, AND as
// intersection and OR as union, keyed by table and identifier.
// Returns ErrNoQuery when no query is set.
func (e *Engine) Query() (Result, error) {
	if e.expr == nil {
		return Result{}, types.ErrNoQuery
	}

	var (
		acc        map[entryKey]bool
		referenced []string
	)
	for _, c := range e.expr.clauses {
		table, field, err := e.Resolve(c.Filter.Path())
		if err != nil {
			return Result{}, fmt.Errorf("clause %q: %w", c.Text, err)
		}
		if !slices.Contains(referenced, table) {
			referenced = append(referenced, table)
		}

		f := c.Filter.WithPath(field)
		matched := make(map[entryKey]bool)
		for _, entry := range e.tables[table] {
			ok, err := f.Evaluate(entry.Record)
			if err != nil {
				return Result{}, fmt.Errorf("clause %q, %s entry %s: %w", c.Text, table, entry.ID, err)
			}
			if ok {
				matched[entryKey{table, entry.ID}] = true
			}
		}

		switch {
		case acc == nil:
			acc = matched
		case c.Connective == ConnectiveOr:
			for k := range matched {
				acc[k] = true
			}
		default:
			for k := range acc {
				if !matched[k] {
					delete(acc, k)
				}
			}
		}
	}

	res := Result{Query: e.expr.String(), Matches: []Match{}}
	for _, table := range referenced {
		for _, entry := range e.tables[table] {
			if acc[entryKey{table, entry.ID}] {
				res.Matches = append(res.Matches, Match{Table: table, Entry: entry})
			}
		}
	}
	res.Total = len(res.Matches)
	return res, nil
}
