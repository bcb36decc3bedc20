// Package table implements Table: a named, schema-validated, ordered
// collection of immutable records.
//
// A Table is not safe for concurrent mutation; callers that share one
// between goroutines serialize Add, Remove and Configure themselves.
package table

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/pebble/pkg/filter"
	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/schema"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// Table owns one Definition and the entries admitted under it.
type Table struct {
	name    string
	def     *schema.Definition
	entries []record.Entry
	pos     map[string]int // id -> index in entries
	size    int            // sum of record sizes in bytes
	unique  []*uniqueIndex
	lookups []*lookupIndex
	dirty   bool
	newID   func() string
}

// Option configures a Table at construction.
type Option func(*Table) error

// WithIDGenerator replaces the UUID v7 generator used when Add is given no
// identifier.
func WithIDGenerator(fn func() string) Option {
	return func(t *Table) error {
		t.newID = fn
		return nil
	}
}

// WithLimits sets constraints.max_entries and constraints.max_bytes on the
// table's definition. Zero leaves a limit as it is.
func WithLimits(maxEntries, maxBytes int) Option {
	return func(t *Table) error {
		if maxEntries != 0 {
			if err := t.def.Configure("constraints."+schema.ConstraintMaxEntries, maxEntries); err != nil {
				return err
			}
		}
		if maxBytes != 0 {
			return t.def.Configure("constraints."+schema.ConstraintMaxBytes, maxBytes)
		}
		return nil
	}
}

// newUUID generates a UUID v7 string.
func newUUID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ValidName reports whether name can name a table: a letter or underscore
// followed by letters, digits, underscores or hyphens. Dots are excluded
// because queries use them to separate the table from the field path.
func ValidName(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r == '-' || r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return name != ""
}

// New returns an empty table. def is copied; a nil def accepts any payload.
// Returns ErrInvalidName if name is not a valid table name.
func New(name string, def *schema.Definition, opts ...Option) (*Table, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidName, name)
	}
	if def == nil {
		def = schema.MustDefinition()
	}
	t := &Table{
		name:  name,
		def:   def.Clone(),
		pos:   make(map[string]int),
		newID: newUUID,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	t.rebuildIndexes()
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Definition returns a copy of the table's definition.
func (t *Table) Definition() *schema.Definition { return t.def.Clone() }

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Size returns the summed encoded size of all records in bytes.
func (t *Table) Size() int { return t.size }

// Dirty reports whether the table changed since the last MarkClean.
func (t *Table) Dirty() bool { return t.dirty }

// MarkClean clears the dirty flag, typically after a successful save.
func (t *Table) MarkClean() { t.dirty = false }

// MarkDirty flags the table for the next save, for example a new table
// that holds no entries yet.
func (t *Table) MarkDirty() { t.dirty = true }

// Add validates payload against the definition and stores it as a new
// record under id, generating a UUID v7 when id is empty. It returns the
// identifier.
//
// Checks run in order: required fields, types, choices, validators, unique
// sets (including the primary key), then size limits. Either the record is
// fully admitted or the table is unchanged. Field failures are
// *types.FieldError. Returns ErrImmutabilityViolation if id already holds a
// record; stored records are never overwritten.
func (t *Table) Add(id string, payload map[string]any) (string, error) {
	r, err := t.admit(id, payload)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = t.generateID()
	}
	t.insert(record.Entry{ID: id, Record: r})
	t.dirty = true
	return id, nil
}

// AddMany adds payloads in order with generated identifiers. If any payload
// fails, the ones added before it are removed again and the error is
// returned.
func (t *Table) AddMany(payloads []map[string]any) ([]string, error) {
	ids := make([]string, 0, len(payloads))
	wasDirty := t.dirty
	for i, p := range payloads {
		id, err := t.Add("", p)
		if err != nil {
			for j := len(ids) - 1; j >= 0; j-- {
				t.delete(ids[j])
			}
			t.dirty = wasDirty
			return nil, fmt.Errorf("payload %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// admit runs every check of Add and returns the completed record.
func (t *Table) admit(id string, payload map[string]any) (record.Record, error) {
	if id != "" {
		if strings.TrimSpace(id) != id {
			return record.Record{}, fmt.Errorf("%w: %q", types.ErrInvalidID, id)
		}
		if _, exists := t.pos[id]; exists {
			return record.Record{}, fmt.Errorf("%w: entry %q already exists", types.ErrImmutabilityViolation, id)
		}
	}
	r, err := t.def.Validate(record.New(payload))
	if err != nil {
		return record.Record{}, err
	}
	for _, u := range t.unique {
		if holder, taken := u.conflict(r); taken {
			return record.Record{}, &types.FieldError{
				Field: strings.Join(u.fields, ","),
				Err:   fmt.Errorf("%w: already held by entry %s", types.ErrUniqueConstraintViolation, holder),
			}
		}
	}
	if err := t.CheckForSize(r); err != nil {
		return record.Record{}, err
	}
	return r, nil
}

func (t *Table) generateID() string {
	for {
		id := t.newID()
		if _, exists := t.pos[id]; !exists {
			return id
		}
	}
}

// CheckForSize reports whether admitting r would exceed the entry-count or
// byte limit of the definition. Returns ErrSizeExceeded if it would.
func (t *Table) CheckForSize(r record.Record) error {
	if limit := t.def.MaxEntries(); len(t.entries)+1 > limit {
		return fmt.Errorf("%w: table %q is limited to %d entries", types.ErrSizeExceeded, t.name, limit)
	}
	limit := t.def.MaxBytes()
	if limit == 0 {
		return nil
	}
	n, err := r.Size()
	if err != nil {
		return fmt.Errorf("measuring record: %w", err)
	}
	if t.size+n > limit {
		return fmt.Errorf("%w: table %q is limited to %d bytes, holds %d, record needs %d",
			types.ErrSizeExceeded, t.name, limit, t.size, n)
	}
	return nil
}

func (t *Table) insert(e record.Entry) {
	t.pos[e.ID] = len(t.entries)
	t.entries = append(t.entries, e)
	if n, err := e.Record.Size(); err == nil {
		t.size += n
	}
	for _, u := range t.unique {
		u.insert(e.ID, e.Record)
	}
	for _, x := range t.lookups {
		x.insert(e.ID, e.Record)
	}
}

func (t *Table) delete(id string) {
	i := t.pos[id]
	e := t.entries[i]
	for _, u := range t.unique {
		u.remove(id, e.Record)
	}
	for _, x := range t.lookups {
		x.remove(id, e.Record)
	}
	if n, err := e.Record.Size(); err == nil {
		t.size -= n
	}
	t.entries = slices.Delete(t.entries, i, i+1)
	delete(t.pos, id)
	for j := i; j < len(t.entries); j++ {
		t.pos[t.entries[j].ID] = j
	}
}

// Get returns the record stored under id.
// Returns ErrInvalidID if id is empty, ErrNotFound if no entry has it.
func (t *Table) Get(id string) (record.Record, error) {
	if id == "" {
		return record.Record{}, types.ErrInvalidID
	}
	i, ok := t.pos[id]
	if !ok {
		return record.Record{}, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	return t.entries[i].Record, nil
}

// GetMany returns the entries for ids in the order given.
// Returns ErrNotFound naming the first missing id.
func (t *Table) GetMany(ids ...string) ([]record.Entry, error) {
	out := make([]record.Entry, 0, len(ids))
	for _, id := range ids {
		r, err := t.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, record.Entry{ID: id, Record: r})
	}
	return out, nil
}

// Remove deletes the entry stored under id.
// Returns ErrInvalidID if id is empty, ErrNotFound if no entry has it.
func (t *Table) Remove(id string) error {
	if _, err := t.Get(id); err != nil {
		return err
	}
	t.delete(id)
	t.dirty = true
	return nil
}

// RemoveMany deletes every listed entry, or none if any id is missing.
func (t *Table) RemoveMany(ids ...string) error {
	if _, err := t.GetMany(ids...); err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := t.pos[id]; ok {
			t.delete(id)
		}
	}
	if len(ids) > 0 {
		t.dirty = true
	}
	return nil
}

// Entries returns the entries in insertion order. The slice is a copy; the
// records are immutable and shared.
func (t *Table) Entries() []record.Entry { return slices.Clone(t.entries) }

// Records returns the records in insertion order.
func (t *Table) Records() []record.Record {
	out := make([]record.Record, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Record
	}
	return out
}

// IDs returns the identifiers in insertion order.
func (t *Table) IDs() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.ID
	}
	return out
}

// Lookup returns the entries whose values at fields equal values, in
// insertion order. An index or unique set over exactly these fields is
// used when one exists; otherwise the table is scanned.
func (t *Table) Lookup(fields []string, values []any) ([]record.Entry, error) {
	if len(fields) == 0 || len(fields) != len(values) {
		return nil, fmt.Errorf("lookup needs one value per field, got %d fields and %d values", len(fields), len(values))
	}
	for _, v := range values {
		if v == nil {
			return []record.Entry{}, nil
		}
	}
	probe := record.FromPairs(fields, values)
	key, ok := tupleKey(probe, fields)
	if !ok {
		return []record.Entry{}, nil
	}

	for _, u := range t.unique {
		if sameFields(u.fields, fields) {
			if id, found := u.ids[key]; found {
				return []record.Entry{t.entries[t.pos[id]]}, nil
			}
			return []record.Entry{}, nil
		}
	}
	for _, x := range t.lookups {
		if sameFields(x.fields, fields) {
			ids := x.ids(key)
			positions := make([]int, len(ids))
			for i, id := range ids {
				positions[i] = t.pos[id]
			}
			slices.Sort(positions)
			out := make([]record.Entry, len(positions))
			for i, p := range positions {
				out[i] = t.entries[p]
			}
			return out, nil
		}
	}

	out := []record.Entry{}
	for _, e := range t.entries {
		if k, ok := tupleKey(e.Record, fields); ok && k == key {
			out = append(out, e)
		}
	}
	return out, nil
}

// Configure changes the definition at path (see schema.Definition.Configure)
// and rebuilds the indexes. Stored records are not re-validated against the
// new definition.
func (t *Table) Configure(path string, value any) error {
	if err := t.def.Configure(path, value); err != nil {
		return err
	}
	t.rebuildIndexes()
	t.dirty = true
	return nil
}

// rebuildIndexes recreates unique and lookup indexes from the definition.
// The primary key acts as one more unique set.
func (t *Table) rebuildIndexes() {
	sets := t.def.Unique()
	if pk := t.def.PrimaryKey(); pk != nil && !slices.ContainsFunc(sets, func(s []string) bool { return sameFields(s, pk) }) {
		sets = append(sets, pk)
	}
	t.unique = make([]*uniqueIndex, len(sets))
	for i, s := range sets {
		t.unique[i] = newUniqueIndex(s)
	}
	indexes := t.def.Indexes()
	t.lookups = make([]*lookupIndex, len(indexes))
	for i, s := range indexes {
		t.lookups[i] = newLookupIndex(s)
	}
	for _, e := range t.entries {
		for _, u := range t.unique {
			u.insert(e.ID, e.Record)
		}
		for _, x := range t.lookups {
			x.insert(e.ID, e.Record)
		}
	}
}

// Apply runs engine over the table's entries.
func (t *Table) Apply(engine *filter.Engine) (filter.Result, error) {
	return engine.Filter(t.entries)
}

// Filter parses exprs and applies them under scope.
func (t *Table) Filter(scope filter.Scope, exprs []string, opts ...filter.Option) (filter.Result, error) {
	engine := filter.NewEngine(scope)
	for _, s := range exprs {
		if err := engine.AddString(s, opts...); err != nil {
			return filter.Result{}, err
		}
	}
	return t.Apply(engine)
}
