package table

import (
	"fmt"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/schema"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// Snapshot is the persisted form of a table: its definition and entries in
// insertion order. Stores load and save whole snapshots.
type Snapshot struct {
	Name       string
	Definition *schema.Definition
	Entries    []record.Entry
}

// Snapshot returns the table's current state. The definition is a copy;
// records are immutable and shared.
func (t *Table) Snapshot() Snapshot {
	return Snapshot{
		Name:       t.name,
		Definition: t.def.Clone(),
		Entries:    t.Entries(),
	}
}

// FromSnapshot rebuilds a table from a snapshot. Stored records are trusted
// as they were validated when first added; indexes are rebuilt. The table
// starts clean. Returns ErrInvalidID if an identifier is empty or repeated.
func FromSnapshot(snap Snapshot, opts ...Option) (*Table, error) {
	t, err := New(snap.Name, snap.Definition, opts...)
	if err != nil {
		return nil, err
	}
	for _, e := range snap.Entries {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: empty identifier in snapshot of %q", types.ErrInvalidID, snap.Name)
		}
		if _, dup := t.pos[e.ID]; dup {
			return nil, fmt.Errorf("%w: identifier %q repeated in snapshot of %q", types.ErrInvalidID, e.ID, snap.Name)
		}
		t.insert(e)
	}
	return t, nil
}
