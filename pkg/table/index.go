package table

import (
	"slices"

	"github.com/tidwall/btree"

	"github.com/mesh-intelligence/pebble/pkg/record"
)

// tupleKey returns the canonical key of r's values at fields. ok is false
// when any value is absent or nil; such tuples take no part in unique or
// index lookups.
func tupleKey(r record.Record, fields []string) (string, bool) {
	values := make([]any, len(fields))
	for i, f := range fields {
		v, ok := r.Get(f)
		if !ok || v == nil {
			return "", false
		}
		values[i] = v
	}
	return record.Key(values...), true
}

// uniqueIndex maps the value tuple of a unique set to the owning entry.
type uniqueIndex struct {
	fields []string
	ids    map[string]string
}

func newUniqueIndex(fields []string) *uniqueIndex {
	return &uniqueIndex{fields: fields, ids: make(map[string]string)}
}

// conflict returns the id already holding r's tuple.
func (u *uniqueIndex) conflict(r record.Record) (string, bool) {
	key, ok := tupleKey(r, u.fields)
	if !ok {
		return "", false
	}
	id, taken := u.ids[key]
	return id, taken
}

// insert records r under id. An existing holder of the tuple keeps it.
func (u *uniqueIndex) insert(id string, r record.Record) {
	if key, ok := tupleKey(r, u.fields); ok {
		if _, taken := u.ids[key]; !taken {
			u.ids[key] = id
		}
	}
}

func (u *uniqueIndex) remove(id string, r record.Record) {
	if key, ok := tupleKey(r, u.fields); ok && u.ids[key] == id {
		delete(u.ids, key)
	}
}

type indexItem struct {
	key string
	id  string
}

// lookupIndex is an ordered (key, id) index over one field set.
type lookupIndex struct {
	fields []string
	items  *btree.Generic[indexItem]
}

func newLookupIndex(fields []string) *lookupIndex {
	return &lookupIndex{
		fields: fields,
		items: btree.NewGenericOptions(func(a, b indexItem) bool {
			if a.key != b.key {
				return a.key < b.key
			}
			return a.id < b.id
		}, btree.Options{NoLocks: true}),
	}
}

func (x *lookupIndex) insert(id string, r record.Record) {
	if key, ok := tupleKey(r, x.fields); ok {
		x.items.Set(indexItem{key: key, id: id})
	}
}

func (x *lookupIndex) remove(id string, r record.Record) {
	if key, ok := tupleKey(r, x.fields); ok {
		x.items.Delete(indexItem{key: key, id: id})
	}
}

// ids returns the ids stored under key, in id order.
func (x *lookupIndex) ids(key string) []string {
	var out []string
	x.items.Ascend(indexItem{key: key}, func(it indexItem) bool {
		if it.key != key {
			return false
		}
		out = append(out, it.id)
		return true
	})
	return out
}

func sameFields(a, b []string) bool {
	return slices.Equal(a, b)
}
