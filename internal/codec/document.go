package codec

import (
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/schema"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// fieldJSON is one declared field on the wire.
type fieldJSON struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Default  any    `json:"default,omitempty"`
	Required bool   `json:"required,omitempty"`
	Choices  []any  `json:"choices,omitempty"`
}

// referenceJSON mirrors schema.Reference.
type referenceJSON struct {
	Table string `json:"table"`
	Field string `json:"field"`
}

// definitionJSON is a Definition on the wire.
type definitionJSON struct {
	Fields      []fieldJSON              `json:"fields"`
	Unique      [][]string               `json:"unique,omitempty"`
	Indexes     [][]string               `json:"indexes,omitempty"`
	References  map[string]referenceJSON `json:"references,omitempty"`
	PrimaryKey  []string                 `json:"primary_key,omitempty"`
	Constraints map[string]any           `json:"constraints,omitempty"`
}

// rawField is a declared field whose default and choices are still JSON.
type rawField struct {
	Name     string                `json:"name"`
	Type     schema.FieldType      `json:"type"`
	Default  jsoniter.RawMessage   `json:"default"`
	Required bool                  `json:"required"`
	Choices  []jsoniter.RawMessage `json:"choices"`
}

type rawDefinition struct {
	Fields      []rawField               `json:"fields"`
	Unique      [][]string               `json:"unique"`
	Indexes     [][]string               `json:"indexes"`
	References  map[string]referenceJSON `json:"references"`
	PrimaryKey  []string                 `json:"primary_key"`
	Constraints map[string]any           `json:"constraints"`
}

// EncodeDefinition returns the JSON form of def. Validators are dropped.
func EncodeDefinition(def *schema.Definition) ([]byte, error) {
	doc := definitionJSON{
		Fields:      []fieldJSON{},
		Unique:      def.Unique(),
		Indexes:     def.Indexes(),
		PrimaryKey:  def.PrimaryKey(),
		Constraints: def.Constraints(),
	}
	for _, f := range def.Fields() {
		fj := fieldJSON{
			Name:     f.Name,
			Type:     f.Type.String(),
			Default:  EncodeValue(f.Type, f.Default),
			Required: f.Required,
		}
		for _, c := range f.Choices {
			fj.Choices = append(fj.Choices, EncodeValue(f.Type, c))
		}
		doc.Fields = append(doc.Fields, fj)
	}
	if refs := def.References(); len(refs) > 0 {
		doc.References = make(map[string]referenceJSON, len(refs))
		for field, ref := range refs {
			doc.References[field] = referenceJSON{Table: ref.Table, Field: ref.Field}
		}
	}
	return json.Marshal(doc)
}

// DecodeDefinition parses the output of EncodeDefinition. Errors wrap
// ErrInvalidDefinition.
func DecodeDefinition(data []byte) (*schema.Definition, error) {
	var doc rawDefinition
	if err := numbers.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidDefinition, err)
	}
	var opts []schema.Option
	for _, rf := range doc.Fields {
		spec := schema.FieldSpec{Name: rf.Name, Type: rf.Type, Required: rf.Required}
		if len(rf.Default) > 0 {
			v, err := DecodeValue(rf.Type, rf.Default)
			if err != nil {
				return nil, fmt.Errorf("%w: default of %q: %w", types.ErrInvalidDefinition, rf.Name, err)
			}
			spec.Default = v
		}
		for _, raw := range rf.Choices {
			v, err := DecodeValue(rf.Type, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: choice of %q: %w", types.ErrInvalidDefinition, rf.Name, err)
			}
			spec.Choices = append(spec.Choices, v)
		}
		opts = append(opts, schema.WithField(spec))
	}
	for _, set := range doc.Unique {
		opts = append(opts, schema.WithUnique(set...))
	}
	for _, set := range doc.Indexes {
		opts = append(opts, schema.WithIndex(set...))
	}
	for field, ref := range doc.References {
		opts = append(opts, schema.WithReference(field, schema.Reference{Table: ref.Table, Field: ref.Field}))
	}
	if len(doc.PrimaryKey) > 0 {
		opts = append(opts, schema.WithPrimaryKey(doc.PrimaryKey...))
	}
	for _, k := range sortedKeys(doc.Constraints) {
		opts = append(opts, schema.WithConstraint(k, untyped(doc.Constraints[k])))
	}
	return schema.NewDefinition(opts...)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodeRecord returns the JSON object for r, keys in record order.
func EncodeRecord(def *schema.Definition, r record.Record) ([]byte, error) {
	keys := r.Keys()
	vals := make([]any, len(keys))
	for i, k := range keys {
		v, _ := r.Get(k)
		vals[i] = EncodeValue(fieldType(def, k), v)
	}
	return json.Marshal(record.FromPairs(keys, vals))
}

// DecodeRecord parses a JSON object into a Record, keeping key order and
// converting declared fields to their stored kinds.
func DecodeRecord(def *schema.Definition, data []byte) (record.Record, error) {
	keys, vals, err := decodeObject(def, data)
	if err != nil {
		return record.Record{}, err
	}
	return record.FromPairs(keys, vals), nil
}

// DecodePayload parses a JSON object given on the command line into a
// payload for Table.Add.
func DecodePayload(def *schema.Definition, data []byte) (map[string]any, error) {
	keys, vals, err := decodeObject(def, data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(keys))
	for i, k := range keys {
		out[k] = vals[i]
	}
	return out, nil
}

func decodeObject(def *schema.Definition, data []byte) ([]string, []any, error) {
	iter := numbers.BorrowIterator(data)
	defer numbers.ReturnIterator(iter)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return nil, nil, fmt.Errorf("decoding record: want a JSON object")
	}
	var (
		keys []string
		vals []any
		err  error
	)
	iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		raw := it.SkipAndReturnBytes()
		if it.Error != nil {
			return false
		}
		var v any
		v, err = DecodeValue(fieldType(def, key), raw)
		if err != nil {
			err = fmt.Errorf("decoding field %q: %w", key, err)
			return false
		}
		keys = append(keys, key)
		vals = append(vals, v)
		return true
	})
	if err != nil {
		return nil, nil, err
	}
	if iter.Error != nil {
		return nil, nil, fmt.Errorf("decoding record: %w", iter.Error)
	}
	return keys, vals, nil
}

func fieldType(def *schema.Definition, name string) schema.FieldType {
	if def == nil {
		return 0
	}
	f, ok := def.Field(name)
	if !ok {
		return 0
	}
	return f.Type
}

// entryJSON is one stored entry.
type entryJSON struct {
	ID     string              `json:"id"`
	Record jsoniter.RawMessage `json:"record"`
}

// EncodeEntry returns {"id": ..., "record": {...}}.
func EncodeEntry(def *schema.Definition, e record.Entry) ([]byte, error) {
	rec, err := EncodeRecord(def, e.Record)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{ID: e.ID, Record: rec})
}

// DecodeEntry parses the output of EncodeEntry.
func DecodeEntry(def *schema.Definition, data []byte) (record.Entry, error) {
	var ej entryJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return record.Entry{}, fmt.Errorf("decoding entry: %w", err)
	}
	if ej.ID == "" {
		return record.Entry{}, fmt.Errorf("decoding entry: %w", types.ErrInvalidID)
	}
	r, err := DecodeRecord(def, ej.Record)
	if err != nil {
		return record.Entry{}, fmt.Errorf("decoding entry %s: %w", ej.ID, err)
	}
	return record.Entry{ID: ej.ID, Record: r}, nil
}
