package cli

import (
	"fmt"
	"io"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	jsoniter "github.com/json-iterator/go"

	"github.com/mesh-intelligence/pebble/internal/codec"
	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/schema"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// entryRow is one entry to print, with the definition used to encode it.
type entryRow struct {
	table string
	def   *schema.Definition
	entry record.Entry
}

// entryJSON is the --json form of an entry.
type entryJSON struct {
	Table  string              `json:"table,omitempty"`
	ID     string              `json:"id"`
	Record jsoniter.RawMessage `json:"record"`
}

// printEntries writes rows as a JSON array or as a table whose columns are
// the union of the record keys in order of first appearance.
func (a *app) printEntries(w io.Writer, rows []entryRow, withTable bool) error {
	if a.flags.jsonMode {
		out := make([]entryJSON, 0, len(rows))
		for _, r := range rows {
			rec, err := codec.EncodeRecord(r.def, r.entry.Record)
			if err != nil {
				return err
			}
			ej := entryJSON{ID: r.entry.ID, Record: rec}
			if withTable {
				ej.Table = r.table
			}
			out = append(out, ej)
		}
		return writeJSON(w, out)
	}

	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 entries)")
		return nil
	}

	var keys []string
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, k := range r.entry.Record.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}

	t := prettytable.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(prettytable.StyleLight)

	header := prettytable.Row{}
	if withTable {
		header = append(header, "table")
	}
	header = append(header, "id")
	for _, k := range keys {
		header = append(header, k)
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := prettytable.Row{}
		if withTable {
			row = append(row, r.table)
		}
		row = append(row, r.entry.ID)
		for _, k := range keys {
			v, ok := r.entry.Record.Get(k)
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, cell(r.def, k, v))
		}
		t.AppendRow(row)
	}
	t.Render()
	return nil
}

// cell renders one value the way the codec stores it.
func cell(def *schema.Definition, key string, v any) string {
	if v == nil {
		return "null"
	}
	var ft schema.FieldType
	if f, ok := def.Field(key); ok {
		ft = f.Type
	}
	enc := codec.EncodeValue(ft, v)
	if s, ok := enc.(string); ok {
		return s
	}
	b, err := json.Marshal(enc)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// printRecord writes one record as a JSON object.
func printRecord(w io.Writer, def *schema.Definition, r record.Record) error {
	b, err := codec.EncodeRecord(def, r)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// printResult writes a confirmation: the message in text mode, the fields
// as a JSON object in --json mode.
func (a *app) printResult(w io.Writer, fields map[string]any, format string, args ...any) error {
	if a.flags.jsonMode {
		return writeJSON(w, fields)
	}
	_, err := fmt.Fprintf(w, format+"\n", args...)
	return err
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
