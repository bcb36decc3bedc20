// Package jsonl implements a database store that keeps one JSON Lines file
// per table. The first line of <dir>/<table>.jsonl is a header carrying the
// table name and definition; every following line is one entry. Saves
// replace the whole file atomically.
package jsonl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/mesh-intelligence/pebble/internal/codec"
	"github.com/mesh-intelligence/pebble/pkg/table"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ext is the extension of table files.
const Ext = ".jsonl"

// header is the first line of a table file.
type header struct {
	Name       string              `json:"name"`
	Definition jsoniter.RawMessage `json:"definition"`
}

// Store keeps tables as JSONL files in one directory.
type Store struct {
	dir string
}

// Open returns a store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+Ext)
}

// Load reads a table file. Entry lines that are not valid JSON or do not
// decode are skipped. A missing file is a *types.TableError wrapping
// ErrUnknownTable.
func (s *Store) Load(ctx context.Context, name string) (table.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return table.Snapshot{}, err
	}
	lines, err := readJSONL(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return table.Snapshot{}, &types.TableError{Table: name, Err: types.ErrUnknownTable}
	}
	if err != nil {
		return table.Snapshot{}, err
	}
	if len(lines) == 0 {
		return table.Snapshot{}, fmt.Errorf("table %s: missing header", name)
	}
	var h header
	if err := json.Unmarshal(lines[0], &h); err != nil {
		return table.Snapshot{}, fmt.Errorf("table %s: reading header: %w", name, err)
	}
	def, err := codec.DecodeDefinition(h.Definition)
	if err != nil {
		return table.Snapshot{}, fmt.Errorf("table %s: %w", name, err)
	}
	snap := table.Snapshot{Name: h.Name, Definition: def}
	if snap.Name == "" {
		snap.Name = name
	}
	seen := make(map[string]bool, len(lines)-1)
	for _, line := range lines[1:] {
		e, err := codec.DecodeEntry(def, line)
		if err != nil || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		snap.Entries = append(snap.Entries, e)
	}
	return snap, nil
}

// Save replaces the table file with snap.
func (s *Store) Save(ctx context.Context, name string, snap table.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	def, err := codec.EncodeDefinition(snap.Definition)
	if err != nil {
		return fmt.Errorf("encoding definition: %w", err)
	}
	head, err := json.Marshal(header{Name: name, Definition: def})
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	lines := make([][]byte, 0, len(snap.Entries)+1)
	lines = append(lines, head)
	for _, e := range snap.Entries {
		line, err := codec.EncodeEntry(snap.Definition, e)
		if err != nil {
			return fmt.Errorf("encoding entry %s: %w", e.ID, err)
		}
		lines = append(lines, line)
	}
	return writeJSONL(s.path(name), lines)
}

// Tables lists the table files in the directory, sorted by name.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.dir, err)
	}
	var names []string
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), Ext) {
			continue
		}
		name := strings.TrimSuffix(d.Name(), Ext)
		if table.ValidName(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Drop removes the table file. Dropping a table that has no file is not an
// error.
func (s *Store) Drop(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing table %s: %w", name, err)
	}
	return nil
}

// Close is a no-op; files are closed after every operation.
func (s *Store) Close() error { return nil }

// readJSONL reads a JSONL file and returns each non-empty, valid line.
// Malformed lines are skipped.
func readJSONL(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return lines, nil
}

// writeJSONL atomically replaces path with lines using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, lines [][]byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(format string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf(format, err)
	}

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return fail("writing line: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
