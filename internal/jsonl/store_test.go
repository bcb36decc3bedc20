package jsonl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pebble/pkg/database"
	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/schema"
	"github.com/mesh-intelligence/pebble/pkg/table"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

var _ database.Store = (*Store)(nil)

func usersTable(t *testing.T) *table.Table {
	t.Helper()
	def := schema.MustDefinition(
		schema.WithField(schema.FieldSpec{Name: "email", Type: schema.String, Required: true}),
		schema.WithField(schema.FieldSpec{Name: "joined", Type: schema.Date}),
		schema.WithUnique("email"),
	)
	tbl, err := table.New("users", def)
	require.NoError(t, err)
	_, err = tbl.Add("u1", map[string]any{"email": "a@example.com", "joined": record.NewDate(2024, time.May, 1)})
	require.NoError(t, err)
	_, err = tbl.Add("u2", map[string]any{"email": "b@example.com"})
	require.NoError(t, err)
	return tbl
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	tbl := usersTable(t)
	require.NoError(t, s.Save(ctx, "users", tbl.Snapshot()))

	data, err := os.ReadFile(filepath.Join(s.Dir(), "users.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"name":"users"`)
	assert.Contains(t, lines[1], `"joined":"2024-05-01"`)

	snap, err := s.Load(ctx, "users")
	require.NoError(t, err)
	loaded, err := table.FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, loaded.IDs())

	r, err := loaded.Get("u1")
	require.NoError(t, err)
	joined, _ := r.Get("joined")
	assert.True(t, record.Equal(record.NewDate(2024, time.May, 1), joined))

	_, err = loaded.Add("", map[string]any{"email": "a@example.com"})
	assert.ErrorIs(t, err, types.ErrUniqueConstraintViolation, "indexes are rebuilt on load")
}

func TestSaveReplacesFile(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	tbl := usersTable(t)
	require.NoError(t, s.Save(ctx, "users", tbl.Snapshot()))
	require.NoError(t, tbl.Remove("u1"))
	require.NoError(t, s.Save(ctx, "users", tbl.Snapshot()))

	snap, err := s.Load(ctx, "users")
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "u2", snap.Entries[0].ID)

	leftovers, err := filepath.Glob(filepath.Join(s.Dir(), ".jsonl-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	content := strings.Join([]string{
		`{"name":"notes","definition":{"fields":[]}}`,
		`{"id":"n1","record":{"text":"first"}}`,
		`{"id":"n2","record":`,
		``,
		`{"record":{"text":"no id"}}`,
		`{"id":"n1","record":{"text":"repeated"}}`,
		`{"id":"n3","record":{"text":"third"}}`,
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.jsonl"), []byte(content), 0o644))

	snap, err := s.Load(ctx, "notes")
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "n1", snap.Entries[0].ID)
	text, _ := snap.Entries[0].Record.Get("text")
	assert.Equal(t, "first", text)
	assert.Equal(t, "n3", snap.Entries[1].ID)
}

func TestLoadMissingTable(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, types.ErrUnknownTable)
}

func TestTablesAndDrop(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"orders", "users"} {
		tbl, err := table.New(name, nil)
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, name, tbl.Snapshot()))
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "README.txt"), []byte("x"), 0o644))

	names, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, names)

	require.NoError(t, s.Drop(ctx, "orders"))
	require.NoError(t, s.Drop(ctx, "orders"))
	names, err = s.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, names)
}

func TestCanceledContext(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Tables(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Save(ctx, "users", usersTable(t).Snapshot()), context.Canceled)
}

func TestDatabaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	db := database.New("app", database.WithStore(s))
	users, err := db.CreateTable("users", nil)
	require.NoError(t, err)
	_, err = users.Add("u1", map[string]any{"name": "Alice", "age": 30})
	require.NoError(t, err)
	require.NoError(t, db.Commit(ctx))
	require.NoError(t, db.Close())

	reopened, err := database.Open(ctx, "app", s)
	require.NoError(t, err)
	res, err := reopened.Query("users.age >= 18")
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "u1", res.Matches[0].Entry.ID)
}

func TestEmptyTableIsPersisted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	db := database.New("app", database.WithStore(s))
	_, err = db.CreateTable("users", nil)
	require.NoError(t, err)
	require.NoError(t, db.Commit(ctx))
	require.NoError(t, db.Close())
	assert.FileExists(t, filepath.Join(dir, "users.jsonl"))

	s, err = Open(dir)
	require.NoError(t, err)
	reopened, err := database.Open(ctx, "app", s)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, reopened.TableNames())
}
