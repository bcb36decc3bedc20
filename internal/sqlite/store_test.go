package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pebble/pkg/database"
	"github.com/mesh-intelligence/pebble/pkg/schema"
	"github.com/mesh-intelligence/pebble/pkg/table"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

var _ database.Store = (*Store)(nil)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ordersTable(t *testing.T, n int) *table.Table {
	t.Helper()
	def := schema.MustDefinition(
		schema.WithField(schema.FieldSpec{Name: "ref", Type: schema.UUID, Required: true}),
		schema.WithField(schema.FieldSpec{Name: "total", Type: schema.Decimal}),
		schema.WithUnique("ref"),
		schema.WithConstraint(schema.ConstraintMaxEntries, 1000),
	)
	tbl, err := table.New("orders", def)
	require.NoError(t, err)
	for i := range n {
		_, err := tbl.Add(fmt.Sprintf("o%03d", i), map[string]any{
			"ref":   uuid.New(),
			"total": decimal.NewFromInt(int64(i)).Div(decimal.NewFromInt(4)),
		})
		require.NoError(t, err)
	}
	return tbl
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s, err := Open(context.Background(), dir)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, filepath.Join(dir, FileName), s.Path())
	assert.FileExists(t, s.Path())
}

func TestSaveAndLoadKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	// More rows than one insert batch.
	tbl := ordersTable(t, insertBatch+25)
	require.NoError(t, s.Save(ctx, "orders", tbl.Snapshot()))

	snap, err := s.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", snap.Name)
	assert.Equal(t, 1000, snap.Definition.MaxEntries())

	loaded, err := table.FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, tbl.IDs(), loaded.IDs())

	want, err := tbl.Get("o007")
	require.NoError(t, err)
	got, err := loaded.Get("o007")
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	total, _ := got.Get("total")
	assert.IsType(t, decimal.Decimal{}, total)
	ref, _ := got.Get("ref")
	assert.IsType(t, uuid.UUID{}, ref)
}

func TestSaveReplacesRows(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	tbl := ordersTable(t, 3)
	require.NoError(t, s.Save(ctx, "orders", tbl.Snapshot()))
	require.NoError(t, tbl.Remove("o001"))
	require.NoError(t, tbl.Configure("constraints.max_entries", 10))
	require.NoError(t, s.Save(ctx, "orders", tbl.Snapshot()))

	snap, err := s.Load(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "o000", snap.Entries[0].ID)
	assert.Equal(t, "o002", snap.Entries[1].ID)
	assert.Equal(t, 10, snap.Definition.MaxEntries())
}

func TestLoadUnknownTable(t *testing.T) {
	s := openStore(t)
	_, err := s.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, types.ErrUnknownTable)
}

func TestTablesAndDrop(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for _, name := range []string{"users", "orders"} {
		tbl, err := table.New(name, nil)
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, name, tbl.Snapshot()))
	}
	names, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, names)

	require.NoError(t, s.Drop(ctx, "orders"))
	require.NoError(t, s.Drop(ctx, "orders"))
	names, err = s.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, names)
}

func TestReopenSeesCommittedData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, dir)
	require.NoError(t, err)
	db := database.New("app", database.WithStore(s))
	users, err := db.CreateTable("users", nil)
	require.NoError(t, err)
	_, err = users.Add("u1", map[string]any{"name": "Alice", "tags": []any{"admin"}})
	require.NoError(t, err)
	require.NoError(t, db.Commit(ctx))
	require.NoError(t, db.Close())

	s, err = Open(ctx, dir)
	require.NoError(t, err)
	reopened, err := database.Open(ctx, "app", s)
	require.NoError(t, err)
	defer reopened.Close()

	res, err := reopened.Query("users.name == 'alice'")
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	tags, _ := res.Matches[0].Entry.Record.Get("tags")
	assert.Equal(t, []any{"admin"}, tags)
}
