// Package sqlite implements a database store backed by a single SQLite
// file, <dir>/pebble.db. Each table is one row in "tables" holding its
// encoded definition plus one row per entry in "entries". Saves replace a
// table's rows inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/pebble/internal/codec"
	"github.com/mesh-intelligence/pebble/pkg/record"
	"github.com/mesh-intelligence/pebble/pkg/table"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

//go:embed schema.sql
var schemaDDL string

// FileName is the database file created in the data directory.
const FileName = "pebble.db"

const (
	dialectSQLite = "sqlite3"

	tablesTable  = "tables"
	entriesTable = "entries"

	colName       = "name"
	colDefinition = "definition"
	colTableName  = "table_name"
	colPosition   = "position"
	colID         = "id"
	colRecord     = "record"
)

// insertBatch bounds the rows per INSERT so statements stay under SQLite's
// host parameter limit.
const insertBatch = 200

// Store keeps tables in one SQLite database.
type Store struct {
	db      *sql.DB
	path    string
	builder goqu.DialectWrapper
}

// Open opens or creates <dir>/pebble.db and applies the schema.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes them anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db, path: path, builder: goqu.Dialect(dialectSQLite)}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Load reads a table's definition and entries in insertion order. A table
// with no row in "tables" is a *types.TableError wrapping ErrUnknownTable.
func (s *Store) Load(ctx context.Context, name string) (table.Snapshot, error) {
	query, args, err := s.builder.From(tablesTable).
		Select(colDefinition).
		Where(goqu.C(colName).Eq(name)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return table.Snapshot{}, fmt.Errorf("building query: %w", err)
	}
	var rawDef string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&rawDef)
	if errors.Is(err, sql.ErrNoRows) {
		return table.Snapshot{}, &types.TableError{Table: name, Err: types.ErrUnknownTable}
	}
	if err != nil {
		return table.Snapshot{}, fmt.Errorf("reading table %s: %w", name, err)
	}
	def, err := codec.DecodeDefinition([]byte(rawDef))
	if err != nil {
		return table.Snapshot{}, fmt.Errorf("table %s: %w", name, err)
	}

	query, args, err = s.builder.From(entriesTable).
		Select(colID, colRecord).
		Where(goqu.C(colTableName).Eq(name)).
		Order(goqu.I(colPosition).Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return table.Snapshot{}, fmt.Errorf("building query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return table.Snapshot{}, fmt.Errorf("reading entries of %s: %w", name, err)
	}
	defer rows.Close()

	snap := table.Snapshot{Name: name, Definition: def}
	for rows.Next() {
		var id, rawRecord string
		if err := rows.Scan(&id, &rawRecord); err != nil {
			return table.Snapshot{}, fmt.Errorf("scanning entry: %w", err)
		}
		r, err := codec.DecodeRecord(def, []byte(rawRecord))
		if err != nil {
			return table.Snapshot{}, fmt.Errorf("entry %s of %s: %w", id, name, err)
		}
		snap.Entries = append(snap.Entries, record.Entry{ID: id, Record: r})
	}
	if err := rows.Err(); err != nil {
		return table.Snapshot{}, fmt.Errorf("reading entries of %s: %w", name, err)
	}
	return snap, nil
}

// Save replaces the table's definition and entries in one transaction.
func (s *Store) Save(ctx context.Context, name string, snap table.Snapshot) error {
	def, err := codec.EncodeDefinition(snap.Definition)
	if err != nil {
		return fmt.Errorf("encoding definition: %w", err)
	}
	rows := make([]any, 0, len(snap.Entries))
	for i, e := range snap.Entries {
		rec, err := codec.EncodeRecord(snap.Definition, e.Record)
		if err != nil {
			return fmt.Errorf("encoding entry %s: %w", e.ID, err)
		}
		rows = append(rows, goqu.Record{
			colTableName: name,
			colPosition:  i,
			colID:        e.ID,
			colRecord:    string(rec),
		})
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.deleteTable(ctx, tx, name); err != nil {
			return err
		}
		if err := s.exec(ctx, tx, s.builder.Insert(tablesTable).
			Rows(goqu.Record{colName: name, colDefinition: string(def)}).
			Prepared(true)); err != nil {
			return fmt.Errorf("writing table %s: %w", name, err)
		}
		for start := 0; start < len(rows); start += insertBatch {
			end := min(start+insertBatch, len(rows))
			if err := s.exec(ctx, tx, s.builder.Insert(entriesTable).
				Rows(rows[start:end]...).
				Prepared(true)); err != nil {
				return fmt.Errorf("writing entries of %s: %w", name, err)
			}
		}
		return nil
	})
}

// Tables lists the stored table names, sorted.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	query, args, err := s.builder.From(tablesTable).
		Select(colName).
		Order(goqu.I(colName).Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Drop deletes the table and its entries. Dropping an unknown table is not
// an error.
func (s *Store) Drop(ctx context.Context, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.deleteTable(ctx, tx, name)
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) deleteTable(ctx context.Context, tx *sql.Tx, name string) error {
	if err := s.exec(ctx, tx, s.builder.Delete(entriesTable).
		Where(goqu.C(colTableName).Eq(name)).
		Prepared(true)); err != nil {
		return fmt.Errorf("deleting entries of %s: %w", name, err)
	}
	if err := s.exec(ctx, tx, s.builder.Delete(tablesTable).
		Where(goqu.C(colName).Eq(name)).
		Prepared(true)); err != nil {
		return fmt.Errorf("deleting table %s: %w", name, err)
	}
	return nil
}

// sqlBuilder is satisfied by goqu insert, update and delete datasets.
type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("building statement: %w", err)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
