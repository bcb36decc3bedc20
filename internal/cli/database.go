package cli

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/pebble/internal/jsonl"
	"github.com/mesh-intelligence/pebble/internal/sqlite"
	"github.com/mesh-intelligence/pebble/pkg/database"
	"github.com/mesh-intelligence/pebble/pkg/filter"
	"github.com/mesh-intelligence/pebble/pkg/table"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// databaseName labels log lines; a data directory holds one database.
const databaseName = "pebble"

// openStore opens the configured backend in the data directory.
func (a *app) openStore(ctx context.Context) (database.Store, error) {
	switch a.cfg.Backend {
	case types.BackendSQLite:
		return sqlite.Open(ctx, a.cfg.DataDir)
	case types.BackendJSONL:
		return jsonl.Open(a.cfg.DataDir)
	}
	return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, a.cfg.Backend)
}

// openDatabase loads every table of the data directory. The caller must
// Close the database.
func (a *app) openDatabase(ctx context.Context) (*database.Database, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, sysErr(fmt.Errorf("open %s store: %w", a.cfg.Backend, err))
	}
	db, err := database.Open(ctx, databaseName, store,
		database.WithLogger(a.logger),
		database.WithDefaultLimits(a.cfg.MaxEntries, a.cfg.MaxBytes),
	)
	if err != nil {
		store.Close()
		return nil, sysErr(fmt.Errorf("open database: %w", err))
	}
	return db, nil
}

// withDatabase opens the database, runs fn, commits when commit is set and
// closes the database on every path.
func (a *app) withDatabase(ctx context.Context, commit bool, fn func(*database.Database) error) (err error) {
	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = sysErr(fmt.Errorf("close database: %w", cerr))
		}
	}()
	if err := fn(db); err != nil {
		return err
	}
	if commit {
		if err := db.Commit(ctx); err != nil {
			return sysErr(fmt.Errorf("commit: %w", err))
		}
	}
	return nil
}

// withTable is withDatabase for commands that work on one table.
func (a *app) withTable(ctx context.Context, name string, commit bool, fn func(*table.Table) error) error {
	return a.withDatabase(ctx, commit, func(db *database.Database) error {
		t, err := db.Table(name)
		if err != nil {
			return err
		}
		return fn(t)
	})
}

// filterOptions returns the parse options for filters and queries.
func (a *app) filterOptions(caseSensitive bool) []filter.Option {
	if caseSensitive || a.cfg.CaseSensitive {
		return []filter.Option{filter.WithCaseSensitive()}
	}
	return nil
}
