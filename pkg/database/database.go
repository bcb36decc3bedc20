// Package database provides Database, an explicit registry of named tables
// that loads from and commits to a Store and runs queries across its
// tables.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mesh-intelligence/pebble/pkg/filter"
	"github.com/mesh-intelligence/pebble/pkg/query"
	"github.com/mesh-intelligence/pebble/pkg/schema"
	"github.com/mesh-intelligence/pebble/pkg/table"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

// Store persists table snapshots. Save replaces the whole snapshot of a
// table; nothing stronger than "last save wins" is assumed.
type Store interface {
	Load(ctx context.Context, name string) (table.Snapshot, error)
	Save(ctx context.Context, name string, snap table.Snapshot) error
	Tables(ctx context.Context) ([]string, error)
	Drop(ctx context.Context, name string) error
	Close() error
}

// ErrNoStore is returned by Commit on a database created without a Store.
var ErrNoStore = errors.New("database has no store")

// Default query cache settings.
const (
	DefaultCacheSize = 128
	DefaultCacheTTL  = 10 * time.Minute
)

// Database is a registry of tables. The registry itself is safe for
// concurrent use; an individual Table is not, see package table.
type Database struct {
	mu     sync.RWMutex
	name   string
	tables map[string]*table.Table
	order  []string
	closed bool

	store      Store
	logger     *slog.Logger
	cacheSize  int
	cacheTTL   time.Duration
	cache      *expirable.LRU[string, *query.Expression]
	maxEntries int
	maxBytes   int
}

// Option configures a Database.
type Option func(*Database)

// WithStore sets the Store used by Commit and DropTable.
func WithStore(s Store) Option {
	return func(d *Database) { d.store = s }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(d *Database) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithCacheSize bounds the number of parsed queries kept. Zero means
// unbounded.
func WithCacheSize(n int) Option {
	return func(d *Database) { d.cacheSize = n }
}

// WithCacheTTL sets how long a parsed query stays cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(d *Database) { d.cacheTTL = ttl }
}

// WithDefaultLimits sets the size limits given to tables created by
// CreateTable whose definition configures none. Zero leaves a limit unset.
func WithDefaultLimits(maxEntries, maxBytes int) Option {
	return func(d *Database) {
		d.maxEntries = maxEntries
		d.maxBytes = maxBytes
	}
}

// New returns an empty database.
func New(name string, opts ...Option) *Database {
	d := &Database{
		name:      name,
		tables:    make(map[string]*table.Table),
		logger:    slog.New(slog.DiscardHandler),
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cache = expirable.NewLRU[string, *query.Expression](d.cacheSize, nil, d.cacheTTL)
	return d
}

// Open returns a database holding every table store lists.
func Open(ctx context.Context, name string, store Store, opts ...Option) (*Database, error) {
	d := New(name, append(opts, WithStore(store))...)
	names, err := store.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	for _, n := range names {
		snap, err := store.Load(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("loading table %s: %w", n, err)
		}
		if snap.Name == "" {
			snap.Name = n
		}
		t, err := table.FromSnapshot(snap)
		if err != nil {
			return nil, fmt.Errorf("loading table %s: %w", n, err)
		}
		d.tables[n] = t
		d.order = append(d.order, n)
		d.logger.Debug("table loaded", "database", name, "table", n, "entries", t.Len())
	}
	d.logger.Info("database opened", "database", name, "tables", len(names))
	return d, nil
}

// Name returns the database name.
func (d *Database) Name() string { return d.name }

// CreateTable registers a new empty table.
// Returns ErrTableExists if the name is taken, ErrInvalidName if it is not a
// valid table name, ErrClosed after Close.
func (d *Database) CreateTable(name string, def *schema.Definition, opts ...table.Option) (*table.Table, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, types.ErrClosed
	}
	if _, ok := d.tables[name]; ok {
		return nil, fmt.Errorf("%w: %q", types.ErrTableExists, name)
	}
	if def == nil {
		def = schema.MustDefinition()
	}
	def = def.Clone()
	if _, set := def.Constraint(schema.ConstraintMaxEntries); !set && d.maxEntries > 0 {
		if err := def.Configure("constraints."+schema.ConstraintMaxEntries, d.maxEntries); err != nil {
			return nil, err
		}
	}
	if _, set := def.Constraint(schema.ConstraintMaxBytes); !set && d.maxBytes > 0 {
		if err := def.Configure("constraints."+schema.ConstraintMaxBytes, d.maxBytes); err != nil {
			return nil, err
		}
	}
	t, err := table.New(name, def, opts...)
	if err != nil {
		return nil, err
	}
	t.MarkDirty()
	d.tables[name] = t
	d.order = append(d.order, name)
	d.logger.Debug("table created", "database", d.name, "table", name)
	return t, nil
}

// Table returns the table registered as name.
// Returns a *types.TableError wrapping ErrUnknownTable if there is none.
func (d *Database) Table(name string) (*table.Table, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, types.ErrClosed
	}
	t, ok := d.tables[name]
	if !ok {
		return nil, &types.TableError{Table: name, Err: types.ErrUnknownTable}
	}
	return t, nil
}

// TableNames returns the registered table names in registration order.
func (d *Database) TableNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.order)
}

// DropTable unregisters a table and removes it from the store, if any.
func (d *Database) DropTable(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return types.ErrClosed
	}
	if _, ok := d.tables[name]; !ok {
		return &types.TableError{Table: name, Err: types.ErrUnknownTable}
	}
	if d.store != nil {
		if err := d.store.Drop(ctx, name); err != nil {
			return fmt.Errorf("dropping table %s: %w", name, err)
		}
	}
	delete(d.tables, name)
	d.order = slices.DeleteFunc(d.order, func(n string) bool { return n == name })
	d.logger.Info("table dropped", "database", d.name, "table", name)
	return nil
}

// Query runs a query string over every registered table. Parsed queries
// are cached by text and flags.
func (d *Database) Query(s string, opts ...filter.Option) (query.Result, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return query.Result{}, types.ErrClosed
	}
	x, err := d.parse(s, opts...)
	if err != nil {
		return query.Result{}, err
	}
	engine := query.NewEngine()
	for _, name := range d.order {
		engine.Register(name, d.tables[name].Entries())
	}
	engine.SetExpression(x)
	return engine.Query()
}

func (d *Database) parse(s string, opts ...filter.Option) (*query.Expression, error) {
	key := fmt.Sprintf("%d\x00%s", filter.FlagsOf(opts...), s)
	if x, ok := d.cache.Get(key); ok {
		return x, nil
	}
	x, err := query.Parse(s, opts...)
	if err != nil {
		return nil, err
	}
	d.cache.Add(key, x)
	return x, nil
}

// Commit saves every table changed since the last commit. A table whose
// save fails stays dirty and the first error is returned after the others
// were attempted.
// Returns ErrNoStore if the database has no store.
func (d *Database) Commit(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return types.ErrClosed
	}
	if d.store == nil {
		return ErrNoStore
	}
	var (
		firstErr error
		saved    int
	)
	for _, name := range d.order {
		t := d.tables[name]
		if !t.Dirty() {
			continue
		}
		if err := d.store.Save(ctx, name, t.Snapshot()); err != nil {
			d.logger.Error("table save failed", "database", d.name, "table", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("saving table %s: %w", name, err)
			}
			continue
		}
		t.MarkClean()
		saved++
	}
	d.logger.Info("database committed", "database", d.name, "tables_saved", saved)
	return firstErr
}

// Close releases the store. Uncommitted changes are lost. Close is
// idempotent.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.cache.Purge()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
