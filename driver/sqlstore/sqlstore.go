// driver/sqlstore/sqlstore.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chmenegatti/typeprefs/pkg/backends/common"
	"github.com/chmenegatti/typeprefs/pkg/config"
)

// Column names of the preferences table. "key" and "value" are reserved
// words in several engines, hence the prefix.
const (
	KeyColumn   = "pref_key"
	ValueColumn = "pref_value"
)

// Dialect captures what differs between SQL engines.
type Dialect interface {
	// Name returns the backend name used in the registry (e.g. "postgres").
	Name() string

	// DriverName returns the database/sql driver name passed to sql.Open.
	DriverName() string

	// Quote wraps an identifier in the engine's quoting characters.
	Quote(identifier string) string

	// BindVar returns the placeholder for the i-th parameter (1-based).
	BindVar(i int) string

	// CreateTableSQL creates the preferences table if it does not exist.
	CreateTableSQL(table string) string

	// UpsertSQL inserts or replaces one row. Parameters: key, value.
	UpsertSQL(table string) string
}

// SingleConnDialect is implemented by dialects whose database must be used
// through one connection (e.g. SQLite).
type SingleConnDialect interface {
	SingleConnection() bool
}

// SelectSQL returns the statement reading the value of one key.
func SelectSQL(d Dialect, table string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		ValueColumn, d.Quote(table), KeyColumn, d.BindVar(1))
}

// DeleteSQL returns the statement removing one key.
func DeleteSQL(d Dialect, table string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", d.Quote(table), KeyColumn, d.BindVar(1))
}

// KeysSQL returns the statement listing every key in ascending order.
func KeysSQL(d Dialect, table string) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s ASC", KeyColumn, d.Quote(table), KeyColumn)
}

var _ common.Backend = (*Backend)(nil)

// Backend is a common.Backend over database/sql.
type Backend struct {
	dialect Dialect

	mu    sync.RWMutex
	db    *sql.DB
	table string
}

// New returns an unopened backend for dialect d.
func New(d Dialect) *Backend {
	return &Backend{dialect: d}
}

// NewWithDB wraps an already opened *sql.DB and ensures the table exists.
func NewWithDB(ctx context.Context, d Dialect, db *sql.DB, table string) (*Backend, error) {
	b := New(d)
	if err := b.attach(ctx, db, table); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) Name() string { return b.dialect.Name() }

// Dialect returns the dialect the backend was built with.
func (b *Backend) Dialect() Dialect { return b.dialect }

// Open implements common.Backend.
func (b *Backend) Open(cfg config.StoreConfig) error {
	name := b.dialect.Name()
	if cfg.DSN == "" {
		return fmt.Errorf("%s: DSN is required", name)
	}
	b.mu.RLock()
	opened := b.db != nil
	b.mu.RUnlock()
	if opened {
		return fmt.Errorf("%s: %w", name, common.ErrAlreadyOpen)
	}

	db, err := sql.Open(b.dialect.DriverName(), cfg.DSN)
	if err != nil {
		return fmt.Errorf("%s: failed to open connection using driver '%s': %w", name, b.dialect.DriverName(), err)
	}
	applyPool(db, b.dialect, cfg.Pool)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%s: failed to verify connection: %w", name, err)
	}
	if err := b.attach(ctx, db, cfg.Table); err != nil {
		db.Close()
		return err
	}
	zap.L().Info("sql backend opened", zap.String("backend", name), zap.String("table", b.table))
	return nil
}

func applyPool(db *sql.DB, d Dialect, pool config.PoolConfig) {
	if sc, ok := d.(SingleConnDialect); ok && sc.SingleConnection() {
		db.SetMaxOpenConns(1)
		return
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
}

func (b *Backend) attach(ctx context.Context, db *sql.DB, table string) error {
	if table == "" {
		return fmt.Errorf("%s: table name is required", b.dialect.Name())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		return fmt.Errorf("%s: %w", b.dialect.Name(), common.ErrAlreadyOpen)
	}
	if _, err := db.ExecContext(ctx, b.dialect.CreateTableSQL(table)); err != nil {
		return fmt.Errorf("%s: failed to create table '%s': %w", b.dialect.Name(), table, err)
	}
	b.db = db
	b.table = table
	return nil
}

// conn returns the open pool or ErrNotOpen.
func (b *Backend) conn() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, fmt.Errorf("%s: %w", b.dialect.Name(), common.ErrNotOpen)
	}
	return b.db, nil
}

// Close implements common.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return fmt.Errorf("%s: %w", b.dialect.Name(), common.ErrNotOpen)
	}
	err := b.db.Close()
	b.db = nil
	if err != nil {
		return fmt.Errorf("%s: close: %w", b.dialect.Name(), err)
	}
	return nil
}

// Ping implements common.Backend.
func (b *Backend) Ping(ctx context.Context) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: ping: %w", b.dialect.Name(), err)
	}
	return nil
}

// GetInt implements common.Backend.
func (b *Backend) GetInt(ctx context.Context, key string) (int, bool, error) {
	db, err := b.conn()
	if err != nil {
		return 0, false, err
	}
	var value int64
	err = db.QueryRowContext(ctx, SelectSQL(b.dialect, b.table), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: get '%s': %w", b.dialect.Name(), key, err)
	}
	return int(value), true, nil
}

// PutInt implements common.Backend.
func (b *Backend) PutInt(ctx context.Context, key string, value int) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, b.dialect.UpsertSQL(b.table), key, int64(value)); err != nil {
		return fmt.Errorf("%s: put '%s': %w", b.dialect.Name(), key, err)
	}
	return nil
}

// Delete implements common.Backend.
func (b *Backend) Delete(ctx context.Context, key string) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, DeleteSQL(b.dialect, b.table), key); err != nil {
		return fmt.Errorf("%s: delete '%s': %w", b.dialect.Name(), key, err)
	}
	return nil
}

// Keys implements common.Backend.
func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, KeysSQL(b.dialect, b.table))
	if err != nil {
		return nil, fmt.Errorf("%s: list keys: %w", b.dialect.Name(), err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%s: scan key: %w", b.dialect.Name(), err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate keys: %w", b.dialect.Name(), err)
	}
	return keys, nil
}
