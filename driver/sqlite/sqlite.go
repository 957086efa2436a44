// driver/sqlite/sqlite.go
package sqlite

import (
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"

	"github.com/chmenegatti/typeprefs/driver/sqlstore"
	"github.com/chmenegatti/typeprefs/pkg/backends"
	"github.com/chmenegatti/typeprefs/pkg/backends/common"
)

// Name is the registry name of this backend.
const Name = "sqlite"

func init() {
	backends.Register(Name, func() common.Backend { return New() })
}

// New returns an unopened SQLite backend. The DSN is a file path or URI,
// e.g. "file:prefs.db?_journal=WAL&_busy_timeout=5000".
func New() *sqlstore.Backend {
	return sqlstore.New(Dialect{})
}

// Dialect implements sqlstore.Dialect for SQLite.
type Dialect struct{}

var (
	_ sqlstore.Dialect           = Dialect{}
	_ sqlstore.SingleConnDialect = Dialect{}
)

func (Dialect) Name() string       { return Name }
func (Dialect) DriverName() string { return "sqlite3" }

func (Dialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (Dialect) BindVar(i int) string { return "?" }

// SingleConnection keeps ":memory:" databases alive and avoids SQLITE_BUSY
// between pooled connections.
func (Dialect) SingleConnection() bool { return true }

func (d Dialect) CreateTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s TEXT NOT NULL PRIMARY KEY, %s INTEGER NOT NULL)",
		d.Quote(table), sqlstore.KeyColumn, sqlstore.ValueColumn)
}

func (d Dialect) UpsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT(%s) DO UPDATE SET %s = excluded.%s",
		d.Quote(table), sqlstore.KeyColumn, sqlstore.ValueColumn,
		sqlstore.KeyColumn, sqlstore.ValueColumn, sqlstore.ValueColumn)
}
