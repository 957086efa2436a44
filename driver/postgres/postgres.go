// driver/postgres/postgres.go
package postgres

import (
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"

	"github.com/chmenegatti/typeprefs/driver/sqlstore"
	"github.com/chmenegatti/typeprefs/pkg/backends"
	"github.com/chmenegatti/typeprefs/pkg/backends/common"
)

// Name is the registry name of this backend.
const Name = "postgres"

func init() {
	backends.Register(Name, func() common.Backend { return New() })
}

// New returns an unopened PostgreSQL backend. The DSN is a pgx connection
// string, e.g. "postgres://user:pw@host:5432/db?sslmode=disable".
func New() *sqlstore.Backend {
	return sqlstore.New(Dialect{})
}

// Dialect implements sqlstore.Dialect for PostgreSQL.
type Dialect struct{}

var _ sqlstore.Dialect = Dialect{}

func (Dialect) Name() string       { return Name }
func (Dialect) DriverName() string { return "pgx" }

func (Dialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (Dialect) BindVar(i int) string { return fmt.Sprintf("$%d", i) }

func (d Dialect) CreateTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s VARCHAR(255) NOT NULL PRIMARY KEY, %s BIGINT NOT NULL)",
		d.Quote(table), sqlstore.KeyColumn, sqlstore.ValueColumn)
}

func (d Dialect) UpsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s",
		d.Quote(table), sqlstore.KeyColumn, sqlstore.ValueColumn,
		sqlstore.KeyColumn, sqlstore.ValueColumn, sqlstore.ValueColumn)
}
