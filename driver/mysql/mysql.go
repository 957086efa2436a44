// driver/mysql/mysql.go
package mysql

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"

	"github.com/chmenegatti/typeprefs/driver/sqlstore"
	"github.com/chmenegatti/typeprefs/pkg/backends"
	"github.com/chmenegatti/typeprefs/pkg/backends/common"
)

// Name is the registry name of this backend.
const Name = "mysql"

func init() {
	backends.Register(Name, func() common.Backend { return New() })
}

// New returns an unopened MySQL/MariaDB backend. The DSN uses the
// go-sql-driver format, e.g. "user:pass@tcp(host:3306)/db".
func New() *sqlstore.Backend {
	return sqlstore.New(Dialect{})
}

// Dialect implements sqlstore.Dialect for MySQL and MariaDB.
type Dialect struct{}

var _ sqlstore.Dialect = Dialect{}

func (Dialect) Name() string       { return Name }
func (Dialect) DriverName() string { return "mysql" }

func (Dialect) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func (Dialect) BindVar(i int) string { return "?" }

func (d Dialect) CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s VARCHAR(255) NOT NULL PRIMARY KEY,
    %s BIGINT NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
		d.Quote(table), sqlstore.KeyColumn, sqlstore.ValueColumn)
}

func (d Dialect) UpsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?) ON DUPLICATE KEY UPDATE %s = VALUES(%s)",
		d.Quote(table), sqlstore.KeyColumn, sqlstore.ValueColumn, sqlstore.ValueColumn, sqlstore.ValueColumn)
}
