package sqlstore

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// dialect isolates everything that differs between the supported backends.
type dialect interface {
	name() string
	driverName() string
	prepareDSN(dsn string) string
	configurePool(conn *sql.DB)
	schema() []string
	rebind(query string) string
	isUniqueViolation(err error) bool
	isForeignKeyViolation(err error) bool
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q (want sqlite or postgres)", driver)
	}
}

// rebindDollar turns `?` placeholders into `$1, $2, ...`. Queries in this
// package never contain a literal question mark.
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
