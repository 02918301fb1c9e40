package querysql

import (
	"fmt"
	"strconv"
)

// Dialect selects the SQL flavour produced by Compile.
type Dialect int

const (
	// SQLite lowers full-text search to LIKE scans and returns NULL match
	// offsets.
	SQLite Dialect = iota + 1
	// Postgres lowers full-text search to the tsearch and pgroonga index
	// operators.
	Postgres
)

// ParseDialect maps a database driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	default:
		return 0, fmt.Errorf("unknown sql dialect %q", driver)
	}
}

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return "unknown"
	}
}

// Placeholder returns the bind marker for the n-th (1-based) parameter.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
