package sqlstore

import (
	"database/sql"
	"strconv"
	"strings"
)

// Dialect captures the differences between the supported SQL databases.
type Dialect struct {
	// Name is used as the backend metrics tag
	Name string

	// NumberedPlaceholders replaces ? with $1, $2, ... in queries
	NumberedPlaceholders bool

	// LockClause is appended to the query selecting the next work item, for example FOR UPDATE SKIP LOCKED
	LockClause string

	TxOptions *sql.TxOptions

	// IsConflict returns true for errors caused by a concurrent writer, like unique key violations or
	// deadlocks
	IsConflict func(error) bool
}

func (d *Dialect) rebind(query string) string {
	if !d.NumberedPlaceholders {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// placeholders returns n comma separated placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
