package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures what differs between the SQL backends.
type Dialect struct {
	Name string
	// NumberedParams rewrites ? placeholders to $1, $2, ...
	NumberedParams bool
	// Schema is applied in order by Migrate. Statements must be idempotent.
	Schema []string
}

// rebind rewrites a query written with ? placeholders for the dialect.
func (d Dialect) rebind(query string) string {
	if !d.NumberedParams {
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
