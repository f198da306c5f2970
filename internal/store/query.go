package store

import (
	"strconv"
	"strings"
)

// numberPlaceholders turns each ? outside a single-quoted literal into $1,
// $2, ... in order.
func numberPlaceholders(query string) string {
	n := strings.Count(query, "?")
	if n == 0 {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 2*n)
	next := 1
	inLiteral := false
	for _, r := range query {
		switch {
		case r == '\'':
			inLiteral = !inLiteral
		case r == '?' && !inLiteral:
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(next))
			next++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
