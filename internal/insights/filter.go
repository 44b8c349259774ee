// Package insights turns raw claim rows into ranked per-provider summaries.
package insights

import (
	"strings"

	"github.com/joelkehle/hcp-insights/internal/claims"
)

// FilterByTA keeps rows whose ta contains pattern, ignoring case. A blank
// pattern keeps every row. The input slice is left untouched.
func FilterByTA(rows []claims.Row, pattern string) []claims.Row {
	out := make([]claims.Row, 0, len(rows))
	if pattern == "" {
		return append(out, rows...)
	}
	needle := strings.ToLower(pattern)
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Get(claims.FieldTA)), needle) {
			out = append(out, r)
		}
	}
	return out
}
