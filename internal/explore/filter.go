package explore

import (
	"strings"
	"time"
)

// Filter returns the rows that match the search query and every non-empty
// active filter, in input order. It is always evaluated against the full
// collection passed in and never mutates it.
//
// A row matches the query when the query is empty or any column's text
// contains it, ignoring case. How a filter value matches depends on the kind
// declared for its key in filters: text filters match when the row's text
// contains the value, ignoring case; select, date and number filters must be
// equal. An undeclared key behaves as text for string values and as equality
// otherwise. A filter whose row value is missing excludes the row.
func Filter(rows []Row, query string, active ActiveFilters, columns []Column, filters []FilterConfig) []Row {
	keys := active.Active()
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if !matchesQuery(row, query, columns) {
			continue
		}
		if !matchesFilters(row, active, keys, columns, filters) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func matchesQuery(row Row, query string, columns []Column) bool {
	if query == "" {
		return true
	}
	for _, c := range columns {
		v, ok := c.ValueOf(row)
		if !ok || v == nil {
			continue
		}
		if containsFold(Stringify(v), query) {
			return true
		}
	}
	return false
}

func matchesFilters(row Row, active ActiveFilters, keys []string, columns []Column, filters []FilterConfig) bool {
	for _, key := range keys {
		got, ok := filterValue(row, key, columns)
		if !ok || got == nil {
			return false
		}
		kind, declared := FilterText, false
		if fc, ok := FindFilter(filters, key); ok {
			kind, declared = fc.Kind, true
		}
		if !matchesValue(kind, declared, got, active[key]) {
			return false
		}
	}
	return true
}

func matchesValue(kind FilterKind, declared bool, got, want any) bool {
	if !declared {
		if s, ok := want.(string); ok {
			return containsFold(Stringify(got), s)
		}
		return valuesEqual(got, want)
	}
	switch kind {
	case FilterText:
		return containsFold(Stringify(got), Stringify(want))
	case FilterDate:
		return sameDate(got, want)
	}
	return valuesEqual(got, want)
}

// sameDate is equality, except that text typed against a time row value
// matches either its RFC 3339 form or its calendar day.
func sameDate(got, want any) bool {
	if valuesEqual(got, want) {
		return true
	}
	t, ok := got.(time.Time)
	s, isString := want.(string)
	if !ok || !isString {
		return false
	}
	s = strings.TrimSpace(s)
	return s == t.Format(time.RFC3339) || s == t.Format(time.DateOnly)
}

// filterValue reads key through its column accessor when such a column
// exists, otherwise straight from the row.
func filterValue(row Row, key string, columns []Column) (any, bool) {
	if c, ok := FindColumn(columns, key); ok {
		return c.ValueOf(row)
	}
	return row.Get(key)
}
