// Package explore is the in-memory data-exploration engine shared by every
// list screen of the console: free-text search, per-column filters, a single
// sort key, pagination and row selection over a fully loaded collection.
//
// All stages are pure and synchronous. A View composes them in the fixed order
// Filter -> Sort -> Paginate and consults the Selection against the filtered
// collection.
package explore

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrDuplicateColumn is returned when two columns share a key.
var ErrDuplicateColumn = errors.New("duplicate column key")

// ErrEmptyColumnKey is returned when a column has no key.
var ErrEmptyColumnKey = errors.New("empty column key")

// RowID is a stable row identifier, independent of the row's position.
type RowID string

// IDOf normalises a string or numeric identifier into a RowID, so that
// 7, int64(7), 7.0 and "7" all name the same row.
func IDOf(v any) RowID {
	switch id := v.(type) {
	case RowID:
		return id
	case string:
		return RowID(id)
	case nil:
		return ""
	}
	if n, ok := toInteger(v); ok {
		return RowID(n.String())
	}
	if f, ok := toFloat(v); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return RowID(strconv.FormatInt(int64(f), 10))
		}
		return RowID(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return RowID(fmt.Sprint(v))
}

// Row is one record of a dataset. The engine never modifies it.
type Row struct {
	ID     RowID
	Fields map[string]any
}

// NewRow builds a row from any string or numeric id.
func NewRow(id any, fields map[string]any) Row {
	return Row{ID: IDOf(id), Fields: fields}
}

// Get returns the raw field value and whether the key exists.
func (r Row) Get(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// Column describes one field of a row.
type Column struct {
	Key        string
	Title      string
	Sortable   bool
	Filterable bool

	// Value extracts the column value. When nil, Fields[Key] is used.
	Value func(Row) any

	// Render formats a value for display. When nil, Stringify is used.
	Render func(value any, row Row) string
}

// ValueOf returns the column value for row and whether it is defined.
func (c Column) ValueOf(row Row) (any, bool) {
	if c.Value != nil {
		v := c.Value(row)
		return v, v != nil
	}
	return row.Get(c.Key)
}

// Display renders the column value of row.
func (c Column) Display(row Row) string {
	v, _ := c.ValueOf(row)
	if c.Render != nil {
		return c.Render(v, row)
	}
	return Stringify(v)
}

// ValidateColumns checks that every column has a unique, non-empty key.
func ValidateColumns(columns []Column) error {
	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if c.Key == "" {
			return fmt.Errorf("%w: column %d", ErrEmptyColumnKey, i)
		}
		if seen[c.Key] {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Key)
		}
		seen[c.Key] = true
	}
	return nil
}

// FindColumn returns the column with the given key.
func FindColumn(columns []Column, key string) (Column, bool) {
	for _, c := range columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// FilterKind says how a column may be filtered.
type FilterKind int

const (
	FilterText FilterKind = iota
	FilterSelect
	FilterDate
	FilterNumber
)

// String returns the config name of the kind.
func (k FilterKind) String() string {
	switch k {
	case FilterText:
		return "text"
	case FilterSelect:
		return "select"
	case FilterDate:
		return "date"
	case FilterNumber:
		return "number"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseFilterKind maps a config name to a FilterKind.
func ParseFilterKind(s string) (FilterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FilterText, nil
	case "select":
		return FilterSelect, nil
	case "date":
		return FilterDate, nil
	case "number":
		return FilterNumber, nil
	}
	return FilterText, fmt.Errorf("unknown filter kind %q", s)
}

// Option is one choice of a select filter.
type Option struct {
	Label string
	Value any
}

// FilterConfig declares how the column Key may be filtered. It is independent
// of whether the column is displayed.
type FilterConfig struct {
	Key     string
	Kind    FilterKind
	Options []Option
}

// FindFilter returns the filter config for key.
func FindFilter(filters []FilterConfig, key string) (FilterConfig, bool) {
	for _, f := range filters {
		if f.Key == key {
			return f, true
		}
	}
	return FilterConfig{}, false
}

// ActiveFilters maps a filter key to its current value. Empty values mean
// "no filter" for that key.
type ActiveFilters map[string]any

// IsEmptyValue reports whether v disables a filter.
func IsEmptyValue(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Clone returns a copy holding only non-empty entries.
func (f ActiveFilters) Clone() ActiveFilters {
	out := make(ActiveFilters, len(f))
	for k, v := range f {
		if !IsEmptyValue(v) {
			out[k] = v
		}
	}
	return out
}

// Active returns the keys with non-empty values.
func (f ActiveFilters) Active() []string {
	keys := make([]string, 0, len(f))
	for k, v := range f {
		if !IsEmptyValue(v) {
			keys = append(keys, k)
		}
	}
	sortStrings(keys)
	return keys
}

// Equal compares the non-empty entries of two filter sets.
func (f ActiveFilters) Equal(other ActiveFilters) bool {
	a, b := f.Active(), other.Active()
	if len(a) != len(b) {
		return false
	}
	for i, k := range a {
		if b[i] != k || !valuesEqual(f[k], other[k]) {
			return false
		}
	}
	return true
}

// Direction is the sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// String returns "asc" or "desc".
func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// SortDescriptor is the active sort. A nil *SortDescriptor means unsorted.
type SortDescriptor struct {
	Key       string
	Direction Direction
}

// String renders the descriptor as "key:dir".
func (s *SortDescriptor) String() string {
	if s == nil {
		return "none"
	}
	return s.Key + ":" + s.Direction.String()
}

// ParseSort parses "key", "key:asc" or "key:desc". An empty string is nil.
func ParseSort(s string) (*SortDescriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	key, dir, _ := strings.Cut(s, ":")
	desc := &SortDescriptor{Key: key}
	switch strings.ToLower(dir) {
	case "", "asc":
	case "desc":
		desc.Direction = Desc
	default:
		return nil, fmt.Errorf("invalid sort direction %q", dir)
	}
	return desc, nil
}

// NextSort advances the header-click cycle for key: none -> asc -> desc -> none
// on the same key, and asc on a different key.
func NextSort(cur *SortDescriptor, key string) *SortDescriptor {
	if cur == nil || cur.Key != key {
		return &SortDescriptor{Key: key, Direction: Asc}
	}
	if cur.Direction == Asc {
		return &SortDescriptor{Key: key, Direction: Desc}
	}
	return nil
}

func sameSort(a, b *SortDescriptor) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
