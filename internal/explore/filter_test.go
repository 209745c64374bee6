package explore

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestFilterQueryIsCaseInsensitive(t *testing.T) {
	got := Filter(contactRows(), "acme", nil, contactColumns(), nil)
	if diff := cmp.Diff(idList(7), ids(got)); diff != "" {
		t.Errorf("query acme (-want +got):\n%s", diff)
	}
}

func TestFilterEmptyIsIdentity(t *testing.T) {
	rows := contactRows()
	got := Filter(rows, "", ActiveFilters{}, contactColumns(), nil)
	assert.Equal(t, ids(rows), ids(got))

	got = Filter(rows, "", ActiveFilters{"status": ""}, contactColumns(), nil)
	assert.Equal(t, ids(rows), ids(got))
}

func TestFilterSearchesOnlyColumns(t *testing.T) {
	rows := []Row{
		NewRow(1, map[string]any{"name": "Ann", "secret": "needle"}),
		NewRow(2, map[string]any{"name": "needle in name"}),
	}
	cols := []Column{{Key: "name"}}
	assert.Equal(t, idList(2), ids(Filter(rows, "NEEDLE", nil, cols, nil)))
}

func TestFilterActiveStringIsSubstring(t *testing.T) {
	got := Filter(contactRows(), "", ActiveFilters{"status": "ACT"}, contactColumns(), nil)
	assert.Equal(t, idList(2, 3, 6, 9), ids(got))
}

func TestFilterActiveNonStringIsExact(t *testing.T) {
	got := Filter(contactRows(), "", ActiveFilters{"score": 37}, contactColumns(), nil)
	assert.Equal(t, idList(2), ids(got))

	got = Filter(contactRows(), "", ActiveFilters{"score": 3.7}, contactColumns(), nil)
	assert.Empty(t, got)
}

func TestFilterClausesAreAnded(t *testing.T) {
	got := Filter(contactRows(), "contact 0", ActiveFilters{"status": "new", "company": "o"}, contactColumns(), nil)
	// new: 1 Globex, 5 Stark, 7 ACME Corp, 10 Soylent; "o" in company: Globex, ACME Corp, Soylent;
	// "contact 0" matches names Contact 01..09.
	assert.Equal(t, idList(1, 7), ids(got))
}

func TestFilterMissingFieldFailsClosed(t *testing.T) {
	rows := []Row{
		NewRow(1, map[string]any{"region": "EU"}),
		NewRow(2, map[string]any{}),
		NewRow(3, map[string]any{"region": nil}),
	}
	got := Filter(rows, "", ActiveFilters{"region": "eu"}, nil, nil)
	assert.Equal(t, idList(1), ids(got))

	got = Filter(rows, "", ActiveFilters{"nosuchkey": "x"}, nil, nil)
	assert.Empty(t, got)
}

func TestFilterUsesColumnAccessor(t *testing.T) {
	rows := []Row{
		NewRow(1, map[string]any{"company": map[string]any{"name": "ACME"}}),
		NewRow(2, map[string]any{"company": map[string]any{"name": "Globex"}}),
	}
	cols := []Column{{
		Key: "company",
		Value: func(r Row) any {
			m, _ := r.Fields["company"].(map[string]any)
			return m["name"]
		},
	}}
	assert.Equal(t, idList(2), ids(Filter(rows, "", ActiveFilters{"company": "glo"}, cols, nil)))
	assert.Equal(t, idList(1), ids(Filter(rows, "acm", nil, cols, nil)))
}

func TestFilterIsIdempotent(t *testing.T) {
	cases := []struct {
		query  string
		active ActiveFilters
	}{
		{"", nil},
		{"contact", ActiveFilters{"status": "active"}},
		{"o", ActiveFilters{"score": 85}},
		{"zzz", nil},
	}
	for _, tc := range cases {
		once := Filter(contactRows(), tc.query, tc.active, contactColumns(), nil)
		twice := Filter(once, tc.query, tc.active, contactColumns(), nil)
		assert.Equal(t, ids(once), ids(twice), "query=%q filters=%v", tc.query, tc.active)
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	rows := contactRows()
	before := ids(rows)
	_ = Filter(rows, "a", ActiveFilters{"status": "new"}, contactColumns(), nil)
	assert.Equal(t, before, ids(rows))
	assert.Equal(t, "Globex", rows[0].Fields["company"])
}

func TestFilterMatchesByDeclaredKind(t *testing.T) {
	day := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rows := []Row{
		NewRow(1, map[string]any{"status": "active", "name": "Ann Active", "score": 37, "joined": day}),
		NewRow(2, map[string]any{"status": "inactive", "name": "Bob", "score": 370, "joined": day.AddDate(0, 0, 1)}),
		NewRow(3, map[string]any{"status": "Active", "name": "Cy", "score": 37.0, "joined": "2024-03-01"}),
	}
	filters := []FilterConfig{
		{Key: "status", Kind: FilterSelect},
		{Key: "name", Kind: FilterText},
		{Key: "score", Kind: FilterNumber},
		{Key: "joined", Kind: FilterDate},
	}

	tests := []struct {
		name   string
		active ActiveFilters
		want   []RowID
	}{
		{"select is exact", ActiveFilters{"status": "active"}, idList(1)},
		{"select is case sensitive", ActiveFilters{"status": "Active"}, idList(3)},
		{"select partial matches nothing", ActiveFilters{"status": "act"}, nil},
		{"text is substring ignoring case", ActiveFilters{"name": "ACTIVE"}, idList(1)},
		{"number is exact across types", ActiveFilters{"score": 37}, idList(1, 3)},
		{"number text does not substring", ActiveFilters{"score": "37"}, nil},
		{"date matches calendar day", ActiveFilters{"joined": "2024-03-01"}, idList(1, 3)},
		{"date matches timestamp", ActiveFilters{"joined": day}, idList(1)},
		{"date partial matches nothing", ActiveFilters{"joined": "2024-03"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(rows, "", tt.active, nil, filters)
			assert.Equal(t, tt.want, nilIfEmpty(ids(got)))
		})
	}
}

func TestFilterUndeclaredStringStaysSubstring(t *testing.T) {
	rows := []Row{
		NewRow(1, map[string]any{"status": "active"}),
		NewRow(2, map[string]any{"status": "inactive"}),
	}
	assert.Equal(t, idList(1, 2), ids(Filter(rows, "", ActiveFilters{"status": "active"}, nil, nil)))

	filters := []FilterConfig{{Key: "status", Kind: FilterSelect}}
	assert.Equal(t, idList(1), ids(Filter(rows, "", ActiveFilters{"status": "active"}, nil, filters)))
}

func nilIfEmpty(ids []RowID) []RowID {
	if len(ids) == 0 {
		return nil
	}
	return ids
}
