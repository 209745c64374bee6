package explore

// Derived is the output of one pipeline run, consumed by the table renderer.
type Derived struct {
	VisibleRows []Row
	Pagination  State
	Selection   SelectionSummary
	Filtered    int
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithPageSize sets the initial page size.
func WithPageSize(n int) ViewOption {
	return func(v *View) { v.pageSize = max(n, 1) }
}

// WithSort sets the initial sort.
func WithSort(desc *SortDescriptor) ViewOption {
	return func(v *View) { v.sort = cloneSort(desc) }
}

// OnSortChange registers a callback fired after the sort changes.
func OnSortChange(fn func(*SortDescriptor)) ViewOption {
	return func(v *View) { v.onSort = fn }
}

// OnPageChange registers a callback fired after the page changes, including
// when it is clamped because the filtered total shrank.
func OnPageChange(fn func(int)) ViewOption {
	return func(v *View) { v.onPage = fn }
}

// OnPageSizeChange registers a callback fired after the page size changes.
func OnPageSizeChange(fn func(int)) ViewOption {
	return func(v *View) { v.onPageSize = fn }
}

// OnSelectionChange registers a callback fired with the sorted selected ids
// after every selection change.
func OnSelectionChange(fn func([]RowID)) ViewOption {
	return func(v *View) { v.onSelection = fn }
}

// DefaultPageSize is used when no WithPageSize option is given.
const DefaultPageSize = 25

// View owns the exploration state of one dataset and derives what is shown.
//
// Filtering and sorting are re-run from the original rows only when the rows,
// query, filters or sort change; page and page size changes re-slice the
// cached intermediate. A View is not safe for concurrent use.
type View struct {
	columns []Column
	filters []FilterConfig

	rows      []Row
	query     string
	active    ActiveFilters
	sort      *SortDescriptor
	page      int
	pageSize  int
	selection *Selection

	onSort      func(*SortDescriptor)
	onPage      func(int)
	onPageSize  func(int)
	onSelection func([]RowID)

	memo    memo
	summary summaryMemo

	// recomputes counts filter+sort runs.
	recomputes int
}

type memo struct {
	valid   bool
	gen     uint64
	rowsPtr *Row
	rowsLen int
	query   string
	active  ActiveFilters
	sort    *SortDescriptor
	rows    []Row
	ids     []RowID
}

type summaryMemo struct {
	valid      bool
	gen        uint64
	selVersion uint64
	summary    SelectionSummary
}

// NewView creates a view over columns and filter configs. Columns must have
// unique keys.
func NewView(columns []Column, filters []FilterConfig, opts ...ViewOption) (*View, error) {
	if err := ValidateColumns(columns); err != nil {
		return nil, err
	}
	v := &View{
		columns:   columns,
		filters:   filters,
		active:    ActiveFilters{},
		page:      1,
		pageSize:  DefaultPageSize,
		selection: NewSelection(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Columns returns the column definitions.
func (v *View) Columns() []Column { return v.columns }

// FilterConfigs returns the filter declarations.
func (v *View) FilterConfigs() []FilterConfig { return v.filters }

// Rows returns the raw collection.
func (v *View) Rows() []Row { return v.rows }

// Query returns the search query.
func (v *View) Query() string { return v.query }

// Filters returns a copy of the active filters.
func (v *View) Filters() ActiveFilters { return v.active.Clone() }

// Sort returns a copy of the sort descriptor, nil when unsorted.
func (v *View) Sort() *SortDescriptor { return cloneSort(v.sort) }

// Page returns the current 1-based page.
func (v *View) Page() int { return v.page }

// PageSize returns the page size.
func (v *View) PageSize() int { return v.pageSize }

// Selection exposes the selection for reads.
func (v *View) Selection() *Selection { return v.selection }

// SetRows replaces the raw collection. Passing the same slice again keeps the
// cached result; pass a new slice to signal changed contents.
func (v *View) SetRows(rows []Row) {
	v.rows = rows
	v.clampPage()
}

// Invalidate drops the cached filter+sort result.
func (v *View) Invalidate() {
	v.memo.valid = false
}

// SetQuery sets the free-text search.
func (v *View) SetQuery(q string) {
	v.query = q
	v.clampPage()
}

// SetFilter sets one filter value; an empty value removes the filter.
func (v *View) SetFilter(key string, value any) {
	if IsEmptyValue(value) {
		delete(v.active, key)
	} else {
		v.active[key] = value
	}
	v.clampPage()
}

// ClearFilters removes every active filter.
func (v *View) ClearFilters() {
	v.active = ActiveFilters{}
	v.clampPage()
}

// ToggleSort advances the sort cycle for a sortable column. It reports false
// when key is not a sortable column.
func (v *View) ToggleSort(key string) bool {
	c, ok := FindColumn(v.columns, key)
	if !ok || !c.Sortable {
		return false
	}
	v.SetSort(NextSort(v.sort, key))
	return true
}

// SetSort replaces the sort descriptor.
func (v *View) SetSort(desc *SortDescriptor) {
	if sameSort(v.sort, desc) {
		return
	}
	v.sort = cloneSort(desc)
	if v.onSort != nil {
		v.onSort(cloneSort(v.sort))
	}
}

// SetPage moves to page, clamped into the available range.
func (v *View) SetPage(page int) {
	v.setPage(ClampPage(page, v.pageSize, len(v.filtered())))
}

// NextPage moves one page forward if possible.
func (v *View) NextPage() { v.SetPage(v.page + 1) }

// PrevPage moves one page back if possible.
func (v *View) PrevPage() { v.SetPage(v.page - 1) }

// SetPageSize changes the page size and returns to page 1.
func (v *View) SetPageSize(n int) {
	n = max(n, 1)
	if n == v.pageSize {
		return
	}
	v.pageSize = n
	if v.onPageSize != nil {
		v.onPageSize(n)
	}
	v.setPage(1)
}

// ToggleSelected flips the selection of one row.
func (v *View) ToggleSelected(id RowID) {
	v.selection.Toggle(id)
	v.selectionChanged()
}

// SelectAllVisible applies tri-state select-all to the filtered collection:
// rows hidden by the search or filters are never selected by it.
func (v *View) SelectAllVisible() {
	v.filtered()
	v.selection.SelectAll(v.memo.ids)
	v.selectionChanged()
}

// ClearSelection deselects everything.
func (v *View) ClearSelection() {
	v.selection.Clear()
	v.selectionChanged()
}

// Filtered returns the filtered and sorted collection. Callers must not
// modify it.
func (v *View) Filtered() []Row {
	return v.filtered()
}

// FilteredIDs returns the ids of the filtered collection in display order.
func (v *View) FilteredIDs() []RowID {
	v.filtered()
	return v.memo.ids
}

// SelectedRows returns the selected rows that are still in the raw
// collection, in filtered+sorted order first and then raw order for
// selected rows hidden by the filters.
func (v *View) SelectedRows() []Row {
	out := make([]Row, 0, v.selection.Count())
	seen := make(map[RowID]bool, v.selection.Count())
	for _, r := range v.filtered() {
		if v.selection.IsSelected(r.ID) {
			out = append(out, r)
			seen[r.ID] = true
		}
	}
	for _, r := range v.rows {
		if v.selection.IsSelected(r.ID) && !seen[r.ID] {
			out = append(out, r)
			seen[r.ID] = true
		}
	}
	return out
}

// Derive runs the pipeline and returns the current page.
func (v *View) Derive() Derived {
	rows := v.filtered()
	v.clampTo(len(rows))
	p := Paginate(rows, v.page, v.pageSize)
	return Derived{
		VisibleRows: p.Rows,
		Pagination:  p.State,
		Selection:   v.selectionSummary(),
		Filtered:    len(rows),
	}
}

func (v *View) filtered() []Row {
	ptr, n := rowsIdentity(v.rows)
	m := &v.memo
	if m.valid && m.rowsPtr == ptr && m.rowsLen == n &&
		m.query == v.query && m.active.Equal(v.active) && sameSort(m.sort, v.sort) {
		return m.rows
	}

	v.recomputes++
	out := Sort(Filter(v.rows, v.query, v.active, v.columns, v.filters), v.sort, v.columns)
	ids := make([]RowID, len(out))
	for i, r := range out {
		ids[i] = r.ID
	}
	*m = memo{
		valid:   true,
		gen:     m.gen + 1,
		rowsPtr: ptr,
		rowsLen: n,
		query:   v.query,
		active:  v.active.Clone(),
		sort:    cloneSort(v.sort),
		rows:    out,
		ids:     ids,
	}
	return out
}

func (v *View) selectionSummary() SelectionSummary {
	s := &v.summary
	if s.valid && s.gen == v.memo.gen && s.selVersion == v.selection.version {
		return s.summary
	}
	*s = summaryMemo{
		valid:      true,
		gen:        v.memo.gen,
		selVersion: v.selection.version,
		summary:    v.selection.Summary(v.memo.ids),
	}
	return s.summary
}

func (v *View) clampPage() {
	v.clampTo(len(v.filtered()))
}

func (v *View) clampTo(total int) {
	v.setPage(ClampPage(v.page, v.pageSize, total))
}

func (v *View) setPage(p int) {
	if p == v.page {
		return
	}
	v.page = p
	if v.onPage != nil {
		v.onPage(p)
	}
}

func (v *View) selectionChanged() {
	if v.onSelection != nil {
		v.onSelection(v.selection.IDs())
	}
}

func rowsIdentity(rows []Row) (*Row, int) {
	if len(rows) == 0 {
		return nil, 0
	}
	return &rows[0], len(rows)
}

func cloneSort(desc *SortDescriptor) *SortDescriptor {
	if desc == nil {
		return nil
	}
	c := *desc
	return &c
}
