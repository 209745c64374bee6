package explore

// State describes the current page. Total is the size of the filtered
// collection, before slicing.
type State struct {
	Page     int
	PageSize int
	Total    int
}

// PageCount is ceil(Total/PageSize), never less than 1.
func (s State) PageCount() int {
	size := max(s.PageSize, 1)
	return max(1, (s.Total+size-1)/size)
}

// HasNext reports whether a later page exists.
func (s State) HasNext() bool {
	return s.Page < s.PageCount()
}

// HasPrev reports whether an earlier page exists.
func (s State) HasPrev() bool {
	return s.Page > 1
}

// Range returns the 1-based numbers of the first and last row on the page,
// or 0, 0 for an empty collection.
func (s State) Range() (first, last int) {
	if s.Total == 0 {
		return 0, 0
	}
	first = (s.Page-1)*s.PageSize + 1
	last = min(s.Page*s.PageSize, s.Total)
	return first, last
}

// Page is one slice of a collection.
type Page struct {
	Rows  []Row
	State State
}

// ClampPage bounds page into [1, pageCount] for total rows.
func ClampPage(page, pageSize, total int) int {
	count := State{PageSize: pageSize, Total: total}.PageCount()
	return min(max(page, 1), count)
}

// Paginate slices the 1-based page out of rows. The page is clamped to the
// available range; a page size below 1 is treated as 1.
func Paginate(rows []Row, page, pageSize int) Page {
	pageSize = max(pageSize, 1)
	total := len(rows)
	page = ClampPage(page, pageSize, total)

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)
	return Page{
		Rows:  rows[start:end:end],
		State: State{Page: page, PageSize: pageSize, Total: total},
	}
}
