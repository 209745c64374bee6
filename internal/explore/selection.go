package explore

import "slices"

// SelectionSummary is what the table header checkbox needs.
type SelectionSummary struct {
	SelectedIDs        []RowID
	AllVisibleSelected bool
	Indeterminate      bool
}

// Selection is the set of selected row ids. It is independent of which rows
// are on screen; ids of rows that left the dataset stay selected until Clear.
type Selection struct {
	ids     map[RowID]struct{}
	version uint64
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{ids: make(map[RowID]struct{})}
}

// Toggle flips the membership of id.
func (s *Selection) Toggle(id RowID) {
	s.version++
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

// SelectAll selects every visible id unless all are already selected, in
// which case it deselects them. Ids outside visible are untouched.
func (s *Selection) SelectAll(visible []RowID) {
	s.version++
	if s.allSelected(visible) {
		for _, id := range visible {
			delete(s.ids, id)
		}
		return
	}
	for _, id := range visible {
		s.ids[id] = struct{}{}
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.version++
	clear(s.ids)
}

// IsSelected reports whether id is selected.
func (s *Selection) IsSelected(id RowID) bool {
	_, ok := s.ids[id]
	return ok
}

// Count is the number of selected ids.
func (s *Selection) Count() int {
	return len(s.ids)
}

// IDs returns the selected ids in sorted order.
func (s *Selection) IDs() []RowID {
	out := make([]RowID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Summary derives the checkbox state for the visible ids. Indeterminate is
// derived, never stored.
func (s *Selection) Summary(visible []RowID) SelectionSummary {
	all := s.allSelected(visible)
	return SelectionSummary{
		SelectedIDs:        s.IDs(),
		AllVisibleSelected: all,
		Indeterminate:      s.Count() > 0 && !all,
	}
}

func (s *Selection) allSelected(visible []RowID) bool {
	if len(visible) == 0 {
		return false
	}
	for _, id := range visible {
		if _, ok := s.ids[id]; !ok {
			return false
		}
	}
	return true
}
