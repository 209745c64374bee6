package explore

import "slices"

// Sort returns the rows ordered by desc. A nil descriptor returns the input
// order unchanged. The sort is stable: rows with equal keys keep their input
// order. Missing values sort below every defined value in both directions.
func Sort(rows []Row, desc *SortDescriptor, columns []Column) []Row {
	out := slices.Clone(rows)
	if desc == nil || len(out) < 2 {
		return out
	}

	col, ok := FindColumn(columns, desc.Key)
	if !ok {
		col = Column{Key: desc.Key}
	}

	slices.SortStableFunc(out, func(a, b Row) int {
		va, okA := col.ValueOf(a)
		vb, okB := col.ValueOf(b)
		okA = okA && va != nil
		okB = okB && vb != nil
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}
		c := compareDefined(va, vb)
		if desc.Direction == Desc {
			return -c
		}
		return c
	})
	return out
}
