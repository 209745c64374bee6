package editor

import (
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"cli-admin/internal/explore"
)

// OpType represents the type of a staged change.
type OpType int

const (
	OpSet OpType = iota
	OpDelete
)

func (t OpType) String() string {
	if t == OpDelete {
		return "delete"
	}
	return "set"
}

// BulkOp is one staged action over a set of rows, keyed by a single
// primary key column.
type BulkOp struct {
	Type      OpType
	Table     string
	KeyColumn string
	IDs       []explore.RowID
	Column    string // OpSet only
	Value     any    // OpSet only; nil sets NULL
}

// ChangeTracker tracks staged bulk operations before commit. Undo pops the
// most recent operation.
type ChangeTracker struct {
	ops []BulkOp
}

// NewChangeTracker creates a new empty change tracker.
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{}
}

// StageDelete stages deletion of the rows. Nothing is staged for no ids.
func (ct *ChangeTracker) StageDelete(table, keyColumn string, ids []explore.RowID) {
	ct.stage(BulkOp{Type: OpDelete, Table: table, KeyColumn: keyColumn, IDs: ids})
}

// StageSet stages setting column to value on the rows.
func (ct *ChangeTracker) StageSet(table, keyColumn string, ids []explore.RowID, column string, value any) {
	ct.stage(BulkOp{Type: OpSet, Table: table, KeyColumn: keyColumn, IDs: ids, Column: column, Value: value})
}

func (ct *ChangeTracker) stage(op BulkOp) {
	if len(op.IDs) == 0 {
		return
	}
	op.IDs = slices.Clone(op.IDs)
	slices.Sort(op.IDs)
	op.IDs = slices.Compact(op.IDs)
	ct.ops = append(ct.ops, op)
}

// Undo removes the last staged operation and returns it.
func (ct *ChangeTracker) Undo() (BulkOp, bool) {
	if len(ct.ops) == 0 {
		return BulkOp{}, false
	}
	last := ct.ops[len(ct.ops)-1]
	ct.ops = ct.ops[:len(ct.ops)-1]
	return last, true
}

// Ops returns the staged operations in staging order.
func (ct *ChangeTracker) Ops() []BulkOp {
	return slices.Clone(ct.ops)
}

// HasChanges returns whether there are any pending changes.
func (ct *ChangeTracker) HasChanges() bool {
	return len(ct.ops) > 0
}

// PendingCount returns the number of row changes across all operations.
func (ct *ChangeTracker) PendingCount() int {
	n := 0
	for _, op := range ct.ops {
		n += len(op.IDs)
	}
	return n
}

// IsRowDeleted checks if a row is marked for deletion.
func (ct *ChangeTracker) IsRowDeleted(table string, id explore.RowID) bool {
	for _, op := range ct.ops {
		if op.Type == OpDelete && op.Table == table && hasID(op.IDs, id) {
			return true
		}
	}
	return false
}

// PendingValue returns the last staged value for a cell.
func (ct *ChangeTracker) PendingValue(table string, id explore.RowID, column string) (any, bool) {
	for i := len(ct.ops) - 1; i >= 0; i-- {
		op := ct.ops[i]
		if op.Type == OpSet && op.Table == table && op.Column == column && hasID(op.IDs, id) {
			return op.Value, true
		}
	}
	return nil, false
}

// GenerateSQL generates parameterized SQL statements and their args.
// Order: UPDATEs in staging order, then DELETEs. Keys are compared as text
// so one statement serves any key type.
func (ct *ChangeTracker) GenerateSQL() ([]string, [][]any) {
	var queries []string
	var allArgs [][]any

	for _, op := range ct.ops {
		if op.Type != OpSet {
			continue
		}
		table := pgx.Identifier{op.Table}.Sanitize()
		col := pgx.Identifier{op.Column}.Sanitize()
		key := pgx.Identifier{op.KeyColumn}.Sanitize()
		if op.Value == nil {
			queries = append(queries, fmt.Sprintf(`UPDATE %s SET %s = NULL WHERE %s::text = ANY($1)`, table, col, key))
			allArgs = append(allArgs, []any{idStrings(op.IDs)})
			continue
		}
		queries = append(queries, fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s::text = ANY($2)`, table, col, key))
		allArgs = append(allArgs, []any{op.Value, idStrings(op.IDs)})
	}

	for _, op := range ct.ops {
		if op.Type != OpDelete {
			continue
		}
		queries = append(queries, fmt.Sprintf(`DELETE FROM %s WHERE %s::text = ANY($1)`,
			pgx.Identifier{op.Table}.Sanitize(),
			pgx.Identifier{op.KeyColumn}.Sanitize()))
		allArgs = append(allArgs, []any{idStrings(op.IDs)})
	}

	return queries, allArgs
}

// Clear removes all staged changes.
func (ct *ChangeTracker) Clear() {
	ct.ops = nil
}

func hasID(ids []explore.RowID, id explore.RowID) bool {
	_, ok := slices.BinarySearch(ids, id)
	return ok
}

func idStrings(ids []explore.RowID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
