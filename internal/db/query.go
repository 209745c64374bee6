package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/sync/errgroup"
)

// Table is a bounded snapshot of a table or query result. Values keep their
// Go types (int64, float64, bool, time.Time, string) so the explorer can
// compare them numerically.
type Table struct {
	Name        string
	Columns     []string
	ColumnTypes []string
	PrimaryKeys []string
	Rows        []map[string]any
	ExecTime    time.Duration
}

// isSelectLike returns true if the query returns rows.
func isSelectLike(sql string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	return strings.HasPrefix(upper, "SELECT") ||
		strings.HasPrefix(upper, "WITH") ||
		strings.HasPrefix(upper, "TABLE")
}

// selectTable builds the snapshot query for a table.
func selectTable(table string, pks []string, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(pgx.Identifier{table}.Sanitize())
	if len(pks) > 0 {
		quoted := make([]string, len(pks))
		for i, pk := range pks {
			quoted[i] = pgx.Identifier{pk}.Sanitize()
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(quoted, ", "))
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	return b.String()
}

// LoadTable fetches up to limit rows of a table ordered by its primary key.
// Column metadata and primary keys are looked up concurrently first.
func (d *DB) LoadTable(ctx context.Context, table string, limit int) (*Table, error) {
	var (
		pks  []string
		cols []ColumnInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pks, err = d.GetPrimaryKeys(gctx, table)
		if err != nil {
			return fmt.Errorf("primary keys of %s: %w", table, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cols, err = d.GetColumns(gctx, table)
		if err != nil {
			return fmt.Errorf("columns of %s: %w", table, err)
		}
		if len(cols) == 0 {
			return fmt.Errorf("table %s not found", table)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t, err := d.fetch(ctx, selectTable(table, pks, limit))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	t.Name = table
	t.PrimaryKeys = pks
	return t, nil
}

// LoadQuery runs a read-only query and returns its rows.
func (d *DB) LoadQuery(ctx context.Context, sql string) (*Table, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, fmt.Errorf("empty query")
	}
	if !isSelectLike(trimmed) {
		return nil, fmt.Errorf("query must be a SELECT")
	}
	return d.fetch(ctx, trimmed)
}

func (d *DB) fetch(ctx context.Context, sql string) (*Table, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	rows, err := d.Pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	columnTypes := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
		columnTypes[i] = oidToTypeName(f.DataTypeOID)
	}

	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			row[columns[i]] = normalizeValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Table{
		Columns:     columns,
		ColumnTypes: columnTypes,
		Rows:        out,
		ExecTime:    time.Since(start),
	}, nil
}

// ExecBatch runs the statements in one transaction and returns the total
// number of affected rows. args may be shorter than queries.
func (d *DB) ExecBatch(ctx context.Context, queries []string, args [][]any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var affected int64
	err := pgx.BeginFunc(ctx, d.Pool, func(tx pgx.Tx) error {
		for i, q := range queries {
			var a []any
			if i < len(args) {
				a = args[i]
			}
			tag, err := tx.Exec(ctx, q, a...)
			if err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
			affected += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// normalizeValue maps pgx driver values onto the plain types the explorer
// compares: numbers become int64 or float64, uuids and byte strings become
// strings.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", x[0:4], x[4:6], x[6:8], x[8:10], x[10:16])
	case []byte:
		return string(x)
	case time.Time, int64, float64, bool, string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// oidToTypeName maps common PostgreSQL OIDs to human-readable type names.
func oidToTypeName(oid uint32) string {
	switch oid {
	case 16:
		return "bool"
	case 20:
		return "int8"
	case 21:
		return "int2"
	case 23:
		return "int4"
	case 25:
		return "text"
	case 700:
		return "float4"
	case 701:
		return "float8"
	case 1042:
		return "bpchar"
	case 1043:
		return "varchar"
	case 1082:
		return "date"
	case 1114:
		return "timestamp"
	case 1184:
		return "timestamptz"
	case 1700:
		return "numeric"
	case 2950:
		return "uuid"
	case 3802:
		return "jsonb"
	case 114:
		return "json"
	default:
		return fmt.Sprintf("oid:%d", oid)
	}
}
