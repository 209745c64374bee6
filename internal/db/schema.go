package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const schemaTimeout = 10 * time.Second

const (
	tablesSQL = `SELECT table_name FROM information_schema.tables
WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
ORDER BY table_name`

	primaryKeysSQL = `SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = 'public' AND tc.table_name = $1
ORDER BY kcu.ordinal_position`

	columnsSQL = `SELECT column_name, data_type, is_nullable = 'YES', column_default
FROM information_schema.columns
WHERE table_schema = 'public' AND table_name = $1
ORDER BY ordinal_position`
)

// ColumnInfo describes one column of a public table.
type ColumnInfo struct {
	Name     string
	DataType string
	Nullable bool
	Default  *string
}

// ListTables returns the public base tables by name. The browser offers them
// as datasets when the views file declares none.
func (d *DB) ListTables(ctx context.Context) ([]string, error) {
	return d.names(ctx, tablesSQL)
}

// GetPrimaryKeys returns a table's primary key columns in key order.
func (d *DB) GetPrimaryKeys(ctx context.Context, table string) ([]string, error) {
	return d.names(ctx, primaryKeysSQL, table)
}

// GetColumns returns a table's columns in ordinal order; none means the
// table does not exist.
func (d *DB) GetColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()

	rows, err := d.Pool.Query(ctx, columnsSQL, table)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[ColumnInfo])
}

func (d *DB) names(ctx context.Context, sql string, args ...any) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()

	rows, err := d.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
