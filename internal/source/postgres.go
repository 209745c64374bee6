package source

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"cli-admin/internal/config"
	"cli-admin/internal/db"
	"cli-admin/internal/explore"
)

// Postgres loads a bounded table snapshot or the result of a SELECT.
type Postgres struct {
	Spec    *config.Dataset
	Connect func(ctx context.Context, connection string) (Querier, error)
	Logger  *zap.Logger
}

// Load implements Loader.
func (p *Postgres) Load(ctx context.Context) (*Dataset, error) {
	q, err := p.Connect(ctx, p.Spec.Source.Connection)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", p.Spec.Source.Connection, err)
	}

	var t *db.Table
	if p.Spec.Source.Query != "" {
		t, err = q.LoadQuery(ctx, p.Spec.Source.Query)
	} else {
		t, err = q.LoadTable(ctx, p.Spec.Source.Table, p.Spec.Source.Limit)
	}
	if err != nil {
		return nil, err
	}

	id, pk, err := tableID(t, p.Spec.IDField)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", p.Spec.Name, err)
	}
	ds, err := assemble(p.Spec, t.Rows, id, tableColumns(t), p.Logger)
	if err != nil {
		return nil, err
	}
	if t.Name != "" && pk != "" {
		ds.Table = t.Name
		ds.PrimaryKey = pk
	}
	p.Logger.Info("dataset loaded",
		zap.String("table", t.Name),
		zap.Int("rows", len(ds.Rows)),
		zap.Duration("took", t.ExecTime))
	return ds, nil
}

// tableID picks the row id: the configured field when the result has it,
// otherwise the primary key, joining composite keys with "/". pk is the
// single key column usable for bulk changes, empty when there is none.
func tableID(t *db.Table, idField string) (id idFunc, pk string, err error) {
	if slices.Contains(t.Columns, idField) {
		if len(t.PrimaryKeys) == 1 && t.PrimaryKeys[0] == idField {
			pk = idField
		}
		return fieldID(idField), pk, nil
	}
	switch len(t.PrimaryKeys) {
	case 0:
		return nil, "", fmt.Errorf("%w %q and no primary key", ErrNoIDField, idField)
	case 1:
		return fieldID(t.PrimaryKeys[0]), t.PrimaryKeys[0], nil
	}
	keys := t.PrimaryKeys
	return func(rec map[string]any) (any, bool) {
		parts := make([]string, len(keys))
		for i, k := range keys {
			v, ok := rec[k]
			if !ok || v == nil {
				return nil, false
			}
			parts[i] = explore.Stringify(v)
		}
		return strings.Join(parts, "/"), true
	}, "", nil
}

// tableColumns derives columns from the result set, formatting temporal and
// boolean types.
func tableColumns(t *db.Table) []explore.Column {
	cols := make([]explore.Column, len(t.Columns))
	for i, name := range t.Columns {
		c := explore.Column{Key: name, Title: name, Sortable: true, Filterable: true}
		var format string
		if i < len(t.ColumnTypes) {
			switch t.ColumnTypes[i] {
			case "timestamp", "timestamptz":
				format = "datetime"
			case "date":
				format = "date"
			case "bool":
				format = "bool"
			}
		}
		if format != "" {
			c.Render, _ = config.Formatter(format)
		}
		cols[i] = c
	}
	return cols
}
