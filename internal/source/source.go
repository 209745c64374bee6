// Package source loads datasets from Postgres, REST endpoints and local files
// and turns them into explorer rows. Loading, retry and error states live
// here; the explorer only ever sees a resolved slice.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"

	"cli-admin/internal/config"
	"cli-admin/internal/db"
	"cli-admin/internal/explore"
)

// ErrNoIDField is returned when no record carries the dataset's id field.
var ErrNoIDField = errors.New("no id field")

// Dataset is a loaded collection ready for a View.
type Dataset struct {
	Name    string
	Title   string
	Columns []explore.Column
	Filters []explore.FilterConfig
	Rows    []explore.Row
	Skipped int

	// Table and PrimaryKey are set for Postgres tables whose rows are keyed
	// by a single primary key column.
	Table      string
	PrimaryKey string
}

// Editable reports whether bulk changes can be committed back.
func (d *Dataset) Editable() bool {
	return d.Table != "" && d.PrimaryKey != ""
}

// Loader produces a dataset.
type Loader interface {
	Load(ctx context.Context) (*Dataset, error)
}

// Querier is the part of *db.DB the Postgres loader needs.
type Querier interface {
	LoadTable(ctx context.Context, table string, limit int) (*db.Table, error)
	LoadQuery(ctx context.Context, sql string) (*db.Table, error)
}

// Deps are the collaborators loaders are built with.
type Deps struct {
	// Connect resolves a saved connection name to a database.
	Connect func(ctx context.Context, connection string) (Querier, error)
	Client  *http.Client
	Getenv  func(string) string
	Logger  *zap.Logger
}

// New builds the loader for a configured dataset.
func New(spec *config.Dataset, deps Deps) (Loader, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("dataset", spec.Name))

	switch spec.Source.Kind {
	case config.SourcePostgres:
		if deps.Connect == nil {
			return nil, fmt.Errorf("dataset %s: no database connection", spec.Name)
		}
		return &Postgres{Spec: spec, Connect: deps.Connect, Logger: logger}, nil
	case config.SourceHTTP:
		getenv := deps.Getenv
		if getenv == nil {
			getenv = os.Getenv
		}
		client := deps.Client
		if client == nil {
			client = &http.Client{Timeout: 30 * time.Second}
		}
		var token string
		if spec.Source.TokenEnv != "" {
			token = getenv(spec.Source.TokenEnv)
		}
		return &HTTP{
			Spec:    spec,
			Client:  client,
			Token:   token,
			Retries: 3,
			Backoff: 250 * time.Millisecond,
			Logger:  logger,
		}, nil
	case config.SourceFile:
		return &File{Spec: spec, Logger: logger}, nil
	}
	return nil, fmt.Errorf("dataset %s: unknown source kind %q", spec.Name, spec.Source.Kind)
}

// idFunc extracts a record's id; ok is false when the record has none.
type idFunc func(map[string]any) (any, bool)

func fieldID(field string) idFunc {
	return func(rec map[string]any) (any, bool) {
		v, ok := rec[field]
		if !ok || explore.IsEmptyValue(v) {
			return nil, false
		}
		return v, true
	}
}

// assemble turns raw records into a dataset. Records without an id and
// repeated ids are skipped and counted.
func assemble(spec *config.Dataset, records []map[string]any, id idFunc, derived []explore.Column, logger *zap.Logger) (*Dataset, error) {
	ds := &Dataset{
		Name:    spec.Name,
		Title:   spec.Title,
		Filters: spec.ExploreFilters(),
		Rows:    make([]explore.Row, 0, len(records)),
	}

	if len(spec.Columns) > 0 {
		cols, err := spec.ExploreColumns()
		if err != nil {
			return nil, err
		}
		ds.Columns = cols
	} else {
		ds.Columns = derived
	}

	seen := make(map[explore.RowID]bool, len(records))
	for _, rec := range records {
		v, ok := id(rec)
		if !ok {
			ds.Skipped++
			continue
		}
		row := explore.NewRow(v, rec)
		if seen[row.ID] {
			logger.Warn("duplicate row id", zap.String("id", string(row.ID)))
			ds.Skipped++
			continue
		}
		seen[row.ID] = true
		ds.Rows = append(ds.Rows, row)
	}

	if len(records) > 0 && len(ds.Rows) == 0 {
		return nil, fmt.Errorf("dataset %s: %w %q in any of %d records", spec.Name, ErrNoIDField, spec.IDField, len(records))
	}
	if ds.Skipped > 0 {
		logger.Warn("records skipped", zap.Int("skipped", ds.Skipped), zap.String("id_field", spec.IDField))
	}
	return ds, nil
}

// deriveColumns lists every key seen in records, the id field first and the
// rest alphabetically.
func deriveColumns(records []map[string]any, idField string) []explore.Column {
	keys := map[string]bool{}
	for _, rec := range records {
		for k := range rec {
			keys[k] = true
		}
	}
	var rest []string
	for k := range keys {
		if k != idField {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)

	var cols []explore.Column
	if keys[idField] {
		cols = append(cols, explore.Column{Key: idField, Title: idField, Sortable: true, Filterable: true})
	}
	for _, k := range rest {
		cols = append(cols, explore.Column{Key: k, Title: k, Sortable: true, Filterable: true})
	}
	return cols
}

// recordsOf accepts a decoded document that is either an array of objects or
// an object holding one under "data".
func recordsOf(doc any) ([]map[string]any, error) {
	if m, ok := doc.(map[string]any); ok {
		data, ok := m["data"]
		if !ok {
			return nil, fmt.Errorf("expected an array or an object with a data array")
		}
		doc = data
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of records, got %T", doc)
	}
	out := make([]map[string]any, 0, len(items))
	for i, it := range items {
		rec, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		out = append(out, rec)
	}
	return out, nil
}
