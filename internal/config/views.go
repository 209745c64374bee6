package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"cli-admin/internal/explore"
)

// ErrUnknownDataset is returned when a dataset name is not configured.
var ErrUnknownDataset = errors.New("unknown dataset")

// Source kinds.
const (
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
	SourceFile     = "file"
)

const defaultLimit = 1000

var defaultPageSizes = []int{10, 25, 50, 100}

// Views is the views.yaml file: which datasets exist and how they are shown.
type Views struct {
	PageSize  int       `yaml:"page_size"`
	PageSizes []int     `yaml:"page_sizes"`
	LogFile   string    `yaml:"log_file"`
	Datasets  []Dataset `yaml:"datasets"`
}

// Dataset declares one explorable collection.
type Dataset struct {
	Name     string       `yaml:"name"`
	Title    string       `yaml:"title"`
	Source   Source       `yaml:"source"`
	IDField  string       `yaml:"id_field"`
	Sort     string       `yaml:"sort"`
	PageSize int          `yaml:"page_size"`
	Columns  []ColumnSpec `yaml:"columns"`
	Filters  []FilterSpec `yaml:"filters"`
}

// Source says where a dataset's rows come from.
type Source struct {
	Kind       string `yaml:"kind"`
	Connection string `yaml:"connection"`
	Table      string `yaml:"table"`
	Query      string `yaml:"query"`
	URL        string `yaml:"url"`
	TokenEnv   string `yaml:"token_env"`
	Path       string `yaml:"path"`
	Limit      int    `yaml:"limit"`
}

// ColumnSpec declares a column. Path is a dotted lookup into nested fields
// ("company.name"); Format is one of date, datetime, percent, bool.
type ColumnSpec struct {
	Key        string `yaml:"key"`
	Title      string `yaml:"title"`
	Path       string `yaml:"path"`
	Sortable   bool   `yaml:"sortable"`
	Filterable bool   `yaml:"filterable"`
	Format     string `yaml:"format"`
}

// FilterSpec declares a filter control.
type FilterSpec struct {
	Key     string       `yaml:"key"`
	Kind    string       `yaml:"kind"`
	Options []OptionSpec `yaml:"options"`
}

// OptionSpec is a select option. It may be written as a bare scalar or as a
// {label, value} mapping.
type OptionSpec struct {
	Label string `yaml:"label"`
	Value any    `yaml:"value"`
}

// UnmarshalYAML accepts both option spellings.
func (o *OptionSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var v any
		if err := node.Decode(&v); err != nil {
			return err
		}
		o.Value = v
		o.Label = explore.Stringify(v)
		return nil
	}
	type plain OptionSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*o = OptionSpec(p)
	if o.Label == "" {
		o.Label = explore.Stringify(o.Value)
	}
	return nil
}

// DefaultViewsPath returns ~/.config/cli-admin/views.yaml.
func DefaultViewsPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "views.yaml"), nil
}

// LoadViews reads and validates a views file. A missing file yields an empty
// set of datasets with default paging.
func LoadViews(path string) (*Views, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			v := &Views{}
			v.applyDefaults()
			return v, nil
		}
		return nil, fmt.Errorf("failed to read views: %w", err)
	}
	v, err := ParseViews(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ParseViews decodes and validates views YAML.
func ParseViews(data []byte) (*Views, error) {
	var v Views
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse views: %w", err)
	}
	v.applyDefaults()
	if err := v.validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Find returns the dataset with the given name.
func (v *Views) Find(name string) (*Dataset, error) {
	for i := range v.Datasets {
		if v.Datasets[i].Name == name {
			return &v.Datasets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, name)
}

// AddTables declares a postgres dataset for each table that has no dataset
// of the same name yet. It is used when no views file lists any datasets.
func (v *Views) AddTables(connection string, tables []string) {
	for _, t := range tables {
		if _, err := v.Find(t); err == nil {
			continue
		}
		v.Datasets = append(v.Datasets, Dataset{
			Name:   t,
			Source: Source{Kind: SourcePostgres, Connection: connection, Table: t},
		})
	}
	v.applyDefaults()
}

func (v *Views) applyDefaults() {
	if v.PageSize <= 0 {
		v.PageSize = explore.DefaultPageSize
	}
	if len(v.PageSizes) == 0 {
		v.PageSizes = append([]int(nil), defaultPageSizes...)
	}
	for i := range v.Datasets {
		d := &v.Datasets[i]
		if d.Title == "" {
			d.Title = d.Name
		}
		if d.IDField == "" {
			d.IDField = "id"
		}
		if d.PageSize <= 0 {
			d.PageSize = v.PageSize
		}
		if d.Source.Kind == SourcePostgres && d.Source.Limit <= 0 {
			d.Source.Limit = defaultLimit
		}
		for j := range d.Columns {
			if d.Columns[j].Title == "" {
				d.Columns[j].Title = d.Columns[j].Key
			}
		}
	}
}

func (v *Views) validate() error {
	for _, n := range v.PageSizes {
		if n <= 0 {
			return fmt.Errorf("page_sizes: %d is not positive", n)
		}
	}
	seen := make(map[string]bool, len(v.Datasets))
	for _, d := range v.Datasets {
		if d.Name == "" {
			return fmt.Errorf("dataset without a name")
		}
		if seen[d.Name] {
			return fmt.Errorf("dataset %q declared twice", d.Name)
		}
		seen[d.Name] = true
		if err := d.validate(); err != nil {
			return fmt.Errorf("dataset %q: %w", d.Name, err)
		}
	}
	return nil
}

func (d *Dataset) validate() error {
	switch d.Source.Kind {
	case SourcePostgres:
		if d.Source.Table == "" && d.Source.Query == "" {
			return fmt.Errorf("postgres source needs a table or a query")
		}
	case SourceHTTP:
		if d.Source.URL == "" {
			return fmt.Errorf("http source needs a url")
		}
	case SourceFile:
		if d.Source.Path == "" {
			return fmt.Errorf("file source needs a path")
		}
	default:
		return fmt.Errorf("unknown source kind %q", d.Source.Kind)
	}

	if _, err := d.ExploreColumns(); err != nil {
		return err
	}
	for _, f := range d.Filters {
		if f.Key == "" {
			return fmt.Errorf("filter without a key")
		}
		if _, err := explore.ParseFilterKind(f.Kind); err != nil {
			return fmt.Errorf("filter %q: %w", f.Key, err)
		}
	}
	if _, err := explore.ParseSort(d.Sort); err != nil {
		return err
	}
	return nil
}

// ExploreColumns builds the engine columns, wiring path accessors and
// formatters.
func (d *Dataset) ExploreColumns() ([]explore.Column, error) {
	cols := make([]explore.Column, 0, len(d.Columns))
	for _, spec := range d.Columns {
		c := explore.Column{
			Key:        spec.Key,
			Title:      spec.Title,
			Sortable:   spec.Sortable,
			Filterable: spec.Filterable,
		}
		if spec.Path != "" && spec.Path != spec.Key {
			c.Value = PathAccessor(spec.Path)
		}
		if spec.Format != "" {
			render, err := Formatter(spec.Format)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", spec.Key, err)
			}
			c.Render = render
		}
		cols = append(cols, c)
	}
	if err := explore.ValidateColumns(cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// ExploreFilters builds the engine filter declarations.
func (d *Dataset) ExploreFilters() []explore.FilterConfig {
	out := make([]explore.FilterConfig, 0, len(d.Filters))
	for _, f := range d.Filters {
		kind, _ := explore.ParseFilterKind(f.Kind)
		fc := explore.FilterConfig{Key: f.Key, Kind: kind}
		for _, o := range f.Options {
			fc.Options = append(fc.Options, explore.Option{Label: o.Label, Value: o.Value})
		}
		out = append(out, fc)
	}
	return out
}

// InitialSort returns the configured starting sort, nil when unset.
func (d *Dataset) InitialSort() *explore.SortDescriptor {
	s, _ := explore.ParseSort(d.Sort)
	return s
}

// PathAccessor returns a column accessor that walks nested maps by a dotted
// path. A missing segment yields nil.
func PathAccessor(path string) func(explore.Row) any {
	parts := strings.Split(path, ".")
	return func(r explore.Row) any {
		var cur any = r.Fields
		for _, p := range parts {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur, ok = m[p]
			if !ok {
				return nil
			}
		}
		return cur
	}
}
