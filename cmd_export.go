package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cli-admin/internal/config"
	"cli-admin/internal/explore"
	"cli-admin/internal/export"
	"cli-admin/internal/source"
)

var (
	exportQuery   string
	exportFilters []string
	exportSort    string
	exportFormat  string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export DATASET",
	Short: "Write a dataset's filtered rows as CSV, JSON or Parquet",
	Long: `Load a dataset, apply the same search, filters and sort the browser
would, and write every matching row (not just one page).

Examples:
  cli-admin export contacts --filter status=active --sort name
  cli-admin export orders --query acme --format parquet --out orders.parquet
  cli-admin export audit --out audit.json.zst

A .gz or .zst suffix on --out compresses the file.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportQuery, "query", "q", "", "Search text matched against every column")
	exportCmd.Flags().StringArrayVarP(&exportFilters, "filter", "f", nil, "Filter as key=value (repeatable)")
	exportCmd.Flags().StringVarP(&exportSort, "sort", "s", "", "Sort as key or key:desc (default: the dataset's sort)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "csv, json or parquet (default: from --out, else csv)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file, .gz or .zst compresses (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	spec, err := views.Find(args[0])
	if err != nil {
		return err
	}

	toFile := exportOut != "" && exportOut != "-"
	compression, inner := export.CompressionForPath(exportOut)
	format := export.FormatCSV
	switch {
	case exportFormat != "":
		if format, err = export.ParseFormat(exportFormat); err != nil {
			return err
		}
	case toFile:
		format = export.FormatForPath(inner)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	conns := newConnections(cfg, uri, logger)
	defer conns.Close()

	loader, err := source.New(spec, source.Deps{Connect: conns.Querier, Logger: logger})
	if err != nil {
		return err
	}
	ds, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", spec.Name, err)
	}

	v, err := explore.NewView(ds.Columns, ds.Filters, explore.WithSort(spec.InitialSort()))
	if err != nil {
		return err
	}
	v.SetRows(ds.Rows)
	v.SetQuery(exportQuery)
	for _, f := range exportFilters {
		key, value, err := parseFilterFlag(f, ds.Filters)
		if err != nil {
			return err
		}
		v.SetFilter(key, value)
	}
	if exportSort != "" {
		desc, err := explore.ParseSort(exportSort)
		if err != nil {
			return err
		}
		v.SetSort(desc)
	}
	rows := v.Filtered()

	var out io.Writer = cmd.OutOrStdout()
	if toFile {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer f.Close()
		out = f
	}
	w, err := export.NewWriter(out, compression)
	if err != nil {
		return err
	}
	if err := export.Write(w, format, ds.Columns, rows); err != nil {
		return fmt.Errorf("export %s: %w", spec.Name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("export %s: %w", spec.Name, err)
	}

	logger.Info("exported",
		zap.String("dataset", spec.Name),
		zap.String("format", format.String()),
		zap.Int("compression", int(compression)),
		zap.Int("rows", len(rows)),
		zap.Int("skipped", ds.Skipped),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

var errBadFilter = errors.New("filter must be key=value")

// parseFilterFlag turns "key=value" into a filter value. Select filters map
// the text to the matching option's value, number filters parse a float, and
// everything else stays text.
func parseFilterFlag(s string, filters []explore.FilterConfig) (string, any, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("%w: %q", errBadFilter, s)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return key, nil, nil
	}

	fc, declared := explore.FindFilter(filters, key)
	if !declared {
		return key, raw, nil
	}
	switch fc.Kind {
	case explore.FilterSelect:
		for _, o := range fc.Options {
			if explore.Stringify(o.Value) == raw || strings.EqualFold(o.Label, raw) {
				return key, o.Value, nil
			}
		}
		return "", nil, fmt.Errorf("filter %s: %q is not one of its options", key, raw)
	case explore.FilterNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", nil, fmt.Errorf("filter %s: %q is not a number", key, raw)
		}
		return key, n, nil
	}
	return key, raw, nil
}
