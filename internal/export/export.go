// Package export writes explorer rows as CSV, JSON or Parquet.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"

	"cli-admin/internal/explore"
)

// ErrUnsupportedFormat is returned for unknown export format names.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format represents the supported export formats
type Format int

const (
	FormatCSV Format = iota
	FormatJSON
	FormatParquet
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatParquet:
		return "parquet"
	default:
		return "csv"
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + f.String()
}

// ParseFormat maps a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "parquet", "pq":
		return FormatParquet, nil
	}
	return FormatCSV, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatForPath picks the format from a file extension, defaulting to CSV.
func FormatForPath(path string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return FormatCSV
	}
	return f
}

// Write encodes rows in the given format. Values come from the column
// accessors, so nested paths export as they are shown.
func Write(w io.Writer, f Format, columns []explore.Column, rows []explore.Row) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, columns, rows)
	case FormatJSON:
		return writeJSON(w, columns, rows)
	case FormatParquet:
		return writeParquet(w, columns, rows)
	}
	return fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(f))
}

func writeCSV(w io.Writer, columns []explore.Column, rows []explore.Row) error {
	writer := csv.NewWriter(w)

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.Key
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(columns))
	for _, r := range rows {
		for i, c := range columns {
			v, _ := c.ValueOf(r)
			record[i] = explore.Stringify(v)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeJSON(w io.Writer, columns []explore.Column, rows []explore.Row) error {
	records := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		rec := make(map[string]any, len(columns))
		for _, c := range columns {
			v, _ := c.ValueOf(r)
			rec[c.Key] = v
		}
		records = append(records, rec)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeParquet(w io.Writer, columns []explore.Column, rows []explore.Row) error {
	schema := inferSchema(columns, rows)

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()

	for _, r := range rows {
		for i, c := range columns {
			v, _ := c.ValueOf(r)
			appendValue(builder.Field(i), v)
		}
	}
	record := builder.NewRecord()
	defer record.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// inferSchema picks one Arrow type per column from its non-nil values: int64
// when all are integers, float64 when all are numbers, bool, timestamp, and
// string otherwise. Every field is nullable.
func inferSchema(columns []explore.Column, rows []explore.Row) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c.Key, Type: inferType(c, rows), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

type kind int

const (
	kindNone kind = iota
	kindInt
	kindFloat
	kindBool
	kindTime
	kindString
)

func kindOf(v any) kind {
	switch x := v.(type) {
	case nil:
		return kindNone
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return kindInt
	case float32:
		return kindFloat
	case float64:
		if x == float64(int64(x)) {
			return kindInt
		}
		return kindFloat
	case bool:
		return kindBool
	case time.Time:
		return kindTime
	}
	return kindString
}

func inferType(c explore.Column, rows []explore.Row) arrow.DataType {
	seen := kindNone
	for _, r := range rows {
		v, _ := c.ValueOf(r)
		k := kindOf(v)
		switch {
		case k == kindNone || k == seen:
		case seen == kindNone:
			seen = k
		case (seen == kindInt && k == kindFloat) || (seen == kindFloat && k == kindInt):
			seen = kindFloat
		default:
			return arrow.BinaryTypes.String
		}
	}
	switch seen {
	case kindInt:
		return arrow.PrimitiveTypes.Int64
	case kindFloat:
		return arrow.PrimitiveTypes.Float64
	case kindBool:
		return arrow.FixedWidthTypes.Boolean
	case kindTime:
		return timestampType
	}
	return arrow.BinaryTypes.String
}

func appendValue(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch fb := b.(type) {
	case *array.Int64Builder:
		switch n := v.(type) {
		case int64:
			fb.Append(n)
		case int:
			fb.Append(int64(n))
		default:
			f, _ := asFloat(v)
			fb.Append(int64(f))
		}
	case *array.Float64Builder:
		f, _ := asFloat(v)
		fb.Append(f)
	case *array.BooleanBuilder:
		fb.Append(v.(bool))
	case *array.TimestampBuilder:
		ts, err := arrow.TimestampFromTime(v.(time.Time), arrow.Microsecond)
		if err != nil {
			fb.AppendNull()
			return
		}
		fb.Append(ts)
	case *array.StringBuilder:
		fb.Append(explore.Stringify(v))
	default:
		b.AppendNull()
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
