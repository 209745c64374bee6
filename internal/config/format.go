package config

import (
	"fmt"
	"strconv"
	"time"

	"cli-admin/internal/explore"
)

// Formatter returns the column renderer for a format name.
func Formatter(name string) (func(any, explore.Row) string, error) {
	switch name {
	case "date":
		return timeFormat("2006-01-02"), nil
	case "datetime":
		return timeFormat("2006-01-02 15:04"), nil
	case "percent":
		return func(v any, _ explore.Row) string {
			f, ok := asFloat(v)
			if !ok {
				return explore.Stringify(v)
			}
			return strconv.FormatFloat(f*100, 'f', 0, 64) + "%"
		}, nil
	case "bool":
		return func(v any, _ explore.Row) string {
			switch x := v.(type) {
			case nil:
				return ""
			case bool:
				if x {
					return "yes"
				}
				return "no"
			}
			return explore.Stringify(v)
		}, nil
	}
	return nil, fmt.Errorf("unknown format %q", name)
}

func timeFormat(layout string) func(any, explore.Row) string {
	return func(v any, _ explore.Row) string {
		switch x := v.(type) {
		case time.Time:
			if x.IsZero() {
				return ""
			}
			return x.Format(layout)
		case string:
			for _, in := range []string{time.RFC3339Nano, "2006-01-02"} {
				if t, err := time.Parse(in, x); err == nil {
					return t.Format(layout)
				}
			}
		}
		return explore.Stringify(v)
	}
}

func asFloat(v any) (float64, bool) {
	switch v.(type) {
	case nil, bool, time.Time:
		return 0, false
	}
	f, err := strconv.ParseFloat(explore.Stringify(v), 64)
	return f, err == nil
}
