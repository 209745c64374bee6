package explore

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Stringify is the text form of a value used by search, string filters and
// the default renderer. nil renders as "".
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	if n, ok := toInteger(v); ok {
		return n.String()
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
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
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// integer holds any Go integer value exactly as a sign and magnitude, so
// int64 and uint64 ids beyond 2^53 keep their identity.
type integer struct {
	neg bool
	mag uint64
}

func toInteger(v any) (integer, bool) {
	switch n := v.(type) {
	case int:
		return signed(int64(n)), true
	case int8:
		return signed(int64(n)), true
	case int16:
		return signed(int64(n)), true
	case int32:
		return signed(int64(n)), true
	case int64:
		return signed(n), true
	case uint:
		return integer{mag: uint64(n)}, true
	case uint8:
		return integer{mag: uint64(n)}, true
	case uint16:
		return integer{mag: uint64(n)}, true
	case uint32:
		return integer{mag: uint64(n)}, true
	case uint64:
		return integer{mag: n}, true
	}
	return integer{}, false
}

func signed(n int64) integer {
	if n < 0 {
		// -(n+1) cannot overflow for math.MinInt64.
		return integer{neg: true, mag: uint64(-(n + 1)) + 1}
	}
	return integer{mag: uint64(n)}
}

func (n integer) String() string {
	s := strconv.FormatUint(n.mag, 10)
	if n.neg {
		return "-" + s
	}
	return s
}

func (n integer) compare(o integer) int {
	switch {
	case n.neg && !o.neg:
		return -1
	case !n.neg && o.neg:
		return 1
	case n.neg:
		return cmp.Compare(o.mag, n.mag)
	}
	return cmp.Compare(n.mag, o.mag)
}

// bothIntegers returns the ordering of a and b when both are Go integers.
func bothIntegers(a, b any) (int, bool) {
	ia, ok := toInteger(a)
	if !ok {
		return 0, false
	}
	ib, ok := toInteger(b)
	if !ok {
		return 0, false
	}
	return ia.compare(ib), true
}

// valuesEqual is exact equality with numeric normalisation across Go types.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := bothIntegers(a, b); ok {
		return c == 0
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	switch a.(type) {
	case string, bool:
		return a == b
	}
	return Stringify(a) == Stringify(b)
}

// compareDefined orders two non-nil values.
func compareDefined(a, b any) int {
	if c, ok := bothIntegers(a, b); ok {
		return c
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp.Compare(fa, fb)
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(Stringify(a), Stringify(b))
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func sortStrings(s []string) {
	slices.Sort(s)
}
