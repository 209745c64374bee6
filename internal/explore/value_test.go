package explore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDOfKeepsLargeIntegers(t *testing.T) {
	a := NewRow(int64(9007199254740993), nil)
	b := NewRow(int64(9007199254740992), nil)
	assert.Equal(t, RowID("9007199254740993"), a.ID)
	assert.Equal(t, RowID("9007199254740992"), b.ID)
	assert.NotEqual(t, a.ID, b.ID)

	assert.Equal(t, RowID("18446744073709551615"), IDOf(uint64(math.MaxUint64)))
	assert.Equal(t, RowID("-9223372036854775808"), IDOf(int64(math.MinInt64)))
	assert.Equal(t, RowID("-3"), IDOf(int8(-3)))
}

func TestStringifyLargeIntegers(t *testing.T) {
	assert.Equal(t, "1234567890123456789", Stringify(int64(1234567890123456789)))
	assert.Equal(t, "18446744073709551615", Stringify(uint64(math.MaxUint64)))
	assert.Equal(t, "-42", Stringify(int32(-42)))
}

func TestIntegerEqualityAndOrder(t *testing.T) {
	big := int64(9007199254740993)
	assert.True(t, valuesEqual(big, uint64(9007199254740993)))
	assert.False(t, valuesEqual(big, big-1))
	assert.True(t, valuesEqual(7, 7.0))

	assert.Equal(t, 1, compareDefined(big, big-1))
	assert.Equal(t, -1, compareDefined(int64(-1), uint64(math.MaxUint64)))
	assert.Equal(t, -1, compareDefined(int64(math.MinInt64), int64(-1)))
	assert.Equal(t, 1, compareDefined(int64(-1), int64(-2)))
	assert.Equal(t, 0, compareDefined(0, uint8(0)))
}

func TestSortLargeIntegerKeys(t *testing.T) {
	rows := []Row{
		NewRow(int64(9007199254740993), map[string]any{"id": int64(9007199254740993)}),
		NewRow(int64(9007199254740992), map[string]any{"id": int64(9007199254740992)}),
		NewRow(int64(9007199254740994), map[string]any{"id": int64(9007199254740994)}),
	}
	cols := []Column{{Key: "id", Sortable: true}}

	got := Sort(rows, &SortDescriptor{Key: "id"}, cols)
	require.Len(t, got, 3)
	assert.Equal(t, []RowID{"9007199254740992", "9007199254740993", "9007199254740994"}, ids(got))

	got = Filter(rows, "", ActiveFilters{"id": int64(9007199254740993)}, cols, nil)
	assert.Equal(t, []RowID{"9007199254740993"}, ids(got))
}
