package anomaly

import (
	"math"
	"testing"

	"github.com/KaramelBytes/statguard-cli/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureTable() *dataset.SummaryTable {
	nan, inf := math.NaN(), math.Inf(1)
	return &dataset.SummaryTable{
		Name:          "gene_de_stats_by_cell_type.csv",
		KeyColumn:     "cell_type",
		FeatureColumn: "gene",
		Statistics:    []string{"mean", "cv", "skew"},
		Rows: []dataset.SummaryRow{
			{Key: "NK cells", Feature: "A1BG", Values: []float64{1, 0, nan}},
			{Key: "NK cells", Feature: "A2M", Values: []float64{2, inf, 0}},
			{Key: "B cells", Feature: "A1BG", Values: []float64{3, -inf, nan}},
			{Key: "B cells", Feature: "A2M", Values: []float64{0, 0.5, 1}},
		},
		NonNumeric: map[string]int{},
	}
}

func TestScanCountsAndStatus(t *testing.T) {
	rep := Scan(fixtureTable(), nil, DefaultOptions())
	require.Len(t, rep.Columns, 3)
	assert.Equal(t, 4, rep.Rows)

	mean := rep.Columns[0]
	assert.Equal(t, Clean, mean.Status)
	assert.Equal(t, 4, mean.Total)
	assert.Equal(t, 0, mean.Invalid())
	assert.Equal(t, 1, mean.Zero)
	assert.Equal(t, 0.0, mean.Min.Value)
	assert.Equal(t, 3.0, mean.Max.Value)
	assert.InDelta(t, 1.5, mean.Mean.Value, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), mean.Std.Value, 1e-12)
	assert.Empty(t, mean.Unavailable)

	cv := rep.Columns[1]
	assert.Equal(t, Problematic, cv.Status)
	assert.Equal(t, 0, cv.NaN)
	assert.Equal(t, 1, cv.PosInf)
	assert.Equal(t, 1, cv.NegInf)
	assert.Equal(t, 1, cv.Zero)
	assert.False(t, cv.Mean.Available, "+Inf and -Inf have no mean")
	assert.False(t, cv.Std.Available)
	assert.True(t, cv.Min.Available)
	assert.True(t, math.IsInf(cv.Min.Value, -1))

	skew := rep.Columns[2]
	assert.Equal(t, Problematic, skew.Status)
	assert.Equal(t, 2, skew.NaN)
	assert.Equal(t, 50.0, skew.Pct(skew.NaN))
	assert.False(t, skew.ZeroHeavy)

	assert.Equal(t, []string{"cv", "skew"}, rep.Problematic())
}

func TestScanColumnEdgeCases(t *testing.T) {
	empty := ScanColumn("empty", nil, 0, DefaultOptions())
	assert.Equal(t, Clean, empty.Status)
	assert.Equal(t, 0.0, empty.Pct(empty.NaN), "percentages of an empty column are 0")
	assert.False(t, empty.Mean.Available)
	assert.Equal(t, "no numeric values", empty.Unavailable)
	assert.Equal(t, "unavailable", empty.Mean.String())

	single := ScanColumn("single", []float64{4}, 0, DefaultOptions())
	assert.True(t, single.Mean.Available)
	assert.False(t, single.Std.Available)
	assert.Contains(t, single.Unavailable, "at least two values")

	constant := ScanColumn("constant", []float64{0, 0, 0, 1}, 0, DefaultOptions())
	assert.True(t, constant.ZeroHeavy)
	assert.Equal(t, Clean, constant.Status)

	text := ScanColumn("text", []float64{math.NaN(), math.NaN(), 1}, 1, DefaultOptions())
	assert.Equal(t, 2, text.NaN, "non-numeric cells parse to NaN and are counted with it")
	assert.Equal(t, 1, text.NonNumeric)
	assert.Equal(t, Problematic, text.Status)
	assert.False(t, text.Min.Available)
	assert.Equal(t, "1 non-numeric values", text.Unavailable)
}

func TestScanStatusFollowsInvalidCounts(t *testing.T) {
	opt := DefaultOptions()
	cases := []struct {
		name       string
		values     []float64
		nonNumeric int
	}{
		{"text cell", []float64{math.NaN(), 2, 1}, 1},
		{"missing cell", []float64{math.NaN(), 2, 1}, 0},
		{"negative infinity", []float64{math.Inf(-1), 2, 1}, 0},
		{"finite", []float64{0, 2, 1}, 0},
	}
	for _, tc := range cases {
		c := ScanColumn(tc.name, tc.values, tc.nonNumeric, opt)
		want := Clean
		if c.NaN+c.PosInf+c.NegInf > 0 {
			want = Problematic
		}
		assert.Equal(t, want, c.Status, tc.name)
	}
	text := ScanColumn("text", []float64{math.NaN(), 2, 1}, 1, opt)
	assert.Equal(t, 1, text.NaN)
	assert.Equal(t, 1, text.Invalid())
	assert.Equal(t, Problematic, text.Status)
}

func TestScanMissingColumn(t *testing.T) {
	rep := Scan(fixtureTable(), []string{"median"}, Options{})
	require.Len(t, rep.Columns, 1)
	assert.Equal(t, "column not present", rep.Columns[0].Unavailable)
	assert.Equal(t, 0, rep.Columns[0].Total)
	assert.True(t, rep.Columns[0].Missing)
	assert.Equal(t, Problematic, rep.Columns[0].Status)
	assert.Equal(t, []string{"median"}, rep.Problematic())
}
