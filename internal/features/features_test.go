package features

import (
	"errors"
	"math"
	"testing"

	"github.com/KaramelBytes/statguard-cli/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func summary(rows ...dataset.SummaryRow) *dataset.SummaryTable {
	return &dataset.SummaryTable{
		Name:          "stats.csv",
		KeyColumn:     "cell_type",
		FeatureColumn: "gene",
		Statistics:    []string{"mean", "std"},
		Rows:          rows,
		NonNumeric:    map[string]int{},
	}
}

func mustVocab(t *testing.T, names ...string) *Vocabulary {
	t.Helper()
	v, err := NewVocabulary(names)
	require.NoError(t, err)
	return v
}

func TestVocabularyRejectsDuplicates(t *testing.T) {
	_, err := NewVocabulary([]string{"g1", "g2", "g1"})
	require.Error(t, err)
	_, err = NewVocabulary(nil)
	require.Error(t, err)

	v := mustVocab(t, "g1", "g2")
	assert.Equal(t, 2, v.Len())
	pos, ok := v.Position("g2")
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
}

func TestVectorAlignsToVocabulary(t *testing.T) {
	tbl := summary(
		dataset.SummaryRow{Key: "A", Feature: "g2", Values: []float64{5.0, 1.0}},
		dataset.SummaryRow{Key: "B", Feature: "g1", Values: []float64{7.0, 2.0}},
		dataset.SummaryRow{Key: "A", Feature: "g9", Values: []float64{9.0, 9.0}},
	)
	idx, err := NewIndex(tbl, mustVocab(t, "g1", "g2", "g3"), DuplicateError)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Unaligned)
	assert.Equal(t, 2, idx.Groups())

	v, err := idx.Vector("mean", "A")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.0, 5.0, 0.0}, v)

	v, err = idx.Vector("std", "B")
	require.NoError(t, err)
	assert.Equal(t, []float64{2.0, 0.0, 0.0}, v)
}

func TestVectorUnknownKeyIsAllDefault(t *testing.T) {
	tbl := summary(dataset.SummaryRow{Key: "A", Feature: "g1", Values: []float64{1, 1}})
	vocab := mustVocab(t, "g1", "g2", "g3", "g4", "g5")
	idx, err := NewIndex(tbl, vocab, DuplicateError)
	require.NoError(t, err)
	assert.False(t, idx.Has("unseen"))

	v, err := idx.Vector("mean", "unseen")
	require.NoError(t, err)
	require.Len(t, v, vocab.Len())
	for _, x := range v {
		assert.Equal(t, DefaultFill, x)
	}

	v, err = idx.WithFill(-1).Vector("mean", "unseen")
	require.NoError(t, err)
	assert.Equal(t, -1.0, v[0])
}

func TestVectorUnknownStatistic(t *testing.T) {
	idx, err := NewIndex(summary(), mustVocab(t, "g1"), DuplicateError)
	require.NoError(t, err)
	_, err = idx.Vector("median", "A")
	assert.True(t, errors.Is(err, ErrUnknownStatistic))
	_, err = idx.Matrix("median", []string{"A"})
	assert.True(t, errors.Is(err, ErrUnknownStatistic))
}

func TestDuplicatePolicies(t *testing.T) {
	tbl := summary(
		dataset.SummaryRow{Key: "A", Feature: "g1", Values: []float64{1, 0}},
		dataset.SummaryRow{Key: "A", Feature: "g1", Values: []float64{2, 0}},
	)
	vocab := mustVocab(t, "g1")

	_, err := NewIndex(tbl, vocab, DuplicateError)
	var dup *DuplicateEntryError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, 0, dup.FirstRow)
	assert.Equal(t, 1, dup.SecondRow)
	assert.Contains(t, err.Error(), "duplicate entry for (A, g1) at rows 1 and 2")

	first, err := NewIndex(tbl, vocab, DuplicateFirst)
	require.NoError(t, err)
	v, _ := first.Vector("mean", "A")
	assert.Equal(t, []float64{1}, v)

	last, err := NewIndex(tbl, vocab, DuplicateLast)
	require.NoError(t, err)
	v, _ = last.Vector("mean", "A")
	assert.Equal(t, []float64{2}, v)

	p, err := ParseDuplicatePolicy(" LAST ")
	require.NoError(t, err)
	assert.Equal(t, DuplicateLast, p)
	_, err = ParseDuplicatePolicy("random")
	assert.Error(t, err)
}

func TestMatrixStacksSamples(t *testing.T) {
	tbl := summary(
		dataset.SummaryRow{Key: "A", Feature: "g1", Values: []float64{1, 0}},
		dataset.SummaryRow{Key: "B", Feature: "g2", Values: []float64{math.Inf(1), 0}},
	)
	idx, err := NewIndex(tbl, mustVocab(t, "g1", "g2"), DuplicateError)
	require.NoError(t, err)
	m, err := idx.Matrix("mean", []string{"A", "B", "A", "C"})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, []float64{1, 0}, mat.Row(nil, 2, m))
	assert.Equal(t, []float64{0, 0}, mat.Row(nil, 3, m))
	assert.Equal(t, Invalid{Inf: 1}, CountInvalid(m))

	_, err = idx.Matrix("mean", nil)
	assert.Error(t, err)
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := [][]float64{
		{},
		{1, 2, 3},
		{math.NaN(), math.Inf(1), math.Inf(-1), -0.5, 0},
		{math.MaxFloat64, -math.MaxFloat64, math.SmallestNonzeroFloat64},
	}
	for _, x := range inputs {
		once := Sanitize(x, DefaultFill)
		twice := Sanitize(once, DefaultFill)
		assert.Equal(t, once, twice)
		require.Len(t, once, len(x))
		for i, v := range once {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			if !math.IsNaN(x[i]) && !math.IsInf(x[i], 0) {
				assert.Equal(t, x[i], v, "finite entries pass through")
			}
		}
	}
	assert.Equal(t, []float64{0, 0, 0, -0.5, 0}, Sanitize(inputs[2], 0))
}

func TestSanitizeDense(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{math.NaN(), 1, math.Inf(-1), 2})
	before := CountInvalid(m)
	assert.Equal(t, 1, before.NaN)
	assert.Equal(t, 1, before.Inf)
	assert.Equal(t, 2, before.Total())

	clean := SanitizeDense(m, 0)
	assert.Equal(t, Invalid{}, CountInvalid(clean))
	assert.Equal(t, []float64{0, 1, 0, 2}, clean.RawMatrix().Data)
	assert.True(t, math.IsNaN(m.At(0, 0)), "input is not modified")
	assert.True(t, mat.Equal(clean, SanitizeDense(clean, 0)))
}
