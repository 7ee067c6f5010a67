// Package features expands per-group summary statistics into per-sample vectors aligned
// to a fixed feature vocabulary.
package features

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/statguard-cli/internal/dataset"
	"gonum.org/v1/gonum/mat"
)

// DefaultFill is used for features a group has no summary row for.
const DefaultFill = 0.0

// ErrUnknownStatistic is returned when a statistic is not a column of the summary table.
var ErrUnknownStatistic = errors.New("unknown statistic")

// DuplicatePolicy resolves repeated (group key, feature) rows in a summary table.
type DuplicatePolicy string

const (
	// DuplicateError rejects the table.
	DuplicateError DuplicatePolicy = "error"
	// DuplicateFirst keeps the earliest row in file order.
	DuplicateFirst DuplicatePolicy = "first"
	// DuplicateLast keeps the latest row in file order.
	DuplicateLast DuplicatePolicy = "last"
)

// ParseDuplicatePolicy accepts error|first|last (case-insensitive).
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DuplicateError, DuplicateFirst, DuplicateLast:
		return p, nil
	case "":
		return DuplicateError, nil
	default:
		return "", fmt.Errorf("invalid duplicate policy %q (use error, first or last)", s)
	}
}

// DuplicateEntryError reports a (group key, feature) pair that occurs more than once.
type DuplicateEntryError struct {
	Table     string
	Key       string
	Feature   string
	FirstRow  int
	SecondRow int
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("%s: duplicate entry for (%s, %s) at rows %d and %d",
		e.Table, e.Key, e.Feature, e.FirstRow+1, e.SecondRow+1)
}

// Index is a per-table lookup from group key to the summary row backing each
// vocabulary position. It is built once and shared by every statistic.
type Index struct {
	table *dataset.SummaryTable
	vocab *Vocabulary
	fill  float64
	// rows[key][j] is the table row for vocabulary position j, or -1.
	rows map[string][]int
	// Unaligned counts table rows whose feature is outside the vocabulary.
	Unaligned int
}

// NewIndex builds the lookup for t against vocab.
func NewIndex(t *dataset.SummaryTable, vocab *Vocabulary, policy DuplicatePolicy) (*Index, error) {
	if policy == "" {
		policy = DuplicateError
	}
	idx := &Index{table: t, vocab: vocab, fill: DefaultFill, rows: map[string][]int{}}
	for r, row := range t.Rows {
		j, ok := vocab.Position(row.Feature)
		if !ok {
			idx.Unaligned++
			continue
		}
		slots := idx.rows[row.Key]
		if slots == nil {
			slots = make([]int, vocab.Len())
			for i := range slots {
				slots[i] = -1
			}
			idx.rows[row.Key] = slots
		}
		if prev := slots[j]; prev >= 0 {
			switch policy {
			case DuplicateFirst:
				continue
			case DuplicateLast:
			default:
				return nil, &DuplicateEntryError{Table: t.Name, Key: row.Key, Feature: row.Feature, FirstRow: prev, SecondRow: r}
			}
		}
		slots[j] = r
	}
	return idx, nil
}

// WithFill returns a copy of the index that fills unmatched entries with v.
func (x *Index) WithFill(v float64) *Index {
	cp := *x
	cp.fill = v
	return &cp
}

// Fill is the value used for unmatched entries.
func (x *Index) Fill() float64 { return x.fill }

// Groups is the number of distinct group keys with at least one aligned row.
func (x *Index) Groups() int { return len(x.rows) }

// Has reports whether key matched any aligned row.
func (x *Index) Has(key string) bool {
	_, ok := x.rows[key]
	return ok
}

// Vector returns stat for group key, one entry per vocabulary feature. Unknown keys and
// unmatched features carry the fill value.
func (x *Index) Vector(stat, key string) ([]float64, error) {
	col, ok := x.table.StatIndex(stat)
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", x.table.Name, ErrUnknownStatistic, stat)
	}
	out := make([]float64, x.vocab.Len())
	x.fillVector(out, col, key)
	return out, nil
}

// Matrix stacks Vector(stat, key) for every key into an n×F matrix.
func (x *Index) Matrix(stat string, keys []string) (*mat.Dense, error) {
	col, ok := x.table.StatIndex(stat)
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", x.table.Name, ErrUnknownStatistic, stat)
	}
	if len(keys) == 0 {
		return nil, errors.New("no samples to materialize")
	}
	f := x.vocab.Len()
	data := make([]float64, len(keys)*f)
	for i, key := range keys {
		x.fillVector(data[i*f:(i+1)*f], col, key)
	}
	return mat.NewDense(len(keys), f, data), nil
}

func (x *Index) fillVector(dst []float64, col int, key string) {
	slots := x.rows[key]
	for j := range dst {
		if slots == nil || slots[j] < 0 {
			dst[j] = x.fill
			continue
		}
		dst[j] = x.table.Rows[slots[j]].Values[col]
	}
}
