package dataset

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnsupportedFormat indicates an input file type the loaders cannot read.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// LoadError wraps any failure to read an input table. Load failures are fatal for a run.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e == nil {
		return "load failed"
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Options controls how tables are read.
type Options struct {
	// Delimiter for CSV. If 0, chosen from the file extension (.tsv => tab, otherwise comma).
	Delimiter rune
	// FeatureColumn names the per-row feature identifier in summary tables.
	FeatureColumn string
	// Exclude lists summary columns that are neither keys nor statistics.
	Exclude []string
}

// DefaultOptions returns the options used for gene-level summary tables.
func DefaultOptions() Options {
	return Options{FeatureColumn: "gene"}
}

// SampleRecord is one row of the per-sample table. Only string fields are retained;
// the per-sample feature values are never read by the validator.
type SampleRecord struct {
	fields map[string]string
}

// Get returns the value of a retained column, or "" if absent.
func (r SampleRecord) Get(column string) string {
	return r.fields[column]
}

// NewSampleRecord builds a record from column/value pairs.
func NewSampleRecord(fields map[string]string) SampleRecord {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return SampleRecord{fields: cp}
}

// Samples is the main per-sample table.
type Samples struct {
	Name    string
	Columns []string
	Records []SampleRecord
}

// Keys returns the value of column for every record, in row order.
func (s *Samples) Keys(column string) []string {
	out := make([]string, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Get(column)
	}
	return out
}

// Vocabulary returns the non-metadata columns in file order.
func (s *Samples) Vocabulary(metadata []string) []string {
	skip := make(map[string]struct{}, len(metadata))
	for _, m := range metadata {
		skip[strings.TrimSpace(m)] = struct{}{}
	}
	var out []string
	for _, c := range s.Columns {
		if _, ok := skip[c]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SummaryRow holds the statistics of one (group key, feature) pair.
type SummaryRow struct {
	Key     string
	Feature string
	// Values is aligned with SummaryTable.Statistics. Missing cells are NaN.
	Values []float64
}

// SummaryTable is a group-level summary keyed by (KeyColumn, FeatureColumn).
type SummaryTable struct {
	Name          string
	KeyColumn     string
	FeatureColumn string
	Statistics    []string
	Rows          []SummaryRow
	// NonNumeric counts cells per statistic that held unparsable text.
	NonNumeric map[string]int
}

// StatIndex returns the position of stat within Statistics.
func (t *SummaryTable) StatIndex(stat string) (int, bool) {
	for i, s := range t.Statistics {
		if s == stat {
			return i, true
		}
	}
	return -1, false
}

// Column returns every row's value for stat, in row order.
func (t *SummaryTable) Column(stat string) ([]float64, bool) {
	idx, ok := t.StatIndex(stat)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[idx]
	}
	return out, true
}

// parseCell reads a statistic cell. Empty and NA-like tokens are missing (NaN).
// ok is false when the cell held text that is not a number.
func parseCell(s string) (v float64, ok bool) {
	raw := strings.TrimSpace(s)
	switch strings.ToLower(raw) {
	case "", "nan", "na", "n/a", "null", "none":
		return math.NaN(), true
	case "inf", "+inf", "infinity", "+infinity":
		return math.Inf(1), true
	case "-inf", "-infinity":
		return math.Inf(-1), true
	}
	f, err := parseFloat(raw)
	if err != nil {
		return math.NaN(), false
	}
	return f, true
}
