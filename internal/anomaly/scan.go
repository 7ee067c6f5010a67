// Package anomaly counts missing and non-finite values in summary-table statistic
// columns and computes their descriptive statistics.
package anomaly

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/statguard-cli/internal/dataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Status is the scan verdict for a column.
type Status string

const (
	Clean       Status = "clean"
	Problematic Status = "problematic"
)

// Options controls scan annotations.
type Options struct {
	// ZeroHeavyFraction marks columns whose zero share reaches this value. 0 disables it.
	ZeroHeavyFraction float64
}

// DefaultOptions returns the standard scan options.
func DefaultOptions() Options {
	return Options{ZeroHeavyFraction: 0.5}
}

// Aggregate is a descriptive statistic that may be unavailable.
type Aggregate struct {
	Value     float64
	Available bool
}

func available(v float64) Aggregate { return Aggregate{Value: v, Available: true} }

func (a Aggregate) String() string {
	if !a.Available {
		return "unavailable"
	}
	return fmt.Sprintf("%.4g", a.Value)
}

// ColumnReport captures counts and statistics for one statistic column.
type ColumnReport struct {
	Name  string
	Total int
	// NaN includes the NonNumeric cells, which parse to NaN.
	NaN        int
	PosInf     int
	NegInf     int
	Zero       int
	NonNumeric int
	Min        Aggregate
	Max        Aggregate
	Mean       Aggregate
	Std        Aggregate
	// Unavailable explains why one or more aggregates could not be computed.
	Unavailable string
	ZeroHeavy   bool
	// Missing marks a requested column the table does not have.
	Missing bool
	Status  Status
}

// Invalid is the number of NaN and infinite entries.
func (c ColumnReport) Invalid() int { return c.NaN + c.PosInf + c.NegInf }

// Pct returns n as a percentage of Total, or 0 for an empty column.
func (c ColumnReport) Pct(n int) float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(c.Total)
}

// Report is the scan result for one summary table.
type Report struct {
	Table     string
	KeyColumn string
	Rows      int
	Columns   []ColumnReport
}

// Problematic lists the names of columns flagged problematic, in scan order.
func (r *Report) Problematic() []string {
	var out []string
	for _, c := range r.Columns {
		if c.Status == Problematic {
			out = append(out, c.Name)
		}
	}
	return out
}

// Scan inspects the given statistic columns of t. A nil columns slice scans every statistic.
func Scan(t *dataset.SummaryTable, columns []string, opt Options) *Report {
	if columns == nil {
		columns = t.Statistics
	}
	rep := &Report{Table: t.Name, KeyColumn: t.KeyColumn, Rows: len(t.Rows)}
	for _, name := range columns {
		values, ok := t.Column(name)
		if !ok {
			rep.Columns = append(rep.Columns, ColumnReport{
				Name:        name,
				Missing:     true,
				Status:      Problematic,
				Unavailable: "column not present",
			})
			continue
		}
		rep.Columns = append(rep.Columns, ScanColumn(name, values, t.NonNumeric[name], opt))
	}
	return rep
}

// ScanColumn computes counts and aggregates for one column. nonNumeric is the number of
// NaN entries that came from unparsable text rather than missing cells; they stay in the
// NaN count.
func ScanColumn(name string, values []float64, nonNumeric int, opt Options) ColumnReport {
	c := ColumnReport{Name: name, Total: len(values), NonNumeric: nonNumeric}
	finiteOrInf := make([]float64, 0, len(values))
	for _, v := range values {
		switch {
		case math.IsNaN(v):
			c.NaN++
			continue
		case math.IsInf(v, 1):
			c.PosInf++
		case math.IsInf(v, -1):
			c.NegInf++
		case v == 0:
			c.Zero++
		}
		finiteOrInf = append(finiteOrInf, v)
	}

	var reasons []string
	switch {
	case nonNumeric > 0:
		reasons = append(reasons, fmt.Sprintf("%d non-numeric values", nonNumeric))
	case len(finiteOrInf) == 0:
		reasons = append(reasons, "no numeric values")
	default:
		c.Min = available(floats.Min(finiteOrInf))
		c.Max = available(floats.Max(finiteOrInf))
		mean, std := stat.MeanStdDev(finiteOrInf, nil)
		if math.IsNaN(mean) {
			reasons = append(reasons, "mean undefined (opposite infinities)")
		} else {
			c.Mean = available(mean)
		}
		switch {
		case len(finiteOrInf) < 2:
			reasons = append(reasons, "std needs at least two values")
		case math.IsNaN(std) || math.IsInf(std, 0):
			reasons = append(reasons, "std undefined (infinite values)")
		default:
			c.Std = available(std)
		}
	}
	c.Unavailable = strings.Join(reasons, "; ")

	if opt.ZeroHeavyFraction > 0 && c.Total > 0 && float64(c.Zero)/float64(c.Total) >= opt.ZeroHeavyFraction {
		c.ZeroHeavy = true
	}
	c.Status = Clean
	if c.Invalid() > 0 {
		c.Status = Problematic
	}
	return c
}
