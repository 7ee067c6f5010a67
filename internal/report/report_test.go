package report

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/KaramelBytes/statguard-cli/internal/anomaly"
	"github.com/KaramelBytes/statguard-cli/internal/features"
	"github.com/KaramelBytes/statguard-cli/internal/pipeline"
	"github.com/KaramelBytes/statguard-cli/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() *pipeline.Results {
	rs := pipeline.NewResults()
	rs.Add(&pipeline.StatResult{
		Statistic: "mean",
		Stage:     pipeline.Safe,
		Groups: []pipeline.GroupOutcome{
			{Group: "cell_type", Rows: 6, Cols: 4, Probe: probe.Result{OK: true, Rows: 6, Cols: 4, Components: 4, Explained: 0.9876}},
			{Group: "sm_name", Rows: 6, Cols: 4, Probe: probe.Result{OK: true, Rows: 6, Cols: 4, Components: 4, Explained: 1}},
		},
	})
	failure := errors.New("input contains NaN or infinity")
	rs.Add(&pipeline.StatResult{
		Statistic: "cv",
		Stage:     pipeline.Problematic,
		FailedAt:  pipeline.Probing,
		Groups: []pipeline.GroupOutcome{
			{Group: "cell_type", Rows: 6, Cols: 4, Before: features.Invalid{Inf: 2}, After: features.Invalid{Inf: 2}, Probe: probe.Result{Err: failure}},
			{Group: "sm_name", Rows: 6, Cols: 4, Probe: probe.Result{OK: true, Rows: 6, Cols: 4, Components: 4, Explained: 1}},
		},
		Err: &pipeline.StageError{Statistic: "cv", Group: "cell_type", Stage: pipeline.Probing, Err: failure},
	})
	return rs
}

func TestRenderScanSection(t *testing.T) {
	rep := &anomaly.Report{Table: "stats_by_cell_type.csv", KeyColumn: "cell_type", Rows: 4}
	rep.Columns = append(rep.Columns,
		anomaly.ScanColumn("mean", []float64{0, 0, 0, 1}, 0, anomaly.DefaultOptions()),
		anomaly.ScanColumn("cv", []float64{1, math.NaN(), math.Inf(1), 2}, 0, anomaly.DefaultOptions()),
	)
	var b bytes.Buffer
	require.NoError(t, RenderScan(&b, rep))
	out := b.String()

	assert.Contains(t, out, "[ANOMALY SCAN: stats_by_cell_type.csv]")
	assert.Contains(t, out, "- mean: clean")
	assert.Contains(t, out, "⚠ zero-heavy: 75.0% zeros")
	assert.Contains(t, out, "- cv: PROBLEMATIC")
	assert.Contains(t, out, "NaN 1 (25.00%)")
	assert.Contains(t, out, "+Inf 1 (25.00%)")
	assert.Contains(t, out, "unavailable: ")
	// A buffer is not a terminal, so no escape sequences are emitted.
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderScanNonNumericAndMissing(t *testing.T) {
	rep := &anomaly.Report{Table: "stats.csv", KeyColumn: "sm_name", Rows: 3}
	rep.Columns = append(rep.Columns,
		anomaly.ScanColumn("std", []float64{math.NaN(), 2, 1}, 1, anomaly.DefaultOptions()),
		anomaly.ColumnReport{Name: "meen", Missing: true, Status: anomaly.Problematic, Unavailable: "column not present"},
	)
	var b bytes.Buffer
	require.NoError(t, RenderScan(&b, rep))
	out := b.String()
	assert.Contains(t, out, "NaN 1 (33.33%), of which non-numeric 1")
	assert.Contains(t, out, "- meen: PROBLEMATIC (column not present)")
}

func TestOneLineTruncatesByRune(t *testing.T) {
	s := strings.Repeat("é", 200)
	got := oneLine(s)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxErrorWidth, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "a; b", oneLine("a\nb"))
}

func TestRenderFullReport(t *testing.T) {
	r := &Report{
		RunID:      "0b5c3d8e-run",
		Samples:    "de_train.csv",
		SampleRows: 6,
		Vocabulary: 4,
		Groups:     []string{"cell_type", "sm_name"},
		Sanitized:  true,
		Components: 128,
		Results:    sampleResults(),
	}
	out := r.String()

	for _, section := range []string{"[RUN]", "[PROBES]", "[SUMMARY]", "[CLASSIFICATION]", "[RECOMMENDATIONS]"} {
		assert.Contains(t, out, section)
	}
	assert.Less(t, strings.Index(out, "[PROBES]"), strings.Index(out, "[SUMMARY]"))
	assert.Contains(t, out, "Run: 0b5c3d8e-run")
	assert.Contains(t, out, "Samples: de_train.csv (6 rows)")
	assert.Contains(t, out, "- mean: SAFE")
	assert.Contains(t, out, "- cv: PROBLEMATIC (failed while probing)")
	assert.Contains(t, out, "PCA (6, 4), explained var 0.9876")
	assert.Contains(t, out, "PCA FAILED: input contains NaN or infinity")
	assert.Contains(t, out, "before cleaning NaN 0, Inf 2; after cleaning NaN 0, Inf 2")
	assert.Contains(t, out, "Invalid after")
	assert.Contains(t, out, "cell_type explained")
	assert.Contains(t, out, "✓ Safe statistics: [mean]")
	assert.Contains(t, out, "✗ Problematic statistics: [cv]")
	assert.Contains(t, out, "⚠ Only 1 safe statistics found")
	assert.NotContains(t, out, "Sanitization disabled")
}

func TestRenderGroupingsAndUnsanitized(t *testing.T) {
	rs := pipeline.NewResults()
	for _, s := range []string{"mean", "std", "median"} {
		rs.Add(&pipeline.StatResult{Statistic: s, Stage: pipeline.Safe})
	}
	c := pipeline.Classify(rs)
	r := &Report{Vocabulary: 2, Results: rs, Classification: &c}
	out := r.String()
	assert.Contains(t, out, "Sanitization disabled")
	assert.Contains(t, out, "- basic: [mean, std]")
	assert.Contains(t, out, "- all safe: [mean, std, median]")
	assert.NotContains(t, out, "- extended:")
}

func TestRenderScanOnly(t *testing.T) {
	r := &Report{Vocabulary: 3}
	out := r.String()
	assert.Contains(t, out, "[RUN]")
	assert.NotContains(t, out, "[SUMMARY]")
}
