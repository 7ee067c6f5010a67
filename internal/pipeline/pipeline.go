// Package pipeline evaluates each summary statistic end to end: materialize per-sample
// vectors for every group-key type, sanitize them, probe them with a reduction, and
// classify the statistic as safe or problematic.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/KaramelBytes/statguard-cli/internal/dataset"
	"github.com/KaramelBytes/statguard-cli/internal/features"
	"github.com/KaramelBytes/statguard-cli/internal/probe"
)

// Stage is a step of a statistic's evaluation.
type Stage string

const (
	Pending       Stage = "pending"
	Materializing Stage = "materializing"
	Sanitizing    Stage = "sanitizing"
	Probing       Stage = "probing"
	Safe          Stage = "safe"
	Problematic   Stage = "problematic"
)

// ErrLowExplained marks a probe that succeeded but captured less variance than required.
var ErrLowExplained = errors.New("captured variance below threshold")

// StageError records where a statistic's evaluation failed.
type StageError struct {
	Statistic string
	Group     string
	Stage     Stage
	Err       error
}

func (e *StageError) Error() string {
	if e.Group != "" {
		return fmt.Sprintf("%s/%s: %s failed: %v", e.Statistic, e.Group, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Statistic, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Group pairs a group-key column of the sample table with the lookup built from its
// summary table.
type Group struct {
	Name  string
	Index *features.Index
}

// Options controls evaluation.
type Options struct {
	// Components is the requested reduction dimensionality before clamping.
	Components int
	// Fill replaces unmatched and non-finite entries.
	Fill float64
	// Sanitize enables the non-finite replacement step. Disabling it is only useful to
	// show what the probe does with raw vectors.
	Sanitize bool
	// MinExplained, when > 0, fails probes that capture less variance than this fraction.
	MinExplained float64
	Logger       *slog.Logger
}

// DefaultOptions mirrors the feature-engineering setup being validated.
func DefaultOptions() Options {
	return Options{
		Components: probe.DefaultComponents,
		Fill:       features.DefaultFill,
		Sanitize:   true,
	}
}

// GroupOutcome is the probe record for one group-key type.
type GroupOutcome struct {
	Group string
	// Rows and Cols are the materialized batch shape.
	Rows   int
	Cols   int
	Before features.Invalid
	// After counts what the probe receives; it equals Before when sanitizing is off.
	After features.Invalid
	Probe probe.Result
}

// OK reports whether the probe succeeded.
func (g GroupOutcome) OK() bool { return g.Probe.OK }

// StatResult is the evaluation record of one statistic.
type StatResult struct {
	Statistic string
	// Stage is Safe or Problematic once evaluation ends.
	Stage Stage
	// FailedAt is the stage that failed; empty for safe statistics.
	FailedAt Stage
	Groups   []GroupOutcome
	Err      error
}

// OK reports whether every group-key type passed.
func (r *StatResult) OK() bool { return r.Stage == Safe }

// Outcome returns the record for a group-key type.
func (r *StatResult) Outcome(group string) (GroupOutcome, bool) {
	for _, g := range r.Groups {
		if g.Group == group {
			return g, true
		}
	}
	return GroupOutcome{}, false
}

// Run evaluates stats in order and returns the accumulated results. A failure in one
// statistic never stops the others.
func Run(samples *dataset.Samples, groups []Group, stats []string, opt Options) *Results {
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	keys := make([][]string, len(groups))
	for i, g := range groups {
		keys[i] = samples.Keys(g.Name)
	}
	results := NewResults()
	for _, stat := range stats {
		res := Evaluate(stat, groups, keys, opt, log)
		if res.OK() {
			log.Debug("statistic safe", "statistic", stat)
		} else {
			log.Debug("statistic problematic", "statistic", stat, "stage", res.FailedAt, "error", res.Err)
		}
		results.Add(res)
	}
	return results
}

// Evaluate runs one statistic through materialize → sanitize → probe for every group.
// keys[i] holds the per-sample group keys for groups[i]. Panics are converted into a
// problematic result.
func Evaluate(stat string, groups []Group, keys [][]string, opt Options, log *slog.Logger) (res *StatResult) {
	res = &StatResult{Statistic: stat, Stage: Pending}
	stage := Pending
	group := ""
	defer func() {
		if r := recover(); r != nil {
			res.Stage = Problematic
			res.FailedAt = stage
			res.Err = &StageError{Statistic: stat, Group: group, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	advance := func(s Stage) {
		stage = s
		res.Stage = s
		log.Debug("stage", "statistic", stat, "group", group, "stage", s)
	}
	if opt.Components <= 0 {
		opt.Components = probe.DefaultComponents
	}

	var probeErrs []error
	for i, g := range groups {
		group = g.Name
		advance(Materializing)
		idx := g.Index
		if opt.Fill != idx.Fill() {
			idx = idx.WithFill(opt.Fill)
		}
		batch, err := idx.Matrix(stat, keys[i])
		if err != nil {
			res.Stage = Problematic
			res.FailedAt = Materializing
			res.Err = &StageError{Statistic: stat, Group: g.Name, Stage: Materializing, Err: err}
			return res
		}
		out := GroupOutcome{Group: g.Name, Before: features.CountInvalid(batch)}
		out.Rows, out.Cols = batch.Dims()

		advance(Sanitizing)
		if opt.Sanitize {
			batch = features.SanitizeDense(batch, opt.Fill)
			out.After = features.CountInvalid(batch)
		} else {
			out.After = out.Before
		}

		advance(Probing)
		out.Probe = probe.Run(batch, opt.Components)
		if out.Probe.OK && opt.MinExplained > 0 && out.Probe.Explained < opt.MinExplained {
			out.Probe.OK = false
			out.Probe.Err = fmt.Errorf("%w: %.4f < %.4f", ErrLowExplained, out.Probe.Explained, opt.MinExplained)
		}
		if !out.Probe.OK {
			probeErrs = append(probeErrs, &StageError{Statistic: stat, Group: g.Name, Stage: Probing, Err: out.Probe.Err})
		}
		res.Groups = append(res.Groups, out)
	}
	group = ""
	if len(probeErrs) > 0 {
		res.Stage = Problematic
		res.FailedAt = Probing
		res.Err = errors.Join(probeErrs...)
		return res
	}
	res.Stage = Safe
	return res
}

// Results accumulates statistic records in evaluation order.
type Results struct {
	items  []*StatResult
	byName map[string]int
}

// NewResults returns an empty accumulator.
func NewResults() *Results {
	return &Results{byName: map[string]int{}}
}

// Add records r, replacing an earlier record for the same statistic in place.
func (rs *Results) Add(r *StatResult) {
	if i, ok := rs.byName[r.Statistic]; ok {
		rs.items[i] = r
		return
	}
	rs.byName[r.Statistic] = len(rs.items)
	rs.items = append(rs.items, r)
}

// Get returns the record for a statistic.
func (rs *Results) Get(stat string) (*StatResult, bool) {
	i, ok := rs.byName[stat]
	if !ok {
		return nil, false
	}
	return rs.items[i], true
}

// All returns the records in evaluation order.
func (rs *Results) All() []*StatResult {
	out := make([]*StatResult, len(rs.items))
	copy(out, rs.items)
	return out
}

// Len is the number of evaluated statistics.
func (rs *Results) Len() int { return len(rs.items) }

// SelectStatistics returns the statistics to evaluate: requested ones in the given order
// when set, otherwise every statistic of the first table.
func SelectStatistics(tables []*dataset.SummaryTable, requested []string) []string {
	if len(requested) > 0 {
		out := make([]string, 0, len(requested))
		seen := map[string]struct{}{}
		for _, s := range requested {
			if _, dup := seen[s]; dup || s == "" {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
		return out
	}
	if len(tables) == 0 {
		return nil
	}
	out := make([]string, len(tables[0].Statistics))
	copy(out, tables[0].Statistics)
	return out
}
