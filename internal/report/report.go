// Package report renders the validation run as console text.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/statguard-cli/internal/anomaly"
	"github.com/KaramelBytes/statguard-cli/internal/pipeline"
	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
)

// Report gathers everything a validation run prints.
type Report struct {
	RunID      string
	Samples    string
	SampleRows int
	Vocabulary int
	Groups     []string
	Sanitized  bool
	Components int
	Scans      []*anomaly.Report
	Results    *pipeline.Results
	// Classification is derived from Results when left empty.
	Classification *pipeline.Classification
}

type styles struct {
	header lipgloss.Style
	ok     lipgloss.Style
	bad    lipgloss.Style
	warn   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true),
		ok:     r.NewStyle().Foreground(lipgloss.Color("2")),
		bad:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warn:   r.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// String renders the report without terminal styling.
func (r *Report) String() string {
	var b bytes.Buffer
	_ = r.Render(&b)
	return b.String()
}

// Render writes the full report to w.
func (r *Report) Render(w io.Writer) error {
	st := newStyles(w)
	var b strings.Builder
	b.WriteString(st.header.Render("[RUN]") + "\n")
	if r.RunID != "" {
		b.WriteString(fmt.Sprintf("Run: %s\n", r.RunID))
	}
	if r.Samples != "" {
		b.WriteString(fmt.Sprintf("Samples: %s (%d rows)\n", r.Samples, r.SampleRows))
	}
	b.WriteString(fmt.Sprintf("Features: %d\n", r.Vocabulary))
	if len(r.Groups) > 0 {
		b.WriteString(fmt.Sprintf("Group keys: %s\n", strings.Join(r.Groups, ", ")))
	}
	if r.Components > 0 {
		b.WriteString(fmt.Sprintf("Requested components: %d\n", r.Components))
	}
	if r.Results != nil && !r.Sanitized {
		b.WriteString(st.warn.Render("⚠ Sanitization disabled: probes see raw NaN/Inf values") + "\n")
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	for _, s := range r.Scans {
		if err := RenderScan(w, s); err != nil {
			return err
		}
	}
	if r.Results == nil {
		return nil
	}
	if err := r.renderProbes(w, st); err != nil {
		return err
	}
	if err := r.renderSummary(w, st); err != nil {
		return err
	}
	return r.renderClassification(w, st)
}

// RenderScan writes the anomaly section for one summary table.
func RenderScan(w io.Writer, s *anomaly.Report) error {
	st := newStyles(w)
	var b strings.Builder
	b.WriteString("\n" + st.header.Render(fmt.Sprintf("[ANOMALY SCAN: %s]", s.Table)) + "\n")
	b.WriteString(fmt.Sprintf("Key column: %s, rows: %d, statistics: %d\n", s.KeyColumn, s.Rows, len(s.Columns)))
	for _, c := range s.Columns {
		b.WriteString(fmt.Sprintf("- %s: ", c.Name))
		switch {
		case c.Missing:
			b.WriteString(st.bad.Render("PROBLEMATIC"))
			b.WriteString(" (column not present)\n")
			continue
		case c.Status == anomaly.Problematic:
			b.WriteString(st.bad.Render("PROBLEMATIC"))
			b.WriteString(" (contains NaN/Inf values)")
		default:
			b.WriteString(st.ok.Render("clean"))
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  total %d; NaN %d (%.2f%%)", c.Total, c.NaN, c.Pct(c.NaN)))
		if c.NonNumeric > 0 {
			b.WriteString(fmt.Sprintf(", of which non-numeric %d", c.NonNumeric))
		}
		b.WriteString(fmt.Sprintf("; +Inf %d (%.2f%%); -Inf %d (%.2f%%); zeros %d (%.2f%%)\n",
			c.PosInf, c.Pct(c.PosInf), c.NegInf, c.Pct(c.NegInf), c.Zero, c.Pct(c.Zero)))
		b.WriteString(fmt.Sprintf("  range [%s, %s]; mean %s; std %s\n", c.Min, c.Max, c.Mean, c.Std))
		if c.Unavailable != "" {
			b.WriteString(fmt.Sprintf("  unavailable: %s\n", c.Unavailable))
		}
		if c.ZeroHeavy {
			b.WriteString(st.warn.Render(fmt.Sprintf("  ⚠ zero-heavy: %.1f%% zeros", c.Pct(c.Zero))) + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Report) renderProbes(w io.Writer, st styles) error {
	var b strings.Builder
	b.WriteString("\n" + st.header.Render("[PROBES]") + "\n")
	for _, res := range r.Results.All() {
		b.WriteString(fmt.Sprintf("- %s: ", res.Statistic))
		if res.OK() {
			b.WriteString(st.ok.Render("SAFE"))
		} else {
			b.WriteString(st.bad.Render("PROBLEMATIC"))
			if res.FailedAt != "" {
				b.WriteString(fmt.Sprintf(" (failed while %s)", res.FailedAt))
			}
		}
		b.WriteString("\n")
		for _, g := range res.Groups {
			b.WriteString(fmt.Sprintf("  • %s: vectors (%d, %d); before cleaning NaN %d, Inf %d; after cleaning NaN %d, Inf %d; ",
				g.Group, g.Rows, g.Cols, g.Before.NaN, g.Before.Inf, g.After.NaN, g.After.Inf))
			if g.OK() {
				b.WriteString(fmt.Sprintf("PCA %s, explained var %.4f\n", g.Probe.Shape(), g.Probe.Explained))
			} else {
				b.WriteString(fmt.Sprintf("PCA FAILED: %v\n", g.Probe.Err))
			}
		}
		if !res.OK() && len(res.Groups) == 0 && res.Err != nil {
			b.WriteString(fmt.Sprintf("  • error: %v\n", res.Err))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Report) renderSummary(w io.Writer, st styles) error {
	if _, err := io.WriteString(w, "\n"+st.header.Render("[SUMMARY]")+"\n"); err != nil {
		return err
	}
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	header := []string{"Statistic", "Status"}
	for _, g := range r.Groups {
		header = append(header, g+" explained")
	}
	header = append(header, "Invalid before", "Invalid after", "Error")
	tw.SetHeader(header)
	for _, res := range r.Results.All() {
		status := "SAFE"
		if !res.OK() {
			status = "PROBLEMATIC"
		}
		row := []string{res.Statistic, status}
		invalid, remaining := 0, 0
		for _, g := range r.Groups {
			out, ok := res.Outcome(g)
			switch {
			case !ok:
				row = append(row, "-")
			case out.OK():
				row = append(row, fmt.Sprintf("%.3f", out.Probe.Explained))
			default:
				row = append(row, "FAILED")
			}
			invalid += out.Before.Total()
			remaining += out.After.Total()
		}
		errText := ""
		if res.Err != nil {
			errText = oneLine(res.Err.Error())
		}
		row = append(row, fmt.Sprintf("%d", invalid), fmt.Sprintf("%d", remaining), errText)
		tw.Append(row)
	}
	tw.Render()
	return nil
}

func (r *Report) renderClassification(w io.Writer, st styles) error {
	c := r.Classification
	if c == nil {
		cc := pipeline.Classify(r.Results)
		c = &cc
	}
	var b strings.Builder
	b.WriteString("\n" + st.header.Render("[CLASSIFICATION]") + "\n")
	b.WriteString(st.ok.Render("✓ Safe statistics:") + " " + list(c.Safe) + "\n")
	b.WriteString(st.bad.Render("✗ Problematic statistics:") + " " + list(c.Problematic) + "\n")
	if len(c.Groupings) > 0 {
		b.WriteString("Recommended feature sets:\n")
		for _, g := range c.Groupings {
			b.WriteString(fmt.Sprintf("- %s: %s\n", g.Name, list(g.Statistics)))
		}
	} else {
		b.WriteString(st.warn.Render(fmt.Sprintf("⚠ Only %d safe statistics found", len(c.Safe))) + "\n")
		b.WriteString(fmt.Sprintf("  May need to use only: %s\n", list(c.Safe)))
	}
	b.WriteString("\n" + st.header.Render("[RECOMMENDATIONS]") + "\n")
	b.WriteString("1. Use only the safe statistics in feature sets\n")
	b.WriteString("2. Avoid the problematic ones until their summary tables are cleaned\n")
	b.WriteString("3. Update the statistical feature mapping accordingly\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func list(s []string) string {
	if len(s) == 0 {
		return "(none)"
	}
	return "[" + strings.Join(s, ", ") + "]"
}

const maxErrorWidth = 120

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", "; ")
	r := []rune(s)
	if len(r) > maxErrorWidth {
		s = string(r[:maxErrorWidth-3]) + "..."
	}
	return s
}
