package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/KaramelBytes/statguard-cli/internal/anomaly"
	cfgpkg "github.com/KaramelBytes/statguard-cli/internal/config"
	"github.com/KaramelBytes/statguard-cli/internal/dataset"
	"github.com/KaramelBytes/statguard-cli/internal/features"
	"github.com/KaramelBytes/statguard-cli/internal/pipeline"
	"github.com/KaramelBytes/statguard-cli/internal/report"
	"github.com/KaramelBytes/statguard-cli/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	valComponents   int
	valStatistics   []string
	valNoSanitize   bool
	valMinExplained float64
	valDelimiter    string
	valQuiet        bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <samples> <summary>...",
	Short: "Check which summary statistics survive sanitization and a PCA reduction",
	Long: `Validate loads the per-sample table and one summary table per configured group key
(group_keys, in order), scans every summary table for missing and non-finite values, and
probes each statistic: per-sample vectors are materialized for every group-key type,
sanitized, and reduced with PCA. Statistics that pass for every group-key type are safe.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		opts, err := validateOptions(cmd, c)
		if err != nil {
			return err
		}
		return runValidate(cmd.OutOrStdout(), c, opts, args[0], args[1:])
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().IntVar(&valComponents, "components", 0, "requested PCA components (overrides config)")
	validateCmd.Flags().StringSliceVar(&valStatistics, "statistics", nil, "comma-separated statistics to evaluate (default: config, then every column)")
	validateCmd.Flags().BoolVar(&valNoSanitize, "no-sanitize", false, "probe raw vectors without replacing NaN/Inf")
	validateCmd.Flags().Float64Var(&valMinExplained, "min-explained", 0, "fail probes capturing less variance than this fraction (overrides config)")
	validateCmd.Flags().StringVar(&valDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (default: by extension)")
	validateCmd.Flags().BoolVar(&valQuiet, "quiet", false, "suppress progress and non-essential output")
}

type validateOpts struct {
	load     dataset.Options
	run      pipeline.Options
	scan     anomaly.Options
	policy   features.DuplicatePolicy
	requests []string
	quiet    bool
}

func validateOptions(cmd *cobra.Command, c *cfgpkg.Global) (validateOpts, error) {
	var o validateOpts
	delim, err := parseDelimiter(valDelimiter)
	if err != nil {
		return o, err
	}
	o.load = dataset.DefaultOptions()
	o.load.Delimiter = delim
	if c.FeatureColumn != "" {
		o.load.FeatureColumn = c.FeatureColumn
	}
	o.load.Exclude = c.ExcludeColumns

	o.policy, err = features.ParseDuplicatePolicy(c.DuplicatePolicy)
	if err != nil {
		return o, err
	}

	o.run = pipeline.DefaultOptions()
	if c.Components > 0 {
		o.run.Components = c.Components
	}
	o.run.Fill = c.FillValue
	o.run.MinExplained = c.MinExplainedVariance
	f := cmd.Flags()
	if f.Changed("components") {
		if valComponents <= 0 {
			return o, fmt.Errorf("--components must be positive")
		}
		o.run.Components = valComponents
	}
	if f.Changed("min-explained") {
		if valMinExplained < 0 || valMinExplained > 1 {
			return o, fmt.Errorf("--min-explained must be within 0..1")
		}
		o.run.MinExplained = valMinExplained
	}
	o.run.Sanitize = !valNoSanitize
	o.run.Logger = logger

	o.scan = anomaly.DefaultOptions()
	o.scan.ZeroHeavyFraction = c.ZeroHeavyFraction

	o.requests = c.Statistics
	if f.Changed("statistics") {
		o.requests = valStatistics
	}
	o.quiet = valQuiet
	return o, nil
}

func runValidate(out io.Writer, c *cfgpkg.Global, o validateOpts, samplesPath string, summaryPaths []string) error {
	keys := c.GroupKeys
	if len(keys) == 0 {
		return fmt.Errorf("no group_keys configured")
	}
	if len(summaryPaths) != len(keys) {
		return fmt.Errorf("expected %d summary tables (one per group key: %v), got %d", len(keys), keys, len(summaryPaths))
	}
	for _, p := range append([]string{samplesPath}, summaryPaths...) {
		if err := utils.CheckReadable(p); err != nil {
			return &dataset.LoadError{Path: p, Err: err}
		}
	}
	progress := func(format string, a ...any) {
		if !o.quiet {
			fmt.Fprintf(out, format, a...)
		}
	}
	total := len(summaryPaths) + 1

	progress("[1/%d] Loading %s...\n", total, filepath.Base(samplesPath))
	keep := append(append([]string{}, keys...), c.MetadataColumns...)
	samples, err := dataset.LoadSamples(samplesPath, o.load, keys, keep)
	if err != nil {
		return err
	}
	vocab, err := features.NewVocabulary(samples.Vocabulary(keep))
	if err != nil {
		return fmt.Errorf("%s: feature vocabulary: %w", samples.Name, err)
	}
	logger.Debug("samples loaded", "rows", len(samples.Records), "features", vocab.Len())

	var (
		tables []*dataset.SummaryTable
		scans  []*anomaly.Report
		groups []pipeline.Group
	)
	for i, path := range summaryPaths {
		key := keys[i]
		progress("[%d/%d] Loading %s (group key %s)...\n", i+2, total, filepath.Base(path), key)
		t, err := dataset.LoadSummary(path, key, o.load)
		if err != nil {
			return err
		}
		idx, err := features.NewIndex(t, vocab, o.policy)
		if err != nil {
			return err
		}
		if idx.Unaligned > 0 {
			logger.Warn("summary rows outside the feature vocabulary", "table", t.Name, "rows", idx.Unaligned)
		}
		missing := 0
		for _, k := range samples.Keys(key) {
			if !idx.Has(k) {
				missing++
			}
		}
		if missing > 0 {
			progress("⚠ %d of %d samples have no %s rows in %s; their vectors use the fill value\n",
				missing, len(samples.Records), key, t.Name)
		}
		tables = append(tables, t)
		scans = append(scans, anomaly.Scan(t, nil, o.scan))
		groups = append(groups, pipeline.Group{Name: key, Index: idx})
	}

	stats := pipeline.SelectStatistics(tables, o.requests)
	if len(stats) == 0 {
		return fmt.Errorf("no statistics to evaluate in %s", tables[0].Name)
	}
	progress("Probing %d statistics across %d group-key types...\n\n", len(stats), len(groups))
	results := pipeline.Run(samples, groups, stats, o.run)
	cls := pipeline.Classify(results)

	rep := &report.Report{
		RunID:          uuid.NewString(),
		Samples:        samples.Name,
		SampleRows:     len(samples.Records),
		Vocabulary:     vocab.Len(),
		Groups:         keys,
		Sanitized:      o.run.Sanitize,
		Components:     o.run.Components,
		Scans:          scans,
		Results:        results,
		Classification: &cls,
	}
	return rep.Render(out)
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	case ";":
		return ';', nil
	default:
		return 0, fmt.Errorf("unsupported --delimiter: %s", s)
	}
}
