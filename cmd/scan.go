package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/KaramelBytes/statguard-cli/internal/anomaly"
	"github.com/KaramelBytes/statguard-cli/internal/dataset"
	"github.com/KaramelBytes/statguard-cli/internal/report"
	"github.com/spf13/cobra"
)

var (
	scanKey       string
	scanColumns   []string
	scanDelimiter string
	scanQuiet     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <summary-files...>",
	Short: "Count NaN/Inf/zero values in summary tables without probing",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		delim, err := parseDelimiter(scanDelimiter)
		if err != nil {
			return err
		}
		opt := dataset.DefaultOptions()
		opt.Delimiter = delim
		if c.FeatureColumn != "" {
			opt.FeatureColumn = c.FeatureColumn
		}
		opt.Exclude = c.ExcludeColumns
		sopt := anomaly.DefaultOptions()
		sopt.ZeroHeavyFraction = c.ZeroHeavyFraction

		out := cmd.OutOrStdout()
		problematic := 0
		for i, path := range files {
			if !scanQuiet {
				fmt.Fprintf(out, "[%d/%d] Scanning %s...\n", i+1, len(files), filepath.Base(path))
			}
			t, err := dataset.LoadSummary(path, scanKey, opt)
			if err != nil {
				return err
			}
			rep := anomaly.Scan(t, scanColumns, sopt)
			problematic += len(rep.Problematic())
			if err := report.RenderScan(out, rep); err != nil {
				return err
			}
		}
		if !scanQuiet {
			if problematic > 0 {
				fmt.Fprintf(out, "\n⚠ %d problematic column(s) found\n", problematic)
			} else {
				fmt.Fprintln(out, "\n✓ All scanned columns are clean")
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanKey, "key", "", "group-key column of the summary tables (required)")
	scanCmd.Flags().StringSliceVar(&scanColumns, "columns", nil, "statistic columns to scan (default: all)")
	scanCmd.Flags().StringVar(&scanDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (default: by extension)")
	scanCmd.Flags().BoolVar(&scanQuiet, "quiet", false, "suppress progress and non-essential output")
	_ = scanCmd.MarkFlagRequired("key")
}

// expandInputs resolves glob patterns and literal paths, dropping duplicates.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	return files, nil
}
