package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/statguard-cli/internal/config"
	"github.com/KaramelBytes/statguard-cli/internal/features"
	"github.com/KaramelBytes/statguard-cli/internal/utils"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set StatGuard configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "group_keys: %s\n", strings.Join(c.GroupKeys, ","))
		fmt.Fprintf(out, "feature_column: %s\n", c.FeatureColumn)
		fmt.Fprintf(out, "metadata_columns: %s\n", strings.Join(c.MetadataColumns, ","))
		fmt.Fprintf(out, "exclude_columns: %s\n", strings.Join(c.ExcludeColumns, ","))
		if len(c.Statistics) > 0 {
			fmt.Fprintf(out, "statistics: %s\n", strings.Join(c.Statistics, ","))
		} else {
			fmt.Fprintln(out, "statistics: (all columns of the first summary table)")
		}
		fmt.Fprintf(out, "components: %d\n", c.Components)
		fmt.Fprintf(out, "fill_value: %g\n", c.FillValue)
		fmt.Fprintf(out, "duplicate_policy: %s\n", c.DuplicatePolicy)
		fmt.Fprintf(out, "min_explained_variance: %.3f\n", c.MinExplainedVariance)
		fmt.Fprintf(out, "zero_heavy_fraction: %.3f\n", c.ZeroHeavyFraction)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		if err := setKey(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func setKey(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "group_keys":
		keys := utils.SplitList(val)
		if len(keys) == 0 {
			return fmt.Errorf("group_keys needs at least one column")
		}
		c.GroupKeys = keys
	case "feature_column":
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("feature_column cannot be empty")
		}
		c.FeatureColumn = strings.TrimSpace(val)
	case "metadata_columns":
		c.MetadataColumns = utils.SplitList(val)
	case "exclude_columns":
		c.ExcludeColumns = utils.SplitList(val)
	case "statistics":
		c.Statistics = utils.SplitList(val)
	case "components":
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid positive int for components: %v", val)
		}
		c.Components = i
	case "fill_value":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for fill_value: %w", err)
		}
		c.FillValue = f
	case "duplicate_policy":
		p, err := features.ParseDuplicatePolicy(val)
		if err != nil {
			return err
		}
		c.DuplicatePolicy = string(p)
	case "min_explained_variance":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("invalid fraction for min_explained_variance: %v (use 0..1)", val)
		}
		c.MinExplainedVariance = f
	case "zero_heavy_fraction":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("invalid fraction for zero_heavy_fraction: %v (use 0..1)", val)
		}
		c.ZeroHeavyFraction = f
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}
