package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/statguard-cli/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Group-key columns of the sample table, one summary table each, in argument order.
	GroupKeys       []string `mapstructure:"group_keys" yaml:"group_keys"`
	FeatureColumn   string   `mapstructure:"feature_column" yaml:"feature_column"`
	MetadataColumns []string `mapstructure:"metadata_columns" yaml:"metadata_columns"`
	ExcludeColumns  []string `mapstructure:"exclude_columns" yaml:"exclude_columns"`
	// Statistics to evaluate; empty means every statistic column of the first table.
	Statistics []string `mapstructure:"statistics" yaml:"statistics"`

	Components           int     `mapstructure:"components" yaml:"components"`
	FillValue            float64 `mapstructure:"fill_value" yaml:"fill_value"`
	DuplicatePolicy      string  `mapstructure:"duplicate_policy" yaml:"duplicate_policy"`
	MinExplainedVariance float64 `mapstructure:"min_explained_variance" yaml:"min_explained_variance"`
	ZeroHeavyFraction    float64 `mapstructure:"zero_heavy_fraction" yaml:"zero_heavy_fraction"`
}

// Dir returns ~/.statguard.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".statguard"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.statguard/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("STATGUARD")
	v.AutomaticEnv()

	v.SetDefault("group_keys", []string{"cell_type", "sm_name"})
	v.SetDefault("feature_column", "gene")
	v.SetDefault("metadata_columns", []string{"cell_type", "sm_name", "sm_lincs_id", "SMILES", "control"})
	v.SetDefault("exclude_columns", []string{"gene", "cell_type", "sm_name"})
	v.SetDefault("statistics", []string{})
	v.SetDefault("components", 128)
	v.SetDefault("fill_value", 0.0)
	v.SetDefault("duplicate_policy", "error")
	v.SetDefault("min_explained_variance", 0.0)
	v.SetDefault("zero_heavy_fraction", 0.5)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
