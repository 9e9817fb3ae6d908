package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/pepmerge/pkg/config"
)

var overwriteConfig bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration as TOML",
	Long:  `Write the default configuration to path, or to stdout when no path is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sample, err := config.Sample()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprint(cmd.OutOrStdout(), sample)
			return nil
		}

		path := args[0]
		if !overwriteConfig {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config file already exists: %s (use --overwrite)", path)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", path, err)
			}
		}
		if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := [][]string{
			{"fdr.decoy_prefix", cfg.FDR.DecoyPrefix},
			{"fdr.target_fdr", formatFloat(cfg.FDR.TargetFDR)},
			{"scoring.workers", fmt.Sprint(cfg.Scoring.Workers)},
			{"scoring.bin_width", formatFloat(cfg.Scoring.BinWidth)},
			{"scoring.min_points", fmt.Sprint(cfg.Scoring.MinPoints)},
			{"scoring.top_n", fmt.Sprint(cfg.Scoring.TopN)},
			{"scoring.intensity_cutoff", formatFloat(cfg.Scoring.IntensityCutoff)},
			{"logging.level", cfg.Logging.Level},
			{"logging.format", cfg.Logging.Format},
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows, nil))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&overwriteConfig, "overwrite", false, "Replace an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
