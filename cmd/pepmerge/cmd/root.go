// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/pepmerge/pkg/config"
	"github.com/ChrisMcGann/pepmerge/pkg/core"
	"github.com/ChrisMcGann/pepmerge/pkg/logging"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pepmerge",
	Short: "pepmerge - identification merging and spectral similarity scoring",
	Long: `pepmerge combines peptide identifications from several runs, estimates the
probability threshold that holds a target-decoy FDR, and curates the combined set.

It also scores caller-selected pairs of peak clusters by cosine similarity on a
bounded worker pool.`,
	Version:           "1.0.0",
	PersistentPreRunE: setup,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json (overrides config)")

	rootCmd.AddCommand(combineCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(configCmd)
}

// setup loads configuration and builds the logger shared by every command.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	if logFormat != "" {
		loaded.Logging.Format = logFormat
	}

	l, err := logging.New(logging.Options{
		Level:  loaded.Logging.Level,
		Format: loaded.Logging.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return &core.ConfigurationError{Field: "logging", Message: err.Error()}
	}

	cfg = loaded
	logger = l
	slog.SetDefault(l)
	return nil
}

// revalidate checks the configuration after command flags were applied.
func revalidate() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
