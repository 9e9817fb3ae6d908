// Package config loads pepmerge settings from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
	"github.com/ChrisMcGann/pepmerge/pkg/filter"
	"github.com/ChrisMcGann/pepmerge/pkg/similarity"
)

// FDR contains target-decoy settings shared by merging and estimation.
type FDR struct {
	DecoyPrefix string  `toml:"decoy_prefix"`
	TargetFDR   float64 `toml:"target_fdr"`
}

// Scoring contains pairwise similarity settings.
type Scoring struct {
	Workers         int     `toml:"workers"`
	BinWidth        float64 `toml:"bin_width"`
	MinPoints       int     `toml:"min_points"`
	TopN            int     `toml:"top_n"`
	IntensityCutoff float64 `toml:"intensity_cutoff"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all pepmerge configuration.
type Config struct {
	FDR     FDR     `toml:"fdr"`
	Scoring Scoring `toml:"scoring"`
	Logging Logging `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		FDR: FDR{
			DecoyPrefix: "rev_",
			TargetFDR:   0.01,
		},
		Scoring: Scoring{
			Workers:   4,
			BinWidth:  similarity.DefaultBinWidth,
			MinPoints: similarity.DefaultMinPoints,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFDR(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateFDR() error {
	if _, err := core.NewClassifier(c.FDR.DecoyPrefix); err != nil {
		return err
	}
	if !(c.FDR.TargetFDR > 0 && c.FDR.TargetFDR < 1) {
		return &core.ConfigurationError{Field: "fdr.target_fdr", Message: "must be a fraction strictly between 0 and 1"}
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.Workers < 1 {
		return &core.ConfigurationError{Field: "scoring.workers", Message: "must be at least 1"}
	}
	if !(c.Scoring.BinWidth > 0) {
		return &core.ConfigurationError{Field: "scoring.bin_width", Message: "must be positive"}
	}
	if c.Scoring.MinPoints < similarity.DefaultMinPoints {
		return &core.ConfigurationError{Field: "scoring.min_points", Message: fmt.Sprintf("must be at least %d", similarity.DefaultMinPoints)}
	}
	if c.Scoring.TopN > 0 && c.Scoring.TopN < c.Scoring.MinPoints {
		return &core.ConfigurationError{
			Field:   "scoring.top_n",
			Message: fmt.Sprintf("%d keeps fewer peaks than min_points (%d), so every pair would be sparse", c.Scoring.TopN, c.Scoring.MinPoints),
		}
	}
	return c.ScanFilter().Validate()
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return &core.ConfigurationError{Field: "logging.format", Message: fmt.Sprintf("unsupported value %q", c.Logging.Format)}
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return &core.ConfigurationError{Field: "logging.level", Message: fmt.Sprintf("unsupported value %q", c.Logging.Level)}
	}
	return nil
}

// Classifier returns the shared decoy rule.
func (c *Config) Classifier() core.Classifier {
	return core.Classifier{Prefix: c.FDR.DecoyPrefix}
}

// ScanFilter returns the peak preprocessing applied before scoring.
func (c *Config) ScanFilter() filter.Config {
	return filter.Config{TopN: c.Scoring.TopN, IntensityCutoff: c.Scoring.IntensityCutoff}
}

// ScoringParams returns the comparison settings.
func (c *Config) ScoringParams() similarity.Params {
	return similarity.Params{
		BinWidth:  c.Scoring.BinWidth,
		MinPoints: c.Scoring.MinPoints,
		Filter:    c.ScanFilter(),
	}
}

// Sample returns the defaults rendered as TOML.
func Sample() (string, error) {
	data, err := toml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("render config: %w", err)
	}
	return string(data), nil
}
