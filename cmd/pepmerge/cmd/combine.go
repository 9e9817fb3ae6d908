package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
	"github.com/ChrisMcGann/pepmerge/pkg/fdr"
	"github.com/ChrisMcGann/pepmerge/pkg/reader/psm"
	"github.com/ChrisMcGann/pepmerge/pkg/writer/sqlite"
)

var (
	// Flags for combine command
	runFiles    []string
	combineOut  string
	decoyPrefix string
	targetFDR   float64
	modsCSV     string
	description string
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Merge identification runs and curate them at a target FDR",
	Long: `Merge per-run identification tables into one combined set, keeping the highest
probability seen for each peptide key, then estimate the probability threshold
that holds the target-decoy FDR and drop decoys and entries below it.

Examples:
  # Merge two runs at 1% FDR and print the summary
  pepmerge combine --in run1.tsv --in run2.tsv

  # Use a different decoy prefix and FDR, and write the curated set
  pepmerge combine --in run1.tsv --in run2.tsv --decoy-prefix DECOY_ --fdr 0.05 --out curated.db`,
	RunE: runCombine,
}

func init() {
	combineCmd.Flags().StringArrayVarP(&runFiles, "in", "i", nil, "Identification table for one run (repeatable, required)")
	combineCmd.Flags().StringVarP(&combineOut, "out", "o", "", "Write the curated set to this SQLite database")
	combineCmd.Flags().StringVar(&decoyPrefix, "decoy-prefix", "", "Protein/key prefix marking decoys (overrides config)")
	combineCmd.Flags().Float64Var(&targetFDR, "fdr", 0, "Target FDR in (0,1) (overrides config)")
	combineCmd.Flags().StringVar(&modsCSV, "mods-csv", "", "Extra modification names and masses (CSV: name,mass)")
	combineCmd.Flags().StringVar(&description, "description", "", "Description stored in the output header")

	combineCmd.MarkFlagRequired("in")
}

func runCombine(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("decoy-prefix") {
		cfg.FDR.DecoyPrefix = decoyPrefix
	}
	if cmd.Flags().Changed("fdr") {
		cfg.FDR.TargetFDR = targetFDR
	}
	if err := revalidate(); err != nil {
		return err
	}

	classifier := cfg.Classifier()

	modDB, err := loadModDatabase(modsCSV)
	if err != nil {
		return err
	}

	runs := make([]*core.Run, 0, len(runFiles))
	names := make([]string, 0, len(runFiles))
	for _, path := range runFiles {
		run, err := psm.ReadFile(path, modDB)
		if err != nil {
			return err
		}
		logger.Info("run loaded", "run", run.Name, "identifications", len(run.Identifications))
		runs = append(runs, run)
		names = append(names, run.Name)
	}

	set, err := fdr.Combine(runs, classifier, cfg.FDR.TargetFDR, logger)
	if err != nil {
		return err
	}

	summary, err := fdr.Process(set, len(runs), logger)
	if err != nil {
		return err
	}

	if combineOut != "" {
		runID := uuid.NewString()
		if err := writeCurated(set, summary, runID, names); err != nil {
			return err
		}
		logger.Info("curated set written", "path", combineOut, "run_id", runID, "entries", set.Len())
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
	return nil
}

func loadModDatabase(path string) (*core.ModDatabase, error) {
	modDB := core.DefaultModDatabase()
	if path == "" {
		return modDB, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open modification CSV: %w", err)
	}
	defer f.Close()
	if err := modDB.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load modification CSV: %w", err)
	}
	return modDB, nil
}

func writeCurated(set *fdr.CombinedSet, summary fdr.Summary, runID string, runs []string) error {
	writer, err := sqlite.NewWriter(combineOut)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	for _, id := range set.Identifications() {
		if err := writer.WriteIdentification(id); err != nil {
			return err
		}
	}

	writer.SetHeader(sqlite.Header{
		RunID:       runID,
		Description: description,
		Runs:        runs,
		TargetFDR:   summary.TargetFDR,
		Threshold:   summary.Threshold,
		Reachable:   summary.Reachable,
	})
	return writer.Finalize()
}

func renderSummary(s fdr.Summary) string {
	reachable := "yes"
	if !s.Reachable {
		reachable = "no (nothing accepted)"
	}
	rows := [][]string{
		{"Runs merged", strconv.Itoa(s.Runs)},
		{"Combined entries", strconv.Itoa(s.Combined)},
		{"Targets", strconv.Itoa(s.Targets)},
		{"Decoys", strconv.Itoa(s.Decoys)},
		{"Target FDR", formatFloat(s.TargetFDR)},
		{"Threshold reachable", reachable},
		{"Probability threshold", formatFloat(s.Threshold)},
		{"Achieved FDR", formatFloat(s.AchievedFDR)},
		{"Removed", strconv.Itoa(s.RemovedEntries)},
		{"Curated entries", strconv.Itoa(s.Curated)},
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
