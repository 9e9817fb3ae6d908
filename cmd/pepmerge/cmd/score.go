package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
	"github.com/ChrisMcGann/pepmerge/pkg/reader/msp"
	"github.com/ChrisMcGann/pepmerge/pkg/reader/pairs"
	"github.com/ChrisMcGann/pepmerge/pkg/similarity"
	"github.com/ChrisMcGann/pepmerge/pkg/writer/sqlite"
)

var (
	// Flags for score command
	clusterFiles  []string
	pairsFile     string
	scoreOut      string
	workers       int
	binWidth      float64
	minPoints     int
	topN          int
	cutoffPercent float64
	showRows      int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score pairs of peak clusters by cosine similarity",
	Long: `Score caller-selected pairs of peak clusters on a bounded worker pool. Each
cluster's peaks are filtered, normalized to the base peak, binned by m/z and
compared by cosine similarity. Scans with fewer than three points score 0.

Interrupting the command (Ctrl-C) stops outstanding comparisons; every pair
is still reported, with unfinished pairs marked interrupted.

Examples:
  # Score every pair listed in pairs.txt with 8 workers
  pepmerge score --clusters consensus.msp --pairs pairs.txt --workers 8

  # Keep the 150 most intense peaks and write the results
  pepmerge score --clusters consensus.msp --pairs pairs.txt --top-n 150 --out scores.db`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringArrayVar(&clusterFiles, "clusters", nil, "MSP file of peak clusters (repeatable, required)")
	scoreCmd.Flags().StringVar(&pairsFile, "pairs", "", "Pair list of cluster ids, two per line (required)")
	scoreCmd.Flags().StringVarP(&scoreOut, "out", "o", "", "Write results to this SQLite database")
	scoreCmd.Flags().IntVar(&workers, "workers", 0, "Number of worker goroutines (overrides config)")
	scoreCmd.Flags().Float64Var(&binWidth, "bin-width", 0, "m/z bin width in Th (overrides config)")
	scoreCmd.Flags().IntVar(&minPoints, "min-points", 0, "Smallest scan that is scored, at least 3 (overrides config)")
	scoreCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense peaks (overrides config)")
	scoreCmd.Flags().Float64Var(&cutoffPercent, "cutoff", 0, "Intensity cutoff as % of base peak (overrides config)")
	scoreCmd.Flags().IntVar(&showRows, "show", 20, "Number of result rows to print (0 = none)")

	scoreCmd.MarkFlagRequired("clusters")
	scoreCmd.MarkFlagRequired("pairs")
}

func runScore(cmd *cobra.Command, args []string) error {
	applyScoringFlags(cmd)
	if err := revalidate(); err != nil {
		return err
	}

	clusters, err := loadClusters(clusterFiles)
	if err != nil {
		return err
	}

	selected, err := selectPairs(clusters)
	if err != nil {
		return err
	}
	pool := similarity.NewPool(similarity.PoolConfig{
		Workers:  cfg.Scoring.Workers,
		Logger:   logger,
		Progress: &similarity.Progress{},
	})
	logger.Info("pairs selected", "clusters", len(clusters), "pairs", len(selected), "workers", pool.Workers())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	stopShutdown := context.AfterFunc(sigCtx, func() {
		if ctx.Err() == nil {
			logger.Warn("interrupt received, stopping scoring")
		}
		pool.Shutdown()
	})
	defer stopShutdown()

	stopProgress := watchProgress(cmd.ErrOrStderr(), pool.Progress(), stderrIsTerminal())
	results := pool.ScoreBatch(ctx, selected, cfg.ScoringParams())
	stopProgress()

	if scoreOut != "" {
		if err := writeScores(results); err != nil {
			return err
		}
		logger.Info("results written", "path", scoreOut, "results", len(results))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderStatusCounts(pool.Progress().Snapshot()))
	if showRows > 0 && len(results) > 0 {
		fmt.Fprintln(out, renderResults(results, showRows))
	}
	return nil
}

func applyScoringFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Scoring.Workers = workers
	}
	if flags.Changed("bin-width") {
		cfg.Scoring.BinWidth = binWidth
	}
	if flags.Changed("min-points") {
		cfg.Scoring.MinPoints = minPoints
	}
	if flags.Changed("top-n") {
		cfg.Scoring.TopN = topN
	}
	if flags.Changed("cutoff") {
		cfg.Scoring.IntensityCutoff = cutoffPercent
	}
}

func loadClusters(paths []string) (map[string]*core.PeakCluster, error) {
	all := make(map[string]*core.PeakCluster)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open cluster file: %w", err)
		}
		clusters, err := msp.ReadAll(f, path)
		f.Close()
		if err != nil {
			return nil, err
		}
		for id, c := range clusters {
			if prev, ok := all[id]; ok {
				return nil, fmt.Errorf("cluster %q defined in both %s and %s", id, prev.SourceFile, c.SourceFile)
			}
			all[id] = c
		}
		logger.Debug("clusters loaded", "path", path, "clusters", len(clusters))
	}
	return all, nil
}

// selectPairs reads the caller's pair list and resolves it against the loaded
// clusters.
func selectPairs(clusters map[string]*core.PeakCluster) ([]similarity.Pair, error) {
	f, err := os.Open(pairsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open pair list: %w", err)
	}
	defer f.Close()
	ids, err := pairs.Read(f)
	if err != nil {
		return nil, err
	}
	return pairs.Resolve(ids, clusters)
}

func writeScores(results []similarity.Result) error {
	writer, err := sqlite.NewWriter(scoreOut)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	for _, r := range results {
		if err := writer.WriteSimilarity(r); err != nil {
			return err
		}
	}
	writer.SetHeader(sqlite.Header{
		RunID:       uuid.NewString(),
		Description: "similarity scores",
		Runs:        clusterFiles,
	})
	return writer.Finalize()
}

func renderStatusCounts(s similarity.ProgressSnapshot) string {
	rows := [][]string{
		{"Pairs", strconv.FormatInt(s.Total, 10)},
		{similarity.Scored.String(), strconv.FormatInt(s.Scored, 10)},
		{similarity.Sparse.String(), strconv.FormatInt(s.Sparse, 10)},
		{similarity.Interrupted.String(), strconv.FormatInt(s.Interrupted, 10)},
		{similarity.Failed.String(), strconv.FormatInt(s.Failed, 10)},
	}
	return renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

// renderResults prints the highest scoring results first.
func renderResults(results []similarity.Result, limit int) string {
	sorted := make([]similarity.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	rows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		rows = append(rows, []string{r.ClusterA, r.ClusterB, formatFloat(r.Score), r.Status.String()})
	}
	return renderTable(
		[]string{"Cluster A", "Cluster B", "Score", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
}
