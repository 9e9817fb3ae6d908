package fdr

import "log/slog"

// Curate removes, in place, every decoy and every identification below the
// estimated threshold, returning how many entries were dropped. Running it
// again with the same threshold removes nothing.
func Curate(set *CombinedSet) (int, error) {
	if !set.estimated {
		return 0, ErrThresholdNotEstimated
	}

	removed := 0
	for key, id := range set.entries {
		if set.acceptNone || id.IsDecoy || id.Probability < set.threshold {
			delete(set.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Summary reports the set before and after curation.
type Summary struct {
	Runs           int
	Combined       int
	Targets        int
	Decoys         int
	Threshold      float64
	Reachable      bool
	TargetFDR      float64
	AchievedFDR    float64
	Curated        int
	RemovedEntries int
}

// Process runs estimation and curation in the required order and summarises
// the outcome. runs is the number of runs merged into set.
func Process(set *CombinedSet, runs int, logger *slog.Logger) (Summary, error) {
	targets, decoys := set.Counts()
	summary := Summary{
		Runs:      runs,
		Combined:  set.Len(),
		Targets:   targets,
		Decoys:    decoys,
		TargetFDR: set.targetFDR,
	}

	e, err := EstimateThreshold(set, logger)
	if err != nil {
		return summary, err
	}
	summary.Threshold = e.Threshold
	summary.Reachable = e.Reachable
	summary.AchievedFDR = e.AchievedFDR

	removed, err := Curate(set)
	if err != nil {
		return summary, err
	}
	summary.RemovedEntries = removed
	summary.Curated = set.Len()
	return summary, nil
}
