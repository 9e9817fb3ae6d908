package fdr

import (
	"log/slog"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
)

// Level is the cumulative tally at one distinct probability cutoff.
type Level struct {
	Probability float64
	Targets     int
	Decoys      int
	FDR         float64
}

// Estimate describes the selected cutoff.
type Estimate struct {
	Threshold float64
	// Reachable is false when no cutoff satisfies the target; Threshold is
	// then 1.0 and curation accepts nothing.
	Reachable bool

	TargetFDR       float64
	AchievedFDR     float64
	AcceptedTargets int
	AcceptedDecoys  int
	Targets         int
	Decoys          int

	Levels []Level
}

// EstimateThreshold computes the most permissive probability cutoff whose
// running decoy fraction decoys/(decoys+targets) stays within the set's target
// FDR, and records it on the set. Identifications sharing a probability are
// always accepted or rejected together. When a more permissive cutoff has the
// same FDR as the one already chosen, the stricter cutoff is kept.
//
// With no decoys the threshold is 0 and everything is accepted. When no
// cutoff meets the target a warning is logged and the estimate is marked
// unreachable.
func EstimateThreshold(set *CombinedSet, logger *slog.Logger) (Estimate, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ids := make([]core.Identification, 0, set.Len())
	for _, id := range set.entries {
		ids = append(ids, id)
	}
	sortByProbability(ids)

	est := Estimate{TargetFDR: set.targetFDR}
	for _, id := range ids {
		label, err := set.classifier.ClassifyIdentification(id)
		if err != nil {
			return Estimate{}, err
		}
		if (label == core.Decoy) != id.IsDecoy {
			return Estimate{}, &core.DataError{Run: id.SourceRun, Key: id.Key, Reason: "stored decoy flag disagrees with the decoy rule"}
		}
		if id.IsDecoy {
			est.Decoys++
		} else {
			est.Targets++
		}
	}

	if est.Decoys == 0 {
		est.Threshold = 0
		est.Reachable = true
		est.AcceptedTargets = est.Targets
		set.setThreshold(est)
		logger.Info("no decoys in combined set, accepting all identifications", "targets", est.Targets)
		return est, nil
	}

	var (
		targets, decoys int
		best            = -1
	)
	for i := 0; i < len(ids); {
		prob := ids[i].Probability
		for ; i < len(ids) && ids[i].Probability == prob; i++ {
			if ids[i].IsDecoy {
				decoys++
			} else {
				targets++
			}
		}
		level := Level{
			Probability: prob,
			Targets:     targets,
			Decoys:      decoys,
			FDR:         float64(decoys) / float64(decoys+targets),
		}
		est.Levels = append(est.Levels, level)

		if level.FDR > set.targetFDR {
			continue
		}
		if best >= 0 && sameFDR(level, est.Levels[best]) {
			continue
		}
		best = len(est.Levels) - 1
	}

	if best < 0 {
		est.Threshold = 1.0
		est.Reachable = false
		set.setThreshold(est)
		logger.Warn("target FDR unreachable at any probability cutoff, no identifications will pass",
			"target_fdr", set.targetFDR,
			"targets", est.Targets,
			"decoys", est.Decoys,
		)
		return est, nil
	}

	chosen := est.Levels[best]
	est.Threshold = chosen.Probability
	est.Reachable = true
	est.AchievedFDR = chosen.FDR
	est.AcceptedTargets = chosen.Targets
	est.AcceptedDecoys = chosen.Decoys
	set.setThreshold(est)

	logger.Info("estimated probability threshold",
		"threshold", est.Threshold,
		"target_fdr", set.targetFDR,
		"achieved_fdr", est.AchievedFDR,
		"accepted_targets", est.AcceptedTargets,
	)
	return est, nil
}

// sameFDR compares running FDRs exactly as fractions.
func sameFDR(a, b Level) bool {
	return a.Decoys*(b.Decoys+b.Targets) == b.Decoys*(a.Decoys+a.Targets)
}
