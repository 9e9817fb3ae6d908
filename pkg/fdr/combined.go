// Package fdr merges per-run peptide identifications into one combined set,
// estimates a target-decoy probability cutoff for a requested false discovery
// rate, and curates the set down to confident target identifications.
//
// The phases are strictly sequential: Merge for every run, EstimateThreshold,
// then Curate. CombinedSet performs no locking.
package fdr

import (
	"sort"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
)

// CombinedSet is the deduplicated union of identifications across runs.
type CombinedSet struct {
	entries    map[string]core.Identification
	classifier core.Classifier
	targetFDR  float64

	threshold  float64
	estimated  bool
	acceptNone bool
}

// NewCombinedSet validates the shared settings and returns an empty set.
// Configuration problems are reported before any merge work begins.
func NewCombinedSet(classifier core.Classifier, targetFDR float64) (*CombinedSet, error) {
	if err := ValidateTargetFDR(targetFDR); err != nil {
		return nil, err
	}
	if _, err := core.NewClassifier(classifier.Prefix); err != nil {
		return nil, err
	}
	return &CombinedSet{
		entries:    make(map[string]core.Identification),
		classifier: classifier,
		targetFDR:  targetFDR,
	}, nil
}

// ValidateTargetFDR requires a fraction strictly inside (0,1).
func ValidateTargetFDR(targetFDR float64) error {
	if !(targetFDR > 0 && targetFDR < 1) {
		return &core.ConfigurationError{Field: "target_fdr", Message: "target FDR must be a fraction strictly between 0 and 1"}
	}
	return nil
}

// Len returns the number of distinct keys.
func (s *CombinedSet) Len() int { return len(s.entries) }

// Get returns the stored identification for key.
func (s *CombinedSet) Get(key string) (core.Identification, bool) {
	id, ok := s.entries[key]
	return id, ok
}

// Classifier returns the decoy rule shared with the estimator.
func (s *CombinedSet) Classifier() core.Classifier { return s.classifier }

// TargetFDR returns the requested false discovery rate.
func (s *CombinedSet) TargetFDR() float64 { return s.targetFDR }

// Threshold returns the estimated probability cutoff and whether one has been
// computed yet.
func (s *CombinedSet) Threshold() (float64, bool) { return s.threshold, s.estimated }

// Identifications returns a copy of the entries ordered by descending
// probability, ties broken by key.
func (s *CombinedSet) Identifications() []core.Identification {
	out := make([]core.Identification, 0, len(s.entries))
	for _, id := range s.entries {
		out = append(out, id.Clone())
	}
	sortByProbability(out)
	return out
}

// Counts returns the number of target and decoy entries.
func (s *CombinedSet) Counts() (targets, decoys int) {
	for _, id := range s.entries {
		if id.IsDecoy {
			decoys++
		} else {
			targets++
		}
	}
	return targets, decoys
}

func (s *CombinedSet) setThreshold(est Estimate) {
	s.threshold = est.Threshold
	s.acceptNone = !est.Reachable
	s.estimated = true
}

func sortByProbability(ids []core.Identification) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Probability != ids[j].Probability {
			return ids[i].Probability > ids[j].Probability
		}
		return ids[i].Key < ids[j].Key
	})
}
