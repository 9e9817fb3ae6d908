package fdr

import (
	"log/slog"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
)

// Aggregator merges runs into a CombinedSet in the order they are supplied.
type Aggregator struct {
	set    *CombinedSet
	logger *slog.Logger
	runs   []string
}

// NewAggregator returns an aggregator writing into set. A nil logger uses
// slog.Default().
func NewAggregator(set *CombinedSet, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{set: set, logger: logger}
}

// Runs returns the names of the runs merged so far, in merge order.
func (a *Aggregator) Runs() []string {
	out := make([]string, len(a.runs))
	copy(out, a.runs)
	return out
}

// Merge folds one run into the combined set. Keys are visited in sorted order
// so a failing run always reports the same offending key. On error the set may
// hold a partial merge and must be discarded.
func (a *Aggregator) Merge(run *core.Run) error {
	if a.set.estimated {
		return ErrMergeAfterEstimate
	}

	added, updated := 0, 0
	for _, key := range run.Keys() {
		incoming := run.Identifications[key]
		if incoming.Key == "" {
			incoming.Key = key
		}
		if incoming.SourceRun == "" {
			incoming.SourceRun = run.Name
		}
		if err := incoming.Validate(); err != nil {
			return err
		}

		label, err := a.set.classifier.ClassifyIdentification(incoming)
		if err != nil {
			return err
		}

		current, exists := a.set.entries[incoming.Key]
		if !exists {
			stored := incoming.Clone()
			stored.IsDecoy = label == core.Decoy
			a.set.entries[stored.Key] = stored
			added++
			continue
		}

		if (label == core.Decoy) != current.IsDecoy {
			return &core.DataError{
				Run:    run.Name,
				Key:    incoming.Key,
				Reason: "ambiguous key: classified " + label.String() + " here but " + labelOf(current).String() + " in run " + current.SourceRun,
			}
		}

		if incoming.Probability > current.Probability {
			replacement := current.Clone()
			replacement.Probability = incoming.Probability
			replacement.SourceRun = incoming.SourceRun
			a.set.entries[incoming.Key] = replacement
			updated++
		}
	}

	a.runs = append(a.runs, run.Name)
	a.logger.Debug("merged run",
		"run", run.Name,
		"identifications", len(run.Identifications),
		"added", added,
		"raised", updated,
		"combined", a.set.Len(),
	)
	return nil
}

// Combine builds a CombinedSet from runs in order. Any DataError aborts the
// merge and no set is returned.
func Combine(runs []*core.Run, classifier core.Classifier, targetFDR float64, logger *slog.Logger) (*CombinedSet, error) {
	set, err := NewCombinedSet(classifier, targetFDR)
	if err != nil {
		return nil, err
	}
	agg := NewAggregator(set, logger)
	for _, run := range runs {
		if err := agg.Merge(run); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func labelOf(id core.Identification) core.Label {
	if id.IsDecoy {
		return core.Decoy
	}
	return core.Target
}
