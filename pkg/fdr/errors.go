package fdr

import "errors"

var (
	// ErrThresholdNotEstimated is returned when curation is attempted before
	// EstimateThreshold has run on the full set.
	ErrThresholdNotEstimated = errors.New("fdr: probability threshold has not been estimated")

	// ErrMergeAfterEstimate is returned when a run is merged into a set whose
	// threshold has already been computed.
	ErrMergeAfterEstimate = errors.New("fdr: cannot merge into a set after threshold estimation")
)
