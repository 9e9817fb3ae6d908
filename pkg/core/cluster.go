package core

import (
	"fmt"
	"iter"
	"math"
	"sort"
	"strings"
)

// PeakCluster is a set of co-eluting features attributed to one analyte,
// represented by its consensus fragment scan. Clusters are produced upstream
// and treated as read-only by the scorer.
type PeakCluster struct {
	ID            string
	PrecursorMZ   float64
	Charge        int      // 0 when unknown
	RetentionTime *float64 // seconds
	Peaks         []Peak   // ordered by m/z

	SourceFile string
}

// Peak represents a single m/z, intensity pair with optional annotation.
type Peak struct {
	MZ         float64
	Intensity  float64
	Annotation string // Ion annotation (e.g., "y3", "b2^2")
}

// Validate checks that a cluster's scan is usable for scoring.
func (c *PeakCluster) Validate() error {
	var errs []string

	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, "cluster id is required")
	}
	if c.PrecursorMZ < 0 {
		errs = append(errs, "precursor m/z must not be negative")
	}

	for i, peak := range c.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	if !c.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "PeakCluster " + c.ID,
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (c *PeakCluster) ArePeaksSorted() bool {
	return sort.SliceIsSorted(c.Peaks, func(i, j int) bool {
		return c.Peaks[i].MZ < c.Peaks[j].MZ
	})
}

// SortPeaks sorts peaks by m/z in ascending order.
func (c *PeakCluster) SortPeaks() {
	sort.SliceStable(c.Peaks, func(i, j int) bool {
		return c.Peaks[i].MZ < c.Peaks[j].MZ
	})
}

// NormalizedScan yields (m/z, intensity) pairs scaled so the base peak is 1.
// The sequence is lazy and does not modify the cluster.
func (c *PeakCluster) NormalizedScan() iter.Seq2[float64, float64] {
	return NormalizePeaks(c.Peaks)
}

// NormalizePeaks is NormalizedScan for a bare peak list.
func NormalizePeaks(peaks []Peak) iter.Seq2[float64, float64] {
	return func(yield func(float64, float64) bool) {
		base := basePeak(peaks)
		if base <= 0 {
			return
		}
		for _, p := range peaks {
			if !yield(p.MZ, p.Intensity/base) {
				return
			}
		}
	}
}

func basePeak(peaks []Peak) float64 {
	maxIntensity := 0.0
	for _, p := range peaks {
		if p.Intensity > maxIntensity {
			maxIntensity = p.Intensity
		}
	}
	return maxIntensity
}
