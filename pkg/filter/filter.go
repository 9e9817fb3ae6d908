// Package filter provides peak preprocessing applied to cluster scans before
// they are compared.
package filter

import (
	"fmt"
	"sort"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 // Keep only peaks at or above this % of base peak (0 = no cutoff)
}

// Validate rejects settings that cannot be applied.
func (c Config) Validate() error {
	if c.TopN < 0 {
		return &core.ConfigurationError{Field: "top_n", Message: "must not be negative"}
	}
	if c.IntensityCutoff < 0 || c.IntensityCutoff >= 100 {
		return &core.ConfigurationError{Field: "intensity_cutoff", Message: fmt.Sprintf("%g is outside [0,100)", c.IntensityCutoff)}
	}
	return nil
}

// IsZero reports whether the config leaves peaks untouched apart from
// zero-intensity removal, so scoring can skip Apply.
func (c Config) IsZero() bool {
	return c.TopN == 0 && c.IntensityCutoff == 0
}

// Apply returns a filtered copy of peaks ordered by m/z. The input slice is
// never modified, so clusters shared between scoring tasks stay read-only.
func (c Config) Apply(peaks []core.Peak) []core.Peak {
	filtered := RemoveZeroIntensityPeaks(peaks)

	if c.IntensityCutoff > 0 {
		filtered = c.filterByIntensity(filtered)
	}
	if c.TopN > 0 {
		filtered = c.filterTopN(filtered)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].MZ < filtered[j].MZ
	})
	return filtered
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c Config) filterByIntensity(peaks []core.Peak) []core.Peak {
	if len(peaks) == 0 {
		return peaks
	}

	maxIntensity := 0.0
	for _, peak := range peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}
	threshold := (c.IntensityCutoff / 100.0) * maxIntensity

	kept := peaks[:0]
	for _, peak := range peaks {
		if peak.Intensity >= threshold {
			kept = append(kept, peak)
		}
	}
	return kept
}

// filterTopN keeps only the N most intense peaks
func (c Config) filterTopN(peaks []core.Peak) []core.Peak {
	if len(peaks) <= c.TopN {
		return peaks
	}

	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})
	return peaks[:c.TopN]
}

// RemoveZeroIntensityPeaks returns a new slice without zero or negative
// intensity peaks.
func RemoveZeroIntensityPeaks(peaks []core.Peak) []core.Peak {
	out := make([]core.Peak, 0, len(peaks))
	for _, peak := range peaks {
		if peak.Intensity > 0 {
			out = append(out, peak)
		}
	}
	return out
}
