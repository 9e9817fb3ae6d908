// Package similarity scores pairs of peak clusters by the cosine similarity of
// their normalized fragment scans, and runs batches of pairwise comparisons on
// a bounded worker pool.
package similarity

import (
	"context"
	"iter"
	"math"
	"sort"

	"github.com/ChrisMcGann/pepmerge/pkg/filter"
)

// Scan is a lazy, finite sequence of (m/z, intensity) points.
type Scan = iter.Seq2[float64, float64]

const (
	// DefaultBinWidth is the m/z bin width in Th.
	DefaultBinWidth = 0.02
	// DefaultMinPoints is the smallest scan that is scored at all.
	DefaultMinPoints = 3

	// points binned between cancellation checks
	checkEvery = 64
)

// Params controls how scans are compared.
type Params struct {
	BinWidth  float64
	MinPoints int
	Filter    filter.Config
}

// DefaultParams returns the standard comparison settings.
func DefaultParams() Params {
	return Params{
		BinWidth:  DefaultBinWidth,
		MinPoints: DefaultMinPoints,
	}
}

func (p Params) normalized() Params {
	if !(p.BinWidth > 0) {
		p.BinWidth = DefaultBinWidth
	}
	if p.MinPoints < DefaultMinPoints {
		p.MinPoints = DefaultMinPoints
	}
	return p
}

type bin struct {
	index     int64
	intensity float64
}

// binScan sums intensities per m/z bin and returns bins in index order along
// with the number of usable points. Points with no positive intensity or a
// non-finite m/z are not counted.
func binScan(ctx context.Context, scan Scan, width float64) ([]bin, int, error) {
	sums := make(map[int64]float64)
	points, seen := 0, 0
	for mz, intensity := range scan {
		seen++
		if seen%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, points, err
			}
		}
		if math.IsNaN(mz) || math.IsInf(mz, 0) || !(intensity > 0) || math.IsInf(intensity, 0) {
			continue
		}
		points++
		sums[int64(math.Floor(mz/width))] += intensity
	}

	bins := make([]bin, 0, len(sums))
	for idx, v := range sums {
		bins = append(bins, bin{index: idx, intensity: v})
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].index < bins[j].index })
	return bins, points, nil
}

func magnitude(bins []bin) float64 {
	sum := 0.0
	for _, b := range bins {
		sum += b.intensity * b.intensity
	}
	return math.Sqrt(sum)
}

// dot walks both bin lists in index order; the summation order is the same
// whichever scan comes first.
func dot(a, b []bin) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].index < b[j].index:
			i++
		case a[i].index > b[j].index:
			j++
		default:
			sum += a[i].intensity * b[j].intensity
			i++
			j++
		}
	}
	return sum
}

// compare returns the score and whether the sparsity guard applied.
func compare(ctx context.Context, a, b Scan, p Params) (float64, bool, error) {
	p = p.normalized()

	binsA, pointsA, err := binScan(ctx, a, p.BinWidth)
	if err != nil {
		return 0, false, err
	}
	if pointsA < p.MinPoints {
		return 0, true, nil
	}
	binsB, pointsB, err := binScan(ctx, b, p.BinWidth)
	if err != nil {
		return 0, false, err
	}
	if pointsB < p.MinPoints {
		return 0, true, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	norm := magnitude(binsA) * magnitude(binsB)
	if norm == 0 {
		return 0, false, nil
	}
	score := dot(binsA, binsB) / norm
	return math.Min(1, math.Max(0, score)), false, nil
}

// Score returns the cosine similarity of two normalized scans in [0,1].
// Scans with fewer than MinPoints positive points (at least 3) score 0.
func Score(a, b Scan, p Params) float64 {
	score, _, _ := compare(context.Background(), a, b, p)
	return score
}

// ScoreContext is Score with cooperative cancellation. An interrupted
// comparison returns 0 and the context error.
func ScoreContext(ctx context.Context, a, b Scan, p Params) (float64, error) {
	score, _, err := compare(ctx, a, b, p)
	if err != nil {
		return 0, err
	}
	return score, nil
}
