package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
)

// Status records how a pair's score was obtained.
type Status int

const (
	Scored Status = iota
	Sparse
	Interrupted
	Failed
)

func (s Status) String() string {
	switch s {
	case Scored:
		return "scored"
	case Sparse:
		return "sparse"
	case Interrupted:
		return "interrupted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Pair is one caller-selected comparison.
type Pair struct {
	A, B *core.PeakCluster
}

// Result is the outcome of comparing one pair. Score is 0 unless Status is
// Scored; Err is a *core.ConcurrencyError for Interrupted and Failed.
type Result struct {
	ClusterA string
	ClusterB string
	Score    float64
	Status   Status
	Err      error
}

// Unscored reports whether the result carries no similarity estimate.
func (r Result) Unscored() bool {
	return r.Status != Scored
}

// Task compares two clusters and writes only into its own result slot.
type Task struct {
	A, B   *core.PeakCluster
	Params Params
	out    *Result
}

// NewTask binds a pair to the slot its result is written to.
func NewTask(pair Pair, params Params, out *Result) *Task {
	return &Task{A: pair.A, B: pair.B, Params: params, out: out}
}

// Run performs the comparison. Cancellation and panics are converted into an
// unscored result and logged; Run never fails.
func (t *Task) Run(ctx context.Context, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	res := Result{ClusterA: clusterID(t.A), ClusterB: clusterID(t.B)}

	defer func() {
		if r := recover(); r != nil {
			res.Score = 0
			res.Status = Failed
			res.Err = &core.ConcurrencyError{ClusterA: res.ClusterA, ClusterB: res.ClusterB, Err: fmt.Errorf("panic: %v", r)}
			logger.Warn("scoring task failed", "cluster_a", res.ClusterA, "cluster_b", res.ClusterB, "err", res.Err)
		}
		*t.out = res
	}()

	if t.A == nil || t.B == nil {
		res.Status = Failed
		res.Err = &core.ConcurrencyError{ClusterA: res.ClusterA, ClusterB: res.ClusterB, Err: errors.New("missing cluster")}
		logger.Warn("scoring task failed", "cluster_a", res.ClusterA, "cluster_b", res.ClusterB, "err", res.Err)
		return
	}

	peaksA, peaksB := t.A.Peaks, t.B.Peaks
	if !t.Params.Filter.IsZero() {
		peaksA = t.Params.Filter.Apply(peaksA)
		peaksB = t.Params.Filter.Apply(peaksB)
	}
	a := core.NormalizePeaks(peaksA)
	b := core.NormalizePeaks(peaksB)

	var (
		score  float64
		sparse bool
		err    = ctx.Err()
	)
	if err == nil {
		score, sparse, err = compare(ctx, a, b, t.Params)
	}
	switch {
	case err != nil:
		res.Status = Interrupted
		res.Err = &core.ConcurrencyError{ClusterA: res.ClusterA, ClusterB: res.ClusterB, Err: err}
		logger.Debug("scoring task interrupted", "cluster_a", res.ClusterA, "cluster_b", res.ClusterB, "err", err)
	case sparse:
		res.Status = Sparse
	default:
		res.Score = score
		res.Status = Scored
	}
}

func clusterID(c *core.PeakCluster) string {
	if c == nil {
		return ""
	}
	return c.ID
}
