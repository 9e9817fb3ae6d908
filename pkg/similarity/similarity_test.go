package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
	"github.com/ChrisMcGann/pepmerge/pkg/filter"
)

func cluster(id string, peaks ...core.Peak) *core.PeakCluster {
	return &core.PeakCluster{ID: id, Peaks: peaks}
}

func randomCluster(rng *rand.Rand, id string, n int) *core.PeakCluster {
	peaks := make([]core.Peak, n)
	for i := range peaks {
		peaks[i] = core.Peak{MZ: 100 + rng.Float64()*900, Intensity: 1 + rng.Float64()*1000}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].MZ < peaks[j].MZ })
	return cluster(id, peaks...)
}

func TestScore_SparsityGuard(t *testing.T) {
	params := DefaultParams()
	two := cluster("two", core.Peak{MZ: 100, Intensity: 10}, core.Peak{MZ: 200, Intensity: 20})
	one := cluster("one", core.Peak{MZ: 100, Intensity: 10})
	empty := cluster("empty")
	full := cluster("full",
		core.Peak{MZ: 100, Intensity: 10},
		core.Peak{MZ: 200, Intensity: 20},
		core.Peak{MZ: 300, Intensity: 30},
	)

	tests := []struct {
		name string
		a, b *core.PeakCluster
	}{
		{"identical two-point scans", two, two},
		{"identical one-point scans", one, one},
		{"empty scans", empty, empty},
		{"sparse first", two, full},
		{"sparse second", full, one},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, Score(tt.a.NormalizedScan(), tt.b.NormalizedScan(), params))
		})
	}

	assert.Equal(t, 0.0, Score(two.NormalizedScan(), two.NormalizedScan(), Params{MinPoints: 1}),
		"the guard cannot be lowered below three points")
}

func TestScore_IdenticalAndDisjoint(t *testing.T) {
	a := cluster("a",
		core.Peak{MZ: 100, Intensity: 10},
		core.Peak{MZ: 200, Intensity: 20},
		core.Peak{MZ: 300, Intensity: 30},
	)
	b := cluster("b",
		core.Peak{MZ: 400, Intensity: 10},
		core.Peak{MZ: 500, Intensity: 20},
		core.Peak{MZ: 600, Intensity: 30},
	)

	assert.InDelta(t, 1.0, Score(a.NormalizedScan(), a.NormalizedScan(), DefaultParams()), 1e-12)
	assert.Equal(t, 0.0, Score(a.NormalizedScan(), b.NormalizedScan(), DefaultParams()))
}

func TestScore_KnownValue(t *testing.T) {
	a := cluster("a",
		core.Peak{MZ: 100, Intensity: 1},
		core.Peak{MZ: 200, Intensity: 1},
		core.Peak{MZ: 300, Intensity: 1},
	)
	b := cluster("b",
		core.Peak{MZ: 100, Intensity: 1},
		core.Peak{MZ: 200, Intensity: 1},
		core.Peak{MZ: 900, Intensity: 1},
	)
	// two of three unit bins shared: 2 / (sqrt(3) * sqrt(3))
	assert.InDelta(t, 2.0/3.0, Score(a.NormalizedScan(), b.NormalizedScan(), DefaultParams()), 1e-12)
}

func TestScore_PeaksWithinBinMerge(t *testing.T) {
	a := cluster("a",
		core.Peak{MZ: 100.001, Intensity: 1},
		core.Peak{MZ: 100.002, Intensity: 1},
		core.Peak{MZ: 200.001, Intensity: 2},
	)
	b := cluster("b",
		core.Peak{MZ: 100.003, Intensity: 2},
		core.Peak{MZ: 200.004, Intensity: 1},
		core.Peak{MZ: 200.005, Intensity: 1},
	)
	assert.InDelta(t, 1.0, Score(a.NormalizedScan(), b.NormalizedScan(), DefaultParams()), 1e-12)
}

func TestScore_SymmetricAndBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1))
	params := Params{BinWidth: 5}

	for i := 0; i < 200; i++ {
		a := randomCluster(rng, "a", 3+rng.IntN(40))
		b := randomCluster(rng, "b", 3+rng.IntN(40))

		ab := Score(a.NormalizedScan(), b.NormalizedScan(), params)
		ba := Score(b.NormalizedScan(), a.NormalizedScan(), params)
		require.Equal(t, ab, ba, "iteration %d", i)
		require.GreaterOrEqual(t, ab, 0.0)
		require.LessOrEqual(t, ab, 1.0)
	}
}

func TestScoreContext_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rng := rand.New(rand.NewPCG(9, 9))
	a := randomCluster(rng, "a", 10)
	score, err := ScoreContext(ctx, a.NormalizedScan(), a.NormalizedScan(), DefaultParams())
	assert.Equal(t, 0.0, score)
	assert.ErrorIs(t, err, context.Canceled)
}

// cancellingScan yields n unit points and cancels after cancelAfter of them.
func cancellingScan(n, cancelAfter int, cancel context.CancelFunc, yielded *int) Scan {
	return func(yield func(float64, float64) bool) {
		for i := 0; i < n; i++ {
			if i == cancelAfter {
				cancel()
			}
			*yielded++
			if !yield(100+float64(i), 1) {
				return
			}
		}
	}
}

func TestScoreContext_InterruptedMidScan(t *testing.T) {
	const n = 10 * checkEvery

	tests := []struct {
		name   string
		second bool
	}{
		{"first scan", false},
		{"second scan", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			yielded := 0
			steady := cluster("steady",
				core.Peak{MZ: 100, Intensity: 1},
				core.Peak{MZ: 101, Intensity: 1},
				core.Peak{MZ: 102, Intensity: 1},
			).NormalizedScan()
			cut := cancellingScan(n, 10, cancel, &yielded)

			a, b := cut, steady
			if tt.second {
				a, b = steady, cut
			}
			score, err := ScoreContext(ctx, a, b, Params{BinWidth: 1})
			assert.Equal(t, 0.0, score)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Less(t, yielded, n, "scan was not abandoned after cancellation")
		})
	}
}

func TestScoreAndTask_AgreeOnZeroIntensityPeaks(t *testing.T) {
	full := cluster("full",
		core.Peak{MZ: 100, Intensity: 10},
		core.Peak{MZ: 300, Intensity: 30},
		core.Peak{MZ: 400, Intensity: 5},
	)

	tests := []struct {
		name   string
		other  *core.PeakCluster
		status Status
	}{
		{"three points one empty", cluster("z3",
			core.Peak{MZ: 100, Intensity: 10},
			core.Peak{MZ: 200, Intensity: 0},
			core.Peak{MZ: 300, Intensity: 30},
		), Sparse},
		{"four points one empty", cluster("z4",
			core.Peak{MZ: 100, Intensity: 10},
			core.Peak{MZ: 200, Intensity: 0},
			core.Peak{MZ: 300, Intensity: 30},
			core.Peak{MZ: 400, Intensity: 5},
		), Scored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			want := Score(tt.other.NormalizedScan(), full.NormalizedScan(), params)

			var res Result
			NewTask(Pair{A: tt.other, B: full}, params, &res).Run(context.Background(), nil)

			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, want, res.Score)
			if tt.status == Sparse {
				assert.Equal(t, 0.0, want)
			} else {
				assert.InDelta(t, 1.0, want, 1e-12)
			}
		})
	}
}

func randomPairs(rng *rand.Rand, n int) []Pair {
	clusters := make([]*core.PeakCluster, 12)
	for i := range clusters {
		clusters[i] = randomCluster(rng, fmt.Sprintf("c%02d", i), 1+rng.IntN(30))
	}
	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i] = Pair{A: clusters[rng.IntN(len(clusters))], B: clusters[rng.IntN(len(clusters))]}
	}
	return pairs
}

func TestScoreBatch_ResultsIndependentOfPoolSize(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 8))
	pairs := randomPairs(rng, 97)
	params := Params{BinWidth: 2}

	want := make([]float64, len(pairs))
	for i, p := range pairs {
		want[i] = Score(p.A.NormalizedScan(), p.B.NormalizedScan(), params)
	}

	for _, workers := range []int{1, 2, 4, 16, 200} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			progress := &Progress{}
			pool := NewPool(PoolConfig{Workers: workers, Progress: progress})

			results := pool.ScoreBatch(context.Background(), pairs, params)
			require.Len(t, results, len(pairs))
			for i, r := range results {
				assert.Equal(t, pairs[i].A.ID, r.ClusterA)
				assert.Equal(t, pairs[i].B.ID, r.ClusterB)
				assert.Equal(t, want[i], r.Score, "pair %d", i)
				assert.Contains(t, []Status{Scored, Sparse}, r.Status)
				assert.NoError(t, r.Err)
			}

			snap := progress.Snapshot()
			assert.Equal(t, int64(len(pairs)), snap.Total)
			assert.Equal(t, int64(len(pairs)), snap.Done)
			assert.Equal(t, snap.Done, snap.Scored+snap.Sparse)
			assert.Equal(t, 1.0, snap.Fraction())
		})
	}
}

func TestScoreBatch_SubmissionOrderDoesNotChangeScores(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 3))
	pairs := randomPairs(rng, 40)
	pool := NewPool(PoolConfig{Workers: 4})

	forward := pool.ScoreBatch(context.Background(), pairs, DefaultParams())

	reversed := make([]Pair, len(pairs))
	for i, p := range pairs {
		reversed[len(pairs)-1-i] = p
	}
	backward := pool.ScoreBatch(context.Background(), reversed, DefaultParams())

	for i := range forward {
		assert.Equal(t, forward[i], backward[len(pairs)-1-i])
	}
}

func TestScoreBatch_CancelledContextFillsEverySlot(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))
	pairs := randomPairs(rng, 25)
	progress := &Progress{}
	pool := NewPool(PoolConfig{Workers: 3, Progress: progress})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := pool.ScoreBatch(ctx, pairs, DefaultParams())
	require.Len(t, results, len(pairs))
	for _, r := range results {
		assert.Equal(t, Interrupted, r.Status)
		assert.Equal(t, 0.0, r.Score)
		assert.True(t, r.Unscored())

		var ce *core.ConcurrencyError
		require.True(t, errors.As(r.Err, &ce))
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Equal(t, int64(len(pairs)), progress.Snapshot().Interrupted)
}

func TestScoreBatch_Shutdown(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 6))
	pairs := randomPairs(rng, 10)
	pool := NewPool(PoolConfig{Workers: 2})
	pool.Shutdown()

	results := pool.ScoreBatch(context.Background(), pairs, DefaultParams())
	require.Len(t, results, len(pairs))
	for _, r := range results {
		assert.Equal(t, Interrupted, r.Status)
	}
}

func TestScoreBatch_MissingClusterFailsOnlyItsTask(t *testing.T) {
	good := cluster("g",
		core.Peak{MZ: 100, Intensity: 1},
		core.Peak{MZ: 200, Intensity: 2},
		core.Peak{MZ: 300, Intensity: 3},
	)
	pairs := []Pair{{A: good, B: good}, {A: good, B: nil}, {A: good, B: good}}

	results := NewPool(PoolConfig{Workers: 2}).ScoreBatch(context.Background(), pairs, DefaultParams())
	require.Len(t, results, 3)
	assert.Equal(t, Scored, results[0].Status)
	assert.Equal(t, Failed, results[1].Status)
	assert.Equal(t, "g", results[1].ClusterA)
	assert.Error(t, results[1].Err)
	assert.Equal(t, Scored, results[2].Status)
}

func TestScoreBatch_Empty(t *testing.T) {
	results := NewPool(PoolConfig{Workers: 4}).ScoreBatch(context.Background(), nil, DefaultParams())
	assert.Empty(t, results)
}

func TestTask_FilterLeavesClustersUntouched(t *testing.T) {
	a := cluster("a",
		core.Peak{MZ: 100, Intensity: 1},
		core.Peak{MZ: 200, Intensity: 100},
		core.Peak{MZ: 300, Intensity: 50},
		core.Peak{MZ: 400, Intensity: 80},
	)
	params := DefaultParams()
	params.Filter = filter.Config{TopN: 3}

	var res Result
	NewTask(Pair{A: a, B: a}, params, &res).Run(context.Background(), slog.Default())

	assert.Equal(t, Scored, res.Status)
	assert.InDelta(t, 1.0, res.Score, 1e-12)
	assert.Len(t, a.Peaks, 4)
	assert.Equal(t, 1.0, a.Peaks[0].Intensity)
}
