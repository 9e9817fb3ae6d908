package similarity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// PoolConfig controls the scoring pool.
type PoolConfig struct {
	Workers  int          // number of worker goroutines (>=1)
	Logger   *slog.Logger // nil uses slog.Default()
	Progress *Progress    // optional shared counter
}

// Pool runs scoring batches on a bounded number of goroutines.
type Pool struct {
	workers  int
	logger   *slog.Logger
	progress *Progress

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool returns a pool ready to score batches.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers:  cfg.Workers,
		logger:   cfg.Logger,
		progress: cfg.Progress,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Progress returns the pool's counter, which may be nil.
func (p *Pool) Progress() *Progress { return p.progress }

// Shutdown interrupts running and future batches. Tasks that have not
// finished resolve to Interrupted; batches still return a full result list.
func (p *Pool) Shutdown() {
	p.cancel()
}

// ScoreBatch scores every pair and returns once all tasks have finished.
// results[i] always corresponds to pairs[i]; completion order is unspecified.
// Cancelling ctx, or shutting the pool down, degrades the remaining tasks to
// Interrupted instead of aborting the batch.
func (p *Pool) ScoreBatch(ctx context.Context, pairs []Pair, params Params) []Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()
	if p.ctx.Err() != nil {
		cancel()
	}

	logger := p.logger.With("batch", uuid.NewString())
	results := make([]Result, len(pairs))
	if len(pairs) == 0 {
		return results
	}

	tasks := make([]*Task, len(pairs))
	for i, pair := range pairs {
		tasks[i] = NewTask(pair, params, &results[i])
	}
	p.progress.submit(len(tasks))

	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	logger.Debug("scoring batch started", "pairs", len(tasks), "workers", workers)

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				tasks[i].Run(ctx, logger)
				p.progress.record(results[i].Status)
			}
		}()
	}

	// Every task is submitted even after cancellation so each slot is filled.
	for i := range tasks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	counts := make(map[Status]int, 4)
	for _, r := range results {
		counts[r.Status]++
	}
	logger.Info("scoring batch finished",
		"pairs", len(results),
		"scored", counts[Scored],
		"sparse", counts[Sparse],
		"interrupted", counts[Interrupted],
		"failed", counts[Failed],
	)
	return results
}
