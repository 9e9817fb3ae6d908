package similarity

import "sync/atomic"

// Progress counts scoring tasks across batches. Workers update it atomically;
// readers poll Snapshot without blocking them.
type Progress struct {
	total       atomic.Int64
	done        atomic.Int64
	scored      atomic.Int64
	sparse      atomic.Int64
	interrupted atomic.Int64
	failed      atomic.Int64
}

// ProgressSnapshot is a point-in-time copy of the counters.
type ProgressSnapshot struct {
	Total       int64
	Done        int64
	Scored      int64
	Sparse      int64
	Interrupted int64
	Failed      int64
}

// Fraction returns Done/Total, or 0 when nothing has been submitted.
func (s ProgressSnapshot) Fraction() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Done) / float64(s.Total)
}

func (p *Progress) submit(n int) {
	if p == nil {
		return
	}
	p.total.Add(int64(n))
}

func (p *Progress) record(s Status) {
	if p == nil {
		return
	}
	switch s {
	case Scored:
		p.scored.Add(1)
	case Sparse:
		p.sparse.Add(1)
	case Interrupted:
		p.interrupted.Add(1)
	case Failed:
		p.failed.Add(1)
	}
	p.done.Add(1)
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{}
	}
	return ProgressSnapshot{
		Total:       p.total.Load(),
		Done:        p.done.Load(),
		Scored:      p.scored.Load(),
		Sparse:      p.sparse.Load(),
		Interrupted: p.interrupted.Load(),
		Failed:      p.failed.Load(),
	}
}
