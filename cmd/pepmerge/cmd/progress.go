package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/ChrisMcGann/pepmerge/pkg/similarity"
)

const progressInterval = 250 * time.Millisecond

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// watchProgress redraws a single status line from p until the returned stop
// function is called. Nothing is drawn when enabled is false.
func watchProgress(out io.Writer, p *similarity.Progress, enabled bool) (stop func()) {
	if !enabled || p == nil {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				fmt.Fprintf(out, "\r%s\n", progressLine(p.Snapshot()))
				return
			case <-ticker.C:
				fmt.Fprintf(out, "\r%s", progressLine(p.Snapshot()))
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

func progressLine(s similarity.ProgressSnapshot) string {
	return fmt.Sprintf("scoring %d/%d pairs (%.0f%%)  sparse %d  interrupted %d  failed %d",
		s.Done, s.Total, s.Fraction()*100, s.Sparse, s.Interrupted, s.Failed)
}
