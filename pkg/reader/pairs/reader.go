// Package pairs reads caller-selected cluster comparison lists: one pair of
// cluster ids per line, separated by whitespace. Blank lines and lines
// starting with '#' are skipped.
package pairs

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
	"github.com/ChrisMcGann/pepmerge/pkg/similarity"
)

// IDPair names two clusters to compare.
type IDPair struct {
	A, B string
}

// Read parses a pair list.
func Read(r io.Reader) ([]IDPair, error) {
	scanner := bufio.NewScanner(r)
	var out []IDPair
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 cluster ids, got %d fields", lineNum, len(fields))
		}
		out = append(out, IDPair{A: fields[0], B: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading pairs: %w", err)
	}
	return out, nil
}

// Resolve maps id pairs onto loaded clusters. Unknown ids are an error.
func Resolve(ids []IDPair, clusters map[string]*core.PeakCluster) ([]similarity.Pair, error) {
	out := make([]similarity.Pair, 0, len(ids))
	for i, p := range ids {
		a, ok := clusters[p.A]
		if !ok {
			return nil, fmt.Errorf("pair %d: unknown cluster %q", i+1, p.A)
		}
		b, ok := clusters[p.B]
		if !ok {
			return nil, fmt.Errorf("pair %d: unknown cluster %q", i+1, p.B)
		}
		out = append(out, similarity.Pair{A: a, B: b})
	}
	return out, nil
}
