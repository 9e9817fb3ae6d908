// Package msp provides a streaming reader for peak cluster consensus spectra
// stored in MSP format.
//
// Each entry starts with "Name: <cluster id>", may carry a
// "Comment: Parent=<m/z> Charge=<z> RT=<seconds>" line, and lists its peaks
// after "Num peaks: <n>".
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
)

// Reader provides streaming access to MSP cluster files
type Reader struct {
	scanner    *bufio.Scanner
	sourceFile string
	lineNum    int
	current    *core.PeakCluster
	err        error
}

// NewReader creates a new MSP reader. sourceFile is recorded on each cluster.
func NewReader(r io.Reader, sourceFile string) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner, sourceFile: sourceFile}
}

// Next advances to the next cluster. Returns false when no more clusters or error.
func (r *Reader) Next() bool {
	r.current = nil

	c, err := r.readCluster()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.current = c
	return true
}

// Cluster returns the current cluster
func (r *Reader) Cluster() *core.PeakCluster {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// ReadAll drains the reader into a map keyed by cluster id. Duplicate ids are
// an error.
func ReadAll(r io.Reader, sourceFile string) (map[string]*core.PeakCluster, error) {
	reader := NewReader(r, sourceFile)
	out := make(map[string]*core.PeakCluster)
	for reader.Next() {
		c := reader.Cluster()
		if _, dup := out[c.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate cluster id %q", sourceFile, c.ID)
		}
		out[c.ID] = c
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// readCluster reads a single entry from the MSP file
func (r *Reader) readCluster() (*core.PeakCluster, error) {
	c := &core.PeakCluster{SourceFile: r.sourceFile}

	numPeaks := 0
	inPeaks := false

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if inPeaks {
			peak, err := parsePeak(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			c.Peaks = append(c.Peaks, peak)
			if len(c.Peaks) >= numPeaks {
				return r.finish(c)
			}
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected 'Field: value', got %q", r.lineNum, line)
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "name":
			if c.ID != "" {
				return nil, fmt.Errorf("line %d: entry %q has no peak list", r.lineNum, c.ID)
			}
			c.ID = value
		case "comment":
			parseComment(c, value)
		case "precursormz":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				c.PrecursorMZ = mz
			}
		case "num peaks":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("line %d: invalid num peaks %q", r.lineNum, value)
			}
			if c.ID == "" {
				return nil, fmt.Errorf("line %d: num peaks before Name", r.lineNum)
			}
			numPeaks = n
			inPeaks = true
			if n == 0 {
				return r.finish(c)
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if c.ID != "" {
		if inPeaks {
			return nil, fmt.Errorf("cluster %q: expected %d peaks, got %d", c.ID, numPeaks, len(c.Peaks))
		}
		return nil, fmt.Errorf("cluster %q: missing peak list", c.ID)
	}
	return nil, io.EOF
}

func (r *Reader) finish(c *core.PeakCluster) (*core.PeakCluster, error) {
	if !c.ArePeaksSorted() {
		c.SortPeaks()
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
	}
	return c, nil
}

// parseComment extracts key=value metadata from a Comment field
func parseComment(c *core.PeakCluster, comment string) {
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		switch key {
		case "Parent":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				c.PrecursorMZ = mz
			}
		case "Charge":
			if z, err := strconv.Atoi(strings.TrimPrefix(value, "+")); err == nil {
				c.Charge = z
			}
		case "RT", "RetentionTime":
			if rt, err := strconv.ParseFloat(value, 64); err == nil {
				c.RetentionTime = &rt
			}
		}
	}
}

// parsePeak parses a single peak line (format: "mz\tintensity\t\"annotation\"")
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	peak := core.Peak{MZ: mz, Intensity: intensity}
	if len(fields) >= 3 {
		annotation := strings.Trim(fields[2], "\"")
		if idx := strings.Index(annotation, "/"); idx > 0 {
			annotation = annotation[:idx]
		}
		peak.Annotation = annotation
	}
	return peak, nil
}
