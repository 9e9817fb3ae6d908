// Package psm reads per-run peptide identification tables.
//
// A table is tab-separated with a header row. Recognised columns (case
// insensitive): peptide, charge, modifications, probability, protein. Other
// columns are ignored.
package psm

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
)

var requiredColumns = []string{"peptide", "charge", "probability"}

// ReadFile reads a run from path. The run is named after the file without its
// extension.
func ReadFile(path string, modDB *core.ModDatabase) (*core.Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open identification file: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Read(f, name, modDB)
}

// Read parses a run table. Any malformed row is a *core.DataError naming the
// run, line and key, and no partial run is returned.
func Read(r io.Reader, runName string, modDB *core.ModDatabase) (*core.Run, error) {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}

	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &core.DataError{Run: runName, Reason: "identification table is empty"}
		}
		return nil, &core.DataError{Run: runName, Reason: "unreadable header", Err: err}
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, &core.DataError{Run: runName, Reason: fmt.Sprintf("missing required column %q", c)}
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	run := core.NewRun(runName)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &core.DataError{Run: runName, Reason: "unreadable row", Err: err}
		}
		line, _ := cr.FieldPos(0)

		sequence := field(rec, "peptide")
		if sequence == "" {
			return nil, &core.DataError{Run: runName, Reason: fmt.Sprintf("line %d: empty peptide", line)}
		}

		chargeStr := field(rec, "charge")
		charge, err := strconv.Atoi(strings.TrimPrefix(chargeStr, "+"))
		if err != nil || charge <= 0 {
			return nil, &core.DataError{Run: runName, Key: sequence, Reason: fmt.Sprintf("line %d: invalid charge %q", line, chargeStr)}
		}

		mods, err := modDB.ParseModString(field(rec, "modifications"), sequence)
		if err != nil {
			return nil, &core.DataError{Run: runName, Key: sequence, Reason: fmt.Sprintf("line %d: invalid modifications", line), Err: err}
		}
		key := core.PeptideKey(sequence, mods, charge)

		probStr := field(rec, "probability")
		prob, err := strconv.ParseFloat(probStr, 64)
		if err != nil {
			return nil, &core.DataError{Run: runName, Key: key, Reason: fmt.Sprintf("line %d: unparseable probability %q", line, probStr)}
		}

		id := core.Identification{
			Key:           key,
			Probability:   prob,
			Sequence:      strings.ToUpper(sequence),
			Charge:        charge,
			Modifications: mods,
			Protein:       field(rec, "protein"),
		}
		if err := id.Validate(); err != nil {
			var de *core.DataError
			if errors.As(err, &de) {
				de.Run = runName
				de.Reason = fmt.Sprintf("line %d: %s", line, de.Reason)
			}
			return nil, err
		}
		run.Add(id)
	}
	return run, nil
}
