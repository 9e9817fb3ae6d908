package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// unimodMasses holds monoisotopic mass shifts of the modifications search
// engines commonly report by name.
var unimodMasses = map[string]float64{
	"Acetyl":          42.010565,
	"Amidated":        -0.984016,
	"Carbamidomethyl": 57.021464,
	"Carbamyl":        43.005814,
	"Deamidated":      0.984016,
	"Dimethyl":        28.0313,
	"Gln->pyro-Glu":   -17.026549,
	"Glu->pyro-Glu":   -18.010565,
	"GlyGly":          114.042927,
	"HexNAc":          203.079373,
	"Methyl":          14.01565,
	"Oxidation":       15.994915,
	"Phospho":         79.966331,
	"Propionamide":    71.037114,
	"TMT6plex":        229.162932,
	"TMTpro":          304.207146,
	"iTRAQ4plex":      144.102063,
	"iTRAQ8plex":      304.205360,
}

// ModDatabase resolves modification names to mass shifts.
type ModDatabase struct {
	mods map[string]float64
}

// NewModDatabase creates an empty modification database.
func NewModDatabase() *ModDatabase {
	return &ModDatabase{mods: make(map[string]float64)}
}

// DefaultModDatabase returns a database pre-loaded with common Unimod entries.
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()
	for name, mass := range unimodMasses {
		db.Add(name, mass)
	}
	return db
}

// Add adds or updates a modification.
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[strings.ToLower(name)] = mass
}

// GetMass returns the mass shift for a modification name. Lookups ignore case.
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[strings.ToLower(strings.TrimSpace(name))]
	return mass, ok
}

// Len returns the number of known modifications.
func (db *ModDatabase) Len() int {
	return len(db.mods)
}

// LoadFromCSV loads modifications from CSV (header "mod,massshift[,aa]").
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum == 1 {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}
		massStr := strings.TrimSpace(parts[1])
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}
		db.Add(strings.TrimSpace(parts[0]), mass)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}
	return nil
}

// ParseModString parses "Carbamidomethyl@C2;15.994915@8" into modifications.
// Positions are 1-based residue numbers, optionally prefixed with the residue
// letter; "N-term" and "C-term" name the termini.
func (db *ModDatabase) ParseModString(modStr string, sequence string) ([]Modification, error) {
	modStr = strings.TrimSpace(modStr)
	if modStr == "" || modStr == "-" {
		return nil, nil
	}

	var mods []Modification
	for _, part := range strings.Split(modStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		nameOrMass, posStr, ok := strings.Cut(part, "@")
		if !ok {
			return nil, fmt.Errorf("invalid modification format '%s', expected 'name@position' or 'mass@position'", part)
		}
		nameOrMass = strings.TrimSpace(nameOrMass)

		mass, err := strconv.ParseFloat(nameOrMass, 64)
		if err != nil {
			var known bool
			mass, known = db.GetMass(nameOrMass)
			if !known {
				return nil, fmt.Errorf("unknown modification '%s'", nameOrMass)
			}
		}

		position, err := parsePosition(posStr, sequence)
		if err != nil {
			return nil, fmt.Errorf("invalid position '%s': %w", posStr, err)
		}

		mods = append(mods, Modification{Mass: mass, Position: position, Name: nameOrMass})
	}
	return mods, nil
}

// parsePosition converts "C2", "2", "N-term" or "C-term" into a 0-based index.
func parsePosition(posStr string, sequence string) (int, error) {
	posStr = strings.TrimSpace(posStr)
	switch strings.ToLower(posStr) {
	case "n-term", "nterm", "-1":
		return -1, nil
	case "c-term", "cterm":
		return len(sequence), nil
	}

	posStr = strings.TrimLeft(posStr, "ACDEFGHIKLMNPQRSTVWY")
	pos, err := strconv.Atoi(posStr)
	if err != nil {
		return 0, fmt.Errorf("invalid position number: %w", err)
	}
	if pos < 1 || (sequence != "" && pos > len(sequence)) {
		return 0, fmt.Errorf("position %d outside sequence of length %d", pos, len(sequence))
	}
	return pos - 1, nil
}
