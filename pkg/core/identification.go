// Package core provides the shared data model for identification merging and
// peak cluster scoring: identifications, runs, modifications, peak clusters,
// and the error taxonomy used across pepmerge.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based position; -1 for N-term, len(seq) for C-term
	Name     string // Modification name (e.g., "Carbamidomethyl", "Oxidation")
}

// Identification is a single peptide-ion identification from one run.
type Identification struct {
	Key         string  // sequence + modification state + charge
	Probability float64 // posterior probability in [0,1]
	IsDecoy     bool
	SourceRun   string

	// Optional peptide detail, used to build keys and by writers
	Sequence      string
	Charge        int
	Modifications []Modification
	Protein       string // accession used for decoy classification when present
}

// Identity returns the string the decoy classifier inspects.
func (id Identification) Identity() string {
	if strings.TrimSpace(id.Protein) != "" {
		return id.Protein
	}
	return id.Key
}

// Clone returns a deep copy so the combined set owns its entries exclusively.
func (id Identification) Clone() Identification {
	out := id
	if id.Modifications != nil {
		out.Modifications = make([]Modification, len(id.Modifications))
		copy(out.Modifications, id.Modifications)
	}
	return out
}

// Validate checks the fields the merge depends on.
func (id Identification) Validate() error {
	if strings.TrimSpace(id.Key) == "" {
		return &DataError{Run: id.SourceRun, Reason: "identification key is empty"}
	}
	if math.IsNaN(id.Probability) || math.IsInf(id.Probability, 0) {
		return &DataError{Run: id.SourceRun, Key: id.Key, Reason: "probability is not a number"}
	}
	if id.Probability < 0 || id.Probability > 1 {
		return &DataError{Run: id.SourceRun, Key: id.Key, Reason: fmt.Sprintf("probability %g outside [0,1]", id.Probability)}
	}
	return nil
}

// TotalModMass returns the sum of all modification masses.
func (id Identification) TotalModMass() float64 {
	total := 0.0
	for _, mod := range id.Modifications {
		total += mod.Mass
	}
	return total
}

// ModString returns modifications as "mass@pos;mass@pos", ordered by position.
func ModString(mods []Modification) string {
	if len(mods) == 0 {
		return ""
	}
	sorted := make([]Modification, len(mods))
	copy(sorted, mods)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	parts := make([]string, 0, len(sorted))
	for _, mod := range sorted {
		parts = append(parts, fmt.Sprintf("%.4f@%d", mod.Mass, mod.Position))
	}
	return strings.Join(parts, ";")
}

// PeptideKey builds the canonical peptide-ion key "SEQUENCE[mods]/charge".
// The bracket section is omitted for unmodified peptides.
func PeptideKey(sequence string, mods []Modification, charge int) string {
	seq := strings.ToUpper(strings.TrimSpace(sequence))
	if ms := ModString(mods); ms != "" {
		return fmt.Sprintf("%s[%s]/%d", seq, ms, charge)
	}
	return fmt.Sprintf("%s/%d", seq, charge)
}

// Run is one acquisition run's identifications, keyed by peptide-ion key.
type Run struct {
	Name            string
	Identifications map[string]Identification
}

// NewRun returns an empty run.
func NewRun(name string) *Run {
	return &Run{
		Name:            name,
		Identifications: make(map[string]Identification),
	}
}

// Add records id under its key. A repeated key within the run keeps the more
// probable observation.
func (r *Run) Add(id Identification) {
	id.SourceRun = r.Name
	if prev, ok := r.Identifications[id.Key]; ok && prev.Probability >= id.Probability {
		return
	}
	r.Identifications[id.Key] = id
}

// Keys returns the run's keys in sorted order.
func (r *Run) Keys() []string {
	keys := make([]string, 0, len(r.Identifications))
	for k := range r.Identifications {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
