package core

import "math"

// Monoisotopic atomic masses
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900

	ProtonMass = 1.00727646688
)

// composition counts atoms of a residue or peptide.
type composition struct {
	C, H, N, O, S int
}

func (c composition) mass() float64 {
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS
}

// residues maps amino acid one-letter codes to residue composition.
var residues = map[rune]composition{
	'A': {C: 3, H: 5, N: 1, O: 1},
	'R': {C: 6, H: 12, N: 4, O: 1},
	'N': {C: 4, H: 6, N: 2, O: 2},
	'D': {C: 4, H: 5, N: 1, O: 3},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3},
	'Q': {C: 5, H: 8, N: 2, O: 2},
	'G': {C: 2, H: 3, N: 1, O: 1},
	'H': {C: 6, H: 7, N: 3, O: 1},
	'I': {C: 6, H: 11, N: 1, O: 1},
	'L': {C: 6, H: 11, N: 1, O: 1},
	'K': {C: 6, H: 12, N: 2, O: 1},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1},
	'P': {C: 5, H: 7, N: 1, O: 1},
	'S': {C: 3, H: 5, N: 1, O: 2},
	'T': {C: 4, H: 7, N: 1, O: 2},
	'W': {C: 11, H: 10, N: 2, O: 1},
	'Y': {C: 9, H: 9, N: 1, O: 2},
	'V': {C: 5, H: 9, N: 1, O: 1},
}

// CalculateNeutralMass computes the neutral monoisotopic mass of a peptide,
// including modification mass shifts. Unknown residues contribute nothing.
func CalculateNeutralMass(sequence string, modifications []Modification) float64 {
	comp := composition{H: 2, O: 1} // water
	for _, aa := range sequence {
		if r, ok := residues[aa]; ok {
			comp.C += r.C
			comp.H += r.H
			comp.N += r.N
			comp.O += r.O
			comp.S += r.S
		}
	}

	mass := comp.mass()
	for _, mod := range modifications {
		mass += mod.Mass
	}
	return mass
}

// CalculatePeptideMass returns the precursor m/z of a peptide at a charge state.
func CalculatePeptideMass(sequence string, charge int, modifications []Modification) float64 {
	if charge <= 0 {
		return 0
	}
	mass := CalculateNeutralMass(sequence, modifications)
	return (mass + float64(charge)*ProtonMass) / float64(charge)
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
