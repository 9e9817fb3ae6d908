package core

import (
	"strings"
)

// Label is the target/decoy classification of a peptide-ion identity.
type Label int

const (
	Target Label = iota
	Decoy
)

func (l Label) String() string {
	if l == Decoy {
		return "decoy"
	}
	return "target"
}

// Classifier decides target/decoy status from an identity string. A single
// Classifier is shared by the aggregator and the estimator so both apply the
// same rule.
type Classifier struct {
	Prefix string
}

// NewClassifier returns a prefix classifier, or a ConfigurationError when the
// prefix is blank.
func NewClassifier(prefix string) (Classifier, error) {
	if strings.TrimSpace(prefix) == "" {
		return Classifier{}, &ConfigurationError{Field: "decoy_prefix", Message: "decoy prefix is required"}
	}
	return Classifier{Prefix: prefix}, nil
}

// Classify labels a single identity string.
func (c Classifier) Classify(identity string) (Label, error) {
	if c.Prefix == "" {
		return Target, &ConfigurationError{Field: "decoy_prefix", Message: "decoy prefix is required"}
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Target, &DataError{Reason: "empty identity cannot be classified"}
	}
	if strings.HasPrefix(identity, c.Prefix) {
		return Decoy, nil
	}
	return Target, nil
}

// ClassifyIdentification labels id by its protein accession, falling back to the
// key when no accession is attached. Errors name the run and key.
func (c Classifier) ClassifyIdentification(id Identification) (Label, error) {
	label, err := c.Classify(id.Identity())
	if err != nil {
		if de, ok := err.(*DataError); ok {
			de.Run = id.SourceRun
			de.Key = id.Key
		}
		return Target, err
	}
	return label, nil
}
