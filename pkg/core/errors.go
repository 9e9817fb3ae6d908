package core

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents an error found during peak cluster validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// DataError reports malformed or ambiguous identification input. It is fatal
// to the dataset-level pass that raised it.
type DataError struct {
	Run    string
	Key    string
	Reason string
	Err    error
}

func (e *DataError) Error() string {
	var b strings.Builder
	b.WriteString("data error")
	if e.Run != "" {
		fmt.Fprintf(&b, " in run %q", e.Run)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " for key %q", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an unusable setting detected before any work starts.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Message)
}

// ConcurrencyError describes a scoring task that was interrupted or failed.
// It is recorded on the task result and logged, never returned from a batch.
type ConcurrencyError struct {
	ClusterA string
	ClusterB string
	Err      error
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("scoring %s vs %s: %v", e.ClusterA, e.ClusterB, e.Err)
}

func (e *ConcurrencyError) Unwrap() error {
	return e.Err
}

// IsDataError reports whether err carries a *DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// IsConfigurationError reports whether err carries a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
