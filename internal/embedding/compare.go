// Package embedding provides face embedding comparison and the client
// for the external embedding extraction service.
package embedding

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// DefaultTolerance is the operating point for the 128-dim face model.
// Call sites should take the value from config rather than using this
// constant directly; it exists as the single place the default lives.
const DefaultTolerance = 0.45

// DimensionMismatchError reports a comparison between two embeddings
// of different dimensionality, which usually means a malformed stored
// embedding or a model change without re-enrollment.
type DimensionMismatchError struct {
	LenA, LenB int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: %d vs %d", e.LenA, e.LenB)
}

// Distance returns the Euclidean (L2) distance between two embeddings.
// Safe for concurrent use; neither argument is modified.
func Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{LenA: len(a), LenB: len(b)}
	}
	return floats.Distance(a, b, 2), nil
}

// IsMatch reports whether two embeddings are within tolerance of each
// other under Euclidean distance.
func IsMatch(a, b []float64, tolerance float64) (bool, error) {
	d, err := Distance(a, b)
	if err != nil {
		return false, err
	}
	return d <= tolerance, nil
}
