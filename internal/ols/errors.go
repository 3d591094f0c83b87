package ols

import (
	"fmt"
	"math"
)

// InsufficientDataError reports that the residual degrees of freedom n-k-1 are not positive.
type InsufficientDataError struct {
	N int // observations
	K int // explanatory variables
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d observations for %d explanatory variables (need more than %d)", e.N, e.K, e.K+1)
}

// SingularMatrixError reports that XᵀX cannot be inverted reliably, which happens
// when explanatory columns are collinear or a column carries no information.
type SingularMatrixError struct {
	// Condition is the 2-norm condition number of the equilibrated Gram matrix.
	// It is +Inf when a column is identically zero.
	Condition float64
	// Column is the zero-based index of the explanatory variable found to be
	// empty, or -1 when the failure comes from the condition number.
	Column int
}

func (e *SingularMatrixError) Error() string {
	if e.Column >= 0 {
		return fmt.Sprintf("singular matrix: explanatory column %d is identically zero", e.Column)
	}
	if math.IsInf(e.Condition, 1) {
		return "singular matrix: XᵀX is not invertible (explanatory columns are collinear)"
	}
	return fmt.Sprintf("singular matrix: XᵀX is ill-conditioned (condition number %.3g)", e.Condition)
}

// DegenerateResponseError reports a constant response, for which SST is zero
// and R² is undefined.
type DegenerateResponseError struct {
	Value float64
}

func (e *DegenerateResponseError) Error() string {
	return fmt.Sprintf("degenerate response: every observation equals %g, total sum of squares is zero", e.Value)
}

// DimensionError reports malformed input: mismatched lengths, ragged rows,
// no explanatory variables or non-finite values.
type DimensionError struct {
	Reason string
}

func (e *DimensionError) Error() string { return "invalid observations: " + e.Reason }
