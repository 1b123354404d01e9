/*

This file contains the error taxonomy shared by the math, simulation and optimization packages.

Every error returned by the core wraps exactly one of these sentinels so callers can
branch with errors.Is and the optimizer can record why a grid point failed.

*/

package types

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or out-of-domain input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrNumericOverflow marks an intermediate result that exceeds the representable precision.
	ErrNumericOverflow = errors.New("numeric overflow")

	// ErrInsufficientData marks a price path that is too short to simulate.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidRebalance marks a strategy decision whose new range does not contain the trigger price.
	ErrInvalidRebalance = errors.New("invalid rebalance")

	// ErrOutOfRange marks a tick or sqrt price outside the protocol bounds.
	ErrOutOfRange = fmt.Errorf("%w: out of range", ErrValidation)

	// ErrInvalidRange marks a price or tick range with lower >= upper.
	ErrInvalidRange = fmt.Errorf("%w: invalid range", ErrValidation)
)

// FailureKind is the coarse classification recorded for a failed simulation run.
type FailureKind string

const (
	FailureValidation       FailureKind = "VALIDATION"
	FailureNumericOverflow  FailureKind = "NUMERIC_OVERFLOW"
	FailureInsufficientData FailureKind = "INSUFFICIENT_DATA"
	FailureInvalidRebalance FailureKind = "INVALID_REBALANCE"
	FailureOutOfRange       FailureKind = "OUT_OF_RANGE"
	FailureInvalidRange     FailureKind = "INVALID_RANGE"
	FailureCancelled        FailureKind = "CANCELLED"
	FailureInternal         FailureKind = "INTERNAL"
)

// Classify maps an error to its FailureKind. ErrInvalidRebalance wins over everything it
// wraps, and more specific kinds win over ErrValidation.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRebalance):
		// Strategy defects are reported apart from the data errors they may wrap.
		return FailureInvalidRebalance
	case errors.Is(err, ErrOutOfRange):
		return FailureOutOfRange
	case errors.Is(err, ErrInvalidRange):
		return FailureInvalidRange
	case errors.Is(err, ErrValidation):
		return FailureValidation
	case errors.Is(err, ErrNumericOverflow):
		return FailureNumericOverflow
	case errors.Is(err, ErrInsufficientData):
		return FailureInsufficientData
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCancelled
	default:
		return FailureInternal
	}
}
