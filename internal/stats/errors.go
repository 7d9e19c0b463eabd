package stats

import "errors"

// Input errors indicate a programming or data-quality defect and are always
// surfaced to the caller, never swallowed.
var (
	// ErrEmptySeries is returned when a statistic would divide by zero on
	// an empty input.
	ErrEmptySeries = errors.New("stats: empty series (division by zero)")

	// ErrLengthMismatch is returned when paired series differ in length.
	ErrLengthMismatch = errors.New("stats: input series must have the same length")

	// ErrSeriesTooShort is returned when a series has too few observations
	// for the requested estimate.
	ErrSeriesTooShort = errors.New("stats: series too short")

	// ErrWindowTooLarge is returned when a rolling window exceeds the
	// series length.
	ErrWindowTooLarge = errors.New("stats: window exceeds series length")

	// ErrSingularMatrix is returned when a regression design matrix is not
	// invertible.
	ErrSingularMatrix = errors.New("stats: singular design matrix")

	// ErrUnsupportedDetOrder is returned for Johansen deterministic-trend
	// orders without a bundled critical-value table.
	ErrUnsupportedDetOrder = errors.New("stats: unsupported deterministic trend order")
)
