package steps

import "errors"

// Per-trial skip reasons. These are absorbed and counted, never fatal.
var (
	ErrEpochNonFinite = errors.New("epoch contains non-finite samples")
	ErrEpochTooShort  = errors.New("epoch has fewer samples than the required windows")
	ErrEpochNoROI     = errors.New("epoch channels do not intersect the configured subset")
)

// Run-level structural failures. These abort the run.
var (
	ErrTableEmpty       = errors.New("trial table is empty")
	ErrFoldAssignment   = errors.New("fold assignment infeasible")
	ErrMetricsUndefined = errors.New("pooled out-of-fold labels contain a single class, roc-auc undefined")
)

// IsExtractionSkip reports whether an error is a recoverable per-trial skip.
func IsExtractionSkip(err error) bool {
	return errors.Is(err, ErrEpochNonFinite) ||
		errors.Is(err, ErrEpochTooShort) ||
		errors.Is(err, ErrEpochNoROI)
}
