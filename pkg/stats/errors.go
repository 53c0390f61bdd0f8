package stats

import "errors"

// Define static errors
var (
	ErrEmptyBreakdown       = errors.New("breakdown is required")
	ErrNotBreakdownColumn   = errors.New("column cannot be used as a breakdown")
	ErrDuplicateBreakdown   = errors.New("breakdown column repeated")
	ErrOrderNotSelected     = errors.New("order column is not part of the result")
	ErrInvalidPagination    = errors.New("offset and limit must not be negative")
	ErrAggregateConstraint  = errors.New("aggregate columns cannot be constrained")
	ErrInvalidTempThreshold = errors.New("temp table threshold must not be negative")
)
