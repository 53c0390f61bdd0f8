package redshift

import "errors"

// Define static errors
var (
	ErrURLRequired        = errors.New("warehouse URL is required")
	ErrInvalidPoolSize    = errors.New("invalid connection pool size")
	ErrParamCountMismatch = errors.New("placeholder and parameter counts differ")
	ErrEmptySQL           = errors.New("query has no SQL")
)
