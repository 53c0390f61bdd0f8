package query

import "errors"

// Declaration and construction errors
var (
	ErrUnknownColumn        = errors.New("unknown column")
	ErrDuplicateColumn      = errors.New("duplicate column")
	ErrUnknownOperator      = errors.New("unknown constraint operator")
	ErrInvalidValue         = errors.New("invalid constraint value")
	ErrNoRenderer           = errors.New("template column has no renderer")
	ErrEmptyTempTable       = errors.New("temp table requires at least one value")
	ErrMixedValueTypes      = errors.New("temp table values must share one type")
	ErrUnsupportedValueType = errors.New("unsupported temp table value type")
	ErrDuplicateTempTable   = errors.New("temp table already registered with different values")
)
