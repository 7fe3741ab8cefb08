package normalize

import (
	"errors"
	"fmt"

	"entity-persister/core/metadata"
)

// ErrMalformedValue is wrapped by every ValueNormalizationError.
var ErrMalformedValue = errors.New("malformed value")

// ValueNormalizationError reports a raw value that cannot be converted under
// the column's declared type.
type ValueNormalizationError struct {
	Column string
	Type   metadata.ColumnType
	Value  any
	Err    error
}

func (e *ValueNormalizationError) Error() string {
	return fmt.Sprintf("normalize %s column %q: cannot convert %v (%T): %v", e.Type, e.Column, e.Value, e.Value, e.Err)
}

func (e *ValueNormalizationError) Unwrap() error {
	return e.Err
}

func malformed(col *metadata.Column, raw any, reason string) error {
	return &ValueNormalizationError{
		Column: col.PropertyName,
		Type:   col.SemanticType(),
		Value:  raw,
		Err:    fmt.Errorf("%w: %s", ErrMalformedValue, reason),
	}
}
