package rental

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when a rate over the whole table is
	// requested and the table has no rows.
	ErrEmptyInput = errors.New("empty input: table has no rows")

	// ErrDivisionByZero is returned when a percentage of problematic cases
	// is computed for a partition with no problematic cases.
	ErrDivisionByZero = errors.New("division by zero: no problematic cases in partition")
)

// MissingColumnError reports a required column that is absent from the input.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q", e.Column)
}
