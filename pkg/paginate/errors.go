package paginate

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by coordinator operations after Close.
var ErrClosed = errors.New("paginator closed")

// SynthesisError reports that position synthesis at a width is blocked
// by a failed measurement. It wraps the first failed measurement in
// spine order for that width.
type SynthesisError struct {
	Width float64
	Err   error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize positions at width %g: %v", e.Width, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}
