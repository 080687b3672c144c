package measure

import (
	"context"
	"fmt"

	"github.com/reflowio/paginate/pkg/document"
)

// Measurer is the renderer adapter contract. Measure returns the
// natural rendered height of a content unit when laid out at the given
// width. It may be invoked concurrently up to the scheduler's
// concurrency limit and should honor ctx cancellation.
type Measurer interface {
	Measure(ctx context.Context, unit document.ItemRef, width float64) (float64, error)
}

// Outcome is the terminal result of measuring one (unit, width) key.
// Exactly one of Height or Err is meaningful.
type Outcome struct {
	// Height is the rendered height in layout units. Valid only when
	// Err is nil.
	Height float64

	// Err records a failed measurement. Failures are permanent for
	// their key; the scheduler never retries them.
	Err error
}

// Failed reports whether the measurement failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Key identifies one measurement: a content unit at a render width.
type Key struct {
	Unit  document.ItemRef
	Width float64
}

// String generates a deterministic key string for logs and debugging.
//
// Example:
//
//	measure:ch-1:w=400
func (k Key) String() string {
	return fmt.Sprintf("measure:%s:w=%g", k.Unit, k.Width)
}

// MeasurementError reports a failed measurement of a single unit.
type MeasurementError struct {
	Unit  document.ItemRef
	Width float64
	Err   error
}

// Error implements the error interface.
func (e *MeasurementError) Error() string {
	return fmt.Sprintf("measure %q at width %g: %v", e.Unit, e.Width, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MeasurementError) Unwrap() error {
	return e.Err
}
