package paginate

import (
	"errors"
	"math"
	"slices"

	"github.com/reflowio/paginate/pkg/document"
)

// Size is a two-dimensional extent in layout units. Sizes are used as
// position-cache keys, so both components must be finite and
// non-negative.
type Size struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Valid reports whether the size is usable as a cache key.
func (s Size) Valid() bool {
	return s.Width >= 0 && s.Height >= 0 &&
		!math.IsNaN(s.Width) && !math.IsNaN(s.Height) &&
		!math.IsInf(s.Width, 0) && !math.IsInf(s.Height, 0)
}

// Position describes one page: a slice of a content unit's rendered
// extent at a particular page size.
type Position struct {
	// Unit is the content unit this page belongs to.
	Unit document.ItemRef

	// ContentOffset is the vertical offset of this page within the
	// unit's rendered content.
	ContentOffset float64

	// ContentSize is the unit's full rendered extent at this width.
	ContentSize Size

	// PageSize is the extent of this slice. The last slice of a unit
	// may be shorter than the requested page height.
	PageSize Size
}

// Result pairs a synthesized position list with its terminal error.
// Positions may be partial while measurements are still outstanding;
// a non-nil Err means pagination at this size is blocked by a failed
// measurement.
type Result struct {
	Positions []Position
	Err       error
}

// Equal reports structural equality of two results. Errors compare by
// their wrapped measurement failure, so re-synthesizing an unchanged
// snapshot compares equal even though the SynthesisError value is
// rebuilt.
func (r Result) Equal(other Result) bool {
	if !slices.Equal(r.Positions, other.Positions) {
		return false
	}
	return errorsEqual(r.Err, other.Err)
}

func errorsEqual(a, b error) bool {
	if a == nil || b == nil {
		return a == b
	}
	var sa, sb *SynthesisError
	if errors.As(a, &sa) && errors.As(b, &sb) {
		return sa.Width == sb.Width && sa.Err == sb.Err
	}
	return a == b
}
