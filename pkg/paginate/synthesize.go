package paginate

import (
	"math"

	"github.com/reflowio/paginate/pkg/document"
	"github.com/reflowio/paginate/pkg/measure"
)

// Synthesize derives the ordered page-position list for one page size
// from the heights known at that size's width.
//
// Units with no outcome yet contribute zero pages; the result is
// partial, not an error, and completes on a later run. A failed
// outcome aborts synthesis with a SynthesisError wrapping the first
// failure in spine order. A page height of zero (or less) yields zero
// pages per unit without error.
//
// Synthesize is a pure function of its inputs: identical snapshots
// produce identical output regardless of measurement completion order.
func Synthesize(spine document.Spine, heights map[document.ItemRef]measure.Outcome, page Size) ([]Position, error) {
	positions := make([]Position, 0, len(spine))

	for _, unit := range spine {
		out, ok := heights[unit]
		if !ok {
			// Not yet measured: pages unknown, skip for now.
			continue
		}
		if out.Failed() {
			return nil, &SynthesisError{Width: page.Width, Err: out.Err}
		}
		if page.Height <= 0 {
			continue
		}

		pages := int(math.Ceil(out.Height / page.Height))
		for i := 0; i < pages; i++ {
			offset := float64(i) * page.Height
			positions = append(positions, Position{
				Unit:          unit,
				ContentOffset: offset,
				ContentSize:   Size{Width: page.Width, Height: out.Height},
				PageSize:      Size{Width: page.Width, Height: math.Min(page.Height, out.Height-offset)},
			})
		}
	}

	return positions, nil
}
