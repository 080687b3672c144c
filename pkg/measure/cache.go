package measure

import "github.com/reflowio/paginate/pkg/document"

// HeightCache stores measurement outcomes keyed by width, then unit.
// The cache is monotonic: entries are written at most once per key and
// never deleted. Widths the caller has moved away from keep their
// entries, so returning to a previous width needs no re-measurement.
//
// HeightCache is not safe for concurrent use. It is owned by a single
// coordinator and all access goes through its serialized context.
type HeightCache struct {
	byWidth map[float64]map[document.ItemRef]Outcome
}

// NewHeightCache creates an empty height cache.
func NewHeightCache() *HeightCache {
	return &HeightCache{
		byWidth: make(map[float64]map[document.ItemRef]Outcome),
	}
}

// Get returns the outcome for unit at width, if one exists.
func (c *HeightCache) Get(unit document.ItemRef, width float64) (Outcome, bool) {
	units, ok := c.byWidth[width]
	if !ok {
		return Outcome{}, false
	}
	out, ok := units[unit]
	return out, ok
}

// Contains reports whether an outcome exists for unit at width.
func (c *HeightCache) Contains(unit document.ItemRef, width float64) bool {
	_, ok := c.Get(unit, width)
	return ok
}

// Put records the outcome for unit at width. The first write for a key
// wins; a later write for the same key is ignored and Put returns
// false. Outcomes are terminal, so overwriting would break consumers
// that already observed the first value.
func (c *HeightCache) Put(unit document.ItemRef, width float64, out Outcome) bool {
	units, ok := c.byWidth[width]
	if !ok {
		units = make(map[document.ItemRef]Outcome)
		c.byWidth[width] = units
	}
	if _, exists := units[unit]; exists {
		return false
	}
	units[unit] = out
	return true
}

// Len returns the number of outcomes cached for width.
func (c *HeightCache) Len(width float64) int {
	return len(c.byWidth[width])
}

// Snapshot returns a copy of all outcomes known for width. Position
// synthesis runs against snapshots so its inputs cannot change under
// it.
func (c *HeightCache) Snapshot(width float64) map[document.ItemRef]Outcome {
	units := c.byWidth[width]
	snap := make(map[document.ItemRef]Outcome, len(units))
	for unit, out := range units {
		snap[unit] = out
	}
	return snap
}
