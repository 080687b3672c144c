package paginate

// PositionCache stores synthesized position lists keyed by page size.
// Entries are replaced wholesale whenever their width's height set
// changes; entries for other sizes are retained untouched.
//
// PositionCache is not safe for concurrent use. It is owned by the
// Coordinator and accessed only from its serialized context.
type PositionCache struct {
	bySize map[Size]Result
}

// NewPositionCache creates an empty position cache.
func NewPositionCache() *PositionCache {
	return &PositionCache{
		bySize: make(map[Size]Result),
	}
}

// Get returns the cached result for size, if one has been computed.
func (c *PositionCache) Get(size Size) (Result, bool) {
	res, ok := c.bySize[size]
	return res, ok
}

// Put stores the result for size, replacing any previous entry.
func (c *PositionCache) Put(size Size, res Result) {
	c.bySize[size] = res
}

// Len returns the number of cached page sizes.
func (c *PositionCache) Len() int {
	return len(c.bySize)
}
