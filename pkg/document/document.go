// Package document defines the spine model shared by the measurement
// and pagination packages.
package document

// ItemRef identifies one content unit ("spine item") within a document.
// Refs are opaque and stable for the document's lifetime; equality and
// map keying use plain value equality.
type ItemRef string

// Spine is the ordered, finite sequence of content units of a document.
// It must not change for the lifetime of a coordinator built on it.
type Spine []ItemRef

// Index returns the position of ref in the spine, or -1 if absent.
func (s Spine) Index(ref ItemRef) int {
	for i, r := range s {
		if r == ref {
			return i
		}
	}
	return -1
}

// Contains reports whether ref is part of the spine.
func (s Spine) Contains(ref ItemRef) bool {
	return s.Index(ref) >= 0
}
