package kdtree

import (
	"math"

	"github.com/molecularmodelinglab/simsearchserver/internal/descriptor"
)

type topKEntry struct {
	distance float32
	record   descriptor.TreeRecord
}

// topK is a fixed-capacity buffer of the k closest records seen so far,
// kept sorted ascending by distance (§4.7).
type topK struct {
	k       int
	entries []topKEntry
}

func newTopK(k int) *topK {
	return &topK{k: k, entries: make([]topKEntry, 0, k)}
}

// worstDistance returns the k-th (largest) distance currently held, or
// +Inf if fewer than k entries have been seen.
func (t *topK) worstDistance() float32 {
	if len(t.entries) < t.k {
		return float32(math.Inf(1))
	}
	return t.entries[len(t.entries)-1].distance
}

// tryAdd inserts (dist, record) if it belongs in the top k, in O(k) via
// linear insertion (§4.7).
func (t *topK) tryAdd(dist float32, record descriptor.TreeRecord) {
	if len(t.entries) >= t.k && dist >= t.worstDistance() {
		return
	}

	pos := len(t.entries)
	for pos > 0 && t.entries[pos-1].distance > dist {
		pos--
	}

	entry := topKEntry{distance: dist, record: record}
	if len(t.entries) < t.k {
		t.entries = append(t.entries, topKEntry{})
		copy(t.entries[pos+1:], t.entries[pos:len(t.entries)-1])
		t.entries[pos] = entry
		return
	}

	copy(t.entries[pos+1:], t.entries[pos:t.k-1])
	t.entries[pos] = entry
}

// sorted returns the held entries, ascending by distance.
func (t *topK) sorted() []topKEntry {
	return t.entries
}
