// Package descriptor defines the fixed-dimension float32 vectors stored in
// the tree, their Euclidean distance, and the on-disk codec for the
// per-leaf TreeRecord payload (§3, §4.1).
package descriptor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrDimensionMismatch is returned when a descriptor's length does not
// match the tree's configured dimensionality.
var ErrDimensionMismatch = errors.New("descriptor dimension mismatch")

// Descriptor is an ordered sequence of D 32-bit floats embedding a compound
// in a Euclidean metric space (§3).
type Descriptor []float32

// Validate checks that d has exactly the expected length.
func (d Descriptor) Validate(expected int) error {
	if len(d) != expected {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d), expected)
	}
	return nil
}

// Distance computes the Euclidean distance between two descriptors of
// equal length. Callers must ensure a and b have the same length; this
// function panics on mismatch since it is always called with descriptors
// already validated against the tree's configured dimension.
func Distance(a, b Descriptor) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("descriptor.Distance: length mismatch %d != %d", len(a), len(b)))
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return float32(math.Sqrt(sum))
}

// AxisDistance returns the absolute difference between a query coordinate
// and a split value on a given axis — a lower bound on the distance from
// the query to any point on the far side of that split (§4.7, GLOSSARY).
func AxisDistance(q Descriptor, axis int, splitValue float32) float32 {
	d := q[axis] - splitValue
	if d < 0 {
		return -d
	}
	return d
}

// Random generates a random descriptor of length d using rng, for tests
// and stress-building (§4.1). Values are drawn uniformly from [0, 1).
func Random(rng *rand.Rand, d int) Descriptor {
	desc := make(Descriptor, d)
	for i := range desc {
		desc[i] = rng.Float32()
	}
	return desc
}
