package fsync

import "math/bits"

// An Aggregate is a per-level participation bitmap. Bit k set means the
// request aggregates with its peers at the k-th logical tree level
// above its current position; bit k clear means that level is crossed
// pass-through. The highest set bit names the level the barrier
// resolves at. Each level crossed shifts the aggregate right by one
// bit, so bit 0 always asks about the level at hand.
type Aggregate uint64

// AggregateForLevels returns the aggregate of a request that skips
// every level below its convergence point and aggregates only at the
// n-th level, n >= 1. Neighbor-style barriers between two distant
// participants use this shape.
func AggregateForLevels(n int) Aggregate {
	if n < 1 {
		panic("aggregate needs at least one level")
	}
	return 1 << uint(n-1)
}

// AggregateDense returns the aggregate of a request that merges at
// every one of the n levels up to its convergence point. Full-subtree
// barriers use this shape.
func AggregateDense(n int) Aggregate {
	if n < 1 {
		panic("aggregate needs at least one level")
	}
	return (1 << uint(n)) - 1
}

// Levels returns how many logical levels the request spans, counting
// the resolving level itself.
func (a Aggregate) Levels() int {
	return bits.Len64(uint64(a))
}

// Bit reports whether the request aggregates at the k-th level above
// its current position.
func (a Aggregate) Bit(k int) bool {
	return a>>uint(k)&1 == 1
}

// LastHop reports whether the level at hand aggregates.
func (a Aggregate) LastHop() bool {
	return a&1 == 1
}

// Shift consumes n logical levels.
func (a Aggregate) Shift(n int) Aggregate {
	return a >> uint(n)
}

// Valid reports whether the aggregate still names a convergence level.
func (a Aggregate) Valid() bool {
	return a != 0
}
