// Package cursor provides iteration order over a dataset with optional
// per-epoch reshuffling.
package cursor

import "math/rand"

// EpochCursor walks dataset indices in epochs. With shuffling enabled every
// wraparound draws a fresh uniform permutation; otherwise the cursor cycles
// through the original file order.
//
// A cursor is owned by a single worker. Workers sharing one dataset must each
// hold their own cursor and random source.
type EpochCursor struct {
	order    []int
	position int
	shuffle  bool
	rng      *rand.Rand
}

// New creates a cursor over n entries. When shuffle is true the initial order
// is already a random permutation drawn from rng.
func New(n int, shuffle bool, rng *rand.Rand) *EpochCursor {
	c := &EpochCursor{
		order:   make([]int, n),
		shuffle: shuffle,
		rng:     rng,
	}
	for i := range c.order {
		c.order[i] = i
	}
	if shuffle {
		c.reshuffle()
	}
	return c
}

// Next returns the next dataset index, reshuffling and restarting once the
// epoch is exhausted.
func (c *EpochCursor) Next() int {
	i := c.order[c.position]
	c.position++
	if c.position >= len(c.order) {
		if c.shuffle {
			c.reshuffle()
		}
		c.position = 0
	}
	return i
}

// Len returns the number of entries in one epoch.
func (c *EpochCursor) Len() int {
	return len(c.order)
}

// Position returns the offset of the next entry within the current epoch.
func (c *EpochCursor) Position() int {
	return c.position
}

func (c *EpochCursor) reshuffle() {
	c.rng.Shuffle(len(c.order), func(i, j int) {
		c.order[i], c.order[j] = c.order[j], c.order[i]
	})
}
