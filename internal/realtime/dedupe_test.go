package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeSet_RepeatsAreSeen(t *testing.T) {
	d := newDedupeSet(10)

	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))
	assert.Equal(t, 1, d.Len())
}

func TestDedupeSet_FIFOEviction(t *testing.T) {
	d := newDedupeSet(3)

	assert.False(t, d.Seen("a"))
	assert.False(t, d.Seen("b"))
	assert.False(t, d.Seen("c"))

	// Repeat does not refresh insertion order.
	assert.True(t, d.Seen("a"))

	// Fourth id evicts the oldest.
	assert.False(t, d.Seen("d"))
	assert.False(t, d.Seen("a"), "a was evicted by d")

	// Re-inserting a evicts b, and b in turn evicts c.
	assert.False(t, d.Seen("b"))
	assert.True(t, d.Seen("d"), "d is still resident")
	assert.Equal(t, 3, d.Len())
}
