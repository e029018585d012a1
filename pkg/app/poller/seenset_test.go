package poller

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenSet_FirstSightingIsFresh(t *testing.T) {
	s := NewSeenSet(10)
	assert.False(t, s.Seen("a"))
	assert.True(t, s.Seen("a"))
	assert.True(t, s.Seen("a"))
	assert.Equal(t, 1, s.Len())
}

func TestSeenSet_EvictsOldestFirst(t *testing.T) {
	s := NewSeenSet(3)
	s.Seen("a")
	s.Seen("b")
	s.Seen("c")

	// "d" displaces "a", the oldest entry
	assert.False(t, s.Seen("d"))
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Seen("b"))
	assert.True(t, s.Seen("c"))
	assert.False(t, s.Seen("a"))
}

func TestSeenSet_LenNeverExceedsCapacity(t *testing.T) {
	s := NewSeenSet(100)
	for i := 0; i < 1000; i++ {
		s.Seen(fmt.Sprintf("id-%d", i))
	}
	assert.Equal(t, 100, s.Len())

	// the most recent window is still deduplicated
	for i := 900; i < 1000; i++ {
		assert.True(t, s.Seen(fmt.Sprintf("id-%d", i)))
	}
}

func TestSeenSet_ZeroCapacityClamped(t *testing.T) {
	s := NewSeenSet(0)
	assert.False(t, s.Seen("a"))
	assert.False(t, s.Seen("b"))
	assert.True(t, s.Seen("b"))
	assert.Equal(t, 1, s.Len())
}
