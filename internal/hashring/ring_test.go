package hashring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slots(n int) []SlotID {
	out := make([]SlotID, n)
	for i := range out {
		out[i] = SlotID(i)
	}
	return out
}

func TestSlotForKeyIsStable(t *testing.T) {
	r := NewRing(slots(3), 64)
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key%d", i)
		a, ok := r.SlotForKey(key)
		require.True(t, ok)
		b, _ := r.SlotForKey(key)
		assert.Equal(t, a, b, key)
		assert.GreaterOrEqual(t, int(a), 0)
		assert.Less(t, int(a), 3)
	}
}

func TestSlotForKeyUsesEverySlot(t *testing.T) {
	r := NewRing(slots(3), 64)
	seen := map[SlotID]int{}
	for i := 0; i < 1000; i++ {
		s, _ := r.SlotForKey(fmt.Sprintf("key%d", i))
		seen[s]++
	}
	assert.Len(t, seen, 3)
}

func TestEmptyRing(t *testing.T) {
	r := NewRing(nil, 10)
	_, ok := r.SlotForKey("x")
	assert.False(t, ok)
}

func TestDuplicateSlotsIgnored(t *testing.T) {
	r := NewRing([]SlotID{2, 2, 2}, 16)
	assert.Len(t, r.hashes, 16)
	for i := 0; i < 50; i++ {
		s, ok := r.SlotForKey(fmt.Sprintf("k%d", i))
		require.True(t, ok)
		assert.Equal(t, SlotID(2), s)
	}
}
