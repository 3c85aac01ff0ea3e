package hashring

import (
	"fmt"
	"sort"

	"github.com/spaolacci/murmur3"
)

// SlotID identifies one worker slot of the pool.
type SlotID int

// Ring spreads keys over worker slots. Every key always lands on the same
// slot, so work for one key is executed by one worker in submission order.
// A Ring is immutable once built and safe for concurrent use.
type Ring struct {
	vNodes  int
	hashes  []uint32          // sorted positions on the ring
	hashMap map[uint32]SlotID // position -> slot
}

// NewRing builds a ring with vNodes virtual nodes per slot. Duplicate slot
// IDs are ignored.
func NewRing(slots []SlotID, vNodes int) *Ring {
	if vNodes < 1 {
		vNodes = 1
	}
	r := &Ring{
		vNodes:  vNodes,
		hashMap: make(map[uint32]SlotID),
	}
	seen := make(map[SlotID]struct{}, len(slots))
	for _, s := range slots {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		r.addSlot(s)
	}
	sort.Slice(r.hashes, func(i, j int) bool {
		return r.hashes[i] < r.hashes[j]
	})
	return r
}

func hashFn(key string) uint32 {
	return murmur3.Sum32([]byte(key))
}

func (r *Ring) addSlot(s SlotID) {
	for i := 0; i < r.vNodes; i++ {
		h := hashFn(fmt.Sprintf("slot-%d#%d", s, i))
		if _, taken := r.hashMap[h]; taken {
			continue
		}
		r.hashes = append(r.hashes, h)
		r.hashMap[h] = s
	}
}

// SlotForKey returns the slot owning key. ok is false on an empty ring.
func (r *Ring) SlotForKey(key string) (SlotID, bool) {
	if len(r.hashes) == 0 {
		return 0, false
	}
	h := hashFn(key)
	// first position >= h, wrapping around
	idx := sort.Search(len(r.hashes), func(i int) bool {
		return r.hashes[i] >= h
	})
	if idx == len(r.hashes) {
		idx = 0
	}
	return r.hashMap[r.hashes[idx]], true
}
