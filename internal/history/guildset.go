package history

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// guildSet is a bounded, thread-safe set of guild IDs that have played at
// least one song. The Bloom filter makes the common "already counted"
// check cheap; the LRU bounds memory when the deployment outlives the
// configured capacity.
type guildSet struct {
	ids               map[string]struct{}
	bloom             *bloom.BloomFilter
	lru               *lru.Cache[string, struct{}]
	mutex             sync.RWMutex
	capacity          int
	falsePositiveRate float64
}

func newGuildSet(capacity int, falsePositiveRate float64) *guildSet {
	if capacity < 1 {
		capacity = 1
	}

	gs := &guildSet{
		ids:               make(map[string]struct{}),
		bloom:             bloom.NewWithEstimates(uint(capacity), falsePositiveRate),
		capacity:          capacity,
		falsePositiveRate: falsePositiveRate,
	}
	// The LRU drives eviction: whatever it drops leaves the set too, so
	// ids and the LRU can never disagree about membership. Callbacks run
	// inside Add/Load, which already hold the mutex.
	gs.lru, _ = lru.NewWithEvict[string, struct{}](capacity, func(key string, _ struct{}) {
		delete(gs.ids, key)
	})
	return gs
}

func (gs *guildSet) Has(guildID string) bool {
	gs.mutex.RLock()
	defer gs.mutex.RUnlock()

	if !gs.bloom.TestString(guildID) {
		return false
	}

	_, exists := gs.ids[guildID]
	return exists
}

func (gs *guildSet) Add(guildID string) {
	if guildID == "" {
		return
	}

	gs.mutex.Lock()
	defer gs.mutex.Unlock()

	if _, exists := gs.ids[guildID]; exists {
		gs.lru.Get(guildID) // refresh recency
		return
	}

	gs.ids[guildID] = struct{}{}
	gs.bloom.AddString(guildID)
	gs.lru.Add(guildID, struct{}{})
}

// Load replaces the set's contents, typically from the database on start.
func (gs *guildSet) Load(guildIDs []string) {
	gs.mutex.Lock()
	defer gs.mutex.Unlock()

	gs.lru.Purge()
	gs.ids = make(map[string]struct{})
	gs.bloom = bloom.NewWithEstimates(uint(gs.capacity), gs.falsePositiveRate)

	for _, id := range guildIDs {
		if id == "" {
			continue
		}
		gs.ids[id] = struct{}{}
		gs.bloom.AddString(id)
		gs.lru.Add(id, struct{}{})
	}
}

func (gs *guildSet) Size() int {
	gs.mutex.RLock()
	defer gs.mutex.RUnlock()
	return len(gs.ids)
}
