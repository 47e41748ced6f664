// This module implements registry sharding, which distributes named ordered maps uniformly across shards. Since
// each shard has its own mutex, sharding helps by spreading lock contention: a ZADD on "leaderboard:a" never
// blocks a concurrent ZADD on "leaderboard:b" unless they happen to land on the same shard.
package registry

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cespare/xxhash/v2"
	"github.com/nobletooth/zindex/pkg/utils"
	"github.com/nobletooth/zindex/pkg/zset"
)

// ErrNotFound is returned when a name has no ordered map registered under it.
var ErrNotFound = fmt.Errorf("registry: name not found")

// shard holds one partition of the registry's names, each guarded by its own lock so unrelated names never
// contend with each other.
type shard struct {
	mu   sync.RWMutex
	maps map[string]*zset.OrderedMap[string]
	// seen is an optional fast-negative membership filter: a bloom.BloomFilter never produces a false negative,
	// so "definitely absent" short-circuits the map lookup, at the cost of occasionally still doing the lookup for
	// a name that was never actually registered (a false positive). It is read and written under mu.
	seen *bloom.BloomFilter
}

// Registry is a sharded collection of named OrderedMap[string] instances — the container backing Redis-style
// per-key sorted sets, where each RESP key name (ZADD leaderboard ...) maps to its own ordered map.
type Registry struct {
	shards   []*shard
	maxLevel int
}

// New builds a Registry with shardCount shards (clamped to at least 1). useBloomFilter enables the optional
// fast-negative membership filter per shard, sized for an expected ~10k names per shard at a 1% false-positive
// rate; it trades a small amount of memory for fewer map lookups on names that were never registered (e.g. a
// ZSCORE probe against a typo'd key). The shard's read lock is taken either way.
func New(shardCount int, maxLevel int, useBloomFilter bool) *Registry {
	if shardCount < 1 {
		utils.RaiseInvariant("registry", "non_positive_shard_count",
			"Invalid shard count given to registry.", "shardCount", shardCount)
		shardCount = 1
	}
	r := &Registry{shards: make([]*shard, shardCount), maxLevel: maxLevel}
	for i := range r.shards {
		s := &shard{maps: make(map[string]*zset.OrderedMap[string])}
		if useBloomFilter {
			s.seen = bloom.NewWithEstimates(10_000, 0.01)
		}
		r.shards[i] = s
	}
	return r
}

func (r *Registry) shardFor(name string) *shard {
	return r.shards[xxhash.Sum64String(name)%uint64(len(r.shards))]
}

// Get returns the ordered map registered under name, or ErrNotFound.
func (r *Registry) Get(name string) (*zset.OrderedMap[string], error) {
	s := r.shardFor(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.seen != nil && !s.seen.TestString(name) {
		return nil, ErrNotFound
	}
	om, ok := s.maps[name]
	if !ok {
		return nil, ErrNotFound
	}
	return om, nil
}

// GetOrCreate returns the ordered map registered under name, creating an empty one (with the registry's
// configured maxLevel and the default geometric level generator) if absent.
func (r *Registry) GetOrCreate(name string) (*zset.OrderedMap[string], error) {
	s := r.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if om, ok := s.maps[name]; ok {
		return om, nil
	}
	om, err := zset.New[string](r.maxLevel, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: creating %q: %w", name, err)
	}
	s.maps[name] = om
	if s.seen != nil {
		s.seen.AddString(name)
	}
	return om, nil
}

// Delete removes name from the registry, reporting whether it was present.
func (r *Registry) Delete(name string) bool {
	s := r.shardFor(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.maps[name]; !ok {
		return false
	}
	delete(s.maps, name)
	return true
}

// Names returns every registered name across all shards, in no particular order. Intended for administrative or
// pattern-scan use (the ZSCAN/KEYS surface), not the hot path.
func (r *Registry) Names() []string {
	names := make([]string, 0)
	for _, s := range r.shards {
		s.mu.RLock()
		for name := range s.maps {
			names = append(names, name)
		}
		s.mu.RUnlock()
	}
	return names
}
