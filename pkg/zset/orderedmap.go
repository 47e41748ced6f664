package zset

import (
	"errors"
	"fmt"
	"math"

	"github.com/nobletooth/zindex/pkg/storage"
)

// DefaultMaxLevel is the default maxlevel for a new OrderedMap when none is given.
const DefaultMaxLevel = 32

// OrderedMap is the coordinated dict+skiplist container: a hash map from key to its current skip list node gives
// O(1) expected membership and key->score lookup, while the skip list gives O(log n) expected rank/range/order
// queries. Mutations always go through OrderedMap so the two structures never drift apart: never reach into the
// skip list directly.
type OrderedMap[K comparable] struct {
	dict     map[K]*storage.Node[K]
	sl       *storage.SkipList[K]
	maxLevel int
	nextSeq  uint64
}

// New builds an empty OrderedMap, then bulk-inserts seq if given. maxlevel defaults to DefaultMaxLevel (32) and
// must be in [1, 32]; levelGen defaults to a geometric generator (p=0.25) when nil.
func New[K comparable](maxLevel int, levelGen storage.LevelGenerator, seq ...[]Pair[K]) (*OrderedMap[K], error) {
	if maxLevel == 0 {
		maxLevel = DefaultMaxLevel
	}
	if maxLevel < 1 || maxLevel > 32 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxLevel, maxLevel)
	}
	om := &OrderedMap[K]{
		dict:     make(map[K]*storage.Node[K]),
		sl:       storage.New[K](maxLevel, levelGen),
		maxLevel: maxLevel,
	}
	for _, pairs := range seq {
		if err := om.Update(pairs); err != nil {
			return nil, err
		}
	}
	return om, nil
}

// Pair is a (key, score) tuple, the unit bulk-insert accepts.
type Pair[K comparable] struct {
	Key   K
	Score float64
}

// Len returns the number of entries.
func (om *OrderedMap[K]) Len() int { return len(om.dict) }

// MaxLevel returns the read-only maxlevel attribute.
func (om *OrderedMap[K]) MaxLevel() int { return om.maxLevel }

// Contains reports whether k is present, in O(1) expected time via the dict.
func (om *OrderedMap[K]) Contains(k K) bool {
	_, ok := om.dict[k]
	return ok
}

// Get returns the score for k, or def if absent.
func (om *OrderedMap[K]) Get(k K, def float64) float64 {
	if n, ok := om.dict[k]; ok {
		return n.Score()
	}
	return def
}

// GetChecked returns the score for k, or ErrKeyNotFound if absent — the no-default form of Get.
func (om *OrderedMap[K]) GetChecked(k K) (float64, error) {
	if n, ok := om.dict[k]; ok {
		return n.Score(), nil
	}
	return 0, fmt.Errorf("%w: %v", ErrKeyNotFound, k)
}

// validateScore rejects NaN scores at the boundary.
func validateScore(score float64) error {
	if math.IsNaN(score) {
		return fmt.Errorf("%w: NaN", ErrInvalidScore)
	}
	return nil
}

// nextLevel draws a level for a new insertion, translating the generator's own validation error into the
// package's ErrLevelOutOfRange/ErrInvalidLevel taxonomy so callers never need to import pkg/storage directly.
func (om *OrderedMap[K]) nextLevel() (int, error) {
	level, err := om.sl.NextLevel()
	if err != nil {
		if errors.Is(err, storage.ErrLevelOutOfRange) {
			return 0, fmt.Errorf("%w: %v", ErrLevelOutOfRange, err)
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}
	if level < 1 || level > om.maxLevel {
		return 0, fmt.Errorf("%w: got %d, want [1, %d]", ErrLevelOutOfRange, level, om.maxLevel)
	}
	return level, nil
}

// Set upserts k's score to s: if k is present with a different (score, node identity), the old skip list node is
// detached (Delete with change=0) and a fresh node is inserted at s; if k is absent, a node is inserted directly.
// Re-setting the same score for an already-present key is a no-op. The replacement level is drawn and validated
// before anything is detached, so a failing level generator leaves the map exactly as it was.
func (om *OrderedMap[K]) Set(k K, s float64) error {
	if err := validateScore(s); err != nil {
		return err
	}
	existing, ok := om.dict[k]
	if ok && existing.Score() == s {
		return nil // Idempotent: nothing about rank/order changes.
	}
	level, err := om.nextLevel()
	if err != nil {
		return err
	}
	if ok {
		om.sl.Delete(existing.Score(), existing.Seq(), 0)
		delete(om.dict, k)
	}
	om.insert(k, s, level)
	return nil
}

// insert splices a brand-new node for k at score s at the given (already drawn and validated) level. The caller
// must have already ensured k is absent from both the dict and the skip list.
func (om *OrderedMap[K]) insert(k K, s float64, level int) {
	seq := om.nextSeq
	om.nextSeq++
	node := om.sl.Insert(s, seq, k, level)
	om.dict[k] = node
}

// SetDefault inserts (k, s) if k is absent and returns s; otherwise returns k's current score unchanged.
func (om *OrderedMap[K]) SetDefault(k K, s float64) (float64, error) {
	if n, ok := om.dict[k]; ok {
		return n.Score(), nil
	}
	if err := om.Set(k, s); err != nil {
		return 0, err
	}
	return s, nil
}

// Delete removes k from both structures, or returns ErrKeyNotFound if absent.
func (om *OrderedMap[K]) Delete(k K) error {
	n, ok := om.dict[k]
	if !ok {
		return fmt.Errorf("%w: %v", ErrKeyNotFound, k)
	}
	om.sl.Delete(n.Score(), n.Seq(), 0)
	delete(om.dict, k)
	return nil
}

// Change applies an additive score adjustment: if k is absent, it is inserted with score delta; if present, the
// skip list's in-place fast path is attempted first and a full delete+reinsert only happens when that path
// declines. Returns the resulting score. The fast path applies when delta > 0 and the new score stays strictly
// below the node's successor; on that path no level is drawn. Otherwise the replacement level is drawn and
// validated before the skip list's Delete call, so a failing level generator never leaves the node removed with
// nothing to replace it.
func (om *OrderedMap[K]) Change(k K, delta float64) (float64, error) {
	n, ok := om.dict[k]
	if !ok {
		if err := om.Set(k, delta); err != nil {
			return 0, err
		}
		return delta, nil
	}
	newScore := n.Score() + delta
	if err := validateScore(newScore); err != nil {
		return 0, err
	}
	// Mirrors the skip list's in-place condition: a level is only needed when the node will be re-linked.
	var level int
	if next := om.sl.Forward(n); delta <= 0 || (next != nil && newScore >= next.Score()) {
		drawn, err := om.nextLevel()
		if err != nil {
			return 0, err
		}
		level = drawn
	}
	updated, status := om.sl.Delete(n.Score(), n.Seq(), delta)
	switch status {
	case storage.DeleteAdjusted:
		// updated is the same node, its score bumped in place; dict entry still points at it.
		return updated.Score(), nil
	case storage.DeleteRemoved:
		delete(om.dict, k)
		om.insert(k, newScore, level)
		return newScore, nil
	default:
		// Unreachable: n came straight from the dict, so the skip list must have held a matching node.
		return 0, fmt.Errorf("zset: internal inconsistency deleting %v during Change", k)
	}
}

// Index returns k's 0-based rank in ascending score order, or ErrKeyNotFound if absent.
func (om *OrderedMap[K]) Index(k K) (int, error) {
	n, ok := om.dict[k]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrKeyNotFound, k)
	}
	rank := om.sl.RankOf(n.Score(), n.Seq())
	return rank - 1, nil // Skip list ranks are 1-based; the public contract is 0-based.
}

// Update performs a bulk insert, accepting any slice of (key, score) pairs; a map can be passed via UpdateMap.
func (om *OrderedMap[K]) Update(pairs []Pair[K]) error {
	for i, p := range pairs {
		if err := om.Set(p.Key, p.Score); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// UpdateMap bulk-inserts every (key, score) pair from m.
func (om *OrderedMap[K]) UpdateMap(m map[K]float64) error {
	for k, s := range m {
		if err := om.Set(k, s); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether om and other have equal key->score mappings (score ordering is not part of equality).
func (om *OrderedMap[K]) Equal(other *OrderedMap[K]) bool {
	if om.Len() != other.Len() {
		return false
	}
	for k, n := range om.dict {
		otherNode, ok := other.dict[k]
		if !ok || otherNode.Score() != n.Score() {
			return false
		}
	}
	return true
}

// EqualMap reports whether om's key->score mapping equals m.
func (om *OrderedMap[K]) EqualMap(m map[K]float64) bool {
	if om.Len() != len(m) {
		return false
	}
	for k, n := range om.dict {
		s, ok := m[k]
		if !ok || s != n.Score() {
			return false
		}
	}
	return true
}

// RankRange returns up to (stop-start+1) (key, score) pairs at the 0-based inclusive rank range [start, stop], the
// position-addressed read Redis's ZRANGE needs. Negative start/stop count from the end, Python-slice style;
// out-of-range bounds are clamped rather than erroring, matching Redis ZRANGE semantics.
func (om *OrderedMap[K]) RankRange(start, stop int) []Pair[K] {
	n := om.Len()
	if n == 0 {
		return nil
	}
	start = clampIndex(start, n)
	stop = clampIndex(stop, n)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil
	}
	out := make([]Pair[K], 0, stop-start+1)
	for rank := start + 1; rank <= stop+1; rank++ {
		node := om.sl.NodeByRank(rank)
		if node == nil {
			break
		}
		out = append(out, Pair[K]{Key: node.Key(), Score: node.Score()})
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	return i
}
