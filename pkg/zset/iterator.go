package zset

import (
	"fmt"
	"iter"

	"github.com/nobletooth/zindex/pkg/storage"
	"github.com/nobletooth/zindex/pkg/utils"
)

// Items returns a sequence of (key, score) pairs in ascending score order, the ordering surface's default walk.
func (om *OrderedMap[K]) Items() iter.Seq[utils.Pair[K, float64]] {
	return func(yield func(utils.Pair[K, float64]) bool) {
		it := storage.NewIteratorFromHead(om.sl)
		for {
			score, key, ok := it.Get()
			if !ok {
				return
			}
			if !yield(utils.Pair[K, float64]{Key: key, Value: score}) {
				return
			}
			it.Next()
		}
	}
}

// Keys returns the keys in ascending score order.
func (om *OrderedMap[K]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for pair := range om.Items() {
			if !yield(pair.Key) {
				return
			}
		}
	}
}

// Values returns the scores in ascending score order.
func (om *OrderedMap[K]) Values() iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for pair := range om.Items() {
			if !yield(pair.Value) {
				return
			}
		}
	}
}

// Range returns a sequence of (key, score) pairs whose score falls within [min, max]; min > max walks the window
// in descending order, mirroring ZRANGEBYSCORE / ZREVRANGEBYSCORE.
func (om *OrderedMap[K]) Range(min, max float64) iter.Seq[utils.Pair[K, float64]] {
	return func(yield func(utils.Pair[K, float64]) bool) {
		it := storage.NewIteratorFromRange(om.sl, min, max)
		for {
			score, key, ok := it.Get()
			if !ok {
				return
			}
			if !yield(utils.Pair[K, float64]{Key: key, Value: score}) {
				return
			}
			it.Next()
		}
	}
}

// At returns the (key, score) pair at 0-based position i, Python-slice style: negative i counts from the end.
// Returns ErrIndexOutOfRange if i falls outside [-Len(), Len()).
func (om *OrderedMap[K]) At(i int) (Pair[K], error) {
	n := om.Len()
	idx := clampIndex(i, n)
	if idx < 0 || idx >= n {
		return Pair[K]{}, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, n)
	}
	node := om.sl.NodeByRank(idx + 1)
	if node == nil {
		return Pair[K]{}, fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, n)
	}
	return Pair[K]{Key: node.Key(), Score: node.Score()}, nil
}

// Slice returns the (key, score) pairs for the 0-based, exclusive-end range [start, stop), Python-slice style:
// negative bounds count from the end, and out-of-range bounds are clamped rather than erroring. Only a step of 1
// is supported; any other step returns ErrSliceStep.
func (om *OrderedMap[K]) Slice(start, stop, step int) ([]Pair[K], error) {
	if step != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrSliceStep, step)
	}
	n := om.Len()
	if n == 0 {
		return nil, nil
	}
	start = clampIndex(start, n)
	stop = clampIndex(stop, n)
	if start < 0 {
		start = 0
	}
	if stop > n {
		stop = n
	}
	if start >= stop {
		return nil, nil
	}
	return om.RankRange(start, stop-1), nil
}
