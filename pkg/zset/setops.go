package zset

import "fmt"

// AggregateFn combines two scores seen for the same key during Union/Intersect. SumAggregate, MinAggregate, and
// MaxAggregate cover the three forms Redis's ZUNIONSTORE/ZINTERSTORE AGGREGATE option supports.
type AggregateFn func(a, b float64) float64

// SumAggregate adds scores together — the default aggregate, matching ZUNIONSTORE/ZINTERSTORE's own default.
func SumAggregate(a, b float64) float64 { return a + b }

// MinAggregate keeps the smaller of the two scores.
func MinAggregate(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// MaxAggregate keeps the larger of the two scores.
func MaxAggregate(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Union builds a fresh OrderedMap holding every key that appears in any of sources, each weighted by the
// corresponding entry in weights (or 1.0 if weights is nil) and combined across sources with agg (SumAggregate if
// nil) when the same key appears in more than one source. This is the set-algebra surface backing ZUNIONSTORE.
//
// Keys need no ordering of their own for this merge — each key appears at most once per source, scores are
// accumulated in a map keyed by K, and the result's own ordering comes for free when the aggregated scores are
// re-inserted into the output skip list. A key-ordered k-way merge isn't an option here anyway: each source's
// Items() is ordered by score, not by key, so two sources holding the same key can emit it at completely different
// points in their respective walks — a merge that assumes a shared key order would desync across sources.
func Union[K comparable](sources []*OrderedMap[K], weights []float64, agg AggregateFn) (*OrderedMap[K], error) {
	if agg == nil {
		agg = SumAggregate
	}
	aggregated, _ := mergeSources(sources, weights, agg, false)
	out, err := New[K](DefaultMaxLevel, nil)
	if err != nil {
		return nil, err
	}
	for key, score := range aggregated {
		if err := out.Set(key, score); err != nil {
			return nil, fmt.Errorf("union: key %v: %w", key, err)
		}
	}
	return out, nil
}

// Intersect builds a fresh OrderedMap holding only the keys present in every one of sources, each weighted and
// combined the same way Union does. An empty sources slice yields an empty result.
func Intersect[K comparable](sources []*OrderedMap[K], weights []float64, agg AggregateFn) (*OrderedMap[K], error) {
	if agg == nil {
		agg = SumAggregate
	}
	aggregated, _ := mergeSources(sources, weights, agg, true)
	out, err := New[K](DefaultMaxLevel, nil)
	if err != nil {
		return nil, err
	}
	for key, score := range aggregated {
		if err := out.Set(key, score); err != nil {
			return nil, fmt.Errorf("intersect: key %v: %w", key, err)
		}
	}
	return out, nil
}

// mergeSources folds every source's (weighted) entries into one key->score map, tracking how many sources
// contributed to each key. When requireAll is set, keys that didn't reach count == len(sources) are dropped
// before returning — Intersect's membership test.
func mergeSources[K comparable](sources []*OrderedMap[K], weights []float64, agg AggregateFn, requireAll bool) (map[K]float64, map[K]int) {
	scores := make(map[K]float64)
	counts := make(map[K]int)
	for i, src := range sources {
		if src == nil {
			continue
		}
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		for pair := range src.Items() {
			weighted := pair.Value * w
			if n, ok := counts[pair.Key]; ok {
				scores[pair.Key] = agg(scores[pair.Key], weighted)
				counts[pair.Key] = n + 1
			} else {
				scores[pair.Key] = weighted
				counts[pair.Key] = 1
			}
		}
	}
	if requireAll {
		for key, n := range counts {
			if n != len(sources) {
				delete(scores, key)
				delete(counts, key)
			}
		}
	}
	return scores, counts
}
