// Package zset implements the ordered map: a dict keyed by an opaque comparable key, paired with an indexable
// skip list ordered by (score, identity) so the same container answers both "what's the score for key k" (O(1)
// expected, via the dict) and "what's in rank/score order" (O(log n) expected, via the skip list). See
// pkg/storage for the skip list itself; this package owns the invariant that keeps the two in lockstep.
package zset

import "errors"

// Sentinel errors map the "Missing-key / Type mismatch / Value out of domain / Out of range / End of iteration"
// taxonomy onto Go error values. Wrap with fmt.Errorf("%w: ...") to attach context; callers use errors.Is.
var (
	// ErrKeyNotFound is returned by Get-without-default, Delete, and Index when the key is absent.
	ErrKeyNotFound = errors.New("key not found")
	// ErrInvalidScore is returned when a score is NaN (rejected at the boundary); infinite scores are accepted.
	ErrInvalidScore = errors.New("score must not be NaN")
	// ErrInvalidLevel is returned when a user-supplied level generator returns a non-integer-shaped value.
	// The Go API only accepts func(int) (int, error), so this specifically covers LevelGenerator.NextLevel errors
	// that are not already an ErrLevelOutOfRange.
	ErrInvalidLevel = errors.New("level generator returned an invalid level")
	// ErrLevelOutOfRange is returned when a level generator (built-in or user-supplied) produces a value outside
	// [1, maxlevel].
	ErrLevelOutOfRange = errors.New("level out of range")
	// ErrInvalidMaxLevel is returned when maxlevel is outside [1, 32] at construction time.
	ErrInvalidMaxLevel = errors.New("maxlevel must be in [1, 32]")
	// ErrInvalidElement names the "element is not a (key, score) pair" case. No function in this package returns
	// it: Update and UpdateMap take typed Pair slices and maps, which cannot hold a malformed element.
	ErrInvalidElement = errors.New("element is not a (key, score) pair")
	// ErrSliceStep is returned when an iterator slice is requested with a step other than 1.
	ErrSliceStep = errors.New("slice step must be 1")
	// ErrIndexOutOfRange is returned by iterator subscript access outside [-len, len).
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrStopIteration names the end-of-iteration case. No function in this package returns it: the iter.Seq
	// values from Items/Keys/Values/Range end by returning from the range loop.
	ErrStopIteration = errors.New("stop iteration")
)
