package zset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMap(t *testing.T) *OrderedMap[string] {
	t.Helper()
	om, err := New[string](0, nil)
	require.NoError(t, err)
	return om
}

func TestNew_RejectsBadMaxLevel(t *testing.T) {
	_, err := New[string](33, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxLevel)

	_, err = New[string](-1, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxLevel)
}

func TestNew_DefaultsMaxLevel(t *testing.T) {
	om := newTestMap(t)
	assert.Equal(t, DefaultMaxLevel, om.MaxLevel())
}

func TestNew_BulkInsertsSeed(t *testing.T) {
	om, err := New[string](0, nil, []Pair[string]{{Key: "a", Score: 1}, {Key: "b", Score: 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, om.Len())
	assert.Equal(t, 1.0, om.Get("a", -1))
	assert.Equal(t, 2.0, om.Get("b", -1))
}

func TestSetAndGet(t *testing.T) {
	om := newTestMap(t)
	require.NoError(t, om.Set("a", 1.5))
	assert.True(t, om.Contains("a"))
	assert.Equal(t, 1.5, om.Get("a", 0))
	assert.Equal(t, 0.0, om.Get("missing", 0))
}

func TestSet_RejectsNaN(t *testing.T) {
	om := newTestMap(t)
	err := om.Set("a", nan())
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestSet_IsIdempotentOnSameScore(t *testing.T) {
	om := newTestMap(t)
	require.NoError(t, om.Set("a", 1.0))
	idx, err := om.Index("a")
	require.NoError(t, err)

	require.NoError(t, om.Set("a", 1.0)) // Re-setting the same score must be a no-op.
	idx2, err := om.Index("a")
	require.NoError(t, err)
	assert.Equal(t, idx, idx2)
}

func TestSet_RepositionsOnScoreChange(t *testing.T) {
	om := newTestMap(t)
	require.NoError(t, om.Set("a", 1.0))
	require.NoError(t, om.Set("b", 2.0))
	require.NoError(t, om.Set("a", 5.0))

	idxA, err := om.Index("a")
	require.NoError(t, err)
	idxB, err := om.Index("b")
	require.NoError(t, err)
	assert.Equal(t, 1, idxA)
	assert.Equal(t, 0, idxB)
}

func TestGetChecked_ReturnsErrKeyNotFound(t *testing.T) {
	om := newTestMap(t)
	_, err := om.GetChecked("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestSetDefault(t *testing.T) {
	om := newTestMap(t)
	s, err := om.SetDefault("a", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)

	s, err = om.SetDefault("a", 99.0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s) // Unchanged: "a" was already present.
}

func TestDelete(t *testing.T) {
	om := newTestMap(t)
	require.NoError(t, om.Set("a", 1.0))
	require.NoError(t, om.Delete("a"))
	assert.False(t, om.Contains("a"))
	assert.Equal(t, 0, om.Len())

	err := om.Delete("a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestChange_InsertsAbsentKey(t *testing.T) {
	om := newTestMap(t)
	score, err := om.Change("a", 5.0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, score)
	assert.True(t, om.Contains("a"))
}

func TestChange_AdjustsExistingKeyInPlace(t *testing.T) {
	om := newTestMap(t)
	require.NoError(t, om.Set("a", 1.0))
	require.NoError(t, om.Set("b", 100.0))

	score, err := om.Change("a", 2.0) // 1 + 2 = 3, still well below "b"'s 100.
	require.NoError(t, err)
	assert.Equal(t, 3.0, score)
	assert.Equal(t, 3.0, om.Get("a", -1))
}

func TestChange_ReordersWhenOvershootingNeighbor(t *testing.T) {
	om := newTestMap(t)
	require.NoError(t, om.Set("a", 1.0))
	require.NoError(t, om.Set("b", 2.0))

	score, err := om.Change("a", 10.0) // 1 + 10 = 11 > "b"'s 2: must reorder.
	require.NoError(t, err)
	assert.Equal(t, 11.0, score)

	idxA, err := om.Index("a")
	require.NoError(t, err)
	idxB, err := om.Index("b")
	require.NoError(t, err)
	assert.Equal(t, 1, idxA)
	assert.Equal(t, 0, idxB)
}

func TestChange_RejectsResultingNaN(t *testing.T) {
	om := newTestMap(t)
	require.NoError(t, om.Set("a", 0))
	_, err := om.Change("a", nan())
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestIndex(t *testing.T) {
	om := newTestMap(t)
	require.NoError(t, om.Set("a", 3.0))
	require.NoError(t, om.Set("b", 1.0))
	require.NoError(t, om.Set("c", 2.0))

	idxA, _ := om.Index("a")
	idxB, _ := om.Index("b")
	idxC, _ := om.Index("c")
	assert.Equal(t, 2, idxA)
	assert.Equal(t, 0, idxB)
	assert.Equal(t, 1, idxC)

	_, err := om.Index("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestUpdate_BulkInsertsPairs(t *testing.T) {
	om := newTestMap(t)
	err := om.Update([]Pair[string]{{Key: "a", Score: 1}, {Key: "b", Score: 2}, {Key: "c", Score: 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, om.Len())
}

func TestUpdateMap_BulkInsertsFromGoMap(t *testing.T) {
	om := newTestMap(t)
	err := om.UpdateMap(map[string]float64{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, om.Len())
}

func TestUpdate_PropagatesElementErrorWithIndex(t *testing.T) {
	om := newTestMap(t)
	err := om.Update([]Pair[string]{{Key: "a", Score: 1}, {Key: "b", Score: nan()}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestEqual(t *testing.T) {
	a := newTestMap(t)
	b := newTestMap(t)
	require.NoError(t, a.Update([]Pair[string]{{Key: "x", Score: 1}, {Key: "y", Score: 2}}))
	require.NoError(t, b.Update([]Pair[string]{{Key: "y", Score: 2}, {Key: "x", Score: 1}}))
	assert.True(t, a.Equal(b))

	require.NoError(t, b.Set("y", 99))
	assert.False(t, a.Equal(b))
}

func TestEqualMap(t *testing.T) {
	om := newTestMap(t)
	require.NoError(t, om.UpdateMap(map[string]float64{"a": 1, "b": 2}))
	assert.True(t, om.EqualMap(map[string]float64{"a": 1, "b": 2}))
	assert.False(t, om.EqualMap(map[string]float64{"a": 1, "b": 3}))
	assert.False(t, om.EqualMap(map[string]float64{"a": 1}))
}

func TestRankRange(t *testing.T) {
	om := newTestMap(t)
	require.NoError(t, om.Update([]Pair[string]{
		{Key: "a", Score: 1}, {Key: "b", Score: 2}, {Key: "c", Score: 3}, {Key: "d", Score: 4},
	}))

	got := om.RankRange(1, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Key)
	assert.Equal(t, "c", got[1].Key)

	got = om.RankRange(-2, -1) // Last two, Python-slice style.
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Key)
	assert.Equal(t, "d", got[1].Key)

	assert.Nil(t, om.RankRange(10, 20)) // Entirely out of range.
}

func TestRankRange_OnEmptyMap(t *testing.T) {
	om := newTestMap(t)
	assert.Nil(t, om.RankRange(0, -1))
}

func TestLevelGeneratorErrorPropagates(t *testing.T) {
	wantErr := errors.New("boom")
	badGen := &boomLevelGen{err: wantErr}
	om, err := New[string](8, badGen)
	require.NoError(t, err)

	err = om.Set("a", 1.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

type boomLevelGen struct{ err error }

func (g *boomLevelGen) NextLevel(maxLevel int) (int, error) { return 0, g.err }
