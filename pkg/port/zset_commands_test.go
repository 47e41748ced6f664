package port

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *KiwiStorage {
	t.Helper()
	store, err := NewKiwiStorage()
	require.NoError(t, err)
	return store
}

func args(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func TestHandleZAdd_AddsAndCountsNewMembersOnly(t *testing.T) {
	store := newTestStore(t)
	out := handleZAdd(RedisCommand{args: args("board", "1", "alice", "2", "bob")}, store)
	require.Nil(t, out.err)
	assert.Equal(t, 2, *out.writeInt)

	// Re-adding "alice" with a new score updates but doesn't count as newly-added.
	out = handleZAdd(RedisCommand{args: args("board", "5", "alice")}, store)
	require.Nil(t, out.err)
	assert.Equal(t, 0, *out.writeInt)

	om, err := store.Zsets().Get("board")
	require.NoError(t, err)
	assert.Equal(t, 5.0, om.Get("alice", -1))
}

func TestHandleZScore(t *testing.T) {
	store := newTestStore(t)
	handleZAdd(RedisCommand{args: args("board", "1", "alice")}, store)

	out := handleZScore(RedisCommand{args: args("board", "alice")}, store)
	require.Nil(t, out.err)
	assert.Equal(t, "1", string(out.writeBytes))

	out = handleZScore(RedisCommand{args: args("board", "missing")}, store)
	assert.True(t, out.writeNil)

	out = handleZScore(RedisCommand{args: args("missing-board", "alice")}, store)
	assert.True(t, out.writeNil)
}

func TestHandleZIncrBy(t *testing.T) {
	store := newTestStore(t)
	out := handleZIncrBy(RedisCommand{args: args("board", "5", "alice")}, store)
	require.Nil(t, out.err)
	assert.Equal(t, "5", string(out.writeBytes))

	out = handleZIncrBy(RedisCommand{args: args("board", "2", "alice")}, store)
	require.Nil(t, out.err)
	assert.Equal(t, "7", string(out.writeBytes))
}

func TestHandleZCard(t *testing.T) {
	store := newTestStore(t)
	handleZAdd(RedisCommand{args: args("board", "1", "a", "2", "b")}, store)

	out := handleZCard(RedisCommand{args: args("board")}, store)
	require.Nil(t, out.err)
	assert.Equal(t, 2, *out.writeInt)

	out = handleZCard(RedisCommand{args: args("missing")}, store)
	require.Nil(t, out.err)
	assert.Equal(t, 0, *out.writeInt)
}

func TestHandleZRem(t *testing.T) {
	store := newTestStore(t)
	handleZAdd(RedisCommand{args: args("board", "1", "a", "2", "b")}, store)

	out := handleZRem(RedisCommand{args: args("board", "a", "nonexistent")}, store)
	require.Nil(t, out.err)
	assert.Equal(t, 1, *out.writeInt)
}

func TestHandleZRankAndZRevRank(t *testing.T) {
	store := newTestStore(t)
	handleZAdd(RedisCommand{args: args("board", "1", "a", "2", "b", "3", "c")}, store)

	out := handleZRankLike(RedisCommand{args: args("board", "a")}, store, false, "ZRANK")
	require.Nil(t, out.err)
	assert.Equal(t, 0, *out.writeInt)

	out = handleZRankLike(RedisCommand{args: args("board", "a")}, store, true, "ZREVRANK")
	require.Nil(t, out.err)
	assert.Equal(t, 2, *out.writeInt)

	out = handleZRankLike(RedisCommand{args: args("board", "missing")}, store, false, "ZRANK")
	assert.True(t, out.writeNil)
}

func TestHandleZRangeAndZRevRange(t *testing.T) {
	store := newTestStore(t)
	handleZAdd(RedisCommand{args: args("board", "1", "a", "2", "b", "3", "c")}, store)

	out := handleZRangeLike(RedisCommand{args: args("board", "0", "-1")}, store, false, "ZRANGE")
	require.Nil(t, out.err)
	assert.Equal(t, "a\nb\nc", string(out.writeBytes))

	out = handleZRangeLike(RedisCommand{args: args("board", "0", "-1")}, store, true, "ZREVRANGE")
	require.Nil(t, out.err)
	assert.Equal(t, "c\nb\na", string(out.writeBytes))
}

func TestHandleZRangeByScore(t *testing.T) {
	store := newTestStore(t)
	handleZAdd(RedisCommand{args: args("board", "1", "a", "2", "b", "3", "c")}, store)

	out := handleZRangeByScore(RedisCommand{args: args("board", "2", "3")}, store)
	require.Nil(t, out.err)
	assert.Equal(t, "b\nc", string(out.writeBytes))
}

func TestHandleZScan_FiltersByGlob(t *testing.T) {
	store := newTestStore(t)
	handleZAdd(RedisCommand{args: args("board", "1", "alice", "2", "bob", "3", "alan")}, store)

	out := handleZScan(RedisCommand{args: args("board", "al*")}, store)
	require.Nil(t, out.err)
	assert.Equal(t, "alice\nalan", string(out.writeBytes))
}

func TestHandleZUnionStore(t *testing.T) {
	store := newTestStore(t)
	handleZAdd(RedisCommand{args: args("s1", "1", "x", "2", "y")}, store)
	handleZAdd(RedisCommand{args: args("s2", "10", "y", "3", "z")}, store)

	out := handleZSetOpStore(RedisCommand{args: args("dest", "2", "s1", "s2")}, store, true, "ZUNIONSTORE")
	require.Nil(t, out.err)
	assert.Equal(t, 3, *out.writeInt)

	dest, err := store.Zsets().Get("dest")
	require.NoError(t, err)
	assert.Equal(t, 1.0, dest.Get("x", -1))
	assert.Equal(t, 12.0, dest.Get("y", -1))
	assert.Equal(t, 3.0, dest.Get("z", -1))
}

func TestHandleZInterStore(t *testing.T) {
	store := newTestStore(t)
	handleZAdd(RedisCommand{args: args("s1", "1", "x", "2", "y")}, store)
	handleZAdd(RedisCommand{args: args("s2", "10", "y", "3", "z")}, store)

	out := handleZSetOpStore(RedisCommand{args: args("dest", "2", "s1", "s2")}, store, false, "ZINTERSTORE")
	require.Nil(t, out.err)
	assert.Equal(t, 1, *out.writeInt)

	dest, err := store.Zsets().Get("dest")
	require.NoError(t, err)
	assert.Equal(t, 12.0, dest.Get("y", -1))
}
