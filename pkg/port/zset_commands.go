package port

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nobletooth/zindex/pkg/registry"
	"github.com/nobletooth/zindex/pkg/scan"
	"github.com/nobletooth/zindex/pkg/utils"
	"github.com/nobletooth/zindex/pkg/zset"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// zsetCommandsServed counts Z-commands by name and outcome, the way an operator dashboard would slice command
// traffic per sorted-set operation rather than per overall RESP command. Only the ZADD, ZREM and ZINCRBY handlers
// record into it; the other Z-command handlers do not.
var zsetCommandsServed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kiwi_zset_commands_total",
	Help: "Total number of sorted-set commands served, by command and outcome.",
}, []string{"command", "outcome"})

func recordZsetCommand(command string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	zsetCommandsServed.WithLabelValues(command, outcome).Inc()
}

func parseFloat(b []byte) (float64, error) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, fmt.Errorf("value is not a valid float: %q", b)
	}
	return f, nil
}

func parseInt(b []byte) (int, error) {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, fmt.Errorf("value is not an integer: %q", b)
	}
	return n, nil
}

func writeRedisFloat(f float64) RedisOutput {
	return writeRedisString(strconv.FormatFloat(f, 'g', -1, 64))
}

// handleZAdd implements ZADD key score member [score member ...].
func handleZAdd(cmd RedisCommand, store *KiwiStorage) RedisOutput {
	if len(cmd.args) < 3 || len(cmd.args)%2 != 1 {
		return writeRedisError(errors.New("wrong number of arguments for 'ZADD' command"))
	}
	name := string(cmd.args[0])
	om, err := store.Zsets().GetOrCreate(name)
	if err != nil {
		recordZsetCommand("ZADD", err)
		return writeRedisError(err)
	}

	added := 0
	for i := 1; i < len(cmd.args); i += 2 {
		score, err := parseFloat(cmd.args[i])
		if err != nil {
			recordZsetCommand("ZADD", err)
			return writeRedisError(err)
		}
		member := string(cmd.args[i+1])
		existed := om.Contains(member)
		if err := om.Set(member, score); err != nil {
			recordZsetCommand("ZADD", err)
			return writeRedisError(err)
		}
		if !existed {
			added++
		}
	}
	recordZsetCommand("ZADD", nil)
	return writeRedisInt(added)
}

// handleZRem implements ZREM key member [member ...].
func handleZRem(cmd RedisCommand, store *KiwiStorage) RedisOutput {
	if len(cmd.args) < 2 {
		return writeRedisError(errors.New("wrong number of arguments for 'ZREM' command"))
	}
	om, err := store.Zsets().Get(string(cmd.args[0]))
	if errors.Is(err, registry.ErrNotFound) {
		recordZsetCommand("ZREM", nil)
		return writeRedisInt(0)
	} else if err != nil {
		recordZsetCommand("ZREM", err)
		return writeRedisError(err)
	}

	removed := 0
	for _, member := range cmd.args[1:] {
		if err := om.Delete(string(member)); err == nil {
			removed++
		}
	}
	recordZsetCommand("ZREM", nil)
	return writeRedisInt(removed)
}

// handleZScore implements ZSCORE key member.
func handleZScore(cmd RedisCommand, store *KiwiStorage) RedisOutput {
	if len(cmd.args) != 2 {
		return writeRedisError(errors.New("wrong number of arguments for 'ZSCORE' command"))
	}
	om, err := store.Zsets().Get(string(cmd.args[0]))
	if errors.Is(err, registry.ErrNotFound) {
		return writeRedisNil()
	} else if err != nil {
		return writeRedisError(err)
	}
	score, err := om.GetChecked(string(cmd.args[1]))
	if errors.Is(err, zset.ErrKeyNotFound) {
		return writeRedisNil()
	} else if err != nil {
		return writeRedisError(err)
	}
	return writeRedisFloat(score)
}

// handleZIncrBy implements ZINCRBY key increment member.
func handleZIncrBy(cmd RedisCommand, store *KiwiStorage) RedisOutput {
	if len(cmd.args) != 3 {
		return writeRedisError(errors.New("wrong number of arguments for 'ZINCRBY' command"))
	}
	delta, err := parseFloat(cmd.args[1])
	if err != nil {
		return writeRedisError(err)
	}
	om, err := store.Zsets().GetOrCreate(string(cmd.args[0]))
	if err != nil {
		return writeRedisError(err)
	}
	score, err := om.Change(string(cmd.args[2]), delta)
	recordZsetCommand("ZINCRBY", err)
	if err != nil {
		return writeRedisError(err)
	}
	return writeRedisFloat(score)
}

// handleZCard implements ZCARD key.
func handleZCard(cmd RedisCommand, store *KiwiStorage) RedisOutput {
	if len(cmd.args) != 1 {
		return writeRedisError(errors.New("wrong number of arguments for 'ZCARD' command"))
	}
	om, err := store.Zsets().Get(string(cmd.args[0]))
	if errors.Is(err, registry.ErrNotFound) {
		return writeRedisInt(0)
	} else if err != nil {
		return writeRedisError(err)
	}
	return writeRedisInt(om.Len())
}

// handleZRankLike backs both ZRANK and ZREVRANK; reversed flips the rank to descending-score order.
func handleZRankLike(cmd RedisCommand, store *KiwiStorage, reversed bool, label string) RedisOutput {
	if len(cmd.args) != 2 {
		return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", label))
	}
	om, err := store.Zsets().Get(string(cmd.args[0]))
	if errors.Is(err, registry.ErrNotFound) {
		return writeRedisNil()
	} else if err != nil {
		return writeRedisError(err)
	}
	idx, err := om.Index(string(cmd.args[1]))
	if errors.Is(err, zset.ErrKeyNotFound) {
		return writeRedisNil()
	} else if err != nil {
		return writeRedisError(err)
	}
	if reversed {
		idx = om.Len() - 1 - idx
	}
	return writeRedisInt(idx)
}

// handleZRangeLike backs ZRANGE/ZREVRANGE (rank-addressed) reads.
func handleZRangeLike(cmd RedisCommand, store *KiwiStorage, reversed bool, label string) RedisOutput {
	if len(cmd.args) != 3 {
		return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", label))
	}
	start, err := parseInt(cmd.args[1])
	if err != nil {
		return writeRedisError(err)
	}
	stop, err := parseInt(cmd.args[2])
	if err != nil {
		return writeRedisError(err)
	}
	om, err := store.Zsets().Get(string(cmd.args[0]))
	if errors.Is(err, registry.ErrNotFound) {
		return writeRedisBytes([]byte{})
	} else if err != nil {
		return writeRedisError(err)
	}

	n := om.Len()
	start, stop = normalizeRange(start, stop, n)
	if start > stop {
		return writeRedisBytes([]byte{})
	}
	if reversed {
		start, stop = n-1-stop, n-1-start
	}
	pairs := om.RankRange(start, stop)
	if reversed {
		for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
			pairs[i], pairs[j] = pairs[j], pairs[i]
		}
	}
	return writeRedisBytes([]byte(joinMembers(pairs)))
}

// normalizeRange resolves Python-slice-style start/stop (negative counts from the end) against length n into an
// absolute, order-preserving pair; the result may still have start > stop, meaning an empty range.
func normalizeRange(start, stop, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}

func joinMembers(pairs []zset.Pair[string]) string {
	members := make([]string, len(pairs))
	for i, p := range pairs {
		members[i] = p.Key
	}
	return strings.Join(members, "\n")
}

// handleZRangeByScore implements ZRANGEBYSCORE key min max.
func handleZRangeByScore(cmd RedisCommand, store *KiwiStorage) RedisOutput {
	if len(cmd.args) != 3 {
		return writeRedisError(errors.New("wrong number of arguments for 'ZRANGEBYSCORE' command"))
	}
	min, err := parseFloat(cmd.args[1])
	if err != nil {
		return writeRedisError(err)
	}
	max, err := parseFloat(cmd.args[2])
	if err != nil {
		return writeRedisError(err)
	}
	om, err := store.Zsets().Get(string(cmd.args[0]))
	if errors.Is(err, registry.ErrNotFound) {
		return writeRedisBytes([]byte{})
	} else if err != nil {
		return writeRedisError(err)
	}

	var members []string
	for pair := range om.Range(min, max) {
		members = append(members, pair.Key)
	}
	return writeRedisBytes([]byte(strings.Join(members, "\n")))
}

// handleZScan implements ZSCAN key pattern, returning every member whose name matches the glob pattern (the
// sorted-set analogue of Redis's KEYS, reusing the same glob engine — see pkg/scan/glob.go).
func handleZScan(cmd RedisCommand, store *KiwiStorage) RedisOutput {
	if len(cmd.args) != 2 {
		return writeRedisError(errors.New("wrong number of arguments for 'ZSCAN' command"))
	}
	om, err := store.Zsets().Get(string(cmd.args[0]))
	if errors.Is(err, registry.ErrNotFound) {
		return writeRedisBytes([]byte{})
	} else if err != nil {
		return writeRedisError(err)
	}

	pairs := func(yield func(utils.BytePair) bool) {
		for pair := range om.Items() {
			if !yield(utils.BytePair{Key: []byte(pair.Key), Value: []byte(strconv.FormatFloat(pair.Value, 'g', -1, 64))}) {
				return
			}
		}
	}
	var members []string
	for bp := range scan.MatchGlob(cmd.args[1], pairs) {
		members = append(members, string(bp.Key))
	}
	return writeRedisBytes([]byte(strings.Join(members, "\n")))
}

// handleZSetOpStore backs ZUNIONSTORE/ZINTERSTORE destination numkeys key [key ...].
func handleZSetOpStore(cmd RedisCommand, store *KiwiStorage, union bool, label string) RedisOutput {
	if len(cmd.args) < 3 {
		return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", label))
	}
	dest := string(cmd.args[0])
	numKeys, err := parseInt(cmd.args[1])
	if err != nil {
		return writeRedisError(err)
	}
	if numKeys < 1 || len(cmd.args) < 2+numKeys {
		return writeRedisError(errors.New("numkeys does not match number of keys"))
	}

	sources := make([]*zset.OrderedMap[string], numKeys)
	for i := 0; i < numKeys; i++ {
		om, err := store.Zsets().Get(string(cmd.args[2+i]))
		if errors.Is(err, registry.ErrNotFound) {
			om, _ = zset.New[string](0, nil) // Missing source behaves like an empty set.
		} else if err != nil {
			return writeRedisError(err)
		}
		sources[i] = om
	}

	var result *zset.OrderedMap[string]
	if union {
		result, err = zset.Union(sources, nil, nil)
	} else {
		result, err = zset.Intersect(sources, nil, nil)
	}
	if err != nil {
		return writeRedisError(err)
	}

	// ZUNIONSTORE/ZINTERSTORE replace dest wholesale rather than merge into whatever it already held.
	store.Zsets().Delete(dest)
	destOm, err := store.Zsets().GetOrCreate(dest)
	if err != nil {
		return writeRedisError(err)
	}
	for pair := range result.Items() {
		if err := destOm.Set(pair.Key, pair.Value); err != nil {
			return writeRedisError(err)
		}
	}
	return writeRedisInt(result.Len())
}
