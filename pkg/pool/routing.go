package pool

import (
	"errors"
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/fold"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// ErrNoShardFits is returned when no shard can cover a withdrawal.
var ErrNoShardFits = errors.New("no shard covers the requested payment")

// SelectShardIndex deterministically routes a new deposit to a shard:
// noteHash[0] mod shardCount. The assignment is stateless and depends
// only on the outpoint and the shard count; callers may override it.
func SelectShardIndex(outpoint types.Outpoint, shardCount uint32) (uint32, error) {
	if shardCount == 0 {
		return 0, fmt.Errorf("shard count is zero")
	}
	noteHash := fold.NoteHash(outpoint)
	return uint32(noteHash[0]) % shardCount, nil
}

// BestFitShard selects the smallest shard whose value covers
// payment + dust, so the replacement shard output stays spendable.
func BestFitShard(s *State, payment, dustLimit uint64) (ShardPointer, error) {
	var best ShardPointer
	found := false
	for _, shard := range s.Shards {
		if shard.Value < payment+dustLimit {
			continue
		}
		if !found || shard.Value < best.Value {
			best = shard
			found = true
		}
	}
	if !found {
		return ShardPointer{}, fmt.Errorf("%w: payment %d + dust %d across %d shards",
			ErrNoShardFits, payment, dustLimit, len(s.Shards))
	}
	return best, nil
}
