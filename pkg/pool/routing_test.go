package pool

import (
	"errors"
	"testing"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/fold"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

func TestSelectShardIndex(t *testing.T) {
	outpoint := types.Outpoint{TxID: fillHash(0xaa), Index: 5}

	got, err := SelectShardIndex(outpoint, 8)
	if err != nil {
		t.Fatal(err)
	}
	noteHash := fold.NoteHash(outpoint)
	if want := uint32(noteHash[0]) % 8; got != want {
		t.Errorf("shard index = %d, want %d", got, want)
	}

	// Single-shard pools always route to shard 0.
	if got, _ := SelectShardIndex(outpoint, 1); got != 0 {
		t.Errorf("single shard routing = %d", got)
	}

	if _, err := SelectShardIndex(outpoint, 0); err == nil {
		t.Error("zero shard count should fail")
	}
}

func TestSelectShardIndexDeterministic(t *testing.T) {
	a := types.Outpoint{TxID: fillHash(0xaa), Index: 0}
	b := a
	b.Index = 1

	i1, _ := SelectShardIndex(a, 256)
	i2, _ := SelectShardIndex(a, 256)
	if i1 != i2 {
		t.Error("routing should be deterministic")
	}
	// With 256 shards the route is exactly the first note-hash byte, so
	// distinct outpoints almost surely land apart; just check validity.
	j, _ := SelectShardIndex(b, 256)
	if j > 255 {
		t.Error("route out of range")
	}
}

func TestBestFitShard(t *testing.T) {
	s := validState(4)
	s.Shards[0].Value = 10000
	s.Shards[1].Value = 5000
	s.Shards[2].Value = 20000
	s.Shards[3].Value = 4000

	// Smallest shard covering payment + dust wins.
	shard, err := BestFitShard(s, 4000, 546)
	if err != nil {
		t.Fatal(err)
	}
	if shard.Index != 1 {
		t.Errorf("best fit = shard %d, want 1", shard.Index)
	}

	// Exactly at the floor qualifies.
	shard, err = BestFitShard(s, 5000-546, 546)
	if err != nil {
		t.Fatal(err)
	}
	if shard.Index != 1 {
		t.Errorf("boundary fit = shard %d, want 1", shard.Index)
	}

	// Beyond every shard.
	if _, err := BestFitShard(s, 25000, 546); !errors.Is(err, ErrNoShardFits) {
		t.Errorf("error = %v, want ErrNoShardFits", err)
	}
}
