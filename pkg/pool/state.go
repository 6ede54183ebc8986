// Package pool implements the sharded-pool covenant's transaction
// builders: shard initialization, deposit import, and withdrawal, each a
// pure function of an immutable state snapshot plus injected
// collaborators.
package pool

import (
	"errors"
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/fold"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// State errors.
var (
	ErrShardCountMismatch = errors.New("shard list length does not match shard count")
	ErrNoSuchShard        = errors.New("no such shard")
)

// ShardPointer locates one shard's current on-chain output. Pointers are
// replaced by each transition, never mutated in place. A zero outpoint
// txid marks a pending pointer: the transition is built but the caller
// has not yet broadcast and filled in the txid.
type ShardPointer struct {
	Index      uint32         `json:"index"`
	Outpoint   types.Outpoint `json:"outpoint"`
	Value      uint64         `json:"value"`
	Commitment types.Hash     `json:"commitment"`
}

// Pending reports whether the pointer still awaits its broadcast txid.
func (p ShardPointer) Pending() bool {
	return p.Outpoint.TxID.IsZero()
}

// State is the canonical description of a pool instance, treated as an
// immutable snapshot: builders take a State in and hand a fresh State
// back. Callers own persistence and must serialize concurrent
// transitions against the same shard.
type State struct {
	PoolID       types.PoolID          `json:"pool_id"`
	Version      types.ProtocolVersion `json:"version"`
	Category     types.Category        `json:"category"`
	RedeemScript []byte                `json:"redeem_script"`
	// P2SH records whether shard outputs are P2SH-wrapped. Deployment
	// policy, fixed at init: every later transition must rebuild the
	// same shard lock.
	P2SH         bool              `json:"p2sh"`
	CategoryMode fold.CategoryMode `json:"category_mode"`
	Capability   script.Capability `json:"capability"`
	ShardCount   uint32            `json:"shard_count"`
	Shards       []ShardPointer    `json:"shards"`
}

// Validate checks the state's structural invariants.
func (s *State) Validate() error {
	if s.ShardCount == 0 {
		return fmt.Errorf("pool has zero shards")
	}
	if uint32(len(s.Shards)) != s.ShardCount {
		return fmt.Errorf("%w: %d shards, count %d",
			ErrShardCountMismatch, len(s.Shards), s.ShardCount)
	}
	for i, shard := range s.Shards {
		if shard.Index != uint32(i) {
			return fmt.Errorf("shard %d carries index %d", i, shard.Index)
		}
		if shard.Commitment.IsZero() {
			return fmt.Errorf("shard %d has a zero commitment", i)
		}
	}
	if len(s.RedeemScript) == 0 {
		return fmt.Errorf("pool has no redeem script")
	}
	if s.Capability > script.CapabilityMinting {
		return fmt.Errorf("invalid capability 0x%02x", byte(s.Capability))
	}
	return nil
}

// Shard returns the pointer at the given index.
func (s *State) Shard(index uint32) (ShardPointer, error) {
	if index >= uint32(len(s.Shards)) {
		return ShardPointer{}, fmt.Errorf("%w: index %d of %d", ErrNoSuchShard, index, len(s.Shards))
	}
	return s.Shards[index], nil
}

// WithShard returns a copy of the state with one shard pointer replaced.
func (s *State) WithShard(replacement ShardPointer) *State {
	next := *s
	next.Shards = make([]ShardPointer, len(s.Shards))
	copy(next.Shards, s.Shards)
	if int(replacement.Index) < len(next.Shards) {
		next.Shards[replacement.Index] = replacement
	}
	return &next
}

// ResolvePending fills the broadcast txid into every pending shard
// pointer, returning a fresh state. Callers invoke this after a
// successful broadcast.
func (s *State) ResolvePending(txid types.Hash) *State {
	next := *s
	next.Shards = make([]ShardPointer, len(s.Shards))
	copy(next.Shards, s.Shards)
	for i := range next.Shards {
		if next.Shards[i].Pending() {
			next.Shards[i].Outpoint.TxID = txid
		}
	}
	return &next
}

// ShardTokenPrefix builds the CashToken prefix a shard output carries for
// the given commitment.
func (s *State) ShardTokenPrefix(commitment types.Hash) *script.TokenPrefix {
	return &script.TokenPrefix{
		Category:   s.Category,
		HasNFT:     true,
		Capability: s.Capability,
		Commitment: commitment.Bytes(),
	}
}
