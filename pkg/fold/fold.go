// Package fold implements the covenant's hash-fold commitment state
// machine: the pure function that maps a shard's current commitment, a
// note hash and optional fold limbs to its next commitment, under one of
// three protocol versions.
package fold

import (
	"encoding/binary"
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// CategoryMode selects how the token category enters the v1.1 prehash
// chain: as stored, or byte-reversed.
type CategoryMode uint8

// Category normalization modes.
const (
	CategoryDirect CategoryMode = iota
	CategoryReversed
)

// String returns "direct" or "reversed".
func (m CategoryMode) String() string {
	switch m {
	case CategoryDirect:
		return "direct"
	case CategoryReversed:
		return "reversed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// ParseCategoryMode converts a mode name to a CategoryMode.
func ParseCategoryMode(s string) (CategoryMode, error) {
	switch s {
	case "direct":
		return CategoryDirect, nil
	case "reversed":
		return CategoryReversed, nil
	default:
		return 0, fmt.Errorf("unknown category mode %q", s)
	}
}

// ProofTag is the domain byte prepended to a note hash when deriving the
// proof blob.
const ProofTag = 0x01

// Limb is a single fold input: either raw bytes or a minimally-encoded
// script integer.
type Limb struct {
	raw   []byte
	num   int64
	isNum bool
}

// BytesLimb wraps raw bytes as a fold limb.
func BytesLimb(b []byte) Limb {
	return Limb{raw: b}
}

// NumLimb wraps an integer as a fold limb; it folds as the minimal script
// number encoding.
func NumLimb(n int64) Limb {
	return Limb{num: n, isNum: true}
}

// Encode returns the byte string the limb contributes to the fold.
func (l Limb) Encode() []byte {
	if l.isNum {
		return script.EncodeNum(l.num)
	}
	return l.raw
}

// NoteHash derives the 32-byte note binding an outpoint to a single
// deposit or withdrawal event: SHA256(txid || LE32(vout)). The txid is
// used in wire order, never reversed.
func NoteHash(outpoint types.Outpoint) types.Hash {
	return crypto.Sha256(outpoint.Wire())
}

// ProofBlob derives the fixed-length proof placeholder the unlocking
// bytecode carries alongside the note hash. The on-chain verifier checks
// only its length; the value pads the ABI in the current protocol.
func ProofBlob(noteHash types.Hash) types.Hash {
	buf := make([]byte, 0, 1+types.HashSize)
	buf = append(buf, ProofTag)
	buf = append(buf, noteHash[:]...)
	return crypto.Sha256(buf)
}

// InitialCommitment computes a shard's commitment at pool initialization:
//
//	H(H(poolId20 || category32 || LE32(shardIndex) || LE32(shardCount)))
func InitialCommitment(poolID types.PoolID, category types.Category, shardIndex, shardCount uint32) types.Hash {
	buf := make([]byte, 0, types.PoolIDSize+types.HashSize+8)
	buf = append(buf, poolID[:]...)
	buf = append(buf, category[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, shardIndex)
	buf = binary.LittleEndian.AppendUint32(buf, shardCount)
	return crypto.Sha256d(buf)
}

// ComputeStateOut computes a shard's next commitment. It is referentially
// transparent: no I/O, no randomness, and identical inputs always produce
// identical output, which is what lets an independent verifier recompute
// and check every transition.
//
// v0 and v1 seed the fold with the current commitment directly. v1.1
// first binds state, category+capability and note hash through a
// four-step prehash chain, then folds any remaining limbs. Limbs fold
// from last to first with acc = H(acc || limbBytes).
func ComputeStateOut(
	version types.ProtocolVersion,
	stateIn types.Hash,
	category types.Category,
	noteHash types.Hash,
	limbs []Limb,
	mode CategoryMode,
	capability script.Capability,
) (types.Hash, error) {
	if capability > script.CapabilityMinting {
		return types.Hash{}, fmt.Errorf("invalid capability byte 0x%02x", byte(capability))
	}
	if mode != CategoryDirect && mode != CategoryReversed {
		return types.Hash{}, fmt.Errorf("invalid category mode %d", uint8(mode))
	}

	switch version {
	case types.VersionV0, types.VersionV1:
		return foldLimbs(stateIn, limbs), nil

	case types.VersionV11:
		cat := category
		if mode == CategoryReversed {
			cat = category.Reversed()
		}
		inCatCap := make([]byte, 0, types.HashSize+1)
		inCatCap = append(inCatCap, cat[:]...)
		inCatCap = append(inCatCap, byte(capability))

		h0 := crypto.Sha256d(cat2(stateIn[:], stateIn[:]))
		h1 := crypto.Sha256d(cat2(h0[:], stateIn[:]))
		h2 := crypto.Sha256d(cat2(h1[:], inCatCap))
		acc := crypto.Sha256d(cat2(h2[:], noteHash[:]))
		return foldLimbs(acc, limbs), nil

	default:
		return types.Hash{}, fmt.Errorf("unknown protocol version %s", version)
	}
}

// foldLimbs folds limbs from last to first: acc = H(H(acc || limbBytes)).
// All three protocol versions share this loop.
func foldLimbs(acc types.Hash, limbs []Limb) types.Hash {
	for i := len(limbs) - 1; i >= 0; i-- {
		acc = crypto.Sha256d(cat2(acc[:], limbs[i].Encode()))
	}
	return acc
}

func cat2(a, b []byte) []byte {
	buf := make([]byte, 0, len(a)+len(b))
	buf = append(buf, a...)
	return append(buf, b...)
}
