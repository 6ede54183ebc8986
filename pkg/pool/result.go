package pool

import (
	"errors"
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/fold"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/tx"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// Economic invariant errors. Both are raised before any signing is
// attempted.
var (
	ErrBelowDust           = errors.New("output value below dust floor")
	ErrInsufficientFunding = errors.New("funding does not cover outputs plus fee")
)

// Diagnostics records every hash and value a builder computed, for audit
// logging and golden-vector testing. All hashes marshal as hex.
type Diagnostics struct {
	PoolID             types.PoolID   `json:"pool_id"`
	Category           types.Category `json:"category"`
	ShardIndex         uint32         `json:"shard_index"`
	CommitmentIn       types.Hash     `json:"commitment_in,omitzero"`
	CommitmentOut      types.Hash     `json:"commitment_out,omitzero"`
	InitialCommitments []types.Hash   `json:"initial_commitments,omitempty"`
	NoteHash           types.Hash     `json:"note_hash,omitzero"`
	ProofBlob          types.Hash     `json:"proof_blob,omitzero"`
	InputValue         uint64         `json:"input_value"`
	OutputValue        uint64         `json:"output_value"`
	Fee                uint64         `json:"fee"`
}

// Result is what every builder hands back: the signed transaction, its
// raw bytes, the diagnostics record, and the updated shard pointers with
// pending txid placeholders.
type Result struct {
	Tx          *tx.Transaction
	RawTx       []byte
	Diagnostics Diagnostics
	Shards      []ShardPointer
}

// transition holds the commitment computation shared by import and
// withdraw: both fold the note hash of an external outpoint into the
// shard's commitment and unlock the covenant with the same ABI.
type transition struct {
	NoteHash     types.Hash
	ProofBlob    types.Hash
	StateOut     types.Hash
	UnlockPrefix []byte
}

// computeTransition derives a shard's next commitment from the event
// outpoint. Under v1.1 the note hash enters through the prehash chain
// and the limb list stays empty; under v0/v1 it folds as the single limb.
func (s *State) computeTransition(event types.Outpoint, shard ShardPointer) (transition, error) {
	noteHash := fold.NoteHash(event)

	var limbs []fold.Limb
	if s.Version != types.VersionV11 {
		limbs = []fold.Limb{fold.BytesLimb(noteHash.Bytes())}
	}

	stateOut, err := fold.ComputeStateOut(
		s.Version, shard.Commitment, s.Category, noteHash,
		limbs, s.CategoryMode, s.Capability,
	)
	if err != nil {
		return transition{}, fmt.Errorf("compute state out: %w", err)
	}

	proofBlob := fold.ProofBlob(noteHash)

	pushes := make([][]byte, 0, len(limbs)+2)
	for _, limb := range limbs {
		pushes = append(pushes, limb.Encode())
	}
	pushes = append(pushes, noteHash.Bytes(), proofBlob.Bytes())
	unlockPrefix := script.BuildPushes(pushes)

	if err := script.ValidateCovenantUnlock(s.Version, unlockPrefix); err != nil {
		return transition{}, err
	}

	return transition{
		NoteHash:     noteHash,
		ProofBlob:    proofBlob,
		StateOut:     stateOut,
		UnlockPrefix: unlockPrefix,
	}, nil
}

// shardPrevout reconstructs the spent shard output's prevout from its
// pointer: the token prefix committing to the current commitment,
// followed by the shard lock.
func (s *State) shardPrevout(shard ShardPointer, templates LockingTemplates) (tx.Prevout, error) {
	encap, err := script.Join(
		s.ShardTokenPrefix(shard.Commitment),
		templates.ShardLock(s.RedeemScript),
	)
	if err != nil {
		return tx.Prevout{}, fmt.Errorf("shard %d prevout: %w", shard.Index, err)
	}
	return tx.Prevout{Value: shard.Value, Script: encap}, nil
}
