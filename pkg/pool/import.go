package pool

import (
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/tx"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// ImportParams describes folding one external P2PKH deposit into a shard.
type ImportParams struct {
	// ShardIndex overrides the deterministic note-hash routing when set.
	ShardIndex *uint32

	Deposit        types.Outpoint
	DepositPrevout tx.Prevout
	DepositKey     *crypto.PrivateKey

	CovenantKey *crypto.PrivateKey

	FeeRate   uint64
	DustLimit uint64
}

// BuildImport constructs the deposit-import transaction: the selected
// shard and the deposit are spent together into a single replacement
// shard output whose commitment folds the deposit's note hash and whose
// value is shardIn + depositIn - fee.
//
// The dust check runs before any signing. Input 0 is the covenant, input
// 1 the deposit; output 0 the replacement shard.
func BuildImport(state *State, p ImportParams, auth AuthProvider, templates LockingTemplates) (*State, *Result, error) {
	if err := state.Validate(); err != nil {
		return nil, nil, err
	}

	shardIndex := uint32(0)
	if p.ShardIndex != nil {
		shardIndex = *p.ShardIndex
	} else {
		var err error
		shardIndex, err = SelectShardIndex(p.Deposit, state.ShardCount)
		if err != nil {
			return nil, nil, err
		}
	}
	shard, err := state.Shard(shardIndex)
	if err != nil {
		return nil, nil, err
	}

	tr, err := state.computeTransition(p.Deposit, shard)
	if err != nil {
		return nil, nil, err
	}

	extra := tx.CovenantInputExtraBytes(len(state.RedeemScript)) +
		tx.TokenOutputExtraBytes(types.HashSize)
	fee := tx.EstimateTxFee(2, 1, p.FeeRate, extra)

	inTotal := shard.Value + p.DepositPrevout.Value
	if inTotal < fee {
		return nil, nil, fmt.Errorf("%w: inputs %d < fee %d", ErrInsufficientFunding, inTotal, fee)
	}
	newValue := inTotal - fee
	if newValue < p.DustLimit {
		return nil, nil, fmt.Errorf("%w: shard value %d < dust %d", ErrBelowDust, newValue, p.DustLimit)
	}

	transaction := tx.New().
		AddInput(shard.Outpoint).
		AddInput(p.Deposit).
		AddTokenOutput(newValue, state.ShardTokenPrefix(tr.StateOut), templates.ShardLock(state.RedeemScript))

	shardPrevout, err := state.shardPrevout(shard, templates)
	if err != nil {
		return nil, nil, err
	}
	if err := auth.AuthorizeCovenantInput(transaction, 0, p.CovenantKey, state.RedeemScript, shardPrevout, tr.UnlockPrefix); err != nil {
		return nil, nil, fmt.Errorf("authorize covenant input: %w", err)
	}
	if err := auth.AuthorizeP2PKHInput(transaction, 1, p.DepositKey, p.DepositPrevout); err != nil {
		return nil, nil, fmt.Errorf("authorize deposit input: %w", err)
	}

	raw, err := transaction.Serialize()
	if err != nil {
		return nil, nil, fmt.Errorf("serialize: %w", err)
	}

	updated := ShardPointer{
		Index:      shard.Index,
		Outpoint:   types.Outpoint{Index: 0}, // txid pending until broadcast
		Value:      newValue,
		Commitment: tr.StateOut,
	}
	nextState := state.WithShard(updated)

	result := &Result{
		Tx:    transaction,
		RawTx: raw,
		Diagnostics: Diagnostics{
			PoolID:        state.PoolID,
			Category:      state.Category,
			ShardIndex:    shard.Index,
			CommitmentIn:  shard.Commitment,
			CommitmentOut: tr.StateOut,
			NoteHash:      tr.NoteHash,
			ProofBlob:     tr.ProofBlob,
			InputValue:    inTotal,
			OutputValue:   newValue,
			Fee:           fee,
		},
		Shards: []ShardPointer{updated},
	}
	return nextState, result, nil
}
