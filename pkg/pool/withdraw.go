package pool

import (
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/tx"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// WithdrawParams describes paying value out of a shard. An external
// fee-paying P2PKH outpoint covers the fee and anchors the note hash;
// the payment itself comes out of the shard.
type WithdrawParams struct {
	// ShardIndex overrides best-fit auto-selection when set.
	ShardIndex *uint32

	Payment uint64
	PayTo   types.Hash160

	Fee        types.Outpoint
	FeePrevout tx.Prevout
	FeeKey     *crypto.PrivateKey

	CovenantKey *crypto.PrivateKey

	ChangeTo  types.Hash160
	FeeRate   uint64
	DustLimit uint64
}

// BuildWithdraw constructs the withdrawal transaction: the shard's
// commitment transitions exactly as in an import, keyed by the external
// fee outpoint's note hash, while the shard's value drops by the payment.
//
// Shard selection is best-fit (the smallest shard covering
// payment + dust) unless an explicit index is given; the builder fails
// when no shard qualifies. Outputs: 0 replacement shard, 1 payment,
// 2 change from the fee outpoint. All three must clear the dust floor,
// checked before signing.
func BuildWithdraw(state *State, p WithdrawParams, auth AuthProvider, templates LockingTemplates) (*State, *Result, error) {
	if err := state.Validate(); err != nil {
		return nil, nil, err
	}
	if p.Payment < p.DustLimit {
		return nil, nil, fmt.Errorf("%w: payment %d < dust %d", ErrBelowDust, p.Payment, p.DustLimit)
	}

	var shard ShardPointer
	if p.ShardIndex != nil {
		var err error
		shard, err = state.Shard(*p.ShardIndex)
		if err != nil {
			return nil, nil, err
		}
		if shard.Value < p.Payment+p.DustLimit {
			return nil, nil, fmt.Errorf("%w: shard %d value %d < payment %d + dust %d",
				ErrNoShardFits, shard.Index, shard.Value, p.Payment, p.DustLimit)
		}
	} else {
		var err error
		shard, err = BestFitShard(state, p.Payment, p.DustLimit)
		if err != nil {
			return nil, nil, err
		}
	}

	tr, err := state.computeTransition(p.Fee, shard)
	if err != nil {
		return nil, nil, err
	}

	extra := tx.CovenantInputExtraBytes(len(state.RedeemScript)) +
		tx.TokenOutputExtraBytes(types.HashSize)
	fee := tx.EstimateTxFee(2, 3, p.FeeRate, extra)

	if p.FeePrevout.Value < fee {
		return nil, nil, fmt.Errorf("%w: fee outpoint %d < fee %d",
			ErrInsufficientFunding, p.FeePrevout.Value, fee)
	}
	change := p.FeePrevout.Value - fee
	if change < p.DustLimit {
		return nil, nil, fmt.Errorf("%w: change %d < dust %d", ErrBelowDust, change, p.DustLimit)
	}
	newValue := shard.Value - p.Payment
	if newValue < p.DustLimit {
		return nil, nil, fmt.Errorf("%w: shard value %d < dust %d", ErrBelowDust, newValue, p.DustLimit)
	}

	transaction := tx.New().
		AddInput(shard.Outpoint).
		AddInput(p.Fee).
		AddTokenOutput(newValue, state.ShardTokenPrefix(tr.StateOut), templates.ShardLock(state.RedeemScript)).
		AddOutput(p.Payment, templates.P2PKH(p.PayTo)).
		AddOutput(change, templates.P2PKH(p.ChangeTo))

	shardPrevout, err := state.shardPrevout(shard, templates)
	if err != nil {
		return nil, nil, err
	}
	if err := auth.AuthorizeCovenantInput(transaction, 0, p.CovenantKey, state.RedeemScript, shardPrevout, tr.UnlockPrefix); err != nil {
		return nil, nil, fmt.Errorf("authorize covenant input: %w", err)
	}
	if err := auth.AuthorizeP2PKHInput(transaction, 1, p.FeeKey, p.FeePrevout); err != nil {
		return nil, nil, fmt.Errorf("authorize fee input: %w", err)
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
			InputValue:    shard.Value + p.FeePrevout.Value,
			OutputValue:   newValue + p.Payment + change,
			Fee:           fee,
		},
		Shards: []ShardPointer{updated},
	}
	return nextState, result, nil
}
