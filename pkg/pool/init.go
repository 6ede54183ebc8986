package pool

import (
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/fold"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/tx"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// InitParams describes a pool initialization: a single P2PKH funding
// outpoint is split into one change output and ShardCount token-bearing
// shard outputs.
type InitParams struct {
	PoolID       types.PoolID
	Version      types.ProtocolVersion
	CategoryMode fold.CategoryMode
	Capability   script.Capability
	RedeemScript []byte
	// P2SH is recorded in the state so later transitions rebuild the
	// same shard lock. It must match the templates the caller passes.
	P2SH bool

	ShardCount uint32
	ShardValue uint64

	Funding        types.Outpoint
	FundingPrevout tx.Prevout
	FundingKey     *crypto.PrivateKey

	ChangeTo  types.Hash160
	FeeRate   uint64
	DustLimit uint64
}

// BuildInit constructs the shard-initialization transaction and the
// pool's first state snapshot.
//
// The token category is the byte-reversed funding txid, and each shard's
// initial commitment is H(H(poolId || category || LE32(i) || LE32(n))).
// Output 0 is the change; outputs 1..n carry the shards. Fails before
// signing if the post-fee change would land below the dust floor.
func BuildInit(p InitParams, auth AuthProvider, templates LockingTemplates) (*State, *Result, error) {
	if p.ShardCount == 0 {
		return nil, nil, fmt.Errorf("shard count is zero")
	}
	if len(p.RedeemScript) == 0 {
		return nil, nil, fmt.Errorf("empty redeem script")
	}
	if p.ShardValue < p.DustLimit {
		return nil, nil, fmt.Errorf("%w: shard value %d < dust %d",
			ErrBelowDust, p.ShardValue, p.DustLimit)
	}

	category := types.Category(p.Funding.TxID.Reversed())

	state := &State{
		PoolID:       p.PoolID,
		Version:      p.Version,
		Category:     category,
		RedeemScript: append([]byte(nil), p.RedeemScript...),
		P2SH:         p.P2SH,
		CategoryMode: p.CategoryMode,
		Capability:   p.Capability,
		ShardCount:   p.ShardCount,
	}

	shardTotal := p.ShardValue * uint64(p.ShardCount)
	extra := int(p.ShardCount) * tx.TokenOutputExtraBytes(types.HashSize)
	fee := tx.EstimateTxFee(1, int(p.ShardCount)+1, p.FeeRate, extra)

	if p.FundingPrevout.Value < shardTotal+fee {
		return nil, nil, fmt.Errorf("%w: funding %d < shards %d + fee %d",
			ErrInsufficientFunding, p.FundingPrevout.Value, shardTotal, fee)
	}
	change := p.FundingPrevout.Value - shardTotal - fee
	if change < p.DustLimit {
		return nil, nil, fmt.Errorf("%w: change %d < dust %d", ErrBelowDust, change, p.DustLimit)
	}

	transaction := tx.New().
		AddInput(p.Funding).
		AddOutput(change, templates.P2PKH(p.ChangeTo))

	shardLock := templates.ShardLock(p.RedeemScript)
	commitments := make([]types.Hash, p.ShardCount)
	for i := uint32(0); i < p.ShardCount; i++ {
		commitment := fold.InitialCommitment(p.PoolID, category, i, p.ShardCount)
		commitments[i] = commitment
		transaction.AddTokenOutput(p.ShardValue, state.ShardTokenPrefix(commitment), shardLock)
		state.Shards = append(state.Shards, ShardPointer{
			Index:      i,
			Outpoint:   types.Outpoint{Index: i + 1}, // txid pending until broadcast
			Value:      p.ShardValue,
			Commitment: commitment,
		})
	}

	if err := auth.AuthorizeP2PKHInput(transaction, 0, p.FundingKey, p.FundingPrevout); err != nil {
		return nil, nil, fmt.Errorf("authorize funding input: %w", err)
	}

	raw, err := transaction.Serialize()
	if err != nil {
		return nil, nil, fmt.Errorf("serialize: %w", err)
	}
	if err := state.Validate(); err != nil {
		return nil, nil, err
	}

	result := &Result{
		Tx:    transaction,
		RawTx: raw,
		Diagnostics: Diagnostics{
			PoolID:             p.PoolID,
			Category:           category,
			InitialCommitments: commitments,
			InputValue:         p.FundingPrevout.Value,
			OutputValue:        shardTotal + change,
			Fee:                fee,
		},
		Shards: append([]ShardPointer(nil), state.Shards...),
	}
	return state, result, nil
}
