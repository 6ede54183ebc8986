package pool

import (
	"context"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/tx"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// PrevoutReader looks up a spent output on the chain. Implementations
// live in the caller; builders never perform I/O themselves.
type PrevoutReader interface {
	GetPrevOutput(ctx context.Context, outpoint types.Outpoint) (tx.Prevout, error)
}

// Broadcaster submits a raw transaction to the network and returns its
// txid in wire order.
type Broadcaster interface {
	BroadcastRawTx(ctx context.Context, raw []byte) (types.Hash, error)
}

// UnspentChecker answers whether an outpoint is currently unspent.
// WaitUnspent is the bounded polling variant for eventual-consistency
// waits against an indexing server.
type UnspentChecker interface {
	IsOutpointUnspent(ctx context.Context, outpoint types.Outpoint, owner types.Hash160) (bool, error)
	WaitUnspent(ctx context.Context, outpoint types.Outpoint, owner types.Hash160, attempts int) (bool, error)
}

// AuthProvider authorizes transaction inputs. The covenant variant must
// prepend the builder-supplied unlocking-bytecode prefix to the resulting
// unlocking script. Collaborator failures surface unchanged; builders
// neither retry nor suppress them.
type AuthProvider interface {
	AuthorizeP2PKHInput(t *tx.Transaction, vin int, key *crypto.PrivateKey, prevout tx.Prevout) error
	AuthorizeCovenantInput(t *tx.Transaction, vin int, key *crypto.PrivateKey, redeemScript []byte, prevout tx.Prevout, unlockPrefix []byte) error
}

// LockingTemplates encapsulates the deployment policy for output locks:
// whether shard outputs are bare-covenant or P2SH-wrapped is a policy
// choice, not a protocol constant.
type LockingTemplates interface {
	P2PKH(h types.Hash160) []byte
	ShardLock(redeemScript []byte) []byte
}

// StandardTemplates implements LockingTemplates with the standard script
// shapes. P2SHWrap selects P2SH-wrapped shard outputs.
type StandardTemplates struct {
	P2SHWrap bool
}

// P2PKH returns the standard pay-to-public-key-hash lock.
func (t StandardTemplates) P2PKH(h types.Hash160) []byte {
	return script.P2PKH(h)
}

// ShardLock returns the shard output's locking script: the redeem script
// itself for bare-covenant deployments, or its P2SH wrapper.
func (t StandardTemplates) ShardLock(redeemScript []byte) []byte {
	if t.P2SHWrap {
		return script.P2SHFromRedeemScript(redeemScript)
	}
	out := make([]byte, len(redeemScript))
	copy(out, redeemScript)
	return out
}
