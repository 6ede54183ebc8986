package rpa

import (
	"encoding/binary"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// Context binds a derived one-time key to its origin. It is created at
// derivation time, never mutated, and is everything a receiver needs to
// re-derive the spendable key later.
//
// PrevoutTxID holds the raw wire-order txid; it is never byte-reversed.
type Context struct {
	SenderPub    []byte     `json:"sender_pub"`
	PrevoutTxID  types.Hash `json:"prevout_txid"`
	PrevoutIndex uint32     `json:"prevout_index"`
	RoleIndex    uint32     `json:"role_index"`
}

// Prevout returns the outpoint the derivation is bound to.
func (c *Context) Prevout() types.Outpoint {
	return types.Outpoint{TxID: c.PrevoutTxID, Index: c.PrevoutIndex}
}

// DeriveSharedSecret computes the ECDH-style secret binding a
// (sender, prevout) pair: SHA256(compress(priv·pub) || txid || LE32(vout)).
//
// The computation is symmetric: the receiver calls it with its scan
// private key and the sender's public key; the sender with its private
// key and the receiver's scan public key. The prevout binding ensures a
// secret is never reused across unrelated spends.
//
// This is the expensive step. Callers should compute it once per
// (sender, prevout) pair and reuse it across role-index attempts.
func DeriveSharedSecret(priv *crypto.PrivateKey, counterpartyPub33 []byte, prevout types.Outpoint) (types.Hash, error) {
	pub, err := secp256k1.ParsePubKey(counterpartyPub33)
	if err != nil {
		return types.Hash{}, fmt.Errorf("parse counterparty pubkey: %w", err)
	}

	key := secp256k1.PrivKeyFromBytes(priv.Serialize())
	var p, shared secp256k1.JacobianPoint
	pub.AsJacobian(&p)
	secp256k1.ScalarMultNonConst(&key.Key, &p, &shared)
	if shared.Z.IsZero() {
		return types.Hash{}, ErrDegenerateKey
	}
	shared.ToAffine()
	point33 := secp256k1.NewPublicKey(&shared.X, &shared.Y).SerializeCompressed()

	buf := make([]byte, 0, 33+types.HashSize+4)
	buf = append(buf, point33...)
	buf = append(buf, prevout.Wire()...)
	return crypto.Sha256(buf), nil
}

// DeriveOneTimePriv combines the spend key with a secret-and-index
// dependent scalar tweak: oneTimePriv = spendPriv + tweak(secret, i) mod n.
// Each role index yields a distinct private key.
func DeriveOneTimePriv(spendPriv *crypto.PrivateKey, secret types.Hash, roleIndex uint32) (*crypto.PrivateKey, error) {
	tweak := roleTweak(secret, roleIndex)
	if tweak.IsZero() {
		return nil, ErrDegenerateKey
	}

	spend := secp256k1.PrivKeyFromBytes(spendPriv.Serialize())
	var one secp256k1.ModNScalar
	one.Add2(&spend.Key, tweak)
	if one.IsZero() {
		return nil, ErrDegenerateKey
	}

	b := one.Bytes()
	return crypto.PrivateKeyFromBytes(b[:])
}

// DeriveOneTimePub is the sender-side counterpart:
// oneTimePub = spendPub + tweak(secret, i)·G.
func DeriveOneTimePub(spendPub33 []byte, secret types.Hash, roleIndex uint32) ([]byte, error) {
	spendPub, err := secp256k1.ParsePubKey(spendPub33)
	if err != nil {
		return nil, fmt.Errorf("parse spend pubkey: %w", err)
	}
	tweak := roleTweak(secret, roleIndex)
	if tweak.IsZero() {
		return nil, ErrDegenerateKey
	}
	return addTweakPub(spendPub, tweak)
}

// SenderDerive computes a one-time output key entirely on the sender
// side, from the receiver's published scan key: the spend public key is
// recovered through the fixed public derivation, the shared secret from
// the sender's own private key.
func SenderDerive(senderPriv *crypto.PrivateKey, scanPub33 []byte, prevout types.Outpoint, roleIndex uint32) ([]byte, error) {
	secret, err := DeriveSharedSecret(senderPriv, scanPub33, prevout)
	if err != nil {
		return nil, err
	}
	spendPub, err := DeriveSpendPub(scanPub33)
	if err != nil {
		return nil, err
	}
	return DeriveOneTimePub(spendPub, secret, roleIndex)
}

// GrindRoleIndex searches role indices 0..maxTries-1 for one whose derived
// output hash160 falls in the receiver's prefix bucket. Returns the first
// matching role index and the derived public key. Grinding is a sender
// side optimization only; failure to find a match is not fatal to the
// protocol, so callers may fall back to role index 0.
func GrindRoleIndex(senderPriv *crypto.PrivateKey, scanPub33 []byte, prevout types.Outpoint, bucket byte, maxTries uint32) (uint32, []byte, error) {
	secret, err := DeriveSharedSecret(senderPriv, scanPub33, prevout)
	if err != nil {
		return 0, nil, err
	}
	spendPub, err := DeriveSpendPub(scanPub33)
	if err != nil {
		return 0, nil, err
	}

	for i := uint32(0); i < maxTries; i++ {
		pub, err := DeriveOneTimePub(spendPub, secret, i)
		if err != nil {
			// Degenerate index; skip, same as the discovery scan.
			continue
		}
		h := crypto.Hash160(pub)
		if h[0] == bucket {
			return i, pub, nil
		}
	}
	return 0, nil, fmt.Errorf("no role index in bucket 0x%02x after %d tries", bucket, maxTries)
}

// roleTweak derives the per-role-index scalar:
// SHA256(secret32 || LE32(roleIndex)) mod n.
func roleTweak(secret types.Hash, roleIndex uint32) *secp256k1.ModNScalar {
	buf := make([]byte, 0, types.HashSize+4)
	buf = append(buf, secret[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, roleIndex)
	h := crypto.Sha256(buf)

	var tweak secp256k1.ModNScalar
	tweak.SetByteSlice(h[:])
	return &tweak
}
