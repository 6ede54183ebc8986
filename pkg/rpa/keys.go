// Package rpa implements reusable-payment-address stealth derivation: the
// scan/spend key split, one-time key derivation bound to a specific
// prevout, prefix-bucket grinding, and the inverse discovery scan.
package rpa

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
)

// Domain tags for the fixed public derivations. These are protocol
// constants: changing either breaks compatibility with existing outputs.
const (
	spendKeyTag = "rpa/spend/v1"
	prefixTag   = "rpa/prefix/v1"
)

// ErrDegenerateKey is returned when a derivation lands on the zero scalar
// or the point at infinity. Scanning treats this as a skip for the
// affected role index; direct derivation reports it to the caller.
var ErrDegenerateKey = errors.New("degenerate derived key")

// DeriveSpendPriv derives the spend private key from the scan private
// key: spendPriv = scanPriv + SHA256(tag || scanPub33) mod n. A wallet
// therefore needs to back up only the scan secret.
func DeriveSpendPriv(scanPriv *crypto.PrivateKey) (*crypto.PrivateKey, error) {
	scanPub := scanPriv.PublicKey()
	tweak, err := spendTweak(scanPub)
	if err != nil {
		return nil, err
	}

	scanKey := secp256k1.PrivKeyFromBytes(scanPriv.Serialize())
	var spend secp256k1.ModNScalar
	spend.Add2(&scanKey.Key, tweak)
	if spend.IsZero() {
		return nil, ErrDegenerateKey
	}

	b := spend.Bytes()
	return crypto.PrivateKeyFromBytes(b[:])
}

// DeriveSpendPub derives the spend public key from the scan public key
// alone: spendPub = scanPub + SHA256(tag || scanPub33)·G. This is the
// fixed public derivation that lets a paycode publish only the scan key.
func DeriveSpendPub(scanPub33 []byte) ([]byte, error) {
	scanPub, err := secp256k1.ParsePubKey(scanPub33)
	if err != nil {
		return nil, fmt.Errorf("parse scan pubkey: %w", err)
	}
	tweak, err := spendTweak(scanPub33)
	if err != nil {
		return nil, err
	}
	return addTweakPub(scanPub, tweak)
}

// DefaultPrefix returns the receiver's default index bucket: the first
// byte of SHA256(tag || scanPub33). Server-side indexing exposes only a
// short prefix of each output's locking-script hash; senders grind role
// indices into this bucket so the receiver's scan query stays cheap.
// Receivers can always fall back to a brute-force scan.
func DefaultPrefix(scanPub33 []byte) byte {
	h := crypto.TaggedSha256(prefixTag, scanPub33)
	return h[0]
}

func spendTweak(scanPub33 []byte) (*secp256k1.ModNScalar, error) {
	h := crypto.TaggedSha256(spendKeyTag, scanPub33)
	var tweak secp256k1.ModNScalar
	tweak.SetByteSlice(h[:])
	if tweak.IsZero() {
		return nil, ErrDegenerateKey
	}
	return &tweak, nil
}

// addTweakPub computes pub + tweak·G and serializes it compressed.
func addTweakPub(pub *secp256k1.PublicKey, tweak *secp256k1.ModNScalar) ([]byte, error) {
	var p, tg, sum secp256k1.JacobianPoint
	pub.AsJacobian(&p)
	secp256k1.ScalarBaseMultNonConst(tweak, &tg)
	secp256k1.AddNonConst(&p, &tg, &sum)
	if sum.Z.IsZero() {
		return nil, ErrDegenerateKey
	}
	sum.ToAffine()
	return secp256k1.NewPublicKey(&sum.X, &sum.Y).SerializeCompressed(), nil
}
