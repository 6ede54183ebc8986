package crypto

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// SignatureSize is the length of a serialized Schnorr signature: r(32) | s(32).
const SignatureSize = 64

// curveP is the secp256k1 field prime, needed for the Jacobi symbol check.
var curveP = func() *big.Int {
	p, ok := new(big.Int).SetString(
		"fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f", 16)
	if !ok {
		panic("invalid curve prime")
	}
	return p
}()

// ErrInvalidSignature is returned when a signature fails structural checks.
var ErrInvalidSignature = errors.New("invalid schnorr signature")

// Signer signs 32-byte message hashes with a private key.
type Signer interface {
	// Sign produces a 64-byte Schnorr signature over a 32-byte hash.
	Sign(hash []byte) ([]byte, error)
	// PublicKey returns the compressed 33-byte public key.
	PublicKey() []byte
}

// PrivateKey wraps a secp256k1 private key for Schnorr signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	if key.Key.IsZero() {
		return nil, fmt.Errorf("private key is zero mod curve order")
	}
	return &PrivateKey{key: key}, nil
}

// Sign produces a 64-byte Schnorr signature (the 2019 chain variant) over
// a 32-byte hash. Signing is fully deterministic: the nonce comes from
// RFC6979 with Schnorr additional data, so the same (key, hash) pair
// always yields byte-identical output.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}

	privBytes := pk.key.Serialize()
	k := nonceRFC6979(privBytes, hash, schnorrAdditionalData)

	// R = kG.
	var r secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &r)
	r.ToAffine()

	// The chain's convention: R.y must be a quadratic residue. If the
	// Jacobi symbol of R.y is not 1, negate k (which negates R.y) rather
	// than publishing the y-coordinate.
	if jacobiSymbol(&r.Y) != 1 {
		k.Negate()
	}

	rBytes := r.X.Bytes()

	// e = SHA256(Rx || pubkey33 || message) mod n.
	pub := pk.key.PubKey().SerializeCompressed()
	var challenge []byte
	challenge = append(challenge, rBytes[:]...)
	challenge = append(challenge, pub...)
	challenge = append(challenge, hash...)
	eHash := Sha256(challenge)

	var e secp256k1.ModNScalar
	e.SetByteSlice(eHash[:])

	// s = k + e*d mod n.
	var s secp256k1.ModNScalar
	s.Mul2(&e, &pk.key.Key).Add(k)
	if s.IsZero() {
		return nil, fmt.Errorf("degenerate signature (s = 0)")
	}

	sBytes := s.Bytes()
	sig := make([]byte, SignatureSize)
	copy(sig[:32], rBytes[:])
	copy(sig[32:], sBytes[:])

	k.Zero()
	return sig, nil
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// VerifySignature checks a 64-byte Schnorr signature against a 32-byte
// hash and a compressed public key. Returns false on any error.
func VerifySignature(hash, signature, publicKey []byte) bool {
	if len(hash) != 32 || len(signature) != SignatureSize {
		return false
	}
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}

	var r secp256k1.FieldVal
	if overflow := r.SetByteSlice(signature[:32]); overflow {
		return false
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(signature[32:]); overflow {
		return false
	}

	// e = SHA256(Rx || pubkey33 || message) mod n.
	var challenge []byte
	challenge = append(challenge, signature[:32]...)
	challenge = append(challenge, pubKey.SerializeCompressed()...)
	challenge = append(challenge, hash...)
	eHash := Sha256(challenge)

	var e secp256k1.ModNScalar
	e.SetByteSlice(eHash[:])

	// R' = sG - eP.
	var p, sG, eP, rPrime secp256k1.JacobianPoint
	pubKey.AsJacobian(&p)
	secp256k1.ScalarBaseMultNonConst(&s, &sG)
	e.Negate()
	secp256k1.ScalarMultNonConst(&e, &p, &eP)
	secp256k1.AddNonConst(&sG, &eP, &rPrime)

	if (rPrime.X.IsZero() && rPrime.Y.IsZero()) || rPrime.Z.IsZero() {
		return false
	}
	rPrime.ToAffine()

	// Check the Jacobi symbol of R'.y and the x-coordinate.
	if jacobiSymbol(&rPrime.Y) != 1 {
		return false
	}
	return rPrime.X.Equals(&r)
}

// jacobiSymbol computes the Jacobi symbol of a normalized field value
// over the secp256k1 field prime.
func jacobiSymbol(f *secp256k1.FieldVal) int {
	b := f.Bytes()
	return big.Jacobi(new(big.Int).SetBytes(b[:]), curveP)
}

// SchnorrVerifier implements signature verification as a value type, for
// callers that take a verifier collaborator.
type SchnorrVerifier struct{}

// Verify checks a Schnorr signature against a hash and compressed public key.
func (v SchnorrVerifier) Verify(hash, signature, publicKey []byte) bool {
	return VerifySignature(hash, signature, publicKey)
}
