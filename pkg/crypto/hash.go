// Package crypto provides the hashing and signing primitives of the
// stealth-pool protocol.
package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// Sha256 computes a single SHA256 hash of the input data.
func Sha256(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// Sha256d computes SHA256(SHA256(data)). This is the covenant's H()
// throughout the hash-fold protocol.
func Sha256d(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// Hash160 computes RIPEMD160(SHA256(data)), the digest used in P2PKH
// and P2SH locking scripts.
func Hash160(data []byte) types.Hash160 {
	first := sha256.Sum256(data)
	r := ripemd160.New()
	r.Write(first[:])
	var out types.Hash160
	copy(out[:], r.Sum(nil))
	return out
}

// TaggedSha256 computes SHA256(tag || data), used for domain-separated
// derivations (prefix buckets, spend-key derivation).
func TaggedSha256(tag string, data []byte) types.Hash {
	h := sha256.New()
	h.Write([]byte(tag))
	h.Write(data)
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
