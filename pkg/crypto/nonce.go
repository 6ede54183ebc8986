package crypto

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// schnorrAdditionalData is the RFC6979 additional data that domain-separates
// Schnorr nonces from ECDSA nonces for the same (key, message) pair.
// Sixteen bytes: "Schnorr+SHA256" followed by two spaces.
var schnorrAdditionalData = []byte("Schnorr+SHA256  ")

// nonceRFC6979 derives a deterministic nonce scalar from a private key and
// a 32-byte message hash using the HMAC-SHA256 construction of RFC6979,
// with the Schnorr additional data mixed into the initial seeding.
//
// The returned scalar is always in [1, n-1].
func nonceRFC6979(privKey, hash []byte, extra []byte) *secp256k1.ModNScalar {
	// Step B/C: V = 0x01 x 32, K = 0x00 x 32.
	v := make([]byte, 32)
	for i := range v {
		v[i] = 0x01
	}
	k := make([]byte, 32)

	// Step D: K = HMAC_K(V || 0x00 || privkey || hash || extra).
	k = hmacSHA256(k, v, []byte{0x00}, privKey, hash, extra)
	// Step E: V = HMAC_K(V).
	v = hmacSHA256(k, v)
	// Step F: K = HMAC_K(V || 0x01 || privkey || hash || extra).
	k = hmacSHA256(k, v, []byte{0x01}, privKey, hash, extra)
	// Step G: V = HMAC_K(V).
	v = hmacSHA256(k, v)

	// Step H: generate candidates until one is a valid scalar.
	for {
		v = hmacSHA256(k, v)

		var candidate secp256k1.ModNScalar
		overflow := candidate.SetByteSlice(v)
		if !overflow && !candidate.IsZero() {
			return &candidate
		}

		k = hmacSHA256(k, v, []byte{0x00})
		v = hmacSHA256(k, v)
	}
}

// hmacSHA256 computes HMAC-SHA256(key, data1 || data2 || ...).
func hmacSHA256(key []byte, data ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	for _, d := range data {
		mac.Write(d)
	}
	return mac.Sum(nil)
}
