// Package types defines core primitive types for the stealth-pool protocol.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash160Size is the length of a RIPEMD160(SHA256) digest in bytes.
const Hash160Size = 20

// PoolIDSize is the length of a pool identifier in bytes.
const PoolIDSize = 20

// Hash represents a 256-bit hash value.
//
// Transaction ids are stored and hashed in wire order. They are never
// byte-reversed by this package; the reversed "display" convention of
// block explorers is not used anywhere in the protocol.
type Hash [HashSize]byte

// Hash160 represents a 160-bit RIPEMD160(SHA256) digest, as used in
// P2PKH and P2SH locking scripts.
type Hash160 [Hash160Size]byte

// Category identifies a CashToken category, derived from the byte-reversed
// txid of the pool's funding outpoint.
type Category Hash

// PoolID identifies a pool instance.
type PoolID [PoolIDSize]byte

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded hash in wire order.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// Reversed returns a byte-reversed copy of the hash.
func (h Hash) Reversed() Hash {
	var r Hash
	for i := 0; i < HashSize; i++ {
		r[i] = h[HashSize-1-i]
	}
	return r
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(decoded) != HashSize {
		return fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// HexToHash converts a hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// String returns the hex-encoded digest.
func (h Hash160) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the digest as a byte slice.
func (h Hash160) Bytes() []byte {
	b := make([]byte, Hash160Size)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes the digest as a hex string.
func (h Hash160) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a digest.
func (h *Hash160) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash160 hex: %w", err)
	}
	if len(decoded) != Hash160Size {
		return fmt.Errorf("hash160 must be %d bytes, got %d", Hash160Size, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// IsZero returns true if the category is all zeros.
func (c Category) IsZero() bool {
	return Hash(c).IsZero()
}

// String returns the hex-encoded category.
func (c Category) String() string {
	return Hash(c).String()
}

// Reversed returns a byte-reversed copy of the category. The v1.1
// hash-fold admits both category orderings; the pool's category mode
// selects which one enters the prehash chain.
func (c Category) Reversed() Category {
	return Category(Hash(c).Reversed())
}

// MarshalJSON encodes the category as a hex string.
func (c Category) MarshalJSON() ([]byte, error) {
	return Hash(c).MarshalJSON()
}

// UnmarshalJSON decodes a hex string into a category.
func (c *Category) UnmarshalJSON(data []byte) error {
	return (*Hash)(c).UnmarshalJSON(data)
}

// String returns the hex-encoded pool id.
func (p PoolID) String() string {
	return hex.EncodeToString(p[:])
}

// MarshalJSON encodes the pool id as a hex string.
func (p PoolID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a hex string into a pool id.
func (p *PoolID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid pool id hex: %w", err)
	}
	if len(decoded) != PoolIDSize {
		return fmt.Errorf("pool id must be %d bytes, got %d", PoolIDSize, len(decoded))
	}
	copy(p[:], decoded)
	return nil
}
