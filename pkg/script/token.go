package script

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// Capability is the NFT capability code carried in a token prefix bitfield.
type Capability byte

// NFT capability codes.
const (
	CapabilityNone    Capability = 0x00
	CapabilityMutable Capability = 0x01
	CapabilityMinting Capability = 0x02
)

// Token prefix bitfield flags. The low nibble holds the capability code.
const (
	flagHasCommitment = 0x40
	flagHasNFT        = 0x20
	flagHasAmount     = 0x10
)

// Commitment length bounds for NFT commitments carried in a token prefix.
const (
	MinCommitmentLen = 1
	MaxCommitmentLen = 40
)

// Token prefix codec errors.
var (
	ErrNotTokenPrefix    = errors.New("script does not start with a token prefix")
	ErrInvalidCapability = errors.New("invalid token capability")
	ErrInvalidCommitment = errors.New("invalid token commitment")
	ErrInvalidAmount     = errors.New("invalid token amount")
)

// TokenPrefix is the decoded CashToken prefix carried on a token-bearing
// output, preceding its locking script inside the script encapsulation.
//
// Wire layout:
//
//	0xEF | category(32) | bitfield(1) | [compact(len) | commitment]? | [compact(amount)]?
type TokenPrefix struct {
	Category   types.Category
	HasNFT     bool
	Capability Capability
	Commitment []byte // nil when the prefix carries no commitment
	Amount     uint64 // 0 when the prefix carries no fungible amount
}

// Validate checks the structural invariants of the prefix.
func (p *TokenPrefix) Validate() error {
	if p.Capability > CapabilityMinting {
		return fmt.Errorf("%w: code %d", ErrInvalidCapability, p.Capability)
	}
	if !p.HasNFT {
		if p.Capability != CapabilityNone {
			return fmt.Errorf("%w: capability without NFT", ErrInvalidCapability)
		}
		if p.Commitment != nil {
			return fmt.Errorf("%w: commitment without NFT", ErrInvalidCommitment)
		}
		if p.Amount == 0 {
			return fmt.Errorf("%w: prefix carries neither NFT nor amount", ErrInvalidAmount)
		}
	}
	if p.Commitment != nil &&
		(len(p.Commitment) < MinCommitmentLen || len(p.Commitment) > MaxCommitmentLen) {
		return fmt.Errorf("%w: length %d not in [%d,%d]",
			ErrInvalidCommitment, len(p.Commitment), MinCommitmentLen, MaxCommitmentLen)
	}
	return nil
}

// Encode serializes the prefix to its wire form.
func (p *TokenPrefix) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+types.HashSize+1+1+len(p.Commitment)+9)
	out = append(out, TokenPrefixByte)
	out = append(out, p.Category[:]...)

	var bitfield byte
	if p.HasNFT {
		bitfield |= flagHasNFT
		bitfield |= byte(p.Capability)
	}
	if p.Commitment != nil {
		bitfield |= flagHasCommitment
	}
	if p.Amount > 0 {
		bitfield |= flagHasAmount
	}
	out = append(out, bitfield)

	if p.Commitment != nil {
		out = AppendCompactSize(out, uint64(len(p.Commitment)))
		out = append(out, p.Commitment...)
	}
	if p.Amount > 0 {
		out = AppendCompactSize(out, p.Amount)
	}
	return out, nil
}

// DecodeTokenPrefix decodes a token prefix from the start of scriptBytes.
// It returns the prefix and the number of bytes consumed.
func DecodeTokenPrefix(scriptBytes []byte) (*TokenPrefix, int, error) {
	if len(scriptBytes) == 0 || scriptBytes[0] != TokenPrefixByte {
		return nil, 0, ErrNotTokenPrefix
	}
	if len(scriptBytes) < 1+types.HashSize+1 {
		return nil, 0, fmt.Errorf("token prefix truncated: %d bytes", len(scriptBytes))
	}

	p := &TokenPrefix{}
	copy(p.Category[:], scriptBytes[1:1+types.HashSize])
	bitfield := scriptBytes[1+types.HashSize]
	i := 1 + types.HashSize + 1

	if bitfield&0x0f != 0 && bitfield&flagHasNFT == 0 {
		return nil, 0, fmt.Errorf("%w: capability without NFT", ErrInvalidCapability)
	}
	if bitfield&0x80 != 0 {
		return nil, 0, fmt.Errorf("invalid token bitfield 0x%02x: reserved bit set", bitfield)
	}
	p.HasNFT = bitfield&flagHasNFT != 0
	p.Capability = Capability(bitfield & 0x0f)
	if p.Capability > CapabilityMinting {
		return nil, 0, fmt.Errorf("%w: code %d", ErrInvalidCapability, p.Capability)
	}

	if bitfield&flagHasCommitment != 0 {
		length, n, err := ReadCompactSize(scriptBytes[i:])
		if err != nil {
			return nil, 0, fmt.Errorf("commitment length: %w", err)
		}
		i += n
		if length < MinCommitmentLen || length > MaxCommitmentLen {
			return nil, 0, fmt.Errorf("%w: length %d not in [%d,%d]",
				ErrInvalidCommitment, length, MinCommitmentLen, MaxCommitmentLen)
		}
		if i+int(length) > len(scriptBytes) {
			return nil, 0, fmt.Errorf("%w: truncated", ErrInvalidCommitment)
		}
		p.Commitment = make([]byte, length)
		copy(p.Commitment, scriptBytes[i:i+int(length)])
		i += int(length)
	}

	if bitfield&flagHasAmount != 0 {
		amount, n, err := ReadCompactSize(scriptBytes[i:])
		if err != nil {
			return nil, 0, fmt.Errorf("token amount: %w", err)
		}
		if amount < 1 {
			return nil, 0, fmt.Errorf("%w: amount %d", ErrInvalidAmount, amount)
		}
		p.Amount = amount
		i += n
	}

	if err := p.Validate(); err != nil {
		return nil, 0, err
	}
	return p, i, nil
}

// Split separates a full output script encapsulation into its optional
// token prefix and the locking script proper. Scripts that do not begin
// with the token prefix byte are returned unchanged with a nil prefix.
func Split(scriptBytes []byte) (*TokenPrefix, []byte, error) {
	if len(scriptBytes) == 0 || scriptBytes[0] != TokenPrefixByte {
		return nil, scriptBytes, nil
	}
	prefix, n, err := DecodeTokenPrefix(scriptBytes)
	if err != nil {
		return nil, nil, err
	}
	return prefix, scriptBytes[n:], nil
}

// Join prepends an optional token prefix to a locking script, producing
// the output's script encapsulation. It is the inverse of Split.
func Join(prefix *TokenPrefix, lockingScript []byte) ([]byte, error) {
	if prefix == nil {
		return lockingScript, nil
	}
	encoded, err := prefix.Encode()
	if err != nil {
		return nil, err
	}
	return append(encoded, lockingScript...), nil
}

// Equal reports whether two prefixes are identical field for field.
func (p *TokenPrefix) Equal(other *TokenPrefix) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Category == other.Category &&
		p.HasNFT == other.HasNFT &&
		p.Capability == other.Capability &&
		bytes.Equal(p.Commitment, other.Commitment) &&
		p.Amount == other.Amount
}

// AppendCompactSize appends the Bitcoin variable-length integer encoding
// of v to buf.
func AppendCompactSize(buf []byte, v uint64) []byte {
	switch {
	case v < 0xfd:
		return append(buf, byte(v))
	case v <= 0xffff:
		buf = append(buf, 0xfd)
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case v <= 0xffffffff:
		buf = append(buf, 0xfe)
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	default:
		buf = append(buf, 0xff)
		return binary.LittleEndian.AppendUint64(buf, v)
	}
}

// ReadCompactSize decodes a Bitcoin variable-length integer from the start
// of buf, returning the value and the number of bytes consumed.
func ReadCompactSize(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("empty compact size")
	}
	switch buf[0] {
	case 0xfd:
		if len(buf) < 3 {
			return 0, 0, fmt.Errorf("truncated compact size")
		}
		return uint64(binary.LittleEndian.Uint16(buf[1:3])), 3, nil
	case 0xfe:
		if len(buf) < 5 {
			return 0, 0, fmt.Errorf("truncated compact size")
		}
		return uint64(binary.LittleEndian.Uint32(buf[1:5])), 5, nil
	case 0xff:
		if len(buf) < 9 {
			return 0, 0, fmt.Errorf("truncated compact size")
		}
		return binary.LittleEndian.Uint64(buf[1:9]), 9, nil
	default:
		return uint64(buf[0]), 1, nil
	}
}
