package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
)

// PaycodePrefix marks the human-readable payment code format. The body is
// hex of scanPub33 || checksum4, where the checksum is the first four
// bytes of SHA256d(scanPub33).
const PaycodePrefix = "paycode:"

const paycodeChecksumSize = 4

// EncodePaycode renders a compressed scan public key as a payment code.
func EncodePaycode(scanPub33 []byte) string {
	check := crypto.Sha256d(scanPub33)
	body := make([]byte, 0, len(scanPub33)+paycodeChecksumSize)
	body = append(body, scanPub33...)
	body = append(body, check[:paycodeChecksumSize]...)
	return PaycodePrefix + hex.EncodeToString(body)
}

// DecodePaycode parses a payment code back to the compressed scan public
// key, verifying the checksum.
func DecodePaycode(code string) ([]byte, error) {
	if !strings.HasPrefix(code, PaycodePrefix) {
		return nil, fmt.Errorf("paycode missing %q prefix", PaycodePrefix)
	}
	body, err := hex.DecodeString(strings.TrimPrefix(code, PaycodePrefix))
	if err != nil {
		return nil, fmt.Errorf("paycode: bad hex: %w", err)
	}
	if len(body) != 33+paycodeChecksumSize {
		return nil, fmt.Errorf("paycode: %d bytes, want %d", len(body), 33+paycodeChecksumSize)
	}
	scanPub := body[:33]
	if scanPub[0] != 0x02 && scanPub[0] != 0x03 {
		return nil, fmt.Errorf("paycode: invalid pubkey prefix 0x%02x", scanPub[0])
	}
	check := crypto.Sha256d(scanPub)
	for i := 0; i < paycodeChecksumSize; i++ {
		if body[33+i] != check[i] {
			return nil, fmt.Errorf("paycode: checksum mismatch")
		}
	}
	out := make([]byte, 33)
	copy(out, scanPub)
	return out, nil
}
