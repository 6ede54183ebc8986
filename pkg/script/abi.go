package script

import (
	"errors"
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// ErrUnlockABI is returned when a covenant unlocking script does not match
// the push layout required by the protocol version.
var ErrUnlockABI = errors.New("covenant unlock ABI violation")

// ValidateCovenantUnlock checks the unlocking-bytecode prefix a covenant
// input must carry, before any signature or redeem-script pushes.
//
// For v1.1 the prefix must decode to exactly two pushes of exactly 32
// bytes each: [noteHash32][proofBlob32], top of stack last. For v0/v1 the
// limb pushes precede the same two trailing 32-byte pushes.
//
// The decoder is strict: any non-push opcode fails the input.
func ValidateCovenantUnlock(version types.ProtocolVersion, unlockPrefix []byte) error {
	pushes, err := ParsePushes(unlockPrefix, true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnlockABI, err)
	}

	switch version {
	case types.VersionV11:
		if len(pushes) != 2 {
			return fmt.Errorf("%w: v1.1 requires exactly 2 pushes, got %d",
				ErrUnlockABI, len(pushes))
		}
	case types.VersionV0, types.VersionV1:
		if len(pushes) < 2 {
			return fmt.Errorf("%w: %s requires at least 2 pushes, got %d",
				ErrUnlockABI, version, len(pushes))
		}
	default:
		return fmt.Errorf("%w: unknown version %s", ErrUnlockABI, version)
	}

	noteHash := pushes[len(pushes)-2]
	proofBlob := pushes[len(pushes)-1]
	if len(noteHash) != types.HashSize {
		return fmt.Errorf("%w: note hash push is %d bytes, want %d",
			ErrUnlockABI, len(noteHash), types.HashSize)
	}
	if len(proofBlob) != types.HashSize {
		return fmt.Errorf("%w: proof blob push is %d bytes, want %d",
			ErrUnlockABI, len(proofBlob), types.HashSize)
	}
	return nil
}
