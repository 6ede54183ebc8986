package script

import (
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// P2PKHLockSize is the length of a standard P2PKH locking script.
const P2PKHLockSize = 25

// P2SHLockSize is the length of a standard P2SH locking script.
const P2SHLockSize = 23

// P2PKH builds the standard pay-to-public-key-hash locking script:
//
//	OP_DUP OP_HASH160 <hash160> OP_EQUALVERIFY OP_CHECKSIG
func P2PKH(h types.Hash160) []byte {
	out := make([]byte, 0, P2PKHLockSize)
	out = append(out, OP_DUP, OP_HASH160, types.Hash160Size)
	out = append(out, h[:]...)
	out = append(out, OP_EQUALVERIFY, OP_CHECKSIG)
	return out
}

// P2SH builds the standard pay-to-script-hash locking script:
//
//	OP_HASH160 <hash160> OP_EQUAL
func P2SH(h types.Hash160) []byte {
	out := make([]byte, 0, P2SHLockSize)
	out = append(out, OP_HASH160, types.Hash160Size)
	out = append(out, h[:]...)
	out = append(out, OP_EQUAL)
	return out
}

// P2SHFromRedeemScript builds the P2SH locking script committing to the
// given redeem script.
func P2SHFromRedeemScript(redeemScript []byte) []byte {
	return P2SH(crypto.Hash160(redeemScript))
}

// ExtractP2PKHHash returns the hash160 committed to by a P2PKH locking
// script, or false when the script is not P2PKH-shaped.
func ExtractP2PKHHash(lockingScript []byte) (types.Hash160, bool) {
	if len(lockingScript) != P2PKHLockSize ||
		lockingScript[0] != OP_DUP ||
		lockingScript[1] != OP_HASH160 ||
		lockingScript[2] != types.Hash160Size ||
		lockingScript[23] != OP_EQUALVERIFY ||
		lockingScript[24] != OP_CHECKSIG {
		return types.Hash160{}, false
	}
	var h types.Hash160
	copy(h[:], lockingScript[3:23])
	return h, true
}

// ExtractP2PKHPubKey recovers the compressed 33-byte public key from a
// P2PKH-shaped unlocking script ([signature] [pubkey33]). Returns false
// when the script does not decode to exactly that shape.
func ExtractP2PKHPubKey(unlockingScript []byte) ([]byte, bool) {
	pushes, err := ParsePushes(unlockingScript, true)
	if err != nil || len(pushes) != 2 {
		return nil, false
	}
	pub := pushes[1]
	if len(pub) != 33 || (pub[0] != 0x02 && pub[0] != 0x03) {
		return nil, false
	}
	return pub, true
}
