package tx

// Serialized-size constants for fee estimation. Inputs assume Schnorr
// P2PKH spends: outpoint(36) + scriptLen(1) + sig push(66) + pubkey
// push(34) + sequence(4).
const (
	txOverheadBytes  = 4 + 1 + 1 + 4 // version + in count + out count + locktime
	p2pkhInputBytes  = 36 + 1 + 66 + 34 + 4
	p2pkhOutputBytes = 8 + 1 + 25 // value + scriptLen + P2PKH lock
)

// EstimateTxFee returns the fee for a transaction of numInputs P2PKH-sized
// inputs and numOutputs P2PKH-sized outputs at the given rate (satoshis
// per byte). extraBytes accounts for anything beyond that baseline: token
// prefixes, covenant unlock pushes, redeem script pushes.
func EstimateTxFee(numInputs, numOutputs int, feeRate uint64, extraBytes int) uint64 {
	size := txOverheadBytes +
		p2pkhInputBytes*numInputs +
		p2pkhOutputBytes*numOutputs +
		extraBytes
	return uint64(size) * feeRate
}

// CovenantInputExtraBytes returns the size a P2SH covenant input adds on
// top of the P2PKH input baseline: the two 32-byte ABI pushes plus the
// redeem script push, minus the pubkey push a P2PKH input would carry.
func CovenantInputExtraBytes(redeemScriptLen int) int {
	unlockABI := 33 + 33 // two pushes of 32 bytes
	redeemPush := redeemScriptLen + pushOverhead(redeemScriptLen)
	return unlockABI + redeemPush - 34
}

// TokenOutputExtraBytes returns the size a token-bearing output adds on
// top of the P2PKH output baseline for a commitment of the given length.
func TokenOutputExtraBytes(commitmentLen int) int {
	// 0xEF + category(32) + bitfield(1) + commitment length byte + commitment.
	return 1 + 32 + 1 + 1 + commitmentLen
}

func pushOverhead(n int) int {
	switch {
	case n <= 0x4b:
		return 1
	case n <= 0xff:
		return 2
	case n <= 0xffff:
		return 3
	default:
		return 5
	}
}
