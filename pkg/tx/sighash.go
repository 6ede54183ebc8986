package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// SighashAllForkID is the only hash type the builders emit:
// SIGHASH_ALL with the replay-protecting fork id bit.
const SighashAllForkID = 0x41

// SignatureHash computes the BIP143-style digest an input's signature
// commits to. scriptCode is the script being satisfied: the locking
// script for P2PKH inputs, the redeem script for P2SH covenant inputs.
//
// When the spent output carries a token prefix, the prefix is serialized
// into the preimage immediately ahead of the scriptCode, binding the
// signature to the token state being consumed.
func (t *Transaction) SignatureHash(vin int, scriptCode []byte, prevout Prevout, hashType uint32) (types.Hash, error) {
	if vin < 0 || vin >= len(t.Inputs) {
		return types.Hash{}, fmt.Errorf("input index %d out of range (%d inputs)", vin, len(t.Inputs))
	}

	var prevouts []byte
	var sequences []byte
	for _, in := range t.Inputs {
		prevouts = append(prevouts, in.PrevOut.Wire()...)
		sequences = binary.LittleEndian.AppendUint32(sequences, in.Sequence)
	}
	hashPrevouts := crypto.Sha256d(prevouts)
	hashSequence := crypto.Sha256d(sequences)

	var outputs []byte
	for i := range t.Outputs {
		var err error
		outputs, err = appendOutput(outputs, &t.Outputs[i])
		if err != nil {
			return types.Hash{}, fmt.Errorf("output %d: %w", i, err)
		}
	}
	hashOutputs := crypto.Sha256d(outputs)

	prefix, _, err := script.Split(prevout.Script)
	if err != nil {
		return types.Hash{}, fmt.Errorf("prevout token prefix: %w", err)
	}

	in := t.Inputs[vin]
	var preimage []byte
	preimage = binary.LittleEndian.AppendUint32(preimage, t.Version)
	preimage = append(preimage, hashPrevouts[:]...)
	preimage = append(preimage, hashSequence[:]...)
	preimage = append(preimage, in.PrevOut.Wire()...)
	if prefix != nil {
		encoded, err := prefix.Encode()
		if err != nil {
			return types.Hash{}, fmt.Errorf("prevout token prefix: %w", err)
		}
		preimage = append(preimage, encoded...)
	}
	preimage = script.AppendCompactSize(preimage, uint64(len(scriptCode)))
	preimage = append(preimage, scriptCode...)
	preimage = binary.LittleEndian.AppendUint64(preimage, prevout.Value)
	preimage = binary.LittleEndian.AppendUint32(preimage, in.Sequence)
	preimage = append(preimage, hashOutputs[:]...)
	preimage = binary.LittleEndian.AppendUint32(preimage, t.LockTime)
	preimage = binary.LittleEndian.AppendUint32(preimage, hashType)

	return crypto.Sha256d(preimage), nil
}
