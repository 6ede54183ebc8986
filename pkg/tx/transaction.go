// Package tx models raw transactions for the stealth-pool protocol:
// wire serialization, the BIP143-style signature hash, and P2PKH and
// covenant input authorization.
package tx

import (
	"encoding/binary"
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// DefaultSequence is the final sequence number used on all inputs.
const DefaultSequence = 0xffffffff

// DefaultVersion is the transaction version emitted by the builders.
const DefaultVersion = 2

// Input spends a previous output.
type Input struct {
	PrevOut         types.Outpoint
	UnlockingScript []byte
	Sequence        uint32
}

// Output creates a new spendable output. TokenPrefix, when non-nil, is
// serialized inside the script encapsulation ahead of the locking script.
type Output struct {
	Value         uint64
	TokenPrefix   *script.TokenPrefix
	LockingScript []byte
}

// Prevout is the subset of a spent output a signer must know: its value
// and its full script encapsulation (token prefix included, if any).
type Prevout struct {
	Value  uint64
	Script []byte
}

// Transaction is a raw transaction.
type Transaction struct {
	Version  uint32
	Inputs   []Input
	Outputs  []Output
	LockTime uint32
}

// New returns an empty transaction at the default version.
func New() *Transaction {
	return &Transaction{Version: DefaultVersion}
}

// AddInput appends an input spending the given outpoint.
func (t *Transaction) AddInput(prevOut types.Outpoint) *Transaction {
	t.Inputs = append(t.Inputs, Input{PrevOut: prevOut, Sequence: DefaultSequence})
	return t
}

// AddOutput appends a plain output.
func (t *Transaction) AddOutput(value uint64, lockingScript []byte) *Transaction {
	t.Outputs = append(t.Outputs, Output{Value: value, LockingScript: lockingScript})
	return t
}

// AddTokenOutput appends a token-bearing output.
func (t *Transaction) AddTokenOutput(value uint64, prefix *script.TokenPrefix, lockingScript []byte) *Transaction {
	t.Outputs = append(t.Outputs, Output{
		Value:         value,
		TokenPrefix:   prefix,
		LockingScript: lockingScript,
	})
	return t
}

// Encapsulation returns the output's serialized script encapsulation:
// the optional token prefix followed by the locking script.
func (o *Output) Encapsulation() ([]byte, error) {
	return script.Join(o.TokenPrefix, o.LockingScript)
}

// Serialize returns the wire encoding of the transaction.
func (t *Transaction) Serialize() ([]byte, error) {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, t.Version)

	buf = script.AppendCompactSize(buf, uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.PrevOut.Wire()...)
		buf = script.AppendCompactSize(buf, uint64(len(in.UnlockingScript)))
		buf = append(buf, in.UnlockingScript...)
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}

	buf = script.AppendCompactSize(buf, uint64(len(t.Outputs)))
	for i := range t.Outputs {
		var err error
		buf, err = appendOutput(buf, &t.Outputs[i])
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
	}

	buf = binary.LittleEndian.AppendUint32(buf, t.LockTime)
	return buf, nil
}

func appendOutput(buf []byte, o *Output) ([]byte, error) {
	encap, err := o.Encapsulation()
	if err != nil {
		return nil, err
	}
	buf = binary.LittleEndian.AppendUint64(buf, o.Value)
	buf = script.AppendCompactSize(buf, uint64(len(encap)))
	return append(buf, encap...), nil
}

// TxID returns sha256d of the serialized transaction, in wire order.
func (t *Transaction) TxID() (types.Hash, error) {
	raw, err := t.Serialize()
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Sha256d(raw), nil
}

// Deserialize parses a raw transaction from its wire encoding. Trailing
// bytes are an error.
func Deserialize(raw []byte) (*Transaction, error) {
	t, n, err := deserialize(raw)
	if err != nil {
		return nil, err
	}
	if n != len(raw) {
		return nil, fmt.Errorf("trailing %d bytes after transaction", len(raw)-n)
	}
	return t, nil
}

func deserialize(raw []byte) (*Transaction, int, error) {
	i := 0
	need := func(n int) error {
		if i+n > len(raw) {
			return fmt.Errorf("truncated transaction at offset %d (need %d bytes)", i, n)
		}
		return nil
	}

	t := &Transaction{}
	if err := need(4); err != nil {
		return nil, 0, err
	}
	t.Version = binary.LittleEndian.Uint32(raw[i:])
	i += 4

	numIn, n, err := script.ReadCompactSize(raw[i:])
	if err != nil {
		return nil, 0, fmt.Errorf("input count: %w", err)
	}
	i += n
	for idx := uint64(0); idx < numIn; idx++ {
		var in Input
		if err := need(types.HashSize + 4); err != nil {
			return nil, 0, err
		}
		copy(in.PrevOut.TxID[:], raw[i:i+types.HashSize])
		i += types.HashSize
		in.PrevOut.Index = binary.LittleEndian.Uint32(raw[i:])
		i += 4

		scriptLen, n, err := script.ReadCompactSize(raw[i:])
		if err != nil {
			return nil, 0, fmt.Errorf("input %d script length: %w", idx, err)
		}
		i += n
		if err := need(int(scriptLen)); err != nil {
			return nil, 0, err
		}
		in.UnlockingScript = make([]byte, scriptLen)
		copy(in.UnlockingScript, raw[i:i+int(scriptLen)])
		i += int(scriptLen)

		if err := need(4); err != nil {
			return nil, 0, err
		}
		in.Sequence = binary.LittleEndian.Uint32(raw[i:])
		i += 4
		t.Inputs = append(t.Inputs, in)
	}

	numOut, n, err := script.ReadCompactSize(raw[i:])
	if err != nil {
		return nil, 0, fmt.Errorf("output count: %w", err)
	}
	i += n
	for idx := uint64(0); idx < numOut; idx++ {
		var out Output
		if err := need(8); err != nil {
			return nil, 0, err
		}
		out.Value = binary.LittleEndian.Uint64(raw[i:])
		i += 8

		encapLen, n, err := script.ReadCompactSize(raw[i:])
		if err != nil {
			return nil, 0, fmt.Errorf("output %d script length: %w", idx, err)
		}
		i += n
		if err := need(int(encapLen)); err != nil {
			return nil, 0, err
		}
		encap := raw[i : i+int(encapLen)]
		i += int(encapLen)

		prefix, lock, err := script.Split(encap)
		if err != nil {
			return nil, 0, fmt.Errorf("output %d token prefix: %w", idx, err)
		}
		out.TokenPrefix = prefix
		out.LockingScript = make([]byte, len(lock))
		copy(out.LockingScript, lock)
		t.Outputs = append(t.Outputs, out)
	}

	if err := need(4); err != nil {
		return nil, 0, err
	}
	t.LockTime = binary.LittleEndian.Uint32(raw[i:])
	i += 4
	return t, i, nil
}
