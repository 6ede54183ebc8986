package types

import (
	"encoding/binary"
	"fmt"
)

// Outpoint references a specific output in a transaction.
//
// TxID is kept in wire order. The protocol binds note hashes and stealth
// derivations to the raw txid bytes exactly as they appear on the wire.
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

// IsZero returns true if the outpoint has a zero TxID and zero index.
func (o Outpoint) IsZero() bool {
	return o.TxID.IsZero() && o.Index == 0
}

// Wire returns the 36-byte wire serialization: txid(32) | index(4, LE).
// This is also the preimage layout for note hashes.
func (o Outpoint) Wire() []byte {
	buf := make([]byte, 0, HashSize+4)
	buf = append(buf, o.TxID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, o.Index)
	return buf
}

// String returns "txid:index" in hex.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}
