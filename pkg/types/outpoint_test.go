package types

import (
	"bytes"
	"testing"
)

func TestOutpointWire(t *testing.T) {
	var txid Hash
	for i := range txid {
		txid[i] = 0xaa
	}
	op := Outpoint{TxID: txid, Index: 5}

	wire := op.Wire()
	if len(wire) != HashSize+4 {
		t.Fatalf("Wire() length = %d, want %d", len(wire), HashSize+4)
	}
	if !bytes.Equal(wire[:HashSize], txid[:]) {
		t.Error("Wire() should start with the raw txid, unreversed")
	}
	// Index is little-endian.
	if !bytes.Equal(wire[HashSize:], []byte{5, 0, 0, 0}) {
		t.Errorf("Wire() index bytes = %x, want 05000000", wire[HashSize:])
	}
}

func TestOutpointString(t *testing.T) {
	op := Outpoint{Index: 3}
	want := op.TxID.String() + ":3"
	if op.String() != want {
		t.Errorf("String() = %q, want %q", op.String(), want)
	}
}
