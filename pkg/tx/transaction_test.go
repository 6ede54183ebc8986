package tx

import (
	"bytes"
	"testing"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

func fillHash(b byte) types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func testHash160(b byte) types.Hash160 {
	var h types.Hash160
	for i := range h {
		h[i] = b
	}
	return h
}

func sampleTransaction() *Transaction {
	prefix := &script.TokenPrefix{
		Category:   types.Category(fillHash(0x11)),
		HasNFT:     true,
		Capability: script.CapabilityMutable,
		Commitment: bytes.Repeat([]byte{0x42}, 32),
	}
	return New().
		AddInput(types.Outpoint{TxID: fillHash(0xaa), Index: 0}).
		AddInput(types.Outpoint{TxID: fillHash(0xbb), Index: 3}).
		AddTokenOutput(5000, prefix, script.P2SH(testHash160(0x01))).
		AddOutput(1200, script.P2PKH(testHash160(0x02)))
}

func TestSerializeDeserializeRoundtrip(t *testing.T) {
	original := sampleTransaction()
	original.Inputs[0].UnlockingScript = []byte{0x01, 0x51}

	raw, err := original.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}

	parsed, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}

	if parsed.Version != original.Version {
		t.Errorf("version = %d, want %d", parsed.Version, original.Version)
	}
	if len(parsed.Inputs) != 2 || len(parsed.Outputs) != 2 {
		t.Fatalf("got %d inputs, %d outputs", len(parsed.Inputs), len(parsed.Outputs))
	}
	if parsed.Inputs[0].PrevOut != original.Inputs[0].PrevOut {
		t.Error("input 0 outpoint differs")
	}
	if !bytes.Equal(parsed.Inputs[0].UnlockingScript, original.Inputs[0].UnlockingScript) {
		t.Error("input 0 unlocking script differs")
	}
	if parsed.Inputs[1].Sequence != DefaultSequence {
		t.Errorf("sequence = %x, want %x", parsed.Inputs[1].Sequence, uint32(DefaultSequence))
	}

	if parsed.Outputs[0].TokenPrefix == nil ||
		!parsed.Outputs[0].TokenPrefix.Equal(original.Outputs[0].TokenPrefix) {
		t.Error("token prefix did not survive the roundtrip")
	}
	if parsed.Outputs[1].TokenPrefix != nil {
		t.Error("plain output should have no token prefix")
	}
	if parsed.Outputs[0].Value != 5000 || parsed.Outputs[1].Value != 1200 {
		t.Error("output values differ")
	}

	// Re-serialization must be byte identical.
	raw2, err := parsed.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, raw2) {
		t.Error("re-serialization should be byte identical")
	}
}

func TestDeserializeRejects(t *testing.T) {
	raw, err := sampleTransaction().Serialize()
	if err != nil {
		t.Fatal(err)
	}

	t.Run("trailing bytes", func(t *testing.T) {
		if _, err := Deserialize(append(raw, 0x00)); err == nil {
			t.Error("trailing bytes should be rejected")
		}
	})

	t.Run("truncated", func(t *testing.T) {
		for _, cut := range []int{1, 4, 10, len(raw) / 2, len(raw) - 1} {
			if _, err := Deserialize(raw[:cut]); err == nil {
				t.Errorf("truncation at %d should be rejected", cut)
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := Deserialize(nil); err == nil {
			t.Error("empty input should be rejected")
		}
	})
}

func TestTxIDStable(t *testing.T) {
	tr := sampleTransaction()
	id1, err := tr.TxID()
	if err != nil {
		t.Fatal(err)
	}
	id2, err := tr.TxID()
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Error("txid should be deterministic")
	}

	// Any mutation moves the txid.
	tr.Outputs[1].Value++
	id3, err := tr.TxID()
	if err != nil {
		t.Fatal(err)
	}
	if id3 == id1 {
		t.Error("txid should change when an output changes")
	}
}
