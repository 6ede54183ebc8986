package script

import (
	"bytes"
	"testing"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

func TestP2PKHExtract(t *testing.T) {
	var h types.Hash160
	for i := range h {
		h[i] = byte(i)
	}

	lock := P2PKH(h)
	if len(lock) != P2PKHLockSize {
		t.Fatalf("P2PKH length = %d, want %d", len(lock), P2PKHLockSize)
	}

	got, ok := ExtractP2PKHHash(lock)
	if !ok {
		t.Fatal("ExtractP2PKHHash should accept a standard P2PKH lock")
	}
	if got != h {
		t.Errorf("extracted hash = %s, want %s", got, h)
	}

	// A P2SH lock is not P2PKH-shaped.
	if _, ok := ExtractP2PKHHash(P2SH(h)); ok {
		t.Error("ExtractP2PKHHash should reject a P2SH lock")
	}
	if _, ok := ExtractP2PKHHash(lock[:10]); ok {
		t.Error("ExtractP2PKHHash should reject a truncated lock")
	}
}

func TestP2SHFromRedeemScript(t *testing.T) {
	redeem := []byte{0x51, 0x52, 0x53}
	lock := P2SHFromRedeemScript(redeem)
	if len(lock) != P2SHLockSize {
		t.Fatalf("P2SH length = %d, want %d", len(lock), P2SHLockSize)
	}
	want := crypto.Hash160(redeem)
	if !bytes.Equal(lock[2:22], want[:]) {
		t.Error("P2SH lock should commit to hash160 of the redeem script")
	}
}

func TestExtractP2PKHPubKey(t *testing.T) {
	pub := make([]byte, 33)
	pub[0] = 0x02
	sig := bytes.Repeat([]byte{0x01}, 65)

	unlock := BuildPushes([][]byte{sig, pub})
	got, ok := ExtractP2PKHPubKey(unlock)
	if !ok {
		t.Fatal("should extract pubkey from sig+pubkey unlock")
	}
	if !bytes.Equal(got, pub) {
		t.Errorf("pubkey = %x, want %x", got, pub)
	}

	tests := []struct {
		name   string
		unlock []byte
	}{
		{name: "one push", unlock: BuildPushes([][]byte{sig})},
		{name: "three pushes", unlock: BuildPushes([][]byte{sig, pub, {0x01}})},
		{name: "bad pubkey prefix", unlock: BuildPushes([][]byte{sig, append([]byte{0x05}, pub[1:]...)})},
		{name: "short pubkey", unlock: BuildPushes([][]byte{sig, pub[:32]})},
		{name: "non-push opcode", unlock: append(BuildPushes([][]byte{sig, pub}), OP_DUP)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := ExtractP2PKHPubKey(tt.unlock); ok {
				t.Error("should reject malformed unlock")
			}
		})
	}
}
