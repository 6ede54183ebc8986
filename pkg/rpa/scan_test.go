package rpa

import (
	"bytes"
	"context"
	"testing"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/tx"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// buildStealthTx assembles a payment the way a sender would: one P2PKH
// input whose unlock reveals the sender pubkey, stealth outputs at the
// given role indices, and one unrelated change output.
func buildStealthTx(t *testing.T, senderPriv *crypto.PrivateKey, scanPub []byte, prevout types.Outpoint, roleIndices []uint32) []byte {
	t.Helper()

	transaction := tx.New().AddInput(prevout)
	fakeSig := bytes.Repeat([]byte{0x01}, crypto.SignatureSize+1)
	transaction.Inputs[0].UnlockingScript = script.BuildPushes([][]byte{fakeSig, senderPriv.PublicKey()})

	for _, roleIndex := range roleIndices {
		pub, err := SenderDerive(senderPriv, scanPub, prevout, roleIndex)
		if err != nil {
			t.Fatalf("SenderDerive(%d) error: %v", roleIndex, err)
		}
		transaction.AddOutput(10000, script.P2PKH(crypto.Hash160(pub)))
	}
	var change types.Hash160
	change[0] = 0xee
	transaction.AddOutput(5000, script.P2PKH(change))

	raw, err := transaction.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func scanKeys(t *testing.T) (*crypto.PrivateKey, *crypto.PrivateKey) {
	t.Helper()
	scanPriv := testKey(t, 7)
	spendPriv, err := DeriveSpendPriv(scanPriv)
	if err != nil {
		t.Fatal(err)
	}
	return scanPriv, spendPriv
}

func TestScanTransactionFindsStealthOutputs(t *testing.T) {
	senderPriv := testKey(t, 3)
	scanPriv, spendPriv := scanKeys(t)
	prevout := testPrevout(0xaa)

	raw := buildStealthTx(t, senderPriv, scanPriv.PublicKey(), prevout, []uint32{0, 3})

	matches, err := ScanTransaction(context.Background(), raw, scanPriv, spendPriv, ScanOptions{MaxRoleIndex: 8})
	if err != nil {
		t.Fatalf("ScanTransaction() error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}

	// Matches come back ordered by output index: role 0 funds output 0,
	// role 3 funds output 1.
	wantRoles := []uint32{0, 3}
	for i, m := range matches {
		if m.OutputIndex != uint32(i) {
			t.Errorf("match %d output index = %d", i, m.OutputIndex)
		}
		if m.Context.RoleIndex != wantRoles[i] {
			t.Errorf("match %d role index = %d, want %d", i, m.Context.RoleIndex, wantRoles[i])
		}
		if m.Value != 10000 {
			t.Errorf("match %d value = %d, want 10000", i, m.Value)
		}
		if !bytes.Equal(m.Context.SenderPub, senderPriv.PublicKey()) {
			t.Errorf("match %d sender pubkey differs", i)
		}
		if m.Context.Prevout() != prevout {
			t.Errorf("match %d prevout binding differs", i)
		}

		// The recorded context must be enough to re-derive a spendable key.
		secret, err := DeriveSharedSecret(scanPriv, m.Context.SenderPub, m.Context.Prevout())
		if err != nil {
			t.Fatal(err)
		}
		oneTime, err := DeriveOneTimePriv(spendPriv, secret, m.Context.RoleIndex)
		if err != nil {
			t.Fatal(err)
		}
		if crypto.Hash160(oneTime.PublicKey()) != m.Hash160 {
			t.Errorf("match %d context does not re-derive the output key", i)
		}
	}
}

func TestScanTransactionRoleIndexBound(t *testing.T) {
	senderPriv := testKey(t, 3)
	scanPriv, spendPriv := scanKeys(t)
	prevout := testPrevout(0xaa)

	// Output at role 5 with an exclusive bound of 5: out of range.
	raw := buildStealthTx(t, senderPriv, scanPriv.PublicKey(), prevout, []uint32{5})

	matches, err := ScanTransaction(context.Background(), raw, scanPriv, spendPriv, ScanOptions{MaxRoleIndex: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("role 5 should be outside an exclusive bound of 5, got %d matches", len(matches))
	}

	// Raising the bound by one brings it into range.
	matches, err = ScanTransaction(context.Background(), raw, scanPriv, spendPriv, ScanOptions{MaxRoleIndex: 6})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Errorf("got %d matches with bound 6, want 1", len(matches))
	}
}

func TestScanTransactionHints(t *testing.T) {
	senderPriv := testKey(t, 3)
	scanPriv, spendPriv := scanKeys(t)
	prevout := testPrevout(0xaa)

	raw := buildStealthTx(t, senderPriv, scanPriv.PublicKey(), prevout, []uint32{9})

	// The hint alone cannot bypass the bound.
	matches, err := ScanTransaction(context.Background(), raw, scanPriv, spendPriv, ScanOptions{
		MaxRoleIndex: 4,
		Hints:        []uint32{9},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Error("hints beyond the bound should be ignored")
	}

	matches, err = ScanTransaction(context.Background(), raw, scanPriv, spendPriv, ScanOptions{
		MaxRoleIndex: 16,
		Hints:        []uint32{9},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Context.RoleIndex != 9 {
		t.Errorf("hinted scan missed role 9: %+v", matches)
	}
}

func TestScanTransactionMaxMatches(t *testing.T) {
	senderPriv := testKey(t, 3)
	scanPriv, spendPriv := scanKeys(t)
	prevout := testPrevout(0xaa)

	raw := buildStealthTx(t, senderPriv, scanPriv.PublicKey(), prevout, []uint32{0, 1, 2})

	matches, err := ScanTransaction(context.Background(), raw, scanPriv, spendPriv, ScanOptions{
		MaxRoleIndex: 8,
		MaxMatches:   1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Errorf("got %d matches, want capped 1", len(matches))
	}
}

func TestScanTransactionNoCandidates(t *testing.T) {
	scanPriv, spendPriv := scanKeys(t)

	// A transaction with only a P2SH output has nothing to scan.
	var h types.Hash160
	transaction := tx.New().
		AddInput(testPrevout(0xaa)).
		AddOutput(1000, script.P2SH(h))
	raw, err := transaction.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	matches, err := ScanTransaction(context.Background(), raw, scanPriv, spendPriv, ScanOptions{MaxRoleIndex: 8})
	if err != nil {
		t.Fatal(err)
	}
	if matches != nil {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestScanTransactionForeignPayment(t *testing.T) {
	senderPriv := testKey(t, 3)
	scanPriv, spendPriv := scanKeys(t)
	otherScan := testKey(t, 11)
	prevout := testPrevout(0xaa)

	// Payment derived for a different receiver's scan key.
	raw := buildStealthTx(t, senderPriv, otherScan.PublicKey(), prevout, []uint32{0})

	matches, err := ScanTransaction(context.Background(), raw, scanPriv, spendPriv, ScanOptions{MaxRoleIndex: 32})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Error("should not claim another receiver's outputs")
	}
}

func TestScanTransactionBadRawTx(t *testing.T) {
	scanPriv, spendPriv := scanKeys(t)
	if _, err := ScanTransaction(context.Background(), []byte{0x01, 0x02}, scanPriv, spendPriv, ScanOptions{MaxRoleIndex: 1}); err == nil {
		t.Error("malformed raw transaction should be rejected")
	}
}
