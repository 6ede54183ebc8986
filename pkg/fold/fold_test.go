package fold

import (
	"bytes"
	"testing"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
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

func testOutpoint() types.Outpoint {
	return types.Outpoint{TxID: fillHash(0xaa), Index: 5}
}

func TestNoteHash(t *testing.T) {
	op := testOutpoint()

	// The note preimage is the 36-byte wire outpoint, txid unreversed.
	want := crypto.Sha256(op.Wire())
	if NoteHash(op) != want {
		t.Error("NoteHash should be SHA256 of the wire outpoint")
	}

	// Distinct vouts on the same txid yield distinct notes.
	other := op
	other.Index = 6
	if NoteHash(op) == NoteHash(other) {
		t.Error("note hashes should differ per vout")
	}
}

func TestProofBlob(t *testing.T) {
	note := NoteHash(testOutpoint())

	want := crypto.Sha256(append([]byte{ProofTag}, note[:]...))
	if ProofBlob(note) != want {
		t.Error("ProofBlob should be SHA256(tag || noteHash)")
	}
	if ProofBlob(note) == note {
		t.Error("proof blob should not equal the note hash")
	}
}

func TestInitialCommitment(t *testing.T) {
	var poolID types.PoolID
	for i := range poolID {
		poolID[i] = byte(i)
	}
	category := types.Category(fillHash(0x11))

	c0 := InitialCommitment(poolID, category, 0, 8)
	c1 := InitialCommitment(poolID, category, 1, 8)
	if c0 == c1 {
		t.Error("commitments should differ per shard index")
	}

	// Shard count is part of the preimage.
	if c0 == InitialCommitment(poolID, category, 0, 16) {
		t.Error("commitments should differ per shard count")
	}

	// Deterministic.
	if c0 != InitialCommitment(poolID, category, 0, 8) {
		t.Error("commitment should be deterministic")
	}
}

func TestComputeStateOutDeterministic(t *testing.T) {
	stateIn := fillHash(0x01)
	category := types.Category(fillHash(0x11))
	note := NoteHash(testOutpoint())

	for _, version := range []types.ProtocolVersion{types.VersionV0, types.VersionV1, types.VersionV11} {
		t.Run(version.String(), func(t *testing.T) {
			a, err := ComputeStateOut(version, stateIn, category, note, []Limb{BytesLimb(note[:])}, CategoryDirect, script.CapabilityMutable)
			if err != nil {
				t.Fatalf("ComputeStateOut() error: %v", err)
			}
			b, err := ComputeStateOut(version, stateIn, category, note, []Limb{BytesLimb(note[:])}, CategoryDirect, script.CapabilityMutable)
			if err != nil {
				t.Fatal(err)
			}
			if a != b {
				t.Error("identical inputs should produce identical output")
			}
			if a == stateIn {
				t.Error("state must advance")
			}
		})
	}
}

func TestComputeStateOutV0MatchesManualFold(t *testing.T) {
	// v0/v1 is a bare fold: acc = H(stateIn || limb), last limb first.
	stateIn := fillHash(0x02)
	limbA := BytesLimb([]byte{0x0a})
	limbB := BytesLimb([]byte{0x0b})

	got, err := ComputeStateOut(types.VersionV0, stateIn, types.Category{}, types.Hash{},
		[]Limb{limbA, limbB}, CategoryDirect, script.CapabilityNone)
	if err != nil {
		t.Fatal(err)
	}

	acc := crypto.Sha256d(append(stateIn.Bytes(), 0x0b))
	acc = crypto.Sha256d(append(acc.Bytes(), 0x0a))
	if got != acc {
		t.Errorf("fold = %s, want %s", got, acc)
	}
}

func TestComputeStateOutV11PrehashChain(t *testing.T) {
	stateIn := fillHash(0x01)
	category := types.Category(fillHash(0x11))
	note := NoteHash(testOutpoint())

	got, err := ComputeStateOut(types.VersionV11, stateIn, category, note, nil, CategoryDirect, script.CapabilityMutable)
	if err != nil {
		t.Fatal(err)
	}

	// Recompute the four-step chain by hand.
	inCatCap := append(category[:], byte(script.CapabilityMutable))
	h0 := crypto.Sha256d(append(stateIn.Bytes(), stateIn[:]...))
	h1 := crypto.Sha256d(append(h0.Bytes(), stateIn[:]...))
	h2 := crypto.Sha256d(append(h1.Bytes(), inCatCap...))
	want := crypto.Sha256d(append(h2.Bytes(), note[:]...))

	if got != want {
		t.Errorf("v1.1 chain = %s, want %s", got, want)
	}
}

func TestComputeStateOutVersionsDiverge(t *testing.T) {
	stateIn := fillHash(0x01)
	category := types.Category(fillHash(0x11))
	note := NoteHash(testOutpoint())
	limbs := []Limb{BytesLimb(note[:])}

	v0, err := ComputeStateOut(types.VersionV0, stateIn, category, note, limbs, CategoryDirect, script.CapabilityMutable)
	if err != nil {
		t.Fatal(err)
	}
	v11, err := ComputeStateOut(types.VersionV11, stateIn, category, note, limbs, CategoryDirect, script.CapabilityMutable)
	if err != nil {
		t.Fatal(err)
	}
	if v0 == v11 {
		t.Error("v0 and v1.1 should not agree on the same inputs")
	}
}

func TestComputeStateOutCategoryMode(t *testing.T) {
	stateIn := fillHash(0x01)
	note := NoteHash(testOutpoint())

	// An asymmetric category so reversal changes the bytes.
	var category types.Category
	category[0] = 0xde
	category[31] = 0xad

	direct, err := ComputeStateOut(types.VersionV11, stateIn, category, note, nil, CategoryDirect, script.CapabilityMutable)
	if err != nil {
		t.Fatal(err)
	}
	reversed, err := ComputeStateOut(types.VersionV11, stateIn, category, note, nil, CategoryReversed, script.CapabilityMutable)
	if err != nil {
		t.Fatal(err)
	}
	if direct == reversed {
		t.Error("category modes should produce different commitments")
	}

	// Reversed mode on the stored category equals direct mode on the
	// pre-reversed category.
	cross, err := ComputeStateOut(types.VersionV11, stateIn, category.Reversed(), note, nil, CategoryDirect, script.CapabilityMutable)
	if err != nil {
		t.Fatal(err)
	}
	if cross != reversed {
		t.Error("mode reversal should commute with category reversal")
	}

	// A palindromic category makes the modes agree.
	pal := types.Category(fillHash(0x11))
	d2, _ := ComputeStateOut(types.VersionV11, stateIn, pal, note, nil, CategoryDirect, script.CapabilityMutable)
	r2, _ := ComputeStateOut(types.VersionV11, stateIn, pal, note, nil, CategoryReversed, script.CapabilityMutable)
	if d2 != r2 {
		t.Error("modes should agree on a palindromic category")
	}
}

func TestComputeStateOutCapabilityBinds(t *testing.T) {
	stateIn := fillHash(0x01)
	category := types.Category(fillHash(0x11))
	note := NoteHash(testOutpoint())

	mut, err := ComputeStateOut(types.VersionV11, stateIn, category, note, nil, CategoryDirect, script.CapabilityMutable)
	if err != nil {
		t.Fatal(err)
	}
	none, err := ComputeStateOut(types.VersionV11, stateIn, category, note, nil, CategoryDirect, script.CapabilityNone)
	if err != nil {
		t.Fatal(err)
	}
	if mut == none {
		t.Error("capability byte should bind into the commitment")
	}
}

func TestComputeStateOutRejects(t *testing.T) {
	stateIn := fillHash(0x01)

	if _, err := ComputeStateOut(types.VersionV11, stateIn, types.Category{}, types.Hash{}, nil, CategoryMode(9), script.CapabilityNone); err == nil {
		t.Error("invalid category mode should be rejected")
	}
	if _, err := ComputeStateOut(types.VersionV11, stateIn, types.Category{}, types.Hash{}, nil, CategoryDirect, script.Capability(0x07)); err == nil {
		t.Error("invalid capability should be rejected")
	}
	if _, err := ComputeStateOut(types.ProtocolVersion(9), stateIn, types.Category{}, types.Hash{}, nil, CategoryDirect, script.CapabilityNone); err == nil {
		t.Error("unknown version should be rejected")
	}
}

func TestLimbEncode(t *testing.T) {
	if !bytes.Equal(NumLimb(0).Encode(), []byte{}) {
		t.Error("zero numeric limb should encode empty")
	}
	if !bytes.Equal(NumLimb(520).Encode(), script.EncodeNum(520)) {
		t.Error("numeric limb should use minimal script number encoding")
	}
	raw := []byte{0x01, 0x02}
	if !bytes.Equal(BytesLimb(raw).Encode(), raw) {
		t.Error("bytes limb should encode as-is")
	}
}

func TestParseCategoryMode(t *testing.T) {
	for _, s := range []string{"direct", "reversed"} {
		m, err := ParseCategoryMode(s)
		if err != nil {
			t.Fatalf("ParseCategoryMode(%q) error: %v", s, err)
		}
		if m.String() != s {
			t.Errorf("String() = %q, want %q", m.String(), s)
		}
	}
	if _, err := ParseCategoryMode("sideways"); err == nil {
		t.Error("unknown mode should fail")
	}
}
