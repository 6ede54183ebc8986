package tx

import (
	"errors"
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
)

// ErrKeyMismatch is returned when the signing key's hash160 does not match
// the prevout's locking script. This signals a policy or derivation
// disagreement and is always fatal to the operation.
var ErrKeyMismatch = errors.New("signing key does not match prevout lock")

// SchnorrAuthorizer authorizes transaction inputs with deterministic
// Schnorr signatures. It is a value type with no state, satisfying the
// pool package's AuthProvider collaborator.
type SchnorrAuthorizer struct{}

// AuthorizeP2PKHInput signs input vin against a P2PKH prevout and fills
// in its unlocking script: [signature||hashtype] [pubkey33].
func (SchnorrAuthorizer) AuthorizeP2PKHInput(t *Transaction, vin int, key *crypto.PrivateKey, prevout Prevout) error {
	_, lock, err := script.Split(prevout.Script)
	if err != nil {
		return fmt.Errorf("input %d prevout: %w", vin, err)
	}
	wantHash, ok := script.ExtractP2PKHHash(lock)
	if !ok {
		return fmt.Errorf("input %d: prevout is not P2PKH", vin)
	}
	pub := key.PublicKey()
	if crypto.Hash160(pub) != wantHash {
		return fmt.Errorf("input %d: %w", vin, ErrKeyMismatch)
	}

	digest, err := t.SignatureHash(vin, lock, prevout, SighashAllForkID)
	if err != nil {
		return fmt.Errorf("input %d sighash: %w", vin, err)
	}
	sig, err := key.Sign(digest[:])
	if err != nil {
		return fmt.Errorf("input %d sign: %w", vin, err)
	}

	sigPush := append(sig, SighashAllForkID)
	t.Inputs[vin].UnlockingScript = script.BuildPushes([][]byte{sigPush, pub})
	return nil
}

// AuthorizeCovenantInput signs input vin against a P2SH-wrapped covenant
// prevout. The builder-supplied unlock prefix (the covenant's ABI pushes)
// is prepended to the resulting unlocking script, followed by the
// signature push and the redeem script push.
func (SchnorrAuthorizer) AuthorizeCovenantInput(t *Transaction, vin int, key *crypto.PrivateKey, redeemScript []byte, prevout Prevout, unlockPrefix []byte) error {
	digest, err := t.SignatureHash(vin, redeemScript, prevout, SighashAllForkID)
	if err != nil {
		return fmt.Errorf("input %d sighash: %w", vin, err)
	}
	sig, err := key.Sign(digest[:])
	if err != nil {
		return fmt.Errorf("input %d sign: %w", vin, err)
	}

	unlock := make([]byte, 0, len(unlockPrefix)+len(sig)+len(redeemScript)+8)
	unlock = append(unlock, unlockPrefix...)
	unlock = script.AppendPush(unlock, append(sig, SighashAllForkID))
	unlock = script.AppendPush(unlock, redeemScript)
	t.Inputs[vin].UnlockingScript = unlock
	return nil
}
