package wallet

import (
	"fmt"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/rpa"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// KeyMaterial is the full set of keys an account needs: the scan key
// (derived from the seed), the spend key (derived from the scan key by
// the fixed public derivation), and the master key for funding/change
// chains. Only the seed needs backing up.
type KeyMaterial struct {
	master  *HDKey
	account uint32

	Scan  *crypto.PrivateKey
	Spend *crypto.PrivateKey
}

// KeyMaterialFromSeed derives an account's keys from a 64-byte seed.
// The scan key lives at m/44'/145'/account'/2/0; spend is derived from
// scan, not from the tree.
func KeyMaterialFromSeed(seed []byte, account uint32) (*KeyMaterial, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}

	scanKey, err := master.DeriveAddress(account, ChangeScan, 0)
	if err != nil {
		return nil, fmt.Errorf("derive scan key: %w", err)
	}
	scan, err := scanKey.Signer()
	if err != nil {
		return nil, fmt.Errorf("scan key: %w", err)
	}
	spend, err := rpa.DeriveSpendPriv(scan)
	if err != nil {
		return nil, fmt.Errorf("derive spend key: %w", err)
	}

	return &KeyMaterial{
		master:  master,
		account: account,
		Scan:    scan,
		Spend:   spend,
	}, nil
}

// FundingKey derives the external-chain key at the given index, used for
// funding, deposit and fee outpoints.
func (km *KeyMaterial) FundingKey(index uint32) (*crypto.PrivateKey, error) {
	key, err := km.master.DeriveAddress(km.account, ChangeExternal, index)
	if err != nil {
		return nil, err
	}
	return key.Signer()
}

// ChangeKey derives the internal-chain key at the given index.
func (km *KeyMaterial) ChangeKey(index uint32) (*crypto.PrivateKey, error) {
	key, err := km.master.DeriveAddress(km.account, ChangeInternal, index)
	if err != nil {
		return nil, err
	}
	return key.Signer()
}

// ScanPub returns the compressed scan public key, the only key a paycode
// publishes.
func (km *KeyMaterial) ScanPub() []byte {
	return km.Scan.PublicKey()
}

// Paycode returns the account's shareable payment code.
func (km *KeyMaterial) Paycode() string {
	return EncodePaycode(km.ScanPub())
}

// PrefixBucket returns the account's default index bucket for discovery
// queries.
func (km *KeyMaterial) PrefixBucket() byte {
	return rpa.DefaultPrefix(km.ScanPub())
}

// Hash160ForKey is a convenience for the P2PKH payment hash of a derived
// key's public key.
func Hash160ForKey(key *crypto.PrivateKey) types.Hash160 {
	return crypto.Hash160(key.PublicKey())
}
