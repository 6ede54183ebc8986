package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// keystoreFile is the on-disk JSON format for an encrypted wallet.
type keystoreFile struct {
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	EncryptedSeed []byte    `json:"encrypted_seed"`
	Account       uint32    `json:"account"`

	// NextFundingIndex is the next unused external-chain index.
	NextFundingIndex uint32 `json:"next_funding_index"`
	// NextChangeIndex is the next unused internal-chain index.
	NextChangeIndex uint32 `json:"next_change_index"`
}

// Keystore manages encrypted key storage on disk.
type Keystore struct {
	path string
}

// NewKeystore creates a keystore that reads/writes to the given directory.
// The directory is created if it doesn't exist.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

// walletPath returns the file path for a wallet by name.
func (ks *Keystore) walletPath(name string) string {
	return filepath.Join(ks.path, name+".wallet")
}

// Create creates a new encrypted wallet file from a seed.
func (ks *Keystore) Create(name string, seed, password []byte, account uint32, params EncryptionParams) error {
	path := ks.walletPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("wallet %q already exists", name)
	}

	encrypted, err := Encrypt(seed, password, params)
	if err != nil {
		return fmt.Errorf("encrypt seed: %w", err)
	}

	kf := keystoreFile{
		Version:       1,
		CreatedAt:     time.Now().UTC(),
		EncryptedSeed: encrypted,
		Account:       account,
	}

	return ks.writeFile(path, &kf)
}

// Open decrypts a wallet and derives its key material.
func (ks *Keystore) Open(name string, password []byte) (*KeyMaterial, error) {
	kf, err := ks.readFile(ks.walletPath(name))
	if err != nil {
		return nil, err
	}

	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet: %w", err)
	}
	defer func() {
		for i := range seed {
			seed[i] = 0
		}
	}()

	return KeyMaterialFromSeed(seed, kf.Account)
}

// NextFundingIndex returns the next unused external-chain index and
// advances the stored counter.
func (ks *Keystore) NextFundingIndex(name string) (uint32, error) {
	path := ks.walletPath(name)
	kf, err := ks.readFile(path)
	if err != nil {
		return 0, err
	}
	index := kf.NextFundingIndex
	kf.NextFundingIndex++
	if err := ks.writeFile(path, kf); err != nil {
		return 0, err
	}
	return index, nil
}

// Exists reports whether a wallet with the given name is stored.
func (ks *Keystore) Exists(name string) bool {
	_, err := os.Stat(ks.walletPath(name))
	return err == nil
}

// List returns the names of all stored wallets.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".wallet") {
			names = append(names, strings.TrimSuffix(name, ".wallet"))
		}
	}
	return names, nil
}

func (ks *Keystore) writeFile(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(path string) (*keystoreFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("wallet not found: %s", filepath.Base(path))
		}
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != 1 {
		return nil, fmt.Errorf("unsupported wallet version %d", kf.Version)
	}
	return &kf, nil
}
