// Package poolstore persists client-side protocol state: pool snapshots,
// discovered stealth outputs, and scan cursors. Records are wrapped with
// a BLAKE3 checksum so on-disk corruption surfaces as an error instead of
// a silently wrong commitment.
package poolstore

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/zeebo/blake3"
)

// Storage errors.
var (
	ErrNotFound  = errors.New("record not found")
	ErrCorrupted = errors.New("record checksum mismatch")
)

// checksumSize is the length of the BLAKE3 checksum prepended to every
// stored record.
const checksumSize = 8

// Key namespaces.
var (
	keyPrefixPool   = []byte("pool/")
	keyPrefixNote   = []byte("note/")
	keyPrefixCursor = []byte("cursor/")
)

// Store is a badger-backed record store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a store at the given path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger's built-in logging.

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("store at %s is locked by another process: %w", path, err)
		}
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// sealRecord frames a payload as checksum(8) | payload.
func sealRecord(payload []byte) []byte {
	sum := blake3.Sum256(payload)
	out := make([]byte, 0, checksumSize+len(payload))
	out = append(out, sum[:checksumSize]...)
	out = append(out, payload...)
	return out
}

// openRecord verifies and strips the checksum frame.
func openRecord(record []byte) ([]byte, error) {
	if len(record) < checksumSize {
		return nil, fmt.Errorf("%w: record too short", ErrCorrupted)
	}
	payload := record[checksumSize:]
	sum := blake3.Sum256(payload)
	if !bytes.Equal(record[:checksumSize], sum[:checksumSize]) {
		return nil, ErrCorrupted
	}
	return payload, nil
}

// get reads and unseals one record inside a view transaction.
func (s *Store) get(key []byte) ([]byte, error) {
	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		record, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		payload, err = openRecord(record)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store get: %w", err)
	}
	return payload, nil
}

// put seals and writes one record.
func (s *Store) put(key, payload []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, sealRecord(payload))
	})
	if err != nil {
		return fmt.Errorf("store put: %w", err)
	}
	return nil
}

// forEach iterates records under a key prefix, unsealing each payload.
// The callback receives the key with the prefix stripped.
func (s *Store) forEach(prefix []byte, fn func(key, payload []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(record []byte) error {
				payload, err := openRecord(record)
				if err != nil {
					return fmt.Errorf("key %x: %w", key, err)
				}
				return fn(key[len(prefix):], payload)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
