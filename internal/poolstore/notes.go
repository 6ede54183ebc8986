package poolstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/rpa"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// Note is a discovered stealth output: the outpoint, its value, the
// derived one-time payment hash, and the derivation context needed to
// re-derive the one-time key at spend time.
type Note struct {
	Outpoint types.Outpoint `json:"outpoint"`
	Value    uint64         `json:"value"`
	Hash160  types.Hash160  `json:"hash160"`
	Context  rpa.Context    `json:"context"`
	FoundAt  time.Time      `json:"found_at"`
	Spent    bool           `json:"spent"`
}

func noteKey(outpoint types.Outpoint) []byte {
	return append(append([]byte{}, keyPrefixNote...), outpoint.Wire()...)
}

// SaveNote records a discovered output. Re-saving the same outpoint
// overwrites, which makes repeated scans of the same range idempotent.
func (s *Store) SaveNote(note *Note) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	return s.put(noteKey(note.Outpoint), payload)
}

// LoadNote reads a discovered output by outpoint.
func (s *Store) LoadNote(outpoint types.Outpoint) (*Note, error) {
	payload, err := s.get(noteKey(outpoint))
	if err != nil {
		return nil, err
	}
	var note Note
	if err := json.Unmarshal(payload, &note); err != nil {
		return nil, fmt.Errorf("parse note %s: %w", outpoint, err)
	}
	return &note, nil
}

// ListNotes returns all discovered outputs, spent and unspent.
func (s *Store) ListNotes() ([]*Note, error) {
	var notes []*Note
	err := s.forEach(keyPrefixNote, func(_, payload []byte) error {
		var note Note
		if err := json.Unmarshal(payload, &note); err != nil {
			return fmt.Errorf("parse note: %w", err)
		}
		notes = append(notes, &note)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// MarkNoteSpent flags a discovered output as consumed.
func (s *Store) MarkNoteSpent(outpoint types.Outpoint) error {
	note, err := s.LoadNote(outpoint)
	if err != nil {
		return err
	}
	note.Spent = true
	return s.SaveNote(note)
}

func cursorKey(bucket byte) []byte {
	return append(append([]byte{}, keyPrefixCursor...), bucket)
}

// ScanCursor returns the last fully scanned height for a prefix bucket,
// or 0 when the bucket has never been scanned.
func (s *Store) ScanCursor(bucket byte) (int64, error) {
	payload, err := s.get(cursorKey(bucket))
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(payload) != 8 {
		return 0, fmt.Errorf("%w: cursor payload %d bytes", ErrCorrupted, len(payload))
	}
	return int64(binary.LittleEndian.Uint64(payload)), nil
}

// SetScanCursor records the last fully scanned height for a bucket.
func (s *Store) SetScanCursor(bucket byte, height int64) error {
	payload := binary.LittleEndian.AppendUint64(nil, uint64(height))
	return s.put(cursorKey(bucket), payload)
}
