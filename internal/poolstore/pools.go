package poolstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/internal/log"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/pool"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// ErrStaleShard is returned when a compare-and-swap save finds the stored
// shard commitment differs from the one the transition was built against.
// Only one transition per shard may be in flight at a time; a stale swap
// means another transition landed first and the caller must rebuild.
var ErrStaleShard = errors.New("shard commitment changed since transition was built")

func poolKey(id types.PoolID) []byte {
	return append(append([]byte{}, keyPrefixPool...), id[:]...)
}

// SavePool writes a pool snapshot unconditionally. Used when recording a
// freshly initialized pool.
func (s *Store) SavePool(state *pool.State) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("save pool: %w", err)
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal pool: %w", err)
	}
	if err := s.put(poolKey(state.PoolID), payload); err != nil {
		return err
	}
	log.Store.Debug().Str("pool_id", state.PoolID.String()).Msg("pool snapshot saved")
	return nil
}

// LoadPool reads a pool snapshot by id.
func (s *Store) LoadPool(id types.PoolID) (*pool.State, error) {
	payload, err := s.get(poolKey(id))
	if err != nil {
		return nil, err
	}
	var state pool.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("parse pool %s: %w", id, err)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("pool %s: %w", id, err)
	}
	return &state, nil
}

// ListPools returns all stored pool snapshots.
func (s *Store) ListPools() ([]*pool.State, error) {
	var states []*pool.State
	err := s.forEach(keyPrefixPool, func(_, payload []byte) error {
		var state pool.State
		if err := json.Unmarshal(payload, &state); err != nil {
			return fmt.Errorf("parse pool: %w", err)
		}
		states = append(states, &state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// DeletePool removes a pool snapshot.
func (s *Store) DeletePool(id types.PoolID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(poolKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete pool %s: %w", id, err)
	}
	return nil
}

// SwapPool atomically replaces a pool snapshot, but only if the stored
// shard still carries the commitment the transition consumed. This is the
// store-side guard for the one-transition-in-flight-per-shard rule: two
// racing builders read the same snapshot, but only the first swap wins.
func (s *Store) SwapPool(next *pool.State, shardIndex uint32, expectCommitment types.Hash) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("swap pool: %w", err)
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal pool: %w", err)
	}

	key := poolKey(next.PoolID)
	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		record, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		stored, err := openRecord(record)
		if err != nil {
			return err
		}
		var current pool.State
		if err := json.Unmarshal(stored, &current); err != nil {
			return fmt.Errorf("parse pool %s: %w", next.PoolID, err)
		}
		shard, err := current.Shard(shardIndex)
		if err != nil {
			return err
		}
		if shard.Commitment != expectCommitment {
			return ErrStaleShard
		}
		return txn.Set(key, sealRecord(payload))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		if errors.Is(err, ErrStaleShard) {
			log.Store.Warn().
				Str("pool_id", next.PoolID.String()).
				Uint32("shard", shardIndex).
				Msg("stale shard commitment, swap rejected")
		}
		return err
	}
	log.Store.Debug().
		Str("pool_id", next.PoolID.String()).
		Uint32("shard", shardIndex).
		Msg("pool snapshot swapped")
	return nil
}
