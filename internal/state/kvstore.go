// Package state implements the WorldState, the layered WorldStateCache
// overlay, and the NetworkAccount typed views over staking/epoch data
// (spec §3, §4.2). The persistent trie engine itself is an external
// collaborator (spec §1 Non-goals); this package only requires a KVStore
// and builds account/storage addressing on top of it, the way the teacher's
// internal/state/contract_state.go builds a UTXO/account store on top of
// an in-process map.
package state

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/boltdb/bolt"
)

var ErrKeyNotFound = errors.New("state: key not found")

// KVStore is the byte-level get/put/delete collaborator the runtime
// consumes (spec §1: "The core consumes a KVStore (byte-level get)").
type KVStore interface {
	Get(key []byte) ([]byte, error) // returns ErrKeyNotFound if absent
	Put(key, value []byte) error
	Delete(key []byte) error
}

// boltBucket is the single bucket every key lives under; the runtime's own
// addressing scheme (account trie vs. per-account storage trie) is encoded
// into the key, not into separate buckets, keeping the KVStore contract a
// flat byte-level store as specified.
var boltBucket = []byte("empower1_world_state")

// BoltKVStore is the reference KVStore backend, grounded on the teacher's
// existing (transitive, previously unwired) github.com/boltdb/bolt
// dependency — a natural fit for a single-writer, single-process embedded
// store backing the runtime's trie leaves.
type BoltKVStore struct {
	db     *bolt.DB
	logger *log.Logger
}

// NewBoltKVStore opens (creating if absent) a bolt database at path and
// ensures the world-state bucket exists.
func NewBoltKVStore(path string) (*BoltKVStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("state: failed to open bolt db at %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("state: failed to create world-state bucket: %w", err)
	}
	return &BoltKVStore{
		db:     db,
		logger: log.New(os.Stdout, "KVSTORE: ", log.Ldate|log.Ltime|log.Lshortfile),
	}, nil
}

func (b *BoltKVStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *BoltKVStore) Put(key, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

func (b *BoltKVStore) Delete(key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
}

func (b *BoltKVStore) Close() error {
	return b.db.Close()
}

// MemKVStore is an in-process KVStore used by tests and view calls that
// never touch disk (spec §8 "View safety": a view runs against a borrowed
// world state that is never committed).
type MemKVStore struct {
	data map[string][]byte
}

func NewMemKVStore() *MemKVStore {
	return &MemKVStore{data: make(map[string][]byte)}
}

func (m *MemKVStore) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemKVStore) Put(key, value []byte) error {
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemKVStore) Delete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

// Clone returns a deep copy of the store. No other code in this
// repository calls it; execution.View runs against the caller's
// WorldState and relies on never committing its cache.
func (m *MemKVStore) Clone() *MemKVStore {
	out := NewMemKVStore()
	for k, v := range m.data {
		out.data[k] = append([]byte(nil), v...)
	}
	return out
}
