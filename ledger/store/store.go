// Package store implements the typed key-value facade every vault and grant
// ledger is built on top of: scalar singletons plus namespaced entities,
// persisted through the chain's generic storage.Database backend.
package store

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nhbchain/storage"
)

// ErrNotFound is available to callers that need to distinguish "absent" from
// a decode failure; Store itself never returns it and reports absence as
// (false, nil).
var ErrNotFound = errors.New("store: key not found")

// Store is a thin, typed wrapper over storage.Database. It never constructs a
// Merkle trie or tracks a state root: the engine's host environment is
// assumed to commit or discard the whole batch of writes made during a
// single invocation, so Store only needs to offer atomic-looking reads and
// writes over a flat namespace.
type Store struct {
	db storage.Database
}

// New wraps a storage.Database with the typed singleton/entity facade.
func New(db storage.Database) *Store {
	return &Store{db: db}
}

func singletonKey(name string) []byte {
	return ethcrypto.Keccak256([]byte("singleton:" + name))
}

func entityKey(namespace, key string) []byte {
	return ethcrypto.Keccak256([]byte("entity:" + namespace + ":" + key))
}

// GetSingleton decodes the named singleton into out. It reports false (no
// error) when the singleton has never been set.
func (s *Store) GetSingleton(name string, out interface{}) (bool, error) {
	return s.get(singletonKey(name), out)
}

// SetSingleton encodes and stores value under the given singleton name.
func (s *Store) SetSingleton(name string, value interface{}) error {
	return s.put(singletonKey(name), value)
}

// DeleteSingleton clears a singleton. Because the underlying
// storage.Database has no tombstone concept, deletion is modeled as writing
// an empty value; GetSingleton treats an empty value identically to an
// absent key.
func (s *Store) DeleteSingleton(name string) error {
	return s.db.Put(singletonKey(name), nil)
}

// GetEntity decodes the keyed entity within namespace into out.
func (s *Store) GetEntity(namespace, key string, out interface{}) (bool, error) {
	return s.get(entityKey(namespace, key), out)
}

// SetEntity encodes and stores value under namespace/key.
func (s *Store) SetEntity(namespace, key string, value interface{}) error {
	return s.put(entityKey(namespace, key), value)
}

func (s *Store) get(key []byte, out interface{}) (bool, error) {
	data, err := s.db.Get(key)
	if err != nil {
		// storage.Database reports missing keys as an error rather than a
		// sentinel, so treat any read failure as "not present" here; a
		// corrupt backend would fail again on the next write path.
		return false, nil
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("store: decode: %w", err)
	}
	return true, nil
}

func (s *Store) put(key []byte, value interface{}) error {
	data, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	return s.db.Put(key, data)
}
