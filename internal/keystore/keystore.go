// Package keystore persists derived account keypairs, so a funded
// population can be reused by later benchmark runs without re-deriving or
// re-funding it.
package keystore

import (
	"encoding/binary"
	"fmt"

	"github.com/eigerco/spray/internal/keys"
	"github.com/eigerco/spray/pkg/db"
)

const prefixKeypair byte = iota + 1

// Store is a pebble-backed keypair store indexed by derivation position.
type Store struct {
	db.KVStore
}

// New creates a keypair store on top of a KVStore.
func New(kv db.KVStore) *Store {
	return &Store{KVStore: kv}
}

// PutPair stores the keypair at the given derivation index.
func (s *Store) PutPair(index uint64, pair *keys.Pair) error {
	if err := s.Put(makeKey(index), pair.PrivateSeed()); err != nil {
		return fmt.Errorf("put keypair %d: %w", index, err)
	}
	return nil
}

// PutAll stores a full derived sequence atomically, indexed from zero.
func (s *Store) PutAll(pairs []*keys.Pair) error {
	batch := s.NewBatch()
	defer batch.Close()

	for i, pair := range pairs {
		if err := batch.Put(makeKey(uint64(i)), pair.PrivateSeed()); err != nil {
			return fmt.Errorf("batch keypair %d: %w", i, err)
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit keypairs: %w", err)
	}
	return nil
}

// GetPair retrieves the keypair at the given derivation index.
func (s *Store) GetPair(index uint64) (*keys.Pair, error) {
	seed, err := s.Get(makeKey(index))
	if err != nil {
		return nil, fmt.Errorf("get keypair %d: %w", index, err)
	}
	return keys.FromSeed(seed), nil
}

// All returns every stored keypair in derivation order.
func (s *Store) All() ([]*keys.Pair, error) {
	start := makeKey(0)
	end := []byte{prefixKeypair + 1}
	iter, err := s.NewIterator(start, end)
	if err != nil {
		return nil, fmt.Errorf("iterate keypairs: %w", err)
	}
	defer iter.Close()

	var pairs []*keys.Pair
	for iter.Next() {
		seed, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("read keypair: %w", err)
		}
		pairs = append(pairs, keys.FromSeed(seed))
	}
	return pairs, nil
}

// makeKey builds a prefix(1) + index(8, big endian) key, so iteration
// yields keypairs in derivation order.
func makeKey(index uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefixKeypair
	binary.BigEndian.PutUint64(key[1:], index)
	return key
}
