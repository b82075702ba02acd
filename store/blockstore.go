package store

import (
	"fmt"

	"github.com/mezonai/hashchain/db"
	chainerrors "github.com/mezonai/hashchain/errors"
	"github.com/mezonai/hashchain/logx"
)

// BlockStore is the durable mapping from height to a serialized block.
// Every call reaches the backend; nothing is cached.
type BlockStore interface {
	Put(height uint64, raw []byte) error
	Get(height uint64) ([]byte, error)
	Has(height uint64) (bool, error)
	// Iterate visits stored blocks in ascending height order until fn returns false
	Iterate(fn func(height uint64, raw []byte) bool) error
	// Count scans the whole store and returns the number of blocks
	Count() (int64, error)
	// PutBatch writes all blocks atomically
	PutBatch(blocks map[uint64][]byte) error
	MustClose()
}

// GenericBlockStore is a database-agnostic implementation over IterableProvider.
// It works with any backend the factory can open (LevelDB, bolt, RocksDB, ...).
type GenericBlockStore struct {
	provider db.IterableProvider
	txm      *db.DBTxManager
}

// NewGenericBlockStore creates a new generic block store with the given provider
func NewGenericBlockStore(provider db.IterableProvider) (*GenericBlockStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericBlockStore{
		provider: provider,
		txm:      db.NewDBTxManager(provider),
	}, nil
}

// Put stores raw at height, replacing any existing value
func (s *GenericBlockStore) Put(height uint64, raw []byte) error {
	if err := s.provider.Put(heightToBlockKey(height), raw); err != nil {
		logx.Error("BLOCKSTORE", "Block ", height, " submission failed: ", err)
		return chainerrors.NewStoreWrite(height, err)
	}
	return nil
}

// Get returns the raw block at height
func (s *GenericBlockStore) Get(height uint64) ([]byte, error) {
	value, err := s.provider.Get(heightToBlockKey(height))
	if err != nil {
		logx.Error("BLOCKSTORE", "Failed to get block ", height, ": ", err)
		return nil, chainerrors.NewStoreRead(height, err)
	}
	if value == nil {
		return nil, chainerrors.NewNotFound(height)
	}
	return value, nil
}

// Has checks if a block exists at height
func (s *GenericBlockStore) Has(height uint64) (bool, error) {
	exists, err := s.provider.Has(heightToBlockKey(height))
	if err != nil {
		return false, chainerrors.NewStoreRead(height, err)
	}
	return exists, nil
}

// Iterate walks all block keys in order
func (s *GenericBlockStore) Iterate(fn func(height uint64, raw []byte) bool) error {
	var badKey []byte
	err := s.provider.IteratePrefix([]byte(PrefixBlock), func(key, value []byte) bool {
		height, ok := blockKeyToHeight(key)
		if !ok {
			badKey = key
			return false
		}
		return fn(height, value)
	})
	if err != nil {
		return chainerrors.NewStoreScan(err)
	}
	if badKey != nil {
		return chainerrors.NewStoreScan(fmt.Errorf("malformed block key %x", badKey))
	}
	return nil
}

// Count returns the number of stored blocks
func (s *GenericBlockStore) Count() (int64, error) {
	var n int64
	err := s.Iterate(func(uint64, []byte) bool {
		n++
		return true
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// PutBatch writes blocks in a single provider batch
func (s *GenericBlockStore) PutBatch(blocks map[uint64][]byte) error {
	err := s.txm.WithBatch(func(batch db.DatabaseBatch) error {
		for height, raw := range blocks {
			batch.Put(heightToBlockKey(height), raw)
		}
		return nil
	})
	if err != nil {
		return chainerrors.NewStoreBatch(fmt.Errorf("batch of %d blocks: %w", len(blocks), err))
	}
	return nil
}

// MustClose closes the underlying database provider
func (s *GenericBlockStore) MustClose() {
	if err := s.provider.Close(); err != nil {
		logx.Error("BLOCKSTORE", "Failed to close provider: ", err)
	}
}
