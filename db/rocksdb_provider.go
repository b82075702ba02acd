//go:build rocksdb
// +build rocksdb

package db

import (
	"fmt"
	"sync"

	"github.com/linxGnu/grocksdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// RocksDBProvider keeps the chain in a RocksDB directory. Writes are synced
// so an acknowledged append survives a crash.
type RocksDBProvider struct {
	once sync.Once
	db   *grocksdb.DB
	ro   *grocksdb.ReadOptions
	wo   *grocksdb.WriteOptions
}

// NewRocksDBProvider opens (or creates) a RocksDB database in directory
func NewRocksDBProvider(directory string) (IterableProvider, error) {
	opts := grocksdb.NewDefaultOptions()
	defer opts.Destroy()
	opts.SetCreateIfMissing(true)

	rdb, err := grocksdb.OpenDb(opts, directory)
	if err != nil {
		return nil, fmt.Errorf("failed to open RocksDB at %s: %w", directory, err)
	}

	wo := grocksdb.NewDefaultWriteOptions()
	wo.SetSync(true)
	return &RocksDBProvider{
		db: rdb,
		ro: grocksdb.NewDefaultReadOptions(),
		wo: wo,
	}, nil
}

// takeSlice copies s into Go memory and frees it. A missing value yields nil.
func takeSlice(s *grocksdb.Slice) []byte {
	defer s.Free()
	if !s.Exists() {
		return nil
	}
	return append([]byte(nil), s.Data()...)
}

func (p *RocksDBProvider) Get(key []byte) ([]byte, error) {
	s, err := p.db.Get(p.ro, key)
	if err != nil {
		return nil, err
	}
	return takeSlice(s), nil
}

func (p *RocksDBProvider) Put(key, value []byte) error {
	return p.db.Put(p.wo, key, value)
}

func (p *RocksDBProvider) Delete(key []byte) error {
	return p.db.Delete(p.wo, key)
}

func (p *RocksDBProvider) Has(key []byte) (bool, error) {
	s, err := p.db.Get(p.ro, key)
	if err != nil {
		return false, err
	}
	return takeSlice(s) != nil, nil
}

// Close releases options and the database; later calls are no-ops
func (p *RocksDBProvider) Close() error {
	p.once.Do(func() {
		p.db.Close()
		p.ro.Destroy()
		p.wo.Destroy()
	})
	return nil
}

// Batch collects writes into one WriteBatch applied with synced options
func (p *RocksDBProvider) Batch() DatabaseBatch {
	return &RocksDBBatch{wb: grocksdb.NewWriteBatch(), p: p}
}

// IteratePrefix bounds the scan to the prefix range with an upper bound, so
// the iterator stops on its own instead of comparing every key.
func (p *RocksDBProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	rng := util.BytesPrefix(prefix)

	ro := grocksdb.NewDefaultReadOptions()
	defer ro.Destroy()
	ro.SetFillCache(false)
	if rng.Limit != nil {
		ro.SetIterateUpperBound(rng.Limit)
	}

	it := p.db.NewIterator(ro)
	defer it.Close()

	for it.Seek(rng.Start); it.Valid(); it.Next() {
		if !callback(takeSlice(it.Key()), takeSlice(it.Value())) {
			break
		}
	}
	return it.Err()
}

// RocksDBBatch implements DatabaseBatch for RocksDB
type RocksDBBatch struct {
	wb *grocksdb.WriteBatch
	p  *RocksDBProvider
}

func (b *RocksDBBatch) Put(key, value []byte) {
	b.wb.Put(key, value)
}

func (b *RocksDBBatch) Delete(key []byte) {
	b.wb.Delete(key)
}

func (b *RocksDBBatch) Write() error {
	if b.wb.Count() == 0 {
		return nil
	}
	return b.p.db.Write(b.p.wo, b.wb)
}

func (b *RocksDBBatch) Reset() {
	b.wb.Clear()
}

func (b *RocksDBBatch) Close() error {
	b.wb.Destroy()
	return nil
}
