package store

import (
	"fmt"

	"github.com/mezonai/hashchain/db"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	// LevelDBStoreType uses the LevelDB implementation
	LevelDBStoreType StoreType = "leveldb"

	// BoltStoreType uses a single bbolt file
	BoltStoreType StoreType = "bolt"

	// RocksDBStoreType uses the RocksDB implementation (build tag rocksdb)
	RocksDBStoreType StoreType = "rocksdb"

	// RedisStoreType uses the Redis implementation
	RedisStoreType StoreType = "redis"

	// PostgresStoreType uses a bytea table in Postgres
	PostgresStoreType StoreType = "postgres"

	// MemoryStoreType keeps everything in an in-memory LevelDB
	MemoryStoreType StoreType = "memory"
)

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	// Type specifies which store implementation to use
	Type StoreType `json:"type" yaml:"type" ini:"type"`

	// Directory is the database directory path (for file-based databases)
	Directory string `json:"directory" yaml:"directory" ini:"directory"`

	// Address is host:port for redis, or a DSN for postgres
	Address string `json:"address" yaml:"address" ini:"address"`

	// RedisDB selects the redis logical database
	RedisDB int `json:"redis_db" yaml:"redis_db" ini:"redis_db"`
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	if sc.Type == "" {
		return fmt.Errorf("store type cannot be empty")
	}

	switch sc.Type {
	case LevelDBStoreType, BoltStoreType, RocksDBStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty for %s store", sc.Type)
		}
	case RedisStoreType, PostgresStoreType:
		if sc.Address == "" {
			return fmt.Errorf("address cannot be empty for %s store", sc.Type)
		}
	case MemoryStoreType:
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
	return nil
}

// StoreFactory take responsibility to create store instances
type StoreFactory struct{}

// NewStoreFactory creates a new store factory
func NewStoreFactory() *StoreFactory {
	return &StoreFactory{}
}

// CreateBlockStore opens the configured backend and wraps it in a block store
func (sf *StoreFactory) CreateBlockStore(config *StoreConfig) (*GenericBlockStore, error) {
	provider, err := sf.CreateProvider(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	bs, err := NewGenericBlockStore(provider)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to create block store: %w", err)
	}
	return bs, nil
}

// CreateProvider creates a database provider based on the configuration
func (sf *StoreFactory) CreateProvider(config *StoreConfig) (db.IterableProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch config.Type {
	case LevelDBStoreType:
		return db.NewLevelDBProvider(config.Directory)

	case BoltStoreType:
		return db.NewBoltProvider(config.Directory)

	case RocksDBStoreType:
		return db.NewRocksDBProvider(config.Directory)

	case RedisStoreType:
		return db.NewRedisProvider(config.Address, config.RedisDB)

	case PostgresStoreType:
		return db.NewPostgresProvider(config.Address)

	case MemoryStoreType:
		return db.NewMemLevelDBProvider()

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

var globalFactory = NewStoreFactory()

// CreateBlockStore opens a block store using the global factory
func CreateBlockStore(config *StoreConfig) (*GenericBlockStore, error) {
	return globalFactory.CreateBlockStore(config)
}
