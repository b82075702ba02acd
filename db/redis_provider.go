package db

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mezonai/hashchain/logx"
	"github.com/redis/go-redis/v9"
)

// humanKeyPrefix marks keys whose last 8 bytes are a big-endian height
const humanKeyPrefix = "blk:"

// RedisProvider implements IterableProvider for Redis
type RedisProvider struct {
	client *redis.Client
	ctx    context.Context
}

// convertKeyToHumanReadable converts binary height keys to "blk:<n>" so they
// stay readable in redis-cli
func convertKeyToHumanReadable(key []byte) string {
	keyStr := string(key)

	if strings.HasPrefix(keyStr, humanKeyPrefix) && len(key) == len(humanKeyPrefix)+8 {
		height := binary.BigEndian.Uint64(key[len(humanKeyPrefix):])
		return fmt.Sprintf("%s%d", humanKeyPrefix, height)
	}

	// For non-block keys or invalid format, return as string
	return keyStr
}

// convertKeyFromHumanReadable reverses convertKeyToHumanReadable
func convertKeyFromHumanReadable(redisKey string) []byte {
	if strings.HasPrefix(redisKey, humanKeyPrefix) {
		if height, err := strconv.ParseUint(redisKey[len(humanKeyPrefix):], 10, 64); err == nil {
			key := make([]byte, len(humanKeyPrefix)+8)
			copy(key, humanKeyPrefix)
			binary.BigEndian.PutUint64(key[len(humanKeyPrefix):], height)
			return key
		}
	}
	return []byte(redisKey)
}

// NewRedisProvider connects to address and selects database
func NewRedisProvider(address string, database int) (IterableProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr: address,
		DB:   database,
	})

	ctx := context.Background()

	// Test connection
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisProvider{
		client: client,
		ctx:    ctx,
	}, nil
}

// Get retrieves a value by key
func (p *RedisProvider) Get(key []byte) ([]byte, error) {
	redisKey := convertKeyToHumanReadable(key)
	value, err := p.client.Get(p.ctx, redisKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Return nil for not found, consistent with interface
		}
		return nil, err
	}
	return value, nil
}

// Put stores a key-value pair
func (p *RedisProvider) Put(key, value []byte) error {
	redisKey := convertKeyToHumanReadable(key)
	logx.Debug("REDIS", "Put key:", redisKey, " value length:", len(value))
	return p.client.Set(p.ctx, redisKey, value, 0).Err()
}

// Delete removes a key-value pair
func (p *RedisProvider) Delete(key []byte) error {
	redisKey := convertKeyToHumanReadable(key)
	return p.client.Del(p.ctx, redisKey).Err()
}

// Has checks if a key exists
func (p *RedisProvider) Has(key []byte) (bool, error) {
	redisKey := convertKeyToHumanReadable(key)
	count, err := p.client.Exists(p.ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Close closes the database connection
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// Batch returns a new batch backed by a MULTI/EXEC pipeline
func (p *RedisProvider) Batch() DatabaseBatch {
	return &RedisBatch{
		client: p.client,
		ctx:    p.ctx,
		pipe:   p.client.TxPipeline(),
	}
}

// IteratePrefix implements IterableProvider for Redis. SCAN returns keys in
// no particular order, so keys are collected and sorted before values are read.
func (p *RedisProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	pattern := convertKeyToHumanReadable(prefix) + "*"

	var keys [][]byte
	var cursor uint64
	for {
		batch, newCursor, err := p.client.Scan(p.ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return err
		}
		for _, k := range batch {
			key := convertKeyFromHumanReadable(k)
			if bytes.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
		cursor = newCursor
		if cursor == 0 {
			break
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i], keys[j]) < 0
	})

	for _, key := range keys {
		val, err := p.client.Get(p.ctx, convertKeyToHumanReadable(key)).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return err
		}
		if !fn(key, val) {
			return nil
		}
	}
	return nil
}

// RedisBatch implements DatabaseBatch for Redis
type RedisBatch struct {
	client *redis.Client
	ctx    context.Context
	pipe   redis.Pipeliner
}

// Put adds a key-value pair to the batch
func (b *RedisBatch) Put(key, value []byte) {
	redisKey := convertKeyToHumanReadable(key)
	b.pipe.Set(b.ctx, redisKey, value, 0)
}

// Delete adds a deletion to the batch
func (b *RedisBatch) Delete(key []byte) {
	redisKey := convertKeyToHumanReadable(key)
	b.pipe.Del(b.ctx, redisKey)
}

// Write commits all operations in the batch
func (b *RedisBatch) Write() error {
	_, err := b.pipe.Exec(b.ctx)
	return err
}

// Reset clears the batch
func (b *RedisBatch) Reset() {
	b.pipe.Discard()
	b.pipe = b.client.TxPipeline()
}

// Close releases batch resources
func (b *RedisBatch) Close() error {
	b.pipe.Discard()
	return nil
}
