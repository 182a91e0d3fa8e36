package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisProvider implements DatabaseProvider for Redis. It is meant for
// deployments where several service replicas share one ledger database.
type RedisProvider struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisProvider creates a new Redis provider
func NewRedisProvider(address string) (DatabaseProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr: address,
	})

	ctx := context.Background()

	// Test connection
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisProvider{
		client: client,
		ctx:    ctx,
	}, nil
}

// Get retrieves a value by key
func (p *RedisProvider) Get(key []byte) ([]byte, error) {
	value, err := p.client.Get(p.ctx, string(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Return nil for not found, consistent with interface
		}
		return nil, err
	}
	return []byte(value), nil
}

// GetBatch retrieves multiple values by keys in a single MGET
func (p *RedisProvider) GetBatch(keys [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	strKeys := make([]string, len(keys))
	for i, key := range keys {
		strKeys[i] = string(key)
	}

	values, err := p.client.MGet(p.ctx, strKeys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		result[strKeys[i]] = []byte(s)
	}

	return result, nil
}

// Put stores a key-value pair
func (p *RedisProvider) Put(key, value []byte) error {
	return p.client.Set(p.ctx, string(key), value, 0).Err()
}

// Delete removes a key-value pair
func (p *RedisProvider) Delete(key []byte) error {
	return p.client.Del(p.ctx, string(key)).Err()
}

// Has checks if a key exists
func (p *RedisProvider) Has(key []byte) (bool, error) {
	n, err := p.client.Exists(p.ctx, string(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the database connection
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

// Batch returns a new batch for atomic operations
func (p *RedisProvider) Batch() DatabaseBatch {
	return &RedisBatch{
		pipe:   p.client.TxPipeline(),
		ctx:    p.ctx,
		client: p.client,
	}
}

// IteratePrefix iterates over all key-value pairs with the given prefix via SCAN
func (p *RedisProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	match := string(prefix) + "*"
	var cursor uint64

	for {
		keys, next, err := p.client.Scan(p.ctx, cursor, match, 100).Result()
		if err != nil {
			return err
		}

		for _, key := range keys {
			value, err := p.client.Get(p.ctx, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue // deleted between SCAN and GET
				}
				return err
			}
			if !callback([]byte(key), []byte(value)) {
				return nil
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// RedisBatch implements DatabaseBatch on a Redis transaction pipeline
type RedisBatch struct {
	pipe   redis.Pipeliner
	ctx    context.Context
	client *redis.Client
}

// Put adds a key-value pair to the batch
func (b *RedisBatch) Put(key, value []byte) {
	b.pipe.Set(b.ctx, string(key), value, 0)
}

// Delete adds a deletion to the batch
func (b *RedisBatch) Delete(key []byte) {
	b.pipe.Del(b.ctx, string(key))
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
func (b *RedisBatch) Close() {
	b.pipe.Discard()
}
