// Package cache provides a Redis-backed embedding store shared by every
// server instance in a deployment.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleveque/listing-check/internal/model"
)

const scanBatch = 500

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// RedisEmbeddingStore stores vectors under "<namespace>:<model>:<kind>:<hash>"
// using the same little-endian float32 encoding as the SQLite cache.
type RedisEmbeddingStore struct {
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewRedisEmbeddingStore creates a store. If ttl is 0 it defaults to 24 hours.
// If namespace is empty, it uses "embeddings". A nil client makes every
// lookup a miss and every save a no-op.
func NewRedisEmbeddingStore(rdb *redis.Client, ttl time.Duration, namespace string) *RedisEmbeddingStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if namespace == "" {
		namespace = "embeddings"
	}
	return &RedisEmbeddingStore{rdb: rdb, ttl: ttl, namespace: namespace}
}

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *RedisEmbeddingStore) Lookup(ctx context.Context, key model.EmbeddingKey) ([]float32, bool, error) {
	if s.rdb == nil {
		return nil, false, nil
	}

	b, err := s.rdb.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	vec, err := model.DecodeVector(b)
	if err != nil || len(vec) == 0 {
		// Delete corrupted entry
		_ = s.rdb.Del(ctx, s.redisKey(key)).Err()
		return nil, false, nil
	}
	return vec, true, nil
}

func (s *RedisEmbeddingStore) Save(ctx context.Context, key model.EmbeddingKey, vec []float32) error {
	if s.rdb == nil {
		return nil
	}
	if err := s.rdb.Set(ctx, s.redisKey(key), model.EncodeVector(vec), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Count returns the number of vectors in the namespace. SCAN may report a key
// twice while the keyspace is being rehashed, so the number is approximate.
func (s *RedisEmbeddingStore) Count(ctx context.Context) (int64, error) {
	if s.rdb == nil {
		return 0, nil
	}

	var n int64
	iter := s.rdb.Scan(ctx, 0, globEscaper.Replace(s.namespace)+":*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("counting embeddings in %s: %w", s.namespace, err)
	}
	return n, nil
}

// DeleteModel drops every cached vector for a model and returns how many keys were removed.
func (s *RedisEmbeddingStore) DeleteModel(ctx context.Context, modelName string) (int64, error) {
	if s.rdb == nil {
		return 0, nil
	}

	prefix := s.namespace + ":" + modelName + ":"
	var deleted int64
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		deleted += n
		batch = batch[:0]
		return nil
	}

	iter := s.rdb.Scan(ctx, 0, globEscaper.Replace(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		// Remainder is "<kind>:<hash>"; more colons means a longer model name sharing the prefix.
		if strings.Count(strings.TrimPrefix(key, prefix), ":") != 1 {
			continue
		}
		batch = append(batch, key)
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return deleted, fmt.Errorf("deleting embeddings for %s: %w", modelName, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning embeddings for %s: %w", modelName, err)
	}
	if err := flush(); err != nil {
		return deleted, fmt.Errorf("deleting embeddings for %s: %w", modelName, err)
	}
	return deleted, nil
}

func (s *RedisEmbeddingStore) redisKey(key model.EmbeddingKey) string {
	return s.namespace + ":" + key.String()
}
