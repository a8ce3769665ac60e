package local

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/redis/go-redis/v9"
)

// Store holds the encoded entries of one cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete reports whether the key was present.
	Delete(ctx context.Context, key string) (bool, error)
	Len(ctx context.Context) (int64, error)
	// Range calls fn for every entry until fn returns false.
	Range(ctx context.Context, fn func(key string, value []byte) bool) error
	Clear(ctx context.Context) error
	Close(ctx context.Context) error
}

// StoreFactory creates the store of a newly created cache.
type StoreFactory func(ctx context.Context, cacheName string) (Store, error)

// BigCacheConfig sizes the in-memory store of each cache. Zero fields keep the defaults.
type BigCacheConfig struct {
	Shards             int
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // 0 means unlimited
}

const eternalLifeWindow = time.Duration(math.MaxInt64)

func defaultBigCacheConfig() BigCacheConfig {
	return BigCacheConfig{
		Shards:             16,
		MaxEntriesInWindow: 1024,
		MaxEntrySize:       256,
	}
}

type bigCacheStore struct {
	c *bigcache.BigCache
}

// BigCacheStores returns a factory of in-memory stores. Entries never expire.
func BigCacheStores(cfg BigCacheConfig) StoreFactory {
	dflt := defaultBigCacheConfig()
	if cfg.Shards <= 0 {
		cfg.Shards = dflt.Shards
	}
	if cfg.MaxEntriesInWindow <= 0 {
		cfg.MaxEntriesInWindow = dflt.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize <= 0 {
		cfg.MaxEntrySize = dflt.MaxEntrySize
	}
	return func(ctx context.Context, _ string) (Store, error) {
		conf := bigcache.DefaultConfig(eternalLifeWindow)
		conf.CleanWindow = 0
		conf.Shards = cfg.Shards
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
		conf.MaxEntrySize = cfg.MaxEntrySize
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
		conf.Verbose = false
		c, err := bigcache.New(ctx, conf)
		if err != nil {
			return nil, err
		}
		return &bigCacheStore{c: c}, nil
	}
}

func (s *bigCacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := s.c.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *bigCacheStore) Set(_ context.Context, key string, value []byte) error {
	return s.c.Set(key, value)
}

func (s *bigCacheStore) Delete(_ context.Context, key string) (bool, error) {
	err := s.c.Delete(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *bigCacheStore) Len(context.Context) (int64, error) {
	return int64(s.c.Len()), nil
}

func (s *bigCacheStore) Range(_ context.Context, fn func(key string, value []byte) bool) error {
	it := s.c.Iterator()
	for it.SetNext() {
		entry, err := it.Value()
		if err != nil {
			return err
		}
		if !fn(entry.Key(), entry.Value()) {
			return nil
		}
	}
	return nil
}

func (s *bigCacheStore) Clear(context.Context) error {
	return s.c.Reset()
}

func (s *bigCacheStore) Close(context.Context) error {
	return s.c.Close()
}

type redisStore struct {
	rdb  redis.UniversalClient
	hash string
}

// RedisStores returns a factory of stores keeping each cache in one redis hash named
// keyPrefix + cache name. The client is owned by the caller.
func RedisStores(client redis.UniversalClient, keyPrefix string) StoreFactory {
	return func(_ context.Context, cacheName string) (Store, error) {
		if client == nil {
			return nil, errors.New("redis store: nil client")
		}
		return &redisStore{rdb: client, hash: keyPrefix + cacheName}, nil
	}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.HGet(ctx, s.hash, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.HSet(ctx, s.hash, key, value).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.HDel(ctx, s.hash, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) Len(ctx context.Context) (int64, error) {
	return s.rdb.HLen(ctx, s.hash).Result()
}

func (s *redisStore) Range(ctx context.Context, fn func(key string, value []byte) bool) error {
	entries, err := s.rdb.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return err
	}
	for k, v := range entries {
		if !fn(k, []byte(v)) {
			return nil
		}
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.hash).Err()
}

func (s *redisStore) Close(context.Context) error {
	return nil
}
