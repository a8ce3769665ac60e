package thin

import (
	"encoding/binary"
	"time"

	"github.com/dgraph-io/ristretto"
)

// NearCacheConfig configures the client side read cache. Entries are stored serialized and
// evicted by size or TTL. Writes made through the client invalidate the written keys, writes
// made by other clients become visible once the entry expires.
type NearCacheConfig struct {
	MaxBytes int64         // Total size of cached values.
	TTL      time.Duration // Zero means entries only leave by eviction or invalidation.
}

type nearCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func newNearCache(cfg *NearCacheConfig) (*nearCache, error) {
	if cfg == nil {
		return nil, nil
	}
	counters := cfg.MaxBytes / 64
	if counters < 1000 {
		counters = 1000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: counters,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &nearCache{cache: c, ttl: cfg.TTL}, nil
}

func nearKey(cacheId int32, key []byte) string {
	buf := make([]byte, intBytes+len(key))
	binary.LittleEndian.PutUint32(buf, uint32(cacheId))
	copy(buf[intBytes:], key)
	return string(buf)
}

// get returns the serialized value, the nil near cache never hits.
func (n *nearCache) get(cacheId int32, key []byte) ([]byte, bool) {
	if n == nil {
		return nil, false
	}
	val, ok := n.cache.Get(nearKey(cacheId, key))
	if !ok {
		return nil, false
	}
	data, ok := val.([]byte)
	return data, ok
}

func (n *nearCache) set(cacheId int32, key []byte, value []byte) {
	if n == nil || value == nil {
		return
	}
	n.cache.SetWithTTL(nearKey(cacheId, key), value, int64(len(value)), n.ttl)
}

func (n *nearCache) invalidate(cacheId int32, key []byte) {
	if n == nil {
		return
	}
	n.cache.Del(nearKey(cacheId, key))
}

func (n *nearCache) clear() {
	if n == nil {
		return
	}
	n.cache.Clear()
}

func (n *nearCache) close() {
	if n == nil {
		return
	}
	n.cache.Close()
}
