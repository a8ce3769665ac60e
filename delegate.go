package ignite

import (
	"context"
	"time"
)

// IgniteImpl is the engine connection a facade root delegates to. Engine adapters such as
// thin and local implement it. Implementations must be safe for concurrent use.
//
// Cache lookups fail with an *IgniteError carrying CacheDoesNotExists (GetCache) or
// CacheExists (CreateCache). Any other error is reported as Failed.
type IgniteImpl interface {
	Name() string
	GetCache(ctx context.Context, name string) (CacheImpl, error)
	GetOrCreateCache(ctx context.Context, name string) (CacheImpl, error)
	CreateCache(ctx context.Context, name string) (CacheImpl, error)
	CacheNames(ctx context.Context) ([]string, error)
	DestroyCache(ctx context.Context, name string) error
	GetTransactions() TransactionsImpl
	// Close is called once, when the last facade owner is released.
	Close(ctx context.Context) error
}

// KeyValue is an untyped cache entry.
type KeyValue struct {
	Key   any
	Value any
}

// CacheImpl is an untyped cache hosted by an engine. Absent values are reported as nil.
// Values may be returned either as Go values or as a [Payload] that is decoded into the
// caller's type.
type CacheImpl interface {
	Name() string
	Get(ctx context.Context, key any) (any, error)
	GetAll(ctx context.Context, keys []any) ([]KeyValue, error)
	ContainsKey(ctx context.Context, key any) (bool, error)
	ContainsKeys(ctx context.Context, keys []any) (bool, error)
	Put(ctx context.Context, key any, value any) error
	PutAll(ctx context.Context, entries []KeyValue) error
	PutIfAbsent(ctx context.Context, key any, value any) (bool, error)
	GetAndPut(ctx context.Context, key any, value any) (any, error)
	GetAndRemove(ctx context.Context, key any) (any, error)
	GetAndReplace(ctx context.Context, key any, value any) (any, error)
	Replace(ctx context.Context, key any, value any) (bool, error)
	ReplaceIfEquals(ctx context.Context, key any, oldValue any, newValue any) (bool, error)
	Remove(ctx context.Context, key any) (bool, error)
	RemoveIfEquals(ctx context.Context, key any, oldValue any) (bool, error)
	RemoveAll(ctx context.Context, keys []any) error
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int64, error)
}

// Special expiry policy durations.
const (
	DurationUnchanged time.Duration = -2 // Leave the duration of the policy as is.
	DurationEternal   time.Duration = -1 // Never expire.
	DurationZero      time.Duration = 0  // Expire immediately.
)

// ExpiryPolicyCacheImpl is implemented by caches that support per-entry expiration.
type ExpiryPolicyCacheImpl interface {
	CacheImpl
	WithExpiryPolicy(creation, access, update time.Duration) CacheImpl
}

// Payload is a serialized value that has not been decoded yet. DecodeInto stores the value
// into dst, which is a non-nil pointer to the caller's type.
type Payload interface {
	DecodeInto(dst any) error
}

type TransactionsImpl interface {
	TxStart(ctx context.Context, cfg TxConfig) (TransactionImpl, error)
}

// TransactionImpl is an engine transaction. Cache operations join it when their context
// carries it, see [TransactionFromContext].
type TransactionImpl interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Active() bool
}
