package ignite

import (
	"context"
	"time"

	"github.com/yanglinqiang/ignite/internal/shared"
)

// Cache is a typed handle to a named cache. K and V are compile-time only: keys and values are
// handed to the engine as is and results are decoded into V by the engine's serializer.
//
// The zero value is invalid. A handle returned by a failed non-throwing factory call is invalid
// too. Every operation on an invalid handle fails with InvalidInstance.
//
// A valid handle owns the engine connection until [Cache.Close] is called.
type Cache[K comparable, V any] struct {
	impl  CacheImpl
	owner *shared.Ref[IgniteImpl]
}

func (c Cache[K, V]) IsValid() bool {
	return c.impl != nil && c.owner.Valid()
}

// Name returns the cache name, "" for an invalid handle.
func (c Cache[K, V]) Name() string {
	if !c.IsValid() {
		return ""
	}
	return c.impl.Name()
}

func (c Cache[K, V]) delegate() (CacheImpl, error) {
	if !c.IsValid() {
		return nil, invalidInstance()
	}
	return c.impl, nil
}

// Get returns the value mapped to key and whether it was present.
func (c Cache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	impl, err := c.delegate()
	if err != nil {
		var zero V
		return zero, false, err
	}
	return typedValue[V](impl.Get(ctx, key))
}

// GetAll returns the present entries for keys.
func (c Cache[K, V]) GetAll(ctx context.Context, keys ...K) (map[K]V, error) {
	impl, err := c.delegate()
	if err != nil {
		return nil, err
	}
	entries, err := impl.GetAll(ctx, toAnySlice(keys))
	if err != nil {
		return nil, toError(err)
	}
	res := make(map[K]V, len(entries))
	for _, entry := range entries {
		k, err := convertTo[K](entry.Key)
		if err != nil {
			return nil, err
		}
		v, err := convertTo[V](entry.Value)
		if err != nil {
			return nil, err
		}
		res[k] = v
	}
	return res, nil
}

func (c Cache[K, V]) ContainsKey(ctx context.Context, key K) (bool, error) {
	impl, err := c.delegate()
	if err != nil {
		return false, err
	}
	return typedBool(impl.ContainsKey(ctx, key))
}

// ContainsKeys reports whether all keys are present.
func (c Cache[K, V]) ContainsKeys(ctx context.Context, keys ...K) (bool, error) {
	impl, err := c.delegate()
	if err != nil {
		return false, err
	}
	return typedBool(impl.ContainsKeys(ctx, toAnySlice(keys)))
}

func (c Cache[K, V]) Put(ctx context.Context, key K, value V) error {
	impl, err := c.delegate()
	if err != nil {
		return err
	}
	return toError(impl.Put(ctx, key, value))
}

func (c Cache[K, V]) PutAll(ctx context.Context, entries map[K]V) error {
	impl, err := c.delegate()
	if err != nil {
		return err
	}
	kvs := make([]KeyValue, 0, len(entries))
	for k, v := range entries {
		kvs = append(kvs, KeyValue{Key: k, Value: v})
	}
	return toError(impl.PutAll(ctx, kvs))
}

// PutIfAbsent stores value only if key is absent and reports whether it did.
func (c Cache[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (bool, error) {
	impl, err := c.delegate()
	if err != nil {
		return false, err
	}
	return typedBool(impl.PutIfAbsent(ctx, key, value))
}

// GetAndPut stores value and returns the previous one.
func (c Cache[K, V]) GetAndPut(ctx context.Context, key K, value V) (V, bool, error) {
	impl, err := c.delegate()
	if err != nil {
		var zero V
		return zero, false, err
	}
	return typedValue[V](impl.GetAndPut(ctx, key, value))
}

// GetAndReplace replaces the value of a present key and returns the previous one.
func (c Cache[K, V]) GetAndReplace(ctx context.Context, key K, value V) (V, bool, error) {
	impl, err := c.delegate()
	if err != nil {
		var zero V
		return zero, false, err
	}
	return typedValue[V](impl.GetAndReplace(ctx, key, value))
}

// GetAndRemove removes key and returns its value.
func (c Cache[K, V]) GetAndRemove(ctx context.Context, key K) (V, bool, error) {
	impl, err := c.delegate()
	if err != nil {
		var zero V
		return zero, false, err
	}
	return typedValue[V](impl.GetAndRemove(ctx, key))
}

// Replace stores value only if key is present and reports whether it did.
func (c Cache[K, V]) Replace(ctx context.Context, key K, value V) (bool, error) {
	impl, err := c.delegate()
	if err != nil {
		return false, err
	}
	return typedBool(impl.Replace(ctx, key, value))
}

// ReplaceIfEquals stores newValue only if key is mapped to oldValue.
func (c Cache[K, V]) ReplaceIfEquals(ctx context.Context, key K, oldValue V, newValue V) (bool, error) {
	impl, err := c.delegate()
	if err != nil {
		return false, err
	}
	return typedBool(impl.ReplaceIfEquals(ctx, key, oldValue, newValue))
}

func (c Cache[K, V]) Remove(ctx context.Context, key K) (bool, error) {
	impl, err := c.delegate()
	if err != nil {
		return false, err
	}
	return typedBool(impl.Remove(ctx, key))
}

// RemoveIfEquals removes key only if it is mapped to oldValue.
func (c Cache[K, V]) RemoveIfEquals(ctx context.Context, key K, oldValue V) (bool, error) {
	impl, err := c.delegate()
	if err != nil {
		return false, err
	}
	return typedBool(impl.RemoveIfEquals(ctx, key, oldValue))
}

func (c Cache[K, V]) RemoveAll(ctx context.Context, keys ...K) error {
	impl, err := c.delegate()
	if err != nil {
		return err
	}
	return toError(impl.RemoveAll(ctx, toAnySlice(keys)))
}

// Clear removes every entry of the cache.
func (c Cache[K, V]) Clear(ctx context.Context) error {
	impl, err := c.delegate()
	if err != nil {
		return err
	}
	return toError(impl.Clear(ctx))
}

func (c Cache[K, V]) Size(ctx context.Context) (int64, error) {
	impl, err := c.delegate()
	if err != nil {
		return 0, err
	}
	size, err := impl.Size(ctx)
	if err != nil {
		return 0, toError(err)
	}
	return size, nil
}

// WithExpiryPolicy returns a new handle to the same cache that applies the expiry policy to
// all its operations. Fails with FunctionalityDisabled if the engine has no expiry support.
// See DurationUnchanged, DurationEternal and DurationZero for special durations.
func (c Cache[K, V]) WithExpiryPolicy(creation, access, update time.Duration) (Cache[K, V], error) {
	impl, err := c.delegate()
	if err != nil {
		return Cache[K, V]{}, err
	}
	expImpl, ok := impl.(ExpiryPolicyCacheImpl)
	if !ok {
		return Cache[K, V]{}, Errorf(FunctionalityDisabled, "cache %q does not support expiry policies", impl.Name())
	}
	owner := c.owner.Clone()
	if owner == nil {
		return Cache[K, V]{}, invalidInstance()
	}
	return Cache[K, V]{impl: expImpl.WithExpiryPolicy(creation, access, update), owner: owner}, nil
}

// Clone returns a new owner handle of the same cache.
func (c Cache[K, V]) Clone() Cache[K, V] {
	owner := c.owner.Clone()
	if owner == nil {
		return Cache[K, V]{}
	}
	return Cache[K, V]{impl: c.impl, owner: owner}
}

// Close releases the handle's ownership of the engine connection.
func (c Cache[K, V]) Close(ctx context.Context) error {
	return toError(c.owner.Release(ctx))
}

func typedValue[V any](v any, err error) (V, bool, error) {
	if err != nil {
		var zero V
		return zero, false, toError(err)
	}
	if v == nil {
		var zero V
		return zero, false, nil
	}
	res, err := convertTo[V](v)
	if err != nil {
		return res, false, err
	}
	return res, true, nil
}

func typedBool(res bool, err error) (bool, error) {
	if err != nil {
		return false, toError(err)
	}
	return res, nil
}

func toAnySlice[T any](vals []T) []any {
	res := make([]any, len(vals))
	for i, v := range vals {
		res[i] = v
	}
	return res
}
