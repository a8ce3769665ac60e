package ignite

import "context"

type cacheOp func(impl IgniteImpl, ctx context.Context, name string) (CacheImpl, error)

// GetCache returns the existing cache with the given name. It fails with CacheDoesNotExists
// when there is no such cache.
func GetCache[K comparable, V any](ctx context.Context, ig Ignite, name string) (Cache[K, V], error) {
	var err IgniteError
	cache := GetCacheWithError[K, V](ctx, ig, name, &err)
	return mustCache(cache, &err)
}

// GetCacheWithError is the non-throwing form of [GetCache]. The outcome is stored into err and
// the returned handle is invalid unless err denotes success.
func GetCacheWithError[K comparable, V any](ctx context.Context, ig Ignite, name string, err *IgniteError) Cache[K, V] {
	return acquireCache[K, V](ctx, ig, name, IgniteImpl.GetCache, err)
}

// GetOrCreateCache returns the cache with the given name, creating it if needed.
func GetOrCreateCache[K comparable, V any](ctx context.Context, ig Ignite, name string) (Cache[K, V], error) {
	var err IgniteError
	cache := GetOrCreateCacheWithError[K, V](ctx, ig, name, &err)
	return mustCache(cache, &err)
}

// GetOrCreateCacheWithError is the non-throwing form of [GetOrCreateCache].
func GetOrCreateCacheWithError[K comparable, V any](ctx context.Context, ig Ignite, name string, err *IgniteError) Cache[K, V] {
	return acquireCache[K, V](ctx, ig, name, IgniteImpl.GetOrCreateCache, err)
}

// CreateCache creates a new cache. It fails with CacheExists when the name is taken.
func CreateCache[K comparable, V any](ctx context.Context, ig Ignite, name string) (Cache[K, V], error) {
	var err IgniteError
	cache := CreateCacheWithError[K, V](ctx, ig, name, &err)
	return mustCache(cache, &err)
}

// CreateCacheWithError is the non-throwing form of [CreateCache].
func CreateCacheWithError[K comparable, V any](ctx context.Context, ig Ignite, name string, err *IgniteError) Cache[K, V] {
	return acquireCache[K, V](ctx, ig, name, IgniteImpl.CreateCache, err)
}

// mustCache turns the outcome of a non-throwing call into the throwing form's result.
func mustCache[K comparable, V any](cache Cache[K, V], err *IgniteError) (Cache[K, V], error) {
	if e := err.Err(); e != nil {
		return Cache[K, V]{}, e
	}
	return cache, nil
}

func acquireCache[K comparable, V any](ctx context.Context, ig Ignite, name string, op cacheOp, err *IgniteError) Cache[K, V] {
	if err == nil {
		err = new(IgniteError)
	}
	err.Reset()
	impl, ok := ig.impl()
	if !ok {
		err.set(invalidInstance())
		return Cache[K, V]{}
	}
	cacheImpl, opErr := op(impl, ctx, name)
	if opErr != nil {
		err.set(FromError(opErr))
		return Cache[K, V]{}
	}
	if cacheImpl == nil {
		err.set(Errorf(Failed, "engine returned no cache for %q", name))
		return Cache[K, V]{}
	}
	owner := ig.ref.Clone()
	if owner == nil {
		err.set(invalidInstance())
		return Cache[K, V]{}
	}
	return Cache[K, V]{impl: cacheImpl, owner: owner}
}
