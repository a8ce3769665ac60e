// Package ignite provides a typed client facade over an Apache Ignite engine.
//
// # Introduction
//
// An [Ignite] value is the entry handle. It is obtained from an engine adapter:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
//	defer cancel()
//	ig, err := thin.Connect(ctx, thin.WithAddresses("127.0.0.1:10800", "127.0.0.1:10801"))
//	if err != nil {
//		return err
//	}
//	defer func() {
//		_ = ig.Close(context.Background())
//	}()
//
// Package thin connects to a cluster over the binary thin client protocol, package local runs
// an in-process engine. Any other engine can be plugged in by implementing [IgniteImpl] and
// wrapping it with [New].
//
// # Caches
//
// Caches are obtained with generic functions, each in two forms. The throwing form returns an
// error:
//
//	cache, err := ignite.GetOrCreateCache[string, int64](ctx, ig, "counters")
//	if err != nil {
//		return err
//	}
//	defer cache.Close(ctx)
//
// The non-throwing form stores the outcome into an [IgniteError] supplied by the caller and
// returns a handle that is only valid on success:
//
//	var igniteErr ignite.IgniteError
//	cache := ignite.CreateCacheWithError[string, int64](ctx, ig, "counters", &igniteErr)
//	if !igniteErr.IsSuccess() {
//		if igniteErr.Code == ignite.CacheExists {
//			...
//		}
//	}
//
// [GetCache] fails with CacheDoesNotExists for unknown caches, [CreateCache] fails with
// CacheExists for taken names and [GetOrCreateCache] never fails because of existence.
//
// # Errors
//
// Every failure is an *[IgniteError]. Codes can be checked with [CodeOf] or errors.Is against
// the sentinels:
//
//	if errors.Is(err, ignite.ErrCacheNotFound) {
//		...
//	}
//
// # Transactions
//
//	txs := ig.GetTransactions()
//	defer txs.Close(ctx)
//	tx, err := txs.TxStart(ctx, ignite.WithTimeout(5*time.Second))
//	if err != nil {
//		return err
//	}
//	defer tx.Close(ctx)
//	txCtx := tx.Context(ctx)
//	if err = cache.Put(txCtx, "a", 1); err != nil {
//		return err
//	}
//	return tx.Commit(ctx)
//
// # Ownership
//
// Ignite, Cache and Transactions handles each own the engine connection. [Ignite.Clone] and
// [Cache.Clone] create new owners, Close releases one. The connection is closed when the last
// owner is released.
package ignite
