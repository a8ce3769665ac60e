// Package thin connects the ignite facade to an Apache Ignite cluster over the binary thin
// client protocol.
//
// # Introduction
//
// [Connect] starts a [Client] and returns it wrapped into an [ignite.Ignite] root
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
// It is possible to pass multiple [ClientConfigurationOption] parameters that specify various
// client options. A [Config] read with [LoadEnv], [LoadINI] or [LoadMap] produces the same
// options with [Config.Options].
//
// # Failover
//
// The client keeps one connection. When it breaks, a request is retried on the other
// addresses, at most [WithRetryLimit] times. [WithReconnectBackoff] makes reconnects retry
// with a backoff policy until the request context is done.
//
// # Types
//
// Keys and values may be bool, signed and unsigned integers, floats, string, []byte,
// [uuid.UUID], [time.Time], [Date], [Time] and *[apd.Decimal]. Values read back from the
// cluster keep their Ignite type (for example int is stored as a long and read as int64);
// typed caches of the facade convert them to the requested type.
//
// # TTL (ExpiryPolicy) support
//
// Caches support expiry policies since protocol 1.6.0
//
//	cache, err := ignite.GetOrCreateCache[string, string](ctx, ig, "cache")
//	if err != nil {
//		return err
//	}
//	cache, err = cache.WithExpiryPolicy(1*time.Second, ignite.DurationZero, ignite.DurationZero)
//
// # Transactions
//
// Transactions need protocol 1.5.0. A transaction stays on the connection it was started on
// and fails if that connection is lost.
//
// # Near cache
//
// [WithNearCache] keeps recently read values on the client. Writes through the client
// invalidate them, changes made by other clients are seen after the configured TTL.
package thin
