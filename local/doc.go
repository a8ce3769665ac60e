// Package local provides an in-process engine for the ignite facade.
//
// Caches live in bigcache (default) or in redis hashes; keys and values are serialized with
// msgpack (default) or CBOR and decoded into the caller's types by the facade:
//
//	ig, err := local.Open(ctx, local.WithName("test-node"))
//	if err != nil {
//		return err
//	}
//	defer ig.Close(ctx)
//	cache, err := ignite.GetOrCreateCache[string, Person](ctx, ig, "persons")
//
// Transactions are atomic but not isolated: each one keeps an undo log that is replayed on
// rollback or when its timeout elapses.
package local
