package ignite

import (
	"context"

	"github.com/yanglinqiang/ignite/internal/shared"
)

// Ignite is the entry handle to an Ignite engine. It is safe for concurrent use by multiple
// goroutines.
//
// The zero value is an invalid instance: every call forwarding to the engine fails with
// InvalidInstance. Valid instances are created by engine bootstrap functions (thin.Connect,
// local.Open) or by [New].
//
// Each Ignite obtained from [New] or [Ignite.Clone] is one owner of the engine connection.
// Plain assignment shares the owner. The connection is closed when the last owner, counting
// the cache and transactions handles derived from it, is closed.
type Ignite struct {
	ref *shared.Ref[IgniteImpl]
}

// New wraps impl into a facade root. New(nil) returns an invalid instance.
func New(impl IgniteImpl) Ignite {
	if impl == nil {
		return Ignite{}
	}
	return Ignite{ref: shared.New(impl, closeImpl)}
}

func closeImpl(ctx context.Context, impl IgniteImpl) error {
	return impl.Close(ctx)
}

func (ig Ignite) impl() (IgniteImpl, bool) {
	return ig.ref.Get()
}

// GetName returns the name of the underlying connection, "" for an invalid instance.
func (ig Ignite) GetName() string {
	impl, ok := ig.impl()
	if !ok {
		return ""
	}
	return impl.Name()
}

// IsValid reports whether the instance holds a live engine connection. It never calls
// the engine.
func (ig Ignite) IsValid() bool {
	return ig.ref.Valid()
}

// GetTransactions returns a new transactions handle on every call. On an invalid instance the
// returned handle is invalid too and its operations fail with InvalidInstance.
func (ig Ignite) GetTransactions() Transactions {
	impl, ok := ig.impl()
	if !ok {
		return Transactions{}
	}
	owner := ig.ref.Clone()
	if owner == nil {
		return Transactions{}
	}
	return Transactions{impl: impl.GetTransactions(), owner: owner}
}

// CacheNames returns the names of all caches known to the engine.
func (ig Ignite) CacheNames(ctx context.Context) ([]string, error) {
	impl, ok := ig.impl()
	if !ok {
		return nil, invalidInstance()
	}
	names, err := impl.CacheNames(ctx)
	if err != nil {
		return nil, toError(err)
	}
	return names, nil
}

// DestroyCache destroys the cache with the given name.
func (ig Ignite) DestroyCache(ctx context.Context, name string) error {
	impl, ok := ig.impl()
	if !ok {
		return invalidInstance()
	}
	return toError(impl.DestroyCache(ctx, name))
}

// Clone returns a new owner of the same connection. Cloning an invalid instance returns an
// invalid instance.
func (ig Ignite) Clone() Ignite {
	return Ignite{ref: ig.ref.Clone()}
}

// Close releases this owner. The engine connection is closed when no other owner remains,
// any error of that close is returned. Closing an already closed owner is a no-op.
func (ig Ignite) Close(ctx context.Context) error {
	return toError(ig.ref.Release(ctx))
}

func invalidInstance() *IgniteError {
	return NewError(InvalidInstance, "ignite instance is not valid")
}

// toError converts an engine error into an *IgniteError without producing a typed nil.
func toError(err error) error {
	if err == nil {
		return nil
	}
	return FromError(err)
}
