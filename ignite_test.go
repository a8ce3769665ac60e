package ignite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/yanglinqiang/ignite"
)

func TestIgnite_DefaultIsInvalid(t *testing.T) {
	var ig ignite.Ignite
	require.False(t, ig.IsValid())
	require.Equal(t, "", ig.GetName())
	require.False(t, ignite.New(nil).IsValid())
	require.False(t, ig.Clone().IsValid())
	require.NoError(t, ig.Close(context.Background()))
}

func TestIgnite_InvalidInstanceFailsForwardingCalls(t *testing.T) {
	ctx := context.Background()
	var ig ignite.Ignite

	_, err := ig.CacheNames(ctx)
	require.ErrorIs(t, err, ignite.ErrInvalidInstance)
	require.ErrorIs(t, ig.DestroyCache(ctx, "a"), ignite.ErrInvalidInstance)

	txs := ig.GetTransactions()
	require.False(t, txs.IsValid())
	_, err = txs.TxStart(ctx)
	require.ErrorIs(t, err, ignite.ErrInvalidInstance)
	require.Equal(t, ignite.InvalidInstance, ignite.CodeOf(err))
}

func TestIgnite_ValidityNotAffectedByCacheCalls(t *testing.T) {
	ctx := context.Background()
	ig := ignite.New(newFakeIgnite("node"))
	require.True(t, ig.IsValid())
	require.Equal(t, "node", ig.GetName())

	_, err := ignite.GetCache[string, int](ctx, ig, "missing")
	require.Error(t, err)
	require.True(t, ig.IsValid())

	_, err = ignite.CreateCache[string, int](ctx, ig, "a")
	require.NoError(t, err)
	_, err = ignite.CreateCache[string, int](ctx, ig, "a")
	require.Error(t, err)
	require.True(t, ig.IsValid())
}

func TestIgnite_IsValidDoesNotForward(t *testing.T) {
	impl := newFakeIgnite("node")
	ig := ignite.New(impl)
	for i := 0; i < 10; i++ {
		require.True(t, ig.IsValid())
	}
	require.Zero(t, impl.calls.Load())
}

func TestIgnite_SharedOwnership(t *testing.T) {
	ctx := context.Background()
	impl := newFakeIgnite("node")
	original := ignite.New(impl)
	cp := original.Clone()

	require.NoError(t, original.Close(ctx))
	require.False(t, original.IsValid())
	require.Zero(t, impl.closed.Load())

	require.True(t, cp.IsValid())
	require.Equal(t, "node", cp.GetName())
	cache, err := ignite.GetOrCreateCache[string, string](ctx, cp, "c")
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, "k", "v"))

	require.NoError(t, cp.Close(ctx))
	require.Zero(t, impl.closed.Load(), "cache handle still owns the connection")

	v, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.NoError(t, cache.Close(ctx))
	require.Equal(t, int32(1), impl.closed.Load())

	_, _, err = cache.Get(ctx, "k")
	require.ErrorIs(t, err, ignite.ErrInvalidInstance)
}

func TestIgnite_CloseIsIdempotentPerOwner(t *testing.T) {
	ctx := context.Background()
	impl := newFakeIgnite("node")
	ig := ignite.New(impl)
	cp := ig.Clone()
	require.NoError(t, ig.Close(ctx))
	require.NoError(t, ig.Close(ctx))
	require.True(t, cp.IsValid())
	require.NoError(t, cp.Close(ctx))
	require.Equal(t, int32(1), impl.closed.Load())
}

type failingCloseIgnite struct {
	*fakeIgnite
}

func (f failingCloseIgnite) Close(context.Context) error {
	return errors.New("socket already closed")
}

func TestIgnite_CloseErrorIsIgniteError(t *testing.T) {
	ig := ignite.New(failingCloseIgnite{newFakeIgnite("node")})
	err := ig.Close(context.Background())
	require.Error(t, err)
	require.Equal(t, ignite.Failed, ignite.CodeOf(err))
	require.Contains(t, err.Error(), "socket already closed")
}

func TestIgnite_ConcurrentClones(t *testing.T) {
	ctx := context.Background()
	impl := newFakeIgnite("node")
	ig := ignite.New(impl)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < 64; i++ {
		cp := ig.Clone()
		g.Go(func() error {
			defer cp.Close(gCtx)
			cache, err := ignite.GetOrCreateCache[int, int](gCtx, cp, "shared")
			if err != nil {
				return err
			}
			defer cache.Close(gCtx)
			return cache.Put(gCtx, 1, 1)
		})
	}
	require.NoError(t, g.Wait())
	require.Zero(t, impl.closed.Load())
	require.NoError(t, ig.Close(ctx))
	require.Equal(t, int32(1), impl.closed.Load())
}

func TestIgnite_CacheNamesAndDestroy(t *testing.T) {
	ctx := context.Background()
	ig := ignite.New(newFakeIgnite("node"))
	defer ig.Close(ctx)

	for _, name := range []string{"b", "a"} {
		_, err := ignite.CreateCache[string, int](ctx, ig, name)
		require.NoError(t, err)
	}
	names, err := ig.CacheNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, ig.DestroyCache(ctx, "a"))
	err = ig.DestroyCache(ctx, "a")
	require.ErrorIs(t, err, ignite.ErrCacheNotFound)
	names, err = ig.CacheNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, names)
}

func TestIgnite_GetTransactionsIsFreshEachCall(t *testing.T) {
	ctx := context.Background()
	impl := newFakeIgnite("node")
	ig := ignite.New(impl)

	first := ig.GetTransactions()
	second := ig.GetTransactions()
	require.True(t, first.IsValid())
	require.True(t, second.IsValid())
	require.Equal(t, int32(2), impl.calls.Load())

	require.NoError(t, ig.Close(ctx))
	require.NoError(t, first.Close(ctx))
	require.Zero(t, impl.closed.Load())
	require.NoError(t, second.Close(ctx))
	require.Equal(t, int32(1), impl.closed.Load())
}
