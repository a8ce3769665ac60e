package ignite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanglinqiang/ignite"
)

type factoryForms struct {
	name        string
	throwing    func(ctx context.Context, ig ignite.Ignite, name string) (ignite.Cache[string, int], error)
	nonThrowing func(ctx context.Context, ig ignite.Ignite, name string, err *ignite.IgniteError) ignite.Cache[string, int]
}

var allForms = []factoryForms{
	{"GetCache", ignite.GetCache[string, int], ignite.GetCacheWithError[string, int]},
	{"GetOrCreateCache", ignite.GetOrCreateCache[string, int], ignite.GetOrCreateCacheWithError[string, int]},
	{"CreateCache", ignite.CreateCache[string, int], ignite.CreateCacheWithError[string, int]},
}

type scenario struct {
	name  string
	setup func(impl *fakeIgnite) ignite.Ignite
}

var scenarios = []scenario{
	{"missing cache", func(impl *fakeIgnite) ignite.Ignite {
		return ignite.New(impl)
	}},
	{"existing cache", func(impl *fakeIgnite) ignite.Ignite {
		impl.caches["c"] = newFakeCache("c")
		return ignite.New(impl)
	}},
	{"engine failure", func(impl *fakeIgnite) ignite.Ignite {
		impl.failOn = errors.New("connection reset by peer")
		return ignite.New(impl)
	}},
	{"engine ignite error", func(impl *fakeIgnite) ignite.Ignite {
		impl.failOn = ignite.NewError(ignite.SecurityViolation, "denied").WithComponent("fake")
		return ignite.New(impl)
	}},
	{"invalid root", func(*fakeIgnite) ignite.Ignite {
		return ignite.Ignite{}
	}},
}

func TestFactory_FormSymmetry(t *testing.T) {
	ctx := context.Background()
	for _, forms := range allForms {
		for _, sc := range scenarios {
			t.Run(fmt.Sprintf("%s/%s", forms.name, sc.name), func(t *testing.T) {
				var igniteErr ignite.IgniteError
				h := forms.nonThrowing(ctx, sc.setup(newFakeIgnite("node")), "c", &igniteErr)

				h2, err := forms.throwing(ctx, sc.setup(newFakeIgnite("node")), "c")
				if igniteErr.IsSuccess() {
					require.NoError(t, err)
					require.True(t, h.IsValid())
					require.True(t, h2.IsValid())
					require.Equal(t, h.Name(), h2.Name())
					return
				}
				require.False(t, h.IsValid())
				require.False(t, h2.IsValid())
				require.Error(t, err)
				var thrown *ignite.IgniteError
				require.ErrorAs(t, err, &thrown)
				require.Equal(t, igniteErr.Code, thrown.Code)
				require.Equal(t, igniteErr.Message, thrown.Message)
				require.Equal(t, igniteErr.Component, thrown.Component)
			})
		}
	}
}

func TestFactory_CreateExistsConflict(t *testing.T) {
	ctx := context.Background()
	ig := ignite.New(newFakeIgnite("node"))

	_, err := ignite.CreateCache[string, int](ctx, ig, "X")
	require.NoError(t, err)
	_, err = ignite.CreateCache[string, int](ctx, ig, "X")
	require.ErrorIs(t, err, ignite.ErrCacheExists)

	var igniteErr ignite.IgniteError
	h := ignite.CreateCacheWithError[string, int](ctx, ig, "X", &igniteErr)
	require.False(t, h.IsValid())
	require.Equal(t, ignite.CacheExists, igniteErr.Code)
}

func TestFactory_GetMissing(t *testing.T) {
	ctx := context.Background()
	ig := ignite.New(newFakeIgnite("node"))

	_, err := ignite.GetCache[string, int](ctx, ig, "unknown")
	require.ErrorIs(t, err, ignite.ErrCacheNotFound)
	require.Equal(t, ignite.CacheDoesNotExists, ignite.CodeOf(err))

	var igniteErr ignite.IgniteError
	h := ignite.GetCacheWithError[string, int](ctx, ig, "unknown", &igniteErr)
	require.False(t, h.IsValid())
	require.Equal(t, ignite.CacheDoesNotExists, igniteErr.Code)
	require.ErrorIs(t, igniteErr.Err(), ignite.ErrCacheNotFound)
}

func TestFactory_GetOrCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	ig := ignite.New(newFakeIgnite("node"))

	first, err := ignite.GetOrCreateCache[string, int](ctx, ig, "Y")
	require.NoError(t, err)
	second, err := ignite.GetOrCreateCache[string, int](ctx, ig, "Y")
	require.NoError(t, err)

	require.NoError(t, first.Put(ctx, "k", 42))
	v, ok, err := second.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42, v)

	created, err := ignite.CreateCache[string, int](ctx, ig, "Z")
	require.NoError(t, err)
	require.NoError(t, created.Put(ctx, "k", 1))
	third, err := ignite.GetOrCreateCache[string, int](ctx, ig, "Z")
	require.NoError(t, err)
	size, err := third.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), size)
}

func TestFactory_ErrorValueIsResetOnSuccess(t *testing.T) {
	ctx := context.Background()
	ig := ignite.New(newFakeIgnite("node"))

	igniteErr := ignite.IgniteError{Code: ignite.Failed, Message: "stale"}
	h := ignite.GetOrCreateCacheWithError[string, int](ctx, ig, "c", &igniteErr)
	require.True(t, igniteErr.IsSuccess())
	require.Equal(t, ignite.IgniteError{}, igniteErr)
	require.True(t, h.IsValid())
}

func TestFactory_NilErrorValue(t *testing.T) {
	ctx := context.Background()
	ig := ignite.New(newFakeIgnite("node"))
	require.NotPanics(t, func() {
		h := ignite.GetCacheWithError[string, int](ctx, ig, "unknown", nil)
		require.False(t, h.IsValid())
	})
}

type nilCacheIgnite struct {
	*fakeIgnite
}

func (nilCacheIgnite) GetCache(context.Context, string) (ignite.CacheImpl, error) {
	return nil, nil
}

func TestFactory_EngineReturningNoCacheFails(t *testing.T) {
	ctx := context.Background()
	ig := ignite.New(nilCacheIgnite{newFakeIgnite("node")})

	var igniteErr ignite.IgniteError
	h := ignite.GetCacheWithError[string, int](ctx, ig, "c", &igniteErr)
	require.False(t, h.IsValid())
	require.Equal(t, ignite.Failed, igniteErr.Code)

	_, err := ignite.GetCache[string, int](ctx, ig, "c")
	require.Equal(t, ignite.Failed, ignite.CodeOf(err))
}

func TestFactory_Must(t *testing.T) {
	ctx := context.Background()
	ig := ignite.New(newFakeIgnite("node"))

	cache := ignite.Must(ignite.GetOrCreateCache[string, int](ctx, ig, "c"))
	require.True(t, cache.IsValid())

	require.PanicsWithError(t, `fake: CacheDoesNotExists: cache "unknown" does not exist`, func() {
		ignite.Must(ignite.GetCache[string, int](ctx, ig, "unknown"))
	})
}

func TestFactory_ClosedRoot(t *testing.T) {
	ctx := context.Background()
	ig := ignite.New(newFakeIgnite("node"))
	require.NoError(t, ig.Close(ctx))

	for _, forms := range allForms {
		_, err := forms.throwing(ctx, ig, "c")
		require.ErrorIs(t, err, ignite.ErrInvalidInstance, forms.name)
	}
}
