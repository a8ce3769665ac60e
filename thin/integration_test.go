//go:build testing

package thin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanglinqiang/ignite"
	testing2 "github.com/yanglinqiang/ignite/internal/testing"
)

func connectExternal(t *testing.T) ignite.Ignite {
	addrs := testing2.ExternalAddresses()
	if len(addrs) == 0 {
		t.Skipf("%s is not set", testing2.IgniteAddresses)
	}
	ig, err := Connect(context.Background(), WithAddresses(addrs...), WithRequestTimeout(10*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, ig.Close(context.Background()))
	})
	return ig
}

func TestIntegration_CacheLifecycle(t *testing.T) {
	ctx := context.Background()
	ig := connectExternal(t)
	name := "it-" + testing2.MakeRandomString(8)

	_, err := ignite.GetCache[string, int32](ctx, ig, name)
	require.Equal(t, ignite.CacheDoesNotExists, ignite.CodeOf(err))

	c, err := ignite.CreateCache[string, int32](ctx, ig, name)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, c.Close(ctx))
		require.NoError(t, ig.DestroyCache(ctx, name))
	}()
	_, err = ignite.CreateCache[string, int32](ctx, ig, name)
	require.Equal(t, ignite.CacheExists, ignite.CodeOf(err))

	require.NoError(t, c.Put(ctx, "a", 1))
	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(1), v)

	same, err := ignite.GetOrCreateCache[string, int32](ctx, ig, name)
	require.NoError(t, err)
	defer func() {
		_ = same.Close(ctx)
	}()
	sz, err := same.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), sz)
}

func TestIntegration_ExpiryPolicy(t *testing.T) {
	ctx := context.Background()
	ig := connectExternal(t)
	name := "it-ttl-" + testing2.MakeRandomString(8)

	c, err := ignite.GetOrCreateCache[int64, string](ctx, ig, name)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, c.Close(ctx))
		require.NoError(t, ig.DestroyCache(ctx, name))
	}()

	expiring, err := c.WithExpiryPolicy(200*time.Millisecond, ignite.DurationUnchanged, ignite.DurationUnchanged)
	require.NoError(t, err)
	defer func() {
		_ = expiring.Close(ctx)
	}()
	err = expiring.Put(ctx, 1, "one")
	if ignite.CodeOf(err) == ignite.FunctionalityDisabled {
		t.Skip("cluster does not support expiry policies")
	}
	require.NoError(t, err)
	require.True(t, testing2.WaitForCondition(func() bool {
		ok, err := c.ContainsKey(ctx, 1)
		return err == nil && !ok
	}, 5*time.Second))
}
