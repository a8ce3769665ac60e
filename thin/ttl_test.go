package thin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/yanglinqiang/ignite"
	testing2 "github.com/yanglinqiang/ignite/internal/testing"
)

const cacheName = "ttl"

type TtlTestSuite struct {
	testing2.IgniteTestSuite
	cli *Client
}

func TestTtlTestSuite(t *testing.T) {
	suite.Run(t, new(TtlTestSuite))
}

func (suite *TtlTestSuite) SetupSuite() {
	_, err := suite.StartIgnite()
	if err != nil {
		suite.T().Fatal("Failed to start ignite instance", err)
	}
	suite.cli, err = startTestClient(context.Background(), WithAddresses(suite.Addresses()...))
	if err != nil {
		suite.T().Fatal("failed to start client", err)
	}
}

func (suite *TtlTestSuite) TearDownSuite() {
	_ = suite.cli.Close(context.Background())
	suite.KillAllGrids()
}

func (suite *TtlTestSuite) withPolicy(creation, access, update time.Duration) ignite.CacheImpl {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := suite.cli.GetOrCreateCache(ctx, cacheName)
	suite.Require().NoError(err)
	return c.(ignite.ExpiryPolicyCacheImpl).WithExpiryPolicy(creation, access, update)
}

func (suite *TtlTestSuite) TestCreationPolicy() {
	ctx := context.Background()
	cache := suite.withPolicy(200*time.Millisecond, ignite.DurationUnchanged, ignite.DurationUnchanged)
	defer func() {
		_ = suite.cli.DestroyCache(ctx, cacheName)
	}()

	err := cache.Put(ctx, "test", "test")
	require.Nil(suite.T(), err)
	contains, err := cache.ContainsKey(ctx, "test")
	require.Nil(suite.T(), err)
	require.True(suite.T(), contains)

	<-time.After(300 * time.Millisecond)
	contains, err = cache.ContainsKey(ctx, "test")
	require.Nil(suite.T(), err)
	require.False(suite.T(), contains)
}

func (suite *TtlTestSuite) TestZeroCreation() {
	ctx := context.Background()
	cache := suite.withPolicy(ignite.DurationZero, ignite.DurationUnchanged, ignite.DurationUnchanged)
	defer func() {
		_ = suite.cli.DestroyCache(ctx, cacheName)
	}()
	suite.Require().NoError(cache.Put(ctx, "test", "test"))
	v, err := cache.Get(ctx, "test")
	suite.Require().NoError(err)
	suite.Nil(v)
}

func (suite *TtlTestSuite) TestEternalUpdate() {
	ctx := context.Background()
	cache := suite.withPolicy(200*time.Millisecond, ignite.DurationUnchanged, ignite.DurationEternal)
	defer func() {
		_ = suite.cli.DestroyCache(ctx, cacheName)
	}()
	suite.Require().NoError(cache.Put(ctx, "test", "v1"))
	suite.Require().NoError(cache.Put(ctx, "test", "v2"))
	<-time.After(300 * time.Millisecond)
	v, err := cache.Get(ctx, "test")
	suite.Require().NoError(err)
	suite.Equal("v2", v)
}

func TestExpiryPolicyRequiresProtocol(t *testing.T) {
	cluster := testing2.NewCluster()
	node, err := cluster.StartNode(testing2.WithVersion(1, 5, 0))
	require.NoError(t, err)
	defer func() {
		_ = node.Kill()
	}()
	ctx := context.Background()
	cli, err := startTestClient(ctx, WithAddresses(node.Addr()))
	require.NoError(t, err)
	defer func() {
		_ = cli.Close(ctx)
	}()
	c, err := cli.GetOrCreateCache(ctx, cacheName)
	require.NoError(t, err)
	ttl := c.(ignite.ExpiryPolicyCacheImpl).WithExpiryPolicy(time.Second, ignite.DurationUnchanged, ignite.DurationUnchanged)
	err = ttl.Put(ctx, "k", "v")
	require.Error(t, err)
	require.Equal(t, ignite.FunctionalityDisabled, ignite.CodeOf(err))
}
