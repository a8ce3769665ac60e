package thin

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/suite"

	"github.com/yanglinqiang/ignite"
	testing2 "github.com/yanglinqiang/ignite/internal/testing"
)

type FailoverTestSuite struct {
	testing2.IgniteTestSuite
}

func TestFailoverTestSuite(t *testing.T) {
	suite.Run(t, new(FailoverTestSuite))
}

func (suite *FailoverTestSuite) TearDownTest() {
	suite.KillAllGrids()
}

func (suite *FailoverTestSuite) startGrids(n int) {
	for i := 0; i < n; i++ {
		if _, err := suite.StartIgnite(); err != nil {
			suite.T().Fatal("failed to start grid", err)
		}
	}
}

func (suite *FailoverTestSuite) TestFailover() {
	suite.startGrids(2)

	cli, err := startTestClient(context.Background(), WithAddresses(suite.Addresses()...), WithShuffleAddresses(false))
	if err != nil {
		suite.T().Fatal("Failed to start client", err)
		return
	}
	defer func() {
		_ = cli.Close(context.Background())
	}()
	cache, err := cli.GetOrCreateCache(context.Background(), "test")
	if err != nil {
		suite.T().Fatal("Failed to create cache", err)
	}
	var errCnt atomic.Int64
	var successCnt atomic.Int64
	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
			for {
				select {
				case <-stopCh:
					return
				default:
					key := rnd.Int63n(1 << 15)
					if err0 := cache.Put(context.Background(), fmt.Sprintf("key-%d", key), "test"); err0 != nil {
						suite.T().Log("put failed", err0)
						errCnt.Add(1)
					} else {
						successCnt.Add(1)
					}
				}
			}
		}()
	}
	testing2.WaitForCondition(func() bool {
		return successCnt.Load() >= 1000
	}, 3*time.Second)
	_ = suite.KillIgnite(0)
	currOk := successCnt.Load()
	testing2.WaitForCondition(func() bool {
		return successCnt.Load() > 2*currOk
	}, 3*time.Second)
	close(stopCh)
	wg.Wait()
	suite.T().Logf("Total errors %d, total ok %d", errCnt.Load(), successCnt.Load())
	suite.Assert().True(errCnt.Load() == 0, fmt.Sprintf("Total errors %d, total ok %d", errCnt.Load(), successCnt.Load()))
	suite.Assert().Greater(successCnt.Load(), currOk)
}

func (suite *FailoverTestSuite) TestAllNodesLost() {
	suite.startGrids(1)
	ctx := context.Background()
	cli, err := startTestClient(ctx, WithAddresses(suite.Addresses()...))
	suite.Require().NoError(err)
	defer func() {
		_ = cli.Close(ctx)
	}()
	cache, err := cli.GetOrCreateCache(ctx, "test")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.KillIgnite(0))
	err = cache.Put(ctx, "k", "v")
	suite.Require().Error(err)
	suite.Equal(ignite.ConnectionFailed, ignite.CodeOf(err))
}

func (suite *FailoverTestSuite) TestReconnectBackoff() {
	suite.startGrids(1)
	ctx := context.Background()
	addr := suite.GetIgnite(0).Addr()

	var attempts atomic.Int32
	cli, err := startTestClient(ctx, WithAddresses(addr), WithReconnectBackoff(func() backoff.BackOff {
		attempts.Add(1)
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), 3)
	}))
	suite.Require().NoError(err)
	defer func() {
		_ = cli.Close(ctx)
	}()
	cache, err := cli.GetOrCreateCache(ctx, "test")
	suite.Require().NoError(err)
	suite.Require().NoError(suite.KillIgnite(0))
	suite.Require().True(testing2.WaitForCondition(func() bool {
		return cli.ch.currCh.Load().isClosed()
	}, 3*time.Second))

	err = cache.Put(ctx, "k", "v")
	suite.Require().Error(err)
	suite.Equal(ignite.ConnectionFailed, ignite.CodeOf(err))
	suite.GreaterOrEqual(attempts.Load(), int32(1))
}
