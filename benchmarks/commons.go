package benchmarks

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/yanglinqiang/ignite"
	testing2 "github.com/yanglinqiang/ignite/internal/testing"
	"github.com/yanglinqiang/ignite/thin"
)

const (
	EnvWarmupCount   = "WARMUPS"
	defaultWarmupCnt = 3
)

// CacheBenchmarker runs f after the configured number of warmup rounds, every round on a fresh client.
func CacheBenchmarker[K comparable, V any](b *testing.B, cliCreate func() (ignite.Ignite, ignite.Cache[K, V]), fixture func(c ignite.Cache[K, V]), f func(b *testing.B, c ignite.Cache[K, V])) {
	warmups := warmupCount()
	if warmups > 0 {
		b.Logf("Warmups: %d", warmups)
	}
	runner := func(b *testing.B) {
		cli, cache := cliCreate()
		defer func() {
			_ = cache.Close(context.Background())
			if err := cli.Close(context.Background()); err != nil {
				b.Log("Test warning, client not shutdown", err)
			}
		}()
		if fixture != nil {
			fixture(cache)
		}
		b.ResetTimer()
		f(b, cache)
	}
	warmUp := func() {
		cli, cache := cliCreate()
		defer func() {
			_ = cache.Close(context.Background())
			_ = cli.Close(context.Background())
		}()
		for i := 0; i < warmups; i++ {
			f(b, cache)
		}
	}
	warmUp()
	runner(b)
}

// Connect connects to the cluster from IGNITE_ADDRESSES or, if it is unset, to an in-process node
// stopped with the benchmark.
func Connect(b *testing.B) ignite.Ignite {
	addrs := testing2.ExternalAddresses()
	if len(addrs) == 0 {
		node, err := testing2.NewCluster().StartNode()
		if err != nil {
			b.Fatalf("failed to start node: %s", err)
		}
		b.Cleanup(func() {
			_ = node.Kill()
		})
		addrs = []string{node.Addr()}
	}
	ig, err := thin.Connect(context.Background(), thin.WithAddresses(addrs...))
	if err != nil {
		b.Fatalf("failed to connect to cluster: %s", err)
	}
	return ig
}

func warmupCount() int {
	if s := strings.TrimSpace(os.Getenv(EnvWarmupCount)); len(s) > 0 {
		if i, err := strconv.ParseInt(s, 10, 32); err != nil {
			panic(err)
		} else {
			return int(i)
		}
	}
	return defaultWarmupCnt
}
