package testing

import (
	"context"
	"math/rand"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// IgniteAddresses names the environment variable with the addresses of a real cluster used by
// tests built with the testing tag.
const IgniteAddresses = "IGNITE_ADDRESSES"

// ExternalAddresses returns the addresses from IGNITE_ADDRESSES, nil if unset.
func ExternalAddresses() []string {
	val := strings.TrimSpace(os.Getenv(IgniteAddresses))
	if val == "" {
		return nil
	}
	var res []string
	for _, addr := range strings.Split(val, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			res = append(res, addr)
		}
	}
	return res
}

func WaitForCondition(condition func() bool, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	doneCh := make(chan bool, 1)
	var cancelFlag atomic.Bool
	go func() {
		defer func() {
			if r := recover(); r != nil {
				doneCh <- false
			}
		}()
		for {
			if res := condition(); res {
				doneCh <- res
				return
			}
			if cancelFlag.Load() {
				doneCh <- false
				return
			}
			runtime.Gosched()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			cancelFlag.Store(true)
		case res := <-doneCh:
			return res
		}
	}
}

func MakeByteArrayPayload(size int) []byte {
	payload := make([]byte, size)
	for i := 0; i < len(payload); i++ {
		payload[i] = byte(i)
	}
	return payload
}

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

var (
	rndMux sync.Mutex
	rnd    = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func MakeRandomString(n int) string {
	rndMux.Lock()
	defer rndMux.Unlock()
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rnd.Intn(len(letterRunes))]
	}
	return string(b)
}
