package thin

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingRequest_CompleteOnce(t *testing.T) {
	req, err := newRequest(1, opCacheGet, func(BinaryOutputStream) error {
		return nil
	})
	require.NoError(t, err)
	require.False(t, req.done())

	require.True(t, req.complete([]byte{1, 2, 3}, nil))
	require.True(t, req.done())
	require.False(t, req.complete(nil, createClientConnectionError("connection closed", nil)))
	require.NoError(t, req.err)
	require.Equal(t, []byte{1, 2, 3}, req.responseData)
}

func TestPendingRequest_ConcurrentComplete(t *testing.T) {
	req, err := newRequest(1, opCacheGet, func(BinaryOutputStream) error {
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if req.complete(nil, errors.New("closed")) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, winners)
	<-req.doneCh
	require.Error(t, req.err)
}
