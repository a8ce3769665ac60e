package thin

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yanglinqiang/ignite/logger"
)

type channel interface {
	send(ctx context.Context, opCode int16, requestWriter func(output BinaryOutputStream) error, responseReader func(input BinaryInputStream, err error))
	protocolContext() *ProtocolContext
	close(ctx context.Context)
	isClosed() bool
}

type reliableChannel struct {
	attemptsLimit atomic.Int32
	currCh        atomic.Pointer[tcpChannel]
	cfg           *clientConfiguration
	mux           sync.Mutex
	closed        atomic.Bool
	log           *logger.Logger
}

func (r *reliableChannel) send(ctx context.Context, opCode int16, requestWriter func(output BinaryOutputStream) error, responseReader func(input BinaryInputStream, err error)) {
	if r.closed.Load() {
		responseReader(nil, createClientConnectionError("channel is closed", nil))
		return
	}
	attemptsCnt := 0
	for {
		currCh, err := r.currentChannel(ctx)
		if err != nil {
			r.log.Errorf("connection failed: %v", err)
			responseReader(nil, err)
			return
		}
		attemptsLimit := int(r.attemptsLimit.Load())
		attemptsCnt++
		connectFailed := false
		currCh.send(ctx, opCode, requestWriter, func(input BinaryInputStream, err error) {
			var connErr *ClientConnectionError
			connectFailed = errors.As(err, &connErr)
			if !connectFailed || attemptsCnt >= attemptsLimit {
				responseReader(input, err)
			}
		})
		if !connectFailed || attemptsCnt >= attemptsLimit {
			return
		}
		r.log.Debug(func() string {
			return fmt.Sprintf("retrying operation %d, retries left: %d", opCode, attemptsLimit-attemptsCnt)
		})
	}
}

// pin returns the live connection. Transactions are bound to the node they were started on,
// so their requests bypass failover.
func (r *reliableChannel) pin(ctx context.Context) (*tcpChannel, error) {
	return r.currentChannel(ctx)
}

func (r *reliableChannel) currentChannel(ctx context.Context) (*tcpChannel, error) {
	for {
		if r.closed.Load() {
			return nil, createClientConnectionError("channel is closed", nil)
		}
		if currCh := r.currCh.Load(); currCh != nil && !currCh.isClosed() {
			return currCh, nil
		}
		if err := r.reconnect(ctx); err != nil {
			return nil, err
		}
	}
}

func (r *reliableChannel) protocolContext() *ProtocolContext {
	if currCh := r.currCh.Load(); currCh != nil {
		return currCh.protocolContext()
	}
	return nil
}

func (r *reliableChannel) close(ctx context.Context) {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	if currCh := r.currCh.Load(); currCh != nil {
		r.log.Infof("closing connection to %s", currCh)
		currCh.close(ctx)
	}
}

func (r *reliableChannel) isClosed() bool {
	return r.closed.Load()
}

// reconnect re-establishes a lost connection, retrying with the configured backoff until it
// gives up or ctx is done.
func (r *reliableChannel) reconnect(ctx context.Context) error {
	if r.cfg.reconnectBackoff == nil {
		return r.initConnection(ctx)
	}
	b := backoff.WithContext(r.cfg.reconnectBackoff(), ctx)
	return backoff.RetryNotify(func() error {
		err := r.initConnection(ctx)
		if err != nil && isHandshakeError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, next time.Duration) {
		r.log.Warnf("reconnect failed, next attempt in %s: %v", next, err)
	})
}

func (r *reliableChannel) initConnection(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.closed.Load() {
		return createClientConnectionError("channel is closed", nil)
	}
	oldCh := r.currCh.Load()
	if oldCh != nil && !oldCh.isClosed() {
		return nil
	}
	supplied, err := r.cfg.addressesSupplier(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain addresses: %w", err)
	}
	if len(supplied) == 0 {
		return errors.New("addresses are empty")
	}
	addresses := make([]string, len(supplied))
	copy(addresses, supplied)
	if len(addresses) > 1 && r.cfg.shuffleAddresses {
		rand.Shuffle(len(addresses), func(i, j int) {
			addresses[i], addresses[j] = addresses[j], addresses[i]
		})
	}
	// The failed node is tried last.
	if oldCh != nil && len(addresses) > 1 {
		for i, addr := range addresses {
			if addr == oldCh.addr {
				addresses = append(append(addresses[:i:i], addresses[i+1:]...), addr)
				break
			}
		}
	}
	var cliConnErr *ClientConnectionError
	for i, addr := range addresses {
		r.log.Debug(func() string {
			return fmt.Sprintf("trying to init connection to %s", addr)
		})
		var ch *tcpChannel
		if ch, err = createTcpChannel(ctx, addr, r.cfg); err == nil {
			if r.cfg.retryLimit > 0 && r.cfg.retryLimit < len(addresses) {
				r.attemptsLimit.Store(int32(r.cfg.retryLimit))
			} else {
				r.attemptsLimit.Store(int32(len(addresses)))
			}
			r.currCh.Store(ch)
			r.log.Debug(func() string {
				return fmt.Sprintf("successfully connected to %s", ch)
			})
			return nil
		}
		if i == len(addresses)-1 || !errors.As(err, &cliConnErr) {
			break
		}
	}
	if errors.As(err, &cliConnErr) || isHandshakeError(err) || ctx.Err() != nil {
		return err
	}
	return &ClientConnectionError{ClientError{
		Message: fmt.Sprintf("connection failed to channels [%s]", strings.Join(addresses, ", ")),
	}, err}
}

func isHandshakeError(err error) bool {
	var cliAuthErr *ClientAuthenticationError
	var protoErr *ClientProtocolError
	return err != nil && (errors.As(err, &cliAuthErr) || errors.As(err, &protoErr))
}

func createReliableChannel(ctx context.Context, cfg *clientConfiguration) (*reliableChannel, error) {
	if cfg.addressesSupplier == nil {
		return nil, errors.New("address supplier is nil")
	}
	ret := &reliableChannel{
		cfg: cfg,
		log: cfg.logger,
	}
	if err := ret.initConnection(ctx); err != nil {
		ret.log.Errorf("connection failed: %v", err)
		return nil, err
	}
	return ret, nil
}
