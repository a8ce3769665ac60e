package thin

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/yanglinqiang/ignite"
	"github.com/yanglinqiang/ignite/internal"
	"github.com/yanglinqiang/ignite/logger"
)

// Client is a handle representing connections to an Apache Ignite cluster. It is safe for concurrent use
// by multiple goroutines.
//
// Client implements [ignite.IgniteImpl]; wrap it with [ignite.New] or use [Connect].
type Client struct {
	cfg  *clientConfiguration
	ch   *reliableChannel
	near *nearCache
	txs  *transactions
}

const (
	defaultPort                      = 10800
	opCacheGetNames            int16 = 1050
	opCacheCreateWithName      int16 = 1051
	opCacheGetOrCreateWithName int16 = 1052
	opCacheDestroy             int16 = 1056
)

func (cli *Client) Name() string {
	return cli.cfg.name
}

// CacheNames returns slice of cache names currently presents in Apache Ignite cluster.
func (cli *Client) CacheNames(ctx context.Context) ([]string, error) {
	var err error
	var names []string
	cli.ch.send(ctx, opCacheGetNames, func(output BinaryOutputStream) error {
		return nil
	}, func(input BinaryInputStream, err0 error) {
		if err0 != nil {
			err = err0
			return
		}
		names, err = readSlice(input, func(_ int, reader BinaryInputStream) (string, error) {
			return unmarshalString(reader)
		})
	})
	if err != nil {
		return nil, toIgniteError(err)
	}
	return names, nil
}

// GetCache returns the cache with the specified name, failing with [ignite.CacheDoesNotExists]
// if the cluster has no such cache.
func (cli *Client) GetCache(ctx context.Context, name string) (ignite.CacheImpl, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	c := cli.newCache(name)
	cli.ch.send(ctx, opCacheGetConfiguration, func(output BinaryOutputStream) error {
		output.WriteInt32(c.id)
		output.WriteUInt8(0)
		return nil
	}, func(_ BinaryInputStream, err0 error) {
		err = err0
	})
	if err != nil {
		return nil, toIgniteError(err)
	}
	return c, nil
}

// CreateCache creates cache with default configuration with specified name. Fails with
// [ignite.CacheExists] if it is already started.
func (cli *Client) CreateCache(ctx context.Context, name string) (ignite.CacheImpl, error) {
	return cli.startCache(ctx, opCacheCreateWithName, name)
}

// GetOrCreateCache returns already started cache or creates new one with specified name.
func (cli *Client) GetOrCreateCache(ctx context.Context, name string) (ignite.CacheImpl, error) {
	return cli.startCache(ctx, opCacheGetOrCreateWithName, name)
}

func (cli *Client) startCache(ctx context.Context, opCode int16, name string) (ignite.CacheImpl, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	cli.ch.send(ctx, opCode, func(output BinaryOutputStream) error {
		marshalString(output, name)
		return nil
	}, func(_ BinaryInputStream, err0 error) {
		err = err0
	})
	if err != nil {
		return nil, toIgniteError(err)
	}
	return cli.newCache(name), nil
}

// DestroyCache destroys cache with specified name.
func (cli *Client) DestroyCache(ctx context.Context, name string) error {
	var err error
	cli.ch.send(ctx, opCacheDestroy, func(output BinaryOutputStream) error {
		output.WriteInt32(internal.StringHash(name))
		return nil
	}, func(_ BinaryInputStream, err0 error) {
		err = err0
	})
	if err == nil {
		cli.near.clear()
	}
	return toIgniteError(err)
}

func (cli *Client) GetTransactions() ignite.TransactionsImpl {
	return cli.txs
}

func (cli *Client) newCache(name string) *cache {
	return &cache{
		cli:  cli,
		name: name,
		id:   internal.StringHash(name),
	}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return "", illegalArgument("cache name is empty")
	}
	return name, nil
}

// Version returns current connection protocol version.
func (cli *Client) Version() (ProtocolVersion, bool) {
	protoCtx := cli.ch.protocolContext()
	if protoCtx == nil {
		return ProtocolVersion{}, false
	}
	return protoCtx.Version(), true
}

// Close closes client, waits until all underlying chores are done.
func (cli *Client) Close(ctx context.Context) error {
	cli.txs.rollbackAll(ctx)
	cli.ch.close(ctx)
	cli.near.close()
	return nil
}

type clientConfiguration struct {
	name              string
	addressesSupplier func(ctx context.Context) ([]string, error)
	shuffleAddresses  bool
	user              string
	password          string
	attrs             map[string]string
	tlsConfigSupplier func() (*tls.Config, error)
	requestTimeout    time.Duration
	retryLimit        int
	reconnectBackoff  func() backoff.BackOff
	logger            *logger.Logger
	protocolContext   *ProtocolContext
	nearCache         *NearCacheConfig
}

type ClientConfigurationOption func(config *clientConfiguration) error

// WithInstanceName returns [ClientConfigurationOption] that sets the name reported by [ignite.Ignite.GetName].
// A random name is generated by default.
func WithInstanceName(name string) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		name = strings.TrimSpace(name)
		if len(name) == 0 {
			return errors.New("empty instance name")
		}
		config.name = name
		return nil
	}
}

// WithAddressSupplier returns [ClientConfigurationOption] that sets address supplier. The supplier must return slice of addresses of
// ignite nodes or error if failed.
//
// WARNING: Adding result of [WithAddresses] after this will override this [ClientConfigurationOption] and vice versa.
func WithAddressSupplier(supplier func(ctx context.Context) ([]string, error)) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		if supplier == nil {
			return errors.New("nil address supplier")
		}
		config.addressesSupplier = supplier
		return nil
	}
}

// WithShuffleAddresses returns [ClientConfigurationOption] that sets whether addresses of ignite nodes will be shuffled after
// obtaining from addresses supplier. See also: [WithAddressSupplier]
func WithShuffleAddresses(shuffle bool) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		config.shuffleAddresses = shuffle
		return nil
	}
}

// WithAddresses returns [ClientConfigurationOption] that sets addresses of ignite nodes to connect.
// Addresses without a port use 10800.
//
// WARNING: Adding result of [WithAddressSupplier] after this will override this [ClientConfigurationOption] and vice versa.
func WithAddresses(addresses ...string) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		if len(addresses) == 0 {
			return errors.New("empty addresses supplied")
		}
		preparedAddrs := make([]string, 0, len(addresses))
		for _, addr := range addresses {
			addr = strings.TrimSpace(addr)
			if _, _, err := net.SplitHostPort(addr); err != nil {
				addr = net.JoinHostPort(addr, strconv.Itoa(defaultPort))
			}
			if _, _, err := net.SplitHostPort(addr); err != nil {
				return err
			}
			preparedAddrs = append(preparedAddrs, addr)
		}
		config.addressesSupplier = func(_ context.Context) ([]string, error) {
			return preparedAddrs, nil
		}
		return nil
	}
}

// WithCredentials returns [ClientConfigurationOption] that sets credentials (username and password) used to authenticate client.
func WithCredentials(username string, password string) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		if len(username) != 0 && len(password) != 0 {
			config.user = username
			config.password = password
		}
		return nil
	}
}

// WithTls returns [ClientConfigurationOption] that sets TLS configuration supplier. The supplier must return tls configuration or error if failed.
func WithTls(supplier func() (*tls.Config, error)) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		if supplier == nil {
			return errors.New("nil tls configuration supplier")
		}
		config.tlsConfigSupplier = supplier
		return nil
	}
}

// WithRequestTimeout returns [ClientConfigurationOption] that sets requests timeout. Setting zero or negative duration means no timeout.
func WithRequestTimeout(timeout time.Duration) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		if timeout <= 0 {
			config.requestTimeout = 0
		} else {
			config.requestTimeout = timeout
		}
		return nil
	}
}

// WithRetryLimit returns [ClientConfigurationOption] that limits how many nodes a request is tried on after
// connection failures. Zero or negative means every known node.
func WithRetryLimit(limit int) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		if limit < 0 {
			limit = 0
		}
		config.retryLimit = limit
		return nil
	}
}

// WithReconnectBackoff returns [ClientConfigurationOption] that sets the backoff policy used when a lost connection is
// re-established. The factory is called once per reconnect. Passing nil disables retries, which is the default.
//
//	thin.WithReconnectBackoff(func() backoff.BackOff {
//		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
//	})
func WithReconnectBackoff(factory func() backoff.BackOff) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		config.reconnectBackoff = factory
		return nil
	}
}

// WithClientAttribute returns [ClientConfigurationOption] that adds key-value pair to optional client connection attributes.
func WithClientAttribute(key string, value string) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		if len(key) != 0 && len(value) != 0 {
			if config.attrs == nil {
				config.attrs = make(map[string]string)
			}
			config.attrs[key] = value
		}
		return nil
	}
}

// WithLoggingSink return [ClientConfigurationOption] that configures client logging by setting logger sink.
// See also [logger]
func WithLoggingSink(sink logger.Sink) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		if sink == nil {
			return nil
		}
		config.logger = &logger.Logger{Sink: sink}
		return nil
	}
}

// WithProtocolContext return [ClientConfigurationOption] that sets initial client protocol version and protocol features.
// See [ProtocolContext] for details.
func WithProtocolContext(version ProtocolVersion, features ...AttributeFeature) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		config.protocolContext = NewProtocolContext(version, features...)
		return nil
	}
}

// WithNearCache returns [ClientConfigurationOption] that enables the client side read cache. See [NearCacheConfig].
func WithNearCache(cfg NearCacheConfig) ClientConfigurationOption {
	return func(config *clientConfiguration) error {
		if cfg.MaxBytes <= 0 {
			return fmt.Errorf("invalid near cache size %d", cfg.MaxBytes)
		}
		config.nearCache = &cfg
		return nil
	}
}

// Start creates and initializes a new Client.
// Passing opts parameter allows user to configure Client to be created.
func Start(ctx context.Context, opts ...ClientConfigurationOption) (*Client, error) {
	cfg := clientConfiguration{
		name:             "thin-client-" + uuid.NewString(),
		shuffleAddresses: true,
		protocolContext: NewProtocolContext(
			ProtocolVersion{1, 7, 0},
			UserAttributesFeature,
		),
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, toIgniteError(err)
		}
	}
	if cfg.logger == nil {
		cfg.logger = logger.Nop()
	}
	near, err := newNearCache(cfg.nearCache)
	if err != nil {
		return nil, toIgniteError(err)
	}
	ch, err := createReliableChannel(ctx, &cfg)
	if err != nil {
		near.close()
		return nil, toIgniteError(err)
	}
	cli := &Client{cfg: &cfg, ch: ch, near: near}
	cli.txs = newTransactions(cli)
	cfg.logger.Infof("client %s connected", cfg.name)
	return cli, nil
}

// Connect starts a [Client] and wraps it into a facade root.
func Connect(ctx context.Context, opts ...ClientConfigurationOption) (ignite.Ignite, error) {
	cli, err := Start(ctx, opts...)
	if err != nil {
		return ignite.Ignite{}, err
	}
	return ignite.New(cli), nil
}
