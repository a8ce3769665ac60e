package local

import (
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/yanglinqiang/ignite/logger"
)

type configuration struct {
	name   string
	stores StoreFactory
	codec  Codec
	logger *logger.Logger
}

type Option func(cfg *configuration) error

// WithName sets the instance name returned by GetName.
func WithName(name string) Option {
	return func(cfg *configuration) error {
		name = strings.TrimSpace(name)
		if len(name) == 0 {
			return errors.New("empty instance name")
		}
		cfg.name = name
		return nil
	}
}

// WithBigCacheStore keeps caches in memory, this is the default.
func WithBigCacheStore(bcCfg BigCacheConfig) Option {
	return func(cfg *configuration) error {
		cfg.stores = BigCacheStores(bcCfg)
		return nil
	}
}

// WithRedisStore keeps every cache in a redis hash named keyPrefix + cache name.
func WithRedisStore(client redis.UniversalClient, keyPrefix string) Option {
	return func(cfg *configuration) error {
		if client == nil {
			return errors.New("nil redis client")
		}
		cfg.stores = RedisStores(client, keyPrefix)
		return nil
	}
}

func WithStoreFactory(factory StoreFactory) Option {
	return func(cfg *configuration) error {
		if factory == nil {
			return errors.New("nil store factory")
		}
		cfg.stores = factory
		return nil
	}
}

// WithCodec sets the key and value codec, [Msgpack] by default.
func WithCodec(codec Codec) Option {
	return func(cfg *configuration) error {
		if codec == nil {
			return errors.New("nil codec")
		}
		cfg.codec = codec
		return nil
	}
}

func WithLoggingSink(sink logger.Sink) Option {
	return func(cfg *configuration) error {
		if sink == nil {
			return nil
		}
		cfg.logger = &logger.Logger{Sink: sink}
		return nil
	}
}
