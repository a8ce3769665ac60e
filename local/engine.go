package local

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/yanglinqiang/ignite"
	"github.com/yanglinqiang/ignite/logger"
)

const component = "local"

// Engine is an in-process cache engine. It is safe for concurrent use by multiple goroutines.
type Engine struct {
	cfg    configuration
	log    *logger.Logger
	mux    sync.RWMutex
	caches map[string]*cache
	txs    *transactions
	closed atomic.Bool
}

// Start creates an engine.
func Start(_ context.Context, opts ...Option) (*Engine, error) {
	cfg := configuration{
		name:   "local-" + uuid.NewString(),
		stores: BigCacheStores(BigCacheConfig{}),
		codec:  Msgpack(),
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = logger.Nop()
	}
	e := &Engine{
		cfg:    cfg,
		log:    cfg.logger,
		caches: make(map[string]*cache),
	}
	e.txs = newTransactions(e)
	e.log.Infof("started local engine %s, codec=%s", cfg.name, cfg.codec.Name())
	return e, nil
}

// Open starts an engine and wraps it into a facade root.
func Open(ctx context.Context, opts ...Option) (ignite.Ignite, error) {
	e, err := Start(ctx, opts...)
	if err != nil {
		return ignite.Ignite{}, err
	}
	return ignite.New(e), nil
}

func (e *Engine) Name() string {
	return e.cfg.name
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return newError(ignite.InvalidNodeState, "engine %s is closed", e.cfg.name)
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return "", newError(ignite.IllegalArgument, "cache name is empty")
	}
	return name, nil
}

func (e *Engine) GetCache(_ context.Context, name string) (ignite.CacheImpl, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	e.mux.RLock()
	defer e.mux.RUnlock()
	c, ok := e.caches[name]
	if !ok {
		return nil, newError(ignite.CacheDoesNotExists, "cache %q does not exist", name)
	}
	return c, nil
}

func (e *Engine) GetOrCreateCache(ctx context.Context, name string) (ignite.CacheImpl, error) {
	return e.createCache(ctx, name, true)
}

func (e *Engine) CreateCache(ctx context.Context, name string) (ignite.CacheImpl, error) {
	return e.createCache(ctx, name, false)
}

func (e *Engine) createCache(ctx context.Context, name string, allowExisting bool) (ignite.CacheImpl, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	e.mux.Lock()
	defer e.mux.Unlock()
	if c, ok := e.caches[name]; ok {
		if allowExisting {
			return c, nil
		}
		return nil, newError(ignite.CacheExists, "cache %q already exists", name)
	}
	store, err := e.cfg.stores(ctx, name)
	if err != nil {
		return nil, storeError("create store", err)
	}
	c := newCache(e, name, store)
	e.caches[name] = c
	e.log.Debugf("created cache %s", name)
	return c, nil
}

func (e *Engine) CacheNames(context.Context) ([]string, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	e.mux.RLock()
	names := lo.Keys(e.caches)
	e.mux.RUnlock()
	sort.Strings(names)
	return names, nil
}

func (e *Engine) DestroyCache(ctx context.Context, name string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	e.mux.Lock()
	c, ok := e.caches[name]
	if ok {
		delete(e.caches, name)
	}
	e.mux.Unlock()
	if !ok {
		return newError(ignite.CacheDoesNotExists, "cache %q does not exist", name)
	}
	e.log.Debugf("destroying cache %s", name)
	return c.destroy(ctx)
}

func (e *Engine) GetTransactions() ignite.TransactionsImpl {
	return e.txs
}

// Close rolls back active transactions and closes every cache store.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.txs.rollbackAll(ctx)
	e.mux.Lock()
	caches := lo.Values(e.caches)
	e.caches = make(map[string]*cache)
	e.mux.Unlock()
	var errs []error
	for _, c := range caches {
		if err := c.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cache %s: %w", c.name, err))
		}
	}
	e.log.Infof("closed local engine %s", e.cfg.name)
	if len(errs) > 0 {
		return storeError("close", errors.Join(errs...))
	}
	return nil
}

func newError(code ignite.ErrorCode, format string, args ...any) *ignite.IgniteError {
	return ignite.Errorf(code, format, args...).WithComponent(component)
}

func storeError(op string, err error) *ignite.IgniteError {
	return ignite.Errorf(ignite.Failed, "%s failed: %s", op, err).WithComponent(component).WithCause(err)
}
