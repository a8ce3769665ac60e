package ignite_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanglinqiang/ignite"
)

// fakeIgnite is an in-memory engine used to observe what the facade forwards.
type fakeIgnite struct {
	name   string
	mux    sync.Mutex
	caches map[string]*fakeCache
	closed atomic.Int32
	calls  atomic.Int32
	txs    *fakeTransactions
	failOn error
}

func newFakeIgnite(name string) *fakeIgnite {
	return &fakeIgnite{name: name, caches: make(map[string]*fakeCache), txs: &fakeTransactions{}}
}

func (f *fakeIgnite) Name() string {
	return f.name
}

func (f *fakeIgnite) GetCache(_ context.Context, name string) (ignite.CacheImpl, error) {
	f.calls.Add(1)
	if f.failOn != nil {
		return nil, f.failOn
	}
	f.mux.Lock()
	defer f.mux.Unlock()
	cache, ok := f.caches[name]
	if !ok {
		return nil, ignite.Errorf(ignite.CacheDoesNotExists, "cache %q does not exist", name).WithComponent("fake")
	}
	return cache, nil
}

func (f *fakeIgnite) GetOrCreateCache(_ context.Context, name string) (ignite.CacheImpl, error) {
	f.calls.Add(1)
	if f.failOn != nil {
		return nil, f.failOn
	}
	f.mux.Lock()
	defer f.mux.Unlock()
	cache, ok := f.caches[name]
	if !ok {
		cache = newFakeCache(name)
		f.caches[name] = cache
	}
	return cache, nil
}

func (f *fakeIgnite) CreateCache(_ context.Context, name string) (ignite.CacheImpl, error) {
	f.calls.Add(1)
	if f.failOn != nil {
		return nil, f.failOn
	}
	f.mux.Lock()
	defer f.mux.Unlock()
	if _, ok := f.caches[name]; ok {
		return nil, ignite.Errorf(ignite.CacheExists, "cache %q already exists", name).WithComponent("fake")
	}
	cache := newFakeCache(name)
	f.caches[name] = cache
	return cache, nil
}

func (f *fakeIgnite) CacheNames(context.Context) ([]string, error) {
	f.calls.Add(1)
	f.mux.Lock()
	defer f.mux.Unlock()
	names := make([]string, 0, len(f.caches))
	for name := range f.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeIgnite) DestroyCache(_ context.Context, name string) error {
	f.calls.Add(1)
	f.mux.Lock()
	defer f.mux.Unlock()
	if _, ok := f.caches[name]; !ok {
		return ignite.Errorf(ignite.CacheDoesNotExists, "cache %q does not exist", name)
	}
	delete(f.caches, name)
	return nil
}

func (f *fakeIgnite) GetTransactions() ignite.TransactionsImpl {
	f.calls.Add(1)
	return f.txs
}

func (f *fakeIgnite) Close(context.Context) error {
	f.closed.Add(1)
	return nil
}

type fakeCache struct {
	name    string
	mux     sync.Mutex
	entries map[any]any
	expiry  []time.Duration
}

func newFakeCache(name string) *fakeCache {
	return &fakeCache{name: name, entries: make(map[any]any)}
}

func (c *fakeCache) Name() string {
	return c.name
}

func (c *fakeCache) Get(_ context.Context, key any) (any, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.entries[key], nil
}

func (c *fakeCache) GetAll(_ context.Context, keys []any) ([]ignite.KeyValue, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	res := make([]ignite.KeyValue, 0, len(keys))
	for _, k := range keys {
		if v, ok := c.entries[k]; ok {
			res = append(res, ignite.KeyValue{Key: k, Value: v})
		}
	}
	return res, nil
}

func (c *fakeCache) ContainsKey(_ context.Context, key any) (bool, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	_, ok := c.entries[key]
	return ok, nil
}

func (c *fakeCache) ContainsKeys(_ context.Context, keys []any) (bool, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, k := range keys {
		if _, ok := c.entries[k]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (c *fakeCache) Put(_ context.Context, key any, value any) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.entries[key] = value
	return nil
}

func (c *fakeCache) PutAll(_ context.Context, entries []ignite.KeyValue) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, e := range entries {
		c.entries[e.Key] = e.Value
	}
	return nil
}

func (c *fakeCache) PutIfAbsent(_ context.Context, key any, value any) (bool, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.entries[key]; ok {
		return false, nil
	}
	c.entries[key] = value
	return true, nil
}

func (c *fakeCache) GetAndPut(_ context.Context, key any, value any) (any, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	old := c.entries[key]
	c.entries[key] = value
	return old, nil
}

func (c *fakeCache) GetAndRemove(_ context.Context, key any) (any, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	old := c.entries[key]
	delete(c.entries, key)
	return old, nil
}

func (c *fakeCache) GetAndReplace(_ context.Context, key any, value any) (any, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	old, ok := c.entries[key]
	if ok {
		c.entries[key] = value
	}
	return old, nil
}

func (c *fakeCache) Replace(_ context.Context, key any, value any) (bool, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false, nil
	}
	c.entries[key] = value
	return true, nil
}

func (c *fakeCache) ReplaceIfEquals(_ context.Context, key any, oldValue any, newValue any) (bool, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if cur, ok := c.entries[key]; !ok || cur != oldValue {
		return false, nil
	}
	c.entries[key] = newValue
	return true, nil
}

func (c *fakeCache) Remove(_ context.Context, key any) (bool, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok, nil
}

func (c *fakeCache) RemoveIfEquals(_ context.Context, key any, oldValue any) (bool, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if cur, ok := c.entries[key]; !ok || cur != oldValue {
		return false, nil
	}
	delete(c.entries, key)
	return true, nil
}

func (c *fakeCache) RemoveAll(_ context.Context, keys []any) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *fakeCache) Clear(context.Context) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.entries = make(map[any]any)
	return nil
}

func (c *fakeCache) Size(context.Context) (int64, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	return int64(len(c.entries)), nil
}

// fakeExpiryCache adds expiry policy support on top of fakeCache.
type fakeExpiryCache struct {
	*fakeCache
}

func (c fakeExpiryCache) WithExpiryPolicy(creation, access, update time.Duration) ignite.CacheImpl {
	return &fakeCache{name: c.name, entries: c.entries, expiry: []time.Duration{creation, access, update}}
}

type fakeTransactions struct {
	started atomic.Int32
	last    atomic.Pointer[fakeTx]
}

func (t *fakeTransactions) TxStart(_ context.Context, cfg ignite.TxConfig) (ignite.TransactionImpl, error) {
	t.started.Add(1)
	tx := &fakeTx{cfg: cfg}
	tx.active.Store(true)
	t.last.Store(tx)
	return tx, nil
}

type fakeTx struct {
	cfg        ignite.TxConfig
	active     atomic.Bool
	committed  atomic.Bool
	rolledBack atomic.Bool
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.active.Store(false)
	tx.committed.Store(true)
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.active.Store(false)
	tx.rolledBack.Store(true)
	return nil
}

func (tx *fakeTx) Active() bool {
	return tx.active.Load()
}
