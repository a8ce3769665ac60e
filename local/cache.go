package local

import (
	"bytes"
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/yanglinqiang/ignite"
)

// cache implements ignite.CacheImpl over a Store. Keys and values are encoded with the engine
// codec, compound operations are atomic per cache.
type cache struct {
	engine    *Engine
	name      string
	store     Store
	codec     Codec
	mux       sync.Mutex
	destroyed atomic.Bool
}

func newCache(e *Engine, name string, store Store) *cache {
	return &cache{engine: e, name: name, store: store, codec: e.cfg.codec}
}

func (c *cache) Name() string {
	return c.name
}

// begin validates the cache state and returns the transaction bound to ctx, if any.
func (c *cache) begin(ctx context.Context) (*transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(ignite.Failed, "operation cancelled: %s", err).WithCause(err)
	}
	if err := c.engine.checkOpen(); err != nil {
		return nil, err
	}
	if c.destroyed.Load() {
		return nil, newError(ignite.CacheDoesNotExists, "cache %q was destroyed", c.name)
	}
	tx, err := c.engine.txs.fromContext(ctx)
	if err != nil {
		return nil, err
	}
	if tx != nil {
		if err = tx.ensureActive(ctx); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

func (c *cache) encodeKey(key any) (string, error) {
	if isNil(key) {
		return "", newError(ignite.IllegalArgument, "nil key")
	}
	b, err := c.codec.Marshal(key)
	if err != nil {
		return "", newError(ignite.IllegalArgument, "failed to encode key of type %T: %s", key, err).WithCause(err)
	}
	return string(b), nil
}

// isNil reports whether v is nil or a typed nil that would be stored as an absent value.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func (c *cache) encodeKeys(keys []any) ([]string, error) {
	res := make([]string, len(keys))
	for i, key := range keys {
		k, err := c.encodeKey(key)
		if err != nil {
			return nil, err
		}
		res[i] = k
	}
	return res, nil
}

func (c *cache) encodeValue(value any) ([]byte, error) {
	if isNil(value) {
		return nil, newError(ignite.IllegalArgument, "nil value")
	}
	b, err := c.codec.Marshal(value)
	if err != nil {
		return nil, newError(ignite.IllegalArgument, "failed to encode value of type %T: %s", value, err).WithCause(err)
	}
	return b, nil
}

func (c *cache) decoded(data []byte, ok bool) any {
	if !ok {
		return nil
	}
	return payload{data: data, codec: c.codec}
}

func (c *cache) get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, storeError("get", err)
	}
	return b, ok, nil
}

// set and del must be called with c.mux held.
func (c *cache) set(ctx context.Context, tx *transaction, key string, value []byte) error {
	if tx != nil {
		if err := tx.record(ctx, c, key); err != nil {
			return err
		}
	}
	if err := c.store.Set(ctx, key, value); err != nil {
		return storeError("put", err)
	}
	return nil
}

func (c *cache) del(ctx context.Context, tx *transaction, key string) (bool, error) {
	if tx != nil {
		if err := tx.record(ctx, c, key); err != nil {
			return false, err
		}
	}
	ok, err := c.store.Delete(ctx, key)
	if err != nil {
		return false, storeError("remove", err)
	}
	return ok, nil
}

func (c *cache) Get(ctx context.Context, key any) (any, error) {
	if _, err := c.begin(ctx); err != nil {
		return nil, err
	}
	k, err := c.encodeKey(key)
	if err != nil {
		return nil, err
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	b, ok, err := c.get(ctx, k)
	if err != nil {
		return nil, err
	}
	return c.decoded(b, ok), nil
}

func (c *cache) GetAll(ctx context.Context, keys []any) ([]ignite.KeyValue, error) {
	if _, err := c.begin(ctx); err != nil {
		return nil, err
	}
	encoded, err := c.encodeKeys(keys)
	if err != nil {
		return nil, err
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	res := make([]ignite.KeyValue, 0, len(keys))
	for i, k := range encoded {
		b, ok, err := c.get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, ignite.KeyValue{Key: keys[i], Value: c.decoded(b, true)})
		}
	}
	return res, nil
}

func (c *cache) ContainsKey(ctx context.Context, key any) (bool, error) {
	return c.ContainsKeys(ctx, []any{key})
}

func (c *cache) ContainsKeys(ctx context.Context, keys []any) (bool, error) {
	if _, err := c.begin(ctx); err != nil {
		return false, err
	}
	encoded, err := c.encodeKeys(keys)
	if err != nil {
		return false, err
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, k := range encoded {
		_, ok, err := c.get(ctx, k)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c *cache) Put(ctx context.Context, key any, value any) error {
	return c.PutAll(ctx, []ignite.KeyValue{{Key: key, Value: value}})
}

func (c *cache) PutAll(ctx context.Context, entries []ignite.KeyValue) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, len(entries))
	values := make([][]byte, len(entries))
	for i, entry := range entries {
		if keys[i], err = c.encodeKey(entry.Key); err != nil {
			return err
		}
		if values[i], err = c.encodeValue(entry.Value); err != nil {
			return err
		}
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	for i := range keys {
		if err = c.set(ctx, tx, keys[i], values[i]); err != nil {
			return err
		}
	}
	return nil
}

// update runs fn on the current encoded value of key with the cache locked.
func (c *cache) update(ctx context.Context, key any, fn func(tx *transaction, k string, cur []byte, exists bool) error) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}
	k, err := c.encodeKey(key)
	if err != nil {
		return err
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	cur, exists, err := c.get(ctx, k)
	if err != nil {
		return err
	}
	return fn(tx, k, cur, exists)
}

func (c *cache) PutIfAbsent(ctx context.Context, key any, value any) (bool, error) {
	v, err := c.encodeValue(value)
	if err != nil {
		return false, err
	}
	var res bool
	err = c.update(ctx, key, func(tx *transaction, k string, _ []byte, exists bool) error {
		if exists {
			return nil
		}
		res = true
		return c.set(ctx, tx, k, v)
	})
	return res, err
}

func (c *cache) GetAndPut(ctx context.Context, key any, value any) (any, error) {
	v, err := c.encodeValue(value)
	if err != nil {
		return nil, err
	}
	var prev any
	err = c.update(ctx, key, func(tx *transaction, k string, cur []byte, exists bool) error {
		prev = c.decoded(cur, exists)
		return c.set(ctx, tx, k, v)
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

func (c *cache) GetAndRemove(ctx context.Context, key any) (any, error) {
	var prev any
	err := c.update(ctx, key, func(tx *transaction, k string, cur []byte, exists bool) error {
		if !exists {
			return nil
		}
		prev = c.decoded(cur, true)
		_, err := c.del(ctx, tx, k)
		return err
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

func (c *cache) GetAndReplace(ctx context.Context, key any, value any) (any, error) {
	v, err := c.encodeValue(value)
	if err != nil {
		return nil, err
	}
	var prev any
	err = c.update(ctx, key, func(tx *transaction, k string, cur []byte, exists bool) error {
		if !exists {
			return nil
		}
		prev = c.decoded(cur, true)
		return c.set(ctx, tx, k, v)
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

func (c *cache) Replace(ctx context.Context, key any, value any) (bool, error) {
	v, err := c.encodeValue(value)
	if err != nil {
		return false, err
	}
	var res bool
	err = c.update(ctx, key, func(tx *transaction, k string, _ []byte, exists bool) error {
		if !exists {
			return nil
		}
		res = true
		return c.set(ctx, tx, k, v)
	})
	return res, err
}

func (c *cache) ReplaceIfEquals(ctx context.Context, key any, oldValue any, newValue any) (bool, error) {
	oldV, err := c.encodeValue(oldValue)
	if err != nil {
		return false, err
	}
	newV, err := c.encodeValue(newValue)
	if err != nil {
		return false, err
	}
	var res bool
	err = c.update(ctx, key, func(tx *transaction, k string, cur []byte, exists bool) error {
		if !exists || !bytes.Equal(cur, oldV) {
			return nil
		}
		res = true
		return c.set(ctx, tx, k, newV)
	})
	return res, err
}

func (c *cache) Remove(ctx context.Context, key any) (bool, error) {
	var res bool
	err := c.update(ctx, key, func(tx *transaction, k string, _ []byte, exists bool) error {
		if !exists {
			return nil
		}
		var err error
		res, err = c.del(ctx, tx, k)
		return err
	})
	return res, err
}

func (c *cache) RemoveIfEquals(ctx context.Context, key any, oldValue any) (bool, error) {
	oldV, err := c.encodeValue(oldValue)
	if err != nil {
		return false, err
	}
	var res bool
	err = c.update(ctx, key, func(tx *transaction, k string, cur []byte, exists bool) error {
		if !exists || !bytes.Equal(cur, oldV) {
			return nil
		}
		var err error
		res, err = c.del(ctx, tx, k)
		return err
	})
	return res, err
}

func (c *cache) RemoveAll(ctx context.Context, keys []any) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}
	encoded, err := c.encodeKeys(keys)
	if err != nil {
		return err
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, k := range encoded {
		if _, err = c.del(ctx, tx, k); err != nil {
			return err
		}
	}
	return nil
}

func (c *cache) Clear(ctx context.Context) error {
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	if tx != nil {
		var keys []string
		if err = c.store.Range(ctx, func(key string, _ []byte) bool {
			keys = append(keys, key)
			return true
		}); err != nil {
			return storeError("clear", err)
		}
		for _, k := range keys {
			if err = tx.record(ctx, c, k); err != nil {
				return err
			}
		}
	}
	if err = c.store.Clear(ctx); err != nil {
		return storeError("clear", err)
	}
	return nil
}

func (c *cache) Size(ctx context.Context) (int64, error) {
	if _, err := c.begin(ctx); err != nil {
		return 0, err
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	n, err := c.store.Len(ctx)
	if err != nil {
		return 0, storeError("size", err)
	}
	return n, nil
}

func (c *cache) destroy(ctx context.Context) error {
	c.destroyed.Store(true)
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.store.Clear(ctx); err != nil {
		return storeError("destroy", err)
	}
	if err := c.store.Close(ctx); err != nil {
		return storeError("destroy", err)
	}
	return nil
}

func (c *cache) close(ctx context.Context) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.store.Close(ctx)
}
