package thin

import (
	"context"
	"time"

	"github.com/yanglinqiang/ignite"
)

const (
	keepBinaryMask    uint8 = 0x01
	transactionalMask uint8 = 0x02
	expiryPolicyMask  uint8 = 0x04
)

const (
	opCacheGet              int16 = 1000
	opCachePut              int16 = 1001
	opCachePutIfAbsent      int16 = 1002
	opCacheGetAll           int16 = 1003
	opCachePutAll           int16 = 1004
	opCacheGetAndPut        int16 = 1005
	opCacheGetAndReplace    int16 = 1006
	opCacheGetAndRemove     int16 = 1007
	opCacheReplace          int16 = 1009
	opCacheReplaceIfEquals  int16 = 1010
	opCacheContainsKey      int16 = 1011
	opCacheContainsKeys     int16 = 1012
	opCacheRemoveKey        int16 = 1016
	opCacheRemoveIfEquals   int16 = 1017
	opCacheRemoveKeys       int16 = 1018
	opCacheRemoveAll        int16 = 1019
	opCacheGetSize          int16 = 1020
	opCacheGetConfiguration int16 = 1055
)

type expiryPolicy struct {
	creation time.Duration
	access   time.Duration
	update   time.Duration
}

// cache is a cache hosted by the cluster. Keys and values are sent in the Ignite binary format,
// see [marshal] for the supported Go types.
type cache struct {
	cli          *Client
	expiryPolicy *expiryPolicy
	name         string
	id           int32
}

func (c *cache) Name() string {
	return c.name
}

// WithExpiryPolicy returns a handle to the same cache that applies the expiry policy to every
// operation. Requires protocol 1.6.0.
func (c *cache) WithExpiryPolicy(creation time.Duration, access time.Duration, update time.Duration) ignite.CacheImpl {
	return &cache{
		cli:  c.cli,
		name: c.name,
		id:   c.id,
		expiryPolicy: &expiryPolicy{
			creation: creation,
			access:   access,
			update:   update,
		},
	}
}

func (c *cache) Get(ctx context.Context, key interface{}) (interface{}, error) {
	k, err := keyBytes(key)
	if err != nil {
		return nil, err
	}
	tx, err := c.cli.txs.fromContext(ctx)
	if err != nil {
		return nil, err
	}
	useNear := tx == nil && c.expiryPolicy == nil
	if useNear {
		if data, ok := c.cli.near.get(c.id, k); ok {
			return unmarshal(NewBinaryInputStream(data, 0))
		}
	}
	var ret interface{}
	err = c.request(ctx, tx, opCacheGet, func(output BinaryOutputStream) error {
		output.WriteBytes(k)
		return nil
	}, func(input BinaryInputStream) (err error) {
		ret, err = unmarshal(input)
		return err
	})
	if err == nil && useNear && ret != nil {
		if data, err0 := marshalToBytes(ret); err0 == nil {
			c.cli.near.set(c.id, k, data)
		}
	}
	return ret, err
}

// GetAll returns the entries found for keys, missing keys are skipped.
func (c *cache) GetAll(ctx context.Context, keys []interface{}) ([]ignite.KeyValue, error) {
	ks, err := keysBytes(keys)
	if err != nil {
		return nil, err
	}
	var ret []ignite.KeyValue
	err = c.requestInContext(ctx, opCacheGetAll, func(output BinaryOutputStream) error {
		return writeSequence(output, len(ks), func(output BinaryOutputStream, idx int) error {
			output.WriteBytes(ks[idx])
			return nil
		})
	}, func(input BinaryInputStream) (err error) {
		ret, err = readSlice(input, func(_ int, reader BinaryInputStream) (ignite.KeyValue, error) {
			k, err0 := unmarshal(reader)
			if err0 != nil {
				return ignite.KeyValue{}, err0
			}
			v, err0 := unmarshal(reader)
			if err0 != nil {
				return ignite.KeyValue{}, err0
			}
			return ignite.KeyValue{Key: k, Value: v}, nil
		})
		return err
	})
	return ret, err
}

func (c *cache) ContainsKey(ctx context.Context, key interface{}) (bool, error) {
	k, err := keyBytes(key)
	if err != nil {
		return false, err
	}
	return c.boolRequest(ctx, opCacheContainsKey, k)
}

// ContainsKeys reports whether all keys are present.
func (c *cache) ContainsKeys(ctx context.Context, keys []interface{}) (bool, error) {
	ks, err := keysBytes(keys)
	if err != nil {
		return false, err
	}
	var ret bool
	err = c.requestInContext(ctx, opCacheContainsKeys, func(output BinaryOutputStream) error {
		return writeSequence(output, len(ks), func(output BinaryOutputStream, idx int) error {
			output.WriteBytes(ks[idx])
			return nil
		})
	}, func(input BinaryInputStream) (err error) {
		ret, err = readBool(input)
		return err
	})
	return ret, err
}

func (c *cache) Put(ctx context.Context, key interface{}, value interface{}) error {
	k, v, err := entryBytes(key, value)
	if err != nil {
		return err
	}
	defer c.cli.near.invalidate(c.id, k)
	return c.requestInContext(ctx, opCachePut, func(output BinaryOutputStream) error {
		output.WriteBytes(k)
		output.WriteBytes(v)
		return nil
	}, nil)
}

func (c *cache) PutAll(ctx context.Context, entries []ignite.KeyValue) error {
	ks := make([][]byte, len(entries))
	vs := make([][]byte, len(entries))
	for i, entry := range entries {
		var err error
		if ks[i], vs[i], err = entryBytes(entry.Key, entry.Value); err != nil {
			return err
		}
	}
	defer func() {
		for _, k := range ks {
			c.cli.near.invalidate(c.id, k)
		}
	}()
	return c.requestInContext(ctx, opCachePutAll, func(output BinaryOutputStream) error {
		return writeSequence(output, len(ks), func(output BinaryOutputStream, idx int) error {
			output.WriteBytes(ks[idx])
			output.WriteBytes(vs[idx])
			return nil
		})
	}, nil)
}

func (c *cache) PutIfAbsent(ctx context.Context, key interface{}, value interface{}) (bool, error) {
	k, v, err := entryBytes(key, value)
	if err != nil {
		return false, err
	}
	defer c.cli.near.invalidate(c.id, k)
	return c.boolRequest(ctx, opCachePutIfAbsent, k, v)
}

func (c *cache) GetAndPut(ctx context.Context, key interface{}, value interface{}) (interface{}, error) {
	k, v, err := entryBytes(key, value)
	if err != nil {
		return nil, err
	}
	defer c.cli.near.invalidate(c.id, k)
	return c.valueRequest(ctx, opCacheGetAndPut, k, v)
}

func (c *cache) GetAndRemove(ctx context.Context, key interface{}) (interface{}, error) {
	k, err := keyBytes(key)
	if err != nil {
		return nil, err
	}
	defer c.cli.near.invalidate(c.id, k)
	return c.valueRequest(ctx, opCacheGetAndRemove, k)
}

// GetAndReplace replaces the value only if the key is present and returns the old value.
func (c *cache) GetAndReplace(ctx context.Context, key interface{}, value interface{}) (interface{}, error) {
	k, v, err := entryBytes(key, value)
	if err != nil {
		return nil, err
	}
	defer c.cli.near.invalidate(c.id, k)
	return c.valueRequest(ctx, opCacheGetAndReplace, k, v)
}

func (c *cache) Replace(ctx context.Context, key interface{}, value interface{}) (bool, error) {
	k, v, err := entryBytes(key, value)
	if err != nil {
		return false, err
	}
	defer c.cli.near.invalidate(c.id, k)
	return c.boolRequest(ctx, opCacheReplace, k, v)
}

func (c *cache) ReplaceIfEquals(ctx context.Context, key interface{}, oldValue interface{}, newValue interface{}) (bool, error) {
	k, oldV, err := entryBytes(key, oldValue)
	if err != nil {
		return false, err
	}
	newV, err := valueBytes(newValue)
	if err != nil {
		return false, err
	}
	defer c.cli.near.invalidate(c.id, k)
	return c.boolRequest(ctx, opCacheReplaceIfEquals, k, oldV, newV)
}

func (c *cache) Remove(ctx context.Context, key interface{}) (bool, error) {
	k, err := keyBytes(key)
	if err != nil {
		return false, err
	}
	defer c.cli.near.invalidate(c.id, k)
	return c.boolRequest(ctx, opCacheRemoveKey, k)
}

func (c *cache) RemoveIfEquals(ctx context.Context, key interface{}, oldValue interface{}) (bool, error) {
	k, v, err := entryBytes(key, oldValue)
	if err != nil {
		return false, err
	}
	defer c.cli.near.invalidate(c.id, k)
	return c.boolRequest(ctx, opCacheRemoveIfEquals, k, v)
}

// RemoveAll removes the given keys. An empty key set is a no-op.
func (c *cache) RemoveAll(ctx context.Context, keys []interface{}) error {
	ks, err := keysBytes(keys)
	if err != nil || len(ks) == 0 {
		return err
	}
	defer func() {
		for _, k := range ks {
			c.cli.near.invalidate(c.id, k)
		}
	}()
	return c.requestInContext(ctx, opCacheRemoveKeys, func(output BinaryOutputStream) error {
		return writeSequence(output, len(ks), func(output BinaryOutputStream, idx int) error {
			output.WriteBytes(ks[idx])
			return nil
		})
	}, nil)
}

// Clear removes every entry. It joins the transaction bound to ctx.
func (c *cache) Clear(ctx context.Context) error {
	defer c.cli.near.clear()
	return c.requestInContext(ctx, opCacheRemoveAll, func(BinaryOutputStream) error {
		return nil
	}, nil)
}

// Size returns the number of entries in all cache storages.
func (c *cache) Size(ctx context.Context) (int64, error) {
	var size int64
	err := c.requestInContext(ctx, opCacheGetSize, func(output BinaryOutputStream) error {
		output.WriteInt32(0) // no peek modes
		return nil
	}, func(input BinaryInputStream) error {
		if err := ensureAvailable(input, longBytes); err != nil {
			return err
		}
		size = input.ReadInt64()
		return nil
	})
	return size, err
}

func (c *cache) boolRequest(ctx context.Context, opCode int16, args ...[]byte) (bool, error) {
	var ret bool
	err := c.requestInContext(ctx, opCode, writeArgs(args), func(input BinaryInputStream) (err error) {
		ret, err = readBool(input)
		return err
	})
	return ret, err
}

func (c *cache) valueRequest(ctx context.Context, opCode int16, args ...[]byte) (interface{}, error) {
	var ret interface{}
	err := c.requestInContext(ctx, opCode, writeArgs(args), func(input BinaryInputStream) (err error) {
		ret, err = unmarshal(input)
		return err
	})
	return ret, err
}

func (c *cache) requestInContext(ctx context.Context, opCode int16, requestWriter func(output BinaryOutputStream) error, responseReader func(input BinaryInputStream) error) error {
	tx, err := c.cli.txs.fromContext(ctx)
	if err != nil {
		return err
	}
	return c.request(ctx, tx, opCode, requestWriter, responseReader)
}

// request sends a cache operation. Operations of a transaction go to the connection the
// transaction was started on.
func (c *cache) request(ctx context.Context, tx *transaction, opCode int16, requestWriter func(output BinaryOutputStream) error, responseReader func(input BinaryInputStream) error) error {
	var ch channel = c.cli.ch
	if tx != nil {
		if err := tx.ensureActive(); err != nil {
			return err
		}
		ch = tx.ch
		if opCode != opCacheGet && opCode != opCacheGetAll && opCode != opCacheContainsKey && opCode != opCacheContainsKeys && opCode != opCacheGetSize {
			tx.wrote.Store(true)
		}
	}
	var err error
	ch.send(ctx, opCode, func(output BinaryOutputStream) error {
		if err0 := c.writeCacheInfo(ch.protocolContext(), tx, output); err0 != nil {
			return err0
		}
		return requestWriter(output)
	}, func(input BinaryInputStream, err0 error) {
		if err0 != nil {
			err = err0
			return
		}
		if responseReader != nil {
			err = responseReader(input)
		}
	})
	return toIgniteError(err)
}

func (c *cache) writeCacheInfo(protoCtx *ProtocolContext, tx *transaction, output BinaryOutputStream) error {
	output.WriteInt32(c.id)
	var flag = keepBinaryMask
	if tx != nil {
		if err := protoCtx.require(capTransactions); err != nil {
			return err
		}
		flag |= transactionalMask
	}
	if c.expiryPolicy != nil {
		if err := protoCtx.require(capExpiryPolicy); err != nil {
			return err
		}
		flag |= expiryPolicyMask
	}
	output.WriteUInt8(flag)
	if tx != nil {
		output.WriteInt32(tx.id)
	}
	if c.expiryPolicy != nil {
		output.WriteInt64(durationToMillis(c.expiryPolicy.creation))
		output.WriteInt64(durationToMillis(c.expiryPolicy.update))
		output.WriteInt64(durationToMillis(c.expiryPolicy.access))
	}
	return nil
}

func durationToMillis(dur time.Duration) int64 {
	if dur > 0 {
		return dur.Milliseconds()
	} else if dur <= ignite.DurationUnchanged {
		return int64(ignite.DurationUnchanged)
	}
	return int64(dur)
}

func writeArgs(args [][]byte) func(output BinaryOutputStream) error {
	return func(output BinaryOutputStream) error {
		for _, arg := range args {
			output.WriteBytes(arg)
		}
		return nil
	}
}

func readBool(input BinaryInputStream) (bool, error) {
	if err := ensureAvailable(input, boolBytes); err != nil {
		return false, err
	}
	return input.ReadBool(), nil
}

func marshalToBytes(val interface{}) ([]byte, error) {
	output := NewBinaryOutputStream(16)
	if err := marshal(output, val); err != nil {
		return nil, err
	}
	return output.Data(), nil
}

func keyBytes(key interface{}) ([]byte, error) {
	if key == nil {
		return nil, illegalArgument("nil key")
	}
	data, err := marshalToBytes(key)
	if err != nil {
		return nil, toIgniteError(err)
	}
	return data, nil
}

func valueBytes(value interface{}) ([]byte, error) {
	if value == nil {
		return nil, illegalArgument("nil value")
	}
	data, err := marshalToBytes(value)
	if err != nil {
		return nil, toIgniteError(err)
	}
	return data, nil
}

func entryBytes(key interface{}, value interface{}) ([]byte, []byte, error) {
	k, err := keyBytes(key)
	if err != nil {
		return nil, nil, err
	}
	v, err := valueBytes(value)
	if err != nil {
		return nil, nil, err
	}
	return k, v, nil
}

func keysBytes(keys []interface{}) ([][]byte, error) {
	ret := make([][]byte, len(keys))
	for i, key := range keys {
		var err error
		if ret[i], err = keyBytes(key); err != nil {
			return nil, err
		}
	}
	return ret, nil
}
