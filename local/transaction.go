package local

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/yanglinqiang/ignite"
)

// transactions keeps an undo log per transaction. Commit discards the log, rollback replays it
// backwards. Concurrency and isolation settings are accepted but transactions are not isolated
// from each other.
type transactions struct {
	engine *Engine
	idGen  atomic.Int64
	active sync.Map
}

func newTransactions(e *Engine) *transactions {
	return &transactions{engine: e}
}

func (t *transactions) TxStart(ctx context.Context, cfg ignite.TxConfig) (ignite.TransactionImpl, error) {
	if err := t.engine.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(ignite.Failed, "operation cancelled: %s", err).WithCause(err)
	}
	tx := &transaction{
		owner:   t,
		id:      t.idGen.Add(1),
		cfg:     cfg,
		started: time.Now(),
		touched: make(map[undoKey]struct{}),
	}
	t.active.Store(tx.id, tx)
	t.engine.log.Tracef("started transaction %d [concurrency=%s, isolation=%s, timeout=%s, label=%q]",
		tx.id, cfg.Concurrency, cfg.Isolation, cfg.Timeout, cfg.Label)
	return tx, nil
}

func (t *transactions) fromContext(ctx context.Context) (*transaction, error) {
	impl, ok := ignite.TransactionFromContext(ctx)
	if !ok {
		return nil, nil
	}
	tx, ok := impl.(*transaction)
	if !ok || tx.owner != t {
		return nil, newError(ignite.IllegalArgument, "transaction was started by another engine")
	}
	return tx, nil
}

func (t *transactions) rollbackAll(ctx context.Context) {
	t.active.Range(func(_, val any) bool {
		if tx, ok := val.(*transaction); ok {
			if err := tx.Rollback(ctx); err != nil {
				t.engine.log.Warnf("failed to roll back transaction %d: %s", tx.id, err)
			}
		}
		return true
	})
}

type txState int

const (
	txActive txState = iota
	txCommitted
	txRolledBack
)

func (s txState) String() string {
	switch s {
	case txActive:
		return "active"
	case txCommitted:
		return "committed"
	default:
		return "rolled back"
	}
}

type undoKey struct {
	cache *cache
	key   string
}

type undoEntry struct {
	undoKey
	prev    []byte
	existed bool
}

type transaction struct {
	owner   *transactions
	id      int64
	cfg     ignite.TxConfig
	started time.Time
	mux     sync.Mutex
	state   txState
	undo    []undoEntry
	touched map[undoKey]struct{}
}

func (tx *transaction) Active() bool {
	tx.mux.Lock()
	defer tx.mux.Unlock()
	return tx.state == txActive
}

func (tx *transaction) timedOut() bool {
	return tx.cfg.Timeout > 0 && time.Since(tx.started) > tx.cfg.Timeout
}

// ensureActive fails if the transaction is finished and rolls it back once its timeout elapsed.
// It must not be called with a cache lock held.
func (tx *transaction) ensureActive(ctx context.Context) error {
	tx.mux.Lock()
	if tx.state != txActive {
		state := tx.state
		tx.mux.Unlock()
		return newError(ignite.TxFailed, "transaction %d is %s", tx.id, state)
	}
	if !tx.timedOut() {
		tx.mux.Unlock()
		return nil
	}
	undo := tx.finishLocked(txRolledBack)
	tx.mux.Unlock()
	return tx.timeoutError(tx.replay(ctx, undo))
}

// record saves the current value of key before its first modification in the transaction.
// The caller holds c.mux.
func (tx *transaction) record(ctx context.Context, c *cache, key string) error {
	tx.mux.Lock()
	defer tx.mux.Unlock()
	if tx.state != txActive {
		return newError(ignite.TxFailed, "transaction %d is %s", tx.id, tx.state)
	}
	uk := undoKey{cache: c, key: key}
	if _, ok := tx.touched[uk]; ok {
		return nil
	}
	prev, existed, err := c.store.Get(ctx, key)
	if err != nil {
		return storeError("transaction log", err)
	}
	tx.touched[uk] = struct{}{}
	tx.undo = append(tx.undo, undoEntry{undoKey: uk, prev: prev, existed: existed})
	return nil
}

func (tx *transaction) Commit(ctx context.Context) error {
	tx.mux.Lock()
	if tx.state != txActive {
		state := tx.state
		tx.mux.Unlock()
		return newError(ignite.TxFailed, "transaction %d is %s", tx.id, state)
	}
	if tx.timedOut() {
		undo := tx.finishLocked(txRolledBack)
		tx.mux.Unlock()
		return tx.timeoutError(tx.replay(ctx, undo))
	}
	tx.finishLocked(txCommitted)
	tx.mux.Unlock()
	tx.owner.engine.log.Tracef("committed transaction %d", tx.id)
	return nil
}

func (tx *transaction) Rollback(ctx context.Context) error {
	tx.mux.Lock()
	if tx.state != txActive {
		state := tx.state
		tx.mux.Unlock()
		return newError(ignite.TxFailed, "transaction %d is %s", tx.id, state)
	}
	undo := tx.finishLocked(txRolledBack)
	tx.mux.Unlock()
	if err := tx.replay(ctx, undo); err != nil {
		return err
	}
	tx.owner.engine.log.Tracef("rolled back transaction %d", tx.id)
	return nil
}

func (tx *transaction) finishLocked(state txState) []undoEntry {
	undo := tx.undo
	tx.state = state
	tx.undo = nil
	tx.touched = nil
	tx.owner.active.Delete(tx.id)
	return undo
}

// replay restores the logged values, newest first.
func (tx *transaction) replay(ctx context.Context, undo []undoEntry) error {
	var errs []error
	for _, entry := range lo.Reverse(undo) {
		if err := entry.restore(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return storeError("rollback", errors.Join(errs...))
	}
	return nil
}

func (e undoEntry) restore(ctx context.Context) error {
	c := e.cache
	if c.destroyed.Load() {
		return nil
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	if e.existed {
		return c.store.Set(ctx, e.key, e.prev)
	}
	_, err := c.store.Delete(ctx, e.key)
	return err
}

func (tx *transaction) timeoutError(rollbackErr error) error {
	err := newError(ignite.TxFailed, "transaction %d timed out after %s and was rolled back", tx.id, tx.cfg.Timeout)
	if rollbackErr != nil {
		err.WithCause(rollbackErr)
	}
	return err
}
