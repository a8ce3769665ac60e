package ignite

import (
	"context"
	"fmt"
	"time"

	"github.com/yanglinqiang/ignite/internal/shared"
)

type TxConcurrency int8

const (
	Optimistic TxConcurrency = iota
	Pessimistic
)

func (c TxConcurrency) String() string {
	switch c {
	case Optimistic:
		return "OPTIMISTIC"
	case Pessimistic:
		return "PESSIMISTIC"
	default:
		return fmt.Sprintf("TxConcurrency(%d)", int8(c))
	}
}

type TxIsolation int8

const (
	ReadCommitted TxIsolation = iota
	RepeatableRead
	Serializable
)

func (i TxIsolation) String() string {
	switch i {
	case ReadCommitted:
		return "READ_COMMITTED"
	case RepeatableRead:
		return "REPEATABLE_READ"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return fmt.Sprintf("TxIsolation(%d)", int8(i))
	}
}

// TxConfig holds the parameters of a transaction. A zero Timeout means no timeout.
type TxConfig struct {
	Concurrency TxConcurrency
	Isolation   TxIsolation
	Timeout     time.Duration
	Label       string
}

type TxOption func(cfg *TxConfig)

func WithConcurrency(c TxConcurrency) TxOption {
	return func(cfg *TxConfig) {
		cfg.Concurrency = c
	}
}

func WithIsolation(i TxIsolation) TxOption {
	return func(cfg *TxConfig) {
		cfg.Isolation = i
	}
}

// WithTimeout sets the transaction timeout, negative values are treated as zero.
func WithTimeout(timeout time.Duration) TxOption {
	return func(cfg *TxConfig) {
		if timeout < 0 {
			timeout = 0
		}
		cfg.Timeout = timeout
	}
}

func WithLabel(label string) TxOption {
	return func(cfg *TxConfig) {
		cfg.Label = label
	}
}

// Transactions starts transactions on the engine. The zero value and handles obtained from an
// invalid [Ignite] are invalid.
type Transactions struct {
	impl  TransactionsImpl
	owner *shared.Ref[IgniteImpl]
}

func (t Transactions) IsValid() bool {
	return t.impl != nil && t.owner.Valid()
}

// TxStart starts a transaction, by default PESSIMISTIC and REPEATABLE_READ without timeout.
// Cache operations join the transaction when called with the context returned by
// [Transaction.Context]. Transactions can not be nested within one context.
func (t Transactions) TxStart(ctx context.Context, opts ...TxOption) (*Transaction, error) {
	if !t.IsValid() {
		return nil, invalidInstance()
	}
	if tx, ok := TransactionFromContext(ctx); ok && tx.Active() {
		return nil, NewError(TxFailed, "transaction is already started in this context")
	}
	cfg := TxConfig{
		Concurrency: Pessimistic,
		Isolation:   RepeatableRead,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	impl, err := t.impl.TxStart(ctx, cfg)
	if err != nil {
		return nil, toError(err)
	}
	owner := t.owner.Clone()
	if owner == nil {
		_ = impl.Rollback(ctx)
		return nil, invalidInstance()
	}
	return &Transaction{impl: impl, owner: owner, cfg: cfg}, nil
}

// Close releases the handle's ownership of the engine connection.
func (t Transactions) Close(ctx context.Context) error {
	return toError(t.owner.Release(ctx))
}

// Transaction is a started transaction. It is finished by Commit, Rollback or Close.
type Transaction struct {
	impl  TransactionImpl
	owner *shared.Ref[IgniteImpl]
	cfg   TxConfig
}

type txContextKey struct{}

// Context returns a child of ctx bound to the transaction.
func (tx *Transaction) Context(ctx context.Context) context.Context {
	return ContextWithTransaction(ctx, tx.impl)
}

// ContextWithTransaction binds an engine transaction to ctx, see [TransactionFromContext].
func ContextWithTransaction(ctx context.Context, tx TransactionImpl) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TransactionFromContext returns the engine transaction bound to ctx, if any.
func TransactionFromContext(ctx context.Context) (TransactionImpl, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(TransactionImpl)
	return tx, ok
}

func (tx *Transaction) Config() TxConfig {
	return tx.cfg
}

// Active reports whether the transaction was neither committed nor rolled back.
func (tx *Transaction) Active() bool {
	return tx.impl.Active()
}

func (tx *Transaction) Commit(ctx context.Context) error {
	return tx.finish(ctx, tx.impl.Commit)
}

func (tx *Transaction) Rollback(ctx context.Context) error {
	return tx.finish(ctx, tx.impl.Rollback)
}

// Close rolls the transaction back if it is still active.
func (tx *Transaction) Close(ctx context.Context) error {
	if !tx.impl.Active() {
		return toError(tx.owner.Release(ctx))
	}
	return tx.Rollback(ctx)
}

func (tx *Transaction) finish(ctx context.Context, end func(ctx context.Context) error) error {
	if !tx.impl.Active() {
		return NewError(TxFailed, "transaction is already finished")
	}
	err := end(ctx)
	if releaseErr := tx.owner.Release(ctx); err == nil {
		err = releaseErr
	}
	return toError(err)
}
