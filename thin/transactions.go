package thin

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/yanglinqiang/ignite"
)

const (
	opTxStart int16 = 4000
	opTxEnd   int16 = 4001
)

type transactions struct {
	cli    *Client
	active sync.Map // tx id -> *transaction
}

func newTransactions(cli *Client) *transactions {
	return &transactions{cli: cli}
}

// TxStart starts a transaction on the current connection. Requires protocol 1.5.0.
func (t *transactions) TxStart(ctx context.Context, cfg ignite.TxConfig) (ignite.TransactionImpl, error) {
	ch, err := t.cli.ch.pin(ctx)
	if err != nil {
		return nil, toIgniteError(err)
	}
	protoCtx := ch.protocolContext()
	if err = protoCtx.require(capTransactions); err != nil {
		return nil, err
	}
	var txId int32
	ch.send(ctx, opTxStart, func(output BinaryOutputStream) error {
		output.WriteInt8(int8(cfg.Concurrency))
		output.WriteInt8(int8(cfg.Isolation))
		output.WriteInt64(cfg.Timeout.Milliseconds())
		if len(cfg.Label) == 0 {
			output.WriteNull()
		} else {
			marshalString(output, cfg.Label)
		}
		return nil
	}, func(input BinaryInputStream, err0 error) {
		if err0 != nil {
			err = err0
			return
		}
		if err = ensureAvailable(input, intBytes); err == nil {
			txId = input.ReadInt32()
		}
	})
	if err != nil {
		return nil, toIgniteError(err)
	}
	tx := &transaction{owner: t, ch: ch, id: txId}
	tx.active.Store(true)
	t.active.Store(txId, tx)
	t.cli.cfg.logger.Debugf("started transaction %d [concurrency=%s, isolation=%s] on %s", txId, cfg.Concurrency, cfg.Isolation, ch)
	return tx, nil
}

// fromContext returns the transaction bound to ctx, nil if there is none.
func (t *transactions) fromContext(ctx context.Context) (*transaction, error) {
	impl, ok := ignite.TransactionFromContext(ctx)
	if !ok {
		return nil, nil
	}
	tx, ok := impl.(*transaction)
	if !ok || tx.owner != t {
		return nil, illegalArgument("transaction was started by another client")
	}
	return tx, nil
}

func (t *transactions) rollbackAll(ctx context.Context) {
	t.active.Range(func(_, val any) bool {
		if tx, ok := val.(*transaction); ok {
			if err := tx.Rollback(ctx); err != nil {
				t.cli.cfg.logger.Warnf("failed to roll back transaction %d: %s", tx.id, err)
			}
		}
		return true
	})
}

type transaction struct {
	owner  *transactions
	ch     *tcpChannel
	id     int32
	active atomic.Bool
	wrote  atomic.Bool
}

func (tx *transaction) Active() bool {
	return tx.active.Load()
}

func (tx *transaction) ensureActive() error {
	if !tx.active.Load() {
		return ignite.Errorf(ignite.TxFailed, "transaction %d is finished", tx.id).WithComponent(component)
	}
	if tx.ch.isClosed() {
		return ignite.Errorf(ignite.TxFailed, "connection of transaction %d is lost", tx.id).WithComponent(component).
			WithCause(tx.ch.processCloseError("connection closed"))
	}
	return nil
}

func (tx *transaction) Commit(ctx context.Context) error {
	return tx.end(ctx, true)
}

func (tx *transaction) Rollback(ctx context.Context) error {
	return tx.end(ctx, false)
}

// end finishes the transaction. The transaction is finished even if the request fails, the
// node rolls back transactions of a closed connection.
func (tx *transaction) end(ctx context.Context, commit bool) error {
	if !tx.active.CompareAndSwap(true, false) {
		return ignite.Errorf(ignite.TxFailed, "transaction %d is finished", tx.id).WithComponent(component)
	}
	tx.owner.active.Delete(tx.id)
	if tx.wrote.Load() {
		tx.owner.cli.near.clear()
	}
	var err error
	tx.ch.send(ctx, opTxEnd, func(output BinaryOutputStream) error {
		output.WriteInt32(tx.id)
		output.WriteBool(commit)
		return nil
	}, func(_ BinaryInputStream, err0 error) {
		err = err0
	})
	if err != nil {
		action := "rollback"
		if commit {
			action = "commit"
		}
		return ignite.Errorf(ignite.TxFailed, "%s of transaction %d failed: %s", action, tx.id, err).
			WithComponent(component).WithCause(toIgniteError(err))
	}
	return nil
}

func (tx *transaction) String() string {
	return fmt.Sprintf("transaction[id=%d, ch=%s]", tx.id, tx.ch)
}
