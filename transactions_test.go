package ignite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanglinqiang/ignite"
)

func TestTransactions_Defaults(t *testing.T) {
	ctx := context.Background()
	impl := newFakeIgnite("node")
	ig := ignite.New(impl)
	defer ig.Close(ctx)
	txs := ig.GetTransactions()
	defer txs.Close(ctx)

	tx, err := txs.TxStart(ctx)
	require.NoError(t, err)
	require.Equal(t, ignite.TxConfig{Concurrency: ignite.Pessimistic, Isolation: ignite.RepeatableRead}, tx.Config())
	require.Equal(t, tx.Config(), impl.txs.last.Load().cfg)
	require.NoError(t, tx.Commit(ctx))
}

func TestTransactions_Options(t *testing.T) {
	ctx := context.Background()
	impl := newFakeIgnite("node")
	ig := ignite.New(impl)
	defer ig.Close(ctx)
	txs := ig.GetTransactions()
	defer txs.Close(ctx)

	tx, err := txs.TxStart(ctx,
		ignite.WithConcurrency(ignite.Optimistic),
		ignite.WithIsolation(ignite.Serializable),
		ignite.WithTimeout(-time.Second),
		ignite.WithLabel("batch"),
	)
	require.NoError(t, err)
	defer tx.Close(ctx)
	require.Equal(t, ignite.TxConfig{
		Concurrency: ignite.Optimistic,
		Isolation:   ignite.Serializable,
		Label:       "batch",
	}, impl.txs.last.Load().cfg)
	require.Equal(t, "OPTIMISTIC", ignite.Optimistic.String())
	require.Equal(t, "SERIALIZABLE", ignite.Serializable.String())
	require.Equal(t, "TxIsolation(9)", ignite.TxIsolation(9).String())
}

func TestTransactions_ContextBinding(t *testing.T) {
	ctx := context.Background()
	ig := ignite.New(newFakeIgnite("node"))
	defer ig.Close(ctx)
	txs := ig.GetTransactions()
	defer txs.Close(ctx)

	_, ok := ignite.TransactionFromContext(ctx)
	require.False(t, ok)

	tx, err := txs.TxStart(ctx)
	require.NoError(t, err)
	txCtx := tx.Context(ctx)
	bound, ok := ignite.TransactionFromContext(txCtx)
	require.True(t, ok)
	require.True(t, bound.Active())

	_, err = txs.TxStart(txCtx)
	require.Error(t, err)
	require.Equal(t, ignite.TxFailed, ignite.CodeOf(err))

	require.NoError(t, tx.Rollback(ctx))
	require.False(t, bound.Active())

	nested, err := txs.TxStart(txCtx)
	require.NoError(t, err, "finished transaction does not block a new one")
	require.NoError(t, nested.Close(ctx))
}

func TestTransactions_FinishOnce(t *testing.T) {
	ctx := context.Background()
	impl := newFakeIgnite("node")
	ig := ignite.New(impl)
	txs := ig.GetTransactions()

	tx, err := txs.TxStart(ctx)
	require.NoError(t, err)
	fake := impl.txs.last.Load()
	require.True(t, tx.Active())
	require.NoError(t, tx.Commit(ctx))
	require.True(t, fake.committed.Load())
	require.False(t, tx.Active())

	err = tx.Rollback(ctx)
	require.Equal(t, ignite.TxFailed, ignite.CodeOf(err))
	require.False(t, fake.rolledBack.Load())
	require.NoError(t, tx.Close(ctx))

	require.NoError(t, txs.Close(ctx))
	require.NoError(t, ig.Close(ctx))
	require.Equal(t, int32(1), impl.closed.Load())
}

func TestTransactions_CloseRollsBack(t *testing.T) {
	ctx := context.Background()
	impl := newFakeIgnite("node")
	ig := ignite.New(impl)
	txs := ig.GetTransactions()

	tx, err := txs.TxStart(ctx)
	require.NoError(t, err)
	require.NoError(t, txs.Close(ctx))
	require.NoError(t, ig.Close(ctx))
	require.Zero(t, impl.closed.Load(), "active transaction owns the connection")

	require.NoError(t, tx.Close(ctx))
	require.True(t, impl.txs.last.Load().rolledBack.Load())
	require.Equal(t, int32(1), impl.closed.Load())
}
