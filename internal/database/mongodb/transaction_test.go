package mongodb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/redbco/redb-connector/pkg/connector"
)

func TestTransaction_CommitReleasesConnection(t *testing.T) {
	router := newMemRouter()
	conn, sess := newTestConnection(router)
	model := userModel()
	ctx := context.Background()

	tx, err := conn.StartTransaction(ctx, nil)
	require.NoError(t, err)
	assert.True(t, sess.InTransaction())
	assert.True(t, strings.HasPrefix(tx.(*Transaction).id, "conn-1/tx-"))

	_, err = tx.CreateRecord(ctx, model, emailArgs("a"))
	require.NoError(t, err)
	n, err := tx.DeleteRecords(ctx, model, connector.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, 1, sess.started)
	assert.Equal(t, 1, sess.committed)
	assert.False(t, sess.InTransaction())

	// Both calls ran on the connection's own session.
	for _, s := range router.sessions {
		assert.Same(t, sess, s)
	}

	_, err = conn.CreateRecord(ctx, model, emailArgs("b"))
	assert.NoError(t, err)

	tx, err = conn.StartTransaction(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
}

func TestTransaction_FinishIsTerminal(t *testing.T) {
	finishers := map[string]func(connector.Transaction, context.Context) error{
		"commit":   connector.Transaction.Commit,
		"rollback": connector.Transaction.Rollback,
	}

	for name, finish := range finishers {
		t.Run(name, func(t *testing.T) {
			router := newMemRouter()
			conn, sess := newTestConnection(router)
			ctx := context.Background()

			tx, err := conn.StartTransaction(ctx, nil)
			require.NoError(t, err)
			require.NoError(t, finish(tx, ctx))

			err = tx.Commit(ctx)
			require.Error(t, err)
			assert.True(t, connector.IsProgrammingError(err))
			assert.True(t, errors.Is(err, connector.ErrTransactionClosed))

			err = tx.Rollback(ctx)
			assert.True(t, errors.Is(err, connector.ErrTransactionClosed))

			_, err = tx.GetManyRecords(ctx, userModel(), connector.QueryArguments{}, userModel().Fields, nil)
			assert.True(t, errors.Is(err, connector.ErrTransactionClosed))

			_, err = tx.NativeUpsertRecord(ctx, connector.NativeUpsert{})
			assert.True(t, errors.Is(err, connector.ErrNotImplemented))

			assert.Equal(t, 1, sess.committed+sess.aborted)
			assert.Zero(t, router.callCount())
		})
	}
}

func TestTransaction_BackendFailureStillFinishes(t *testing.T) {
	router := newMemRouter()
	conn, sess := newTestConnection(router)
	sess.commitErr = mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	ctx := context.Background()

	tx, err := conn.StartTransaction(ctx, nil)
	require.NoError(t, err)

	err = tx.Commit(ctx)
	require.Error(t, err)
	assert.Equal(t, connector.KindTransactionConflict, connector.KindOf(err))
	assert.True(t, connector.IsTransient(err))

	err = tx.Commit(ctx)
	assert.True(t, errors.Is(err, connector.ErrTransactionClosed))

	_, err = conn.DeleteRecords(ctx, userModel(), connector.RecordFilter{})
	assert.NoError(t, err)
}

func TestTransaction_StartFailureLeavesConnectionIdle(t *testing.T) {
	router := newMemRouter()
	conn, sess := newTestConnection(router)
	sess.startErr = errors.New("transactions are not supported by this deployment")
	ctx := context.Background()

	tx, err := conn.StartTransaction(ctx, nil)
	assert.Nil(t, tx)
	require.Error(t, err)

	var dbErr *connector.DatabaseError
	require.True(t, errors.As(err, &dbErr))
	assert.Equal(t, "start_transaction", dbErr.Operation)

	_, err = conn.DeleteRecords(ctx, userModel(), connector.RecordFilter{})
	assert.NoError(t, err)
}

func TestTransaction_OperationsAreGuarded(t *testing.T) {
	router := newMemRouter()
	conn, _ := newTestConnection(router)
	model := userModel()
	ctx := context.Background()

	tx, err := conn.StartTransaction(ctx, nil)
	require.NoError(t, err)

	entered, release := router.blockNext()
	done := make(chan error, 1)
	go func() {
		_, err := tx.GetManyRecords(ctx, model, connector.QueryArguments{}, model.Fields, nil)
		done <- err
	}()
	<-entered

	_, err = tx.DeleteRecords(ctx, model, connector.RecordFilter{})
	assert.True(t, errors.Is(err, connector.ErrConcurrentUse))

	err = tx.Commit(ctx)
	assert.True(t, errors.Is(err, connector.ErrConcurrentUse), "a transaction cannot finish under a running call")

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, tx.Commit(ctx))
}

func TestTransaction_IsConnectionLike(t *testing.T) {
	conn, _ := newTestConnection(newMemRouter())
	tx, err := conn.StartTransaction(context.Background(), nil)
	require.NoError(t, err)

	run := func(c connector.ConnectionLike) error {
		_, err := c.DeleteRecords(context.Background(), userModel(), connector.RecordFilter{})
		return err
	}

	assert.NoError(t, run(tx))
	require.NoError(t, tx.Commit(context.Background()))
	assert.NoError(t, run(conn))
}
