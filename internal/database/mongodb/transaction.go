package mongodb

import (
	"context"

	"github.com/google/uuid"

	"github.com/redbco/redb-connector/pkg/connector"
	"github.com/redbco/redb-connector/pkg/dbcapabilities"
	"github.com/redbco/redb-connector/pkg/logger"
)

// Transaction implements connector.Transaction on the session borrowed from
// its Connection. It dispatches to the same routers with the same session
// and database.
type Transaction struct {
	*dispatcher

	conn *Connection
}

// newTransaction starts a backend transaction on the connection's session.
// The caller has already moved the connection to the borrowed state.
func newTransaction(ctx context.Context, c *Connection) (*Transaction, error) {
	err := catchErr(ctx, c.scope("start_transaction"), func(context.Context) error {
		return c.sess.StartTransaction()
	})
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		dispatcher: &dispatcher{
			id:      c.id + "/tx-" + uuid.NewString()[:8],
			db:      c.db,
			sess:    c.sess,
			routers: c.routers,
			log:     c.log,
			guard:   newGuard(connector.ErrTransactionClosed),
		},
		conn: c,
	}
	tx.logCtx(ctx).Debug("transaction started")
	return tx, nil
}

// Commit commits the transaction. The transaction is finished even when the
// backend reports a failure.
func (t *Transaction) Commit(ctx context.Context) error {
	return t.finish(ctx, "commit", t.sess.CommitTransaction)
}

// Rollback aborts the transaction. The transaction is finished even when the
// backend reports a failure.
func (t *Transaction) Rollback(ctx context.Context) error {
	return t.finish(ctx, "rollback", t.sess.AbortTransaction)
}

func (t *Transaction) finish(ctx context.Context, op string, end func(context.Context) error) error {
	if err := t.guard.transition(stateClosed); err != nil {
		return connector.NewProgrammingError(dbcapabilities.MongoDB, op, err)
	}
	defer func() {
		t.conn.tx.CompareAndSwap(t, nil)
		t.conn.guard.restore(stateBorrowed)
	}()

	if err := catchErr(ctx, t.scope(op), end); err != nil {
		return err
	}
	t.logCtx(ctx).Debug("transaction finished: " + op)
	return nil
}

func (t *Transaction) logCtx(ctx context.Context) *logger.LogContext {
	return t.log.WithFields(map[string]string{
		"connection":  t.conn.id,
		"transaction": t.id,
		"trace_id":    connector.TraceIDFromContext(ctx),
	})
}
