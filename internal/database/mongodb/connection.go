package mongodb

import (
	"context"
	"errors"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/redbco/redb-connector/internal/database/mongodb/session"
	"github.com/redbco/redb-connector/pkg/connector"
	"github.com/redbco/redb-connector/pkg/dbcapabilities"
	"github.com/redbco/redb-connector/pkg/logger"
)

const isolationLevelReason = "Mongo does not support setting transaction isolation levels."

// Connection implements connector.Connection for MongoDB. It owns one
// driver session; all operations and at most one transaction at a time run
// on it.
type Connection struct {
	*dispatcher

	client    *mongo.Client
	config    connector.ConnectionConfig
	adapter   *Adapter
	connected int32

	// tx is the live transaction while the connection is borrowed.
	tx atomic.Pointer[Transaction]
}

func newConnection(id string, client *mongo.Client, db *mongo.Database, sess session.Session, routers Routers, log *logger.Logger, config connector.ConnectionConfig, a *Adapter) *Connection {
	if log == nil {
		log = defaultLogger
	}
	return &Connection{
		dispatcher: &dispatcher{
			id:      id,
			db:      db,
			sess:    sess,
			routers: routers,
			log:     log,
			guard:   newGuard(connector.ErrConnectionClosed),
		},
		client:    client,
		config:    config,
		adapter:   a,
		connected: 1,
	}
}

// ID returns the connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// Type returns the database type.
func (c *Connection) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.MongoDB
}

// IsConnected returns whether the connection is active.
func (c *Connection) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// StartTransaction borrows the session for a transaction. MongoDB has no
// per-transaction isolation levels, so any explicit level is refused before
// the backend is contacted.
func (c *Connection) StartTransaction(ctx context.Context, isolationLevel *string) (connector.Transaction, error) {
	const op = "start_transaction"
	if isolationLevel != nil && !dbcapabilities.SupportsIsolationLevels(dbcapabilities.MongoDB) {
		return nil, connector.NewUnsupportedOperationError(dbcapabilities.MongoDB, op, isolationLevelReason)
	}

	if err := c.guard.transition(stateBorrowed); err != nil {
		return nil, connector.NewProgrammingError(dbcapabilities.MongoDB, op, err)
	}

	tx, err := newTransaction(ctx, c)
	if err != nil {
		c.guard.restore(stateBorrowed)
		return nil, err
	}
	c.tx.Store(tx)
	return tx, nil
}

// Ping checks if the connection is alive.
func (c *Connection) Ping(ctx context.Context) error {
	if c.guard.is(stateClosed) {
		return connector.NewProgrammingError(dbcapabilities.MongoDB, "ping", connector.ErrConnectionClosed)
	}
	return catchErr(ctx, c.scope("ping"), func(ctx context.Context) error {
		return c.client.Ping(ctx, readpref.Primary())
	})
}

// Close ends the session and disconnects the client. A transaction that was
// never committed or rolled back is aborted with the session and closed;
// closing twice is a no-op.
func (c *Connection) Close() error {
	const op = "close"
	err := c.guard.transition(stateClosed)
	if errors.Is(err, connector.ErrConnectionBorrowed) {
		err = c.closeBorrowed()
	}
	if err != nil {
		if errors.Is(err, connector.ErrConnectionClosed) {
			return nil
		}
		return connector.NewProgrammingError(dbcapabilities.MongoDB, op, err)
	}

	atomic.StoreInt32(&c.connected, 0)
	ctx := context.Background()
	c.sess.EndSession(ctx)
	c.log.WithFields(map[string]string{"connection": c.id}).Info("connection closed")

	if c.client == nil {
		return nil
	}
	return connector.WrapError(dbcapabilities.MongoDB, op, c.client.Disconnect(ctx))
}

// closeBorrowed takes the connection back from a transaction nobody
// finished. A transaction that is starting, finishing or running a call
// keeps the connection.
func (c *Connection) closeBorrowed() error {
	tx := c.tx.Load()
	if tx == nil || tx.guard.transition(stateClosed) != nil {
		return connector.ErrConcurrentUse
	}
	tx.logCtx(context.Background()).Warn("connection closed with an open transaction, aborting it")

	c.tx.Store(nil)
	if !c.guard.move(stateBorrowed, stateClosed) {
		return c.guard.stateErr(c.guard.state.Load())
	}
	return nil
}

// Raw returns the underlying *mongo.Database.
func (c *Connection) Raw() interface{} {
	return c.db
}

// Config returns the connection configuration.
func (c *Connection) Config() connector.ConnectionConfig {
	return c.config
}

// Adapter returns the database adapter.
func (c *Connection) Adapter() connector.DatabaseAdapter {
	return c.adapter
}
