// Package session wraps a MongoDB driver session behind the small surface the
// connector needs, so connections can be exercised without a server.
package session

import (
	"context"
	"errors"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrNoTransaction is returned when committing or aborting without a running transaction.
var ErrNoTransaction = errors.New("no transaction started")

// ErrTransactionInProgress is returned when starting a transaction twice.
var ErrTransactionInProgress = errors.New("transaction already in progress")

// Session is a logical backend session. All operations issued through the
// context returned by Context are associated with it.
type Session interface {
	StartTransaction() error
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	InTransaction() bool

	// Context binds the session to ctx for driver calls.
	Context(ctx context.Context) context.Context

	EndSession(ctx context.Context)
}

type driverSession struct {
	sess  *mongo.Session
	inTxn atomic.Bool
}

// Start opens a new session on client.
func Start(client *mongo.Client) (Session, error) {
	sess, err := client.StartSession(options.Session().SetCausalConsistency(true))
	if err != nil {
		return nil, err
	}
	return Wrap(sess), nil
}

// Wrap adapts an already started driver session.
func Wrap(sess *mongo.Session) Session {
	return &driverSession{sess: sess}
}

func (s *driverSession) StartTransaction() error {
	if !s.inTxn.CompareAndSwap(false, true) {
		return ErrTransactionInProgress
	}
	if err := s.sess.StartTransaction(); err != nil {
		s.inTxn.Store(false)
		return err
	}
	return nil
}

// CommitTransaction ends the transaction whatever the outcome; a failed
// commit leaves the session usable for a new transaction.
func (s *driverSession) CommitTransaction(ctx context.Context) error {
	if !s.inTxn.Swap(false) {
		return ErrNoTransaction
	}
	return s.sess.CommitTransaction(ctx)
}

func (s *driverSession) AbortTransaction(ctx context.Context) error {
	if !s.inTxn.Swap(false) {
		return ErrNoTransaction
	}
	return s.sess.AbortTransaction(ctx)
}

func (s *driverSession) InTransaction() bool {
	return s.inTxn.Load()
}

func (s *driverSession) Context(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, s.sess)
}

func (s *driverSession) EndSession(ctx context.Context) {
	if s.inTxn.Swap(false) {
		_ = s.sess.AbortTransaction(ctx)
	}
	s.sess.EndSession(ctx)
}
