package mongodb

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/redbco/redb-connector/pkg/connector"
	"github.com/redbco/redb-connector/pkg/dbcapabilities"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      connector.ErrorKind
		transient bool
		code      string
	}{
		{name: "canceled", err: context.Canceled, kind: connector.KindCanceled},
		{name: "deadline", err: fmt.Errorf("find: %w", context.DeadlineExceeded), kind: connector.KindTimeout, transient: true},
		{name: "network", err: mongo.CommandError{Code: 6, Labels: []string{"NetworkError"}, Message: "connection reset"}, kind: connector.KindConnection, transient: true, code: "6"},
		{name: "no documents", err: mongo.ErrNoDocuments, kind: connector.KindRecordNotFound},
		{name: "duplicate key", err: duplicateKeyError(0), kind: connector.KindUniqueConstraint, code: "11000"},
		{name: "transient transaction label", err: mongo.CommandError{Code: 251, Name: "NoSuchTransaction", Labels: []string{"TransientTransactionError"}}, kind: connector.KindTransactionConflict, transient: true, code: "251"},
		{name: "write conflict", err: mongo.CommandError{Code: 112, Name: "WriteConflict"}, kind: connector.KindTransactionConflict, transient: true, code: "112"},
		{name: "generic server error", err: mongo.CommandError{Code: 13, Name: "Unauthorized", Message: "not authorized"}, kind: connector.KindBackend, code: "13"},
		{name: "plain error", err: errors.New("boom"), kind: connector.KindBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translate("get_many_records", tt.err)

			var dbErr *connector.DatabaseError
			require.True(t, errors.As(err, &dbErr))
			assert.Equal(t, dbcapabilities.MongoDB, dbErr.DatabaseType)
			assert.Equal(t, "get_many_records", dbErr.Operation)
			assert.Equal(t, tt.kind, dbErr.Kind)
			assert.Equal(t, tt.transient, dbErr.Transient)
			assert.Equal(t, tt.code, dbErr.Code)
			assert.Equal(t, tt.err, dbErr.Cause)
		})
	}
}

func TestTranslate_PassesConnectorErrorsThrough(t *testing.T) {
	assert.Nil(t, translate("op", nil))

	errs := []error{
		connector.NewProgrammingError(dbcapabilities.MongoDB, "op", connector.ErrConcurrentUse),
		connector.NewUnsupportedOperationError(dbcapabilities.MongoDB, "op", "no"),
		connector.NewDatabaseError(dbcapabilities.MongoDB, "inner", errors.New("x")),
	}
	for _, err := range errs {
		assert.Same(t, err, translate("outer", err))
	}
}

func TestCatch(t *testing.T) {
	log := quietLogger()
	entries := log.Subscribe()
	s := scope{connID: "c", operation: "create_record", log: log}

	got, err := catch(context.Background(), s, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Empty(t, entries)

	got, err = catch(context.Background(), s, func(context.Context) (int, error) {
		return 7, mongo.ErrNoDocuments
	})
	assert.Zero(t, got, "a failed call yields the zero value")
	assert.Equal(t, connector.KindRecordNotFound, connector.KindOf(err))
	require.Len(t, entries, 1)
	assert.Equal(t, "record_not_found", (<-entries).Fields["kind"])

	err = catchErr(context.Background(), s, func(context.Context) error {
		return connector.NewProgrammingError(dbcapabilities.MongoDB, "create_record", connector.ErrNotImplemented)
	})
	assert.True(t, connector.IsProgrammingError(err))
	require.Len(t, entries, 1)
	assert.Equal(t, "contract", (<-entries).Fields["kind"])
}

func TestDuplicateKeyIndex(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{message: "E11000 duplicate key error collection: shop.users index: email_1 dup key: { email: \"a\" }", want: "email_1"},
		{message: "E11000 duplicate key error index: _id_", want: "_id_"},
		{message: "something else", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, duplicateKeyIndex(tt.message), tt.message)
	}
}
