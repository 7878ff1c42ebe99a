package mongodb

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/redbco/redb-connector/pkg/connector"
	"github.com/redbco/redb-connector/pkg/dbcapabilities"
	"github.com/redbco/redb-connector/pkg/logger"
)

const (
	labelTransientTransaction = "TransientTransactionError"
	codeWriteConflict         = 112
)

// scope identifies the call being translated in logs and errors.
type scope struct {
	connID    string
	operation string
	log       *logger.Logger
}

// catch runs exactly one backend call and translates its failure. Success
// values pass through untouched.
func catch[T any](ctx context.Context, s scope, call func(context.Context) (T, error)) (T, error) {
	res, err := call(ctx)
	if err == nil {
		return res, nil
	}

	translated := translate(s.operation, err)
	s.report(ctx, translated)

	var zero T
	return zero, translated
}

// catchErr is catch for calls without a result.
func catchErr(ctx context.Context, s scope, call func(context.Context) error) error {
	_, err := catch(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	return err
}

func (s scope) report(ctx context.Context, err error) {
	if s.log == nil {
		return
	}
	kind := string(connector.KindOf(err))
	if kind == "" {
		kind = "contract"
	}
	s.log.WithFields(map[string]string{
		"connection": s.connID,
		"operation":  s.operation,
		"kind":       kind,
		"trace_id":   connector.TraceIDFromContext(ctx),
	}).Error(err.Error())
}

// translate maps a driver failure onto the connector error vocabulary.
// Errors that already belong to it are returned unchanged.
func translate(operation string, err error) error {
	if err == nil {
		return nil
	}
	if connector.IsConnectorError(err) {
		return err
	}

	dbErr := connector.NewDatabaseError(dbcapabilities.MongoDB, operation, err)
	code, name, message := serverDetails(err)
	dbErr.Code = code
	dbErr.Message = message
	if name != "" {
		dbErr.WithContext("code_name", name)
	}

	switch {
	case errors.Is(err, context.Canceled):
		dbErr.Kind = connector.KindCanceled
	case errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err):
		dbErr.Kind = connector.KindTimeout
		dbErr.Transient = true
	case mongo.IsNetworkError(err):
		dbErr.Kind = connector.KindConnection
		dbErr.Transient = true
	case errors.Is(err, mongo.ErrNoDocuments):
		dbErr.Kind = connector.KindRecordNotFound
	case mongo.IsDuplicateKeyError(err):
		dbErr.Kind = connector.KindUniqueConstraint
		if index := duplicateKeyIndex(message); index != "" {
			dbErr.WithContext("index", index)
		}
	case isTransactionConflict(err):
		dbErr.Kind = connector.KindTransactionConflict
		dbErr.Transient = true
	}

	return dbErr
}

// serverDetails extracts the code, code name and message of a server error.
func serverDetails(err error) (code, name, message string) {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return strconv.Itoa(int(cmdErr.Code)), cmdErr.Name, cmdErr.Message
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		if len(writeErr.WriteErrors) > 0 {
			we := writeErr.WriteErrors[0]
			return strconv.Itoa(we.Code), "", we.Message
		}
		if wce := writeErr.WriteConcernError; wce != nil {
			return strconv.Itoa(wce.Code), wce.Name, wce.Message
		}
	}

	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) {
		if len(bulkErr.WriteErrors) > 0 {
			we := bulkErr.WriteErrors[0]
			return strconv.Itoa(we.Code), "", we.Message
		}
		if wce := bulkErr.WriteConcernError; wce != nil {
			return strconv.Itoa(wce.Code), wce.Name, wce.Message
		}
	}

	return "", "", ""
}

func isTransactionConflict(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorLabel(labelTransientTransaction) || se.HasErrorCode(codeWriteConflict)
}

// duplicateKeyIndex reads the index name out of an E11000 message.
func duplicateKeyIndex(message string) string {
	const marker = "index: "
	i := strings.Index(message, marker)
	if i < 0 {
		return ""
	}
	rest := message[i+len(marker):]
	if j := strings.IndexByte(rest, ' '); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
