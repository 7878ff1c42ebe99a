package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/redbco/redb-connector/internal/database/mongodb/queries"
	"github.com/redbco/redb-connector/internal/database/mongodb/session"
	"github.com/redbco/redb-connector/pkg/connector"
)

// ReadRouter executes reads. Implementations return raw driver errors; the
// connection translates them.
type ReadRouter interface {
	GetSingleRecord(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, filter connector.Filter, selected connector.FieldSelection, aggregations []connector.RelAggregationSelection) (*connector.SingleRecord, error)
	GetManyRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args connector.QueryArguments, selected connector.FieldSelection, aggregations []connector.RelAggregationSelection) (connector.ManyRecords, error)
	GetRelatedM2MRecordIDs(ctx context.Context, db *mongo.Database, sess session.Session, field *connector.RelationField, from []connector.SelectionResult) ([]connector.RecordIDPair, error)
}

// WriteRouter executes writes and raw commands.
type WriteRouter interface {
	CreateRecord(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args connector.WriteArgs) (connector.SelectionResult, error)
	CreateRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args []connector.WriteArgs, skipDuplicates bool) (int, error)

	// UpdateRecords returns the identities of the updated records. With
	// UpdateOne at most one record is touched.
	UpdateRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, filter connector.RecordFilter, args connector.WriteArgs, kind connector.UpdateType) ([]connector.SelectionResult, error)

	DeleteRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, filter connector.RecordFilter) (int, error)
	M2MConnect(ctx context.Context, db *mongo.Database, sess session.Session, field *connector.RelationField, parent connector.SelectionResult, children []connector.SelectionResult) error
	M2MDisconnect(ctx context.Context, db *mongo.Database, sess session.Session, field *connector.RelationField, parent connector.SelectionResult, children []connector.SelectionResult) error
	ExecuteRaw(ctx context.Context, db *mongo.Database, sess session.Session, inputs map[string]interface{}) (int, error)
	QueryRaw(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, inputs map[string]interface{}, queryType string) (interface{}, error)
}

// AggregateRouter executes grouped aggregations.
type AggregateRouter interface {
	Aggregate(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args connector.QueryArguments, selections []connector.AggregationSelection, groupBy []*connector.ScalarField, having *connector.Filter) ([]connector.AggregationRow, error)
}

// Routers bundles the routers a connection dispatches to.
type Routers struct {
	Read      ReadRouter
	Write     WriteRouter
	Aggregate AggregateRouter
}

// DefaultRouters returns the driver-backed routers.
func DefaultRouters() Routers {
	return Routers{
		Read:      queries.Read{},
		Write:     queries.Write{},
		Aggregate: queries.Aggregate{},
	}
}
