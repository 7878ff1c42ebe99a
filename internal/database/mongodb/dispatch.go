package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/redbco/redb-connector/internal/database/mongodb/session"
	"github.com/redbco/redb-connector/pkg/connector"
	"github.com/redbco/redb-connector/pkg/dbcapabilities"
	"github.com/redbco/redb-connector/pkg/logger"
)

// dispatcher routes every operation of the capability contract to the
// routers, under the exclusivity guard of its owner. Connection and
// Transaction each embed one; both share the same session and database.
type dispatcher struct {
	id      string
	db      *mongo.Database
	sess    session.Session
	routers Routers
	log     *logger.Logger
	guard   *guard
}

func (d *dispatcher) scope(operation string) scope {
	return scope{connID: d.id, operation: operation, log: d.log}
}

// enter acquires the guard for one call. The caller must release it.
func (d *dispatcher) enter(operation string) (scope, error) {
	if err := d.guard.acquire(); err != nil {
		return scope{}, connector.NewProgrammingError(dbcapabilities.MongoDB, operation, err)
	}
	return d.scope(operation), nil
}

// CreateRecord inserts one record and returns its identity.
func (d *dispatcher) CreateRecord(ctx context.Context, model *connector.Model, args connector.WriteArgs) (connector.SelectionResult, error) {
	s, err := d.enter("create_record")
	if err != nil {
		return connector.SelectionResult{}, err
	}
	defer d.guard.release()

	return catch(ctx, s, func(ctx context.Context) (connector.SelectionResult, error) {
		return d.routers.Write.CreateRecord(ctx, d.db, d.sess, model, args)
	})
}

// CreateRecords inserts a batch and returns how many records were created.
func (d *dispatcher) CreateRecords(ctx context.Context, model *connector.Model, args []connector.WriteArgs, skipDuplicates bool) (int, error) {
	s, err := d.enter("create_records")
	if err != nil {
		return 0, err
	}
	defer d.guard.release()

	return catch(ctx, s, func(ctx context.Context) (int, error) {
		return d.routers.Write.CreateRecords(ctx, d.db, d.sess, model, args, skipDuplicates)
	})
}

// UpdateRecords updates every matching record and returns the count.
func (d *dispatcher) UpdateRecords(ctx context.Context, model *connector.Model, filter connector.RecordFilter, args connector.WriteArgs) (int, error) {
	s, err := d.enter("update_records")
	if err != nil {
		return 0, err
	}
	defer d.guard.release()

	return catch(ctx, s, func(ctx context.Context) (int, error) {
		updated, err := d.routers.Write.UpdateRecords(ctx, d.db, d.sess, model, filter, args, connector.UpdateMany)
		if err != nil {
			return 0, err
		}
		return len(updated), nil
	})
}

// UpdateRecord updates at most one record. Of the identities reported by the
// router only the last one is returned.
func (d *dispatcher) UpdateRecord(ctx context.Context, model *connector.Model, filter connector.RecordFilter, args connector.WriteArgs) (*connector.SelectionResult, error) {
	s, err := d.enter("update_record")
	if err != nil {
		return nil, err
	}
	defer d.guard.release()

	return catch(ctx, s, func(ctx context.Context) (*connector.SelectionResult, error) {
		updated, err := d.routers.Write.UpdateRecords(ctx, d.db, d.sess, model, filter, args, connector.UpdateOne)
		if err != nil || len(updated) == 0 {
			return nil, err
		}
		last := updated[len(updated)-1]
		return &last, nil
	})
}

// NativeUpsertRecord is not available on MongoDB. The engine must not route
// upserts here; doing so is a programming error.
func (d *dispatcher) NativeUpsertRecord(ctx context.Context, upsert connector.NativeUpsert) (*connector.SingleRecord, error) {
	return nil, connector.NewProgrammingError(dbcapabilities.MongoDB, "native_upsert_record", connector.ErrNotImplemented)
}

// DeleteRecords deletes every matching record and returns the count.
func (d *dispatcher) DeleteRecords(ctx context.Context, model *connector.Model, filter connector.RecordFilter) (int, error) {
	s, err := d.enter("delete_records")
	if err != nil {
		return 0, err
	}
	defer d.guard.release()

	return catch(ctx, s, func(ctx context.Context) (int, error) {
		return d.routers.Write.DeleteRecords(ctx, d.db, d.sess, model, filter)
	})
}

func (d *dispatcher) M2MConnect(ctx context.Context, field *connector.RelationField, parent connector.SelectionResult, children []connector.SelectionResult) error {
	s, err := d.enter("m2m_connect")
	if err != nil {
		return err
	}
	defer d.guard.release()

	return catchErr(ctx, s, func(ctx context.Context) error {
		return d.routers.Write.M2MConnect(ctx, d.db, d.sess, field, parent, children)
	})
}

func (d *dispatcher) M2MDisconnect(ctx context.Context, field *connector.RelationField, parent connector.SelectionResult, children []connector.SelectionResult) error {
	s, err := d.enter("m2m_disconnect")
	if err != nil {
		return err
	}
	defer d.guard.release()

	return catchErr(ctx, s, func(ctx context.Context) error {
		return d.routers.Write.M2MDisconnect(ctx, d.db, d.sess, field, parent, children)
	})
}

// ExecuteRaw runs a raw command and returns the affected count.
func (d *dispatcher) ExecuteRaw(ctx context.Context, inputs map[string]interface{}) (int, error) {
	s, err := d.enter("execute_raw")
	if err != nil {
		return 0, err
	}
	defer d.guard.release()

	return catch(ctx, s, func(ctx context.Context) (int, error) {
		return d.routers.Write.ExecuteRaw(ctx, d.db, d.sess, inputs)
	})
}

// QueryRaw runs a raw query and returns the decoded result.
func (d *dispatcher) QueryRaw(ctx context.Context, model *connector.Model, inputs map[string]interface{}, queryType string) (interface{}, error) {
	s, err := d.enter("query_raw")
	if err != nil {
		return nil, err
	}
	defer d.guard.release()

	return catch(ctx, s, func(ctx context.Context) (interface{}, error) {
		return d.routers.Write.QueryRaw(ctx, d.db, d.sess, model, inputs, queryType)
	})
}

// GetSingleRecord returns the first matching record or nil.
func (d *dispatcher) GetSingleRecord(ctx context.Context, model *connector.Model, filter connector.Filter, selected connector.FieldSelection, aggregations []connector.RelAggregationSelection) (*connector.SingleRecord, error) {
	s, err := d.enter("get_single_record")
	if err != nil {
		return nil, err
	}
	defer d.guard.release()

	return catch(ctx, s, func(ctx context.Context) (*connector.SingleRecord, error) {
		return d.routers.Read.GetSingleRecord(ctx, d.db, d.sess, model, filter, selected, aggregations)
	})
}

func (d *dispatcher) GetManyRecords(ctx context.Context, model *connector.Model, args connector.QueryArguments, selected connector.FieldSelection, aggregations []connector.RelAggregationSelection) (connector.ManyRecords, error) {
	s, err := d.enter("get_many_records")
	if err != nil {
		return connector.ManyRecords{}, err
	}
	defer d.guard.release()

	return catch(ctx, s, func(ctx context.Context) (connector.ManyRecords, error) {
		return d.routers.Read.GetManyRecords(ctx, d.db, d.sess, model, args, selected, aggregations)
	})
}

func (d *dispatcher) GetRelatedM2MRecordIDs(ctx context.Context, field *connector.RelationField, from []connector.SelectionResult) ([]connector.RecordIDPair, error) {
	s, err := d.enter("get_related_m2m_record_ids")
	if err != nil {
		return nil, err
	}
	defer d.guard.release()

	return catch(ctx, s, func(ctx context.Context) ([]connector.RecordIDPair, error) {
		return d.routers.Read.GetRelatedM2MRecordIDs(ctx, d.db, d.sess, field, from)
	})
}

func (d *dispatcher) AggregateRecords(ctx context.Context, model *connector.Model, args connector.QueryArguments, selections []connector.AggregationSelection, groupBy []*connector.ScalarField, having *connector.Filter) ([]connector.AggregationRow, error) {
	s, err := d.enter("aggregate_records")
	if err != nil {
		return nil, err
	}
	defer d.guard.release()

	return catch(ctx, s, func(ctx context.Context) ([]connector.AggregationRow, error) {
		return d.routers.Aggregate.Aggregate(ctx, d.db, d.sess, model, args, selections, groupBy, having)
	})
}
