package mongodb

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/redbco/redb-connector/internal/database/mongodb/session"
	"github.com/redbco/redb-connector/pkg/connector"
	"github.com/redbco/redb-connector/pkg/logger"
)

// fakeSession records transaction calls without a server.
type fakeSession struct {
	mu        sync.Mutex
	inTxn     bool
	started   int
	committed int
	aborted   int
	ended     bool

	startErr  error
	commitErr error
	abortErr  error
}

func (s *fakeSession) StartTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	if s.inTxn {
		return session.ErrTransactionInProgress
	}
	s.inTxn = true
	s.started++
	return nil
}

func (s *fakeSession) CommitTransaction(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTxn = false
	s.committed++
	return s.commitErr
}

func (s *fakeSession) AbortTransaction(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTxn = false
	s.aborted++
	return s.abortErr
}

func (s *fakeSession) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTxn
}

func (s *fakeSession) Context(ctx context.Context) context.Context { return ctx }

// EndSession aborts a running transaction like the driver does.
func (s *fakeSession) EndSession(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inTxn {
		s.inTxn = false
		s.aborted++
	}
	s.ended = true
}

// memRouter is an in-memory implementation of all routers. Records are
// keyed by field name; uniqueFields are enforced on insert.
type memRouter struct {
	mu      sync.Mutex
	records map[string][]map[string]interface{}
	nextID  int

	uniqueFields []string

	// failWith is returned by every routed call when set.
	failWith error

	// updateResult overrides the identities UpdateRecords reports.
	updateResult []connector.SelectionResult

	// entered and release make the next routed call block until released.
	entered chan struct{}
	release chan struct{}

	calls    []string
	sessions []session.Session
	kinds    []connector.UpdateType
}

func newMemRouter(uniqueFields ...string) *memRouter {
	return &memRouter{records: make(map[string][]map[string]interface{}), uniqueFields: uniqueFields}
}

func (r *memRouter) routers() Routers {
	return Routers{Read: r, Write: r, Aggregate: r}
}

func (r *memRouter) enter(op string, sess session.Session) error {
	r.mu.Lock()
	r.calls = append(r.calls, op)
	r.sessions = append(r.sessions, sess)
	entered, release := r.entered, r.release
	r.entered, r.release = nil, nil
	err := r.failWith
	r.mu.Unlock()

	if entered != nil {
		close(entered)
		<-release
	}
	return err
}

func (r *memRouter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *memRouter) blockNext() (entered, release chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entered, r.release = make(chan struct{}), make(chan struct{})
	return r.entered, r.release
}

func (r *memRouter) count(model *connector.Model) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records[model.CollectionName()])
}

func (r *memRouter) newRecord(model *connector.Model, args connector.WriteArgs) map[string]interface{} {
	rec := make(map[string]interface{})
	for _, f := range args.Fields() {
		rec[f.Name] = f.Value
	}
	for _, id := range model.PrimaryIdentifier() {
		if _, ok := rec[id.Name]; !ok {
			r.nextID++
			rec[id.Name] = fmt.Sprintf("id-%d", r.nextID)
		}
	}
	return rec
}

func (r *memRouter) duplicate(collection string, rec map[string]interface{}, pending []map[string]interface{}) bool {
	existing := append(append([]map[string]interface{}{}, r.records[collection]...), pending...)
	for _, f := range r.uniqueFields {
		v, ok := rec[f]
		if !ok {
			continue
		}
		for _, other := range existing {
			if reflect.DeepEqual(other[f], v) {
				return true
			}
		}
	}
	return false
}

func duplicateKeyError(index int) error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Index:   index,
		Code:    11000,
		Message: "E11000 duplicate key error collection: test.users index: email_1 dup key: { email: \"a\" }",
	}}}
}

func identity(model *connector.Model, rec map[string]interface{}) connector.SelectionResult {
	var pairs []connector.SelectedValue
	for _, id := range model.PrimaryIdentifier() {
		pairs = append(pairs, connector.SelectedValue{Field: id.Name, Value: rec[id.Name]})
	}
	return connector.NewSelectionResult(pairs...)
}

func matches(f connector.Filter, rec map[string]interface{}) bool {
	switch f.Kind {
	case connector.FilterEmpty:
		return true
	case connector.FilterAnd:
		for _, c := range f.Children {
			if !matches(c, rec) {
				return false
			}
		}
		return true
	case connector.FilterOr:
		for _, c := range f.Children {
			if matches(c, rec) {
				return true
			}
		}
		return false
	case connector.FilterNot:
		for _, c := range f.Children {
			if matches(c, rec) {
				return false
			}
		}
		return true
	case connector.FilterCondition:
		v := rec[f.Field.Name]
		switch f.Op {
		case connector.OpEquals:
			return reflect.DeepEqual(v, f.Value)
		case connector.OpIn:
			for _, candidate := range f.Value.([]interface{}) {
				if reflect.DeepEqual(v, candidate) {
					return true
				}
			}
		}
	}
	return false
}

func matchesRecordFilter(model *connector.Model, rf connector.RecordFilter, rec map[string]interface{}) bool {
	if !matches(rf.Filter, rec) {
		return false
	}
	if rf.HasSelectors() {
		return matches(connector.FilterForSelections(model, rf.Selectors), rec)
	}
	return true
}

func (r *memRouter) CreateRecord(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args connector.WriteArgs) (connector.SelectionResult, error) {
	if err := r.enter("create_record", sess); err != nil {
		return connector.SelectionResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.newRecord(model, args)
	if r.duplicate(model.CollectionName(), rec, nil) {
		return connector.SelectionResult{}, duplicateKeyError(0)
	}
	r.records[model.CollectionName()] = append(r.records[model.CollectionName()], rec)
	return identity(model, rec), nil
}

func (r *memRouter) CreateRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args []connector.WriteArgs, skipDuplicates bool) (int, error) {
	if err := r.enter("create_records", sess); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []map[string]interface{}
	for i, a := range args {
		rec := r.newRecord(model, a)
		if r.duplicate(model.CollectionName(), rec, pending) {
			if skipDuplicates {
				continue
			}
			return 0, duplicateKeyError(i)
		}
		pending = append(pending, rec)
	}
	r.records[model.CollectionName()] = append(r.records[model.CollectionName()], pending...)
	return len(pending), nil
}

func (r *memRouter) UpdateRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, filter connector.RecordFilter, args connector.WriteArgs, kind connector.UpdateType) ([]connector.SelectionResult, error) {
	if err := r.enter("update_records", sess); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)

	var updated []connector.SelectionResult
	for _, rec := range r.records[model.CollectionName()] {
		if !matchesRecordFilter(model, filter, rec) {
			continue
		}
		for _, f := range args.Fields() {
			rec[f.Name] = f.Value
		}
		updated = append(updated, identity(model, rec))
		if kind == connector.UpdateOne {
			break
		}
	}
	if r.updateResult != nil {
		return r.updateResult, nil
	}
	return updated, nil
}

func (r *memRouter) DeleteRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, filter connector.RecordFilter) (int, error) {
	if err := r.enter("delete_records", sess); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.records[model.CollectionName()][:0]
	deleted := 0
	for _, rec := range r.records[model.CollectionName()] {
		if matchesRecordFilter(model, filter, rec) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	r.records[model.CollectionName()] = kept
	return deleted, nil
}

func (r *memRouter) M2MConnect(ctx context.Context, db *mongo.Database, sess session.Session, field *connector.RelationField, parent connector.SelectionResult, children []connector.SelectionResult) error {
	return r.enter("m2m_connect", sess)
}

func (r *memRouter) M2MDisconnect(ctx context.Context, db *mongo.Database, sess session.Session, field *connector.RelationField, parent connector.SelectionResult, children []connector.SelectionResult) error {
	return r.enter("m2m_disconnect", sess)
}

func (r *memRouter) ExecuteRaw(ctx context.Context, db *mongo.Database, sess session.Session, inputs map[string]interface{}) (int, error) {
	if err := r.enter("execute_raw", sess); err != nil {
		return 0, err
	}
	return len(inputs), nil
}

func (r *memRouter) QueryRaw(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, inputs map[string]interface{}, queryType string) (interface{}, error) {
	if err := r.enter("query_raw", sess); err != nil {
		return nil, err
	}
	return map[string]interface{}{"queryType": queryType}, nil
}

func (r *memRouter) GetSingleRecord(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, filter connector.Filter, selected connector.FieldSelection, aggregations []connector.RelAggregationSelection) (*connector.SingleRecord, error) {
	if err := r.enter("get_single_record", sess); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records[model.CollectionName()] {
		if matches(filter, rec) {
			values := make([]interface{}, len(selected))
			for i, f := range selected {
				values[i] = rec[f.Name]
			}
			return &connector.SingleRecord{FieldNames: selected.Names(), Record: connector.Record{Values: values}}, nil
		}
	}
	return nil, nil
}

func (r *memRouter) GetManyRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args connector.QueryArguments, selected connector.FieldSelection, aggregations []connector.RelAggregationSelection) (connector.ManyRecords, error) {
	if err := r.enter("get_many_records", sess); err != nil {
		return connector.ManyRecords{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := connector.ManyRecords{FieldNames: selected.Names()}
	for _, rec := range r.records[model.CollectionName()] {
		if args.Filter != nil && !matches(*args.Filter, rec) {
			continue
		}
		values := make([]interface{}, len(selected))
		for i, f := range selected {
			values[i] = rec[f.Name]
		}
		out.Records = append(out.Records, connector.Record{Values: values})
	}
	return out, nil
}

func (r *memRouter) GetRelatedM2MRecordIDs(ctx context.Context, db *mongo.Database, sess session.Session, field *connector.RelationField, from []connector.SelectionResult) ([]connector.RecordIDPair, error) {
	if err := r.enter("get_related_m2m_record_ids", sess); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *memRouter) Aggregate(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args connector.QueryArguments, selections []connector.AggregationSelection, groupBy []*connector.ScalarField, having *connector.Filter) ([]connector.AggregationRow, error) {
	if err := r.enter("aggregate_records", sess); err != nil {
		return nil, err
	}
	return []connector.AggregationRow{{{Kind: connector.AggregateCount, Value: int64(r.count(model))}}}, nil
}

func quietLogger() *logger.Logger {
	l := logger.New("test", "0")
	l.DisableConsoleOutput()
	return l
}

func newTestConnection(router *memRouter) (*Connection, *fakeSession) {
	sess := &fakeSession{}
	conn := newConnection("conn-1", nil, nil, sess, router.routers(), quietLogger(), connector.ConnectionConfig{DatabaseID: "conn-1"}, NewAdapterWith(nil, router.routers()))
	return conn, sess
}

func userModel() *connector.Model {
	return connector.NewModel("User", "users",
		&connector.ScalarField{Name: "id", DBName: "_id", Type: connector.TypeObjectID, IsID: true},
		&connector.ScalarField{Name: "name", Type: connector.TypeString},
		&connector.ScalarField{Name: "email", Type: connector.TypeString},
	)
}
