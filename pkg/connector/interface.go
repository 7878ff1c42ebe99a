package connector

import (
	"context"

	"github.com/redbco/redb-connector/pkg/dbcapabilities"
)

// DatabaseAdapter represents a database technology adapter.
// Each database type the engine talks to must implement this interface.
type DatabaseAdapter interface {
	// Type returns the canonical database type identifier
	Type() dbcapabilities.DatabaseID

	// Capabilities returns the capability metadata for this database type
	Capabilities() dbcapabilities.Capability

	// Connect establishes a connection to a specific database
	Connect(ctx context.Context, config ConnectionConfig) (Connection, error)
}

// ReadOperations is the read half of the capability contract.
type ReadOperations interface {
	// GetSingleRecord returns the first record matching filter, or nil.
	GetSingleRecord(ctx context.Context, model *Model, filter Filter, selected FieldSelection, aggregations []RelAggregationSelection) (*SingleRecord, error)

	// GetManyRecords returns the records described by args.
	GetManyRecords(ctx context.Context, model *Model, args QueryArguments, selected FieldSelection, aggregations []RelAggregationSelection) (ManyRecords, error)

	// GetRelatedM2MRecordIDs returns (parent, child) identity pairs across a many-to-many relation.
	GetRelatedM2MRecordIDs(ctx context.Context, field *RelationField, from []SelectionResult) ([]RecordIDPair, error)

	// AggregateRecords runs a grouped aggregation.
	AggregateRecords(ctx context.Context, model *Model, args QueryArguments, selections []AggregationSelection, groupBy []*ScalarField, having *Filter) ([]AggregationRow, error)
}

// WriteOperations is the write half of the capability contract.
type WriteOperations interface {
	CreateRecord(ctx context.Context, model *Model, args WriteArgs) (SelectionResult, error)
	CreateRecords(ctx context.Context, model *Model, args []WriteArgs, skipDuplicates bool) (int, error)

	// UpdateRecords updates every matching record and returns how many were updated.
	UpdateRecords(ctx context.Context, model *Model, filter RecordFilter, args WriteArgs) (int, error)

	// UpdateRecord updates at most one record and returns its identity, or nil when nothing matched.
	UpdateRecord(ctx context.Context, model *Model, filter RecordFilter, args WriteArgs) (*SelectionResult, error)

	// NativeUpsertRecord delegates an upsert to the backend. Connectors without
	// a native mapping fail with a ProgrammingError.
	NativeUpsertRecord(ctx context.Context, upsert NativeUpsert) (*SingleRecord, error)

	DeleteRecords(ctx context.Context, model *Model, filter RecordFilter) (int, error)

	M2MConnect(ctx context.Context, field *RelationField, parent SelectionResult, children []SelectionResult) error
	M2MDisconnect(ctx context.Context, field *RelationField, parent SelectionResult, children []SelectionResult) error

	// ExecuteRaw runs a raw command and returns the number of affected records.
	ExecuteRaw(ctx context.Context, inputs map[string]interface{}) (int, error)

	// QueryRaw runs a raw query and returns the backend's result shape.
	QueryRaw(ctx context.Context, model *Model, inputs map[string]interface{}, queryType string) (interface{}, error)
}

// ConnectionLike is implemented by both connections and transactions, so
// engine code never needs to know which of the two it holds.
type ConnectionLike interface {
	ReadOperations
	WriteOperations
}

// Connection represents an active connection owning one backend session.
type Connection interface {
	ConnectionLike

	// Identity and status
	ID() string
	Type() dbcapabilities.DatabaseID
	IsConnected() bool

	// StartTransaction borrows the connection's session for one atomic unit
	// of work. A nil isolationLevel requests the backend default. The
	// connection cannot be used directly until the transaction is committed
	// or rolled back.
	StartTransaction(ctx context.Context, isolationLevel *string) (Transaction, error)

	// Lifecycle management
	Ping(ctx context.Context) error
	Close() error

	// Raw returns the underlying database-specific handle.
	// Type assertion is required when using Raw().
	Raw() interface{}

	// Configuration
	Config() ConnectionConfig
	Adapter() DatabaseAdapter
}

// Transaction is one atomic unit of work on a borrowed session. Commit and
// Rollback are terminal: every later call fails with a ProgrammingError.
type Transaction interface {
	ConnectionLike

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
