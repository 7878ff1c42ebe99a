package connector

// WriteField is one field of a write payload.
type WriteField struct {
	Name  string
	Value interface{}
}

// WriteArgs is an ordered mapping of field name to new value for one record.
type WriteArgs struct {
	fields []WriteField
}

// NewWriteArgs builds write args from name/value pairs in order.
func NewWriteArgs(fields ...WriteField) WriteArgs {
	var args WriteArgs
	for _, f := range fields {
		args.Set(f.Name, f.Value)
	}
	return args
}

// Set assigns a value, keeping the position of an existing field.
func (a *WriteArgs) Set(name string, value interface{}) {
	for i := range a.fields {
		if a.fields[i].Name == name {
			a.fields[i].Value = value
			return
		}
	}
	a.fields = append(a.fields, WriteField{Name: name, Value: value})
}

// Get returns the value assigned to name.
func (a WriteArgs) Get(name string) (interface{}, bool) {
	for _, f := range a.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Fields returns the payload in insertion order.
func (a WriteArgs) Fields() []WriteField {
	out := make([]WriteField, len(a.fields))
	copy(out, a.fields)
	return out
}

// Len returns the number of fields.
func (a WriteArgs) Len() int {
	return len(a.fields)
}

// SelectedValue is one field of a SelectionResult.
type SelectedValue struct {
	Field string
	Value interface{}
}

// SelectionResult is the unique-key tuple of a record, used to correlate
// mutation results without fetching full records.
type SelectionResult struct {
	Pairs []SelectedValue
}

// NewSelectionResult builds a selection result from field/value pairs.
func NewSelectionResult(pairs ...SelectedValue) SelectionResult {
	return SelectionResult{Pairs: pairs}
}

// Get returns the value of a selected field.
func (s SelectionResult) Get(field string) (interface{}, bool) {
	for _, p := range s.Pairs {
		if p.Field == field {
			return p.Value, true
		}
	}
	return nil, false
}

// Values returns the selected values in order.
func (s SelectionResult) Values() []interface{} {
	out := make([]interface{}, len(s.Pairs))
	for i, p := range s.Pairs {
		out[i] = p.Value
	}
	return out
}

// IsEmpty reports whether nothing was selected.
func (s SelectionResult) IsEmpty() bool {
	return len(s.Pairs) == 0
}

// RecordIDPair links a parent identity to one related child identity.
type RecordIDPair struct {
	Parent SelectionResult
	Child  SelectionResult
}

// RecordFilter selects existing records by predicate and/or explicit identities.
type RecordFilter struct {
	Filter    Filter
	Selectors []SelectionResult
}

// NewRecordFilter builds a record filter from a predicate only.
func NewRecordFilter(f Filter) RecordFilter {
	return RecordFilter{Filter: f}
}

// HasSelectors reports whether explicit identities were supplied.
func (r RecordFilter) HasSelectors() bool {
	return len(r.Selectors) > 0
}

// UpdateType selects between single and multi record updates.
type UpdateType int

const (
	UpdateMany UpdateType = iota
	UpdateOne
)

// OrderBy orders a read by one scalar field.
type OrderBy struct {
	Field      *ScalarField
	Descending bool
}

// QueryArguments describe the shape of a read: filter, ordering, pagination and cursor.
type QueryArguments struct {
	Model   *Model
	Filter  *Filter
	OrderBy []OrderBy
	Cursor  *SelectionResult

	// Take limits the number of records; a negative value reads backwards from the cursor.
	Take *int64
	Skip *int64
}

// TakeAbs returns the absolute take and whether the read goes backwards.
func (q QueryArguments) TakeAbs() (int64, bool) {
	if q.Take == nil {
		return 0, false
	}
	if *q.Take < 0 {
		return -*q.Take, true
	}
	return *q.Take, false
}

// RelAggregationSelection requests a relation-derived aggregate on returned records.
type RelAggregationSelection struct {
	// Count counts the related records of Field.
	Field *RelationField
}

// Key returns the virtual field name the aggregate is exposed under.
func (r RelAggregationSelection) Key() string {
	return "_count_" + r.Field.Name
}

// Record is one returned record; values follow the field names of its container.
type Record struct {
	Values []interface{}
}

// SingleRecord is a single returned record.
type SingleRecord struct {
	FieldNames []string
	Record     Record
}

// Get returns the value of a named field.
func (r SingleRecord) Get(name string) (interface{}, bool) {
	return lookup(r.FieldNames, r.Record, name)
}

// ManyRecords is a list of returned records sharing field names.
type ManyRecords struct {
	FieldNames []string
	Records    []Record
}

// Len returns the number of records.
func (m ManyRecords) Len() int {
	return len(m.Records)
}

// Get returns the value of a named field of record i.
func (m ManyRecords) Get(i int, name string) (interface{}, bool) {
	if i < 0 || i >= len(m.Records) {
		return nil, false
	}
	return lookup(m.FieldNames, m.Records[i], name)
}

func lookup(names []string, r Record, name string) (interface{}, bool) {
	for i, n := range names {
		if n == name && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// AggregationKind is the accumulator of an aggregation selection.
type AggregationKind string

const (
	AggregateField   AggregationKind = "field"
	AggregateCount   AggregationKind = "count"
	AggregateSum     AggregationKind = "sum"
	AggregateAverage AggregationKind = "avg"
	AggregateMin     AggregationKind = "min"
	AggregateMax     AggregationKind = "max"
)

// AggregationSelection requests one accumulator over a set of fields.
// A Count without fields counts all records.
type AggregationSelection struct {
	Kind   AggregationKind
	Fields []*ScalarField
}

// AggregationResult is one accumulated value of an AggregationRow.
type AggregationResult struct {
	Kind AggregationKind
	// Field is empty for a count over all records.
	Field string
	Value interface{}
}

// AggregationRow is one result row of a grouped aggregation.
type AggregationRow []AggregationResult

// Get returns the value accumulated by kind for field.
func (r AggregationRow) Get(kind AggregationKind, field string) (interface{}, bool) {
	for _, res := range r {
		if res.Kind == kind && res.Field == field {
			return res.Value, true
		}
	}
	return nil, false
}

// NativeUpsert describes a single-statement upsert request.
type NativeUpsert struct {
	Model    *Model
	Filter   Filter
	Create   WriteArgs
	Update   WriteArgs
	Selected FieldSelection
}
