package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUserModel() *Model {
	return NewModel("User", "users",
		&ScalarField{Name: "id", DBName: "_id", Type: TypeObjectID, IsID: true},
		&ScalarField{Name: "name", Type: TypeString},
		&ScalarField{Name: "email", Type: TypeString},
	)
}

func TestWriteArgsKeepsInsertionOrder(t *testing.T) {
	args := NewWriteArgs(
		WriteField{Name: "name", Value: "a"},
		WriteField{Name: "email", Value: "a@example.com"},
	)
	args.Set("name", "b")
	args.Set("age", 3)

	fields := args.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, []string{"name", "email", "age"}, []string{fields[0].Name, fields[1].Name, fields[2].Name})

	v, ok := args.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = args.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 3, args.Len())
}

func TestModelPrimaryIdentifier(t *testing.T) {
	m := testUserModel()

	ids := m.PrimaryIdentifier()
	require.Len(t, ids, 1)
	assert.Equal(t, "id", ids[0].Name)
	assert.Equal(t, "_id", ids[0].StorageName())
	assert.Same(t, m, ids[0].Model)

	name, ok := m.Field("name")
	require.True(t, ok)
	assert.Equal(t, "name", name.StorageName())
	assert.Equal(t, "users", m.CollectionName())
}

func TestFieldSelectionMerge(t *testing.T) {
	m := testUserModel()
	name, _ := m.Field("name")

	merged := FieldSelection{name}.Merge(m.PrimaryIdentifier())
	assert.Equal(t, []string{"name", "id"}, merged.Names())

	again := merged.Merge(FieldSelection{name})
	assert.Equal(t, []string{"name", "id"}, again.Names())
}

func TestFilterForSelection(t *testing.T) {
	m := testUserModel()
	id, _ := m.Field("id")

	f := FilterForSelection(m, NewSelectionResult(SelectedValue{Field: "id", Value: "abc"}))
	assert.Equal(t, FilterCondition, f.Kind)
	assert.Same(t, id, f.Field)
	assert.Equal(t, OpEquals, f.Op)
	assert.Equal(t, "abc", f.Value)

	many := FilterForSelections(m, []SelectionResult{
		NewSelectionResult(SelectedValue{Field: "id", Value: "a"}),
		NewSelectionResult(SelectedValue{Field: "id", Value: "b"}),
	})
	assert.Equal(t, FilterOr, many.Kind)
	assert.Len(t, many.Children, 2)
	assert.True(t, Filter{}.IsEmpty())
}

func TestRecordAccessors(t *testing.T) {
	many := ManyRecords{
		FieldNames: []string{"id", "name"},
		Records: []Record{
			{Values: []interface{}{"1", "a"}},
			{Values: []interface{}{"2", "b"}},
		},
	}

	v, ok := many.Get(1, "name")
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = many.Get(2, "name")
	assert.False(t, ok)

	single := SingleRecord{FieldNames: many.FieldNames, Record: many.Records[0]}
	v, ok = single.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestQueryArgumentsTakeAbs(t *testing.T) {
	take := int64(-5)
	n, backwards := QueryArguments{Take: &take}.TakeAbs()
	assert.Equal(t, int64(5), n)
	assert.True(t, backwards)

	n, backwards = QueryArguments{}.TakeAbs()
	assert.Zero(t, n)
	assert.False(t, backwards)
}

func TestAggregationRowGet(t *testing.T) {
	row := AggregationRow{
		{Kind: AggregateCount, Value: int64(3)},
		{Kind: AggregateMax, Field: "age", Value: 42},
	}

	v, ok := row.Get(AggregateCount, "")
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)

	_, ok = row.Get(AggregateMin, "age")
	assert.False(t, ok)
}
