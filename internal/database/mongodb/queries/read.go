package queries

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/redbco/redb-connector/internal/database/mongodb/session"
	"github.com/redbco/redb-connector/pkg/connector"
)

// Read is the driver-backed read router.
type Read struct{}

// GetSingleRecord returns the first document matching filter, or nil.
func (Read) GetSingleRecord(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, filter connector.Filter, selected connector.FieldSelection, aggregations []connector.RelAggregationSelection) (*connector.SingleRecord, error) {
	query, err := FilterToBSON(filter)
	if err != nil {
		return nil, err
	}

	opts := options.FindOne().SetProjection(readProjection(selected, aggregations))
	var doc bson.M
	err = db.Collection(model.CollectionName()).FindOne(sess.Context(ctx), query, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &connector.SingleRecord{
		FieldNames: fieldNames(selected, aggregations),
		Record:     recordFromDoc(doc, selected, aggregations),
	}, nil
}

// GetManyRecords runs a paginated read. A negative take reads backwards from
// the cursor; the result is returned in the requested order either way.
func (Read) GetManyRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args connector.QueryArguments, selected connector.FieldSelection, aggregations []connector.RelAggregationSelection) (connector.ManyRecords, error) {
	result := connector.ManyRecords{FieldNames: fieldNames(selected, aggregations)}

	take, backwards := args.TakeAbs()
	if args.Take != nil && take == 0 {
		return result, nil
	}

	coll := db.Collection(model.CollectionName())
	sctx := sess.Context(ctx)
	keys := sortKeys(model, args.OrderBy)

	query := bson.D{}
	if args.Filter != nil {
		q, err := FilterToBSON(*args.Filter)
		if err != nil {
			return result, err
		}
		query = q
	}
	if args.Cursor != nil {
		cond, err := cursorCondition(sctx, coll, *args.Cursor, model, keys, backwards)
		if err != nil {
			return result, err
		}
		query = andQuery(query, cond)
	}

	opts := options.Find().
		SetProjection(readProjection(selected, aggregations)).
		SetSort(sortDoc(keys, backwards))
	if args.Skip != nil && *args.Skip > 0 {
		opts.SetSkip(*args.Skip)
	}
	if take > 0 {
		opts.SetLimit(take)
	}

	cursor, err := coll.Find(sctx, query, opts)
	if err != nil {
		return result, err
	}
	var docs []bson.M
	if err := cursor.All(sctx, &docs); err != nil {
		return result, err
	}

	if backwards {
		for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
			docs[i], docs[j] = docs[j], docs[i]
		}
	}
	result.Records = make([]connector.Record, len(docs))
	for i, doc := range docs {
		result.Records[i] = recordFromDoc(doc, selected, aggregations)
	}
	return result, nil
}

// GetRelatedM2MRecordIDs lists (parent, child) identity pairs from the id
// lists stored on the parents.
func (Read) GetRelatedM2MRecordIDs(ctx context.Context, db *mongo.Database, sess session.Session, field *connector.RelationField, from []connector.SelectionResult) ([]connector.RecordIDPair, error) {
	if len(from) == 0 {
		return nil, nil
	}
	query, err := FilterToBSON(connector.FilterForSelections(field.Model, from))
	if err != nil {
		return nil, err
	}

	ids := field.Model.PrimaryIdentifier()
	proj := projection(append(connector.FieldSelection{field.IDsField}, ids...))
	sctx := sess.Context(ctx)
	cursor, err := db.Collection(field.Model.CollectionName()).Find(sctx, query, options.Find().SetProjection(proj))
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cursor.All(sctx, &docs); err != nil {
		return nil, err
	}

	childIDs := field.RelatedModel.PrimaryIdentifier()
	if len(childIDs) == 0 {
		return nil, nil
	}
	var pairs []connector.RecordIDPair
	for _, doc := range docs {
		parent := selectionFromDoc(field.Model, doc)
		related, _ := doc[field.IDsField.StorageName()].(bson.A)
		for _, id := range related {
			pairs = append(pairs, connector.RecordIDPair{
				Parent: parent,
				Child:  connector.NewSelectionResult(connector.SelectedValue{Field: childIDs[0].Name, Value: fromStorage(id)}),
			})
		}
	}
	return pairs, nil
}

type sortKey struct {
	field *connector.ScalarField
	desc  bool
}

// sortKeys returns the requested ordering with the primary identifier
// appended as a tie breaker, so pagination is stable.
func sortKeys(model *connector.Model, orderBy []connector.OrderBy) []sortKey {
	keys := make([]sortKey, 0, len(orderBy)+1)
	seen := make(map[string]bool)
	for _, o := range orderBy {
		keys = append(keys, sortKey{field: o.Field, desc: o.Descending})
		seen[o.Field.StorageName()] = true
	}
	for _, id := range model.PrimaryIdentifier() {
		if !seen[id.StorageName()] {
			keys = append(keys, sortKey{field: id})
		}
	}
	return keys
}

func sortDoc(keys []sortKey, backwards bool) bson.D {
	doc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		dir := 1
		if k.desc != backwards {
			dir = -1
		}
		doc = append(doc, bson.E{Key: k.field.StorageName(), Value: dir})
	}
	return doc
}

// cursorCondition matches the cursor record and every record after it in
// the effective sort order.
func cursorCondition(ctx context.Context, coll *mongo.Collection, cursor connector.SelectionResult, model *connector.Model, keys []sortKey, backwards bool) (bson.D, error) {
	cursorQuery, err := FilterToBSON(connector.FilterForSelection(model, cursor))
	if err != nil {
		return nil, err
	}
	fields := make(connector.FieldSelection, len(keys))
	for i, k := range keys {
		fields[i] = k.field
	}

	var doc bson.M
	err = coll.FindOne(ctx, cursorQuery, options.FindOne().SetProjection(projection(fields))).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return matchNothing(), nil
	}
	if err != nil {
		return nil, err
	}
	return afterCursor(keys, doc, backwards), nil
}

// afterCursor builds the lexicographic "at or after" predicate over keys
// for the values of the cursor document.
func afterCursor(keys []sortKey, cursorDoc bson.M, backwards bool) bson.D {
	ors := make(bson.A, 0, len(keys))
	for i, k := range keys {
		conj := make(bson.D, 0, i+1)
		for _, prev := range keys[:i] {
			name := prev.field.StorageName()
			conj = append(conj, bson.E{Key: name, Value: bson.D{{Key: "$eq", Value: cursorDoc[name]}}})
		}

		op := "$gt"
		if k.desc != backwards {
			op = "$lt"
		}
		if i == len(keys)-1 {
			op += "e"
		}
		name := k.field.StorageName()
		conj = append(conj, bson.E{Key: name, Value: bson.D{{Key: op, Value: cursorDoc[name]}}})
		ors = append(ors, conj)
	}
	if len(ors) == 1 {
		return ors[0].(bson.D)
	}
	return bson.D{{Key: "$or", Value: ors}}
}

func andQuery(a, b bson.D) bson.D {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	return bson.D{{Key: "$and", Value: bson.A{a, b}}}
}

// readProjection includes the selected fields and the id lists needed for
// relation counts.
func readProjection(selected connector.FieldSelection, aggregations []connector.RelAggregationSelection) bson.D {
	fields := selected
	for _, a := range aggregations {
		fields = fields.Merge(connector.FieldSelection{a.Field.IDsField})
	}
	return projection(fields)
}

func fieldNames(selected connector.FieldSelection, aggregations []connector.RelAggregationSelection) []string {
	names := selected.Names()
	for _, a := range aggregations {
		names = append(names, a.Key())
	}
	return names
}

func recordFromDoc(doc bson.M, selected connector.FieldSelection, aggregations []connector.RelAggregationSelection) connector.Record {
	values := make([]interface{}, 0, len(selected)+len(aggregations))
	for _, f := range selected {
		values = append(values, fromStorage(doc[f.StorageName()]))
	}
	for _, a := range aggregations {
		related, _ := doc[a.Field.IDsField.StorageName()].(bson.A)
		values = append(values, int64(len(related)))
	}
	return connector.Record{Values: values}
}
