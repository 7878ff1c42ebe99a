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

const codeDuplicateKey = 11000

// Write is the driver-backed write router. Every call runs inside the given
// session and returns raw driver errors.
type Write struct{}

// CreateRecord inserts one document. A missing ObjectId primary key is
// generated client side so the identity is known without a read back.
func (Write) CreateRecord(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args connector.WriteArgs) (connector.SelectionResult, error) {
	doc := withGeneratedID(model, documentFromArgs(model, args))

	res, err := db.Collection(model.CollectionName()).InsertOne(sess.Context(ctx), doc)
	if err != nil {
		return connector.SelectionResult{}, err
	}

	stored := bson.M{}
	for _, e := range doc {
		stored[e.Key] = e.Value
	}
	if _, ok := stored["_id"]; !ok {
		stored["_id"] = res.InsertedID
	}
	return selectionFromDoc(model, stored), nil
}

// CreateRecords inserts a batch. Without skipDuplicates the batch is atomic:
// it runs in a transaction on the session unless one is already open. With
// skipDuplicates the insert is unordered and duplicate key failures only
// reduce the count, except inside a transaction, where the server aborts the
// transaction on the first write error and the failure is returned.
func (Write) CreateRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args []connector.WriteArgs, skipDuplicates bool) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(args))
	for i, a := range args {
		docs[i] = withGeneratedID(model, documentFromArgs(model, a))
	}

	coll := db.Collection(model.CollectionName())
	sctx := sess.Context(ctx)

	if skipDuplicates {
		res, err := coll.InsertMany(sctx, docs, options.InsertMany().SetOrdered(false))
		if err != nil {
			if failed, ok := skippedDuplicates(err, sess.InTransaction()); ok {
				return len(docs) - failed, nil
			}
			return 0, err
		}
		return len(res.InsertedIDs), nil
	}

	var created int
	err := inTransaction(ctx, sess, func() error {
		res, err := coll.InsertMany(sctx, docs)
		if err != nil {
			return err
		}
		created = len(res.InsertedIDs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// inTransaction runs fn inside the transaction open on sess, or in a new one
// that is committed when fn succeeds and aborted when it fails.
func inTransaction(ctx context.Context, sess session.Session, fn func() error) error {
	if sess.InTransaction() {
		return fn()
	}
	if err := sess.StartTransaction(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		_ = sess.AbortTransaction(ctx)
		return err
	}
	return sess.CommitTransaction(ctx)
}

// UpdateRecords resolves the identities of the matching documents first and
// then updates exactly those, so the reported identities are the updated
// ones. UpdateOne limits the update to the first match.
func (Write) UpdateRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, filter connector.RecordFilter, args connector.WriteArgs, kind connector.UpdateType) ([]connector.SelectionResult, error) {
	query, err := RecordFilterToBSON(model, filter)
	if err != nil {
		return nil, err
	}

	coll := db.Collection(model.CollectionName())
	sctx := sess.Context(ctx)

	findOpts := options.Find().SetProjection(projection(model.PrimaryIdentifier()))
	if kind == connector.UpdateOne {
		findOpts.SetLimit(1)
	}
	cursor, err := coll.Find(sctx, query, findOpts)
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cursor.All(sctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	selections := make([]connector.SelectionResult, len(docs))
	for i, doc := range docs {
		selections[i] = selectionFromDoc(model, doc)
	}
	if args.Len() == 0 {
		return selections, nil
	}

	idQuery, err := FilterToBSON(connector.FilterForSelections(model, selections))
	if err != nil {
		return nil, err
	}
	update := bson.D{{Key: "$set", Value: documentFromArgs(model, args)}}
	if _, err := coll.UpdateMany(sctx, idQuery, update); err != nil {
		return nil, err
	}

	return applyIdentityChanges(model, selections, args), nil
}

// DeleteRecords deletes every matching document.
func (Write) DeleteRecords(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, filter connector.RecordFilter) (int, error) {
	query, err := RecordFilterToBSON(model, filter)
	if err != nil {
		return 0, err
	}
	res, err := db.Collection(model.CollectionName()).DeleteMany(sess.Context(ctx), query)
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

// M2MConnect adds the children to the parent's id list and the parent to
// each child's back id list.
func (Write) M2MConnect(ctx context.Context, db *mongo.Database, sess session.Session, field *connector.RelationField, parent connector.SelectionResult, children []connector.SelectionResult) error {
	return updateRelation(ctx, db, sess, field, parent, children, "$addToSet")
}

// M2MDisconnect removes the link on both sides.
func (Write) M2MDisconnect(ctx context.Context, db *mongo.Database, sess session.Session, field *connector.RelationField, parent connector.SelectionResult, children []connector.SelectionResult) error {
	return updateRelation(ctx, db, sess, field, parent, children, "$pull")
}

func updateRelation(ctx context.Context, db *mongo.Database, sess session.Session, field *connector.RelationField, parent connector.SelectionResult, children []connector.SelectionResult, op string) error {
	if len(children) == 0 {
		return nil
	}
	sctx := sess.Context(ctx)

	childIDs := make(bson.A, 0, len(children))
	for _, c := range children {
		childIDs = append(childIDs, primaryValue(field.RelatedModel, field.IDsField, c))
	}

	parentQuery, err := FilterToBSON(connector.FilterForSelection(field.Model, parent))
	if err != nil {
		return err
	}
	var parentUpdate bson.D
	if op == "$pull" {
		parentUpdate = bson.D{{Key: op, Value: bson.D{{Key: field.IDsField.StorageName(), Value: bson.D{{Key: "$in", Value: childIDs}}}}}}
	} else {
		parentUpdate = bson.D{{Key: op, Value: bson.D{{Key: field.IDsField.StorageName(), Value: bson.D{{Key: "$each", Value: childIDs}}}}}}
	}
	if _, err := db.Collection(field.Model.CollectionName()).UpdateOne(sctx, parentQuery, parentUpdate); err != nil {
		return err
	}

	if field.BackIDsField == nil {
		return nil
	}
	childQuery, err := FilterToBSON(connector.FilterForSelections(field.RelatedModel, children))
	if err != nil {
		return err
	}
	parentID := primaryValue(field.Model, field.BackIDsField, parent)
	childUpdate := bson.D{{Key: op, Value: bson.D{{Key: field.BackIDsField.StorageName(), Value: parentID}}}}
	_, err = db.Collection(field.RelatedModel.CollectionName()).UpdateMany(sctx, childQuery, childUpdate)
	return err
}

// primaryValue returns the stored primary key of s, typed like the id list
// field it is written into.
func primaryValue(model *connector.Model, listField *connector.ScalarField, s connector.SelectionResult) interface{} {
	ids := model.PrimaryIdentifier()
	if len(ids) == 0 {
		return nil
	}
	v, _ := s.Get(ids[0].Name)
	return scalarToStorage(listField, v)
}

// withGeneratedID prepends a fresh ObjectId when the model's single
// ObjectId primary key is missing from doc.
func withGeneratedID(model *connector.Model, doc bson.D) bson.D {
	ids := model.PrimaryIdentifier()
	if len(ids) != 1 || ids[0].Type != connector.TypeObjectID {
		return doc
	}
	if _, ok := lookupDoc(doc, ids[0].StorageName()); ok {
		return doc
	}
	return append(bson.D{{Key: ids[0].StorageName(), Value: bson.NewObjectID()}}, doc...)
}

// applyIdentityChanges reflects updated primary key values in selections.
func applyIdentityChanges(model *connector.Model, selections []connector.SelectionResult, args connector.WriteArgs) []connector.SelectionResult {
	ids := model.PrimaryIdentifier()
	for i := range selections {
		for j, p := range selections[i].Pairs {
			if !ids.Contains(p.Field) {
				continue
			}
			if v, ok := args.Get(p.Field); ok {
				selections[i].Pairs[j].Value = v
			}
		}
	}
	return selections
}

// skippedDuplicates reports how many documents an unordered insert skipped
// as duplicates. Nothing is skipped inside a transaction: the server has
// already aborted it.
func skippedDuplicates(err error, inTxn bool) (int, bool) {
	if inTxn {
		return 0, false
	}
	return duplicateFailures(err)
}

// duplicateFailures reports how many documents of an unordered insert failed,
// if every failure is a duplicate key violation.
func duplicateFailures(err error) (int, bool) {
	var codes []int

	var bulkErr mongo.BulkWriteException
	var writeErr mongo.WriteException
	switch {
	case errors.As(err, &bulkErr):
		if bulkErr.WriteConcernError != nil {
			return 0, false
		}
		for _, we := range bulkErr.WriteErrors {
			codes = append(codes, we.Code)
		}
	case errors.As(err, &writeErr):
		if writeErr.WriteConcernError != nil {
			return 0, false
		}
		for _, we := range writeErr.WriteErrors {
			codes = append(codes, we.Code)
		}
	default:
		return 0, false
	}

	if len(codes) == 0 {
		return 0, false
	}
	for _, c := range codes {
		if c != codeDuplicateKey {
			return 0, false
		}
	}
	return len(codes), true
}

func projection(fields connector.FieldSelection) bson.D {
	doc := make(bson.D, 0, len(fields))
	for _, f := range fields {
		doc = append(doc, bson.E{Key: f.StorageName(), Value: 1})
	}
	return doc
}
