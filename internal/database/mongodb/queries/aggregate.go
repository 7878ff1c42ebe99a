package queries

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/redbco/redb-connector/internal/database/mongodb/session"
	"github.com/redbco/redb-connector/pkg/connector"
)

const countAllKey = "count__all"

// Aggregate is the driver-backed aggregation router.
type Aggregate struct{}

// Aggregate runs a grouped aggregation and returns one row per group.
func (Aggregate) Aggregate(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, args connector.QueryArguments, selections []connector.AggregationSelection, groupBy []*connector.ScalarField, having *connector.Filter) ([]connector.AggregationRow, error) {
	pipeline, err := BuildAggregationPipeline(args, selections, groupBy, having)
	if err != nil {
		return nil, err
	}

	sctx := sess.Context(ctx)
	cursor, err := db.Collection(model.CollectionName()).Aggregate(sctx, pipeline)
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cursor.All(sctx, &docs); err != nil {
		return nil, err
	}

	rows := make([]connector.AggregationRow, len(docs))
	for i, doc := range docs {
		rows[i] = aggregationRow(doc, selections, groupBy)
	}
	return rows, nil
}

// BuildAggregationPipeline renders an aggregation as pipeline stages:
// match, sort, skip, limit, group, then the having match.
func BuildAggregationPipeline(args connector.QueryArguments, selections []connector.AggregationSelection, groupBy []*connector.ScalarField, having *connector.Filter) (mongo.Pipeline, error) {
	var pipeline mongo.Pipeline

	if args.Filter != nil && !args.Filter.IsEmpty() {
		match, err := FilterToBSON(*args.Filter)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	if len(args.OrderBy) > 0 {
		keys := make([]sortKey, len(args.OrderBy))
		for i, o := range args.OrderBy {
			keys[i] = sortKey{field: o.Field, desc: o.Descending}
		}
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sortDoc(keys, false)}})
	}
	if args.Skip != nil && *args.Skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: *args.Skip}})
	}
	if take, _ := args.TakeAbs(); take > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: take}})
	}

	group := bson.D{{Key: "_id", Value: groupID(groupBy)}}
	for _, sel := range selections {
		acc, err := accumulators(sel)
		if err != nil {
			return nil, err
		}
		group = append(group, acc...)
	}
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: group}})

	if having != nil && !having.IsEmpty() {
		match, err := filterToBSON(*having, groupPath)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	if len(groupBy) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}})
	}

	return pipeline, nil
}

func groupID(groupBy []*connector.ScalarField) interface{} {
	if len(groupBy) == 0 {
		return nil
	}
	id := make(bson.D, len(groupBy))
	for i, f := range groupBy {
		id[i] = bson.E{Key: f.Name, Value: "$" + f.StorageName()}
	}
	return id
}

// groupPath addresses a group-by field in a $group output document.
func groupPath(f *connector.ScalarField) string {
	return "_id." + f.Name
}

func accumulatorKey(kind connector.AggregationKind, f *connector.ScalarField) string {
	return string(kind) + "_" + f.Name
}

func accumulators(sel connector.AggregationSelection) (bson.D, error) {
	if sel.Kind == connector.AggregateField {
		return nil, nil
	}
	if sel.Kind == connector.AggregateCount && len(sel.Fields) == 0 {
		return bson.D{{Key: countAllKey, Value: bson.D{{Key: "$sum", Value: 1}}}}, nil
	}

	out := make(bson.D, 0, len(sel.Fields))
	for _, f := range sel.Fields {
		ref := "$" + f.StorageName()
		var expr bson.D
		switch sel.Kind {
		case connector.AggregateCount:
			present := bson.D{{Key: "$in", Value: bson.A{bson.D{{Key: "$type", Value: ref}}, bson.A{"missing", "null"}}}}
			expr = bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{present, 0, 1}}}}}
		case connector.AggregateSum:
			expr = bson.D{{Key: "$sum", Value: ref}}
		case connector.AggregateAverage:
			expr = bson.D{{Key: "$avg", Value: ref}}
		case connector.AggregateMin:
			expr = bson.D{{Key: "$min", Value: ref}}
		case connector.AggregateMax:
			expr = bson.D{{Key: "$max", Value: ref}}
		default:
			return nil, fmt.Errorf("unsupported aggregation %q", sel.Kind)
		}
		out = append(out, bson.E{Key: accumulatorKey(sel.Kind, f), Value: expr})
	}
	return out, nil
}

func aggregationRow(doc bson.M, selections []connector.AggregationSelection, groupBy []*connector.ScalarField) connector.AggregationRow {
	groups, _ := doc["_id"].(bson.D)
	groupValue := func(f *connector.ScalarField) interface{} {
		v, _ := lookupDoc(groups, f.Name)
		return fromStorage(v)
	}

	var row connector.AggregationRow
	for _, f := range groupBy {
		row = append(row, connector.AggregationResult{Kind: connector.AggregateField, Field: f.Name, Value: groupValue(f)})
	}
	for _, sel := range selections {
		switch {
		case sel.Kind == connector.AggregateField:
			for _, f := range sel.Fields {
				if _, ok := row.Get(connector.AggregateField, f.Name); !ok {
					row = append(row, connector.AggregationResult{Kind: connector.AggregateField, Field: f.Name, Value: groupValue(f)})
				}
			}
		case sel.Kind == connector.AggregateCount && len(sel.Fields) == 0:
			row = append(row, connector.AggregationResult{Kind: connector.AggregateCount, Value: fromStorage(doc[countAllKey])})
		default:
			for _, f := range sel.Fields {
				row = append(row, connector.AggregationResult{Kind: sel.Kind, Field: f.Name, Value: fromStorage(doc[accumulatorKey(sel.Kind, f)])})
			}
		}
	}
	return row
}
