package queries

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/redbco/redb-connector/internal/database/mongodb/session"
	"github.com/redbco/redb-connector/pkg/connector"
	"github.com/redbco/redb-connector/pkg/dbcapabilities"
)

// Raw query types accepted by QueryRaw.
const (
	QueryTypeFind       = "findRaw"
	QueryTypeAggregate  = "aggregateRaw"
	QueryTypeRunCommand = "runCommandRaw"
)

// ExecuteRaw runs inputs["command"] and returns the affected count the
// server reports in n.
func (Write) ExecuteRaw(ctx context.Context, db *mongo.Database, sess session.Session, inputs map[string]interface{}) (int, error) {
	cmd, err := ParseDocument(inputs["command"])
	if err != nil {
		return 0, fmt.Errorf("invalid command: %w", err)
	}

	var result bson.M
	if err := db.RunCommand(sess.Context(ctx), cmd).Decode(&result); err != nil {
		return 0, err
	}
	return affectedCount(result["n"]), nil
}

// QueryRaw runs a raw find, aggregation or command and returns JSON
// friendly values.
func (Write) QueryRaw(ctx context.Context, db *mongo.Database, sess session.Session, model *connector.Model, inputs map[string]interface{}, queryType string) (interface{}, error) {
	sctx := sess.Context(ctx)

	switch queryType {
	case QueryTypeFind:
		if model == nil {
			return nil, fmt.Errorf("%s requires a model", queryType)
		}
		filter, err := optionalDocument(inputs["filter"])
		if err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
		opts, err := findOptions(inputs["options"])
		if err != nil {
			return nil, err
		}
		cursor, err := db.Collection(model.CollectionName()).Find(sctx, filter, opts)
		if err != nil {
			return nil, err
		}
		return decodeAll(sctx, cursor)

	case QueryTypeAggregate:
		if model == nil {
			return nil, fmt.Errorf("%s requires a model", queryType)
		}
		pipeline, err := ParsePipeline(inputs["pipeline"])
		if err != nil {
			return nil, fmt.Errorf("invalid pipeline: %w", err)
		}
		opts := options.Aggregate()
		if o, err := optionalDocument(inputs["options"]); err != nil {
			return nil, fmt.Errorf("invalid options: %w", err)
		} else if v, ok := lookupDoc(o, "allowDiskUse"); ok {
			if b, ok := v.(bool); ok {
				opts.SetAllowDiskUse(b)
			}
		}
		cursor, err := db.Collection(model.CollectionName()).Aggregate(sctx, pipeline, opts)
		if err != nil {
			return nil, err
		}
		return decodeAll(sctx, cursor)

	case QueryTypeRunCommand:
		cmd, err := ParseDocument(inputs["command"])
		if err != nil {
			return nil, fmt.Errorf("invalid command: %w", err)
		}
		var result bson.M
		if err := db.RunCommand(sctx, cmd).Decode(&result); err != nil {
			return nil, err
		}
		out := map[string]interface{}(result)
		convertBSONTypes(out)
		return out, nil

	default:
		return nil, connector.NewUnsupportedOperationError(dbcapabilities.MongoDB, "query_raw", fmt.Sprintf("unknown raw query type %q", queryType))
	}
}

// ParseDocument accepts a command or filter as a document, a map or an
// extended JSON string.
func ParseDocument(v interface{}) (bson.D, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("document is missing")
	case bson.D:
		return val, nil
	case bson.M:
		return toBSONDoc(val), nil
	case map[string]interface{}:
		return toBSONDoc(val), nil
	case string:
		return parseExtJSON([]byte(val))
	case []byte:
		return parseExtJSON(val)
	default:
		return nil, fmt.Errorf("unsupported document type %T", v)
	}
}

func optionalDocument(v interface{}) (bson.D, error) {
	if v == nil {
		return bson.D{}, nil
	}
	return ParseDocument(v)
}

func parseExtJSON(data []byte) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParsePipeline accepts a pipeline as a list of stages or an extended JSON
// array.
func ParsePipeline(v interface{}) (mongo.Pipeline, error) {
	var stages []interface{}
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("pipeline is missing")
	case mongo.Pipeline:
		return val, nil
	case []bson.D:
		return mongo.Pipeline(val), nil
	case bson.A:
		stages = val
	case []interface{}:
		stages = val
	case []map[string]interface{}:
		for _, s := range val {
			stages = append(stages, s)
		}
	case string:
		// Extended JSON has no top level arrays, so wrap the pipeline.
		var wrapper struct {
			Pipeline []bson.D `bson:"pipeline"`
		}
		if err := bson.UnmarshalExtJSON([]byte(`{"pipeline":`+val+`}`), false, &wrapper); err != nil {
			return nil, err
		}
		return mongo.Pipeline(wrapper.Pipeline), nil
	default:
		return nil, fmt.Errorf("unsupported pipeline type %T", v)
	}

	pipeline := make(mongo.Pipeline, len(stages))
	for i, s := range stages {
		stage, err := ParseDocument(s)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		pipeline[i] = stage
	}
	return pipeline, nil
}

func findOptions(v interface{}) (*options.FindOptionsBuilder, error) {
	opts := options.Find()
	doc, err := optionalDocument(v)
	if err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	for _, e := range doc {
		switch e.Key {
		case "projection":
			opts.SetProjection(e.Value)
		case "sort":
			opts.SetSort(e.Value)
		case "skip":
			opts.SetSkip(int64(affectedCount(e.Value)))
		case "limit":
			opts.SetLimit(int64(affectedCount(e.Value)))
		default:
			return nil, fmt.Errorf("unsupported find option %q", e.Key)
		}
	}
	return opts, nil
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]map[string]interface{}, error) {
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		result[i] = map[string]interface{}(d)
		convertBSONTypes(result[i])
	}
	return result, nil
}

// affectedCount reads a numeric server field, 0 when missing.
func affectedCount(v interface{}) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
