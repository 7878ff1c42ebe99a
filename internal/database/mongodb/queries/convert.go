package queries

import (
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/redbco/redb-connector/pkg/connector"
)

// toStorage converts an engine value into the representation stored for
// field. ObjectId fields accept hex strings; list fields convert element-wise.
func toStorage(field *connector.ScalarField, v interface{}) interface{} {
	if field == nil || v == nil {
		return v
	}
	if _, isBytes := v.([]byte); !isBytes {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
			out := make(bson.A, rv.Len())
			for i := range out {
				out[i] = scalarToStorage(field, rv.Index(i).Interface())
			}
			return out
		}
	}
	return scalarToStorage(field, v)
}

func scalarToStorage(field *connector.ScalarField, v interface{}) interface{} {
	switch field.Type {
	case connector.TypeObjectID:
		if s, ok := v.(string); ok {
			if oid, err := bson.ObjectIDFromHex(s); err == nil {
				return oid
			}
		}
	case connector.TypeDateTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
	}
	return v
}

// fromStorage converts a decoded BSON value into the value handed back to
// the engine.
func fromStorage(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC()
	case bson.Binary:
		return val.Data
	case bson.Decimal128:
		return val.String()
	case int32:
		return int64(val)
	case bson.D:
		m := make(map[string]interface{}, len(val))
		for _, elem := range val {
			m[elem.Key] = fromStorage(elem.Value)
		}
		return m
	case bson.M:
		m := make(map[string]interface{}, len(val))
		for k, e := range val {
			m[k] = fromStorage(e)
		}
		return m
	case bson.A:
		arr := make([]interface{}, len(val))
		for i, item := range val {
			arr[i] = fromStorage(item)
		}
		return arr
	default:
		return v
	}
}

// Helper function to convert map to BSON document
func toBSONDoc(m map[string]interface{}) bson.D {
	doc := bson.D{}
	for k, v := range m {
		// Handle nested maps
		if nestedMap, ok := v.(map[string]interface{}); ok {
			doc = append(doc, bson.E{Key: k, Value: toBSONDoc(nestedMap)})
		} else if nestedSlice, ok := v.([]interface{}); ok {
			// Handle arrays
			doc = append(doc, bson.E{Key: k, Value: convertSliceToBSON(nestedSlice)})
		} else {
			doc = append(doc, bson.E{Key: k, Value: v})
		}
	}
	return doc
}

// Helper function to convert slice to BSON array
func convertSliceToBSON(slice []interface{}) bson.A {
	result := make(bson.A, len(slice))
	for i, v := range slice {
		if nestedMap, ok := v.(map[string]interface{}); ok {
			result[i] = toBSONDoc(nestedMap)
		} else if nestedSlice, ok := v.([]interface{}); ok {
			result[i] = convertSliceToBSON(nestedSlice)
		} else {
			result[i] = v
		}
	}
	return result
}

// convertBSONTypes rewrites a raw result document in place into JSON
// friendly Go values.
func convertBSONTypes(doc map[string]interface{}) {
	for k, v := range doc {
		doc[k] = convertBSONValue(v)
	}
}

func convertBSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC().Format(time.RFC3339Nano)
	case bson.Binary:
		return string(val.Data)
	case bson.Decimal128:
		return val.String()
	case bson.D:
		// In v2, bson.D doesn't have Map() method, so we need to convert manually
		nestedMap := make(map[string]interface{}, len(val))
		for _, elem := range val {
			nestedMap[elem.Key] = elem.Value
		}
		convertBSONTypes(nestedMap)
		return nestedMap
	case bson.M:
		nestedMap := map[string]interface{}(val)
		convertBSONTypes(nestedMap)
		return nestedMap
	case map[string]interface{}:
		convertBSONTypes(val)
		return val
	case bson.A:
		arr := make([]interface{}, len(val))
		for i, item := range val {
			arr[i] = convertBSONValue(item)
		}
		return arr
	case []interface{}:
		for i, item := range val {
			val[i] = convertBSONValue(item)
		}
		return val
	default:
		return v
	}
}

// documentFromArgs renders write args as a document keyed by storage names.
func documentFromArgs(model *connector.Model, args connector.WriteArgs) bson.D {
	doc := make(bson.D, 0, args.Len())
	for _, f := range args.Fields() {
		name := f.Name
		var field *connector.ScalarField
		if sf, ok := model.Field(f.Name); ok {
			field = sf
			name = sf.StorageName()
		}
		doc = append(doc, bson.E{Key: name, Value: toStorage(field, f.Value)})
	}
	return doc
}

// lookupDoc returns the value stored under key in doc.
func lookupDoc(doc bson.D, key string) (interface{}, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// selectionFromDoc reads the primary identifier of model out of a document.
func selectionFromDoc(model *connector.Model, doc bson.M) connector.SelectionResult {
	ids := model.PrimaryIdentifier()
	pairs := make([]connector.SelectedValue, 0, len(ids))
	for _, f := range ids {
		pairs = append(pairs, connector.SelectedValue{Field: f.Name, Value: fromStorage(doc[f.StorageName()])})
	}
	return connector.NewSelectionResult(pairs...)
}
