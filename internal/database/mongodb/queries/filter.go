package queries

import (
	"fmt"
	"reflect"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/redbco/redb-connector/pkg/connector"
)

// matchNothing returns a query document no record satisfies.
func matchNothing() bson.D {
	return bson.D{{Key: "$expr", Value: false}}
}

// pathFunc names the document path a field is read from.
type pathFunc func(*connector.ScalarField) string

func storagePath(f *connector.ScalarField) string {
	return f.StorageName()
}

// FilterToBSON translates a filter into a query document over stored field
// names. The empty filter yields an empty document.
func FilterToBSON(f connector.Filter) (bson.D, error) {
	return filterToBSON(f, storagePath)
}

// RecordFilterToBSON translates a record filter. Explicit selectors narrow
// the predicate to the identified records.
func RecordFilterToBSON(model *connector.Model, rf connector.RecordFilter) (bson.D, error) {
	f := rf.Filter
	if rf.HasSelectors() {
		selectors := connector.FilterForSelections(model, rf.Selectors)
		if f.IsEmpty() {
			f = selectors
		} else {
			f = connector.And(f, selectors)
		}
	}
	return FilterToBSON(f)
}

func filterToBSON(f connector.Filter, path pathFunc) (bson.D, error) {
	switch f.Kind {
	case connector.FilterEmpty:
		return bson.D{}, nil
	case connector.FilterAnd:
		children, err := childrenToBSON(f.Children, path)
		if err != nil {
			return nil, err
		}
		switch len(children) {
		case 0:
			return bson.D{}, nil
		case 1:
			return children[0].(bson.D), nil
		}
		return bson.D{{Key: "$and", Value: children}}, nil
	case connector.FilterOr:
		if len(f.Children) == 0 {
			return matchNothing(), nil
		}
		children, err := childrenToBSON(f.Children, path)
		if err != nil {
			return nil, err
		}
		if len(children) == 1 {
			return children[0].(bson.D), nil
		}
		return bson.D{{Key: "$or", Value: children}}, nil
	case connector.FilterNot:
		if len(f.Children) == 0 {
			return bson.D{}, nil
		}
		children, err := childrenToBSON(f.Children, path)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$nor", Value: children}}, nil
	case connector.FilterCondition:
		return conditionToBSON(f, path)
	default:
		return nil, fmt.Errorf("unknown filter kind %d", f.Kind)
	}
}

func childrenToBSON(children []connector.Filter, path pathFunc) (bson.A, error) {
	out := make(bson.A, 0, len(children))
	for _, c := range children {
		doc, err := filterToBSON(c, path)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func conditionToBSON(f connector.Filter, path pathFunc) (bson.D, error) {
	if f.Field == nil {
		return nil, fmt.Errorf("condition %q has no field", f.Op)
	}
	name := path(f.Field)
	cond := func(op string, v interface{}) bson.D {
		return bson.D{{Key: name, Value: bson.D{{Key: op, Value: v}}}}
	}

	switch f.Op {
	case connector.OpEquals:
		return cond("$eq", toStorage(f.Field, f.Value)), nil
	case connector.OpNotEquals:
		return cond("$ne", toStorage(f.Field, f.Value)), nil
	case connector.OpLt:
		return cond("$lt", toStorage(f.Field, f.Value)), nil
	case connector.OpLte:
		return cond("$lte", toStorage(f.Field, f.Value)), nil
	case connector.OpGt:
		return cond("$gt", toStorage(f.Field, f.Value)), nil
	case connector.OpGte:
		return cond("$gte", toStorage(f.Field, f.Value)), nil
	case connector.OpIn, connector.OpNotIn:
		values, err := listValues(f.Field, f.Value)
		if err != nil {
			return nil, err
		}
		if f.Op == connector.OpIn {
			return cond("$in", values), nil
		}
		return cond("$nin", values), nil
	case connector.OpContains, connector.OpStartsWith, connector.OpEndsWith:
		s, ok := f.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%s on %s requires a string, got %T", f.Op, f.Field.Name, f.Value)
		}
		pattern := regexp.QuoteMeta(s)
		switch f.Op {
		case connector.OpStartsWith:
			pattern = "^" + pattern
		case connector.OpEndsWith:
			pattern += "$"
		}
		return cond("$regex", pattern), nil
	case connector.OpIsNull:
		isNull, ok := f.Value.(bool)
		if !ok {
			return nil, fmt.Errorf("isNull on %s requires a bool, got %T", f.Field.Name, f.Value)
		}
		if isNull {
			return cond("$eq", nil), nil
		}
		return cond("$ne", nil), nil
	default:
		return nil, fmt.Errorf("unsupported condition %q on %s", f.Op, f.Field.Name)
	}
}

func listValues(field *connector.ScalarField, v interface{}) (bson.A, error) {
	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("list condition on %s requires a slice, got %T", field.Name, v)
	}
	out := make(bson.A, rv.Len())
	for i := range out {
		out[i] = scalarToStorage(field, rv.Index(i).Interface())
	}
	return out, nil
}
