package connector

// FilterKind is the node type of a Filter tree.
type FilterKind int

const (
	// FilterEmpty matches every record.
	FilterEmpty FilterKind = iota
	FilterAnd
	FilterOr
	FilterNot
	FilterCondition
)

// ConditionOp is the comparison applied by a condition node.
type ConditionOp string

const (
	OpEquals     ConditionOp = "equals"
	OpNotEquals  ConditionOp = "not"
	OpIn         ConditionOp = "in"
	OpNotIn      ConditionOp = "notIn"
	OpLt         ConditionOp = "lt"
	OpLte        ConditionOp = "lte"
	OpGt         ConditionOp = "gt"
	OpGte        ConditionOp = "gte"
	OpContains   ConditionOp = "contains"
	OpStartsWith ConditionOp = "startsWith"
	OpEndsWith   ConditionOp = "endsWith"
	OpIsNull     ConditionOp = "isNull"
)

// Filter is a predicate over records of one model. The zero value matches everything.
type Filter struct {
	Kind     FilterKind
	Children []Filter

	Field *ScalarField
	Op    ConditionOp
	Value interface{}
}

// IsEmpty reports whether the filter matches every record.
func (f Filter) IsEmpty() bool {
	return f.Kind == FilterEmpty
}

// And matches records matching every child.
func And(children ...Filter) Filter {
	return Filter{Kind: FilterAnd, Children: children}
}

// Or matches records matching at least one child.
func Or(children ...Filter) Filter {
	return Filter{Kind: FilterOr, Children: children}
}

// Not matches records matching no child.
func Not(children ...Filter) Filter {
	return Filter{Kind: FilterNot, Children: children}
}

// Condition compares one field with a value.
func Condition(field *ScalarField, op ConditionOp, value interface{}) Filter {
	return Filter{Kind: FilterCondition, Field: field, Op: op, Value: value}
}

// Equals matches records whose field equals value.
func Equals(field *ScalarField, value interface{}) Filter {
	return Condition(field, OpEquals, value)
}

// In matches records whose field is one of values.
func In(field *ScalarField, values ...interface{}) Filter {
	return Condition(field, OpIn, values)
}

// FilterForSelection matches exactly the record identified by s.
func FilterForSelection(model *Model, s SelectionResult) Filter {
	conds := make([]Filter, 0, len(s.Pairs))
	for _, p := range s.Pairs {
		if f, ok := model.Field(p.Field); ok {
			conds = append(conds, Equals(f, p.Value))
		}
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return And(conds...)
}

// FilterForSelections matches any of the records identified by selections.
func FilterForSelections(model *Model, selections []SelectionResult) Filter {
	ors := make([]Filter, len(selections))
	for i, s := range selections {
		ors[i] = FilterForSelection(model, s)
	}
	return Or(ors...)
}
