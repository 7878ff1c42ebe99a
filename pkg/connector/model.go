package connector

// FieldType is the storage type of a scalar field.
type FieldType string

const (
	TypeString   FieldType = "String"
	TypeInt      FieldType = "Int"
	TypeFloat    FieldType = "Float"
	TypeBoolean  FieldType = "Boolean"
	TypeDateTime FieldType = "DateTime"
	TypeJSON     FieldType = "Json"
	TypeBytes    FieldType = "Bytes"
	TypeObjectID FieldType = "ObjectId"
)

// ScalarField describes one stored field of a model.
type ScalarField struct {
	Name   string
	DBName string
	Type   FieldType
	IsID   bool
	IsList bool

	// Model is set by NewModel.
	Model *Model
}

// StorageName returns the name the field is stored under.
func (f *ScalarField) StorageName() string {
	if f.DBName != "" {
		return f.DBName
	}
	return f.Name
}

// RelationField describes a many-to-many relation stored as a list of
// related ids on each side.
type RelationField struct {
	Name string

	// Model owns the relation; RelatedModel is on the other side.
	Model        *Model
	RelatedModel *Model

	// IDsField is the scalar list field on Model holding related ids.
	IDsField *ScalarField

	// BackIDsField is the scalar list field on RelatedModel holding ids of Model.
	BackIDsField *ScalarField
}

// Model is immutable schema metadata for one record type.
type Model struct {
	Name       string
	Collection string
	Fields     []*ScalarField

	byName map[string]*ScalarField
}

// NewModel creates a model and indexes its fields.
func NewModel(name, collection string, fields ...*ScalarField) *Model {
	m := &Model{
		Name:       name,
		Collection: collection,
		Fields:     fields,
		byName:     make(map[string]*ScalarField, len(fields)),
	}
	for _, f := range fields {
		f.Model = m
		m.byName[f.Name] = f
	}
	return m
}

// CollectionName returns the collection backing the model.
func (m *Model) CollectionName() string {
	if m.Collection != "" {
		return m.Collection
	}
	return m.Name
}

// Field looks up a scalar field by name.
func (m *Model) Field(name string) (*ScalarField, bool) {
	if m.byName != nil {
		f, ok := m.byName[name]
		return f, ok
	}
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// PrimaryIdentifier returns the fields that uniquely identify a record.
func (m *Model) PrimaryIdentifier() FieldSelection {
	var sel FieldSelection
	for _, f := range m.Fields {
		if f.IsID {
			sel = append(sel, f)
		}
	}
	return sel
}

// FieldSelection is an ordered set of scalar fields to populate on returned records.
type FieldSelection []*ScalarField

// Names returns the field names in selection order.
func (s FieldSelection) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Contains reports whether a field with the given name is selected.
func (s FieldSelection) Contains(name string) bool {
	for _, f := range s {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Merge returns s extended with the fields of other it does not contain yet.
func (s FieldSelection) Merge(other FieldSelection) FieldSelection {
	out := make(FieldSelection, len(s), len(s)+len(other))
	copy(out, s)
	for _, f := range other {
		if !out.Contains(f.Name) {
			out = append(out, f)
		}
	}
	return out
}
