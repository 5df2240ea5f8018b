package models

// FieldType enumerates the value types an explore field can carry.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeDate   FieldType = "date"
	FieldTypeNumber FieldType = "number"
	FieldTypeYesNo  FieldType = "yesno"
)

// Field is a single dimension or measure definition from an explore schema.
// Schema files may use either "field_name" or "name" for the identifier.
type Field struct {
	FieldName string    `json:"field_name"`
	Name      string    `json:"name,omitempty"`
	Label     string    `json:"label"`
	Type      FieldType `json:"type"`
}

// Identifier returns the canonical field name, preferring field_name over name.
func (f *Field) Identifier() string {
	if f.FieldName != "" {
		return f.FieldName
	}
	return f.Name
}

// DefaultFilter is a filter the schema declares should always be applied.
type DefaultFilter struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SchemaDefaults holds optional default behavior declared by the schema file.
type SchemaDefaults struct {
	AlwaysFilter []DefaultFilter `json:"always_filter,omitempty"`
}

// ExploreSchema is the full definition of a queryable explore.
// In the schema file format, dimensions are listed under "filters".
// Immutable once loaded.
type ExploreSchema struct {
	Model      string         `json:"model"`
	Explore    string         `json:"explore"`
	Dimensions []Field        `json:"filters"`
	Measures   []Field        `json:"measures,omitempty"`
	Defaults   SchemaDefaults `json:"defaults,omitempty"`
}
