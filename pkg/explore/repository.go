// Package explore provides access to explore schema definitions and the
// deterministic processing that surrounds natural-language query mapping:
// schema lookups, LLM context construction, and query validation/repair.
package explore

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// Repository provides read access to an explore's field definitions.
// Implementations are safe for concurrent use: the schema is loaded once
// and never mutated afterwards.
type Repository interface {
	// Schema returns the loaded explore schema.
	Schema() *models.ExploreSchema

	// ModelExplore returns the model and explore names.
	ModelExplore() (string, string)

	// Dimension looks up a dimension by field name.
	Dimension(name string) (*models.Field, bool)

	// Measure looks up a measure by field name.
	Measure(name string) (*models.Field, bool)

	// Field looks up any field (dimension or measure) by name.
	Field(name string) (*models.Field, bool)

	// FieldNames returns all field names, dimensions first, in schema order.
	FieldNames() []string

	// FieldType returns the type of the named field.
	FieldType(name string) (models.FieldType, bool)

	// IsDateField reports whether the named field is date-typed.
	IsDateField(name string) bool

	// IsYesNoField reports whether the named field is yes/no-typed.
	IsYesNoField(name string) bool

	// DateField returns the designated date dimension for time filters:
	// the first date-typed dimension in schema order. Empty if none.
	DateField() string

	// AlwaysFilters returns filters the schema declares must always apply.
	AlwaysFilters() []models.DefaultFilter

	// ValidateFields splits the given field names into those present in the
	// schema and those unknown to it.
	ValidateFields(names []string) (valid, invalid []string)
}

type repository struct {
	schema     *models.ExploreSchema
	dimensions map[string]*models.Field
	measures   map[string]*models.Field
	dateField  string
	logger     *zap.Logger
}

var _ Repository = (*repository)(nil)

// NewRepository builds a repository over an already-parsed schema.
// It verifies the schema invariants: model and explore names present,
// at least one dimension, and unique field names within each category.
func NewRepository(schema *models.ExploreSchema, logger *zap.Logger) (Repository, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: schema is nil", apperrors.ErrSchemaInvalid)
	}
	if schema.Model == "" {
		return nil, fmt.Errorf("%w: missing required field 'model'", apperrors.ErrSchemaInvalid)
	}
	if schema.Explore == "" {
		return nil, fmt.Errorf("%w: missing required field 'explore'", apperrors.ErrSchemaInvalid)
	}
	if len(schema.Dimensions) == 0 {
		return nil, fmt.Errorf("%w: missing required field 'filters' (dimension list)", apperrors.ErrSchemaInvalid)
	}

	r := &repository{
		schema:     schema,
		dimensions: make(map[string]*models.Field, len(schema.Dimensions)),
		measures:   make(map[string]*models.Field, len(schema.Measures)),
		logger:     logger.Named("schema"),
	}

	for i := range schema.Dimensions {
		f := &schema.Dimensions[i]
		name := f.Identifier()
		if name == "" {
			return nil, fmt.Errorf("%w: dimension %d has no name", apperrors.ErrSchemaInvalid, i)
		}
		if _, dup := r.dimensions[name]; dup {
			return nil, fmt.Errorf("%w: duplicate dimension %q", apperrors.ErrSchemaInvalid, name)
		}
		r.dimensions[name] = f
		if r.dateField == "" && f.Type == models.FieldTypeDate {
			r.dateField = name
		}
	}

	for i := range schema.Measures {
		f := &schema.Measures[i]
		name := f.Identifier()
		if name == "" {
			return nil, fmt.Errorf("%w: measure %d has no name", apperrors.ErrSchemaInvalid, i)
		}
		if _, dup := r.measures[name]; dup {
			return nil, fmt.Errorf("%w: duplicate measure %q", apperrors.ErrSchemaInvalid, name)
		}
		r.measures[name] = f
	}

	r.logger.Info("Schema loaded",
		zap.String("model", schema.Model),
		zap.String("explore", schema.Explore),
		zap.Int("dimensions", len(schema.Dimensions)),
		zap.Int("measures", len(schema.Measures)))

	return r, nil
}

// LoadFile reads and parses an explore schema JSON file, then builds a
// repository over it.
func LoadFile(path string, logger *zap.Logger) (Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file %s: %w", path, err)
	}

	var schema models.ExploreSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}

	return NewRepository(&schema, logger)
}

func (r *repository) Schema() *models.ExploreSchema {
	return r.schema
}

func (r *repository) ModelExplore() (string, string) {
	return r.schema.Model, r.schema.Explore
}

func (r *repository) Dimension(name string) (*models.Field, bool) {
	f, ok := r.dimensions[name]
	return f, ok
}

func (r *repository) Measure(name string) (*models.Field, bool) {
	f, ok := r.measures[name]
	return f, ok
}

func (r *repository) Field(name string) (*models.Field, bool) {
	if f, ok := r.dimensions[name]; ok {
		return f, true
	}
	f, ok := r.measures[name]
	return f, ok
}

func (r *repository) FieldNames() []string {
	names := make([]string, 0, len(r.schema.Dimensions)+len(r.schema.Measures))
	for i := range r.schema.Dimensions {
		names = append(names, r.schema.Dimensions[i].Identifier())
	}
	for i := range r.schema.Measures {
		names = append(names, r.schema.Measures[i].Identifier())
	}
	return names
}

func (r *repository) FieldType(name string) (models.FieldType, bool) {
	f, ok := r.Field(name)
	if !ok {
		return "", false
	}
	return f.Type, true
}

func (r *repository) IsDateField(name string) bool {
	t, ok := r.FieldType(name)
	return ok && t == models.FieldTypeDate
}

func (r *repository) IsYesNoField(name string) bool {
	t, ok := r.FieldType(name)
	return ok && t == models.FieldTypeYesNo
}

func (r *repository) DateField() string {
	return r.dateField
}

func (r *repository) AlwaysFilters() []models.DefaultFilter {
	return r.schema.Defaults.AlwaysFilter
}

func (r *repository) ValidateFields(names []string) (valid, invalid []string) {
	for _, name := range names {
		if _, ok := r.Field(name); ok {
			valid = append(valid, name)
		} else {
			invalid = append(invalid, name)
		}
	}
	sort.Strings(invalid)
	return valid, invalid
}
