package builder

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// Recipe is a named, pre-validated query template for a common question.
type Recipe struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	QueryTemplate models.QueryDraft `json:"query_template"`
}

// ParameterMappings translate friendly parameter names into schema field
// names when a recipe is filled in.
type ParameterMappings struct {
	Dimensions map[string]string `json:"dimensions"`
	Measures   map[string]string `json:"measures"`
}

type recipeFile struct {
	Recipes           []Recipe          `json:"recipes"`
	ParameterMappings ParameterMappings `json:"parameter_mappings"`
}

// Catalog holds the loaded recipe set.
type Catalog struct {
	recipes  map[string]Recipe
	order    []string
	mappings ParameterMappings
	logger   *zap.Logger
}

// LoadCatalog reads a recipe catalog from a JSON file.
func LoadCatalog(path string, logger *zap.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipe catalog %s: %w", path, err)
	}
	return ParseCatalog(data, logger)
}

// ParseCatalog builds a catalog from raw JSON.
func ParseCatalog(data []byte, logger *zap.Logger) (*Catalog, error) {
	var file recipeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing recipe catalog: %w", err)
	}
	c := &Catalog{
		recipes:  make(map[string]Recipe, len(file.Recipes)),
		mappings: file.ParameterMappings,
		logger:   logger.Named("recipes"),
	}
	for _, r := range file.Recipes {
		if r.Name == "" {
			return nil, fmt.Errorf("parsing recipe catalog: recipe with empty name")
		}
		if _, dup := c.recipes[r.Name]; dup {
			return nil, fmt.Errorf("parsing recipe catalog: duplicate recipe %q", r.Name)
		}
		c.recipes[r.Name] = r
		c.order = append(c.order, r.Name)
	}
	return c, nil
}

// Names lists recipe names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Describe returns a short menu of available recipes for prompt context.
func (c *Catalog) Describe() string {
	var out string
	for _, name := range c.order {
		out += fmt.Sprintf("- %s: %s\n", name, c.recipes[name].Description)
	}
	return out
}

// BuildFromRecipe fills in a recipe template with the given parameters.
// Recognized parameters: "limit" (number), "filters" (map of field to
// filter expression), plus any key present in the catalog's parameter
// mappings, which appends the mapped field to the query. Unknown recipe
// names return apperrors.ErrNotFound so callers can fall back to another
// construction path.
func (c *Catalog) BuildFromRecipe(name string, params map[string]any) (models.MappingResult, error) {
	recipe, ok := c.recipes[name]
	if !ok {
		return models.MappingResult{}, fmt.Errorf("recipe %q: %w", name, apperrors.ErrNotFound)
	}

	draft := recipe.QueryTemplate.Clone()
	if draft.Filters == nil {
		draft.Filters = map[string]string{}
	}

	for key, value := range params {
		switch key {
		case "limit":
			if n, ok := asInt(value); ok && n > 0 {
				draft.Limit = n
			}
		case "filters":
			filters, ok := asFilters(value)
			if !ok {
				c.logger.Debug("Ignoring malformed filters parameter")
				continue
			}
			for field, expr := range filters {
				draft.Filters[field] = expr
			}
		default:
			if field, ok := c.mappings.Dimensions[key]; ok {
				draft.Fields = appendMissing(draft.Fields, field)
			} else if field, ok := c.mappings.Measures[key]; ok {
				draft.Fields = appendMissing(draft.Fields, field)
			} else {
				c.logger.Debug("Ignoring unknown recipe parameter", zap.String("param", key))
			}
		}
	}

	return models.DraftResult(draft), nil
}

// asFilters normalizes a filters parameter. JSON-decoded params arrive as
// map[string]any, direct callers may pass map[string]string.
func asFilters(v any) (map[string]string, bool) {
	switch m := v.(type) {
	case map[string]string:
		return m, true
	case map[string]any:
		out := make(map[string]string, len(m))
		for field, expr := range m {
			if s, ok := expr.(string); ok {
				out[field] = s
			} else {
				out[field] = fmt.Sprint(expr)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func appendMissing(fields []string, field string) []string {
	for _, f := range fields {
		if f == field {
			return fields
		}
	}
	return append(fields, field)
}
