package explore

import (
	"strings"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// prioritySuffixes is the fixed allow-list of dimension name suffixes that
// are surfaced in the mapping context. Order determines output order.
var prioritySuffixes = []string{
	"country",
	"date",
	"device_category",
	"device_browser",
	"channel",
	"city",
	"region",
}

// ContextBuilder projects a schema into the condensed textual context the
// NL mapper consumes. The same schema always yields byte-identical output,
// so the mapping capability sees an identical context across runs.
type ContextBuilder struct {
	repo Repository
}

// NewContextBuilder creates a context builder over the given repository.
func NewContextBuilder(repo Repository) *ContextBuilder {
	return &ContextBuilder{repo: repo}
}

// BuildContext renders the schema context: available measures with keyword
// hints, priority dimensions with keyword hints, canonical mapping patterns,
// and the fixed business rules.
func (b *ContextBuilder) BuildContext() string {
	var sb strings.Builder

	sb.WriteString("EXPLORE SCHEMA CONTEXT:\n\n")

	sb.WriteString("=== AVAILABLE MEASURES ===\n")
	sb.WriteString(b.measuresSection())
	sb.WriteString("\n\n=== AVAILABLE DIMENSIONS ===\n")
	sb.WriteString(b.dimensionsSection())
	sb.WriteString("\n\n=== MAPPING PATTERNS ===\n")
	sb.WriteString(b.patternsSection())
	sb.WriteString("\n\n=== BUSINESS RULES ===\n")
	sb.WriteString(b.rulesSection())

	return sb.String()
}

func (b *ContextBuilder) measuresSection() string {
	schema := b.repo.Schema()
	lines := make([]string, 0, len(schema.Measures)*2)

	for i := range schema.Measures {
		m := &schema.Measures[i]
		name := m.Identifier()
		label := m.Label
		if label == "" {
			label = name
		}
		lines = append(lines, "- "+name+": "+label)
		if keywords := MeasureKeywords(name); len(keywords) > 0 {
			lines = append(lines, "  Keywords: "+strings.Join(keywords, ", "))
		}
	}

	return strings.Join(lines, "\n")
}

func (b *ContextBuilder) dimensionsSection() string {
	var lines []string

	for _, dim := range b.priorityDimensions() {
		name := dim.Identifier()
		label := dim.Label
		if label == "" {
			label = name
		}
		lines = append(lines, "- "+name+": "+label)
		if keywords := DimensionKeywords(name); len(keywords) > 0 {
			lines = append(lines, "  Keywords: "+strings.Join(keywords, ", "))
		}
	}

	return strings.Join(lines, "\n")
}

func (b *ContextBuilder) patternsSection() string {
	var lines []string

	if m := b.defaultMeasure(); m != "" {
		lines = append(lines, "- sessions/visits/traffic/count → "+m)
	}
	// Iterate in priority-suffix order so the context is reproducible.
	for _, suffix := range prioritySuffixes {
		phrases, ok := patternPhrases[suffix]
		if !ok {
			continue
		}
		if dim := b.dimensionWithSuffix(suffix); dim != "" {
			lines = append(lines, "- "+phrases+" → "+dim)
		}
	}
	if dateField := b.repo.DateField(); dateField != "" {
		lines = append(lines, "- this month → filter on "+dateField)
		lines = append(lines, "- last week → filter on "+dateField)
	}

	return strings.Join(lines, "\n")
}

func (b *ContextBuilder) rulesSection() string {
	rules := []string{
		"- Always include at least one measure",
	}
	if dateField := b.repo.DateField(); dateField != "" {
		rules = append(rules, "- Time queries require "+dateField)
	}
	if m := b.defaultMeasure(); m != "" {
		rules = append(rules, "- Default measure is "+m)
	}
	rules = append(rules, "- Be consistent: same query → same mapping")
	return strings.Join(rules, "\n")
}

// patternPhrases maps dimension suffixes to their canonical phrase hints.
var patternPhrases = map[string]string{
	"country":         "country/countries/location",
	"date":            "time/date/month/year/trend",
	"device_browser":  "browser/browsers",
	"device_category": "device/devices",
	"channel":         "channel/channels/source",
	"city":            "city/cities",
	"region":          "region/state/province",
}

// priorityDimensions returns the schema's dimensions whose names end in one
// of the priority suffixes, in schema order.
func (b *ContextBuilder) priorityDimensions() []*models.Field {
	schema := b.repo.Schema()
	var out []*models.Field
	for i := range schema.Dimensions {
		dim := &schema.Dimensions[i]
		name := dim.Identifier()
		for _, suffix := range prioritySuffixes {
			if strings.HasSuffix(name, suffix) {
				out = append(out, dim)
				break
			}
		}
	}
	return out
}

// dimensionWithSuffix returns the first dimension ending in suffix, or "".
func (b *ContextBuilder) dimensionWithSuffix(suffix string) string {
	schema := b.repo.Schema()
	for i := range schema.Dimensions {
		name := schema.Dimensions[i].Identifier()
		if strings.HasSuffix(name, suffix) {
			return name
		}
	}
	return ""
}

// defaultMeasure is the first measure in schema order.
func (b *ContextBuilder) defaultMeasure() string {
	schema := b.repo.Schema()
	if len(schema.Measures) == 0 {
		return ""
	}
	return schema.Measures[0].Identifier()
}

// MeasureKeywords derives semantic keyword hints for a measure from
// substring matches on its field name.
func MeasureKeywords(fieldName string) []string {
	lower := strings.ToLower(fieldName)
	var keywords []string
	switch {
	case strings.Contains(lower, "sessions"):
		keywords = append(keywords, "sessions", "visits", "traffic", "count")
	case strings.Contains(lower, "revenue"):
		keywords = append(keywords, "revenue", "sales", "income")
	case strings.Contains(lower, "users"):
		keywords = append(keywords, "users", "people", "visitors")
	}
	return keywords
}

// DimensionKeywords derives semantic keyword hints for a dimension from
// substring matches on its field name.
func DimensionKeywords(fieldName string) []string {
	lower := strings.ToLower(fieldName)
	switch {
	case strings.Contains(lower, "country"):
		return []string{"country", "countries", "location", "geography"}
	case strings.Contains(lower, "date"):
		return []string{"date", "time", "day", "month", "year", "when", "trend", "over time"}
	case strings.Contains(lower, "browser"):
		return []string{"browser", "browsers"}
	case strings.Contains(lower, "device"):
		return []string{"device", "devices", "platform"}
	case strings.Contains(lower, "channel"):
		return []string{"channel", "channels", "source", "medium"}
	case strings.Contains(lower, "city"):
		return []string{"city", "cities"}
	case strings.Contains(lower, "region"):
		return []string{"region", "state", "province"}
	}
	return nil
}
