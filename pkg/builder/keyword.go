// Package builder provides deterministic query construction paths that do
// not depend on a text-generation capability: keyword-heuristic mapping and
// recipe template filling.
package builder

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/explore"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// ExplicitParams carries caller-supplied overrides that win over any
// keyword inference.
type ExplicitParams struct {
	Dimension string
	Measure   string
	Sort      string
	Limit     int
	Filters   map[string]string
}

// keywordEntry pairs a field-name suffix with the keywords that select it.
// Entries are scanned in order; the first hit wins.
type keywordEntry struct {
	suffix   string
	keywords []string
}

// Scan order is fixed so ties always break the same way.
var dimensionTable = []keywordEntry{
	{"country", []string{"country", "countries", "location", "geography"}},
	{"date", []string{"time", "date", "month", "year", "trend", "over time"}},
	{"device_category", []string{"device", "devices", "platform"}},
	{"device_browser", []string{"browser", "browsers"}},
	{"channel", []string{"channel", "channels", "source", "medium"}},
	{"city", []string{"city", "cities"}},
	{"region", []string{"region", "state", "province"}},
}

var measureTable = []keywordEntry{
	{"revenue", []string{"revenue", "sales", "income", "money", "dollars"}},
	{"sessions", []string{"sessions", "visits", "traffic"}},
	{"order_count", []string{"orders", "transactions", "purchases"}},
	{"customer_count", []string{"customers", "clients"}},
	{"users", []string{"users", "people", "visitors"}},
}

const (
	defaultDimensionSuffix = "country"
	defaultMeasureSuffix   = "revenue"
	defaultLimit           = 10
)

var (
	lastDaysPattern   = regexp.MustCompile(`last (\d+) days?`)
	pastMonthsPattern = regexp.MustCompile(`past (\d+) months?`)
	yearPattern       = regexp.MustCompile(`\b(\d{4})\b`)
	monthNamePattern  = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`)

	limitPatterns = []*regexp.Regexp{
		regexp.MustCompile(`top (\d+)`),
		regexp.MustCompile(`first (\d+)`),
		regexp.MustCompile(`show (\d+)`),
		regexp.MustCompile(`(\d+) results?`),
	}
)

// KeywordBuilder maps user text onto a query draft using fixed keyword
// tables. It never calls out to anything: same input, same output, always
// terminates.
type KeywordBuilder struct {
	repo   explore.Repository
	logger *zap.Logger
}

// NewKeywordBuilder creates a keyword builder over the given schema.
func NewKeywordBuilder(repo explore.Repository, logger *zap.Logger) *KeywordBuilder {
	return &KeywordBuilder{
		repo:   repo,
		logger: logger.Named("keyword-builder"),
	}
}

// Build constructs a query draft from user text and explicit parameters.
// When neither a dimension nor a measure can be inferred and no explicit
// params name one, the result is a clarification request with example
// phrasing; vagueness surfaces to the user instead of resolving to an
// arbitrary default.
func (b *KeywordBuilder) Build(userText string, params ExplicitParams) models.MappingResult {
	text := strings.ToLower(userText)
	tokens := singularTokens(text)

	dimension := b.pickDimension(text, tokens, params)
	measure := b.pickMeasure(text, tokens, params)

	if dimension == "" && measure == "" {
		return models.ClarificationResult(
			"I need more specific information. Try asking:\n" +
				"• 'sessions this month'\n" +
				"• 'sessions by country'\n" +
				"• 'top countries by revenue'\n" +
				"• 'sessions over time'")
	}

	// A matched side pulls in the fixed default for the other, when the
	// schema has it.
	if dimension == "" {
		dimension = b.fieldWithSuffix(defaultDimensionSuffix, b.isDimension)
	}
	if measure == "" {
		measure = b.fieldWithSuffix(defaultMeasureSuffix, b.isMeasure)
	}

	model, exploreName := b.repo.ModelExplore()
	draft := &models.QueryDraft{
		Model:   model,
		Explore: exploreName,
		View:    exploreName,
		Filters: map[string]string{},
		Limit:   pickLimit(text, params),
	}
	if dimension != "" {
		draft.Fields = append(draft.Fields, dimension)
	}
	if measure != "" {
		draft.Fields = append(draft.Fields, measure)
	}

	b.addDateFilter(draft, text, params)
	b.addSort(draft, measure, params)

	b.logger.Debug("Built keyword query",
		zap.String("dimension", dimension),
		zap.String("measure", measure),
		zap.Int("limit", draft.Limit))

	return models.DraftResult(draft)
}

func (b *KeywordBuilder) pickDimension(text string, tokens map[string]bool, params ExplicitParams) string {
	if params.Dimension != "" {
		if _, ok := b.repo.Dimension(params.Dimension); ok {
			return params.Dimension
		}
	}
	for _, entry := range dimensionTable {
		name := b.fieldWithSuffix(entry.suffix, b.isDimension)
		if name == "" {
			continue
		}
		if matchesAny(text, tokens, entry.keywords) {
			return name
		}
	}
	return ""
}

func (b *KeywordBuilder) pickMeasure(text string, tokens map[string]bool, params ExplicitParams) string {
	if params.Measure != "" {
		if _, ok := b.repo.Measure(params.Measure); ok {
			return params.Measure
		}
	}
	for _, entry := range measureTable {
		name := b.fieldWithSuffix(entry.suffix, b.isMeasure)
		if name == "" {
			continue
		}
		if matchesAny(text, tokens, entry.keywords) {
			return name
		}
	}
	return ""
}

// addDateFilter extracts at most one date filter from the text. Patterns
// are tried in a fixed order; the first match wins.
func (b *KeywordBuilder) addDateFilter(draft *models.QueryDraft, text string, params ExplicitParams) {
	for field, value := range params.Filters {
		draft.Filters[field] = value
	}

	dateField := b.repo.DateField()
	if dateField == "" {
		return
	}
	if _, exists := draft.Filters[dateField]; exists {
		return
	}

	if m := lastDaysPattern.FindStringSubmatch(text); m != nil {
		draft.Filters[dateField] = "last " + m[1] + " days"
		return
	}
	if m := pastMonthsPattern.FindStringSubmatch(text); m != nil {
		draft.Filters[dateField] = "last " + m[1] + " months"
		return
	}
	if m := yearPattern.FindStringSubmatch(text); m != nil {
		draft.Filters[dateField] = "year " + m[1]
		return
	}
	if m := monthNamePattern.FindStringSubmatch(text); m != nil {
		draft.Filters[dateField] = strings.ToUpper(m[1][:1]) + m[1][1:]
		return
	}
}

func (b *KeywordBuilder) addSort(draft *models.QueryDraft, measure string, params ExplicitParams) {
	if params.Sort != "" {
		draft.Sorts = []string{params.Sort}
		return
	}
	if measure != "" {
		draft.Sorts = []string{measure + " desc"}
	}
}

func pickLimit(text string, params ExplicitParams) int {
	if params.Limit > 0 {
		return params.Limit
	}
	for _, pattern := range limitPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return defaultLimit
}

func (b *KeywordBuilder) isDimension(name string) bool {
	_, ok := b.repo.Dimension(name)
	return ok
}

func (b *KeywordBuilder) isMeasure(name string) bool {
	_, ok := b.repo.Measure(name)
	return ok
}

// fieldWithSuffix resolves a table suffix against the schema: the first
// field in schema order whose name ends with the suffix and passes the
// role check.
func (b *KeywordBuilder) fieldWithSuffix(suffix string, role func(string) bool) string {
	for _, name := range b.repo.FieldNames() {
		if strings.HasSuffix(name, suffix) && role(name) {
			return name
		}
	}
	return ""
}

// matchesAny reports whether any keyword appears in the text, either as a
// raw substring or as a singular-folded token (so "countries" still matches
// a "country" keyword).
func matchesAny(text string, tokens map[string]bool, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
		if tokens[kw] {
			return true
		}
	}
	return false
}

// singularTokens splits text into words and folds plurals.
func singularTokens(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		tokens[tok] = true
		tokens[inflection.Singular(tok)] = true
	}
	return tokens
}
