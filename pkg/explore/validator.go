package explore

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
	"github.com/ekaya-inc/ekaya-analyst/pkg/timerange"
)

// DefaultRowLimit is applied when a draft carries no explicit limit.
const DefaultRowLimit = 10

const timeframeClarification = "I couldn't understand the timeframe in your question. " +
	"Please specify a valid one, for example 'last 7 days', 'yesterday', or an " +
	"absolute range like '2025-09-01 to 2025-09-10'."

// Validator is the deterministic post-processor for mapper output. It checks
// a query draft against the schema, resolves any time intent into an absolute
// date filter, fills required defaults, and emits either a corrected valid
// draft or a clarification request. Never both.
type Validator struct {
	repo     Repository
	location *time.Location
	limit    int
	logger   *zap.Logger
}

// NewValidator creates a validator over the given schema repository.
// A nil location defaults to UTC; a non-positive limit defaults to
// DefaultRowLimit.
func NewValidator(repo Repository, location *time.Location, defaultLimit int, logger *zap.Logger) *Validator {
	if location == nil {
		location = time.UTC
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultRowLimit
	}
	return &Validator{
		repo:     repo,
		location: location,
		limit:    defaultLimit,
		logger:   logger.Named("validator"),
	}
}

// ValidateAndRepair applies the validation pipeline to a mapping result.
// Clarification requests pass through unchanged. The input draft is never
// mutated; validation works on a copy. The operation is idempotent: running
// it on an already-valid draft returns an identical draft.
func (v *Validator) ValidateAndRepair(result models.MappingResult, todayISO string) models.MappingResult {
	if result.NeedsClarification() {
		return result
	}
	if result.Draft == nil {
		return models.ClarificationResult("I couldn't build a query from that. Could you rephrase your question?")
	}

	draft := result.Draft.Clone()

	model, exploreName := v.repo.ModelExplore()
	if draft.Model == "" {
		draft.Model = model
	}
	if draft.Explore == "" {
		draft.Explore = exploreName
	}
	if draft.View == "" {
		draft.View = draft.Explore
	}

	if draft.TimeIntent != nil {
		if clarify, ok := v.resolveTimeIntent(draft, todayISO); !ok {
			return clarify
		}
	}

	if invalid := v.unknownFields(draft); len(invalid) > 0 {
		v.logger.Info("Draft references unknown fields", zap.Strings("fields", invalid))
		return models.ClarificationResult(fmt.Sprintf(
			"I don't recognize these fields: %s. Could you rephrase your question using the available data?",
			strings.Join(invalid, ", ")))
	}

	if clarify, ok := v.checkPivots(draft); !ok {
		return clarify
	}

	if draft.Limit <= 0 {
		draft.Limit = v.limit
	}
	v.applyAlwaysFilters(draft)

	return models.DraftResult(draft)
}

// resolveTimeIntent converts the draft's time intent into an absolute date
// filter. A failed normalization replaces the entire result with a
// clarification request; there is no soft default.
func (v *Validator) resolveTimeIntent(draft *models.QueryDraft, todayISO string) (models.MappingResult, bool) {
	intent := draft.TimeIntent

	field := intent.Field
	if field == "" || !v.repo.IsDateField(field) {
		field = v.repo.DateField()
	}
	if field == "" {
		return models.ClarificationResult(timeframeClarification), false
	}

	rangeStr, ok := timerange.ToAbsoluteRange(intent, todayISO, v.location)
	if !ok {
		v.logger.Info("Time intent normalization failed", zap.String("preset", intent.Preset))
		return models.ClarificationResult(timeframeClarification), false
	}

	if draft.Filters == nil {
		draft.Filters = make(map[string]string)
	}
	draft.Filters[field] = rangeStr
	draft.TimeIntent = nil
	return models.MappingResult{}, true
}

// unknownFields collects every field referenced by the draft that the schema
// does not define, plus role mismatches (a measure used as a pivot).
func (v *Validator) unknownFields(draft *models.QueryDraft) []string {
	seen := make(map[string]bool)
	var invalid []string
	record := func(name string) {
		if !seen[name] {
			seen[name] = true
			invalid = append(invalid, name)
		}
	}

	for _, f := range draft.Fields {
		if _, ok := v.repo.Field(f); !ok {
			record(f)
		}
	}
	for f := range draft.Filters {
		if _, ok := v.repo.Field(f); !ok {
			record(f)
		}
	}
	for _, s := range draft.Sorts {
		name := sortField(s)
		if _, ok := v.repo.Field(name); !ok {
			record(name)
		}
	}
	for _, p := range draft.Pivots {
		// Pivots group result columns, so they must be dimensions.
		if _, ok := v.repo.Dimension(p); !ok {
			record(p)
		}
	}

	return invalid
}

// checkPivots enforces the pivot constraints: at most one pivot, and the
// pivot must also appear in the field list.
func (v *Validator) checkPivots(draft *models.QueryDraft) (models.MappingResult, bool) {
	if len(draft.Pivots) == 0 {
		return models.MappingResult{}, true
	}
	if len(draft.Pivots) > 1 {
		return models.ClarificationResult(
			"I can only pivot by one field at a time. Which one would you like?"), false
	}
	pivot := draft.Pivots[0]
	for _, f := range draft.Fields {
		if f == pivot {
			return models.MappingResult{}, true
		}
	}
	return models.ClarificationResult(fmt.Sprintf(
		"The pivot field %s must also be part of the selected fields. Could you rephrase?", pivot)), false
}

// applyAlwaysFilters adds the schema's default filters without overriding
// anything the draft already sets, keeping validation idempotent.
func (v *Validator) applyAlwaysFilters(draft *models.QueryDraft) {
	defaults := v.repo.AlwaysFilters()
	if len(defaults) == 0 {
		return
	}
	if draft.Filters == nil {
		draft.Filters = make(map[string]string, len(defaults))
	}
	for _, df := range defaults {
		if _, exists := draft.Filters[df.Field]; !exists {
			draft.Filters[df.Field] = df.Value
		}
	}
}

// sortField strips an "asc"/"desc" direction suffix from a sort entry.
func sortField(s string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(s), " ")
	return name
}
