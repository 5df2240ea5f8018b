package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-analyst/pkg/builder"
	"github.com/ekaya-inc/ekaya-analyst/pkg/llm"
	"github.com/ekaya-inc/ekaya-analyst/pkg/logging"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

const (
	synthesisTemperature = 0.3

	// synthesisRowCap bounds how many rows are handed to the capability
	// for summarization.
	synthesisRowCap = 50

	executionFailedMessage = "I wasn't able to retrieve that data right now. Please try again in a moment."
	emptyResultMessage     = "The query ran successfully but returned no data. Try a broader time range or different filters."
)

// handleGatherData runs the full data path: build a query, execute it, and
// synthesize an answer.
func (a *Agent) handleGatherData(ctx context.Context, userText string) *Response {
	today := a.todayISO()

	result := a.buildQuery(ctx, userText, today)
	result = a.validator.ValidateAndRepair(result, today)

	if result.NeedsClarification() {
		return &Response{
			Text:  result.Clarification.ClarificationRequest,
			State: StateClarifying,
		}
	}

	draft := result.Draft
	rows, err := a.looker.RunInlineQuery(ctx, draft)
	if err != nil {
		a.logger.Error("Query execution failed",
			zap.String("model", draft.Model),
			zap.String("explore", draft.Explore),
			zap.String("error", logging.SanitizeError(err)))
		return &Response{Text: executionFailedMessage, State: StateError, Draft: draft}
	}

	a.extractInsights(draft)

	if len(rows) == 0 {
		return &Response{Text: emptyResultMessage, State: StateDone, Draft: draft, Rows: rows}
	}

	text := a.synthesize(ctx, userText, draft, rows)
	return &Response{Text: text, State: StateDone, Draft: draft, Rows: rows}
}

// buildQuery tries construction paths in order of fidelity: recipe fill,
// then the NL mapper, then the deterministic keyword builder.
func (a *Agent) buildQuery(ctx context.Context, userText, today string) models.MappingResult {
	if result, ok := a.tryRecipe(ctx, userText); ok {
		return result
	}

	result, err := a.mapper.MapQuery(ctx, userText, a.memory.HistorySummary(), today)
	if err == nil {
		return result
	}

	a.logger.Warn("Mapper unavailable, using keyword builder",
		zap.String("error", logging.SanitizeError(err)))
	return a.keyword.Build(userText, builder.ExplicitParams{})
}

// tryRecipe asks the capability to match the question against the recipe
// catalog. Any failure, or no match, falls through to the mapper.
func (a *Agent) tryRecipe(ctx context.Context, userText string) (models.MappingResult, bool) {
	if a.recipes == nil || len(a.recipes.Names()) == 0 {
		return models.MappingResult{}, false
	}

	prompt := fmt.Sprintf(`Available query recipes:
%s
Pick the recipe matching the user question, or "none" if nothing fits well.
Respond with JSON: {"recipe": "<name or none>", "params": {}}
Recognized params: "limit" (number).

Question: %s`, a.recipes.Describe(), userText)

	result, err := a.client.GenerateResponse(ctx, prompt,
		"You match questions to query recipes. Respond with a single JSON object.",
		triageTemperature)
	if err != nil {
		a.logger.Debug("Recipe curation failed", zap.Error(err))
		return models.MappingResult{}, false
	}

	parsed, err := llm.ParseJSONResponse[struct {
		Recipe string         `json:"recipe"`
		Params map[string]any `json:"params"`
	}](result.Content)
	if err != nil || parsed.Recipe == "" || strings.EqualFold(parsed.Recipe, "none") {
		return models.MappingResult{}, false
	}

	mapped, err := a.recipes.BuildFromRecipe(parsed.Recipe, parsed.Params)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			a.logger.Warn("Recipe fill failed", zap.String("recipe", parsed.Recipe), zap.Error(err))
		}
		return models.MappingResult{}, false
	}

	a.logger.Debug("Matched recipe", zap.String("recipe", parsed.Recipe))
	return mapped, true
}

// synthesize turns result rows into a short narrative answer. When the
// capability is unavailable the fallback is a plain row preview.
func (a *Agent) synthesize(ctx context.Context, userText string, draft *models.QueryDraft, rows []models.Row) string {
	capped := rows
	if len(capped) > synthesisRowCap {
		capped = capped[:synthesisRowCap]
	}

	rowsJSON, err := json.Marshal(capped)
	if err != nil {
		return fallbackSummary(rows)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The user asked: %s\n\n", userText)
	fmt.Fprintf(&b, "Query fields: %s\n", strings.Join(draft.Fields, ", "))
	fmt.Fprintf(&b, "Results (%d rows total):\n%s\n\n", len(rows), rowsJSON)
	if profile := a.memory.ProfileSummary(); profile != "" {
		b.WriteString(profile)
		b.WriteString("\n")
	}
	b.WriteString("Answer the question in 2-4 sentences using only these results. Mention concrete numbers.")

	result, err := a.client.GenerateResponse(ctx, b.String(),
		"You are a data analyst. Be concise and factual.",
		synthesisTemperature)
	if err != nil || strings.TrimSpace(result.Content) == "" {
		a.logger.Warn("Synthesis failed, returning row preview")
		return fallbackSummary(rows)
	}

	return strings.TrimSpace(result.Content)
}

// fallbackSummary is the deterministic answer when synthesis is down.
func fallbackSummary(rows []models.Row) string {
	preview, _ := json.MarshalIndent(truncateRows(rows, 5), "", "  ")
	return fmt.Sprintf("The query returned %d rows. First rows:\n%s", len(rows), preview)
}

func truncateRows(rows []models.Row, n int) []models.Row {
	if len(rows) <= n {
		return rows
	}
	return rows[:n]
}

// extractInsights updates the user profile from the executed query:
// requested dimensions become data interests, the latest timeframe becomes
// a preference, and the query shape becomes a pattern.
func (a *Agent) extractInsights(draft *models.QueryDraft) {
	for _, field := range draft.Fields {
		if _, ok := a.repo.Dimension(field); ok {
			a.memory.RecordInterest(field)
		}
	}

	timeBounded := false
	if dateField := a.repo.DateField(); dateField != "" {
		if expr, ok := draft.Filters[dateField]; ok {
			a.memory.SetPreference("timeframe", expr)
			timeBounded = true
		}
	}

	switch {
	case len(draft.Sorts) > 0 && draft.Limit > 0 && draft.Limit <= 10:
		a.memory.RecordPattern("top-n ranking")
	case timeBounded:
		a.memory.RecordPattern("time-bounded analysis")
	default:
		a.memory.RecordPattern("data breakdown")
	}
}
