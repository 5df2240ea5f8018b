package mapper

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/explore"
	"github.com/ekaya-inc/ekaya-analyst/pkg/llm"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
	"github.com/ekaya-inc/ekaya-analyst/pkg/retry"
)

// mappingTemperature keeps the capability strict: mapping wants the most
// likely structured reading of the question, not a creative one.
const mappingTemperature = 0.1

// Mapper translates a natural-language question into a tagged mapping
// result: either a query draft or a clarification request.
type Mapper interface {
	MapQuery(ctx context.Context, userQuery, historySummary, todayISO string) (models.MappingResult, error)
}

type mapper struct {
	client    llm.LLMClient
	schemaCtx string
	dict      *Dictionary
	timezone  string
	retryCfg  *retry.Config
	logger    *zap.Logger
}

// NewMapper creates a mapper over the given schema and capability client.
// The schema context is rendered once at construction; the schema is
// immutable for the life of the process.
func NewMapper(client llm.LLMClient, repo explore.Repository, dict *Dictionary, timezone string, logger *zap.Logger) Mapper {
	if dict == nil {
		dict = &Dictionary{}
	}
	return &mapper{
		client:    client,
		schemaCtx: explore.NewContextBuilder(repo).BuildContext(),
		dict:      dict,
		timezone:  timezone,
		retryCfg:  retry.DefaultConfig(),
		logger:    logger.Named("mapper"),
	}
}

var _ Mapper = (*mapper)(nil)

// MapQuery asks the capability for a structured query and decodes the reply
// at this boundary. Transient capability failures are retried; a reply that
// is not valid JSON is an error, not a guess.
func (m *mapper) MapQuery(ctx context.Context, userQuery, historySummary, todayISO string) (models.MappingResult, error) {
	prompt := m.buildPrompt(userQuery, historySummary, todayISO)

	var result *llm.GenerateResponseResult
	err := retry.DoIfRetryable(ctx, m.retryCfg, func() error {
		resp, err := m.client.GenerateResponse(ctx, prompt, m.systemMessage(), mappingTemperature)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return models.MappingResult{}, fmt.Errorf("mapping query: %w", err)
	}

	if thinking := llm.ExtractThinking(result.Content); thinking != "" {
		m.logger.Debug("Mapper reasoning", zap.String("thinking", thinking))
	}

	jsonStr, err := llm.ExtractJSON(result.Content)
	if err != nil {
		m.logger.Warn("Mapper reply contained no JSON",
			zap.Int("reply_len", len(result.Content)))
		return models.MappingResult{}, fmt.Errorf("mapping query: %w", err)
	}

	mapped, err := models.ParseMappingResult([]byte(jsonStr))
	if err != nil {
		return models.MappingResult{}, fmt.Errorf("decoding mapping result: %w", err)
	}

	m.logger.Debug("Mapped query",
		zap.Bool("clarification", mapped.NeedsClarification()),
		zap.Int("completion_tokens", result.CompletionTokens))

	return mapped, nil
}

func (m *mapper) systemMessage() string {
	var b strings.Builder
	b.WriteString("You are a data analyst assistant that converts business questions into structured analytics queries.\n\n")
	b.WriteString(m.schemaCtx)
	b.WriteString("\n")
	if vocab := m.dict.Render(); vocab != "" {
		b.WriteString(vocab)
		b.WriteString("\n")
	}
	b.WriteString(`OUTPUT FORMAT:
Respond with a single JSON object and nothing else. Two shapes are allowed.

A query:
{
  "fields": ["<field names from the schema>"],
  "filters": {"<field>": "<looker filter expression>"},
  "sorts": ["<field> desc"],
  "limit": <number>,
  "pivots": ["<at most one field, which must also appear in fields>"],
  "time_intent": {"preset": "<see below>", "n": <number>, "start": "YYYY-MM-DD", "end": "YYYY-MM-DD", "field": "<date field>"}
}

Use "time_intent" for any date constraint instead of writing date filters
yourself. Supported presets: today, yesterday, last_n_days (with "n"), mtd,
qtd, ytd, prev_month, prev_quarter, prev_year, absolute (with "start" and
"end"). Omit "time_intent" when the question has no date constraint.

A clarification, when the question is too vague or asks for fields the
schema does not have:
{"clarification_request": "<one short question to the user>"}

Never invent field names. Never answer with prose.`)
	return b.String()
}

func (m *mapper) buildPrompt(userQuery, historySummary, todayISO string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today's date: %s\nTimezone: %s\n\n", todayISO, m.timezone)
	if historySummary != "" {
		fmt.Fprintf(&b, "CONVERSATION CONTEXT:\n%s\n\n", historySummary)
	}
	fmt.Fprintf(&b, "QUESTION: %s", userQuery)
	return b.String()
}
