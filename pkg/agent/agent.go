// Package agent orchestrates one conversation turn: intent triage, query
// construction, execution, and response synthesis.
package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/builder"
	"github.com/ekaya-inc/ekaya-analyst/pkg/explore"
	"github.com/ekaya-inc/ekaya-analyst/pkg/llm"
	"github.com/ekaya-inc/ekaya-analyst/pkg/looker"
	"github.com/ekaya-inc/ekaya-analyst/pkg/mapper"
	"github.com/ekaya-inc/ekaya-analyst/pkg/memory"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// State names the stages a turn moves through. Every turn ends in Done,
// Clarifying, or Error.
type State string

const (
	StateRouting      State = "ROUTING"
	StateBuilding     State = "BUILDING_QUERY"
	StateClarifying   State = "CLARIFYING"
	StateExecuting    State = "EXECUTING"
	StateSynthesizing State = "SYNTHESIZING"
	StateDone         State = "DONE"
	StateError        State = "ERROR"
)

// Response is the outcome of one turn. Text is always safe to show the
// user; internal error detail stays in the logs.
type Response struct {
	Text   string
	Intent models.Intent
	State  State
	Draft  *models.QueryDraft
	Rows   []models.Row
}

// Deps carries the collaborators an Agent needs.
type Deps struct {
	Client    llm.LLMClient
	Mapper    mapper.Mapper
	Keyword   *builder.KeywordBuilder
	Recipes   *builder.Catalog // optional
	Repo      explore.Repository
	Validator *explore.Validator
	Looker    looker.Client
	Memory    *memory.ConversationMemory
	Location  *time.Location
	Logger    *zap.Logger
}

// Agent runs the conversation state machine over a fixed explore schema.
type Agent struct {
	client    llm.LLMClient
	mapper    mapper.Mapper
	keyword   *builder.KeywordBuilder
	recipes   *builder.Catalog
	repo      explore.Repository
	validator *explore.Validator
	looker    looker.Client
	memory    *memory.ConversationMemory
	location  *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

// New creates an agent. Location defaults to UTC.
func New(deps Deps) *Agent {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Agent{
		client:    deps.Client,
		mapper:    deps.Mapper,
		keyword:   deps.Keyword,
		recipes:   deps.Recipes,
		repo:      deps.Repo,
		validator: deps.Validator,
		looker:    deps.Looker,
		memory:    deps.Memory,
		location:  loc,
		now:       time.Now,
		logger:    deps.Logger.Named("agent"),
	}
}

// HandleMessage runs one full turn. It never returns an error: failures
// surface as a user-safe Response in the Error state. Exactly one turn is
// recorded in memory per call.
func (a *Agent) HandleMessage(ctx context.Context, userText string) *Response {
	intent := a.triage(ctx, userText)

	a.logger.Debug("Routed message",
		zap.String("intent", string(intent)),
		zap.Int("message_len", len(userText)))

	var resp *Response
	switch intent {
	case models.IntentGatherData:
		resp = a.handleGatherData(ctx, userText)
	case models.IntentDrillDown:
		resp = a.handleDrillDown(ctx, userText)
	case models.IntentExecutiveSummary:
		resp = a.handleExecutiveSummary(ctx, userText)
	case models.IntentAgentCapabilities:
		resp = a.handleCapabilities()
	case models.IntentDataSourceInfo:
		resp = a.handleDataSourceInfo()
	case models.IntentManageConversation:
		resp = a.handleManageConversation(ctx, userText)
	case models.IntentFriendly, models.IntentOther:
		resp = a.handleFriendly(ctx, userText)
	default:
		resp = a.handleFriendly(ctx, userText)
	}
	resp.Intent = intent

	a.memory.AddTurn(ctx, userText, resp.Text, map[string]string{
		"intent": string(intent),
		"state":  string(resp.State),
	})

	return resp
}

// todayISO is the reference date for time intent resolution, in the
// configured timezone.
func (a *Agent) todayISO() string {
	return a.now().In(a.location).Format("2006-01-02")
}
