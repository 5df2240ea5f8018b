package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/llm"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

const triageTemperature = 0.0

var intentDescriptions = map[models.Intent]string{
	models.IntentGatherData:         "the user wants specific data, metrics, or a breakdown",
	models.IntentExecutiveSummary:   "the user wants a high-level summary of what has been discussed or overall performance",
	models.IntentDrillDown:          "the user wants to dig deeper into a previous result",
	models.IntentAgentCapabilities:  "the user asks what this assistant can do",
	models.IntentDataSourceInfo:     "the user asks what data is available",
	models.IntentFriendly:           "greetings, thanks, small talk",
	models.IntentManageConversation: "the user wants to clear, reset, or review the conversation",
	models.IntentOther:              "anything that fits none of the above",
}

// triage classifies the message into one intent. Any failure falls back to
// friendly conversation so a broken classifier never kills the turn.
func (a *Agent) triage(ctx context.Context, userText string) models.Intent {
	var b strings.Builder
	b.WriteString("Classify the user message into exactly one category:\n")
	for _, intent := range models.AllIntents {
		fmt.Fprintf(&b, "- %s: %s\n", intent, intentDescriptions[intent])
	}
	if history := a.memory.HistorySummary(); history != "" {
		b.WriteString("\n")
		b.WriteString(history)
	}
	fmt.Fprintf(&b, "\nUser message: %s\n\nRespond with JSON: {\"intent\": \"<category>\"}", userText)

	result, err := a.client.GenerateResponse(ctx, b.String(),
		"You are an intent classifier. Respond with a single JSON object.",
		triageTemperature)
	if err != nil {
		a.logger.Warn("Triage failed, defaulting to friendly conversation", zap.Error(err))
		return models.IntentFriendly
	}

	parsed, err := llm.ParseJSONResponse[struct {
		Intent string `json:"intent"`
	}](result.Content)
	if err != nil {
		a.logger.Warn("Triage reply was not JSON, defaulting to friendly conversation", zap.Error(err))
		return models.IntentFriendly
	}

	return models.ParseIntent(parsed.Intent)
}
