package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const friendlyTemperature = 0.7

// handleDrillDown runs the data path and appends suggestions for deeper
// cuts the user has not asked about yet.
func (a *Agent) handleDrillDown(ctx context.Context, userText string) *Response {
	resp := a.handleGatherData(ctx, userText)
	if resp.State != StateDone || resp.Draft == nil {
		return resp
	}

	used := make(map[string]bool, len(resp.Draft.Fields))
	for _, f := range resp.Draft.Fields {
		used[f] = true
	}

	var unused []string
	for _, name := range a.repo.FieldNames() {
		if _, ok := a.repo.Dimension(name); !ok {
			continue
		}
		if a.repo.IsYesNoField(name) || used[name] {
			continue
		}
		unused = append(unused, name)
		if len(unused) == 3 {
			break
		}
	}

	if len(unused) > 0 {
		resp.Text += fmt.Sprintf("\n\nTo dig deeper, try breaking this down by %s.",
			strings.Join(unused, ", "))
	}
	return resp
}

// handleExecutiveSummary summarizes the session so far. With no history it
// nudges the user toward a first question.
func (a *Agent) handleExecutiveSummary(ctx context.Context, userText string) *Response {
	history := a.memory.HistorySummary()
	if history == "" {
		return &Response{
			Text:  "We haven't looked at any data yet this session. Ask me something like 'top countries by sessions last week' and I can summarize what we find.",
			State: StateDone,
		}
	}

	var b strings.Builder
	b.WriteString(history)
	b.WriteString("\n")
	if profile := a.memory.ProfileSummary(); profile != "" {
		b.WriteString(profile)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nThe user asked: %s\n", userText)
	b.WriteString("Write a short executive summary of this analysis session: what was explored and what to look at next. 3-5 sentences.")

	result, err := a.client.GenerateResponse(ctx, b.String(),
		"You are a data analyst writing for an executive. Be concise.",
		synthesisTemperature)
	if err != nil || strings.TrimSpace(result.Content) == "" {
		a.logger.Warn("Executive summary synthesis failed", zap.Error(err))
		stats := a.memory.Stats()
		return &Response{
			Text: fmt.Sprintf("This session covered %d questions. %s",
				stats.TotalTurns, strings.TrimPrefix(history, "Recent conversation:\n")),
			State: StateDone,
		}
	}

	return &Response{Text: strings.TrimSpace(result.Content), State: StateDone}
}

// handleCapabilities describes what the agent can do over the loaded
// schema. Static text; no capability call.
func (a *Agent) handleCapabilities() *Response {
	model, exploreName := a.repo.ModelExplore()

	var b strings.Builder
	fmt.Fprintf(&b, "I answer questions about the %s data in %s. I can:\n", exploreName, model)
	b.WriteString("• Pull metrics broken down by any available dimension (\"sessions by country\")\n")
	b.WriteString("• Rank results (\"top 5 countries by sessions\")\n")
	b.WriteString("• Filter by time (\"last 7 days\", \"previous quarter\", \"March 2025\")\n")
	b.WriteString("• Summarize what we've explored (\"give me an executive summary\")\n")
	if a.recipes != nil && len(a.recipes.Names()) > 0 {
		fmt.Fprintf(&b, "\nCommon questions I handle directly:\n%s", a.recipes.Describe())
	}
	b.WriteString("\nAsk about the available data with \"what data do you have?\"")

	return &Response{Text: b.String(), State: StateDone}
}

// handleDataSourceInfo lists the measures and dimensions of the schema.
func (a *Agent) handleDataSourceInfo() *Response {
	model, exploreName := a.repo.ModelExplore()

	var measures, dimensions []string
	for _, name := range a.repo.FieldNames() {
		if _, ok := a.repo.Measure(name); ok {
			measures = append(measures, name)
		} else {
			dimensions = append(dimensions, name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Data source: explore %q in model %q.\n\n", exploreName, model)
	fmt.Fprintf(&b, "Measures: %s\n", strings.Join(measures, ", "))
	fmt.Fprintf(&b, "Dimensions: %s\n", strings.Join(dimensions, ", "))
	if dateField := a.repo.DateField(); dateField != "" {
		fmt.Fprintf(&b, "\nTime-based questions use the %s field.", dateField)
	}

	return &Response{Text: b.String(), State: StateDone}
}

// handleManageConversation clears memory on request, otherwise reports
// session status.
func (a *Agent) handleManageConversation(ctx context.Context, userText string) *Response {
	lower := strings.ToLower(userText)
	if strings.Contains(lower, "clear") || strings.Contains(lower, "reset") ||
		strings.Contains(lower, "forget") || strings.Contains(lower, "start over") {
		a.memory.Clear(ctx)
		return &Response{
			Text:  "Done. I've cleared our conversation history and started a fresh session.",
			State: StateDone,
		}
	}

	stats := a.memory.Stats()
	return &Response{
		Text: fmt.Sprintf("This session has %d turns so far. I'm tracking %d data interests and %d question patterns. Say \"clear the conversation\" to start over.",
			stats.TotalTurns, stats.DataInterestsCount, stats.QueryPatternsCount),
		State: StateDone,
	}
}

// handleFriendly covers small talk and anything unclassifiable. Synthesis
// failure degrades to a static greeting.
func (a *Agent) handleFriendly(ctx context.Context, userText string) *Response {
	_, exploreName := a.repo.ModelExplore()
	prompt := fmt.Sprintf(`The user said: %s

Reply warmly in one or two sentences. You are a data analyst assistant for
the %s dataset; if it fits naturally, invite a data question.`, userText, exploreName)

	result, err := a.client.GenerateResponse(ctx, prompt,
		"You are a friendly, professional data analyst assistant.",
		friendlyTemperature)
	if err != nil || strings.TrimSpace(result.Content) == "" {
		return &Response{
			Text:  "Hi! I'm your data analyst assistant. Ask me something like \"top countries by sessions last week\".",
			State: StateDone,
		}
	}

	return &Response{Text: strings.TrimSpace(result.Content), State: StateDone}
}
