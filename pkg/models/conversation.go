package models

import (
	"time"

	"github.com/google/uuid"
)

// Intent categories the triage step classifies a turn into.
type Intent string

const (
	IntentGatherData         Intent = "GATHER_DATA"
	IntentExecutiveSummary   Intent = "GET_EXECUTIVE_SUMMARY"
	IntentDrillDown          Intent = "DRILL_DOWN_ANALYSIS"
	IntentAgentCapabilities  Intent = "AGENT_CAPABILITIES"
	IntentDataSourceInfo     Intent = "DATA_SOURCE_INFO"
	IntentFriendly           Intent = "FRIENDLY_CONVERSATION"
	IntentManageConversation Intent = "MANAGE_CONVERSATION"
	IntentOther              Intent = "OTHER"
)

// AllIntents lists every recognized intent category.
var AllIntents = []Intent{
	IntentGatherData,
	IntentExecutiveSummary,
	IntentDrillDown,
	IntentAgentCapabilities,
	IntentDataSourceInfo,
	IntentFriendly,
	IntentManageConversation,
	IntentOther,
}

// ParseIntent maps a classifier label onto a known intent. Unknown labels
// fall back to friendly conversation so a bad classification never crashes
// the turn.
func ParseIntent(label string) Intent {
	for _, intent := range AllIntents {
		if string(intent) == label {
			return intent
		}
	}
	return IntentFriendly
}

// ConversationTurn is one user/agent exchange. Turns are append-only and
// ordered by insertion.
type ConversationTurn struct {
	ID            uuid.UUID         `json:"id"`
	SessionID     string            `json:"session_id"`
	Timestamp     time.Time         `json:"timestamp"`
	UserQuery     string            `json:"user_query"`
	AgentResponse string            `json:"agent_response"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// UserProfile accumulates what the agent learns about a user across turns.
// DataInterests and QueryPatterns are deduplicated; UpdatedAt is bumped on
// every mutation.
type UserProfile struct {
	Preferences   map[string]string `json:"preferences"`
	DataInterests []string          `json:"data_interests"`
	QueryPatterns []string          `json:"query_patterns"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// SessionStats summarizes memory state for status reporting.
type SessionStats struct {
	TotalTurns         int       `json:"total_turns"`
	ProfileCreated     time.Time `json:"profile_created"`
	ProfileUpdated     time.Time `json:"profile_updated"`
	DataInterestsCount int       `json:"data_interests_count"`
	QueryPatternsCount int       `json:"query_patterns_count"`
}
