// Package memory tracks conversation history and a learned user profile
// for a session. The canonical store is in-process; a TurnStore can be
// attached to persist turns durably as well.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

const (
	// historyWindow is how many recent turns the summary covers.
	historyWindow = 5
	// summaryQueryLength truncates user queries in the summary.
	summaryQueryLength = 100
)

// TurnStore persists turns outside the process. Implementations must be
// safe for concurrent use.
type TurnStore interface {
	SaveTurn(ctx context.Context, turn *models.ConversationTurn) error
	TurnsBySession(ctx context.Context, sessionID string, limit int) ([]*models.ConversationTurn, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// ConversationMemory is the session-scoped memory of the agent.
type ConversationMemory struct {
	mu        sync.Mutex
	sessionID string
	turns     []*models.ConversationTurn
	profile   models.UserProfile
	store     TurnStore // optional
	logger    *zap.Logger
}

// New creates memory for a fresh session. Pass a nil store to keep turns
// in-process only.
func New(store TurnStore, logger *zap.Logger) *ConversationMemory {
	now := time.Now()
	return &ConversationMemory{
		sessionID: uuid.NewString(),
		profile: models.UserProfile{
			Preferences: map[string]string{},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		store:  store,
		logger: logger.Named("memory"),
	}
}

// SessionID returns the current session identifier.
func (m *ConversationMemory) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// AddTurn appends one user/agent exchange. A persistence failure is logged
// but does not fail the turn; the in-process copy is the source of truth.
func (m *ConversationMemory) AddTurn(ctx context.Context, userQuery, agentResponse string, metadata map[string]string) *models.ConversationTurn {
	m.mu.Lock()
	turn := &models.ConversationTurn{
		ID:            uuid.New(),
		SessionID:     m.sessionID,
		Timestamp:     time.Now(),
		UserQuery:     userQuery,
		AgentResponse: agentResponse,
		Metadata:      metadata,
	}
	m.turns = append(m.turns, turn)
	store := m.store
	m.mu.Unlock()

	if store != nil {
		if err := store.SaveTurn(ctx, turn); err != nil {
			m.logger.Warn("Failed to persist turn",
				zap.String("session_id", turn.SessionID),
				zap.Error(err))
		}
	}

	return turn
}

// Turns returns a copy of all turns in insertion order.
func (m *ConversationMemory) Turns() []*models.ConversationTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.ConversationTurn, len(m.turns))
	copy(out, m.turns)
	return out
}

// HistorySummary renders the recent turns for prompt context. Queries are
// truncated; an empty history yields an empty string.
func (m *ConversationMemory) HistorySummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.turns) == 0 {
		return ""
	}

	start := len(m.turns) - historyWindow
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, turn := range m.turns[start:] {
		query := turn.UserQuery
		if len(query) > summaryQueryLength {
			query = query[:summaryQueryLength] + "..."
		}
		fmt.Fprintf(&b, "- User asked: %s\n", query)
	}
	return b.String()
}

// RecordInterest adds a data interest to the profile, deduplicated.
func (m *ConversationMemory) RecordInterest(interest string) {
	if interest == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile.DataInterests = appendUnique(m.profile.DataInterests, interest)
	m.profile.UpdatedAt = time.Now()
}

// RecordPattern adds a query pattern to the profile, deduplicated.
func (m *ConversationMemory) RecordPattern(pattern string) {
	if pattern == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile.QueryPatterns = appendUnique(m.profile.QueryPatterns, pattern)
	m.profile.UpdatedAt = time.Now()
}

// SetPreference records a user preference.
func (m *ConversationMemory) SetPreference(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile.Preferences[key] = value
	m.profile.UpdatedAt = time.Now()
}

// Profile returns a copy of the current user profile.
func (m *ConversationMemory) Profile() models.UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.profile
	out.Preferences = make(map[string]string, len(m.profile.Preferences))
	for k, v := range m.profile.Preferences {
		out.Preferences[k] = v
	}
	out.DataInterests = append([]string(nil), m.profile.DataInterests...)
	out.QueryPatterns = append([]string(nil), m.profile.QueryPatterns...)
	return out
}

// ProfileSummary renders the profile for prompt context.
func (m *ConversationMemory) ProfileSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.profile.DataInterests) == 0 && len(m.profile.QueryPatterns) == 0 &&
		len(m.profile.Preferences) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("User profile:\n")
	if len(m.profile.DataInterests) > 0 {
		fmt.Fprintf(&b, "- Interested in: %s\n", strings.Join(m.profile.DataInterests, ", "))
	}
	if len(m.profile.QueryPatterns) > 0 {
		fmt.Fprintf(&b, "- Common question types: %s\n", strings.Join(m.profile.QueryPatterns, ", "))
	}
	if len(m.profile.Preferences) > 0 {
		keys := make([]string, 0, len(m.profile.Preferences))
		for k := range m.profile.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+": "+m.profile.Preferences[k])
		}
		fmt.Fprintf(&b, "- Preferences: %s\n", strings.Join(pairs, ", "))
	}
	return b.String()
}

// Stats reports memory state for the status command.
func (m *ConversationMemory) Stats() models.SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.SessionStats{
		TotalTurns:         len(m.turns),
		ProfileCreated:     m.profile.CreatedAt,
		ProfileUpdated:     m.profile.UpdatedAt,
		DataInterestsCount: len(m.profile.DataInterests),
		QueryPatternsCount: len(m.profile.QueryPatterns),
	}
}

// Clear drops all turns and resets the profile under a fresh session ID.
// Durable history for the old session is deleted when a store is attached.
func (m *ConversationMemory) Clear(ctx context.Context) {
	m.mu.Lock()
	oldSession := m.sessionID
	store := m.store
	m.sessionID = uuid.NewString()
	m.turns = nil
	now := time.Now()
	m.profile = models.UserProfile{
		Preferences: map[string]string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.mu.Unlock()

	if store != nil {
		if err := store.DeleteSession(ctx, oldSession); err != nil {
			m.logger.Warn("Failed to delete persisted session",
				zap.String("session_id", oldSession),
				zap.Error(err))
		}
	}

	m.logger.Info("Conversation memory cleared",
		zap.String("old_session_id", oldSession))
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
