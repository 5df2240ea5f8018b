package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// mockTurnStore records persistence calls.
type mockTurnStore struct {
	SaveTurnFunc func(ctx context.Context, turn *models.ConversationTurn) error

	saved           []*models.ConversationTurn
	deletedSessions []string
}

func (s *mockTurnStore) SaveTurn(ctx context.Context, turn *models.ConversationTurn) error {
	s.saved = append(s.saved, turn)
	if s.SaveTurnFunc != nil {
		return s.SaveTurnFunc(ctx, turn)
	}
	return nil
}

func (s *mockTurnStore) TurnsBySession(ctx context.Context, sessionID string, limit int) ([]*models.ConversationTurn, error) {
	return nil, nil
}

func (s *mockTurnStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.deletedSessions = append(s.deletedSessions, sessionID)
	return nil
}

var _ TurnStore = (*mockTurnStore)(nil)

func TestAddTurn(t *testing.T) {
	m := New(nil, zap.NewNop())

	turn := m.AddTurn(context.Background(), "top countries", "Brazil leads with 42 sessions", map[string]string{"intent": "GATHER_DATA"})

	assert.NotEqual(t, "", turn.ID.String())
	assert.Equal(t, m.SessionID(), turn.SessionID)
	assert.Len(t, m.Turns(), 1)
	assert.Equal(t, 1, m.Stats().TotalTurns)
}

func TestAddTurn_Persisted(t *testing.T) {
	store := &mockTurnStore{}
	m := New(store, zap.NewNop())

	m.AddTurn(context.Background(), "q", "a", nil)

	require.Len(t, store.saved, 1)
	assert.Equal(t, m.SessionID(), store.saved[0].SessionID)
}

func TestAddTurn_StoreFailureDoesNotLoseTurn(t *testing.T) {
	store := &mockTurnStore{
		SaveTurnFunc: func(context.Context, *models.ConversationTurn) error {
			return errors.New("db down")
		},
	}
	m := New(store, zap.NewNop())

	m.AddTurn(context.Background(), "q", "a", nil)

	assert.Len(t, m.Turns(), 1)
}

func TestHistorySummary(t *testing.T) {
	m := New(nil, zap.NewNop())
	assert.Empty(t, m.HistorySummary())

	for i := 1; i <= 7; i++ {
		m.AddTurn(context.Background(), fmt.Sprintf("question %d", i), "answer", nil)
	}

	summary := m.HistorySummary()
	assert.NotContains(t, summary, "question 2")
	assert.Contains(t, summary, "question 3")
	assert.Contains(t, summary, "question 7")
}

func TestHistorySummary_TruncatesLongQueries(t *testing.T) {
	m := New(nil, zap.NewNop())
	long := strings.Repeat("x", 150)
	m.AddTurn(context.Background(), long, "a", nil)

	summary := m.HistorySummary()
	assert.Contains(t, summary, strings.Repeat("x", 100)+"...")
	assert.NotContains(t, summary, strings.Repeat("x", 101))
}

func TestProfile(t *testing.T) {
	m := New(nil, zap.NewNop())

	m.RecordInterest("user_location_country")
	m.RecordInterest("user_location_country")
	m.RecordInterest("sessions")
	m.RecordPattern("top-n")
	m.SetPreference("format", "table")

	profile := m.Profile()
	assert.Equal(t, []string{"user_location_country", "sessions"}, profile.DataInterests)
	assert.Equal(t, []string{"top-n"}, profile.QueryPatterns)
	assert.Equal(t, "table", profile.Preferences["format"])

	summary := m.ProfileSummary()
	assert.Contains(t, summary, "user_location_country, sessions")
	assert.Contains(t, summary, "top-n")

	stats := m.Stats()
	assert.Equal(t, 2, stats.DataInterestsCount)
	assert.Equal(t, 1, stats.QueryPatternsCount)
}

func TestProfileSummary_Preferences(t *testing.T) {
	m := New(nil, zap.NewNop())
	assert.Empty(t, m.ProfileSummary())

	m.SetPreference("timeframe", "last 30 days")
	m.SetPreference("format", "table")

	summary := m.ProfileSummary()
	assert.Contains(t, summary, "Preferences: format: table, timeframe: last 30 days")
}

func TestProfile_CopyIsolated(t *testing.T) {
	m := New(nil, zap.NewNop())
	m.RecordInterest("sessions")

	profile := m.Profile()
	profile.DataInterests[0] = "mutated"
	profile.Preferences["k"] = "v"

	assert.Equal(t, []string{"sessions"}, m.Profile().DataInterests)
	assert.Empty(t, m.Profile().Preferences)
}

func TestClear(t *testing.T) {
	store := &mockTurnStore{}
	m := New(store, zap.NewNop())

	oldSession := m.SessionID()
	m.AddTurn(context.Background(), "q", "a", nil)
	m.RecordInterest("sessions")

	m.Clear(context.Background())

	assert.NotEqual(t, oldSession, m.SessionID())
	assert.Empty(t, m.Turns())
	assert.Empty(t, m.Profile().DataInterests)
	assert.Empty(t, m.HistorySummary())
	assert.Equal(t, []string{oldSession}, store.deletedSessions)
}
