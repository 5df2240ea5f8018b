package looker

import (
	"context"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// MockClient is a configurable mock for testing query execution.
// Set the function fields to control behavior in tests.
type MockClient struct {
	// RunInlineQueryFunc is called when RunInlineQuery is invoked.
	// If nil, returns an empty row set and nil error.
	RunInlineQueryFunc func(ctx context.Context, draft *models.QueryDraft) ([]models.Row, error)

	// GetExploreSchemaFunc is called when GetExploreSchema is invoked.
	// If nil, returns an empty schema and nil error.
	GetExploreSchemaFunc func(ctx context.Context, model, explore string) (*models.ExploreSchema, error)

	// Call tracking for verification
	RunInlineQueryCalls   int
	Drafts                []*models.QueryDraft
	GetExploreSchemaCalls int
	CloseCalls            int
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// RunInlineQuery implements Client.
func (m *MockClient) RunInlineQuery(ctx context.Context, draft *models.QueryDraft) ([]models.Row, error) {
	m.RunInlineQueryCalls++
	m.Drafts = append(m.Drafts, draft)
	if m.RunInlineQueryFunc != nil {
		return m.RunInlineQueryFunc(ctx, draft)
	}
	return []models.Row{}, nil
}

// GetExploreSchema implements Client.
func (m *MockClient) GetExploreSchema(ctx context.Context, model, explore string) (*models.ExploreSchema, error) {
	m.GetExploreSchemaCalls++
	if m.GetExploreSchemaFunc != nil {
		return m.GetExploreSchemaFunc(ctx, model, explore)
	}
	return &models.ExploreSchema{Model: model, Explore: explore}, nil
}

// Close implements Client.
func (m *MockClient) Close(ctx context.Context) error {
	m.CloseCalls++
	return nil
}

// Reset clears call tracking.
func (m *MockClient) Reset() {
	m.RunInlineQueryCalls = 0
	m.Drafts = nil
	m.GetExploreSchemaCalls = 0
	m.CloseCalls = 0
}

// Ensure MockClient implements Client at compile time.
var _ Client = (*MockClient)(nil)
