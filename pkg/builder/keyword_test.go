package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/explore"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

func builderRepo(t *testing.T) explore.Repository {
	t.Helper()
	repo, err := explore.NewRepository(&models.ExploreSchema{
		Model:   "bg",
		Explore: "consumer_sessions",
		Dimensions: []models.Field{
			{FieldName: "visit_day_date", Label: "Visit Date", Type: models.FieldTypeDate},
			{FieldName: "user_location_country", Label: "Country", Type: models.FieldTypeString},
			{FieldName: "device_category", Label: "Device Category", Type: models.FieldTypeString},
			{FieldName: "last_touch_channel", Label: "Channel", Type: models.FieldTypeString},
		},
		Measures: []models.Field{
			{FieldName: "sessions", Label: "Sessions", Type: models.FieldTypeNumber},
			{FieldName: "revenue", Label: "Revenue", Type: models.FieldTypeNumber},
		},
	}, zap.NewNop())
	require.NoError(t, err)
	return repo
}

func TestKeywordBuilder_TopCountriesByRevenue(t *testing.T) {
	b := NewKeywordBuilder(builderRepo(t), zap.NewNop())

	result := b.Build("top 5 countries by revenue", ExplicitParams{})

	require.False(t, result.NeedsClarification())
	draft := result.Draft
	assert.Equal(t, []string{"user_location_country", "revenue"}, draft.Fields)
	assert.Equal(t, []string{"revenue desc"}, draft.Sorts)
	assert.Equal(t, 5, draft.Limit)
	assert.Equal(t, "bg", draft.Model)
	assert.Equal(t, "consumer_sessions", draft.Explore)
}

func TestKeywordBuilder_MeasureOnlyGetsDefaultDimension(t *testing.T) {
	b := NewKeywordBuilder(builderRepo(t), zap.NewNop())

	result := b.Build("show me sessions", ExplicitParams{})

	require.False(t, result.NeedsClarification())
	assert.Equal(t, []string{"user_location_country", "sessions"}, result.Draft.Fields)
	assert.Equal(t, []string{"sessions desc"}, result.Draft.Sorts)
	assert.Equal(t, 10, result.Draft.Limit)
}

func TestKeywordBuilder_DimensionOnlyGetsDefaultMeasure(t *testing.T) {
	b := NewKeywordBuilder(builderRepo(t), zap.NewNop())

	result := b.Build("break it down by device", ExplicitParams{})

	require.False(t, result.NeedsClarification())
	assert.Equal(t, []string{"device_category", "revenue"}, result.Draft.Fields)
}

func TestKeywordBuilder_VagueInputNeedsClarification(t *testing.T) {
	b := NewKeywordBuilder(builderRepo(t), zap.NewNop())

	result := b.Build("what do you think about this", ExplicitParams{})

	require.True(t, result.NeedsClarification())
	assert.Contains(t, result.Clarification.ClarificationRequest, "more specific")
}

func TestKeywordBuilder_PluralFolding(t *testing.T) {
	b := NewKeywordBuilder(builderRepo(t), zap.NewNop())

	result := b.Build("visits across cities", ExplicitParams{})

	require.False(t, result.NeedsClarification())
	// The schema has no city dimension, so the default dimension steps in,
	// but the plural measure keyword still resolves.
	assert.Contains(t, result.Draft.Fields, "sessions")
}

func TestKeywordBuilder_DateFilters(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"last n days", "sessions last 30 days", "last 30 days"},
		{"past n months", "revenue past 3 months", "last 3 months"},
		{"bare year", "revenue in 2024", "year 2024"},
		{"month name", "sessions in september", "September"},
	}
	b := NewKeywordBuilder(builderRepo(t), zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := b.Build(tt.text, ExplicitParams{})
			require.False(t, result.NeedsClarification())
			assert.Equal(t, tt.want, result.Draft.Filters["visit_day_date"])
		})
	}
}

func TestKeywordBuilder_FirstDateMatchWins(t *testing.T) {
	b := NewKeywordBuilder(builderRepo(t), zap.NewNop())

	result := b.Build("sessions last 7 days of 2024", ExplicitParams{})

	require.False(t, result.NeedsClarification())
	assert.Equal(t, "last 7 days", result.Draft.Filters["visit_day_date"])
}

func TestKeywordBuilder_ExplicitParamsWin(t *testing.T) {
	b := NewKeywordBuilder(builderRepo(t), zap.NewNop())

	result := b.Build("top 5 countries by revenue", ExplicitParams{
		Dimension: "last_touch_channel",
		Measure:   "sessions",
		Sort:      "sessions asc",
		Limit:     25,
		Filters:   map[string]string{"visit_day_date": "last 90 days"},
	})

	require.False(t, result.NeedsClarification())
	draft := result.Draft
	assert.Equal(t, []string{"last_touch_channel", "sessions"}, draft.Fields)
	assert.Equal(t, []string{"sessions asc"}, draft.Sorts)
	assert.Equal(t, 25, draft.Limit)
	assert.Equal(t, "last 90 days", draft.Filters["visit_day_date"])
}

func TestKeywordBuilder_UnknownExplicitParamIgnored(t *testing.T) {
	b := NewKeywordBuilder(builderRepo(t), zap.NewNop())

	result := b.Build("sessions by country", ExplicitParams{Measure: "nonexistent"})

	require.False(t, result.NeedsClarification())
	assert.Equal(t, []string{"user_location_country", "sessions"}, result.Draft.Fields)
}

func TestKeywordBuilder_Deterministic(t *testing.T) {
	b := NewKeywordBuilder(builderRepo(t), zap.NewNop())

	first := b.Build("top 3 channels by traffic last 14 days", ExplicitParams{})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, b.Build("top 3 channels by traffic last 14 days", ExplicitParams{}))
	}
}
