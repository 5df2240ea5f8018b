package explore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContext_Deterministic(t *testing.T) {
	repo := testRepo(t)
	builder := NewContextBuilder(repo)

	first := builder.BuildContext()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, builder.BuildContext())
	}
}

func TestBuildContext_Sections(t *testing.T) {
	repo := testRepo(t)
	ctx := NewContextBuilder(repo).BuildContext()

	assert.Contains(t, ctx, "=== AVAILABLE MEASURES ===")
	assert.Contains(t, ctx, "=== AVAILABLE DIMENSIONS ===")
	assert.Contains(t, ctx, "=== MAPPING PATTERNS ===")
	assert.Contains(t, ctx, "=== BUSINESS RULES ===")

	// Measures carry derived keyword hints.
	assert.Contains(t, ctx, "consumer_sessions.sessions: Sessions")
	assert.Contains(t, ctx, "Keywords: sessions, visits, traffic, count")

	// Priority dimensions appear; the yesno dimension is not priority.
	assert.Contains(t, ctx, "consumer_sessions.user_location_country: Country")
	assert.Contains(t, ctx, "consumer_sessions.device_browser: Browser")
	assert.NotContains(t, ctx, "consumer_sessions.is_bounce:")

	// Business rules name the designated date field and default measure.
	assert.Contains(t, ctx, "Time queries require consumer_sessions.visit_day_date")
	assert.Contains(t, ctx, "Default measure is consumer_sessions.sessions")
	assert.Contains(t, ctx, "Always include at least one measure")
}

func TestBuildContext_PatternLines(t *testing.T) {
	repo := testRepo(t)
	ctx := NewContextBuilder(repo).BuildContext()

	assert.Contains(t, ctx, "country/countries/location → consumer_sessions.user_location_country")
	assert.Contains(t, ctx, "this month → filter on consumer_sessions.visit_day_date")
}

func TestMeasureKeywords(t *testing.T) {
	assert.Equal(t, []string{"sessions", "visits", "traffic", "count"}, MeasureKeywords("consumer_sessions.sessions"))
	assert.Equal(t, []string{"revenue", "sales", "income"}, MeasureKeywords("orders.total_revenue"))
	assert.Nil(t, MeasureKeywords("orders.margin_pct"))
}

func TestDimensionKeywords(t *testing.T) {
	assert.Contains(t, DimensionKeywords("consumer_sessions.user_location_country"), "geography")
	assert.Contains(t, DimensionKeywords("consumer_sessions.visit_day_date"), "over time")
	assert.Nil(t, DimensionKeywords("consumer_sessions.portal"))
}

func TestBuildContext_SectionOrder(t *testing.T) {
	repo := testRepo(t)
	ctx := NewContextBuilder(repo).BuildContext()

	measuresIdx := strings.Index(ctx, "=== AVAILABLE MEASURES ===")
	dimensionsIdx := strings.Index(ctx, "=== AVAILABLE DIMENSIONS ===")
	patternsIdx := strings.Index(ctx, "=== MAPPING PATTERNS ===")
	rulesIdx := strings.Index(ctx, "=== BUSINESS RULES ===")

	require.True(t, measuresIdx >= 0 && dimensionsIdx >= 0 && patternsIdx >= 0 && rulesIdx >= 0)
	assert.True(t, measuresIdx < dimensionsIdx)
	assert.True(t, dimensionsIdx < patternsIdx)
	assert.True(t, patternsIdx < rulesIdx)
}
