package looker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
	"github.com/ekaya-inc/ekaya-analyst/pkg/retry"
)

// lookerStub is a minimal fake Looker API for client tests. Handlers may
// run concurrently, so mutations are guarded.
type lookerStub struct {
	t  *testing.T
	mu sync.Mutex

	loginCalls  int
	queryCalls  int
	logoutCalls int

	token      string
	expiresIn  int
	queryRows  string
	rejectOnce bool // reject the next query with 401, then accept
	lastQuery  map[string]any
}

func (s *lookerStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/4.0/login", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.loginCalls++
		s.mu.Unlock()
		require.NoError(s.t, r.ParseForm())
		if r.FormValue("client_id") != "id" || r.FormValue("client_secret") != "secret" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": s.token,
			"token_type":   "Bearer",
			"expires_in":   s.expiresIn,
		})
	})
	mux.HandleFunc("/api/4.0/queries/run/json", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queryCalls++
		reject := s.rejectOnce
		s.rejectOnce = false
		s.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+s.token || reject {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var query map[string]any
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&query))
		s.mu.Lock()
		s.lastQuery = query
		s.mu.Unlock()
		w.Write([]byte(s.queryRows))
	})
	mux.HandleFunc("/api/4.0/lookml_models/bg/explores/consumer_sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{
			"fields": {
				"dimensions": [
					{"name": "visit_day_date", "label": "Visit Date", "type": "date_date"},
					{"name": "user_location_country", "label": "Country", "type": "string"},
					{"name": "is_bounce", "label": "Bounce", "type": "yesno"}
				],
				"measures": [
					{"name": "sessions", "label": "Sessions", "type": "count"}
				]
			}
		}`))
	})
	mux.HandleFunc("/api/4.0/logout", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.logoutCalls++
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newStubClient(t *testing.T) (*lookerStub, *client, *httptest.Server) {
	t.Helper()
	stub := &lookerStub{
		t:         t,
		token:     "tok-1",
		expiresIn: 3600,
		queryRows: `[{"user_location_country": "Brazil", "sessions": 42}]`,
	}
	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	c, err := NewClient(&Config{
		BaseURL:      server.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		Timezone:     "America/Los_Angeles",
		DefaultLimit: 500,
	}, zap.NewNop())
	require.NoError(t, err)

	impl := c.(*client)
	impl.retryCfg = &retry.Config{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	return stub, impl, server
}

func testDraft() *models.QueryDraft {
	return &models.QueryDraft{
		Model:   "bg",
		Explore: "consumer_sessions",
		View:    "consumer_sessions",
		Fields:  []string{"user_location_country", "sessions"},
		Filters: map[string]string{"visit_day_date": "2025-09-23 to 2025-09-29"},
		Sorts:   []string{"sessions desc"},
		Limit:   5,
	}
}

func TestRunInlineQuery(t *testing.T) {
	stub, c, _ := newStubClient(t)

	rows, err := c.RunInlineQuery(context.Background(), testDraft())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Brazil", rows[0]["user_location_country"])

	assert.Equal(t, 1, stub.loginCalls)
	assert.Equal(t, "bg", stub.lastQuery["model"])
	assert.Equal(t, "consumer_sessions", stub.lastQuery["view"])
	assert.Equal(t, "5", stub.lastQuery["limit"])
	assert.Equal(t, "America/Los_Angeles", stub.lastQuery["query_timezone"])
}

func TestRunInlineQuery_TokenReused(t *testing.T) {
	stub, c, _ := newStubClient(t)

	_, err := c.RunInlineQuery(context.Background(), testDraft())
	require.NoError(t, err)
	_, err = c.RunInlineQuery(context.Background(), testDraft())
	require.NoError(t, err)

	assert.Equal(t, 1, stub.loginCalls)
	assert.Equal(t, 2, stub.queryCalls)
}

func TestRunInlineQuery_ExpiredTokenRefreshed(t *testing.T) {
	stub, c, _ := newStubClient(t)

	_, err := c.RunInlineQuery(context.Background(), testDraft())
	require.NoError(t, err)

	c.mu.Lock()
	c.tokenExpiry = time.Now().Add(-time.Second)
	c.mu.Unlock()

	_, err = c.RunInlineQuery(context.Background(), testDraft())
	require.NoError(t, err)
	assert.Equal(t, 2, stub.loginCalls)
}

func TestRunInlineQuery_ConcurrentCallersShareOneLogin(t *testing.T) {
	stub, c, _ := newStubClient(t)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.RunInlineQuery(context.Background(), testDraft())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, stub.loginCalls)
	assert.Equal(t, callers, stub.queryCalls)
}

func TestRunInlineQuery_UnauthorizedReplayedOnce(t *testing.T) {
	stub, c, _ := newStubClient(t)

	_, err := c.RunInlineQuery(context.Background(), testDraft())
	require.NoError(t, err)

	stub.rejectOnce = true
	rows, err := c.RunInlineQuery(context.Background(), testDraft())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 2, stub.loginCalls)
}

func TestRunInlineQuery_LookerErrorRow(t *testing.T) {
	stub, c, _ := newStubClient(t)
	stub.queryRows = `[{"looker_error": "Unknown field \"bogus\""}]`

	_, err := c.RunInlineQuery(context.Background(), testDraft())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQueryFailed)
}

func TestRunInlineQuery_DefaultLimit(t *testing.T) {
	stub, c, _ := newStubClient(t)

	draft := testDraft()
	draft.Limit = 0
	_, err := c.RunInlineQuery(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, "500", stub.lastQuery["limit"])
}

func TestRunInlineQuery_BadCredentials(t *testing.T) {
	_, _, server := newStubClient(t)

	c, err := NewClient(&Config{
		BaseURL:      server.URL,
		ClientID:     "id",
		ClientSecret: "wrong",
	}, zap.NewNop())
	require.NoError(t, err)
	c.(*client).retryCfg = &retry.Config{MaxRetries: 0, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	_, err = c.RunInlineQuery(context.Background(), testDraft())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAuthFailed)
}

func TestGetExploreSchema(t *testing.T) {
	_, c, _ := newStubClient(t)

	schema, err := c.GetExploreSchema(context.Background(), "bg", "consumer_sessions")
	require.NoError(t, err)

	require.Len(t, schema.Dimensions, 3)
	assert.Equal(t, models.FieldTypeDate, schema.Dimensions[0].Type)
	assert.Equal(t, models.FieldTypeString, schema.Dimensions[1].Type)
	assert.Equal(t, models.FieldTypeYesNo, schema.Dimensions[2].Type)
	require.Len(t, schema.Measures, 1)
	assert.Equal(t, models.FieldTypeNumber, schema.Measures[0].Type)
}

func TestGetExploreSchema_NotFound(t *testing.T) {
	_, c, _ := newStubClient(t)

	_, err := c.GetExploreSchema(context.Background(), "bg", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestClose(t *testing.T) {
	stub, c, _ := newStubClient(t)

	_, err := c.RunInlineQuery(context.Background(), testDraft())
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 1, stub.logoutCalls)

	// Closing again without a session is a no-op.
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 1, stub.logoutCalls)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(&Config{ClientID: "id", ClientSecret: "s"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient(&Config{BaseURL: "http://x"}, zap.NewNop())
	assert.Error(t, err)
}
