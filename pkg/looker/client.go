// Package looker provides a client for the Looker API: session token
// management and inline query execution.
package looker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-analyst/pkg/logging"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
	"github.com/ekaya-inc/ekaya-analyst/pkg/retry"
)

// DefaultTimeout is the maximum time to wait for Looker responses.
const DefaultTimeout = 120 * time.Second

// tokenExpiryBuffer forces a refresh slightly before the token actually
// expires so in-flight requests never race the deadline.
const tokenExpiryBuffer = 60 * time.Second

const apiPrefix = "/api/4.0"

// Client executes structured queries against a Looker instance.
type Client interface {
	// RunInlineQuery executes a query draft and returns result rows.
	RunInlineQuery(ctx context.Context, draft *models.QueryDraft) ([]models.Row, error)

	// GetExploreSchema fetches field metadata for an explore from the
	// LookML model endpoint.
	GetExploreSchema(ctx context.Context, model, explore string) (*models.ExploreSchema, error)

	// Close logs out the API session. Safe to call when never logged in.
	Close(ctx context.Context) error
}

// Config holds connection settings for a Looker instance.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timezone     string
	DefaultLimit int
}

type client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	timezone     string
	defaultLimit int
	retryCfg     *retry.Config

	// mu guards token state. Login is single-flight: concurrent callers
	// needing a token wait for one refresh instead of issuing their own.
	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	logger *zap.Logger
}

// NewClient creates a Looker API client. No network call is made until the
// first query needs a token.
func NewClient(cfg *Config, logger *zap.Logger) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("looker base URL is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("looker credentials are required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid looker base URL: %w", err)
	}

	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = 500
	}

	return &client{
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		timezone:     cfg.Timezone,
		defaultLimit: limit,
		retryCfg:     retry.DefaultConfig(),
		logger:       logger.Named("looker"),
	}, nil
}

var _ Client = (*client)(nil)

// inlineQuery is the request body for the run-inline-query endpoint.
// Limit is a string in the Looker API.
type inlineQuery struct {
	Model         string            `json:"model"`
	View          string            `json:"view"`
	Fields        []string          `json:"fields"`
	Filters       map[string]string `json:"filters,omitempty"`
	Sorts         []string          `json:"sorts,omitempty"`
	Pivots        []string          `json:"pivots,omitempty"`
	Limit         string            `json:"limit"`
	QueryTimezone string            `json:"query_timezone,omitempty"`
}

// RunInlineQuery executes a query draft. The session timezone and a row
// limit are always attached. Transient failures are retried with backoff;
// an expired token is refreshed and the request replayed once.
func (c *client) RunInlineQuery(ctx context.Context, draft *models.QueryDraft) ([]models.Row, error) {
	body := inlineQuery{
		Model:         draft.Model,
		View:          draft.View,
		Fields:        draft.Fields,
		Filters:       draft.Filters,
		Sorts:         draft.Sorts,
		Pivots:        draft.Pivots,
		Limit:         strconv.Itoa(draft.Limit),
		QueryTimezone: c.timezone,
	}
	if body.View == "" {
		body.View = draft.Explore
	}
	if draft.Limit <= 0 {
		body.Limit = strconv.Itoa(c.defaultLimit)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	c.logger.Debug("Running inline query",
		zap.String("model", body.Model),
		zap.String("view", body.View),
		zap.Int("fields", len(body.Fields)),
		zap.String("limit", body.Limit))

	start := time.Now()

	var rows []models.Row
	err = retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		var attemptErr error
		rows, attemptErr = c.runOnce(ctx, payload)
		return attemptErr
	})
	if err != nil {
		c.logger.Error("Query failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, err
	}

	c.logger.Info("Query completed",
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)))

	return rows, nil
}

// runOnce executes the query with the current token, transparently
// refreshing and replaying once on a 401.
func (c *client) runOnce(ctx context.Context, payload []byte) ([]models.Row, error) {
	status, body, err := c.authorized(ctx, http.MethodPost, "/queries/run/json", payload)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("looker returned status %d: %s: %w",
			status, string(body), apperrors.ErrQueryFailed)
	}

	var rows []models.Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parsing query result: %w", err)
	}

	// Looker reports query errors as a single row with a looker_error key.
	if len(rows) == 1 {
		if msg, ok := rows[0]["looker_error"]; ok {
			return nil, fmt.Errorf("looker error: %v: %w", msg, apperrors.ErrQueryFailed)
		}
	}

	return rows, nil
}

// lookmlField is field metadata from the LookML model endpoint.
type lookmlField struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// GetExploreSchema fetches field metadata for an explore.
func (c *client) GetExploreSchema(ctx context.Context, model, explore string) (*models.ExploreSchema, error) {
	endpoint := fmt.Sprintf("/lookml_models/%s/explores/%s",
		url.PathEscape(model), url.PathEscape(explore))

	var schema *models.ExploreSchema
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		status, body, err := c.authorized(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		if status == http.StatusNotFound {
			return fmt.Errorf("explore %s/%s: %w", model, explore, apperrors.ErrNotFound)
		}
		if status != http.StatusOK {
			return fmt.Errorf("looker returned status %d fetching explore: %w",
				status, apperrors.ErrQueryFailed)
		}

		var resp struct {
			Fields struct {
				Dimensions []lookmlField `json:"dimensions"`
				Measures   []lookmlField `json:"measures"`
			} `json:"fields"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("parsing explore metadata: %w", err)
		}

		schema = &models.ExploreSchema{Model: model, Explore: explore}
		for _, f := range resp.Fields.Dimensions {
			schema.Dimensions = append(schema.Dimensions, models.Field{
				FieldName: f.Name,
				Label:     f.Label,
				Type:      fieldType(f.Type),
			})
		}
		for _, f := range resp.Fields.Measures {
			schema.Measures = append(schema.Measures, models.Field{
				FieldName: f.Name,
				Label:     f.Label,
				Type:      fieldType(f.Type),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched explore schema",
		zap.String("model", model),
		zap.String("explore", explore),
		zap.Int("dimensions", len(schema.Dimensions)),
		zap.Int("measures", len(schema.Measures)))

	return schema, nil
}

// fieldType maps LookML field types onto the schema's four value types.
func fieldType(lookml string) models.FieldType {
	switch {
	case strings.HasPrefix(lookml, "date"), strings.HasPrefix(lookml, "time"):
		return models.FieldTypeDate
	case lookml == "yesno":
		return models.FieldTypeYesNo
	case lookml == "number", strings.HasPrefix(lookml, "count"),
		strings.HasPrefix(lookml, "sum"), strings.HasPrefix(lookml, "avg"):
		return models.FieldTypeNumber
	default:
		return models.FieldTypeString
	}
}

// ensureToken returns a valid bearer token, logging in when the cached one
// is missing or within the expiry buffer.
func (c *client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+apiPrefix+"/login", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling looker login: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Looker login failed", zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("looker login returned status %d: %w",
			resp.StatusCode, apperrors.ErrAuthFailed)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parsing login response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("looker login returned no token: %w", apperrors.ErrAuthFailed)
	}

	c.token = tokenResp.AccessToken
	c.tokenExpiry = time.Now().
		Add(time.Duration(tokenResp.ExpiresIn) * time.Second).
		Add(-tokenExpiryBuffer)

	c.logger.Debug("Obtained looker token",
		zap.Int("expires_in", tokenResp.ExpiresIn))

	return c.token, nil
}

func (c *client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// authorized issues an authenticated request, transparently refreshing the
// token and replaying once on a 401.
func (c *client) authorized(ctx context.Context, method, endpoint string, payload []byte) (int, []byte, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	status, body, err := c.request(ctx, method, endpoint, token, payload)
	if err != nil {
		return 0, nil, err
	}

	if status == http.StatusUnauthorized {
		c.invalidateToken()
		token, err = c.ensureToken(ctx)
		if err != nil {
			return 0, nil, err
		}
		status, body, err = c.request(ctx, method, endpoint, token, payload)
		if err != nil {
			return 0, nil, err
		}
	}

	return status, body, nil
}

// request issues a single authenticated call and returns status and body.
// Transport errors bubble up to the retry layer.
func (c *client) request(ctx context.Context, method, endpoint, token string, payload []byte) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method,
		c.baseURL+apiPrefix+endpoint, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("calling looker: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// Close logs out the current session, if any.
func (c *client) Close(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.token = ""
	c.mu.Unlock()

	if token == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+apiPrefix+"/logout", nil)
	if err != nil {
		return fmt.Errorf("creating logout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling looker logout: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.logger.Debug("Logged out of looker")
	return nil
}
