package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/shellkeeper/internal/client/models"
	"github.com/dmitrijs2005/shellkeeper/internal/common"
)

const (
	authPath = "/auth/v1"
	restPath = "/rest/v1"

	// singleObjectMedia makes the table endpoint answer with one object and
	// reject zero or several matching rows.
	singleObjectMedia = "application/vnd.pgrst.object+json"
)

// HTTPClient implements Client over the backend's REST API.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	store   SessionStore
	querier Querier
	now     func() time.Time
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the default http.Client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

// WithQuerier routes From() to q instead of the REST table endpoint.
func WithQuerier(q Querier) Option {
	return func(c *HTTPClient) { c.querier = q }
}

func WithClock(now func() time.Time) Option {
	return func(c *HTTPClient) { c.now = now }
}

// NewHTTPClient builds a client for the service at serviceURL authenticating
// with the public apiKey. Both values are required.
func NewHTTPClient(serviceURL, apiKey string, store SessionStore, opts ...Option) (*HTTPClient, error) {
	if serviceURL == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: service URL and public key are required", common.ErrorMissingConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: session store is required", common.ErrorMissingConfig)
	}
	u, err := url.Parse(strings.TrimRight(serviceURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse service URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("service URL must be http(s), got %q", serviceURL)
	}

	c := &HTTPClient{
		baseURL: u,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// tokenResponse is the body of /auth/v1/token replies.
type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int64           `json:"expires_in"`
	ExpiresAt    int64           `json:"expires_at"`
	User         models.Identity `json:"user"`
}

func (r *tokenResponse) session(now time.Time) *models.Session {
	s := &models.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		User:         r.User,
	}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return s
}

// GetSession returns the stored session, refreshing it when its access token
// has expired. A stored token that cannot be decoded is reported as a 400
// APIError; the stored session is left in place for the caller to wipe.
func (c *HTTPClient) GetSession(ctx context.Context) (*models.Session, error) {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil || sess.AccessToken == "" {
		return nil, nil
	}

	subject, exp, err := tokenClaims(sess.AccessToken)
	if err != nil {
		return nil, &APIError{
			Status:  http.StatusBadRequest,
			Code:    "bad_jwt",
			Message: "invalid JWT: unable to parse or verify signature, " + err.Error(),
		}
	}
	if sess.User.ID == "" {
		sess.User.ID = subject
	}
	if !exp.IsZero() {
		sess.ExpiresAt = exp
	}

	if !sess.Expired(c.now()) {
		return sess, nil
	}
	if sess.RefreshToken == "" {
		_ = c.store.Clear(ctx)
		return nil, nil
	}
	return c.refresh(ctx, sess.RefreshToken)
}

func (c *HTTPClient) refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	var tr tokenResponse
	q := url.Values{"grant_type": {"refresh_token"}}
	err := c.do(ctx, http.MethodPost, authPath+"/token", q, map[string]string{"refresh_token": refreshToken}, "", "", &tr)
	if err != nil {
		// a rejected refresh token ends the session; a network error does not
		if !errors.Is(err, ErrUnavailable) {
			_ = c.store.Clear(ctx)
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	sess := tr.session(c.now())
	if err := c.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// SignInWithPassword exchanges credentials for a session and persists it.
func (c *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	var tr tokenResponse
	q := url.Values{"grant_type": {"password"}}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, authPath+"/token", q, body, "", "", &tr); err != nil {
		return nil, err
	}

	sess := tr.session(c.now())
	if err := c.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// SignOut revokes the session on the backend and forgets it locally. The
// local copy is dropped even when the backend call fails.
func (c *HTTPClient) SignOut(ctx context.Context) error {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	defer func() { _ = c.store.Clear(ctx) }()

	if sess == nil || sess.AccessToken == "" {
		return nil
	}

	err = c.do(ctx, http.MethodPost, authPath+"/logout", nil, nil, sess.AccessToken, "", nil)
	if err != nil {
		// already revoked or unknown: nothing left to sign out of
		switch StatusCode(err) {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return nil
		}
		return err
	}
	return nil
}

// From starts a single-row query on table.
func (c *HTTPClient) From(table string) QueryBuilder {
	if c.querier != nil {
		return c.querier.From(table)
	}
	return &restQuery{c: c, table: table, columns: "*", filters: url.Values{}}
}

// bearer returns the session token when signed in, the public key otherwise.
func (c *HTTPClient) bearer(ctx context.Context) string {
	sess, err := c.store.Load(ctx)
	if err != nil || sess == nil || sess.AccessToken == "" {
		return c.apiKey
	}
	return sess.AccessToken
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in any, token, accept string, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError understands the three error shapes the backend emits: the
// auth service's {code,error_code,msg}, OAuth's {error,error_description}
// and the table API's {code,message}.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	apiErr.Message = firstString(body, "msg", "message", "error_description", "error")
	apiErr.Code = firstString(body, "error_code", "code", "error")
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

type restQuery struct {
	c       *HTTPClient
	table   string
	columns string
	filters url.Values
}

func (q *restQuery) Select(columns string) QueryBuilder {
	q.columns = columns
	return q
}

func (q *restQuery) Eq(column string, value any) QueryBuilder {
	q.filters.Add(column, "eq."+fmt.Sprint(value))
	return q
}

func (q *restQuery) Single(ctx context.Context) (map[string]any, error) {
	params := url.Values{"select": {q.columns}}
	for k, vs := range q.filters {
		params[k] = vs
	}

	var row map[string]any
	path := restPath + "/" + q.table
	if err := q.c.do(ctx, http.MethodGet, path, params, nil, q.c.bearer(ctx), singleObjectMedia, &row); err != nil {
		return nil, err
	}
	return row, nil
}
