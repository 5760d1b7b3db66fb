package supplier

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
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"supplier-engine-service/internal/clients"
)

const (
	tokenHeader = "CJ-Access-Token"

	// Tokens are renewed once they get this close to expiry
	tokenSafetyMargin = time.Hour

	defaultAccessTTL  = 15 * 24 * time.Hour
	defaultRefreshTTL = 180 * 24 * time.Hour

	successCode = 200
)

// Config holds the client settings
type Config struct {
	BaseURL      string
	Email        string
	Password     string
	APIKey       string
	MinInterval  time.Duration // minimum spacing between any two outbound requests
	MaxRetries   int           // extra attempts for transient failures
	RetryBackoff time.Duration // linear backoff unit
	Timeout      time.Duration
}

// Stats exposes request counters for observability
type Stats struct {
	Requests        int64      `json:"requests"`
	Errors          int64      `json:"errors"`
	TokenRefreshes  int64      `json:"tokenRefreshes"`
	Authentications int64      `json:"authentications"`
	ForcedReauths   int64      `json:"forcedReauths"`
	LastRequestAt   *time.Time `json:"lastRequestAt,omitempty"`
	TokenExpiresAt  *time.Time `json:"tokenExpiresAt,omitempty"`
}

// Client is the single authenticated, paced gateway to the supplier API
type Client struct {
	httpClient  *http.Client
	baseURL     string
	email       string
	password    string
	apiKey      string
	rateLimiter *rate.Limiter
	retrier     *clients.Retrier
	logger      *logrus.Entry
	now         func() time.Time

	tokenMu sync.Mutex
	token   clients.TokenResult

	requests        atomic.Int64
	errors          atomic.Int64
	tokenRefreshes  atomic.Int64
	authentications atomic.Int64
	forcedReauths   atomic.Int64
	lastRequestAt   atomic.Int64
}

var _ clients.SupplierAPI = (*Client)(nil)

// New creates the supplier client. It fails with ErrNoCredentials when no
// usable credentials are configured.
func New(cfg Config, logger *logrus.Logger) (*Client, error) {
	if cfg.APIKey == "" && (cfg.Email == "" || cfg.Password == "") {
		return nil, ErrNoCredentials
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("supplier: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	retryCfg := clients.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.MaxRetries
	retryCfg.InitialBackoff = cfg.RetryBackoff

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		email:       cfg.Email,
		password:    cfg.Password,
		apiKey:      cfg.APIKey,
		rateLimiter: rate.NewLimiter(limit, 1),
		retrier:     clients.NewRetrier(retryCfg),
		logger:      logger.WithField("component", "supplier-client"),
		now:         time.Now,
	}, nil
}

// Stats returns a snapshot of the request counters
func (c *Client) Stats() Stats {
	s := Stats{
		Requests:        c.requests.Load(),
		Errors:          c.errors.Load(),
		TokenRefreshes:  c.tokenRefreshes.Load(),
		Authentications: c.authentications.Load(),
		ForcedReauths:   c.forcedReauths.Load(),
	}
	if ts := c.lastRequestAt.Load(); ts > 0 {
		t := time.Unix(0, ts)
		s.LastRequestAt = &t
	}
	c.tokenMu.Lock()
	if !c.token.ExpiresAt.IsZero() {
		t := c.token.ExpiresAt
		s.TokenExpiresAt = &t
	}
	c.tokenMu.Unlock()
	return s
}

// EnsureToken returns a valid access token. A cached token is reused while
// it has more than an hour left; otherwise the refresh token is tried and
// any refresh failure falls through to a full authentication.
func (c *Client) EnsureToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	now := c.now()
	if c.token.AccessToken != "" && c.token.ExpiresAt.Sub(now) > tokenSafetyMargin {
		return c.token.AccessToken, nil
	}

	if c.token.RefreshToken != "" && c.token.RefreshExpiresAt.Sub(now) > tokenSafetyMargin {
		tok, err := c.refresh(ctx, c.token.RefreshToken)
		if err == nil {
			c.token = *tok
			c.tokenRefreshes.Add(1)
			return tok.AccessToken, nil
		}
		c.logger.WithError(err).Warn("Token refresh failed, re-authenticating")
	}

	tok, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}
	c.token = *tok
	c.authentications.Add(1)
	return tok.AccessToken, nil
}

// invalidateToken drops the cached access token if it is still the one
// that was rejected, so concurrent callers do not discard a fresh token.
func (c *Client) invalidateToken(rejected string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token.AccessToken == rejected {
		c.token.AccessToken = ""
		c.token.ExpiresAt = time.Time{}
	}
}

type tokenPayload struct {
	AccessToken            string `json:"accessToken"`
	AccessTokenExpiryDate  string `json:"accessTokenExpiryDate"`
	RefreshToken           string `json:"refreshToken"`
	RefreshTokenExpiryDate string `json:"refreshTokenExpiryDate"`
}

func (c *Client) authenticate(ctx context.Context) (*clients.TokenResult, error) {
	body := map[string]string{}
	if c.apiKey != "" {
		body["apiKey"] = c.apiKey
	} else {
		body["email"] = c.email
		body["password"] = c.password
	}
	tok, err := c.exchangeToken(ctx, "/authentication/getAccessToken", body)
	if err != nil {
		return nil, &AuthError{Op: "authentication", Err: err}
	}
	return tok, nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*clients.TokenResult, error) {
	tok, err := c.exchangeToken(ctx, "/authentication/refreshAccessToken", map[string]string{
		"refreshToken": refreshToken,
	})
	if err != nil {
		return nil, &AuthError{Op: "token refresh", Err: err}
	}
	return tok, nil
}

func (c *Client) exchangeToken(ctx context.Context, path string, body map[string]string) (*clients.TokenResult, error) {
	status, env, _, err := c.send(ctx, http.MethodPost, path, nil, body, "")
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, env.apiError(path, status)
	}

	var payload tokenPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, errors.New("token response has no access token")
	}

	now := c.now()
	return &clients.TokenResult{
		AccessToken:      payload.AccessToken,
		ExpiresAt:        parseExpiry(payload.AccessTokenExpiryDate, now.Add(defaultAccessTTL)),
		RefreshToken:     payload.RefreshToken,
		RefreshExpiresAt: parseExpiry(payload.RefreshTokenExpiryDate, now.Add(defaultRefreshTTL)),
	}, nil
}

func parseExpiry(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return fallback
}

// envelope is the supplier's common response wrapper
type envelope struct {
	Code      int             `json:"code"`
	Result    *bool           `json:"result"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"requestId"`
}

func (e *envelope) ok() bool {
	return e.Code == successCode && (e.Result == nil || *e.Result)
}

func (e *envelope) apiError(path string, status int) *APIError {
	return &APIError{
		Path:       path,
		HTTPStatus: status,
		Code:       e.Code,
		Message:    e.Message,
		RequestID:  e.RequestID,
	}
}

// Call issues an authenticated request and decodes the envelope's data into
// out (when non-nil). Transient failures are retried with linear backoff;
// a rejected token triggers one forced re-authentication per attempt.
func (c *Client) Call(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	res := c.retrier.Do(ctx, path, func(ctx context.Context) clients.Outcome {
		return c.attempt(ctx, method, path, query, body, out)
	})
	if res.LastError != nil {
		c.errors.Add(1)
		c.logger.WithFields(logrus.Fields{
			"path":     path,
			"attempts": res.Attempts,
		}).WithError(res.LastError).Debug("Supplier call failed")
	}
	return res.LastError
}

func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, body, out interface{}) clients.Outcome {
	token, err := c.EnsureToken(ctx)
	if err != nil {
		return clients.Outcome{StatusCode: statusOf(err), Err: err}
	}

	status, env, retryAfter, err := c.send(ctx, method, path, query, body, token)
	if err != nil {
		return clients.Outcome{StatusCode: status, RetryAfter: retryAfter, Err: err}
	}

	if isTokenFailure(status, env) {
		c.forcedReauths.Add(1)
		c.invalidateToken(token)
		c.logger.WithField("path", path).Info("Supplier rejected token, re-authenticating")

		token, err = c.EnsureToken(ctx)
		if err != nil {
			return clients.Outcome{StatusCode: statusOf(err), Err: err}
		}
		status, env, retryAfter, err = c.send(ctx, method, path, query, body, token)
		if err != nil {
			return clients.Outcome{StatusCode: status, RetryAfter: retryAfter, Err: err}
		}
	}

	if !env.ok() {
		// Application errors ride on HTTP 200; report them with that status
		// so the retrier does not treat them as transient.
		return clients.Outcome{StatusCode: status, Err: env.apiError(path, status)}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return clients.Outcome{StatusCode: status, Err: fmt.Errorf("failed to parse %s response: %w", path, err)}
		}
	}
	return clients.Outcome{StatusCode: status}
}

func isTokenFailure(status int, env *envelope) bool {
	return status == http.StatusUnauthorized || tokenErrorCodes[env.Code]
}

// statusOf maps an error to the HTTP status the retrier should see
func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatus >= 500 {
			return apiErr.HTTPStatus
		}
		return http.StatusOK
	}
	// network errors
	return 0
}

// send waits on the pacing gate and performs one HTTP exchange. 5xx and
// 429 responses come back as errors with their status so the caller can
// retry them; any other response is decoded into an envelope.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}, token string) (int, *envelope, time.Duration, error) {
	// Rate limiting
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, nil, 0, err
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return http.StatusOK, nil, 0, fmt.Errorf("failed to encode %s request: %w", path, err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return http.StatusOK, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	c.requests.Add(1)
	c.lastRequestAt.Store(c.now().UnixNano())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, err
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return resp.StatusCode, nil, clients.ParseRetryAfter(resp), &APIError{
			Path:       path,
			HTTPStatus: resp.StatusCode,
			Code:       resp.StatusCode,
			Message:    truncate(string(respBody), 200),
		}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			return resp.StatusCode, &envelope{Code: resp.StatusCode}, 0, nil
		}
		return resp.StatusCode, nil, 0, &APIError{
			Path:       path,
			HTTPStatus: resp.StatusCode,
			Code:       resp.StatusCode,
			Message:    "unreadable response: " + truncate(string(respBody), 200),
		}
	}
	if resp.StatusCode >= 400 && env.Code == successCode {
		env.Code = resp.StatusCode
	}
	return resp.StatusCode, &env, 0, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
