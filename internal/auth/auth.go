// Package auth implements the Kiwoom OAuth2 client-credentials flow.
//
// Access tokens are issued against POST /oauth2/token and cached until
// shortly before expiry. A 401 from the REST layer invalidates the
// cached token so the next call fetches a fresh one.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	tokenPath  = "/oauth2/token"
	revokePath = "/oauth2/revoke"

	// Refresh this long before the broker-reported expiry.
	expirySkew = 5 * time.Minute
)

// kst is the broker's clock; expires_dt is reported in Korea Standard Time.
var kst = time.FixedZone("KST", 9*60*60)

// TokenSource issues and caches access tokens.
type TokenSource struct {
	baseURL    string
	appKey     string
	appSecret  string
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Option configures a TokenSource.
type Option func(*TokenSource)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(ts *TokenSource) {
		ts.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ts *TokenSource) {
		ts.logger = logger
	}
}

// NewTokenSource creates a token source for the given app credentials.
func NewTokenSource(baseURL, appKey, appSecret string, opts ...Option) *TokenSource {
	ts := &TokenSource{
		baseURL:   baseURL,
		appKey:    appKey,
		appSecret: appSecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(ts)
	}

	return ts
}

// tokenResponse is the wire format of the token endpoint.
type tokenResponse struct {
	ReturnCode int    `json:"return_code"`
	ReturnMsg  string `json:"return_msg"`
	TokenType  string `json:"token_type"`
	Token      string `json:"token"`
	ExpiresDt  string `json:"expires_dt"` // YYYYMMDDHHMMSS in KST
}

// Token returns a valid access token, fetching a new one if the cached
// token is missing or near expiry. Safe for concurrent use.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiresAt.Add(-expirySkew)) {
		return ts.token, nil
	}

	return ts.fetchLocked(ctx)
}

// Invalidate discards the cached token. Called after a 401 so the next
// request re-authenticates.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.expiresAt = time.Time{}
	ts.mu.Unlock()
}

// Revoke revokes the cached token with the brokerage and clears it.
func (ts *TokenSource) Revoke(ctx context.Context) error {
	ts.mu.Lock()
	token := ts.token
	ts.token = ""
	ts.expiresAt = time.Time{}
	ts.mu.Unlock()

	if token == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"appkey":    ts.appKey,
		"secretkey": ts.appSecret,
		"token":     token,
	})
	if err != nil {
		return fmt.Errorf("marshal revoke request: %w", err)
	}

	resp, err := ts.post(ctx, revokePath, body)
	if err != nil {
		return err
	}

	var result struct {
		ReturnCode int    `json:"return_code"`
		ReturnMsg  string `json:"return_msg"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("unmarshal revoke response: %w", err)
	}
	if result.ReturnCode != 0 {
		return fmt.Errorf("revoke token: %s (code %d)", result.ReturnMsg, result.ReturnCode)
	}

	ts.logger.Debug("access token revoked")
	return nil
}

// fetchLocked fetches a new token. Caller must hold mu.
func (ts *TokenSource) fetchLocked(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     ts.appKey,
		"secretkey":  ts.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	respBody, err := ts.post(ctx, tokenPath, body)
	if err != nil {
		return "", err
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if tr.ReturnCode != 0 {
		return "", fmt.Errorf("issue token: %s (code %d)", tr.ReturnMsg, tr.ReturnCode)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("token response missing token")
	}

	expiresAt, err := parseExpiry(tr.ExpiresDt)
	if err != nil {
		ts.logger.Warn("unparseable token expiry, assuming 24h", "expires_dt", tr.ExpiresDt)
		expiresAt = time.Now().Add(24 * time.Hour)
	}

	ts.token = tr.Token
	ts.expiresAt = expiresAt

	ts.logger.Debug("access token issued", "expires_at", expiresAt)

	return ts.token, nil
}

// post performs a JSON POST and returns the response body.
func (ts *TokenSource) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("auth endpoint %s returned %d: %s", path, resp.StatusCode, respBody)
	}

	return respBody, nil
}

// parseExpiry parses the broker's YYYYMMDDHHMMSS expiry stamp.
func parseExpiry(s string) (time.Time, error) {
	return time.ParseInLocation("20060102150405", s, kst)
}
