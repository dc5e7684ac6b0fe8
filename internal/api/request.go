package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// APIError represents an error from the Kiwoom API. It carries both the
// HTTP status and the broker's return_code/return_msg when present.
type APIError struct {
	StatusCode int
	ReturnCode int
	Message    string
	APIID      string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.ReturnCode != 0 {
		return fmt.Sprintf("kiwoom api %s error: %s (return_code %d)", e.APIID, e.Message, e.ReturnCode)
	}
	return fmt.Sprintf("kiwoom api %s error: http %d %s", e.APIID, e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
// 401 is handled separately via token invalidation.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsAuthError returns true for authentication failures.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == 401
}

// returnEnvelope is the common part of every endpoint response.
type returnEnvelope struct {
	ReturnCode int    `json:"return_code"`
	ReturnMsg  string `json:"return_msg"`
}

// doRequest performs a single POST with the api-id header.
func (c *Client) doRequest(ctx context.Context, apiID, path string, reqBody any, contKey string) ([]byte, string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("get token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("api-id", apiID)
	if contKey != "" {
		req.Header.Set("cont-yn", "Y")
		req.Header.Set("next-key", contKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			APIID:      apiID,
			Body:       body,
		}
	}

	// Broker-level errors come back as HTTP 200 with a nonzero return_code.
	var env returnEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, "", fmt.Errorf("unmarshal response envelope: %w", err)
	}
	if env.ReturnCode != 0 {
		return nil, "", &APIError{
			StatusCode: resp.StatusCode,
			ReturnCode: env.ReturnCode,
			Message:    env.ReturnMsg,
			APIID:      apiID,
			Body:       body,
		}
	}

	nextKey := ""
	if resp.Header.Get("cont-yn") == "Y" {
		nextKey = resp.Header.Get("next-key")
	}

	return body, nextKey, nil
}

// doWithRetry performs a request with rate limiting, circuit breaking,
// and jittered exponential backoff. A 401 invalidates the cached token
// and is retried once with a fresh one.
func (c *Client) doWithRetry(ctx context.Context, apiID, path string, reqBody any, contKey string) ([]byte, string, error) {
	var lastErr error
	backoff := c.retryBackoff
	authRetried := false

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"api_id", apiID,
			)

			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}

		body, nextKey, err := c.execute(ctx, apiID, path, reqBody, contKey)
		if err == nil {
			return body, nextKey, nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			return nil, "", err
		}

		if apiErr.IsAuthError() && !authRetried {
			c.logger.Info("access token rejected, refreshing", "api_id", apiID)
			c.tokens.Invalidate()
			authRetried = true
			// Does not consume a backoff attempt.
			attempt--
			continue
		}

		if !apiErr.IsRetryable() {
			return nil, "", err
		}
	}

	return nil, "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// execute runs a single request through the circuit breaker when configured.
func (c *Client) execute(ctx context.Context, apiID, path string, reqBody any, contKey string) (body []byte, nextKey string, err error) {
	if c.requestHook != nil {
		defer func() { c.requestHook(apiID, err) }()
	}

	if c.breaker == nil {
		return c.doRequest(ctx, apiID, path, reqBody, contKey)
	}

	type result struct {
		body    []byte
		nextKey string
	}

	res, err := c.breaker.Execute(func() (any, error) {
		body, nextKey, err := c.doRequest(ctx, apiID, path, reqBody, contKey)
		if err != nil {
			return nil, err
		}
		return result{body: body, nextKey: nextKey}, nil
	})
	if err != nil {
		return nil, "", err
	}

	r := res.(result)
	return r.body, r.nextKey, nil
}

// call performs a single-page request and unmarshals the response.
func (c *Client) call(ctx context.Context, apiID, path string, reqBody, result any) error {
	body, _, err := c.doWithRetry(ctx, apiID, path, reqBody, "")
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// callPaged repeatedly requests pages, invoking handle on each raw page,
// until the broker stops returning a continuation key.
func (c *Client) callPaged(ctx context.Context, apiID, path string, reqBody any, handle func([]byte) error) error {
	contKey := ""
	for {
		body, nextKey, err := c.doWithRetry(ctx, apiID, path, reqBody, contKey)
		if err != nil {
			return err
		}

		if err := handle(body); err != nil {
			return err
		}

		if nextKey == "" {
			return nil
		}
		contKey = nextKey
	}
}
