package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mbd888/reclaim/internal/retry"
)

// Config holds the configuration for connecting to the Reclaim service.
type Config struct {
	APIURL  string // Base URL, e.g. "http://localhost:8080"
	APIKey  string // API key, e.g. "rk_..."
	Address string // Caller's identity, e.g. "0x..."
}

// ReclaimClient is a pure HTTP client for the Reclaim API.
type ReclaimClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewReclaimClient creates a new client for the Reclaim service.
func NewReclaimClient(cfg Config) *ReclaimClient {
	return &ReclaimClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the service.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the service and returns the response
// body. Transient failures (network errors, 5xx) are retried with backoff;
// 4xx responses are not.
func (c *ReclaimClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqData []byte
	if body != nil {
		reqData, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	var respBody []byte
	err = retry.Do(ctx, 3, 200*time.Millisecond, func() error {
		var reqBody io.Reader
		if reqData != nil {
			reqBody = bytes.NewReader(reqData)
		}

		req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
		if err != nil {
			return retry.Permanent(fmt.Errorf("create request: %w", err))
		}

		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
		if reqData != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			var apiErr apiError
			reqErr := fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
				reqErr = fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
			}
			if resp.StatusCode < 500 {
				return retry.Permanent(reqErr)
			}
			return reqErr
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return respBody, nil
}

// GetTreasury fetches the reward pool state.
func (c *ReclaimClient) GetTreasury(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/treasury", nil, nil)
}

// GetUserStats fetches the cumulative ledger view for an identity.
func (c *ReclaimClient) GetUserStats(ctx context.Context, address string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/rewards/users/"+url.PathEscape(address), nil, nil)
}

// PreviewReward prices a hypothetical batch without recording anything.
func (c *ReclaimClient) PreviewReward(ctx context.Context, address string, accounts int64) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("accounts", strconv.FormatInt(accounts, 10))
	if address != "" {
		q.Set("address", address)
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/rewards/preview", q, nil)
}

// GetCleanupStatus fetches the cleanup state of an account.
func (c *ReclaimClient) GetCleanupStatus(ctx context.Context, address string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/cleanup/"+url.PathEscape(address), nil, nil)
}
