package client

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
	"time"
)

// Client talks to a Reclaim server. The zero value is not usable; use New.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// OnRequest, if set, is called before each request. Useful for logging.
	OnRequest func(method, path string)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the given base URL. apiKey may be empty for
// read-only use of the public endpoints.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAPIKey replaces the key used for authenticated calls. Handy after
// RegisterKey on a fresh client.
func (c *Client) SetAPIKey(key string) { c.apiKey = key }

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if query != nil {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.OnRequest != nil {
		c.OnRequest(method, path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" && apiErr.Code == "" {
			apiErr.Code = "http_error"
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// RegisterKey issues an API key for an identity. The returned raw key is
// shown only once.
func (c *Client) RegisterKey(ctx context.Context, address, name string) (*Credential, error) {
	var cred Credential
	err := c.do(ctx, http.MethodPost, "/v1/auth/register", nil,
		map[string]string{"address": address, "name": name}, &cred)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Treasury returns the reward pool state.
func (c *Client) Treasury(ctx context.Context) (*Pool, error) {
	var pool Pool
	if err := c.do(ctx, http.MethodGet, "/v1/treasury", nil, nil, &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

// FundTreasury credits the pool from the caller. amount is a decimal
// string like "25.00".
func (c *Client) FundTreasury(ctx context.Context, amount string) (*Pool, error) {
	var pool Pool
	err := c.do(ctx, http.MethodPost, "/v1/treasury/fund", nil,
		map[string]string{"amount": amount}, &pool)
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

// UserStats returns an identity's cumulative ledger view.
func (c *Client) UserStats(ctx context.Context, address string) (*UserStats, error) {
	var stats UserStats
	err := c.do(ctx, http.MethodGet, "/v1/rewards/users/"+url.PathEscape(address), nil, nil, &stats)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Sessions returns one page of an identity's sessions, newest first.
// cursor is empty for the first page; limit 0 uses the server default.
func (c *Client) Sessions(ctx context.Context, address, cursor string, limit int) (*SessionPage, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var page SessionPage
	err := c.do(ctx, http.MethodGet, "/v1/rewards/users/"+url.PathEscape(address)+"/sessions", q, nil, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// PreviewReward prices a hypothetical batch without recording anything.
// address may be empty when the bonus mode does not depend on history.
func (c *Client) PreviewReward(ctx context.Context, address string, accounts int64) (*Preview, error) {
	q := url.Values{}
	q.Set("accounts", strconv.FormatInt(accounts, 10))
	if address != "" {
		q.Set("address", address)
	}
	var p Preview
	if err := c.do(ctx, http.MethodGet, "/v1/rewards/preview", q, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Report records a batch of cleaned accounts for the caller.
func (c *Client) Report(ctx context.Context, accounts int64) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/v1/rewards/report", nil,
		map[string]int64{"accounts": accounts}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ClaimRewards pays out the caller's whole pending balance.
func (c *Client) ClaimRewards(ctx context.Context) (*Payout, error) {
	var p Payout
	if err := c.do(ctx, http.MethodPost, "/v1/rewards/claim", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ClaimSession pays out one of the caller's sessions.
func (c *Client) ClaimSession(ctx context.Context, sessionID int64) (*Payout, error) {
	var p Payout
	path := "/v1/rewards/sessions/" + strconv.FormatInt(sessionID, 10) + "/claim"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// WriteAccountData creates or updates the caller's account payload.
func (c *Client) WriteAccountData(ctx context.Context, payload string) (*Account, error) {
	var wrap struct {
		Account Account `json:"account"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/accounts/data", nil,
		map[string]string{"payload": payload}, &wrap)
	if err != nil {
		return nil, err
	}
	return &wrap.Account, nil
}

// GetAccount fetches a stored account record.
func (c *Client) GetAccount(ctx context.Context, address string) (*Account, error) {
	var wrap struct {
		Account Account `json:"account"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(address), nil, nil, &wrap)
	if err != nil {
		return nil, err
	}
	return &wrap.Account, nil
}

// MarkAccount marks an account for removal with a confirmation code the
// account's owner must echo back to confirm.
func (c *Client) MarkAccount(ctx context.Context, account, confirmationCode string) error {
	return c.do(ctx, http.MethodPost, "/v1/cleanup/mark", nil,
		map[string]string{"account": account, "confirmationCode": confirmationCode}, nil)
}

// CancelMark withdraws an active mark.
func (c *Client) CancelMark(ctx context.Context, account string) error {
	return c.do(ctx, http.MethodPost, "/v1/cleanup/cancel", nil,
		map[string]string{"account": account}, nil)
}

// ConfirmRemoval completes a marked removal by echoing the code.
func (c *Client) ConfirmRemoval(ctx context.Context, account, confirmationCode string) error {
	return c.do(ctx, http.MethodPost, "/v1/cleanup/confirm", nil,
		map[string]string{"account": account, "confirmationCode": confirmationCode}, nil)
}

// GetCleanupStatus fetches the mark state of an account.
func (c *Client) GetCleanupStatus(ctx context.Context, account string) (*CleanupStatus, error) {
	var status CleanupStatus
	err := c.do(ctx, http.MethodGet, "/v1/cleanup/"+url.PathEscape(account), nil, nil, &status)
	if err != nil {
		return nil, err
	}
	return &status, nil
}
