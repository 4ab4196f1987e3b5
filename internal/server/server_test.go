package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mbd888/reclaim/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOwner   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testCleaner = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:            "8080",
		Env:             "test",
		LogLevel:        "error",
		OwnerAddress:    testOwner,
		RewardRate:      100,
		BonusMultiplier: 150,
		BonusThreshold:  10,
		BonusMode:       "cumulative",
		MaxPayloadBytes: 1024,
		RateLimitRPS:    1000,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	require.NoError(t, err)
	return s
}

func (s *Server) do(t *testing.T, method, path, apiKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func registerKey(t *testing.T, s *Server, address string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"address": address,
		"name":    "test key",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Key string `json:"apiKey"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Key)
	return resp.Key
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		// readiness flips on in Run(); the rest are immediate
		if path == "/health/ready" {
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			continue
		}
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/v1/rewards/report", "", map[string]int64{"accounts": 5})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOwnerRoutesRejectNonOwner(t *testing.T) {
	s := newTestServer(t)
	key := registerKey(t, s, testCleaner)
	w := s.do(t, http.MethodPost, "/v1/treasury/withdraw", key, map[string]string{"amount": "1.00"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFullCleanupAndClaimFlow(t *testing.T) {
	s := newTestServer(t)
	ownerKey := registerKey(t, s, testOwner)
	cleanerKey := registerKey(t, s, testCleaner)

	// Owner funds the treasury
	w := s.do(t, http.MethodPost, "/v1/treasury/fund", ownerKey, map[string]string{"amount": "100.00"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Cleaner stores account data, marks, confirms
	w = s.do(t, http.MethodPost, "/v1/accounts/data", cleanerKey, map[string]string{
		"address": testCleaner,
		"payload": "profile blob",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/cleanup/mark", cleanerKey, map[string]string{
		"account":          testCleaner,
		"confirmationCode": "delete-me",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/v1/cleanup/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"activeMarks":1`)

	w = s.do(t, http.MethodPost, "/v1/cleanup/confirm", cleanerKey, map[string]string{
		"account":          testCleaner,
		"confirmationCode": "delete-me",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Account is gone
	w = s.do(t, http.MethodGet, "/v1/accounts/"+testCleaner, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Cleaner reports the work and claims the reward
	w = s.do(t, http.MethodPost, "/v1/rewards/report", cleanerKey, map[string]int64{"accounts": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"total":"5.00"`)

	w = s.do(t, http.MethodPost, "/v1/rewards/claim", cleanerKey, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"paid":"5.00"`)

	// Treasury reflects the payout
	w = s.do(t, http.MethodGet, "/v1/treasury", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":"95.00"`)
	assert.Contains(t, w.Body.String(), `"paid":"5.00"`)
}

func TestPreviewEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, fmt.Sprintf("/v1/rewards/preview?accounts=%d", 10), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":"15.00"`)
	assert.Contains(t, w.Body.String(), `"bonusApplied":true`)
}

func TestInvalidAddressRejected(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/v1/cleanup/not-an-address", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
