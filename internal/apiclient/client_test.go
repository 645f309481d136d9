package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, Token: "tok", Impersonate: "eve@example.com"})
}

func TestWalletSendsAuthHeaders(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/wallet", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "eve@example.com", r.Header.Get("X-Impersonate-User"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"wallet": map[string]interface{}{"user_id": "u1", "balance": 250},
		})
	})

	wallet, err := c.Wallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(250), wallet.Balance)
}

func TestAPIErrorIsDecoded(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"FORBIDDEN","message":"admin access required"}`))
	})

	_, err := c.AwardCoins(context.Background(), "u1", 10, "ops")
	require.Error(t, err)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
}

func TestNonJSONErrorFallsBack(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	_, err := c.Feed(context.Background(), 5, 0)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "unknown_error", apiErr.Code)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestFeedPassesPagination(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "10", r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"videos":[{"id":"v1","title":"Sunset","like_count":3}]}`))
	})

	videos, err := c.Feed(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "Sunset", videos[0].Title)
	assert.Equal(t, int64(3), videos[0].LikeCount)
}

func TestUnhealthyAPIStillDecodes(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy","checks":{"database":"unavailable"}}`))
	})

	health, err := c.Health(context.Background())
	require.Error(t, err)
	require.NotNil(t, health)
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unavailable", health.Checks["database"])
}
