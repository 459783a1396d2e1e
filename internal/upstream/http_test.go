package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"customer-insights/internal/common/logger"
	"customer-insights/internal/insights/dispatch"
	"customer-insights/internal/insights/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_CallGeneral(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody askRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Top customers are Acme and Globex"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL+"/", "key-123", time.Second, logger.NewTestLogger(t))
	raw, err := client.CallGeneral(context.Background(), "Who are my top customers?")
	require.NoError(t, err)

	assert.Equal(t, "Bearer key-123", gotAuth)
	assert.Equal(t, "/api/analytics/ask", gotPath)
	assert.Equal(t, "Who are my top customers?", gotBody.Question)
	assert.Equal(t, response.RawText, raw.Kind())
	assert.Contains(t, raw.String(), "Acme")
}

func TestHTTPClient_CallScopedEscapesCustomer(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", time.Second, logger.NewTestLogger(t))
	_, err := client.CallScoped(context.Background(), "overview?", "CUST 001")
	require.NoError(t, err)
	assert.Equal(t, "/api/analytics/customers/CUST%20001/ask", gotPath)
}

func TestHTTPClient_NonSuccessIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "k", time.Second, logger.NewTestLogger(t))
	_, err := client.CallGeneral(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dispatch.ErrTransportFailure))
	assert.False(t, errors.Is(err, dispatch.ErrUpstreamTimeout))
	assert.Contains(t, err.Error(), "429")
}

func TestHTTPClient_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", time.Second, logger.NewTestLogger(t))
	raw, err := client.CallGeneral(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, response.RawEmpty, raw.Kind())
}

func TestHTTPClient_DeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewHTTPClient(srv.URL, "", 5*time.Second, logger.NewTestLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.CallGeneral(ctx, "slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dispatch.ErrTransportFailure))
	assert.True(t, errors.Is(err, dispatch.ErrUpstreamTimeout))
}

func TestHTTPClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := NewHTTPClient(addr, "", time.Second, logger.NewTestLogger(t))
	_, err := client.CallGeneral(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dispatch.ErrTransportFailure))
}
