package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return NewClient(ClientConfig{UserAgent: "test-agent", Timeout: 5 * time.Second}, zap.NewNop())
}

func TestDefaultHeaders(t *testing.T) {
	t.Parallel()

	headers := DefaultHeaders("test-agent")
	assert.Equal(t, "test-agent", headers["User-Agent"])
	assert.Equal(t, "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8", headers["Accept"])
	assert.Equal(t, "en-US,en;q=0.5", headers["Accept-Language"])
	assert.Equal(t, "keep-alive", headers["Connection"])
	assert.Equal(t, "1", headers["Upgrade-Insecure-Requests"])
}

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	headerCh := make(chan http.Header, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerCh <- r.Header.Clone()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer server.Close()

	client := newTestClient(t)
	page, err := client.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, server.URL, page.URL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "ok")
	assert.False(t, page.Rendered)

	received := <-headerCh
	assert.Equal(t, "test-agent", received.Get("User-Agent"))
	assert.Equal(t, "en-US,en;q=0.5", received.Get("Accept-Language"))
	assert.Equal(t, "1", received.Get("Upgrade-Insecure-Requests"))
	assert.Contains(t, received.Get("Accept"), "text/html")
}

func TestClient_Fetch_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.Fetch(context.Background(), server.URL)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
	assert.Equal(t, server.URL, netErr.URL)
}

func TestClient_Fetch_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t)
	_, err := client.Fetch(context.Background(), url)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestClient_Fetch_ContextCanceled(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t)
	_, err := client.Fetch(ctx, server.URL)
	require.ErrorIs(t, err, context.Canceled)
}
