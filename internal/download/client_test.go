package download

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracol/terracol/internal/resilience"
)

func TestClientGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("tile bytes"))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{UserAgent: "test-agent", Timeout: 5 * time.Second})
	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "tile bytes", string(data))
}

func TestClientGetStatusTaxonomy(t *testing.T) {
	var status int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{Timeout: 5 * time.Second})

	status = http.StatusNotFound
	_, err := c.Get(context.Background(), srv.URL)
	de, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, de.Kind)
	assert.False(t, resilience.IsTransient(err))

	status = http.StatusUnauthorized
	_, err = c.Get(context.Background(), srv.URL)
	de, ok = AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindRemoteRejected, de.Kind)
	assert.False(t, resilience.IsTransient(err))

	status = http.StatusBadGateway
	_, err = c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	status = http.StatusTooManyRequests
	_, err = c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestClientConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(ClientOptions{Timeout: time.Second})
	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestClientBreakerOpensOnConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		ShouldTrip:       resilience.IsTransient,
	})
	c := NewClient(ClientOptions{Timeout: 5 * time.Second, Breaker: breaker})

	for range 2 {
		_, err := c.Get(context.Background(), srv.URL)
		require.Error(t, err)
	}

	_, err := c.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}
