package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	fail := func(ctx context.Context) error { return eris.New("down") }

	for range 3 {
		_ = cb.Execute(context.Background(), fail)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), fail)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return eris.New("x") })
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return eris.New("x") })

	failures, state := cb.Counters()
	assert.Equal(t, 1, failures)
	assert.Equal(t, CircuitClosed, state)
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return eris.New("down") })
	require.Equal(t, CircuitOpen, cb.State())

	// After the reset timeout a probe is allowed; its success closes the circuit.
	now = now.Add(11 * time.Second)
	err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return eris.New("down") })
	now = now.Add(11 * time.Second)
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return eris.New("still down") })

	_, state := cb.Counters()
	assert.Equal(t, CircuitOpen, state)
}

func TestBreakerShouldTripFilter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		ShouldTrip:       IsTransient,
	})

	// A permanent error (404) does not trip the breaker.
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return eris.New("not found") })
	assert.Equal(t, CircuitClosed, cb.State())

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return NewTransientError(eris.New("503"), 503)
	})
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestExecuteVal(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	v, err := ExecuteVal(context.Background(), cb, func(ctx context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, _ = ExecuteVal(context.Background(), cb, func(ctx context.Context) (int, error) { return 0, eris.New("down") })
	_, err = ExecuteVal(context.Background(), cb, func(ctx context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return eris.New("down") })
	require.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
}
