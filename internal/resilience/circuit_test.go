package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})
	boom := eris.New("boom")

	for i := 0; i < 3; i++ {
		assert.Equal(t, CircuitClosed, cb.State())
		_ = cb.Execute(context.Background(), failing(boom))
	}
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), failing(nil))
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})
	boom := eris.New("boom")

	_ = cb.Execute(context.Background(), failing(boom))
	_ = cb.Execute(context.Background(), failing(boom))
	require.NoError(t, cb.Execute(context.Background(), failing(nil)))
	assert.Equal(t, 0, cb.Failures())

	_ = cb.Execute(context.Background(), failing(boom))
	_ = cb.Execute(context.Background(), failing(boom))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeCloses(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
	})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(context.Background(), failing(eris.New("boom")))
	require.Equal(t, CircuitOpen, cb.State())

	now = now.Add(11 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), failing(nil)))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
	})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(context.Background(), failing(eris.New("first")))
	now = now.Add(11 * time.Second)

	_ = cb.Execute(context.Background(), failing(eris.New("probe fails")))
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), failing(nil))
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_ShouldTripFilter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ShouldTrip:       IsTransient,
	})

	// Permanent errors pass through without opening the circuit.
	_ = cb.Execute(context.Background(), failing(eris.New("bad request")))
	assert.Equal(t, CircuitClosed, cb.State())

	_ = cb.Execute(context.Background(), failing(NewTransientError(eris.New("overloaded"), 529)))
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), failing(eris.New("boom")))
	cb.Reset()
	assert.Equal(t, []string{"closed>open", "open>closed"}, transitions)
}

func TestExecuteVal_PreservesValue(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	got, err := ExecuteVal(context.Background(), cb, func(context.Context) (string, error) {
		return "classified", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "classified", got)
}

func TestExecuteVal_OpenCircuitSkipsCall(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Execute(context.Background(), failing(eris.New("boom")))

	called := false
	_, err := ExecuteVal(context.Background(), cb, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}
