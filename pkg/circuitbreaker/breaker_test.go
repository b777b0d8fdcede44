package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errProvider = errors.New("provider returned 503")

func failing(context.Context) error { return errProvider }
func passing(context.Context) error { return nil }

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 3, Timeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, failing), errProvider)
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, passing), ErrCircuitOpen)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 2, Timeout: time.Hour})
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	require.NoError(t, cb.Execute(ctx, passing))
	_ = cb.Execute(ctx, failing)

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Counts().ConsecutiveFailures)
}

func TestHalfOpenRecovers(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 1, Timeout: 10 * time.Millisecond})
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, passing))
	assert.Equal(t, StateClosed, cb.State())
}

func TestIsSuccessfulExcludesExpectedErrors(t *testing.T) {
	errEmpty := errors.New("no result")
	cb := New("test", Config{
		FailureThreshold: 1,
		Timeout:          time.Hour,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errEmpty)
		},
	})

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), func(context.Context) error { return errEmpty }), errEmpty)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCancelledContextDoesNotTrip(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 1, Timeout: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	err := cb.Execute(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, passing), context.Canceled)
}

func TestStateChangeCallback(t *testing.T) {
	var transitions []string
	cb := New("nominatim", Config{
		FailureThreshold: 1,
		Timeout:          time.Hour,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), failing)

	assert.Equal(t, []string{"nominatim:closed->open"}, transitions)
}
