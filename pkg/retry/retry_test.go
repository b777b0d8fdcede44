package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection reset")

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDoSingleAttemptByDefault(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{}, func(context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	bad := errors.New("403 forbidden")
	err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		calls++
		return Permanent(bad)
	})

	assert.Equal(t, bad, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursRetryableErrors(t *testing.T) {
	calls := 0
	other := errors.New("other")
	err := Do(context.Background(), Config{MaxAttempts: 4, InitialDelay: time.Millisecond, RetryableErrors: []error{errTransient}},
		func(context.Context) error {
			calls++
			return other
		})

	assert.ErrorIs(t, err, other)
	assert.Equal(t, 1, calls)
}

func TestDoReturnsLastErrorWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Config{MaxAttempts: 10, InitialDelay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	out, err := DoWithResult(context.Background(), fastConfig(2), func(context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errTransient
		}
		return []byte("ok"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
}
