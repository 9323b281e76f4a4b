package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/service"
)

var fastRetry = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
}

func TestWithRetryRecovers(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastRetry)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return &RetryableError{Err: ErrRateLimit, Retryable: false}
	}, fastRetry)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, errors.Is(err, ErrRateLimit))
}

func TestWithRetryExhaustionKeepsCause(t *testing.T) {
	sentinel := errors.New("still down")
	err := WithRetry(context.Background(), func() error {
		return sentinel
	}, fastRetry)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxRetries))
	assert.True(t, errors.Is(err, sentinel))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("boom"), true},
		{"marked retryable", &RetryableError{Err: errors.New("boom"), Retryable: true}, true},
		{"marked final", &RetryableError{Err: errors.New("boom"), Retryable: false}, false},
		{"wrapped final", NewUserError("nope", &RetryableError{Err: ErrRateLimit, Retryable: false}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
