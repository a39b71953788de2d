package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/onnwee/clipqueue/twitchapi"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassFatal},
		{"not found", fmt.Errorf("wrap: %w", ErrNotFound), ErrorClassFatal},
		{"autoplay unsupported", ErrAutoplayUnsupported, ErrorClassFatal},
		{"unknown provider", ErrUnknownProvider, ErrorClassFatal},
		{"canceled", context.Canceled, ErrorClassFatal},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), ErrorClassFatal},
		{"503", &StatusError{Status: 503}, ErrorClassRetryable},
		{"429", &StatusError{Status: 429}, ErrorClassRetryable},
		{"408", &StatusError{Status: 408}, ErrorClassRetryable},
		{"403", &StatusError{Status: 403}, ErrorClassFatal},
		{"helix 500", &twitchapi.APIError{Status: 500}, ErrorClassRetryable},
		{"helix 401", &twitchapi.APIError{Status: 401}, ErrorClassFatal},
		{"google 500", &googleapi.Error{Code: 500}, ErrorClassRetryable},
		{"google 400", &googleapi.Error{Code: 400}, ErrorClassFatal},
		{"net", &net.OpError{Op: "dial", Err: errors.New("refused")}, ErrorClassRetryable},
		{"other", errors.New("bad json"), ErrorClassFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		v, err := retry(ctx, 3, time.Millisecond, "test", func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &StatusError{Status: 502}
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on fatal errors", func(t *testing.T) {
		calls := 0
		_, err := retry(ctx, 3, time.Millisecond, "test", func(context.Context) (int, error) {
			calls++
			return 0, ErrNotFound
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		_, err := retry(ctx, 2, time.Millisecond, "test", func(context.Context) (int, error) {
			calls++
			return 0, &StatusError{Status: 500}
		})
		var se *StatusError
		assert.ErrorAs(t, err, &se)
		assert.Equal(t, 2, calls)
	})

	t.Run("honours cancellation between attempts", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		_, err := retry(cctx, 3, time.Hour, "test", func(context.Context) (int, error) {
			cancel()
			return 0, &StatusError{Status: 500}
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
