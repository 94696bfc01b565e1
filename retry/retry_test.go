package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpstream "github.com/manax-dev/httpstream"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_RetriesRetryableErrorThenSucceeds(t *testing.T) {
	calls := 0
	cfg := Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2, Jitter: 0}
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return &httpstream.NetworkError{Op: "dial", Wrapped: context.DeadlineExceeded}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDo_NonRetryableErrorStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func(ctx context.Context) error {
		calls++
		return &httpstream.ProtocolError{HTTPVersion: "HTTP/2.0", Message: "bad frame"}
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
	require.IsType(t, &httpstream.ProtocolError{}, err)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	cfg := Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffMultiplier: 2, Jitter: 0}
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return &httpstream.NetworkError{Op: "dial", Wrapped: context.DeadlineExceeded}
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Attempts)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialBackoff: 50 * time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2, Jitter: 0}
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, cfg, func(ctx context.Context) error {
		calls++
		return &httpstream.NetworkError{Op: "dial", Wrapped: context.DeadlineExceeded}
	})
	require.ErrorIs(t, err, context.Canceled)
}
