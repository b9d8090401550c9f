package network

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mergeguard.dev/mergeguard/internal/config"
	mgerrors "mergeguard.dev/mergeguard/internal/errors"
)

// recordingSleeper records requested waits without sleeping
type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func gitFailure(stderr string) error {
	return mgerrors.NewGitCommandError("git", []string{"pull"}, "", stderr, errors.New("exit status 1"))
}

func newTestRetrier(attempts int) (*Retrier, *recordingSleeper) {
	s := &recordingSleeper{}
	return &Retrier{
		Policy: RetryPolicy{
			MaxAttempts: attempts,
			Schedule:    []time.Duration{2 * time.Second, 4 * time.Second},
		},
		Sleep: s.sleep,
	}, s
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{Schedule: []time.Duration{time.Second, 2 * time.Second, 2 * time.Second}}

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
	assert.Equal(t, 2*time.Second, p.Delay(10), "attempts past the schedule reuse its last entry")

	assert.Equal(t, time.Duration(0), RetryPolicy{}.Delay(1))
}

func TestRetryPolicy_DelaysNonDecreasing(t *testing.T) {
	p := PolicyFromConfig(config.DefaultConfig())
	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := p.Delay(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		prev = d
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	p := PolicyFromConfig(cfg)

	assert.Equal(t, config.DefaultRetryCount, p.MaxAttempts)
	assert.Equal(t, time.Duration(config.DefaultNetworkTimeout), p.Timeout)
	assert.Len(t, p.Schedule, len(cfg.RetryDelaySchedule))
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	r, s := newTestRetrier(3)
	calls := 0

	result := r.Do(context.Background(), "pull", func(context.Context) (string, error) {
		calls++
		return "Already up to date.", nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, s.waits)
	assert.Equal(t, "Already up to date.", result.Output)
}

func TestDo_TransientThenSuccess(t *testing.T) {
	r, s := newTestRetrier(3)
	calls := 0

	result := r.Do(context.Background(), "pull", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", gitFailure("fatal: unable to access 'https://example.com/': Connection timed out")
		}
		return "", nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, s.waits)
	assert.Equal(t, s.waits, result.Delays)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	r, s := newTestRetrier(3)
	calls := 0

	result := r.Do(context.Background(), "pull", func(context.Context) (string, error) {
		calls++
		return "", gitFailure("fatal: Could not resolve host: example.com")
	})

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, mgerrors.ErrNetwork)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, calls)
	assert.Len(t, s.waits, 2, "no wait after the final attempt")
}

func TestDo_AuthNotRetried(t *testing.T) {
	r, s := newTestRetrier(3)
	calls := 0

	result := r.Do(context.Background(), "push", func(context.Context) (string, error) {
		calls++
		return "", gitFailure("remote: Permission denied to user.\nfatal: unable to access: The requested URL returned error: 403")
	})

	assert.ErrorIs(t, result.Err, mgerrors.ErrAuth)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, s.waits)
}

func TestDo_OtherErrorNotRetried(t *testing.T) {
	r, _ := newTestRetrier(3)

	result := r.Do(context.Background(), "pull", func(context.Context) (string, error) {
		return "", gitFailure("fatal: Not possible to fast-forward, aborting.")
	})

	assert.ErrorIs(t, result.Err, mgerrors.ErrUnexpected)
	assert.Equal(t, 1, result.Attempts)
}

func TestDo_CancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Retrier{
		Policy: RetryPolicy{MaxAttempts: 5, Schedule: []time.Duration{time.Hour}},
		Sleep:  ContextSleeper,
	}
	calls := 0

	done := make(chan Result, 1)
	go func() {
		done <- r.Do(ctx, "pull", func(context.Context) (string, error) {
			calls++
			return "", gitFailure("connection reset by peer")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		assert.ErrorIs(t, result.Err, context.Canceled)
		assert.Equal(t, 1, result.Attempts)
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}

func TestDo_PerAttemptTimeoutIsTransient(t *testing.T) {
	s := &recordingSleeper{}
	r := &Retrier{
		Policy: RetryPolicy{MaxAttempts: 2, Schedule: []time.Duration{time.Millisecond}, Timeout: 10 * time.Millisecond},
		Sleep:  s.sleep,
	}
	calls := 0

	result := r.Do(context.Background(), "pull", func(ctx context.Context) (string, error) {
		calls++
		<-ctx.Done()
		return "", fmt.Errorf("signal: killed")
	})

	assert.ErrorIs(t, result.Err, mgerrors.ErrNetwork)
	var netErr *mgerrors.NetworkError
	require.ErrorAs(t, result.Err, &netErr)
	assert.Equal(t, string(KindTimeout), netErr.Kind)
	assert.Equal(t, 2, calls)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   Kind
	}{
		{"timeout", "fatal: unable to access: Operation timed out", KindTransient},
		{"refused", "ssh: connect to host example.com port 22: Connection refused", KindTransient},
		{"dns", "fatal: Could not resolve host: github.com", KindTransient},
		{"reset", "error: RPC failed; curl 56 Connection reset by peer", KindTransient},
		{"tls", "gnutls_handshake() failed", KindTransient},
		{"read from remote", "fatal: Could not read from remote repository.", KindTransient},
		{"permission", "git@github.com: Permission denied (publickey).\nfatal: Could not read from remote repository.", KindAuth},
		{"403", "The requested URL returned error: 403", KindAuth},
		{"auth failed", "fatal: Authentication failed for 'https://example.com/'", KindAuth},
		{"rejected push", "! [rejected] main -> main (non-fast-forward)", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(gitFailure(tt.stderr)))
		})
	}

	assert.Equal(t, KindTimeout, Classify(context.DeadlineExceeded))
	assert.Equal(t, KindOther, Classify(nil))
}
