// Package network runs remote git operations under a bounded retry policy.
package network

import (
	"context"
	"errors"
	"time"

	"mergeguard.dev/mergeguard/internal/config"
	mgerrors "mergeguard.dev/mergeguard/internal/errors"
)

// Sleeper waits for d or until ctx is done, whichever comes first
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleeper is the default Sleeper backed by a timer
func ContextSleeper(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy controls how remote operations are retried
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts, including the first one
	MaxAttempts int

	// Schedule holds the wait before retry n at index n-1. Attempts beyond
	// its length reuse the last entry.
	Schedule []time.Duration

	// Timeout bounds each single attempt. Zero means no per-attempt limit.
	Timeout time.Duration
}

// PolicyFromConfig builds the retry policy from the effective configuration
func PolicyFromConfig(cfg config.Config) RetryPolicy {
	schedule := make([]time.Duration, len(cfg.RetryDelaySchedule))
	for i, d := range cfg.RetryDelaySchedule {
		schedule[i] = d.Std()
	}
	return RetryPolicy{
		MaxAttempts: cfg.RetryCount,
		Schedule:    schedule,
		Timeout:     cfg.NetworkTimeout.Std(),
	}
}

// Delay returns the wait after failed attempt number attempt (1-based).
// It is pure and non-decreasing as long as Schedule is.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Schedule) == 0 || attempt < 1 {
		return 0
	}
	if attempt > len(p.Schedule) {
		return p.Schedule[len(p.Schedule)-1]
	}
	return p.Schedule[attempt-1]
}

// Result describes one retried operation
type Result struct {
	// Attempts is how many times the operation ran
	Attempts int

	// Delays are the waits performed between attempts
	Delays []time.Duration

	// Output is the output of the successful attempt
	Output string

	// Err is nil on success, otherwise a *NetworkError, *AuthError,
	// *UnexpectedError or the context error
	Err error
}

// Logger is the subset of the console logger used while retrying
type Logger interface {
	Debug(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

// Operation is a single remote attempt
type Operation func(ctx context.Context) (string, error)

// Retrier executes operations under a RetryPolicy
type Retrier struct {
	Policy RetryPolicy
	Sleep  Sleeper
	Log    Logger
}

// NewRetrier creates a Retrier that waits on real timers
func NewRetrier(policy RetryPolicy, log Logger) *Retrier {
	return &Retrier{Policy: policy, Sleep: ContextSleeper, Log: log}
}

// Do runs op until it succeeds, fails with a non-transient error or the
// policy runs out of attempts. Auth failures are never retried. A cancelled
// ctx stops the loop, including during a wait.
func (r *Retrier) Do(ctx context.Context, name string, op Operation) Result {
	maxAttempts := r.Policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = ContextSleeper
	}

	var result Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			result.Err = err
			return result
		}

		result.Attempts = attempt
		out, err := r.attempt(ctx, op)
		if err == nil {
			result.Output = out
			result.Err = nil
			return result
		}

		// Cancellation of the parent is not a network failure
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			return result
		}

		kind := Classify(err)
		switch kind {
		case KindAuth:
			result.Err = mgerrors.NewAuthError(name, err)
			return result
		case KindOther:
			result.Err = mgerrors.NewUnexpectedError(name, err)
			return result
		}

		result.Err = mgerrors.NewNetworkError(name, string(kind), err)
		if attempt == maxAttempts {
			break
		}

		delay := r.Policy.Delay(attempt)
		r.warn("%s failed (%s), retrying in %s (attempt %d/%d)", name, kind, delay, attempt+1, maxAttempts)
		result.Delays = append(result.Delays, delay)
		if err := sleep(ctx, delay); err != nil {
			result.Err = err
			return result
		}
	}
	return result
}

// attempt runs op under the per-attempt timeout
func (r *Retrier) attempt(ctx context.Context, op Operation) (string, error) {
	if r.Policy.Timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.Policy.Timeout)
	defer cancel()
	out, err := op(attemptCtx)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return out, &timeoutError{after: r.Policy.Timeout, err: err}
	}
	return out, err
}

func (r *Retrier) warn(format string, args ...interface{}) {
	if r.Log != nil {
		r.Log.Warn(format, args...)
	}
}

// timeoutError marks an attempt that ran past its deadline
type timeoutError struct {
	after time.Duration
	err   error
}

func (e *timeoutError) Error() string {
	return "timed out after " + e.after.String() + ": " + e.err.Error()
}

func (e *timeoutError) Unwrap() error {
	return e.err
}
