// Package batch runs one source branch into several targets under the
// repository lock and collects one outcome per target.
package batch

import (
	"context"
	"errors"
	"time"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
	"mergeguard.dev/mergeguard/internal/executor"
)

// Exit codes of a merge invocation
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Locker guards the working directory for the whole batch
type Locker interface {
	Acquire() error
	Release() error
}

// Sweeper removes scratch branches orphaned by an earlier run
type Sweeper interface {
	Sweep(ctx context.Context) ([]string, error)
}

// TargetRunner merges a source into a single target
type TargetRunner interface {
	Run(ctx context.Context, source, target string) executor.Outcome
}

// Logger is the subset of the console logger the coordinator writes to
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

// Result is the ordered outcome of every requested target
type Result struct {
	Request  executor.Request
	Outcomes []executor.Outcome
	Swept    []string
	Started  time.Time
	Finished time.Time
}

// Success reports whether every target ended Success or Skipped
func (r Result) Success() bool {
	for _, o := range r.Outcomes {
		if !o.Kind.OK() {
			return false
		}
	}
	return true
}

// ExitCode maps the result to the process exit code
func (r Result) ExitCode() int {
	if r.Success() {
		return ExitOK
	}
	return ExitFailure
}

// Counts returns the number of outcomes per kind
func (r Result) Counts() map[executor.Kind]int {
	counts := map[executor.Kind]int{}
	for _, o := range r.Outcomes {
		counts[o.Kind]++
	}
	return counts
}

// Coordinator processes targets sequentially. A failure on one target does
// not stop the others, except that a broken environment rejects every
// remaining target with the same reason.
type Coordinator struct {
	lock    Locker
	sweeper Sweeper
	runner  TargetRunner
	log     Logger
	now     func() time.Time
}

// New creates a Coordinator. sweeper may be nil.
func New(lock Locker, sweeper Sweeper, runner TargetRunner, log Logger) *Coordinator {
	if log == nil {
		log = nopLogger{}
	}
	return &Coordinator{lock: lock, sweeper: sweeper, runner: runner, log: log, now: time.Now}
}

// Run processes req. The only error it returns is a lock failure, in which
// case no target was touched.
func (c *Coordinator) Run(ctx context.Context, req executor.Request) (Result, error) {
	result := Result{Request: req, Started: c.now()}

	if err := c.lock.Acquire(); err != nil {
		return result, err
	}
	defer func() {
		if err := c.lock.Release(); err != nil {
			c.log.Warn("failed to release repository lock: %v", err)
		}
	}()

	if c.sweeper != nil {
		swept, err := c.sweeper.Sweep(ctx)
		if err != nil {
			c.log.Warn("failed to remove orphaned scratch branches: %v", err)
		}
		if len(swept) > 0 {
			c.log.Info("removed %d orphaned scratch branch(es) from an earlier run", len(swept))
		}
		result.Swept = swept
	}

	var blocked *executor.Outcome
	for i, target := range req.Targets {
		switch {
		case blocked != nil:
			result.Outcomes = append(result.Outcomes, executor.Outcome{
				Source: req.Source,
				Target: target,
				Kind:   executor.KindRejected,
				Reason: blocked.Reason,
				Err:    blocked.Err,
			})
			continue
		case ctx.Err() != nil:
			result.Outcomes = append(result.Outcomes, executor.Outcome{
				Source: req.Source,
				Target: target,
				Kind:   executor.KindFailed,
				Reason: "cancelled before start",
				Err:    ctx.Err(),
			})
			continue
		}

		c.log.Debug("merging %s into %s (%d/%d)", req.Source, target, i+1, len(req.Targets))
		out := c.runner.Run(ctx, req.Source, target)
		result.Outcomes = append(result.Outcomes, out)

		if out.Kind == executor.KindRejected && errors.Is(out.Err, mgerrors.ErrEnvironment) {
			blocked = &out
		}
	}

	result.Finished = c.now()
	return result, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
