// Package executor runs the merge of one source into one target.
//
// The flow is a fixed sequence of states:
//
//	Init -> Precheck -> {Skipped | Rejected | Ready}
//	     -> ScratchCreated -> Fetched -> Attempted -> {Merged | Conflicted}
//	     -> {Pushed | RolledBack} -> Cleaned -> Terminal
//
// Nothing is created before Precheck passes. Once a scratch branch exists its
// release is deferred, so every exit path (success, conflict, failure,
// cancellation) ends on the original branch with no scratch branch left.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mergeguard.dev/mergeguard/internal/config"
	"mergeguard.dev/mergeguard/internal/conflict"
	mgerrors "mergeguard.dev/mergeguard/internal/errors"
	"mergeguard.dev/mergeguard/internal/git"
	"mergeguard.dev/mergeguard/internal/guard"
	"mergeguard.dev/mergeguard/internal/network"
	"mergeguard.dev/mergeguard/internal/precheck"
	"mergeguard.dev/mergeguard/internal/rollback"
	"mergeguard.dev/mergeguard/internal/scratch"
	"mergeguard.dev/mergeguard/internal/status"
)

var errSameBranch = errors.New("source and target are the same branch")

// Logger is the subset of the console logger the executor writes to
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

// Options configures an Executor
type Options struct {
	Runner git.Runner
	Config config.Config

	// Remote is the remote to pull from and push to; empty runs local-only
	Remote string

	Log Logger

	// Sleep overrides the wait between retries
	Sleep network.Sleeper
	// Now overrides the clock
	Now func() time.Time
}

// Executor coordinates the per-target components
type Executor struct {
	runner git.Runner
	remote string
	log    Logger
	now    func() time.Time

	status    *status.Checker
	guard     *guard.Guard
	precheck  *precheck.Prechecker
	scratch   *scratch.Manager
	rollback  *rollback.Manager
	conflicts *conflict.Checker
	retrier   *network.Retrier
}

// New creates an Executor from opts
func New(opts Options) *Executor {
	log := opts.Log
	if log == nil {
		log = nopLogger{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Config

	retrier := network.NewRetrier(network.PolicyFromConfig(cfg), log)
	if opts.Sleep != nil {
		retrier.Sleep = opts.Sleep
	}

	return &Executor{
		runner:    opts.Runner,
		remote:    opts.Remote,
		log:       log,
		now:       now,
		status:    status.NewChecker(opts.Runner, cfg.IgnorePaths),
		guard:     guard.New(cfg.ProtectedBranches),
		precheck:  precheck.New(opts.Runner.Dir(), opts.Remote, cfg.MaxFileSize),
		scratch:   scratch.NewManager(opts.Runner, log).WithClock(now),
		rollback:  rollback.New(opts.Runner, log),
		conflicts: conflict.NewChecker(opts.Runner, cfg.MaxFileSize),
		retrier:   retrier,
	}
}

// Scratch returns the scratch branch manager, used for the startup sweep
func (e *Executor) Scratch() *scratch.Manager {
	return e.scratch
}

// run holds the mutable state of one Run call
type run struct {
	e   *Executor
	out Outcome
}

func (r *run) step(state State, format string, args ...interface{}) {
	detail := ""
	if format != "" {
		detail = fmt.Sprintf(format, args...)
	}
	r.out.Steps = append(r.out.Steps, Step{State: state, At: r.e.now(), Detail: detail})
	if detail != "" {
		r.e.log.Debug("[%s] %s: %s", r.out.Target, state, detail)
	} else {
		r.e.log.Debug("[%s] %s", r.out.Target, state)
	}
}

func (r *run) finish(kind Kind, reason string, err error) {
	r.out.Kind = kind
	r.out.Reason = reason
	r.out.Err = err
}

func (r *run) recordRetry(res network.Result, push bool) {
	if push {
		r.out.PushAttempts += res.Attempts
	} else {
		r.out.FetchAttempts += res.Attempts
	}
	r.out.RetryDelays = append(r.out.RetryDelays, res.Delays...)
}

// Run merges source into target and returns the outcome. It never panics on
// git failures and always returns exactly one outcome.
func (e *Executor) Run(ctx context.Context, source, target string) (out Outcome) {
	r := &run{e: e, out: Outcome{Source: source, Target: target}}
	start := e.now()
	r.step(StateInit, "")

	// Cleanup defers below still append to r.out after a return statement
	defer func() {
		r.step(StateTerminal, "%s", r.out.Kind)
		r.out.Duration = e.now().Sub(start)
		out = r.out
	}()

	pre, ok := e.precheckTarget(ctx, r, source, target)
	if !ok {
		return r.out
	}

	originalBranch, err := git.CurrentBranch(ctx, e.runner)
	if err != nil {
		envErr := mgerrors.NewEnvironmentError("HEAD is detached", []string{"check out a branch: git checkout <branch>"})
		r.finish(KindRejected, envErr.Reason, envErr)
		return r.out
	}
	originalHead, err := git.HeadSHA(ctx, e.runner)
	if err != nil {
		r.finish(KindFailed, "unable to read HEAD", mgerrors.NewUnexpectedError("read HEAD", err))
		return r.out
	}

	handle, err := e.scratch.Acquire(ctx, source, target, pre.TargetRef, originalBranch)
	if err != nil {
		r.finish(KindFailed, "unable to create scratch branch", err)
		return r.out
	}
	r.out.Scratch = handle.Name
	r.step(StateScratchCreated, "%s from %s", handle.Name, pre.TargetRef)

	defer func() {
		if err := handle.Release(ctx); err != nil {
			e.log.Warn("failed to clean up scratch branch %s: %v", handle.Name, err)
			r.out.Warnings = append(r.out.Warnings, fmt.Sprintf("scratch branch %s could not be removed: %v", handle.Name, err))
		}
		r.step(StateCleaned, "")
	}()

	abort := func(kind Kind, reason string, cause error) Outcome {
		if err := e.rollback.Rollback(ctx, handle, originalBranch, originalHead); err != nil {
			cause = errors.Join(cause, err)
		}
		r.step(StateRolledBack, "")
		r.finish(kind, reason, cause)
		return r.out
	}

	// Fetched
	if e.remote != "" && pre.TargetOnRemote {
		res := e.retrier.Do(ctx, "pull "+e.remote+"/"+target, func(ctx context.Context) (string, error) {
			return git.Pull(ctx, e.runner, e.remote, target)
		})
		r.recordRetry(res, false)
		if res.Err != nil {
			return abort(KindFailed, fmt.Sprintf("pull of %s failed after %d attempt(s)", target, res.Attempts), res.Err)
		}
		r.step(StateFetched, "%d attempt(s)", res.Attempts)

		// The remote target may already hold the source even when the local ref did not
		ahead, err := e.precheck.Ahead(pre.SourceRef, "HEAD")
		if err != nil {
			return abort(KindFailed, "unable to compare branches", mgerrors.NewUnexpectedError("precheck", err))
		}
		r.out.Ahead = ahead
		if ahead == 0 {
			r.finish(KindSkipped, upToDate(target, source), nil)
			return r.out
		}
	} else {
		r.step(StateFetched, "skipped: no remote copy of %s", target)
	}

	// Attempted
	mergeRev := pre.SourceRev(e.remote)
	_, mergeErr := git.Merge(ctx, e.runner, mergeRev, fmt.Sprintf("Merge branch '%s' into %s", source, target))
	r.step(StateAttempted, "merge --no-ff %s", mergeRev)
	if mergeErr != nil {
		files, err := e.conflicts.Files(ctx)
		if err != nil || len(files) == 0 {
			return abort(KindFailed, "merge failed", mgerrors.NewUnexpectedError("merge", mergeErr))
		}
		return e.handleConflict(ctx, r, handle, originalBranch, originalHead, files)
	}

	mergeCommit, err := git.HeadSHA(ctx, e.runner)
	if err != nil {
		return abort(KindFailed, "unable to read merge commit", mgerrors.NewUnexpectedError("read merge commit", err))
	}
	r.step(StateMerged, "%s", mergeCommit)

	// Move the local target to the merge commit
	targetBefore := ""
	if git.BranchExists(ctx, e.runner, target) {
		if targetBefore, err = git.RevParse(ctx, e.runner, target); err != nil {
			return abort(KindFailed, "unable to read target", mgerrors.NewUnexpectedError("read target", err))
		}
	} else if err := git.CreateBranch(ctx, e.runner, target, pre.TargetRef); err != nil {
		return abort(KindFailed, "unable to create local target", mgerrors.NewUnexpectedError("create local target", err))
	}
	if err := git.CheckoutBranch(ctx, e.runner, target); err != nil {
		e.restoreTarget(ctx, target, targetBefore)
		return abort(KindFailed, "unable to check out target", mgerrors.NewUnexpectedError("checkout target", err))
	}
	if err := git.MergeFastForward(ctx, e.runner, handle.Name); err != nil {
		return e.failAfterUpdate(ctx, r, handle, target, targetBefore, "fast-forward of target failed",
			mgerrors.NewUnexpectedError("fast-forward target", err))
	}

	// Pushed
	if e.remote != "" && pre.TargetOnRemote {
		res := e.retrier.Do(ctx, "push "+e.remote+"/"+target, func(ctx context.Context) (string, error) {
			return git.Push(ctx, e.runner, e.remote, target)
		})
		r.recordRetry(res, true)
		if res.Err != nil {
			return e.failAfterUpdate(ctx, r, handle, target, targetBefore,
				fmt.Sprintf("push of %s failed after %d attempt(s)", target, res.Attempts), res.Err)
		}
		r.step(StatePushed, "%d attempt(s)", res.Attempts)
	} else {
		r.step(StatePushed, "skipped: no remote copy of %s", target)
		r.out.Warnings = append(r.out.Warnings, fmt.Sprintf("%s has no remote counterpart; merged locally only", target))
	}

	r.out.MergeCommit = mergeCommit
	r.finish(KindSuccess, "", nil)
	e.log.Info("merged %s into %s", source, target)
	return r.out
}

// precheckTarget runs the status check, the guard and the diff precheck in
// that order. It returns false once the outcome is final.
func (e *Executor) precheckTarget(ctx context.Context, r *run, source, target string) (precheck.Result, bool) {
	r.step(StatePrecheck, "")

	if err := e.status.Check(ctx); err != nil {
		var envErr *mgerrors.EnvironmentError
		reason := err.Error()
		if errors.As(err, &envErr) {
			reason = envErr.Reason
		}
		r.finish(KindRejected, reason, err)
		return precheck.Result{}, false
	}

	if err := e.guard.Authorize(target); err != nil {
		r.finish(KindRejected, err.Error(), err)
		return precheck.Result{}, false
	}

	if source == target {
		r.finish(KindRejected, "source and target are the same branch", errSameBranch)
		return precheck.Result{}, false
	}

	pre, err := e.precheck.Check(source, target)
	if err != nil {
		if errors.Is(err, mgerrors.ErrUnknownBranch) {
			r.finish(KindRejected, err.Error(), err)
		} else {
			r.finish(KindFailed, "unable to compare branches", mgerrors.NewUnexpectedError("precheck", err))
		}
		return pre, false
	}
	r.out.Ahead = pre.Ahead

	for _, f := range pre.LargeFiles {
		warning := fmt.Sprintf("%s is %.1f MB, review it manually", f.Path, float64(f.Size)/(1024*1024))
		r.out.Warnings = append(r.out.Warnings, warning)
		e.log.Warn("%s", warning)
	}

	if !pre.NeedsMerge() {
		r.finish(KindSkipped, upToDate(target, source), nil)
		return pre, false
	}
	return pre, true
}

func upToDate(target, source string) string {
	return fmt.Sprintf("%s already contains every commit of %s", target, source)
}

// handleConflict captures the conflicted files, restores the repository
// and attaches advice built from the capture
func (e *Executor) handleConflict(ctx context.Context, r *run, handle *scratch.Handle, originalBranch, originalHead string, files []string) Outcome {
	r.step(StateConflicted, "%d file(s)", len(files))

	snap, captureErr := e.conflicts.Capture(ctx, r.out.Source, r.out.Target, files)

	if err := e.rollback.Rollback(ctx, handle, originalBranch, originalHead); err != nil {
		r.step(StateRolledBack, "incomplete")
		r.finish(KindFailed, "rollback after conflict failed", mgerrors.NewUnexpectedError("rollback", err))
		r.out.Files = files
		return r.out
	}
	r.step(StateRolledBack, "")

	if captureErr != nil {
		e.log.Warn("unable to capture conflicted files: %v", captureErr)
		snap = conflict.Snapshot{Source: r.out.Source, Target: r.out.Target}
		for _, f := range files {
			snap.Files = append(snap.Files, conflict.FileSnapshot{Path: f, Missing: true})
		}
	}

	advice := conflict.Advise(snap)
	r.out.Files = files
	r.out.Advice = &advice
	err := mgerrors.NewConflictError(r.out.Source, r.out.Target, files)
	r.finish(KindConflict, err.Error(), err)
	return r.out
}

// failAfterUpdate returns to the original branch, puts the local target back
// where it was and records a failure
func (e *Executor) failAfterUpdate(ctx context.Context, r *run, handle *scratch.Handle, target, targetBefore, reason string, cause error) Outcome {
	if err := handle.Release(ctx); err != nil {
		cause = errors.Join(cause, err)
	}
	if err := e.restoreTarget(ctx, target, targetBefore); err != nil {
		cause = errors.Join(cause, err)
	}
	r.step(StateRolledBack, "target %s restored", target)
	r.finish(KindFailed, reason, cause)
	return r.out
}

func (e *Executor) restoreTarget(ctx context.Context, target, sha string) error {
	if err := e.rollback.RestoreBranch(ctx, target, sha); err != nil {
		e.log.Warn("failed to restore %s: %v", target, err)
		return err
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
