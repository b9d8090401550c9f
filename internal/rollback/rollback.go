// Package rollback returns the repository to its state before a merge attempt.
package rollback

import (
	"context"
	"errors"
	"fmt"

	"mergeguard.dev/mergeguard/internal/git"
	"mergeguard.dev/mergeguard/internal/scratch"
)

// Logger is the subset of the console logger used during rollback
type Logger interface {
	Debug(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

// Manager undoes merge attempts
type Manager struct {
	runner git.Runner
	log    Logger
}

// New creates a rollback Manager
func New(runner git.Runner, log Logger) *Manager {
	return &Manager{runner: runner, log: log}
}

// Rollback aborts any in-progress merge, checks out originalBranch at
// originalHead with a clean index and working tree, and releases the
// scratch branch. Every step runs even if an earlier one failed, and the
// steps run even when ctx is already cancelled.
func (m *Manager) Rollback(ctx context.Context, handle *scratch.Handle, originalBranch, originalHead string) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error

	if git.MergeInProgress(ctx, m.runner) {
		if err := git.MergeAbort(ctx, m.runner); err != nil {
			m.warn("merge --abort failed, resetting instead: %v", err)
			if _, err := m.runner.Run(ctx, "reset", "--merge"); err != nil {
				errs = append(errs, err)
			}
		}
	}

	current, err := git.CurrentBranch(ctx, m.runner)
	if err != nil || current != originalBranch {
		if err := git.ForceCheckoutBranch(ctx, m.runner, originalBranch); err != nil {
			errs = append(errs, err)
		}
	}

	if err := git.HardReset(ctx, m.runner, originalHead); err != nil {
		errs = append(errs, err)
	}

	if err := handle.Release(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("rollback incomplete: %w", errors.Join(errs...))
	}
	m.debug("rolled back to %s at %s", originalBranch, short(originalHead))
	return nil
}

// RestoreBranch moves branch back to sha. An empty sha means the branch did
// not exist before and is deleted instead.
func (m *Manager) RestoreBranch(ctx context.Context, branch, sha string) error {
	ctx = context.WithoutCancel(ctx)
	current, _ := git.CurrentBranch(ctx, m.runner)

	if sha == "" {
		if current == branch {
			return fmt.Errorf("cannot delete checked out branch %s", branch)
		}
		if !git.BranchExists(ctx, m.runner, branch) {
			return nil
		}
		return git.DeleteBranch(ctx, m.runner, branch)
	}

	if current == branch {
		return git.HardReset(ctx, m.runner, sha)
	}
	return git.SetBranchRef(ctx, m.runner, branch, sha)
}

func (m *Manager) debug(format string, args ...interface{}) {
	if m.log != nil {
		m.log.Debug(format, args...)
	}
}

func (m *Manager) warn(format string, args ...interface{}) {
	if m.log != nil {
		m.log.Warn(format, args...)
	}
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
