// Package scratch manages the disposable branches merges are attempted on.
//
// A scratch branch is named merge-{source}-to-{target}-{YYYYMMDD-HHMMSS}.
// Acquire hands out a Handle whose Release must run on every exit path;
// callers defer it right after a successful Acquire. Sweep removes branches
// left behind by a process that died before it could release.
package scratch

import (
	"context"
	"fmt"
	"regexp"
	"time"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
	"mergeguard.dev/mergeguard/internal/git"
)

// TimestampFormat is the timestamp layout used in scratch branch names
const TimestampFormat = "20060102-150405"

var namePattern = regexp.MustCompile(`^merge-.+-to-.+-\d{8}-\d{6}(-\d+)?$`)

// maxNameAttempts bounds the suffixes tried when a name is already taken
const maxNameAttempts = 100

// Logger is the subset of the console logger the manager writes to
type Logger interface {
	Debug(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

// Name returns the scratch branch name for a merge of source into target
func Name(source, target string, at time.Time) string {
	return fmt.Sprintf("merge-%s-to-%s-%s", source, target, at.Format(TimestampFormat))
}

// IsScratch reports whether name follows the scratch branch naming contract
func IsScratch(name string) bool {
	return namePattern.MatchString(name)
}

// Manager creates and removes scratch branches
type Manager struct {
	runner git.Runner
	log    Logger
	now    func() time.Time
}

// NewManager creates a Manager operating through runner
func NewManager(runner git.Runner, log Logger) *Manager {
	return &Manager{runner: runner, log: log, now: time.Now}
}

// WithClock returns a copy of the manager that reads time from now
func (m *Manager) WithClock(now func() time.Time) *Manager {
	return &Manager{runner: m.runner, log: m.log, now: now}
}

// Handle is an acquired scratch branch
type Handle struct {
	// Name is the scratch branch name
	Name string
	// Base is the ref the branch was created from
	Base string
	// ReturnTo is the branch checked out again on release
	ReturnTo string

	manager  *Manager
	released bool
}

// Acquire creates a scratch branch at baseRef and checks it out. returnTo is
// the branch Release leaves checked out.
func (m *Manager) Acquire(ctx context.Context, source, target, baseRef, returnTo string) (*Handle, error) {
	base := Name(source, target, m.now())
	name := base
	for i := 2; git.BranchExists(ctx, m.runner, name); i++ {
		if i > maxNameAttempts {
			return nil, mgerrors.NewUnexpectedError("create scratch branch", fmt.Errorf("no free name for %s", base))
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}

	if err := git.CreateAndCheckoutBranch(ctx, m.runner, name, baseRef); err != nil {
		return nil, mgerrors.NewUnexpectedError("create scratch branch", err)
	}
	m.debug("created scratch branch %s from %s", name, baseRef)

	return &Handle{Name: name, Base: baseRef, ReturnTo: returnTo, manager: m}, nil
}

// Released reports whether Release already ran
func (h *Handle) Released() bool {
	return h.released
}

// Release checks out ReturnTo and deletes the scratch branch. It is safe to
// call more than once; only the first call does anything. Cleanup continues
// when ctx is already cancelled.
func (h *Handle) Release(ctx context.Context) error {
	if h == nil || h.released {
		return nil
	}
	h.released = true

	ctx = context.WithoutCancel(ctx)
	m := h.manager

	current, err := git.CurrentBranch(ctx, m.runner)
	if err != nil || current != h.ReturnTo {
		checkout := git.CheckoutBranch
		// Whatever is on the scratch branch is disposable
		if err != nil || current == h.Name {
			checkout = git.ForceCheckoutBranch
		}
		if err := checkout(ctx, m.runner, h.ReturnTo); err != nil {
			return fmt.Errorf("failed to return to %s: %w", h.ReturnTo, err)
		}
	}

	if !git.BranchExists(ctx, m.runner, h.Name) {
		return nil
	}
	if err := git.DeleteBranch(ctx, m.runner, h.Name); err != nil {
		return err
	}
	m.debug("deleted scratch branch %s", h.Name)
	return nil
}

// Sweep deletes every scratch branch in the repository except the checked
// out one, which is reported and left alone. It returns the deleted names.
func (m *Manager) Sweep(ctx context.Context) ([]string, error) {
	branches, err := git.ListLocalBranches(ctx, m.runner)
	if err != nil {
		return nil, err
	}
	current, _ := git.CurrentBranch(ctx, m.runner)

	var removed []string
	for _, name := range branches {
		if !IsScratch(name) {
			continue
		}
		if name == current {
			m.warn("scratch branch %s is checked out; switch away and run `mergeguard sweep` to remove it", name)
			continue
		}
		if err := git.DeleteBranch(ctx, m.runner, name); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	if len(removed) > 0 {
		m.debug("swept %d orphaned scratch branch(es)", len(removed))
	}
	return removed, nil
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
