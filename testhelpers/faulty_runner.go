package testhelpers

import (
	"context"
	"errors"
	"sync"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
	"mergeguard.dev/mergeguard/internal/git"
)

// FaultyRunner wraps a git.Runner, records the git subcommands it sees and
// fails selected subcommands with a scripted stderr.
type FaultyRunner struct {
	git.Runner

	mu     sync.Mutex
	faults map[string][]string
	calls  []string
}

// NewFaultyRunner wraps inner
func NewFaultyRunner(inner git.Runner) *FaultyRunner {
	return &FaultyRunner{Runner: inner, faults: map[string][]string{}}
}

// FailNext makes the next times calls of subcommand fail with stderr
func (f *FaultyRunner) FailNext(subcommand string, times int, stderr string) *FaultyRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < times; i++ {
		f.faults[subcommand] = append(f.faults[subcommand], stderr)
	}
	return f
}

// Count returns how often subcommand ran, failed attempts included
func (f *FaultyRunner) Count(subcommand string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == subcommand {
			n++
		}
	}
	return n
}

// Run implements git.Runner
func (f *FaultyRunner) Run(ctx context.Context, args ...string) (string, error) {
	if err := f.intercept(args); err != nil {
		return "", err
	}
	return f.Runner.Run(ctx, args...)
}

// RunRaw implements git.Runner
func (f *FaultyRunner) RunRaw(ctx context.Context, args ...string) (string, error) {
	if err := f.intercept(args); err != nil {
		return "", err
	}
	return f.Runner.RunRaw(ctx, args...)
}

func (f *FaultyRunner) intercept(args []string) error {
	if len(args) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := args[0]
	f.calls = append(f.calls, sub)
	pending := f.faults[sub]
	if len(pending) == 0 {
		return nil
	}
	stderr := pending[0]
	f.faults[sub] = pending[1:]
	return mgerrors.NewGitCommandError("git", args, "", stderr, errors.New("exit status 128"))
}
