package git

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
)

// DefaultCommandTimeout is the default timeout for git commands
const DefaultCommandTimeout = 5 * time.Minute

// Runner executes git commands in one working directory.
// Run trims surrounding whitespace from stdout, RunRaw returns it untouched.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
	RunRaw(ctx context.Context, args ...string) (string, error)
	Dir() string
}

// CommandRunner handles execution of git commands
type CommandRunner struct {
	workingDir string
	env        []string
}

// NewCommandRunner creates a new CommandRunner
func NewCommandRunner(workingDir string) *CommandRunner {
	return &CommandRunner{workingDir: workingDir}
}

// WithEnv returns a copy of the runner that appends env to the process environment
func (r *CommandRunner) WithEnv(env ...string) *CommandRunner {
	return &CommandRunner{
		workingDir: r.workingDir,
		env:        append(append([]string(nil), r.env...), env...),
	}
}

// Dir returns the working directory commands run in
func (r *CommandRunner) Dir() string {
	return r.workingDir
}

// Run executes a git command with the given context and returns the output
func (r *CommandRunner) Run(ctx context.Context, args ...string) (string, error) {
	return r.runInternal(ctx, true, args...)
}

// RunRaw executes a git command and returns the raw output (no trimming)
func (r *CommandRunner) RunRaw(ctx context.Context, args ...string) (string, error) {
	return r.runInternal(ctx, false, args...)
}

func (r *CommandRunner) runInternal(ctx context.Context, trim bool, args ...string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// If no timeout/deadline is set in the context, add the default one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCommandTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	if r.workingDir != "" {
		cmd.Dir = r.workingDir
	}
	// Never wait on a credential prompt; auth failures must surface as errors
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if len(r.env) > 0 {
		cmd.Env = append(cmd.Env, r.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", mgerrors.NewGitCommandError("git", args, stdout.String(), stderr.String(), ctxErr)
		}
		return "", mgerrors.NewGitCommandError("git", args, stdout.String(), stderr.String(), err)
	}
	if trim {
		return strings.TrimSpace(stdout.String()), nil
	}
	return stdout.String(), nil
}

// lines splits trimmed command output into non-empty lines
func lines(output string) []string {
	if output == "" {
		return []string{}
	}
	var out []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
