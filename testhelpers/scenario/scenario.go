// Package scenario provides a high-level test scenario that combines a Scene
// with in-process mergeguard invocations to provide a terse API for
// integration tests.
package scenario

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mergeguard.dev/mergeguard/internal/cli"
	"mergeguard.dev/mergeguard/testhelpers"
)

// Scenario represents a repository under test plus the output of the last
// mergeguard invocation.
type Scenario struct {
	T     *testing.T
	Scene *testhelpers.Scene

	Stdout   string
	Stderr   string
	ExitCode int
}

// NewScenario creates a new Scenario with an optional setup function.
// NOTE: This function is NOT safe for parallel tests as it uses t.Setenv.
func NewScenario(t *testing.T, setup testhelpers.SceneSetup) *Scenario {
	t.Helper()

	// Keep the debug log inside the scene's git dir
	t.Setenv("MERGEGUARD_LOG_FILE", "")

	return &Scenario{
		T:     t,
		Scene: testhelpers.NewScene(t, setup),
	}
}

// RunGit runs a git command in the scenario's repository.
func (s *Scenario) RunGit(args ...string) *Scenario {
	s.T.Helper()
	err := s.Scene.Repo.RunGitCommand(args...)
	require.NoError(s.T, err)
	return s
}

// Checkout checks out an existing branch.
func (s *Scenario) Checkout(branch string) *Scenario {
	s.T.Helper()
	require.NoError(s.T, s.Scene.Repo.CheckoutBranch(branch))
	return s
}

// CreateBranch creates and checks out a new branch from HEAD.
func (s *Scenario) CreateBranch(name string) *Scenario {
	s.T.Helper()
	require.NoError(s.T, s.Scene.Repo.CreateAndCheckoutBranch(name))
	return s
}

// CommitFile writes a file and commits it on the current branch.
func (s *Scenario) CommitFile(name, content, message string) *Scenario {
	s.T.Helper()
	require.NoError(s.T, s.Scene.Repo.CommitFile(name, content, message))
	return s
}

// Push pushes a branch to origin.
func (s *Scenario) Push(branch string) *Scenario {
	s.T.Helper()
	require.NoError(s.T, s.Scene.Repo.PushBranch("origin", branch))
	return s
}

// Head returns the commit HEAD points at.
func (s *Scenario) Head() string {
	s.T.Helper()
	return testhelpers.Must(s.Scene.Repo.GetRevision("HEAD"))
}

// Run executes mergeguard in the scenario's repository and records its output.
func (s *Scenario) Run(args ...string) *Scenario {
	s.T.Helper()
	var stdout, stderr bytes.Buffer
	full := append(append([]string(nil), args...), "-C", s.Scene.Dir)
	s.ExitCode = cli.Execute(context.Background(), "test", "none", "unknown", full, &stdout, &stderr)
	s.Stdout = stdout.String()
	s.Stderr = stderr.String()
	return s
}

// RunCli executes mergeguard and requires it to exit 0.
func (s *Scenario) RunCli(args ...string) *Scenario {
	s.T.Helper()
	s.Run(args...)
	require.Equal(s.T, 0, s.ExitCode, "mergeguard %s failed\nstdout: %s\nstderr: %s",
		strings.Join(args, " "), s.Stdout, s.Stderr)
	return s
}

// ExpectExit asserts the exit code of the last invocation.
func (s *Scenario) ExpectExit(code int) *Scenario {
	s.T.Helper()
	require.Equal(s.T, code, s.ExitCode, "stdout: %s\nstderr: %s", s.Stdout, s.Stderr)
	return s
}

// ExpectOutput asserts that stdout or stderr of the last invocation contains text.
func (s *Scenario) ExpectOutput(text string) *Scenario {
	s.T.Helper()
	require.Contains(s.T, s.Stdout+s.Stderr, text)
	return s
}

// ExpectBranch asserts that the current branch is as expected.
func (s *Scenario) ExpectBranch(expected string) *Scenario {
	s.T.Helper()
	actual, err := s.Scene.Repo.CurrentBranchName()
	require.NoError(s.T, err)
	require.Equal(s.T, expected, actual)
	return s
}

// ExpectPushed asserts that origin holds the same commit as the local branch.
func (s *Scenario) ExpectPushed(branch string) *Scenario {
	s.T.Helper()
	local := testhelpers.Must(s.Scene.Repo.GetRevision(branch))
	remote := testhelpers.Must(testhelpers.RemoteRevision(s.Scene.RemoteDir, branch))
	require.Equal(s.T, local, remote, "origin/%s differs from %s", branch, branch)
	return s
}

// ExpectRevision asserts the commit a local branch points at.
func (s *Scenario) ExpectRevision(branch, sha string) *Scenario {
	s.T.Helper()
	require.Equal(s.T, sha, testhelpers.Must(s.Scene.Repo.GetRevision(branch)))
	return s
}

// ExpectCleanState asserts the repository is back on branch at head with a
// clean tree and no scratch branches.
func (s *Scenario) ExpectCleanState(branch, head string) *Scenario {
	s.T.Helper()
	testhelpers.ExpectCleanState(s.T, s.Scene.Repo, branch, head)
	testhelpers.ExpectNoScratchBranches(s.T, s.Scene.Repo)
	return s
}
