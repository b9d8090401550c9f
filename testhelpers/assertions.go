// Package testhelpers provides testing utilities for mergeguard,
// including a scene system, Git repository helpers, and custom assertions.
package testhelpers

import (
	"regexp"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// scratchPattern matches merge-{source}-to-{target}-{timestamp} branch names
var scratchPattern = regexp.MustCompile(`^merge-.+-to-.+-\d{8}-\d{6}(-\d+)?$`)

// Must is a generic helper function that panics if err is not nil,
// otherwise returns the value.
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// ExpectBranches asserts that the repository has exactly the expected branches.
func ExpectBranches(t *testing.T, repo *GitRepo, expected []string) {
	t.Helper()

	branches, err := repo.ListBranches()
	require.NoError(t, err, "Failed to list branches")

	sort.Strings(branches)
	want := append([]string(nil), expected...)
	sort.Strings(want)

	require.Equal(t, want, branches, "Branches do not match")
}

// ExpectNoScratchBranches asserts that no merge scratch branch is left behind.
func ExpectNoScratchBranches(t *testing.T, repo *GitRepo) {
	t.Helper()

	branches, err := repo.ListBranches()
	require.NoError(t, err, "Failed to list branches")

	for _, b := range branches {
		require.False(t, scratchPattern.MatchString(b), "scratch branch %s survived", b)
	}
}

// ExpectCleanState asserts the repository is on branch with head checked out,
// has no local changes and no merge in progress.
func ExpectCleanState(t *testing.T, repo *GitRepo, branch, head string) {
	t.Helper()

	current, err := repo.CurrentBranchName()
	require.NoError(t, err)
	require.Equal(t, branch, current, "HEAD is on the wrong branch")

	sha, err := repo.GetRevision("HEAD")
	require.NoError(t, err)
	require.Equal(t, head, sha, "HEAD moved")

	status, err := repo.StatusPorcelain()
	require.NoError(t, err)
	require.Empty(t, status, "working tree is not clean")

	require.False(t, repo.MergeInProgress(), "merge still in progress")
}
