package precheck

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
	"mergeguard.dev/mergeguard/testhelpers"
)

func TestCheck_SourceAhead(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
	repo := scene.Repo
	require.NoError(t, repo.CreateBranch("test"))
	require.NoError(t, repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, repo.CommitFile("a.txt", "a", "add a"))
	require.NoError(t, repo.CommitFile("b.txt", "b", "add b"))

	result, err := New(scene.Dir, "", 0).Check("feature", "test")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Ahead)
	assert.True(t, result.NeedsMerge())
	assert.True(t, result.TargetIsLocal)
	assert.Equal(t, "refs/heads/test", result.TargetRef)
}

func TestCheck_AlreadyMerged(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
	repo := scene.Repo
	require.NoError(t, repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, repo.CommitFile("a.txt", "a", "add a"))
	require.NoError(t, repo.CheckoutBranch("main"))
	require.NoError(t, repo.RunGitCommand("merge", "--no-ff", "--no-edit", "feature"))

	result, err := New(scene.Dir, "", 0).Check("feature", "main")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Ahead)
	assert.False(t, result.NeedsMerge())
}

func TestCheck_RemoteOnlyTarget(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.RemoteSceneSetup)
	repo := scene.Repo
	require.NoError(t, repo.CreateBranch("dev"))
	require.NoError(t, repo.PushBranch("origin", "dev"))
	require.NoError(t, repo.DeleteBranch("dev"))
	require.NoError(t, repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, repo.CommitFile("a.txt", "a", "add a"))

	result, err := New(scene.Dir, "origin", 0).Check("feature", "dev")
	require.NoError(t, err)

	assert.False(t, result.TargetIsLocal)
	assert.Equal(t, "refs/remotes/origin/dev", result.TargetRef)
	assert.Equal(t, 1, result.Ahead)
}

func TestCheck_UnknownTarget(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)

	_, err := New(scene.Dir, "", 0).Check("main", "nope")

	assert.ErrorIs(t, err, mgerrors.ErrUnknownBranch)
	var ubErr *mgerrors.UnknownBranchError
	require.ErrorAs(t, err, &ubErr)
	assert.Equal(t, "nope", ubErr.BranchName)
}

func TestCheck_LargeFiles(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
	repo := scene.Repo
	require.NoError(t, repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, repo.CommitFile("big.bin", strings.Repeat("x", 2048), "add big"))
	require.NoError(t, repo.CommitFile("small.txt", "tiny", "add small"))

	result, err := New(scene.Dir, "", 1024).Check("feature", "main")
	require.NoError(t, err)

	require.Len(t, result.LargeFiles, 1)
	assert.Equal(t, "big.bin", result.LargeFiles[0].Path)
	assert.Equal(t, int64(2048), result.LargeFiles[0].Size)
}
