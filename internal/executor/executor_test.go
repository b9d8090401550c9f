package executor_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mergeguard.dev/mergeguard/internal/config"
	mgerrors "mergeguard.dev/mergeguard/internal/errors"
	"mergeguard.dev/mergeguard/internal/executor"
	"mergeguard.dev/mergeguard/internal/git"
	"mergeguard.dev/mergeguard/testhelpers"
)

type sleeps struct {
	waits []time.Duration
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

type fixture struct {
	scene  *testhelpers.Scene
	runner *testhelpers.FaultyRunner
	sleeps *sleeps
	exec   *executor.Executor
}

// newFixture builds main, a pushed test branch and a feature branch with one
// new commit, leaving feature checked out
func newFixture(t *testing.T) *fixture {
	t.Helper()
	scene := testhelpers.NewScene(t, testhelpers.RemoteSceneSetup)
	repo := scene.Repo
	require.NoError(t, repo.CreateBranch("test"))
	require.NoError(t, repo.PushBranch("origin", "test"))
	require.NoError(t, repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, repo.CommitFile("feature.txt", "feature\n", "add feature"))
	return buildFixture(scene, "origin")
}

func buildFixture(scene *testhelpers.Scene, remote string) *fixture {
	runner := testhelpers.NewFaultyRunner(git.NewCommandRunner(scene.Dir))
	s := &sleeps{}
	return &fixture{
		scene:  scene,
		runner: runner,
		sleeps: s,
		exec: executor.New(executor.Options{
			Runner: runner,
			Config: config.DefaultConfig(),
			Remote: remote,
			Sleep:  s.sleep,
		}),
	}
}

func lastState(out executor.Outcome) executor.State {
	return out.Steps[len(out.Steps)-1].State
}

func hasState(out executor.Outcome, state executor.State) bool {
	for _, s := range out.Steps {
		if s.State == state {
			return true
		}
	}
	return false
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t)
	repo := f.scene.Repo
	head := testhelpers.Must(repo.GetRevision("HEAD"))

	out := f.exec.Run(context.Background(), "feature", "test")

	require.Equal(t, executor.KindSuccess, out.Kind, out.Reason)
	assert.NoError(t, out.Err)
	assert.Equal(t, 1, out.Ahead)
	assert.True(t, out.ScratchCreated())
	assert.Equal(t, 1, out.FetchAttempts)
	assert.Equal(t, 1, out.PushAttempts)

	testhelpers.ExpectNoScratchBranches(t, repo)
	testhelpers.ExpectCleanState(t, repo, "feature", head)

	local := testhelpers.Must(repo.GetRevision("test"))
	remote := testhelpers.Must(testhelpers.RemoteRevision(f.scene.RemoteDir, "test"))
	assert.Equal(t, local, remote)
	assert.Equal(t, local, out.MergeCommit)

	// Always a merge commit, even though a fast-forward was possible
	parents := strings.Fields(testhelpers.Must(repo.RunGitCommandAndGetOutput("rev-list", "--parents", "-n", "1", "test")))
	assert.Len(t, parents, 3)
	msg := testhelpers.Must(repo.RunGitCommandAndGetOutput("log", "-1", "--format=%s", "test"))
	assert.Equal(t, "Merge branch 'feature' into test", msg)

	assert.Equal(t, executor.StateTerminal, lastState(out))
	assert.Equal(t, "success", out.Steps[len(out.Steps)-1].Detail)
	assert.True(t, hasState(out, executor.StatePushed))
	assert.True(t, hasState(out, executor.StateCleaned))
}

func TestRun_SkippedWhenTargetUpToDate(t *testing.T) {
	f := newFixture(t)
	repo := f.scene.Repo
	require.NoError(t, repo.CheckoutBranch("test"))
	require.NoError(t, repo.RunGitCommand("merge", "--no-ff", "--no-edit", "feature"))
	require.NoError(t, repo.CheckoutBranch("feature"))
	testBefore := testhelpers.Must(repo.GetRevision("test"))

	out := f.exec.Run(context.Background(), "feature", "test")

	assert.Equal(t, executor.KindSkipped, out.Kind)
	assert.False(t, out.ScratchCreated())
	assert.Equal(t, 0, f.runner.Count("checkout"))
	assert.Equal(t, 0, f.runner.Count("pull"))
	assert.Equal(t, 0, f.runner.Count("push"))
	assert.Equal(t, testBefore, testhelpers.Must(repo.GetRevision("test")))
	assert.False(t, hasState(out, executor.StateScratchCreated))
}

func TestRun_RejectedProtectedTarget(t *testing.T) {
	f := newFixture(t)
	repo := f.scene.Repo
	require.NoError(t, repo.CreateBranch("prod"))
	branches := testhelpers.Must(repo.ListBranches())

	out := f.exec.Run(context.Background(), "feature", "prod")

	assert.Equal(t, executor.KindRejected, out.Kind)
	assert.ErrorIs(t, out.Err, mgerrors.ErrProtectedBranch)
	assert.False(t, out.ScratchCreated())
	assert.Equal(t, 0, f.runner.Count("checkout"))
	assert.Equal(t, 0, f.runner.Count("pull"))
	assert.Equal(t, 0, f.runner.Count("push"))
	testhelpers.ExpectBranches(t, repo, branches)
}

func TestRun_RejectedDirtyTree(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.scene.Repo.WriteFile("feature.txt", "uncommitted\n"))

	out := f.exec.Run(context.Background(), "feature", "test")

	assert.Equal(t, executor.KindRejected, out.Kind)
	assert.ErrorIs(t, out.Err, mgerrors.ErrEnvironment)
	assert.Contains(t, out.Reason, "uncommitted")
	assert.False(t, out.ScratchCreated())
}

func TestRun_RejectedUnknownTarget(t *testing.T) {
	f := newFixture(t)

	out := f.exec.Run(context.Background(), "feature", "nope")

	assert.Equal(t, executor.KindRejected, out.Kind)
	assert.ErrorIs(t, out.Err, mgerrors.ErrUnknownBranch)
}

func TestRun_Conflict(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.RemoteSceneSetup)
	repo := scene.Repo
	require.NoError(t, repo.CommitFile("a.py", "value = 0\n", "add a"))
	require.NoError(t, repo.CommitFile("b.yml", "key: 0\n", "add b"))
	require.NoError(t, repo.PushBranch("origin", "main"))
	require.NoError(t, repo.CreateAndCheckoutBranch("dev"))
	require.NoError(t, repo.CommitFile("a.py", "value = 1\n", "dev a"))
	require.NoError(t, repo.CommitFile("b.yml", "key: 1\n", "dev b"))
	require.NoError(t, repo.PushBranch("origin", "dev"))
	require.NoError(t, repo.CheckoutBranch("main"))
	require.NoError(t, repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, repo.CommitFile("a.py", "value = 2\n", "feature a"))
	require.NoError(t, repo.CommitFile("b.yml", "key: 2\n", "feature b"))

	f := buildFixture(scene, "origin")
	head := testhelpers.Must(repo.GetRevision("HEAD"))
	devBefore := testhelpers.Must(repo.GetRevision("dev"))
	remoteBefore := testhelpers.Must(testhelpers.RemoteRevision(scene.RemoteDir, "dev"))

	out := f.exec.Run(context.Background(), "feature", "dev")

	require.Equal(t, executor.KindConflict, out.Kind, out.Reason)
	assert.ErrorIs(t, out.Err, mgerrors.ErrConflict)
	assert.ElementsMatch(t, []string{"a.py", "b.yml"}, out.Files)
	require.NotNil(t, out.Advice)
	assert.Len(t, out.Advice.Files, 2)
	assert.Equal(t, 2, out.Advice.TotalBlocks)

	testhelpers.ExpectCleanState(t, repo, "feature", head)
	testhelpers.ExpectNoScratchBranches(t, repo)
	assert.Equal(t, devBefore, testhelpers.Must(repo.GetRevision("dev")))
	assert.Equal(t, remoteBefore, testhelpers.Must(testhelpers.RemoteRevision(scene.RemoteDir, "dev")))
	assert.Equal(t, 0, f.runner.Count("push"))
	assert.True(t, hasState(out, executor.StateRolledBack))
}

func TestRun_ConflictKeepsEditsUnderIgnoredPaths(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.RemoteSceneSetup)
	repo := scene.Repo
	require.NoError(t, repo.CommitFile(".vscode/settings.json", "{}\n", "share editor settings"))
	require.NoError(t, repo.CommitFile("app.js", "let v = 0\n", "add app"))
	require.NoError(t, repo.PushBranch("origin", "main"))
	require.NoError(t, repo.CreateAndCheckoutBranch("dev"))
	require.NoError(t, repo.CommitFile("app.js", "let v = 1\n", "dev change"))
	require.NoError(t, repo.PushBranch("origin", "dev"))
	require.NoError(t, repo.CheckoutBranch("main"))
	require.NoError(t, repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, repo.CommitFile("app.js", "let v = 2\n", "feature change"))
	require.NoError(t, repo.WriteFile(".vscode/settings.json", "{\"tabSize\": 2}\n"))
	require.NoError(t, repo.WriteFile(".vscode/launch.json", "{\"configurations\": []}\n"))

	f := buildFixture(scene, "origin")
	devBefore := testhelpers.Must(repo.GetRevision("dev"))

	out := f.exec.Run(context.Background(), "feature", "dev")

	// The tracked edit blocks before any branch is touched
	assert.Equal(t, executor.KindRejected, out.Kind)
	assert.ErrorIs(t, out.Err, mgerrors.ErrEnvironment)
	assert.False(t, out.ScratchCreated())
	assert.Equal(t, "{\"tabSize\": 2}\n", testhelpers.Must(repo.ReadFile(".vscode/settings.json")))
	assert.Equal(t, devBefore, testhelpers.Must(repo.GetRevision("dev")))

	// With only the untracked file left the merge runs, conflicts and rolls back
	require.NoError(t, repo.RunGitCommand("checkout", "--", ".vscode/settings.json"))
	head := testhelpers.Must(repo.GetRevision("HEAD"))

	out = f.exec.Run(context.Background(), "feature", "dev")

	require.Equal(t, executor.KindConflict, out.Kind, out.Reason)
	assert.Equal(t, []string{"app.js"}, out.Files)
	assert.Equal(t, "{\"configurations\": []}\n", testhelpers.Must(repo.ReadFile(".vscode/launch.json")))
	assert.Equal(t, head, testhelpers.Must(repo.GetRevision("HEAD")))
	assert.Equal(t, "feature", testhelpers.Must(repo.CurrentBranchName()))
	assert.Equal(t, "?? .vscode/launch.json", testhelpers.Must(repo.StatusPorcelain()))
	testhelpers.ExpectNoScratchBranches(t, repo)
}

func TestRun_SkippedWhenRemoteTargetAlreadyMerged(t *testing.T) {
	f := newFixture(t)
	repo := f.scene.Repo
	head := testhelpers.Must(repo.GetRevision("HEAD"))
	testBefore := testhelpers.Must(repo.GetRevision("test"))

	// Someone else already landed feature on origin/test; the local refs still lag
	require.NoError(t, repo.RunGitCommand("push", "origin", "feature:test"))
	require.NoError(t, repo.RunGitCommand("update-ref", "refs/remotes/origin/test", testBefore))

	out := f.exec.Run(context.Background(), "feature", "test")

	require.Equal(t, executor.KindSkipped, out.Kind, out.Reason)
	assert.NoError(t, out.Err)
	assert.Equal(t, 0, out.Ahead)
	assert.Equal(t, "test already contains every commit of feature", out.Reason)
	assert.Equal(t, 1, out.FetchAttempts)
	assert.Equal(t, 0, f.runner.Count("merge"))
	assert.Equal(t, 0, f.runner.Count("push"))
	assert.True(t, hasState(out, executor.StateFetched))
	assert.False(t, hasState(out, executor.StateAttempted))
	assert.True(t, hasState(out, executor.StateCleaned))
	assert.Equal(t, executor.StateTerminal, lastState(out))
	assert.Equal(t, "skipped", out.Steps[len(out.Steps)-1].Detail)
	assert.Equal(t, testBefore, testhelpers.Must(repo.GetRevision("test")))
	testhelpers.ExpectCleanState(t, repo, "feature", head)
	testhelpers.ExpectNoScratchBranches(t, repo)
}

func TestRun_RetriesTransientPull(t *testing.T) {
	f := newFixture(t)
	f.runner.FailNext("pull", 2, "fatal: unable to access 'https://git.example.com/repo.git/': Connection timed out")

	out := f.exec.Run(context.Background(), "feature", "test")

	require.Equal(t, executor.KindSuccess, out.Kind, out.Reason)
	assert.Equal(t, 3, out.FetchAttempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, f.sleeps.waits)
	assert.Equal(t, f.sleeps.waits, out.RetryDelays)
	testhelpers.ExpectNoScratchBranches(t, f.scene.Repo)
}

func TestRun_PullExhausted(t *testing.T) {
	f := newFixture(t)
	repo := f.scene.Repo
	head := testhelpers.Must(repo.GetRevision("HEAD"))
	f.runner.FailNext("pull", 3, "fatal: Could not resolve host: git.example.com")

	out := f.exec.Run(context.Background(), "feature", "test")

	assert.Equal(t, executor.KindFailed, out.Kind)
	assert.ErrorIs(t, out.Err, mgerrors.ErrNetwork)
	assert.Equal(t, 3, out.FetchAttempts)
	testhelpers.ExpectCleanState(t, repo, "feature", head)
	testhelpers.ExpectNoScratchBranches(t, repo)
}

func TestRun_PushAuthFailureRestoresTarget(t *testing.T) {
	f := newFixture(t)
	repo := f.scene.Repo
	head := testhelpers.Must(repo.GetRevision("HEAD"))
	testBefore := testhelpers.Must(repo.GetRevision("test"))
	f.runner.FailNext("push", 1, "remote: Permission to acme/repo.git denied.\nfatal: unable to access: The requested URL returned error: 403")

	out := f.exec.Run(context.Background(), "feature", "test")

	assert.Equal(t, executor.KindFailed, out.Kind)
	assert.ErrorIs(t, out.Err, mgerrors.ErrAuth)
	assert.Equal(t, 1, out.PushAttempts)
	assert.Empty(t, f.sleeps.waits)
	assert.Equal(t, testBefore, testhelpers.Must(repo.GetRevision("test")))
	testhelpers.ExpectCleanState(t, repo, "feature", head)
	testhelpers.ExpectNoScratchBranches(t, repo)
}

func TestRun_CancelledDuringRetryWait(t *testing.T) {
	f := newFixture(t)
	repo := f.scene.Repo
	head := testhelpers.Must(repo.GetRevision("HEAD"))
	f.runner.FailNext("pull", 3, "connection reset by peer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec := executor.New(executor.Options{
		Runner: f.runner,
		Config: config.DefaultConfig(),
		Remote: "origin",
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	out := exec.Run(ctx, "feature", "test")

	assert.Equal(t, executor.KindFailed, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
	testhelpers.ExpectCleanState(t, repo, "feature", head)
	testhelpers.ExpectNoScratchBranches(t, repo)
}

func TestRun_RemoteOnlyTarget(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.RemoteSceneSetup)
	repo := scene.Repo
	require.NoError(t, repo.CreateBranch("dev"))
	require.NoError(t, repo.PushBranch("origin", "dev"))
	require.NoError(t, repo.DeleteBranch("dev"))
	require.NoError(t, repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, repo.CommitFile("f.txt", "f", "add f"))
	f := buildFixture(scene, "origin")

	out := f.exec.Run(context.Background(), "feature", "dev")

	require.Equal(t, executor.KindSuccess, out.Kind, out.Reason)
	assert.Equal(t, testhelpers.Must(repo.GetRevision("dev")),
		testhelpers.Must(testhelpers.RemoteRevision(scene.RemoteDir, "dev")))
	testhelpers.ExpectNoScratchBranches(t, repo)
}

func TestRun_LocalOnlyRepository(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.BasicSceneSetup)
	repo := scene.Repo
	require.NoError(t, repo.CreateBranch("test"))
	require.NoError(t, repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, repo.CommitFile("f.txt", "f", "add f"))
	f := buildFixture(scene, "")

	out := f.exec.Run(context.Background(), "feature", "test")

	require.Equal(t, executor.KindSuccess, out.Kind, out.Reason)
	assert.Equal(t, 0, out.FetchAttempts)
	assert.Equal(t, 0, out.PushAttempts)
	assert.Equal(t, 0, f.runner.Count("pull"))
	assert.Equal(t, 0, f.runner.Count("push"))
	assert.NotEmpty(t, out.Warnings)
	testhelpers.ExpectNoScratchBranches(t, repo)
}

func TestRun_CurrentBranchIsTarget(t *testing.T) {
	f := newFixture(t)
	repo := f.scene.Repo
	require.NoError(t, repo.CheckoutBranch("test"))

	out := f.exec.Run(context.Background(), "feature", "test")

	require.Equal(t, executor.KindSuccess, out.Kind, out.Reason)
	current := testhelpers.Must(repo.CurrentBranchName())
	assert.Equal(t, "test", current)
	assert.Equal(t, out.MergeCommit, testhelpers.Must(repo.GetRevision("HEAD")))
	testhelpers.ExpectNoScratchBranches(t, repo)
}

func TestNewRequest(t *testing.T) {
	targets := []string{"test", "dev"}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	req, err := executor.NewRequest("feature", targets, at)
	require.NoError(t, err)
	targets[0] = "changed"
	assert.Equal(t, []string{"test", "dev"}, req.Targets)
	assert.Equal(t, at, req.At)

	_, err = executor.NewRequest("", targets, at)
	assert.Error(t, err)
	_, err = executor.NewRequest("feature", nil, at)
	assert.Error(t, err)
	_, err = executor.NewRequest("feature", []string{""}, at)
	assert.Error(t, err)
}
