package batch_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mergeguard.dev/mergeguard/internal/batch"
	"mergeguard.dev/mergeguard/internal/config"
	mgerrors "mergeguard.dev/mergeguard/internal/errors"
	"mergeguard.dev/mergeguard/internal/executor"
	"mergeguard.dev/mergeguard/internal/git"
	"mergeguard.dev/mergeguard/internal/lock"
	"mergeguard.dev/mergeguard/testhelpers"
)

type fakeLock struct {
	acquireErr error
	acquired   int
	released   int
}

func (l *fakeLock) Acquire() error {
	if l.acquireErr != nil {
		return l.acquireErr
	}
	l.acquired++
	return nil
}

func (l *fakeLock) Release() error {
	l.released++
	return nil
}

type scriptedRunner struct {
	outcomes map[string]executor.Outcome
	calls    []string
}

func (r *scriptedRunner) Run(_ context.Context, source, target string) executor.Outcome {
	r.calls = append(r.calls, target)
	out := r.outcomes[target]
	out.Source = source
	out.Target = target
	return out
}

type fakeSweeper struct {
	swept []string
	calls int
}

func (s *fakeSweeper) Sweep(context.Context) ([]string, error) {
	s.calls++
	return s.swept, nil
}

func request(t *testing.T, targets ...string) executor.Request {
	req, err := executor.NewRequest("feature", targets, time.Now())
	require.NoError(t, err)
	return req
}

func TestRun_ContinuesAfterFailure(t *testing.T) {
	l := &fakeLock{}
	s := &fakeSweeper{swept: []string{"merge-x-to-y-20250101-000000"}}
	r := &scriptedRunner{outcomes: map[string]executor.Outcome{
		"a": {Kind: executor.KindFailed, Err: errors.New("boom")},
		"b": {Kind: executor.KindConflict},
		"c": {Kind: executor.KindSuccess},
		"d": {Kind: executor.KindSkipped},
	}}

	result, err := batch.New(l, s, r, nil).Run(context.Background(), request(t, "a", "b", "c", "d"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, r.calls)
	require.Len(t, result.Outcomes, 4)
	assert.Equal(t, "c", result.Outcomes[2].Target)
	assert.False(t, result.Success())
	assert.Equal(t, batch.ExitFailure, result.ExitCode())
	assert.Equal(t, 1, result.Counts()[executor.KindConflict])
	assert.Equal(t, s.swept, result.Swept)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, 1, l.acquired)
	assert.Equal(t, 1, l.released)
}

func TestRun_AllOK(t *testing.T) {
	r := &scriptedRunner{outcomes: map[string]executor.Outcome{
		"a": {Kind: executor.KindSuccess},
		"b": {Kind: executor.KindSkipped},
	}}

	result, err := batch.New(&fakeLock{}, nil, r, nil).Run(context.Background(), request(t, "a", "b"))
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, batch.ExitOK, result.ExitCode())
}

func TestRun_BusyLockTouchesNothing(t *testing.T) {
	l := &fakeLock{acquireErr: mgerrors.ErrRepoBusy}
	s := &fakeSweeper{}
	r := &scriptedRunner{}

	_, err := batch.New(l, s, r, nil).Run(context.Background(), request(t, "a"))

	assert.ErrorIs(t, err, mgerrors.ErrRepoBusy)
	assert.Empty(t, r.calls)
	assert.Equal(t, 0, s.calls)
	assert.Equal(t, 0, l.released)
}

func TestRun_EnvironmentErrorRejectsRemaining(t *testing.T) {
	envErr := mgerrors.NewEnvironmentError("1 uncommitted change(s)", nil)
	r := &scriptedRunner{outcomes: map[string]executor.Outcome{
		"a": {Kind: executor.KindRejected, Reason: envErr.Reason, Err: envErr},
	}}

	result, err := batch.New(&fakeLock{}, nil, r, nil).Run(context.Background(), request(t, "a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, r.calls)
	require.Len(t, result.Outcomes, 3)
	for _, o := range result.Outcomes {
		assert.Equal(t, executor.KindRejected, o.Kind)
		assert.ErrorIs(t, o.Err, mgerrors.ErrEnvironment)
		assert.Equal(t, envErr.Reason, o.Reason)
	}
	assert.Equal(t, "c", result.Outcomes[2].Target)
}

func TestRun_ProtectedTargetDoesNotStopBatch(t *testing.T) {
	r := &scriptedRunner{outcomes: map[string]executor.Outcome{
		"prod": {Kind: executor.KindRejected, Err: mgerrors.NewProtectedBranchError("prod")},
		"dev":  {Kind: executor.KindSuccess},
	}}

	result, err := batch.New(&fakeLock{}, nil, r, nil).Run(context.Background(), request(t, "prod", "dev"))
	require.NoError(t, err)

	assert.Equal(t, []string{"prod", "dev"}, r.calls)
	assert.Equal(t, executor.KindSuccess, result.Outcomes[1].Kind)
}

func TestRun_CancelledBeforeLaterTargets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &cancellingRunner{cancel: cancel}

	result, err := batch.New(&fakeLock{}, nil, r, nil).Run(ctx, request(t, "a", "b", "c"))
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, executor.KindFailed, result.Outcomes[2].Kind)
	assert.ErrorIs(t, result.Outcomes[2].Err, context.Canceled)
}

type cancellingRunner struct {
	cancel func()
	calls  int
}

func (r *cancellingRunner) Run(_ context.Context, source, target string) executor.Outcome {
	r.calls++
	r.cancel()
	return executor.Outcome{Source: source, Target: target, Kind: executor.KindSuccess}
}

// A batch where the first target merges cleanly and the second conflicts:
// the first push stays in place.
func TestRun_SuccessThenConflict(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.RemoteSceneSetup)
	repo := scene.Repo
	require.NoError(t, repo.CommitFile("app.js", "let v = 0\n", "add app"))
	require.NoError(t, repo.PushBranch("origin", "main"))
	require.NoError(t, repo.CreateBranch("test"))
	require.NoError(t, repo.PushBranch("origin", "test"))
	require.NoError(t, repo.CreateAndCheckoutBranch("dev"))
	require.NoError(t, repo.CommitFile("app.js", "let v = 1\n", "dev change"))
	require.NoError(t, repo.PushBranch("origin", "dev"))
	require.NoError(t, repo.CheckoutBranch("main"))
	require.NoError(t, repo.CreateAndCheckoutBranch("feature"))
	require.NoError(t, repo.CommitFile("app.js", "let v = 2\n", "feature change"))
	head := testhelpers.Must(repo.GetRevision("HEAD"))

	runner := git.NewCommandRunner(scene.Dir)
	gitDir := testhelpers.Must(git.GitDir(context.Background(), runner))
	exec := executor.New(executor.Options{
		Runner: runner,
		Config: config.DefaultConfig(),
		Remote: "origin",
	})
	coord := batch.New(lock.New(filepath.Join(gitDir, "mergeguard")), exec.Scratch(), exec, nil)

	result, err := coord.Run(context.Background(), request(t, "test", "dev"))
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "test", result.Outcomes[0].Target)
	assert.Equal(t, executor.KindSuccess, result.Outcomes[0].Kind, result.Outcomes[0].Reason)
	assert.Equal(t, "dev", result.Outcomes[1].Target)
	assert.Equal(t, executor.KindConflict, result.Outcomes[1].Kind, result.Outcomes[1].Reason)
	assert.Equal(t, []string{"app.js"}, result.Outcomes[1].Files)
	assert.Equal(t, batch.ExitFailure, result.ExitCode())

	// test's push is not undone by dev's conflict
	assert.Equal(t, result.Outcomes[0].MergeCommit, testhelpers.Must(testhelpers.RemoteRevision(scene.RemoteDir, "test")))

	testhelpers.ExpectCleanState(t, repo, "feature", head)
	testhelpers.ExpectNoScratchBranches(t, repo)
}
