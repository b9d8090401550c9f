package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
)

// Scene represents a test scene with a temporary directory, a Git repository
// and, optionally, a bare remote named origin.
type Scene struct {
	Dir       string
	Repo      *GitRepo
	RemoteDir string
}

// SceneSetup is a function type for setting up a scene.
type SceneSetup func(*Scene) error

// NewScene creates a new test scene with a temporary directory and Git repository.
// Cleanup is registered with t.Cleanup(). The process working directory is not changed.
func NewScene(t *testing.T, setup SceneSetup) *Scene {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "mergeguard-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	// Resolve symlinks (macOS /var -> /private/var) so paths match git output
	if resolved, err := filepath.EvalSymlinks(tmpDir); err == nil {
		tmpDir = resolved
	}
	repoDir := filepath.Join(tmpDir, "repo")

	t.Cleanup(func() {
		if os.Getenv("DEBUG") == "" {
			os.RemoveAll(tmpDir)
		}
	})

	repo, err := NewGitRepo(repoDir)
	if err != nil {
		t.Fatalf("Failed to create Git repo: %v", err)
	}

	scene := &Scene{
		Dir:  repoDir,
		Repo: repo,
	}

	if setup != nil {
		if err := setup(scene); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
	}

	return scene
}

// BasicSceneSetup creates an initial commit on main.
func BasicSceneSetup(scene *Scene) error {
	return scene.Repo.CommitFile("README.md", "# project\n", "initial commit")
}

// RemoteSceneSetup creates an initial commit on main, a bare origin remote,
// and pushes main to it.
func RemoteSceneSetup(scene *Scene) error {
	if err := BasicSceneSetup(scene); err != nil {
		return err
	}
	return scene.AddRemote()
}

// AddRemote creates a bare origin remote and pushes main to it.
func (s *Scene) AddRemote() error {
	bareDir, err := s.Repo.CreateBareRemote("origin")
	if err != nil {
		return err
	}
	s.RemoteDir = bareDir
	return s.Repo.PushBranch("origin", "main")
}
