// Package conflict detects merge conflicts, captures the conflicted files
// before rollback and turns that capture into read-only advice.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"mergeguard.dev/mergeguard/internal/git"
)

// FileSnapshot is a conflicted file as it was in the working tree
type FileSnapshot struct {
	Path string
	Size int64
	// Content holds the file with conflict markers; empty when Oversize or Missing
	Content  string
	Oversize bool
	// Missing is set for delete/modify conflicts where no file is on disk
	Missing bool
}

// Snapshot is everything advice needs, taken before the tree is restored
type Snapshot struct {
	Source string
	Target string
	Files  []FileSnapshot
}

// Paths returns the conflicted paths in snapshot order
func (s Snapshot) Paths() []string {
	paths := make([]string, len(s.Files))
	for i, f := range s.Files {
		paths[i] = f.Path
	}
	return paths
}

// Checker inspects a stopped merge
type Checker struct {
	runner      git.Runner
	maxFileSize int64
}

// NewChecker creates a Checker. Files larger than maxFileSize are recorded
// without content.
func NewChecker(runner git.Runner, maxFileSize int64) *Checker {
	return &Checker{runner: runner, maxFileSize: maxFileSize}
}

// Files returns the unmerged paths of the current merge
func (c *Checker) Files(ctx context.Context) ([]string, error) {
	return git.UnmergedFiles(ctx, c.runner)
}

// Capture reads the conflicted files from the working tree
func (c *Checker) Capture(ctx context.Context, source, target string, files []string) (Snapshot, error) {
	snap := Snapshot{Source: source, Target: target}

	root := c.runner.Dir()
	if root == "" {
		var err error
		if root, err = git.RepoRoot(ctx, c.runner); err != nil {
			return snap, err
		}
	}

	for _, path := range files {
		file := FileSnapshot{Path: path}
		full := filepath.Join(root, filepath.FromSlash(path))

		info, err := os.Stat(full)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			file.Missing = true
		case err != nil:
			return snap, fmt.Errorf("failed to stat %s: %w", path, err)
		case c.maxFileSize > 0 && info.Size() > c.maxFileSize:
			file.Size = info.Size()
			file.Oversize = true
		default:
			data, err := os.ReadFile(full)
			if err != nil {
				return snap, fmt.Errorf("failed to read %s: %w", path, err)
			}
			file.Size = info.Size()
			file.Content = string(data)
		}
		snap.Files = append(snap.Files, file)
	}
	return snap, nil
}
