package git

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Repository wraps a go-git repository for read-only history queries
type Repository struct {
	*git.Repository
	path string
}

// FileSize is a path and its blob size in bytes
type FileSize struct {
	Path string
	Size int64
}

// OpenRepository opens a git repository at the given path
func OpenRepository(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	return &Repository{
		Repository: repo,
		path:       absPath,
	}, nil
}

// GetRepoRoot returns the root directory of the repository
func (r *Repository) GetRepoRoot() string {
	return r.path
}

// ResolveCommit resolves a branch name, remote-tracking name or revision to a commit
func (r *Repository) ResolveCommit(rev string) (*object.Commit, error) {
	hash, err := r.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	commit, err := r.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", hash, err)
	}
	return commit, nil
}

// HasLocalBranch reports whether refs/heads/<name> exists
func (r *Repository) HasLocalBranch(name string) bool {
	_, err := r.Reference(plumbing.NewBranchReferenceName(name), false)
	return err == nil
}

// HasRemoteBranch reports whether refs/remotes/<remote>/<name> exists
func (r *Repository) HasRemoteBranch(remote, name string) bool {
	if remote == "" {
		return false
	}
	_, err := r.Reference(plumbing.NewRemoteReferenceName(remote, name), false)
	return err == nil
}

// LocalBranchNames returns all local branch names, sorted
func (r *Repository) LocalBranchNames() ([]string, error) {
	branches, err := r.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to get branches: %w", err)
	}

	var names []string
	err = branches.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name().IsBranch() {
			names = append(names, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// RemoteBranchNames returns the branch names tracked for remote with the
// remote prefix stripped and the symbolic HEAD left out, sorted
func (r *Repository) RemoteBranchNames(remote string) ([]string, error) {
	if remote == "" {
		return []string{}, nil
	}
	refs, err := r.References()
	if err != nil {
		return nil, fmt.Errorf("failed to get references: %w", err)
	}

	prefix := remote + "/"
	var names []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if !ref.Name().IsRemote() {
			return nil
		}
		short := ref.Name().Short()
		if !strings.HasPrefix(short, prefix) {
			return nil
		}
		name := strings.TrimPrefix(short, prefix)
		if name == "HEAD" {
			return nil
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate references: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// AheadCount returns the number of commits reachable from source that are
// not reachable from target
func (r *Repository) AheadCount(source, target string) (int, error) {
	sourceCommit, err := r.ResolveCommit(source)
	if err != nil {
		return 0, err
	}
	targetCommit, err := r.ResolveCommit(target)
	if err != nil {
		return 0, err
	}

	inTarget := map[plumbing.Hash]bool{}
	targetIter := object.NewCommitPreorderIter(targetCommit, nil, nil)
	err = targetIter.ForEach(func(c *object.Commit) error {
		inTarget[c.Hash] = true
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", target, err)
	}

	count := 0
	// Commits already seen on the target side stop the walk
	sourceIter := object.NewCommitPreorderIter(sourceCommit, inTarget, nil)
	err = sourceIter.ForEach(func(c *object.Commit) error {
		if inTarget[c.Hash] {
			return nil
		}
		count++
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return 0, fmt.Errorf("failed to walk %s: %w", source, err)
	}
	return count, nil
}

// ChangedFileSizes returns the files that differ between base and head
// together with their size on the head side. Deleted files are left out.
func (r *Repository) ChangedFileSizes(base, head string) ([]FileSize, error) {
	baseCommit, err := r.ResolveCommit(base)
	if err != nil {
		return nil, err
	}
	headCommit, err := r.ResolveCommit(head)
	if err != nil {
		return nil, err
	}

	baseTree, err := baseCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %w", base, err)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %w", head, err)
	}

	changes, err := object.DiffTree(baseTree, headTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", base, head, err)
	}

	var files []FileSize
	for _, change := range changes {
		if change.To.Name == "" {
			continue
		}
		file, err := headTree.File(change.To.Name)
		if err != nil {
			continue
		}
		files = append(files, FileSize{Path: change.To.Name, Size: file.Size})
	}
	return files, nil
}
