// Package precheck decides whether a merge would change the target at all.
package precheck

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
	"mergeguard.dev/mergeguard/internal/git"
)

// Result is the outcome of comparing source against target
type Result struct {
	Source string
	Target string

	// SourceRef and TargetRef are the fully qualified refs that were compared
	SourceRef string
	TargetRef string

	// TargetIsLocal is false when only the remote-tracking ref exists
	TargetIsLocal bool

	// TargetOnRemote is set when the remote has a tracking ref for target
	TargetOnRemote bool

	// Ahead is the number of commits on source that target lacks
	Ahead int

	// LargeFiles are files changed by source that exceed the size limit
	LargeFiles []git.FileSize
}

// NeedsMerge reports whether source has commits the target lacks
func (r Result) NeedsMerge() bool {
	return r.Ahead > 0
}

// Prechecker compares branches through a read-only view of the repository
type Prechecker struct {
	dir         string
	remote      string
	maxFileSize int64
}

// New creates a Prechecker for the repository at dir. remote may be empty
// for a local-only repository.
func New(dir, remote string, maxFileSize int64) *Prechecker {
	return &Prechecker{dir: dir, remote: remote, maxFileSize: maxFileSize}
}

// Check computes the ahead count of source over target. The repository is
// reopened on every call so refs written by git since the last call are seen.
func (p *Prechecker) Check(source, target string) (Result, error) {
	result := Result{Source: source, Target: target}

	repo, err := git.OpenRepository(p.dir)
	if err != nil {
		return result, err
	}

	sourceRef, _, ok := p.resolve(repo, source)
	if !ok {
		return result, mgerrors.NewUnknownBranchError(source, nil)
	}
	targetRef, local, ok := p.resolve(repo, target)
	if !ok {
		return result, mgerrors.NewUnknownBranchError(target, nil)
	}
	result.SourceRef = sourceRef
	result.TargetRef = targetRef
	result.TargetIsLocal = local
	result.TargetOnRemote = repo.HasRemoteBranch(p.remote, target)

	ahead, err := repo.AheadCount(sourceRef, targetRef)
	if err != nil {
		return result, fmt.Errorf("failed to compare %s with %s: %w", source, target, err)
	}
	result.Ahead = ahead
	if ahead == 0 || p.maxFileSize <= 0 {
		return result, nil
	}

	files, err := repo.ChangedFileSizes(targetRef, sourceRef)
	if err != nil {
		return result, err
	}
	for _, f := range files {
		if f.Size > p.maxFileSize {
			result.LargeFiles = append(result.LargeFiles, f)
		}
	}
	return result, nil
}

// Ahead counts the commits reachable from sourceRef that rev lacks. The
// executor uses it with rev "HEAD" once the scratch branch holds the fetched
// target.
func (p *Prechecker) Ahead(sourceRef, rev string) (int, error) {
	repo, err := git.OpenRepository(p.dir)
	if err != nil {
		return 0, err
	}
	ahead, err := repo.AheadCount(sourceRef, rev)
	if err != nil {
		return 0, fmt.Errorf("failed to compare %s with %s: %w", sourceRef, rev, err)
	}
	return ahead, nil
}

// resolve prefers the local branch and falls back to the remote-tracking one
func (p *Prechecker) resolve(repo *git.Repository, name string) (string, bool, bool) {
	if repo.HasLocalBranch(name) {
		return plumbing.NewBranchReferenceName(name).String(), true, true
	}
	if repo.HasRemoteBranch(p.remote, name) {
		return plumbing.NewRemoteReferenceName(p.remote, name).String(), false, true
	}
	return "", false, false
}

// SourceRev is the revision to hand to git merge: the branch name when it
// exists locally, <remote>/<branch> otherwise
func (r Result) SourceRev(remote string) string {
	if strings.HasPrefix(r.SourceRef, "refs/heads/") {
		return r.Source
	}
	return remote + "/" + r.Source
}
