package git

import (
	"context"
	"fmt"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
)

// CurrentBranch returns the checked out branch name, or ErrNotOnBranch on a detached HEAD
func CurrentBranch(ctx context.Context, r Runner) (string, error) {
	name, err := r.Run(ctx, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil || name == "" {
		return "", mgerrors.ErrNotOnBranch
	}
	return name, nil
}

// HeadSHA returns the commit HEAD points at
func HeadSHA(ctx context.Context, r Runner) (string, error) {
	return RevParse(ctx, r, "HEAD")
}

// RevParse resolves a revision to a full commit SHA
func RevParse(ctx context.Context, r Runner, rev string) (string, error) {
	sha, err := r.Run(ctx, "rev-parse", "--verify", "-q", rev+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	return sha, nil
}

// BranchExists reports whether refs/heads/<name> exists
func BranchExists(ctx context.Context, r Runner, name string) bool {
	_, err := r.Run(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// ListLocalBranches returns all local branch names
func ListLocalBranches(ctx context.Context, r Runner) ([]string, error) {
	out, err := r.Run(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	return lines(out), nil
}

// CheckoutBranch checks out an existing branch
func CheckoutBranch(ctx context.Context, r Runner, branchName string) error {
	_, err := r.Run(ctx, "checkout", branchName)
	if err != nil {
		return fmt.Errorf("failed to checkout branch %s: %w", branchName, err)
	}
	return nil
}

// ForceCheckoutBranch checks out a branch discarding index and working tree changes
func ForceCheckoutBranch(ctx context.Context, r Runner, branchName string) error {
	_, err := r.Run(ctx, "checkout", "-f", branchName)
	if err != nil {
		return fmt.Errorf("failed to force checkout branch %s: %w", branchName, err)
	}
	return nil
}

// CreateAndCheckoutBranch creates a branch at base and checks it out
func CreateAndCheckoutBranch(ctx context.Context, r Runner, branchName, base string) error {
	_, err := r.Run(ctx, "checkout", "-b", branchName, base)
	if err != nil {
		return fmt.Errorf("failed to create and checkout branch %s: %w", branchName, err)
	}
	return nil
}

// CreateBranch creates a branch at base without checking it out
func CreateBranch(ctx context.Context, r Runner, branchName, base string) error {
	_, err := r.Run(ctx, "branch", branchName, base)
	if err != nil {
		return fmt.Errorf("failed to create branch %s: %w", branchName, err)
	}
	return nil
}

// DeleteBranch deletes a branch
func DeleteBranch(ctx context.Context, r Runner, branchName string) error {
	_, err := r.Run(ctx, "branch", "-D", branchName)
	if err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", branchName, err)
	}
	return nil
}

// SetBranchRef moves a branch that is not checked out to a new commit
func SetBranchRef(ctx context.Context, r Runner, branchName, sha string) error {
	_, err := r.Run(ctx, "branch", "-f", branchName, sha)
	if err != nil {
		return fmt.Errorf("failed to move branch %s to %s: %w", branchName, sha, err)
	}
	return nil
}

// Merge merges rev into the checked out branch, always creating a merge
// commit. An empty message keeps git's default.
func Merge(ctx context.Context, r Runner, rev, message string) (string, error) {
	args := []string{"merge", "--no-ff", "--no-edit"}
	if message != "" {
		args = append(args, "-m", message)
	}
	out, err := r.Run(ctx, append(args, rev)...)
	if err != nil {
		return "", fmt.Errorf("failed to merge %s: %w", rev, err)
	}
	return out, nil
}

// MergeFastForward fast-forwards the checked out branch to rev
func MergeFastForward(ctx context.Context, r Runner, rev string) error {
	_, err := r.Run(ctx, "merge", "--ff-only", rev)
	if err != nil {
		return fmt.Errorf("failed to fast-forward to %s: %w", rev, err)
	}
	return nil
}

// MergeAbort aborts an in-progress merge
func MergeAbort(ctx context.Context, r Runner) error {
	_, err := r.Run(ctx, "merge", "--abort")
	if err != nil {
		return fmt.Errorf("merge abort failed: %w", err)
	}
	return nil
}

// MergeInProgress reports whether MERGE_HEAD exists
func MergeInProgress(ctx context.Context, r Runner) bool {
	_, err := r.Run(ctx, "rev-parse", "-q", "--verify", "MERGE_HEAD")
	return err == nil
}

// UnmergedFiles returns the paths left unmerged by a conflicted merge
func UnmergedFiles(ctx context.Context, r Runner) ([]string, error) {
	out, err := r.Run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("failed to list unmerged files: %w", err)
	}
	return lines(out), nil
}

// RepoRoot returns the top level directory of the working tree
func RepoRoot(ctx context.Context, r Runner) (string, error) {
	root, err := r.Run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return root, nil
}

// GitDir returns the absolute path of the repository's .git directory
func GitDir(ctx context.Context, r Runner) (string, error) {
	dir, err := r.Run(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", fmt.Errorf("failed to locate git dir: %w", err)
	}
	return dir, nil
}
