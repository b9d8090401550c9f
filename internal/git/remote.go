package git

import (
	"context"
	"fmt"
)

// DefaultRemote is used when the repository has remotes but none can be picked
const DefaultRemote = "origin"

// RemoteName returns the first configured remote. It returns "" when the
// repository has no remotes at all.
func RemoteName(ctx context.Context, r Runner) (string, error) {
	out, err := r.Run(ctx, "remote")
	if err != nil {
		return "", fmt.Errorf("failed to list remotes: %w", err)
	}
	remotes := lines(out)
	if len(remotes) == 0 {
		return "", nil
	}
	for _, name := range remotes {
		if name == DefaultRemote {
			return name, nil
		}
	}
	return remotes[0], nil
}

// Pull fast-forwards the checked out branch to the remote copy of branchName
func Pull(ctx context.Context, r Runner, remote, branchName string) (string, error) {
	return r.Run(ctx, "pull", "--ff-only", "--no-rebase", remote, branchName)
}

// Push pushes branchName to the same name on remote
func Push(ctx context.Context, r Runner, remote, branchName string) (string, error) {
	return r.Run(ctx, "push", remote, fmt.Sprintf("refs/heads/%s:refs/heads/%s", branchName, branchName))
}

// RemoteURL returns the configured fetch URL of remote
func RemoteURL(ctx context.Context, r Runner, remote string) (string, error) {
	url, err := r.Run(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", fmt.Errorf("failed to read url of remote %s: %w", remote, err)
	}
	return url, nil
}
