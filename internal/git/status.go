package git

import (
	"context"
	"fmt"
	"strings"
)

// StatusEntry is one line of `git status --porcelain`
type StatusEntry struct {
	// Code is the two-letter XY status code
	Code string
	Path string
}

// Status returns the porcelain status of the working tree, listing every
// untracked file individually
func Status(ctx context.Context, r Runner) ([]StatusEntry, error) {
	out, err := r.RunRaw(ctx, "status", "--porcelain=v1", "--untracked-files=all")
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}

	var entries []StatusEntry
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		path := line[3:]
		// Renames are reported as "old -> new"
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		entries = append(entries, StatusEntry{Code: line[:2], Path: strings.Trim(path, `"`)})
	}
	return entries, nil
}

// SubmoduleStatus returns `git submodule status` lines. The first character
// is ' ' for an in-sync submodule, '+' for a checked out commit that differs
// from the index, '-' for an uninitialized one and 'U' for merge conflicts.
func SubmoduleStatus(ctx context.Context, r Runner) ([]string, error) {
	out, err := r.RunRaw(ctx, "submodule", "status")
	if err != nil {
		return nil, fmt.Errorf("failed to read submodule status: %w", err)
	}
	var result []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result, nil
}

// LFSAvailable reports whether the git-lfs extension is installed
func LFSAvailable(ctx context.Context, r Runner) bool {
	_, err := r.Run(ctx, "lfs", "version")
	return err == nil
}

// LFSStatus returns the output of `git lfs status`
func LFSStatus(ctx context.Context, r Runner) (string, error) {
	out, err := r.Run(ctx, "lfs", "status")
	if err != nil {
		return "", fmt.Errorf("failed to read lfs status: %w", err)
	}
	return out, nil
}

// AssumeUnchangedFiles returns tracked paths flagged with --assume-unchanged.
// `git ls-files -v` tags them with a lowercase letter.
func AssumeUnchangedFiles(ctx context.Context, r Runner) ([]string, error) {
	out, err := r.RunRaw(ctx, "ls-files", "-v")
	if err != nil {
		return nil, fmt.Errorf("failed to list index flags: %w", err)
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "h ") {
			files = append(files, line[2:])
		}
	}
	return files, nil
}
