// Package status decides whether the working tree is safe to merge from.
package status

import (
	"context"
	"fmt"
	"path"
	"strings"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
	"mergeguard.dev/mergeguard/internal/git"
)

const untracked = "??"

// Report is the result of inspecting the working tree
type Report struct {
	// Changes are porcelain entries not covered by the ignore list
	Changes []git.StatusEntry
	// Ignored are untracked porcelain entries covered by the ignore list
	Ignored []git.StatusEntry

	Submodules      []string
	LFSLocked       []string
	AssumeUnchanged []string
	MergeInProgress bool
}

// Ready reports whether nothing blocks a merge
func (r Report) Ready() bool {
	return len(r.Changes) == 0 &&
		len(r.Submodules) == 0 &&
		len(r.LFSLocked) == 0 &&
		len(r.AssumeUnchanged) == 0 &&
		!r.MergeInProgress
}

// Reason is a one-line summary of what blocks the merge
func (r Report) Reason() string {
	var parts []string
	if r.MergeInProgress {
		parts = append(parts, "a merge is already in progress")
	}
	if n := len(r.Changes); n > 0 {
		parts = append(parts, fmt.Sprintf("%d uncommitted change(s)", n))
	}
	if n := len(r.Submodules); n > 0 {
		parts = append(parts, fmt.Sprintf("%d submodule(s) out of sync", n))
	}
	if n := len(r.LFSLocked); n > 0 {
		parts = append(parts, fmt.Sprintf("%d LFS locked file(s)", n))
	}
	if n := len(r.AssumeUnchanged); n > 0 {
		parts = append(parts, fmt.Sprintf("%d assume-unchanged file(s)", n))
	}
	return strings.Join(parts, "; ")
}

// Suggestions lists commands that clear each blocking condition
func (r Report) Suggestions() []string {
	var s []string
	if r.MergeInProgress {
		s = append(s, "finish or abort the current merge: git merge --abort")
	}
	if len(r.Changes) > 0 {
		s = append(s, "commit your changes: git commit -am 'save work'", "or stash them: git stash")
	}
	if len(r.Submodules) > 0 {
		s = append(s, "update submodules: git submodule update", "or commit inside the submodule")
	}
	if len(r.LFSLocked) > 0 {
		s = append(s, "list locks: git lfs locks", "unlock: git lfs unlock <file>")
	}
	if len(r.AssumeUnchanged) > 0 {
		s = append(s, "list flagged files: git ls-files -v", "restore tracking: git update-index --no-assume-unchanged <file>")
	}
	return s
}

// Checker inspects a working tree. It never mutates repository state.
type Checker struct {
	runner      git.Runner
	ignorePaths []string
}

// NewChecker creates a Checker that skips untracked entries matching
// ignorePaths. An entry ending in "/" matches a directory prefix, any other
// entry matches a full path or a base name. Tracked files under an ignored
// path still block: rollback resets tracked content.
func NewChecker(runner git.Runner, ignorePaths []string) *Checker {
	return &Checker{runner: runner, ignorePaths: append([]string(nil), ignorePaths...)}
}

// Inspect collects the full Report
func (c *Checker) Inspect(ctx context.Context) (Report, error) {
	var report Report

	entries, err := git.Status(ctx, c.runner)
	if err != nil {
		return report, err
	}
	for _, e := range entries {
		if e.Code == untracked && c.ignored(e.Path) {
			report.Ignored = append(report.Ignored, e)
			continue
		}
		report.Changes = append(report.Changes, e)
	}

	report.MergeInProgress = git.MergeInProgress(ctx, c.runner)

	// Repos without submodules print nothing; a failing command is not a blocker
	if subs, err := git.SubmoduleStatus(ctx, c.runner); err == nil {
		report.Submodules = parseSubmoduleStatus(subs)
	}

	if git.LFSAvailable(ctx, c.runner) {
		if out, err := git.LFSStatus(ctx, c.runner); err == nil {
			report.LFSLocked = parseLFSLocked(out)
		}
	}

	flagged, err := git.AssumeUnchangedFiles(ctx, c.runner)
	if err != nil {
		return report, err
	}
	report.AssumeUnchanged = flagged

	return report, nil
}

// Check returns nil when the tree is Ready and an *EnvironmentError naming
// the blocking condition otherwise
func (c *Checker) Check(ctx context.Context) error {
	report, err := c.Inspect(ctx)
	if err != nil {
		return mgerrors.NewEnvironmentError(fmt.Sprintf("unable to read repository status: %v", err), nil)
	}
	if !report.Ready() {
		return mgerrors.NewEnvironmentError(report.Reason(), report.Suggestions())
	}
	return nil
}

// parseSubmoduleStatus returns the submodules that block a merge. '+' is a
// checked out commit that differs from the index, 'U' a conflicted
// submodule. '-' (not initialized) and ' ' (in sync) do not block.
func parseSubmoduleStatus(lines []string) []string {
	var blocked []string
	for _, line := range lines {
		if line == "" {
			continue
		}
		switch line[0] {
		case '+', 'U':
			fields := strings.Fields(line[1:])
			if len(fields) >= 2 {
				blocked = append(blocked, fields[1])
			} else {
				blocked = append(blocked, strings.TrimSpace(line[1:]))
			}
		}
	}
	return blocked
}

// parseLFSLocked returns the lines of `git lfs status` output that mention a lock
func parseLFSLocked(out string) []string {
	var locked []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(strings.ToLower(line), "locked") {
			locked = append(locked, strings.TrimSpace(line))
		}
	}
	return locked
}

func (c *Checker) ignored(p string) bool {
	for _, pattern := range c.ignorePaths {
		if pattern == "" {
			continue
		}
		if strings.HasSuffix(pattern, "/") {
			if strings.HasPrefix(p, pattern) || strings.Contains(p, "/"+pattern) || p+"/" == pattern {
				return true
			}
			continue
		}
		if p == pattern || path.Base(p) == pattern {
			return true
		}
	}
	return false
}
