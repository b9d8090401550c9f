// Package git provides low-level Git operations.
//
// It wraps git command execution and provides a Go-friendly interface for:
//   - Branch management (create, delete, checkout, move)
//   - Merge operations (merge, abort, unmerged paths)
//   - Repo state queries (status, submodules, LFS, index flags)
//   - Remote operations (fetch, pull, push)
//
// Mutations go through a Runner so tests can inject faults. Read-only history
// queries (ahead counts, branch listings, tree diffs) use go-git.
//
// This package should be the only place where direct git commands are executed.
package git
