// Package guard rejects merge targets that must never receive automated merges.
package guard

import (
	"sort"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
)

// Guard holds the protected branch set. Matching is exact and case-sensitive.
type Guard struct {
	protected map[string]struct{}
}

// New creates a Guard for the given branch names
func New(protected []string) *Guard {
	g := &Guard{protected: make(map[string]struct{}, len(protected))}
	for _, name := range protected {
		g.protected[name] = struct{}{}
	}
	return g
}

// IsProtected reports whether target is in the protected set
func (g *Guard) IsProtected(target string) bool {
	_, ok := g.protected[target]
	return ok
}

// Authorize returns a *ProtectedBranchError for protected targets and nil otherwise
func (g *Guard) Authorize(target string) error {
	if g.IsProtected(target) {
		return mgerrors.NewProtectedBranchError(target)
	}
	return nil
}

// Names returns the protected set, sorted
func (g *Guard) Names() []string {
	names := make([]string, 0, len(g.protected))
	for name := range g.protected {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
