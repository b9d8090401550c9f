// Package resolve turns the branch names given on the command line into
// verified merge targets.
package resolve

import (
	"context"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
)

// maxSuggestions caps the "did you mean" list
const maxSuggestions = 3

// BranchRef is a target that exists locally, on the remote, or both
type BranchRef struct {
	Name   string
	Local  bool
	Remote bool
}

// BranchResolver turns requested names into targets. An unresolvable name
// yields an *UnknownBranchError carrying suggestions.
type BranchResolver interface {
	Resolve(ctx context.Context, names []string) ([]BranchRef, error)
}

// BranchLister is the read side of the repository the resolvers need.
// *git.Repository satisfies it.
type BranchLister interface {
	LocalBranchNames() ([]string, error)
	RemoteBranchNames(remote string) ([]string, error)
}

// Explicit resolves names exactly as given. An empty list resolves to the
// default target.
type Explicit struct {
	branches      BranchLister
	remote        string
	defaultTarget string
}

// NewExplicit creates an Explicit resolver
func NewExplicit(branches BranchLister, remote, defaultTarget string) *Explicit {
	return &Explicit{branches: branches, remote: remote, defaultTarget: defaultTarget}
}

// Resolve implements BranchResolver. Duplicates are dropped, order is kept.
func (e *Explicit) Resolve(_ context.Context, names []string) ([]BranchRef, error) {
	if len(normalize(names)) == 0 && e.defaultTarget != "" {
		names = []string{e.defaultTarget}
	}
	known, err := e.known()
	if err != nil {
		return nil, err
	}

	var refs []BranchRef
	for _, name := range normalize(names) {
		ref, ok := known[name]
		if !ok {
			return nil, mgerrors.NewUnknownBranchError(name, Suggest(name, keys(known)))
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (e *Explicit) known() (map[string]BranchRef, error) {
	local, err := e.branches.LocalBranchNames()
	if err != nil {
		return nil, err
	}
	remote, err := e.branches.RemoteBranchNames(e.remote)
	if err != nil {
		return nil, err
	}

	known := map[string]BranchRef{}
	for _, name := range local {
		known[name] = BranchRef{Name: name, Local: true}
	}
	for _, name := range remote {
		ref := known[name]
		ref.Name = name
		ref.Remote = true
		known[name] = ref
	}
	return known, nil
}

// Suggest returns up to three candidates close to name. Candidates that
// contain name as a fuzzy subsequence rank first, then candidates that are
// themselves a subsequence of name.
func Suggest(name string, candidates []string) []string {
	if name == "" || len(candidates) == 0 {
		return nil
	}
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if !seen[s] && s != name && len(out) < maxSuggestions {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, m := range fuzzy.Find(name, sorted) {
		add(m.Str)
	}
	for _, candidate := range sorted {
		if len(fuzzy.Find(candidate, []string{name})) > 0 {
			add(candidate)
		}
	}
	return out
}

func normalize(names []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func keys(m map[string]BranchRef) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
