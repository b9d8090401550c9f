package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
)

// ErrNotInteractive is returned when a prompt is needed but stdin or stdout
// is not a terminal
var ErrNotInteractive = errors.New("interactive selection requires a terminal")

// ProtectionChecker reports whether a branch may not be selected
type ProtectionChecker interface {
	IsProtected(name string) bool
}

// Interactive lists the remote branches and lets the user pick targets by
// number or name. Names given up front are resolved like Explicit, but an
// unknown name offers its suggestions instead of failing outright.
type Interactive struct {
	explicit  *Explicit
	branches  BranchLister
	remote    string
	protected ProtectionChecker
	out       io.Writer
	isTTY     func() bool
}

// NewInteractive creates an Interactive resolver writing the branch list to out
func NewInteractive(branches BranchLister, remote string, protected ProtectionChecker, out io.Writer) *Interactive {
	return &Interactive{
		explicit:  NewExplicit(branches, remote, ""),
		branches:  branches,
		remote:    remote,
		protected: protected,
		out:       out,
		isTTY:     stdioIsTerminal,
	}
}

// Resolve implements BranchResolver
func (r *Interactive) Resolve(ctx context.Context, names []string) ([]BranchRef, error) {
	if len(normalize(names)) > 0 {
		return r.resolveNamed(ctx, names)
	}

	options, err := r.options()
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("no branches to choose from")
	}
	if !r.isTTY() {
		return nil, ErrNotInteractive
	}

	fmt.Fprintln(r.out, "Available branches:")
	for i, name := range options {
		marker := ""
		if r.protected.IsProtected(name) {
			marker = " (protected)"
		}
		fmt.Fprintf(r.out, "  %2d. %s%s\n", i+1, name, marker)
	}

	var answer string
	prompt := &survey.Input{
		Message: "Merge into (numbers or names, separated by spaces or commas):",
	}
	validate := func(ans interface{}) error {
		s, _ := ans.(string)
		_, err := ParseSelection(s, options, r.protected)
		return err
	}
	if err := survey.AskOne(prompt, &answer, survey.WithValidator(validate)); err != nil {
		return nil, fmt.Errorf("canceled")
	}

	selected, err := ParseSelection(answer, options, r.protected)
	if err != nil {
		return nil, err
	}
	return r.explicit.Resolve(ctx, selected)
}

func (r *Interactive) resolveNamed(ctx context.Context, names []string) ([]BranchRef, error) {
	var refs []BranchRef
	for _, name := range normalize(names) {
		resolved, err := r.explicit.Resolve(ctx, []string{name})
		var unknown *mgerrors.UnknownBranchError
		if errors.As(err, &unknown) && len(unknown.Suggestions) > 0 && r.isTTY() {
			choice, askErr := r.pickSuggestion(unknown)
			if askErr != nil {
				return nil, askErr
			}
			if choice == "" {
				return nil, err
			}
			resolved, err = r.explicit.Resolve(ctx, []string{choice})
		}
		if err != nil {
			return nil, err
		}
		refs = append(refs, resolved...)
	}
	return refs, nil
}

func (r *Interactive) pickSuggestion(unknown *mgerrors.UnknownBranchError) (string, error) {
	const none = "none of these"
	var choice string
	prompt := &survey.Select{
		Message: fmt.Sprintf("Branch %s does not exist. Did you mean:", unknown.BranchName),
		Options: append(append([]string(nil), unknown.Suggestions...), none),
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", fmt.Errorf("canceled")
	}
	if choice == none {
		return "", nil
	}
	return choice, nil
}

// options lists the remote branches, or the local ones when there is no remote
func (r *Interactive) options() ([]string, error) {
	if r.remote != "" {
		names, err := r.branches.RemoteBranchNames(r.remote)
		if err != nil {
			return nil, err
		}
		if len(names) > 0 {
			return names, nil
		}
	}
	return r.branches.LocalBranchNames()
}

// ParseSelection turns a prompt answer into branch names. Each token is
// either a 1-based index into options or a branch name from options.
// Protected branches are refused.
func ParseSelection(input string, options []string, protected ProtectionChecker) ([]string, error) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("select at least one branch")
	}

	var selected []string
	for _, field := range fields {
		name := field
		if n, err := strconv.Atoi(field); err == nil {
			if n < 1 || n > len(options) {
				return nil, fmt.Errorf("%d is not between 1 and %d", n, len(options))
			}
			name = options[n-1]
		} else if !containsString(options, field) {
			return nil, mgerrors.NewUnknownBranchError(field, Suggest(field, options))
		}
		if protected != nil && protected.IsProtected(name) {
			return nil, mgerrors.NewProtectedBranchError(name)
		}
		selected = append(selected, name)
	}
	return normalize(selected), nil
}

func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

func stdioIsTerminal() bool {
	in := os.Stdin.Fd()
	out := os.Stdout.Fd()
	return (isatty.IsTerminal(in) || isatty.IsCygwinTerminal(in)) &&
		(isatty.IsTerminal(out) || isatty.IsCygwinTerminal(out))
}
