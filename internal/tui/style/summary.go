// Package style renders the end-of-run output: the per-target summary table
// and conflict resolution advice.
package style

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"mergeguard.dev/mergeguard/internal/batch"
	"mergeguard.dev/mergeguard/internal/conflict"
	"mergeguard.dev/mergeguard/internal/executor"
)

var symbols = map[executor.Kind]string{
	executor.KindSuccess:  "✅",
	executor.KindSkipped:  "⏭️ ",
	executor.KindConflict: "⚠️ ",
	executor.KindRejected: "❌",
	executor.KindFailed:   "❌",
}

var colors = map[executor.Kind]lipgloss.Color{
	executor.KindSuccess:  lipgloss.Color("2"),
	executor.KindSkipped:  lipgloss.Color("8"),
	executor.KindConflict: lipgloss.Color("3"),
	executor.KindRejected: lipgloss.Color("1"),
	executor.KindFailed:   lipgloss.Color("1"),
}

// Renderer styles output for one writer. Color is dropped when the writer is
// not a terminal or NO_COLOR is set.
type Renderer struct {
	r *lipgloss.Renderer
}

// NewRenderer detects the color profile of w
func NewRenderer(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
	return &Renderer{r: r}
}

// NewRendererWithProfile forces a color profile
func NewRendererWithProfile(w io.Writer, profile termenv.Profile) *Renderer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)
	return &Renderer{r: r}
}

func (s *Renderer) fg(color lipgloss.Color, text string) string {
	return s.r.NewStyle().Foreground(color).Render(text)
}

func (s *Renderer) bold(text string) string {
	return s.r.NewStyle().Bold(true).Render(text)
}

func (s *Renderer) dim(text string) string {
	return s.fg(lipgloss.Color("8"), text)
}

// Summary renders one line per target, the totals and the run record path
func (s *Renderer) Summary(res batch.Result, recordPath string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", s.bold(fmt.Sprintf("Merge summary for %s", res.Request.Source)))

	width := 0
	for _, o := range res.Outcomes {
		if len(o.Target) > width {
			width = len(o.Target)
		}
	}

	for _, o := range res.Outcomes {
		name := fmt.Sprintf("%-*s", width, o.Target)
		fmt.Fprintf(&b, "  %s %s  %s\n", symbols[o.Kind], s.fg(colors[o.Kind], name), describe(o))
		for _, w := range o.Warnings {
			fmt.Fprintf(&b, "     %s\n", s.dim("⚠️  "+w))
		}
	}

	fmt.Fprintf(&b, "\n%s\n", Counts(res))
	if recordPath != "" {
		fmt.Fprintf(&b, "%s\n", s.dim("Run record: "+recordPath))
	}
	return b.String()
}

// Counts renders the per-kind totals in a fixed order
func Counts(res batch.Result) string {
	counts := res.Counts()
	return fmt.Sprintf("%d merged, %d skipped, %d conflicted, %d rejected, %d failed",
		counts[executor.KindSuccess],
		counts[executor.KindSkipped],
		counts[executor.KindConflict],
		counts[executor.KindRejected],
		counts[executor.KindFailed],
	)
}

func describe(o executor.Outcome) string {
	switch o.Kind {
	case executor.KindSuccess:
		if o.MergeCommit != "" {
			return fmt.Sprintf("merged (%s)", shortSHA(o.MergeCommit))
		}
		return "merged"
	case executor.KindConflict:
		return fmt.Sprintf("conflict in %d file(s): %s", len(o.Files), strings.Join(o.Files, ", "))
	}
	if o.Reason != "" {
		return o.Reason
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return string(o.Kind)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// Advice renders the conflict analysis and the commands to resolve it by hand
func (s *Renderer) Advice(advice *conflict.Advice) string {
	if advice == nil {
		return ""
	}
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", s.bold(fmt.Sprintf("Conflicts merging %s into %s (%d block(s))",
		advice.Source, advice.Target, advice.TotalBlocks)))
	for _, f := range advice.Files {
		fmt.Fprintf(&b, "  %s %s\n", s.fg(lipgloss.Color("3"), f.Path), s.dim(fmt.Sprintf("[%s, %d block(s)]", f.Language, len(f.Hunks))))
		if !f.MarkersValid() {
			fmt.Fprintf(&b, "     %s\n", s.fg(lipgloss.Color("1"), "conflict markers are unbalanced"))
		}
		for _, suggestion := range f.Suggestions {
			fmt.Fprintf(&b, "     - %s\n", suggestion)
		}
	}

	if len(advice.Commands) > 0 {
		fmt.Fprintf(&b, "\n%s\n", s.bold("To resolve manually:"))
		for _, cmd := range advice.Commands {
			fmt.Fprintf(&b, "  %s\n", cmd)
		}
	}
	return b.String()
}
