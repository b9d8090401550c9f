package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mergeguard.dev/mergeguard/internal/batch"
	mgerrors "mergeguard.dev/mergeguard/internal/errors"
	"mergeguard.dev/mergeguard/internal/executor"
	"mergeguard.dev/mergeguard/internal/git"
	"mergeguard.dev/mergeguard/internal/guard"
	"mergeguard.dev/mergeguard/internal/lock"
	"mergeguard.dev/mergeguard/internal/resolve"
	"mergeguard.dev/mergeguard/internal/runlog"
	"mergeguard.dev/mergeguard/internal/runtime"
	"mergeguard.dev/mergeguard/internal/tui/style"
)

type mergeOptions struct {
	source      string
	interactive bool
}

func newMergeCmd(flags *globalFlags) *cobra.Command {
	opts := mergeOptions{}

	cmd := &cobra.Command{
		Use:   "merge [targets...]",
		Short: "Merge the source branch into each target",
		Long: `Merge the source branch (the current branch unless --source is given) into
each target in order. With no targets the configured default_target is used.

Each target is merged on a scratch branch, pushed when the target exists on
the remote, and rolled back on conflict or failure. One target failing does
not stop the others.

Exit status is 0 when every target merged or was already up to date, 1 when
any target conflicted, failed or was rejected, and 2 for invalid invocations.`,
		Example: `  mergeguard merge test dev
  mergeguard merge --source feature/login staging
  mergeguard merge --interactive`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, flags, func(rc *runtime.Context) error {
				return runMerge(rc, opts, args)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Branch to merge from (default: the current branch)")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Choose targets from the remote branch list")

	return cmd
}

func runMerge(rc *runtime.Context, opts mergeOptions, args []string) error {
	splog := rc.Splog

	source, err := resolveSource(rc, opts.source)
	if err != nil {
		return err
	}

	g := guard.New(rc.Config.ProtectedBranches)
	var resolver resolve.BranchResolver = resolve.NewExplicit(rc.Repo, rc.Remote, rc.Config.DefaultTarget)
	if opts.interactive {
		resolver = resolve.NewInteractive(rc.Repo, rc.Remote, g, splog.Writer())
	}
	refs, err := resolver.Resolve(rc, args)
	if err != nil {
		if errors.Is(err, resolve.ErrNotInteractive) {
			return usageError(err)
		}
		return err
	}

	targets := make([]string, 0, len(refs))
	for _, ref := range refs {
		targets = append(targets, ref.Name)
	}
	req, err := executor.NewRequest(source, targets, time.Now())
	if err != nil {
		return usageError(err)
	}

	exec := executor.New(executor.Options{
		Runner: rc.Runner,
		Config: rc.Config,
		Remote: rc.Remote,
		Log:    splog,
	})
	coord := batch.New(lock.New(rc.StateDir()), exec.Scratch(), exec, splog)

	splog.Info("Merging %s into %d target(s)", source, len(targets))
	result, err := coord.Run(rc, req)
	if err != nil {
		if errors.Is(err, mgerrors.ErrRepoBusy) {
			splog.Tip("wait for the other mergeguard run to finish, or remove %s if none is running", lock.New(rc.StateDir()).Path())
		}
		return &ExitError{Code: batch.ExitFailure, Err: err}
	}

	recordPath := writeRecord(rc, result)
	report(rc, result, recordPath)

	if code := result.ExitCode(); code != batch.ExitOK {
		return &ExitError{Code: code, Silent: true}
	}
	return nil
}

// resolveSource returns the explicit source or the current branch. The
// source must exist locally or on the remote.
func resolveSource(rc *runtime.Context, explicit string) (string, error) {
	source := explicit
	if source == "" {
		current, err := git.CurrentBranch(rc, rc.Runner)
		if err != nil {
			return "", usageError(fmt.Errorf("HEAD is detached; pass --source: %w", err))
		}
		source = current
	}

	refs, err := resolve.NewExplicit(rc.Repo, rc.Remote, "").Resolve(rc, []string{source})
	if err != nil {
		return "", err
	}
	return refs[0].Name, nil
}

// writeRecord persists the run and applies log retention. Failures only warn.
func writeRecord(rc *runtime.Context, result batch.Result) string {
	store := runlog.NewStore(rc.LogDir())
	path, err := store.Write(runlog.FromResult(result))
	if err != nil {
		rc.Splog.Warn("failed to write run record: %v", err)
		path = ""
	}
	cleaned, err := store.Clean(rc.Config.LogRetention, false)
	if err != nil {
		rc.Splog.Warn("failed to clean old run records: %v", err)
	} else if len(cleaned.Removed) > 0 {
		rc.Splog.Debug("removed %d old run record(s)", len(cleaned.Removed))
	}
	return path
}

func report(rc *runtime.Context, result batch.Result, recordPath string) {
	splog := rc.Splog
	renderer := style.NewRenderer(splog.Writer())

	splog.Newline()
	splog.Page(renderer.Summary(result, recordPath))

	tipped := false
	for _, o := range result.Outcomes {
		if o.Advice != nil {
			splog.Newline()
			splog.Page(renderer.Advice(o.Advice))
		}
		var envErr *mgerrors.EnvironmentError
		if !tipped && errors.As(o.Err, &envErr) {
			tipped = true
			for _, s := range envErr.Suggestions {
				splog.Tip("%s", s)
			}
		}
	}
}
