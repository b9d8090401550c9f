package cli

import (
	"github.com/spf13/cobra"

	"mergeguard.dev/mergeguard/internal/lock"
	"mergeguard.dev/mergeguard/internal/runtime"
	"mergeguard.dev/mergeguard/internal/scratch"
)

func newSweepCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete scratch branches left behind by an interrupted run",
		Long: `Delete every local branch named merge-<source>-to-<target>-<timestamp>.
These are only left behind when a run was killed. Every merge run also
sweeps on startup.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContext(cmd, flags, runSweep)
		},
	}
}

func runSweep(rc *runtime.Context) error {
	l := lock.New(rc.StateDir())
	if err := l.Acquire(); err != nil {
		return err
	}
	defer func() {
		_ = l.Release()
	}()

	swept, err := scratch.NewManager(rc.Runner, rc.Splog).Sweep(rc)
	for _, name := range swept {
		rc.Splog.Info("Deleted %s", name)
	}
	if err != nil {
		return err
	}
	if len(swept) == 0 {
		rc.Splog.Info("No scratch branches found.")
	}
	return nil
}
