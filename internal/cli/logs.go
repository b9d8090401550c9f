package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mergeguard.dev/mergeguard/internal/runlog"
	"mergeguard.dev/mergeguard/internal/runtime"
)

func newLogsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and prune run records",
		Long: `Every merge run writes a JSON record to <git-dir>/mergeguard/logs.

Retention keeps at most log_retention.week_max records from the last 7 days,
at most log_retention.month_max older ones, and nothing older than
log_retention.max_age. Retention also runs after every merge.`,
	}

	cmd.AddCommand(newLogsListCmd(flags))
	cmd.AddCommand(newLogsCleanCmd(flags))

	return cmd
}

func newLogsListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List run records, newest first",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContext(cmd, flags, func(rc *runtime.Context) error {
				entries, err := runlog.NewStore(rc.LogDir()).List()
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					rc.Splog.Info("No run records in %s", rc.LogDir())
					return nil
				}

				w := tabwriter.NewWriter(rc.Splog.Writer(), 0, 0, 2, ' ', 0)
				for _, e := range entries {
					rec, err := runlog.Read(e.Path)
					status := "?"
					if err == nil {
						status = "ok"
						if !rec.Success {
							status = fmt.Sprintf("exit %d", rec.ExitCode)
						}
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", e.At.Format("2006-01-02 15:04:05"), status, e.Name)
				}
				return w.Flush()
			})
		},
	}
}

func newLogsCleanCmd(flags *globalFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:          "clean",
		Short:        "Apply the retention policy to run records",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContext(cmd, flags, func(rc *runtime.Context) error {
				report, err := runlog.NewStore(rc.LogDir()).Clean(rc.Config.LogRetention, dryRun)
				if err != nil {
					return err
				}

				verb := "Removed"
				if dryRun {
					verb = "Would remove"
				}
				for _, e := range report.Removed {
					rc.Splog.Info("%s %s", verb, e.Name)
				}
				rc.Splog.Info("%s %d record(s), kept %d.", verb, len(report.Removed), len(report.Kept))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed without deleting anything")

	return cmd
}
