// Package cli implements the mergeguard command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mergeguard.dev/mergeguard/internal/batch"
	mgerrors "mergeguard.dev/mergeguard/internal/errors"
	"mergeguard.dev/mergeguard/internal/runtime"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	dir        string
	configPath string
	debug      bool
}

// ExitError carries the process exit code for a failed invocation. Silent
// errors were already reported on the console.
type ExitError struct {
	Code   int
	Err    error
	Silent bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: batch.ExitUsage, Err: err}
}

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "mergeguard",
		Short: "Merge one branch into several targets without leaving the repository half-merged",
		Long: `mergeguard merges a source branch into one or more target branches.

Every merge happens on a temporary scratch branch. Targets that conflict or
fail are rolled back, the working tree is returned to the branch you started
on, and each target gets its own outcome. Protected branches never receive
automated merges.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.dir, "dir", "C", "", "Run as if mergeguard was started in this directory")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a config file (default: search the repository root)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Show debug output")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	rootCmd.AddCommand(newMergeCmd(flags))
	rootCmd.AddCommand(newSweepCmd(flags))
	rootCmd.AddCommand(newLogsCmd(flags))
	rootCmd.AddCommand(newConfigCmd(flags))

	return rootCmd
}

// Execute runs the command line and returns the process exit code
func Execute(ctx context.Context, version, commit, date string, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCmd(version, commit, date)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return batch.ExitOK
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || !exitErr.Silent {
		fmt.Fprintf(stderr, "❌ %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps an error returned by a command to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return batch.ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, mgerrors.ErrUnknownBranch) || errors.Is(err, mgerrors.ErrNotOnBranch) {
		return batch.ExitUsage
	}
	return batch.ExitFailure
}

// withContext builds the runtime context for cmd and closes it afterwards
func withContext(cmd *cobra.Command, flags *globalFlags, fn func(rc *runtime.Context) error) error {
	rc, err := runtime.NewContext(cmd.Context(), runtime.Options{
		Dir:        flags.dir,
		ConfigPath: flags.configPath,
		Out:        cmd.OutOrStdout(),
		Debug:      flags.debug,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = rc.Close()
	}()
	return fn(rc)
}
