package cli

import (
	"github.com/spf13/cobra"

	"mergeguard.dev/mergeguard/internal/runtime"
)

// newConfigCmd creates the config command
func newConfigCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration mergeguard would use in this repository, after
defaults, the config file and MERGEGUARD_* environment overrides are applied.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContext(cmd, flags, func(rc *runtime.Context) error {
				data, err := rc.Config.Marshal()
				if err != nil {
					return err
				}
				if rc.ConfigPath != "" {
					rc.Splog.Info("# from %s", rc.ConfigPath)
				} else {
					rc.Splog.Info("# defaults (no config file found)")
				}
				if rc.Remote != "" {
					rc.Splog.Info("# remote: %s", rc.Remote)
				}
				rc.Splog.Page(string(data))
				return nil
			})
		},
	}
}
