package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee-cs-bmsit/structsight/internal/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Format == "json" {
				return encodeJSON(cmd, map[string]string{
					"version":   version.Version,
					"gitCommit": version.GitCommit,
					"buildDate": version.BuildDate,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}
}
