package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee-cs-bmsit/structsight/internal/cache"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the analysis result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove all cached results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cache.Open(rootOpts.Config.Cache.Dir, 0)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open cache", err)
			}
			if err := c.Clean(); err != nil {
				return WrapExitError(ExitFailure, "failed to clean cache", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache cleaned: %s\n", c.Dir())
			return nil
		},
	})

	return cmd
}
