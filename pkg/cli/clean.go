package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewCleanCommand(root *RootCommand) *cobra.Command {
	var bundles, mirrors bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove cached bundles and mirrored repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No selector means clean everything.
			if !bundles && !mirrors {
				bundles, mirrors = true, true
			}
			if bundles {
				removed, err := root.Engine().Clean(cmd.Context())
				if err != nil {
					return err
				}
				PrintSuccess(fmt.Sprintf("Removed %d bundle record(s)", removed), root.OutputOptions())
			}
			if mirrors {
				purged, err := root.Engine().CleanMirrors(cmd.Context())
				if err != nil {
					return err
				}
				PrintSuccess(fmt.Sprintf("Purged %d mirror(s)", purged), root.OutputOptions())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&bundles, "bundles", false, "remove cached bundles only")
	cmd.Flags().BoolVar(&mirrors, "mirrors", false, "remove mirrored repositories only")
	return cmd
}
