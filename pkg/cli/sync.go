package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type syncRow struct {
	Alias    string `json:"alias"`
	Status   string `json:"status"`
	Revision string `json:"revision"`
	Error    string `json:"error,omitempty"`
}

func NewSyncCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh all repository mirrors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(root, cmd)
		},
	}
}

func runSync(root *RootCommand, cmd *cobra.Command) error {
	report, err := root.Engine().Sync(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([]syncRow, 0, len(report.Entries))
	for _, e := range report.Entries {
		row := syncRow{
			Alias:    e.Alias,
			Status:   string(e.Mirror.Status),
			Revision: shortRevision(e.Mirror.Revision),
		}
		if e.Err != nil {
			row.Error = e.Err.Error()
		}
		rows = append(rows, row)
	}
	if err := PrintOutput(rows, root.OutputOptions()); err != nil {
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d repositories failed to sync", len(failed), len(report.Entries))
	}
	return nil
}
