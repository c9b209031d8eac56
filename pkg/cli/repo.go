package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// sourceRow is the table/json shape of one registered source.
type sourceRow struct {
	Alias    string `json:"alias"`
	URL      string `json:"url"`
	Default  bool   `json:"default"`
	Status   string `json:"status"`
	Revision string `json:"revision"`
	SyncedAt string `json:"synced_at"`
}

func NewRepoCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage recipe repositories",
		Long:  "Register, inspect and remove the repositories models are resolved from.",
	}

	cmd.AddCommand(newRepoAddCommand(root))
	cmd.AddCommand(newRepoRemoveCommand(root))
	cmd.AddCommand(newRepoListCommand(root))
	cmd.AddCommand(newRepoDefaultCommand(root))
	cmd.AddCommand(newRepoUpdateCommand(root))

	return cmd
}

func newRepoAddCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "add <alias> <url>",
		Short: "Register a repository",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := root.Engine().AddSource(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			PrintSuccess(fmt.Sprintf("Registered repository %q (%s)", src.Alias, src.URL), root.OutputOptions())
			return nil
		},
	}
}

func newRepoRemoveCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <alias>",
		Aliases: []string{"rm"},
		Short:   "Remove a repository",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.Engine().RemoveSource(cmd.Context(), args[0]); err != nil {
				return err
			}
			PrintSuccess(fmt.Sprintf("Removed repository %q", args[0]), root.OutputOptions())
			return nil
		},
	}
}

func newRepoListCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered repositories",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := root.Engine().SourceStatuses(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([]sourceRow, 0, len(statuses))
			for _, st := range statuses {
				row := sourceRow{
					Alias:   st.Source.Alias,
					URL:     st.Source.URL,
					Default: st.Source.Default,
				}
				if st.Synced {
					row.Status = string(st.Mirror.Status)
					row.Revision = shortRevision(st.Mirror.Revision)
					row.SyncedAt = st.Mirror.LastSyncedAt.Local().Format(time.RFC3339)
				} else {
					row.Status = "never synced"
				}
				rows = append(rows, row)
			}
			return PrintOutput(rows, root.OutputOptions())
		},
	}
}

func newRepoDefaultCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "default <alias>",
		Short: "Mark a repository as the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.Engine().SetDefaultSource(cmd.Context(), args[0]); err != nil {
				return err
			}
			PrintSuccess(fmt.Sprintf("Default repository is now %q", args[0]), root.OutputOptions())
			return nil
		},
	}
}

func newRepoUpdateCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refresh all repository mirrors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(root, cmd)
		},
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
