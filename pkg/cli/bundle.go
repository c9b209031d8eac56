package cli

import (
	"time"

	"github.com/spf13/cobra"
)

type bundleRow struct {
	Hash      string `json:"content_hash"`
	Status    string `json:"status"`
	Location  string `json:"location"`
	UpdatedAt string `json:"updated_at"`
	Reason    string `json:"reason,omitempty"`
}

func NewBuildCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "build <ref>",
		Short: "Materialize a runtime bundle for a model reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, b, err := root.Engine().Materialize(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintOutput(struct {
				Model    string `json:"model"`
				Repo     string `json:"repo"`
				Hash     string `json:"content_hash"`
				Location string `json:"location"`
			}{
				Model:    rec.Ref(),
				Repo:     rec.SourceAlias,
				Hash:     rec.ContentHash,
				Location: b.Location,
			}, root.OutputOptions())
		},
	}
}

func NewBundleCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Inspect cached runtime bundles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cached bundles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bundles, err := root.Engine().Bundles(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([]bundleRow, 0, len(bundles))
			for _, b := range bundles {
				rows = append(rows, bundleRow{
					Hash:      shortRevision(b.ContentHash),
					Status:    string(b.Status),
					Location:  b.Location,
					UpdatedAt: b.UpdatedAt.Local().Format(time.RFC3339),
					Reason:    b.Reason,
				})
			}
			return PrintOutput(rows, root.OutputOptions())
		},
	})

	return cmd
}
