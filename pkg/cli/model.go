package cli

import (
	"github.com/spf13/cobra"

	"github.com/ydideh810/nidamllm/pkg/recipe"
)

type modelRow struct {
	Model   string `json:"model"`
	Repo    string `json:"repo"`
	Project string `json:"project"`
	Engine  string `json:"engine_model"`
	Hash    string `json:"content_hash"`
}

func modelRowFrom(rec recipe.Record) modelRow {
	return modelRow{
		Model:   rec.Ref(),
		Repo:    rec.SourceAlias,
		Project: rec.Project,
		Engine:  rec.EngineConfig.Model,
		Hash:    shortRevision(rec.ContentHash),
	}
}

func NewModelCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Browse and inspect catalog models",
	}

	cmd.AddCommand(newModelListCommand(root))
	cmd.AddCommand(newModelGetCommand(root))

	return cmd
}

func newModelListCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:     "list [prefix]",
		Aliases: []string{"ls"},
		Short:   "List catalog models, optionally filtered by name prefix",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			records, err := root.Engine().List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			rows := make([]modelRow, 0, len(records))
			for _, rec := range records {
				rows = append(rows, modelRowFrom(rec))
			}
			return PrintOutput(rows, root.OutputOptions())
		},
	}
}

func newModelGetCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "get <ref>",
		Short: "Show the resolved recipe for a model reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := root.Engine().Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return PrintOutput(rec, root.OutputOptions())
		},
	}
}
