package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewReindexCommand creates the reindex command.
func NewReindexCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the graph",
		Long: `Re-upsert the search document of every live node. Use it after the
search backend was unavailable or replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, cleanup, err := startGraph(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := container.Engine.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			text := fmt.Sprintf("indexed %d nodes, %d failed", result.Indexed, result.Failed)
			if err := output(cmd.OutOrStdout(), rootOpts.Format, result, text); err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d nodes could not be indexed", result.Failed)
			}
			return nil
		},
	}
}
