package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/indexer"
)

func newBuildCmd(opts *rootOptions, incremental bool) *cobra.Command {
	use, short := indexer.ModeBuild, "Rebuild the index from every record"
	if incremental {
		use, short = indexer.ModeUpdate, "Index records appended since the last snapshot"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.open(ctx, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			engine := c.Engine()
			run := engine.Build
			if incremental {
				if _, err := engine.Open(ctx); err != nil {
					return err
				}
				run = engine.Update
			}
			state, err := run(ctx)
			if err != nil {
				return err
			}
			stats := state.Snapshot.Statistics()
			fmt.Fprintf(cmd.OutOrStdout(), "%s complete: %d documents, %d terms, average length %.2f\n",
				use, stats.TotalDocuments, stats.TotalTerms, stats.AverageDocumentLength)
			return nil
		},
	}
}
