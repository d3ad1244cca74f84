package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/searcher/executor"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var topTerms int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index and corpus statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := opts.open(ctx, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			snap, err := c.Store.Load(ctx)
			if err != nil {
				return err
			}
			exec := executor.New(nil)
			if err := exec.Reload(ctx, c.Store, c.Source); err != nil {
				return err
			}
			corpus, err := exec.Corpus()
			if err != nil {
				return err
			}

			type termCount struct {
				Term      string `json:"term"`
				Documents int    `json:"documents"`
			}
			top := make([]termCount, 0, topTerms)
			for _, e := range snap.Index.TopTerms(topTerms) {
				top = append(top, termCount{Term: e.Term, Documents: len(e.Postings)})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(struct {
				executor.CorpusStats
				UpdatedAt string      `json:"updated_at"`
				TopTerms  []termCount `json:"top_terms"`
			}{corpus, snap.Meta.UpdatedAt.Format("2006-01-02 15:04:05Z07:00"), top}); err != nil {
				return fmt.Errorf("writing stats: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topTerms, "top", 10, "Number of most frequent terms to list")
	return cmd
}
