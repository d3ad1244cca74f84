package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/pubsearch/internal/searcher/executor"
)

type searchOptions struct {
	query  string
	author string
	year   string
	limit  int
	format string
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var so searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the persisted index",
		Long: `Search the persisted index by free text, author substring and/or year.
Supplied criteria are combined with AND.

Examples:
  pubsearch search "international trade"
  pubsearch search --author smith --year 2020
  pubsearch search trade --author smith --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			criteria := executor.Criteria{Text: so.query, Author: so.author}
			if len(args) > 0 {
				criteria.Text = strings.Join(append([]string{so.query}, args...), " ")
			}
			if so.year != "" {
				year, err := executor.ParseYear(so.year)
				if err != nil {
					return err
				}
				criteria.Year = &year
			}

			c, err := opts.open(ctx, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			exec := executor.New(nil)
			if err := exec.Reload(ctx, c.Store, c.Source); err != nil {
				return err
			}
			results, err := exec.Search(ctx, criteria, so.limit)
			if err != nil {
				return err
			}
			if so.format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().StringVarP(&so.query, "query", "q", "", "Free-text query")
	cmd.Flags().StringVarP(&so.author, "author", "a", "", "Author name substring")
	cmd.Flags().StringVarP(&so.year, "year", "y", "", "Publication year")
	cmd.Flags().IntVarP(&so.limit, "limit", "n", executor.DefaultLimit, "Maximum number of results")
	cmd.Flags().StringVarP(&so.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func printResults(w io.Writer, results []executor.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range results {
		year := "n.d."
		if r.Year != nil {
			year = fmt.Sprintf("%d", *r.Year)
		}
		fmt.Fprintf(w, "%2d. %s (%s) score=%.4f\n", i+1, ingestion.DisplayTitle(ingestion.Document{Title: r.Title}), year, r.Score)
		if len(r.Authors) > 0 {
			fmt.Fprintf(w, "    %s\n", strings.Join(r.Authors, ", "))
		}
		if r.URL != "" {
			fmt.Fprintf(w, "    %s\n", r.URL)
		}
	}
}
