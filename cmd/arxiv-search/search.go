package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/Sternrassler/arxiv-client/pkg/client"
	"github.com/Sternrassler/arxiv-client/pkg/feed"
)

// Output formats of the search command.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search arXiv",
	Long: `Search runs a query against the arXiv API and prints the matching
papers. Pages are fetched lazily, so --max-results bounds the number of
requests as well as the output.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringP("query", "q", "", "arXiv search query, e.g. 'au:del_maestro AND ti:checkerboard'")
	searchCmd.Flags().StringSlice("id", nil, "restrict to these arXiv ids (repeatable or comma-separated)")
	searchCmd.Flags().IntP("max-results", "n", 10, "maximum number of results; negative for no limit")
	searchCmd.Flags().Int("offset", 0, "skip this many results")
	searchCmd.Flags().String("sort-by", "", "relevance, lastUpdatedDate or submittedDate")
	searchCmd.Flags().String("sort-order", "", "ascending or descending")
	searchCmd.Flags().StringP("format", "f", formatText, "output format: text, json or yaml")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	offset, _ := cmd.Flags().GetInt("offset")
	s, err := searchFromFlags(cmd, offset)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

	switch format {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if format == formatText {
		for r, err := range c.Results(ctx, s, offset) {
			if err != nil {
				return err
			}
			writeText(out, r)
		}
		return nil
	}

	results, searchErr := c.Collect(ctx, s, offset)
	if err := writeResults(out, format, results); err != nil {
		return err
	}
	return searchErr
}

// searchFromFlags builds the search. --max-results counts from --offset, so
// the absolute cap handed to the client is offset + max-results.
func searchFromFlags(cmd *cobra.Command, offset int) (client.Search, error) {
	query, _ := cmd.Flags().GetString("query")
	ids, _ := cmd.Flags().GetStringSlice("id")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	sortBy, _ := cmd.Flags().GetString("sort-by")
	sortOrder, _ := cmd.Flags().GetString("sort-order")

	if query == "" && len(ids) == 0 {
		return client.Search{}, fmt.Errorf("provide --query or --id")
	}

	s := client.Search{
		Query:     query,
		IDList:    ids,
		SortBy:    client.SortCriterion(sortBy),
		SortOrder: client.SortOrder(sortOrder),
	}
	if maxResults >= 0 {
		s = s.WithMaxResults(offset + maxResults)
	}
	return s, s.Validate()
}

func writeResults(w io.Writer, format string, results []*feed.Result) error {
	if results == nil {
		results = []*feed.Result{}
	}
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	default:
		for _, r := range results {
			writeText(w, r)
		}
		return nil
	}
}

func writeText(w io.Writer, r *feed.Result) {
	names := make([]string, len(r.Authors))
	for i, a := range r.Authors {
		names[i] = a.Name
	}
	fmt.Fprintf(w, "%s  %s  [%s]\n", r.ShortID(), r.Published.Format("2006-01-02"), r.PrimaryCategory)
	fmt.Fprintf(w, "    %s\n", r.Title)
	if len(names) > 0 {
		fmt.Fprintf(w, "    %s\n", strings.Join(names, ", "))
	}
}
