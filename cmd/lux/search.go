package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/luvu182/luxbot/internal/config"
	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/internal/service/memory"
	"github.com/luvu182/luxbot/internal/service/ui"
	"github.com/luvu182/luxbot/pkg/log"
	"github.com/spf13/cobra"
)

var searchFlags struct {
	group         string
	itemType      string
	limit         int
	minSimilarity float64
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a group's memories",
	Long:  `Runs a semantic search over stored memories. Separate several queries with "|" to merge their results.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = log.NewContextWithWriter(ctx, debug || config.IsDebug(), os.Stderr)
		defer flushLog()

		opts := memory.SearchOptions{
			GroupID: searchFlags.group,
			Type:    core.ItemType(searchFlags.itemType),
			Limit:   searchFlags.limit,
		}
		if opts.Type != "" && !opts.Type.Valid() {
			return fmt.Errorf("unknown type %q", searchFlags.itemType)
		}
		if cmd.Flags().Changed("min-similarity") {
			opts.MinSimilarity = memory.Threshold(searchFlags.minSimilarity)
		}

		a := newApp(ctx)
		defer a.close(ctx)

		queries := splitQueries(strings.Join(args, " "))
		var (
			results []core.MemorySearchResult
			err     error
		)
		if len(queries) == 1 {
			results, err = a.retriever.Search(ctx, queries[0], opts)
		} else {
			results, err = a.retriever.MultiSearch(ctx, queries, opts)
		}
		if err != nil {
			return err
		}

		printResults(cmd.OutOrStdout(), results)
		return nil
	},
}

func splitQueries(input string) []string {
	var queries []string
	for _, q := range strings.Split(input, "|") {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	return queries
}

func printResults(w io.Writer, results []core.MemorySearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, ui.DescStyle.Render("no matching memories"))
		return
	}
	for _, r := range results {
		line := fmt.Sprintf("%s %s %s", ui.TypeStyle.Render("["+string(r.Type)+"]"), r.Content, ui.ScoreStyle.Render(fmt.Sprintf("%.2f", r.Similarity)))
		if r.DueDate != nil {
			line += ui.DescStyle.Render(" due " + r.DueDate.Format("02/01/2006"))
		}
		fmt.Fprintln(w, line)
		fmt.Fprintln(w, ui.DescStyle.Render("  "+r.ID))
	}
}

func init() {
	searchCmd.Flags().StringVarP(&searchFlags.group, "group", "g", "", "group id to search")
	searchCmd.Flags().StringVarP(&searchFlags.itemType, "type", "t", "", "only this item type (task, decision, deadline, important, general)")
	searchCmd.Flags().IntVarP(&searchFlags.limit, "limit", "n", memory.DefaultSearchLimit, "maximum results")
	searchCmd.Flags().Float64Var(&searchFlags.minSimilarity, "min-similarity", memory.DefaultMinSimilarity, "similarity threshold")
	_ = searchCmd.MarkFlagRequired("group")
	rootCmd.AddCommand(searchCmd)
}
