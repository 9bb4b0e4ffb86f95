package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/edgar-enrich/internal/model"
	"github.com/sells-group/edgar-enrich/internal/resolve"
)

var (
	resolveLimit int
	searchLimit  int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <identifier>",
	Short: "Resolve a ticker or company name to its CIK",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, store, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		defer client.Close()

		r := client.Resolver()
		matches, err := r.ByName(ctx, args[0], resolveLimit, resolve.DefaultMinScore)
		if err != nil {
			// Fall back to heuristic resolution; the input may be a ticker.
			match, rerr := r.Resolve(ctx, args[0])
			if rerr != nil {
				return rerr
			}
			matches = []model.EntityMatch{match}
		}

		printMatches(matches)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <prefix>",
	Short: "Autocomplete tickers and company names by prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, store, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		defer client.Close()

		matches, err := client.Resolver().SearchByPrefix(ctx, args[0], searchLimit)
		if err != nil {
			return err
		}

		printMatches(matches)
		return nil
	},
}

func printMatches(matches []model.EntityMatch) {
	for _, m := range matches {
		ticker := m.Ticker
		if ticker == "" {
			ticker = "-"
		}
		fmt.Printf("%-10s %-6s %-40s %.3f (%s)\n", m.CIK, ticker, m.CompanyName, m.Score, m.MatchType)
	}
}

func init() {
	resolveCmd.Flags().IntVar(&resolveLimit, "limit", 5, "max matches to show")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "max matches to show")
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(searchCmd)
}
