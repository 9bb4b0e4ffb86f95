package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a re-fetch of the SEC ticker directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, store, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		defer client.Close()

		if err := client.RefreshDirectory(ctx); err != nil {
			return err
		}

		stats := client.Resolver().Stats()
		zap.L().Info("ticker directory refreshed",
			zap.Int("tickers", stats.TotalTickers),
			zap.Int("companies", stats.TotalCompanies),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
