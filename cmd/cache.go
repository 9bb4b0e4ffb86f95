package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache hit rates and entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Entries:   %d\n", stats.Entries)
		fmt.Printf("Hits:      %d\n", stats.Hits)
		fmt.Printf("Misses:    %d\n", stats.Misses)
		fmt.Printf("Hit rate:  %.1f%%\n", stats.HitRate()*100)
		fmt.Printf("Sets:      %d\n", stats.Sets)
		fmt.Printf("Evictions: %d\n", stats.Evictions)
		for tier, n := range stats.EntriesByTier {
			fmt.Printf("  %-20s %d\n", tier, n)
		}
		return nil
	},
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		dropped, err := store.Sweep(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("cache swept", zap.Int("dropped", dropped))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached entries and reset statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(ctx); err != nil {
			return err
		}
		zap.L().Info("cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheSweepCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
