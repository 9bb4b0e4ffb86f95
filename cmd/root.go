package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/edgar-enrich/internal/cache"
	"github.com/sells-group/edgar-enrich/internal/config"
	"github.com/sells-group/edgar-enrich/internal/edgar"
	"github.com/sells-group/edgar-enrich/internal/rategate"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "edgar-enrich",
	Short: "Firmographic enrichment from SEC EDGAR",
	Long:  "Resolves companies to their SEC registrants, pulls filings and XBRL financials, and scores them as marketing prospects.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newStore opens the cache backend named in the config.
func newStore(ctx context.Context) (cache.Store, error) {
	ttls := cache.WithTierTTLs(tierTTLs(cfg.Cache))
	switch cfg.Cache.Driver {
	case "memory":
		return cache.NewMemory(ttls), nil
	case "postgres":
		return cache.NewPostgres(ctx, cfg.Cache.DatabaseURL, poolConfig(cfg.Cache), ttls)
	default:
		return cache.NewSQLite(expandHome(cfg.Cache.Path), ttls)
	}
}

// poolConfig narrows the config's connection limits to the pool's types.
func poolConfig(c config.CacheConfig) *cache.PoolConfig {
	return &cache.PoolConfig{
		MaxConns: int32(c.MaxConns),
		MinConns: int32(c.MinConns),
	}
}

// tierTTLs converts the config's ttl map, keyed by tier name, into
// per-tier retention overrides.
func tierTTLs(c config.CacheConfig) map[cache.Tier]time.Duration {
	if len(c.TTL) == 0 {
		return nil
	}
	ttls := make(map[cache.Tier]time.Duration, len(c.TTL))
	for name, d := range c.TTL {
		ttls[cache.Tier(name)] = d
	}
	return ttls
}

// newClient wires the EDGAR client over a freshly opened store. The caller
// closes both, store last.
func newClient(ctx context.Context) (*edgar.Client, cache.Store, error) {
	store, err := newStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	client, err := edgar.New(edgar.Config{
		UserAgent:    cfg.Edgar.UserAgent,
		BaseURL:      cfg.Edgar.BaseURL,
		DirectoryURL: cfg.Edgar.DirectoryURL,
		Timeout:      time.Duration(cfg.Edgar.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Edgar.MaxRetries,
		MinNameScore: cfg.Edgar.MinNameScore,
		GateCapacity: cfg.RateGate.Capacity,
		GateWindow:   time.Duration(cfg.RateGate.WindowSecs * float64(time.Second)),
		Adaptive: rategate.AdaptiveConfig{
			Floor:             cfg.RateGate.Floor,
			BackoffFactor:     cfg.RateGate.BackoffFactor,
			RecoveryRate:      cfg.RateGate.RecoveryRate,
			RecoveryThreshold: cfg.RateGate.RecoveryThreshold,
		},
		Scoring: cfg.Scorer,
	}, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return client, store, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
