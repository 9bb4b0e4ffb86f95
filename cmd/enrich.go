package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/edgar-enrich/internal/edgar"
	"github.com/sells-group/edgar-enrich/internal/model"
)

var (
	enrichKind  string
	enrichJSON  bool
	enrichBatch string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <identifier>",
	Short: "Enrich a company by ticker, name, or CIK",
	Args: func(cmd *cobra.Command, args []string) error {
		if enrichBatch == "" && len(args) != 1 {
			return fmt.Errorf("requires an identifier (or --batch)")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, store, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		defer client.Close()

		if enrichBatch != "" {
			return runBatch(ctx, client, enrichBatch)
		}

		res := client.Enrich(ctx, enrichKind, args[0])
		printResult(res)
		if !res.Success {
			return eris.Errorf("enrichment failed: %s", res.Error.Message)
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichKind, "kind", "auto", "identifier kind: ticker|name|cik|auto")
	enrichCmd.Flags().BoolVar(&enrichJSON, "json", false, "emit the full result as JSON")
	enrichCmd.Flags().StringVar(&enrichBatch, "batch", "", "file with one identifier per line")
	rootCmd.AddCommand(enrichCmd)
}

// runBatch enriches identifiers from a file concurrently, one line each.
// Blank lines and #-comments are skipped.
func runBatch(ctx context.Context, client *edgar.Client, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "open batch file %s", path)
	}
	defer f.Close()

	var identifiers []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identifiers = append(identifiers, line)
	}
	if err := scanner.Err(); err != nil {
		return eris.Wrap(err, "read batch file")
	}
	if len(identifiers) == 0 {
		zap.L().Info("batch file is empty")
		return nil
	}

	zap.L().Info("processing batch",
		zap.Int("identifiers", len(identifiers)),
		zap.Int("concurrency", cfg.Batch.Concurrency),
	)

	var mu sync.Mutex
	results := make([]model.EnrichmentResult, len(identifiers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Batch.Concurrency)
	for i, id := range identifiers {
		g.Go(func() error {
			res := client.Enrich(gctx, enrichKind, id)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			if !res.Success {
				zap.L().Warn("enrichment failed",
					zap.String("identifier", id),
					zap.String("error", res.Error.Message),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	succeeded := 0
	for _, res := range results {
		printResult(res)
		if res.Success {
			succeeded++
		}
	}
	fmt.Printf("\n%d/%d enriched\n", succeeded, len(results))
	return nil
}

func printResult(res model.EnrichmentResult) {
	if enrichJSON {
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
		return
	}

	if !res.Success {
		fmt.Printf("FAILED [%s] %s\n", res.Error.Type, res.Error.Message)
		return
	}

	p := res.Profile
	fmt.Printf("%s (CIK %s", p.CompanyName, p.CIK)
	if p.Ticker != "" {
		fmt.Printf(", %s", p.Ticker)
	}
	fmt.Println(")")
	if p.SICDescription != "" {
		fmt.Printf("  Industry:   %s (SIC %s)\n", p.SICDescription, p.SICCode)
	}
	if p.Exchange != "" {
		fmt.Printf("  Exchange:   %s\n", p.Exchange)
	}
	if fin := p.Financials; fin != nil && fin.RevenueUSD != nil {
		fmt.Printf("  Revenue:    $%s (FY%s)\n", humanUSD(*fin.RevenueUSD), fin.FiscalYear)
	}
	fmt.Printf("  Score:      %d/100 (%s confidence, %.0f%% complete)\n",
		p.QualificationScore, p.Confidence, p.Completeness*100)
	for _, ins := range p.Insights {
		fmt.Printf("  - %s\n", ins)
	}
}

func humanUSD(v int64) string {
	switch {
	case v >= 1_000_000_000_000:
		return fmt.Sprintf("%.1fT", float64(v)/1e12)
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(v)/1e9)
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(v)/1e6)
	default:
		return fmt.Sprintf("%d", v)
	}
}
