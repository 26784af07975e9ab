package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"claimtrack/internal/logging"
	"claimtrack/internal/model"
	"claimtrack/internal/worker"
)

var extractConcurrency int

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <file>...",
	Short: "Extract and classify claims from wikitext documents",
	Long: `Extract claims from one or more wikitext documents in parallel:
- Segment each document into sentence-level claim candidates
- Classify each claim by type, risk, and inline-citation requirement
- Adopt a previous claim mirror when one exists, preserving ids and notes
- Write the claim mirror next to each document (<file>.claims.json)

Example:
  claimtrack extract article.wiki
  claimtrack extract drafts/*.wiki --concurrency 8`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().IntVar(&extractConcurrency, "concurrency", 0, "number of concurrent workers (default: from config)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(verbose || cfg.Output.Verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	workers := extractConcurrency
	if workers <= 0 {
		workers = cfg.Concurrency.ExtractWorkers
	}

	pool := worker.NewPool(workers, worker.NewExtractor(cfg, logger))
	pool.Start()
	for _, path := range args {
		pool.Submit(path)
	}
	results := pool.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Claimtrack Extraction\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "  ✗ %s: %v\n", res.Path, res.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "  ✓ %s: %d claims (%s) → %s\n",
			res.Path, len(res.Claims), summarize(res.Claims), res.Mirror)
	}
	fmt.Fprintf(os.Stderr, "\n  Documents: %d   Failed: %d\n\n", len(results), failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

// summarize renders a short per-document claim breakdown
func summarize(claims []model.Claim) string {
	byRisk := map[model.Risk]int{}
	uncited := 0
	for _, c := range claims {
		byRisk[c.Risk]++
		if c.RequiresInline && c.Status != model.StatusSupported {
			uncited++
		}
	}
	return fmt.Sprintf("%d high, %d medium, %d low risk, %d need citations",
		byRisk[model.RiskHigh], byRisk[model.RiskMedium], byRisk[model.RiskLow], uncited)
}
