package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lavanet/lava-indexer/internal/aggregator"
	"github.com/lavanet/lava-indexer/internal/backfill"
	"github.com/lavanet/lava-indexer/internal/config"
	"github.com/lavanet/lava-indexer/internal/db"
	"github.com/lavanet/lava-indexer/internal/entities"
	"github.com/lavanet/lava-indexer/internal/indexer"
	"github.com/lavanet/lava-indexer/pkg/blockcache"
	"github.com/lavanet/lava-indexer/pkg/rpc"
)

func main() {
	// Parse flags
	dryRun := flag.Bool("dry-run", false, "Only report gaps, don't index")
	startHeight := flag.Int64("start", 0, "Start height (default: 1)")
	endHeight := flag.Int64("end", 0, "End height (default: current chain height)")
	batchSize := flag.Int("batch", 0, "Batch size (default: 1000)")
	concurrency := flag.Int("concurrency", 0, "Number of concurrent workers (default: 10)")
	statsOnly := flag.Bool("stats", false, "Only show gap statistics")
	aggregate := flag.Bool("aggregate", false, "Run one aggregation pass after backfilling")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load base configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// Setup logging
	setupLogging(cfg.LogLevel)

	slog.Info("lava-indexer backfill starting")

	// Connect to PostgreSQL
	pool, err := db.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		slog.Error("failed to connect to postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Init(ctx, pool); err != nil {
		slog.Error("failed to init schema", "err", err)
		os.Exit(1)
	}

	// Create RPC client
	rpcClient := rpc.NewWithOpts(rpc.Opts{
		Endpoints: cfg.RPCURLs,
		RPS:       cfg.RPCRPS,
		Burst:     cfg.RPCBurst,
	})

	cache, err := blockcache.New(cfg.CacheDir)
	if err != nil {
		slog.Error("failed to open block cache", "err", err)
		os.Exit(1)
	}

	ents := entities.New()
	if err := ents.Load(ctx, pool); err != nil {
		slog.Error("failed to load entity snapshot", "err", err)
		os.Exit(1)
	}

	idx := indexer.New(rpcClient, pool, cache, ents)

	// Build backfill config
	backfillCfg := backfill.LoadConfig()

	// Override with flags if provided
	if *dryRun {
		backfillCfg.DryRun = true
	}
	if *startHeight > 0 {
		backfillCfg.StartHeight = *startHeight
	}
	if *endHeight > 0 {
		backfillCfg.EndHeight = *endHeight
	}
	if *batchSize > 0 {
		backfillCfg.BatchSize = *batchSize
	}
	if *concurrency > 0 {
		backfillCfg.Concurrency = *concurrency
	}

	bf := backfill.New(rpcClient, pool, idx, backfillCfg)

	// Stats only mode
	if *statsOnly {
		stats, err := bf.CheckHealth(ctx)
		if err != nil {
			slog.Error("failed to check health", "err", err)
			os.Exit(1)
		}

		fmt.Printf("Gap Statistics:\n")
		fmt.Printf("  Total Expected: %d\n", stats.TotalExpected)
		fmt.Printf("  Total Indexed:  %d\n", stats.TotalIndexed)
		fmt.Printf("  Total Missing:  %d\n", stats.TotalMissing)
		if stats.TotalMissing > 0 {
			fmt.Printf("  First Missing:  %d\n", stats.FirstMissing)
			fmt.Printf("  Last Missing:   %d\n", stats.LastMissing)
			completionPct := float64(stats.TotalIndexed) / float64(stats.TotalExpected) * 100
			fmt.Printf("  Completion:     %.2f%%\n", completionPct)
		} else {
			fmt.Printf("  Completion:     100%%\n")
		}
		os.Exit(0)
	}

	result, err := bf.Run(ctx)
	if err != nil && ctx.Err() == nil {
		slog.Error("backfill failed", "err", err)
		os.Exit(1)
	}
	if result == nil {
		os.Exit(1)
	}

	// Print summary
	fmt.Printf("\nBackfill Summary:\n")
	fmt.Printf("  Total Missing:   %d\n", result.TotalMissing)
	fmt.Printf("  Total Processed: %d\n", result.TotalProcessed)
	fmt.Printf("  Total Succeeded: %d\n", result.TotalSucceeded)
	fmt.Printf("  Total Failed:    %d\n", result.TotalFailed)
	fmt.Printf("  Duration:        %s\n", result.Duration)

	if result.TotalFailed > 0 {
		fmt.Printf("\n  Failed blocks (%d):\n", len(result.Errors))
		for i, err := range result.Errors {
			if i >= 5 {
				fmt.Printf("    ... and %d more\n", len(result.Errors)-5)
				break
			}
			fmt.Printf("    - %v\n", err)
		}
	}

	if *aggregate && ctx.Err() == nil {
		slog.Info("running aggregation pass")
		aggregator.New(pool).RunOnce(ctx)
	}

	if result.TotalFailed > 0 {
		os.Exit(1)
	}

	slog.Info("backfill complete")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
