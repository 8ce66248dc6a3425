package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/gyeh/msdrg/internal/batch"
	"github.com/gyeh/msdrg/internal/db"
	"github.com/gyeh/msdrg/internal/exitcode"
	"github.com/gyeh/msdrg/internal/grouper"
	"github.com/gyeh/msdrg/internal/logging"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Group every encounter of a CSV or Parquet file",
	Long: "Groups encounters from --input and writes one result row per encounter to --output\n" +
		"(CSV or Parquet by extension) or, without --output, COPY-loads them into Postgres.",
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&cfg.Input, "input", "", "Encounter file, CSV or .parquet (required)")
	f.StringVar(&cfg.Output, "output", "", "Result file, CSV or .parquet; omit to write to Postgres")
	f.IntVar(&cfg.Workers, "workers", 0, "Concurrent grouping workers (default GOMAXPROCS)")
	f.StringVar(&cfg.RunLabel, "run-label", "", "Label stored with the run in Postgres")
	f.BoolVar(&cfg.Force, "force", false, "Regroup even if this input was already grouped with this catalog")
	f.BoolVar(&cfg.Verbose, "verbose", false, "Include decision trace notes in the output")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.ValidateBatch(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	eng := grouper.New(loadCatalog(ctx, log))

	var pool *pgxpool.Pool
	if cfg.Output == "" {
		var err error
		pool, err = db.NewPool(ctx, cfg.DSN, 4)
		if err != nil {
			log.Error().Err(err).Msg("database connection failed")
			os.Exit(exitcode.DBConnError)
		}
		defer pool.Close()
	}

	summary, err := batch.Run(ctx, eng, pool, log, &cfg)
	if err != nil {
		if pe, ok := err.(*batch.PipelineError); ok {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("batch failed")
			switch pe.Phase {
			case batch.PhasePreflight:
				os.Exit(exitcode.InputError)
			case batch.PhaseWrite, batch.PhaseFinalize:
				os.Exit(exitcode.CopyError)
			default:
				os.Exit(exitcode.GroupingError)
			}
		}
		log.Error().Err(err).Msg("batch failed")
		os.Exit(exitcode.GroupingError)
	}

	if summary.AlreadyGrouped {
		fmt.Printf("Already grouped as run %s; nothing to do\n", summary.RunID)
		return nil
	}

	fmt.Printf("Batch complete: %d encounters, %d classified, %d pre-MDC, %d ungroupable, %d failed → %s (%.1fs)\n",
		summary.RowsRead, summary.RowsClassified, summary.RowsPreMDC, summary.RowsUngroupable,
		summary.RowsFailed, summary.Destination, summary.DurationTotal.Seconds())

	drgs := make([]string, 0, len(summary.DRGCounts))
	for d := range summary.DRGCounts {
		drgs = append(drgs, d)
	}
	sort.Slice(drgs, func(i, j int) bool {
		return summary.DRGCounts[drgs[i]] > summary.DRGCounts[drgs[j]] ||
			summary.DRGCounts[drgs[i]] == summary.DRGCounts[drgs[j]] && drgs[i] < drgs[j]
	})
	if len(drgs) > 10 {
		drgs = drgs[:10]
	}
	for _, d := range drgs {
		fmt.Printf("  DRG %s  %d\n", d, summary.DRGCounts[d])
	}

	if summary.RowsFailed > 0 {
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}
