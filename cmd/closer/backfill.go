package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/closer/internal/backfill"
	"github.com/MikeSquared-Agency/closer/internal/learner"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

var (
	backfillDir         string
	backfillFile        string
	backfillState       string
	backfillSince       string
	backfillUntil       string
	backfillDryRun      bool
	backfillMinMessages int
	backfillBatchSize   int
	backfillBatchPause  time.Duration
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Learn from exported conversation transcripts",
	Long: `Reads JSONL exports with one conversation per line and folds every
conversation that shared a booking link, or ran long enough, into the
strategy. Progress is saved so an interrupted run resumes where it stopped.`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().StringVar(&backfillDir, "dir", "", "Directory searched recursively for *.jsonl exports")
	backfillCmd.Flags().StringVar(&backfillFile, "file", "", "Process a single export file")
	backfillCmd.Flags().StringVar(&backfillState, "state", backfill.DefaultStatePath, "Resumable state file")
	backfillCmd.Flags().StringVar(&backfillSince, "since", "", "Only conversations ended on or after this date (YYYY-MM-DD)")
	backfillCmd.Flags().StringVar(&backfillUntil, "until", "", "Only conversations ended before this date (YYYY-MM-DD)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Analyze without updating the strategy")
	backfillCmd.Flags().IntVar(&backfillMinMessages, "min-messages", backfill.DefaultMinMessages, "Minimum messages for conversations without a booking link")
	backfillCmd.Flags().IntVar(&backfillBatchSize, "batch-size", 50, "Save state and post a summary every N learned conversations")
	backfillCmd.Flags().DurationVar(&backfillBatchPause, "batch-pause", 0, "Pause between batches")
	backfillCmd.MarkFlagsOneRequired("dir", "file")
	backfillCmd.MarkFlagsMutuallyExclusive("dir", "file")
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	since, err := parseDate(backfillSince)
	if err != nil {
		return fmt.Errorf("--since: %w", err)
	}
	until, err := parseDate(backfillUntil)
	if err != nil {
		return fmt.Errorf("--until: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := openStrategyStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	initial := strategy.LoadOrDefault(ctx, storage.strategy, slog.Default())

	learnerOpts := []learner.Option{learner.WithRetention(cfg.StrategyRetention)}
	if storage.db != nil {
		learnerOpts = append(learnerOpts, learner.WithArchiver(storage.db))
	}
	l := learner.New(initial, storage.strategy, slog.Default(), learnerOpts...)

	var runnerOpts []backfill.RunnerOption
	if poster := newSlackPoster(cfg); poster != nil {
		runnerOpts = append(runnerOpts, backfill.WithNotifier(poster))
	}

	runner := backfill.NewRunner(backfill.Config{
		Dir:         backfillDir,
		SingleFile:  backfillFile,
		StatePath:   backfillState,
		Since:       since,
		Until:       until,
		DryRun:      backfillDryRun,
		MinMessages: backfillMinMessages,
		BatchSize:   backfillBatchSize,
		BatchPause:  backfillBatchPause,
	}, l, slog.Default(), runnerOpts...)

	sum, err := runner.Run(ctx)
	printSummary(cmd, sum, l.Snapshot())
	return err
}

func printSummary(cmd *cobra.Command, sum backfill.Summary, rec *strategy.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n=== Backfill Summary ===\n")
	fmt.Fprintf(out, "Files processed: %d\n", sum.Files)
	fmt.Fprintf(out, "Conversations: %d\n", sum.Conversations)
	fmt.Fprintf(out, "Learned: %d (%d shared a link)\n", sum.Learned, sum.LinksShared)
	fmt.Fprintf(out, "Skipped: %d\n", sum.Skipped)
	fmt.Fprintf(out, "Duplicates: %d\n", sum.Duplicates)
	fmt.Fprintf(out, "Errors: %d\n", sum.Errors)
	if sum.DryRun {
		fmt.Fprintf(out, "Mode: DRY RUN (strategy unchanged)\n")
		return
	}
	fmt.Fprintf(out, "Strategy: v%d, link timing %d, %.1f%% conversion\n",
		rec.Version, rec.EffectiveLinkTiming(), rec.Metrics.ConversionRate)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
