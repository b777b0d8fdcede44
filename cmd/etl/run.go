package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/bootstrap"
	"github.com/mgnrega-tn/backend/internal/ingestion"
	"github.com/mgnrega-tn/backend/internal/snapshot"
	"github.com/mgnrega-tn/backend/internal/upstream/datagov"
	"github.com/mgnrega-tn/backend/pkg/config"
	"github.com/mgnrega-tn/backend/pkg/logger"
	"github.com/mgnrega-tn/backend/pkg/retry"
)

func newRunCmd() *cobra.Command {
	var (
		every   time.Duration
		retries int
		format  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion, or keep running on an interval with --every",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid format: %s (valid values: text, json)", format)
			}
			if retries < 0 {
				return fmt.Errorf("--retries must not be negative")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			if !cmd.Flags().Changed("every") && cfg.Ingestion.IntervalMinutes > 0 {
				every = time.Duration(cfg.Ingestion.IntervalMinutes) * time.Minute
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			job, cleanup, err := newJob(ctx, cfg, retries)
			if err != nil {
				return err
			}
			defer cleanup()

			report := func(r *ingestion.RunReport) error {
				return printReport(cmd, format, r)
			}

			if every <= 0 {
				r, err := job.Run(ctx)
				if err != nil {
					return err
				}
				return report(r)
			}
			return loop(ctx, job, every, report)
		},
	}

	cmd.Flags().DurationVar(&every, "every", 0, "Repeat the run on this interval until interrupted (e.g. 6h)")
	cmd.Flags().IntVar(&retries, "retries", 0, "Extra attempts for a failed upstream fetch")
	cmd.Flags().StringVar(&format, "format", "text", "Report format: text or json")

	return cmd
}

func newJob(ctx context.Context, cfg *config.Config, retries int) (*ingestion.Job, func(), error) {
	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open primary store: %w", err)
	}

	closers := []func(){func() { store.Close() }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var fetcher ingestion.Fetcher = datagov.NewClient(
		cfg.Upstream.APIURL,
		cfg.Upstream.APIKey,
		cfg.Upstream.Limit,
		time.Duration(cfg.Upstream.TimeoutSec)*time.Second,
	)
	if retries > 0 {
		rc := retry.DefaultConfig()
		rc.MaxAttempts = retries + 1
		rc.Logger = logger.GetLogger()
		fetcher = &retryingFetcher{next: fetcher, cfg: rc}
	}

	var opts []ingestion.Option
	redisClient, err := bootstrap.OpenRedis(ctx, cfg.Cache.RedisURL)
	switch {
	case err != nil:
		logger.Warn("Redis unavailable, using in-process run lock only", zap.Error(err))
	case redisClient != nil:
		closers = append(closers, func() { redisClient.Close() })
		opts = append(opts, ingestion.WithLocker(redisClient, time.Duration(cfg.Ingestion.LockTTLSeconds)*time.Second))
	}

	archive := snapshot.NewArchive(cfg.Snapshot.Dir, cfg.Snapshot.MaxFiles)
	return ingestion.NewJob(cfg.Upstream.Region, fetcher, archive, store, opts...), cleanup, nil
}

func loop(ctx context.Context, job *ingestion.Job, every time.Duration, report func(*ingestion.RunReport) error) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	logger.Info("Scheduled ingestion started", zap.Duration("every", every))

	for {
		r, err := job.Run(ctx)
		switch {
		case errors.Is(err, ingestion.ErrRunInProgress):
			logger.Warn("Previous run still in progress, skipping")
		case err != nil:
			logger.Error("Ingestion run failed", zap.Error(err))
		default:
			if err := report(r); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			logger.Info("Scheduled ingestion stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func printReport(cmd *cobra.Command, format string, r *ingestion.RunReport) error {
	out := cmd.OutOrStdout()
	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r)
	}

	_, err := fmt.Fprintf(out, "run %s: %d records, %d created, %d updated, %d skipped (snapshot %s, %s)\n",
		r.RunID, r.Seen, r.Created, r.Updated, r.Skipped, r.SnapshotPath, r.Duration.Round(time.Millisecond))
	return err
}

type retryingFetcher struct {
	next ingestion.Fetcher
	cfg  retry.Config
}

func (f *retryingFetcher) FetchRegion(ctx context.Context, region string) ([]byte, error) {
	return retry.DoWithResult(ctx, f.cfg, func(ctx context.Context) ([]byte, error) {
		return f.next.FetchRegion(ctx, region)
	})
}
