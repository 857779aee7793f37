// CLI that recomputes targets for every user with a completed profile and
// replaces plans whose targets moved past the thresholds. Run it from cron
// shortly after the week starts in PLAN_TIMEZONE.
// Prints the run summary as JSON. Exits non-zero if any user failed.
// Usage: go run ./cmd/recompute [--concurrency 8] [--timeout 10m]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lg/fitplan-api/internal/config"
	"lg/fitplan-api/internal/lock"
	"lg/fitplan-api/internal/logger"
	"lg/fitplan-api/internal/plan"
	"lg/fitplan-api/internal/recompute"
	"lg/fitplan-api/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		concurrency int
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:          "recompute",
		Short:        "Recompute weekly targets for all users",
		Long:         "recompute refreshes every completed profile's targets and replaces this week's plan when calories move by 50 kcal or protein by 10 g.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(os.Getenv("LOG_MODE"))
			if err != nil {
				return err
			}
			defer log.Sync()

			config.LoadDotEnv(log)
			cfg, err := config.Load(log)
			if err != nil {
				return err
			}
			if cfg.DBURL == "" {
				return errors.New("DB_URL is required")
			}
			if cmd.Flags().Changed("concurrency") {
				if concurrency < 1 {
					return fmt.Errorf("--concurrency must be at least 1, got %d", concurrency)
				}
				cfg.RecomputeConcurrency = concurrency
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			pool, err := store.NewPool(ctx, cfg.DBURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			locker, closeLocker, err := lock.New(cfg.RedisAddr, log)
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			defer closeLocker()

			db := store.NewPostgres(pool, log)
			gen := plan.NewGenerator(db, locker, log, plan.Config{
				Location:     cfg.PlanTimezone,
				CalorieFloor: cfg.CalorieFloor,
				LockTTL:      cfg.LockTTL,
			})
			job := recompute.NewJob(db, locker, gen, log, recompute.Config{
				Concurrency: cfg.RecomputeConcurrency,
				LockTTL:     cfg.LockTTL,
			})
			return runJob(ctx, job, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Users processed in parallel (default RECOMPUTE_CONCURRENCY)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the run after this long (0 = no limit)")
	return cmd
}

// runJob runs the job and writes its summary, even a partial one, to out.
func runJob(ctx context.Context, job *recompute.Job, out io.Writer) error {
	sum, runErr := job.Run(ctx)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if runErr != nil {
		return runErr
	}
	if sum.ErrorCount > 0 {
		return fmt.Errorf("%d of %d users failed", sum.ErrorCount, sum.TotalUsers)
	}
	return nil
}
