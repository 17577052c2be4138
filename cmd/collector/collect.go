package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/app"
	"github.com/dgnsrekt/maxpain-dashboard/internal/collect"
)

func collectCmd() *cobra.Command {
	var (
		dryRun      bool
		underlyings []string
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Take one option chain snapshot per underlying",
		Long: `Fetch the nearest-expiry option chain for each configured underlying,
compute max pain per strike and append the rows to the history store.

Examples:
  # Snapshot every configured underlying
  collector collect

  # Only NIFTY, without writing history
  collector collect --underlyings NIFTY --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := app.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			instruments, err := rt.Instruments(underlyings)
			if err != nil {
				return err
			}
			tasks := collect.TasksFor(instruments)

			mgr := collect.NewManager(rt.Client, rt.Store, collect.Options{
				Workers:  cfg.Collector.Workers,
				Scale:    cfg.Collector.Scale,
				Location: cfg.Market.Location(),
				DryRun:   dryRun,
			}, rt.Metrics, logger)

			start := time.Now()
			result, err := mgr.Execute(ctx, tasks)
			if err != nil {
				return err
			}

			logger.Info("collection complete",
				zap.Int("total", result.Total),
				zap.Int("success", result.Success),
				zap.Int("no_expiry", result.NoExpiry),
				zap.Int("no_chain", result.NoChain),
				zap.Int("failed", result.Failed),
				zap.Duration("duration", time.Since(start)),
			)

			for _, r := range result.Results {
				if r.Success {
					fmt.Printf("%-10s expiry %s  max pain %g  (%d strikes)\n", r.Task.Instrument.Name, r.Expiry, r.MaxPainStrike, r.Rows)
				}
			}

			if result.Failed > 0 {
				for _, e := range result.Errors {
					logger.Error("collection error", zap.String("error", e))
				}
				return fmt.Errorf("%d snapshots failed", result.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and compute without writing history")
	cmd.Flags().StringSliceVar(&underlyings, "underlyings", nil, "override underlyings from config (e.g. NIFTY,BANKNIFTY)")

	return cmd
}
