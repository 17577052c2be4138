package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/app"
	"github.com/dgnsrekt/maxpain-dashboard/internal/config"
	"github.com/dgnsrekt/maxpain-dashboard/internal/snapshot"
)

func archiveCmd() *cobra.Command {
	var (
		date   string
		keep   bool
		latest bool
	)

	cmd := &cobra.Command{
		Use:   "archive SYMBOL",
		Short: "Compress an underlying's CSV history",
		Long: `Compress the CSV history of SYMBOL into the archive directory as
<symbol>-YYYY-MM-DD.csv.zst and start a fresh history file.

Examples:
  # Archive today's NIFTY history
  collector archive NIFTY

  # Show the most recent archive
  collector archive NIFTY --latest`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := args[0]
			if _, ok := cfg.Underlying(symbol); !ok {
				return fmt.Errorf("unknown underlying %q", symbol)
			}

			if latest {
				d, err := config.LatestArchiveDate(cfg.Storage.ArchiveDirectory, symbol)
				if err != nil {
					return err
				}
				path := config.ArchivePath(cfg.Storage.ArchiveDirectory, symbol, d)
				rows, err := snapshot.ReadArchive(path)
				if err != nil {
					return err
				}
				fmt.Printf("%s  %d rows, %d snapshots\n", path, len(rows), len(snapshot.Times(rows)))
				return nil
			}

			if date == "" {
				date = time.Now().In(cfg.Market.Location()).Format("2006-01-02")
			} else if _, err := time.Parse("2006-01-02", date); err != nil {
				return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
			}

			rt, err := app.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			path, err := rt.ArchiveHistory(symbol, date, !keep)
			if err != nil {
				return err
			}

			logger.Info("history archived",
				zap.String("underlying", symbol),
				zap.String("path", path),
				zap.Bool("truncated", !keep),
			)
			fmt.Println(path)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "archive label (default: today in the market timezone)")
	cmd.Flags().BoolVar(&keep, "keep", false, "keep the history file instead of truncating it")
	cmd.Flags().BoolVar(&latest, "latest", false, "print the most recent archive instead of creating one")

	return cmd
}
