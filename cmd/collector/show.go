package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/dgnsrekt/maxpain-dashboard/internal/app"
	"github.com/dgnsrekt/maxpain-dashboard/internal/dashboard"
)

func showCmd() *cobra.Command {
	var (
		asJSON  bool
		compare bool
		iv      bool
		t1, t2  string
	)

	cmd := &cobra.Command{
		Use:   "show SYMBOL",
		Short: "Render the live board or the snapshot comparison in the terminal",
		Long: `Render the live option chain window for SYMBOL with max pain per strike.
The max pain row is highlighted red and the strikes around spot blue.

Examples:
  collector show NIFTY
  collector show BANKNIFTY --compare
  collector show NIFTY --iv --t1 14:30 --t2 14:25
  collector show NIFTY --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			symbol := args[0]

			rt, err := app.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			svc := dashboard.NewService(rt.Client, rt.SpotSource(), rt.Store, cfg, rt.Metrics, logger)

			var (
				v      any
				render func()
			)
			switch {
			case compare:
				c, err := svc.Compare(ctx, symbol, t1, t2)
				if err != nil {
					return err
				}
				v, render = c, func() { renderComparison(os.Stdout, c) }
			case iv:
				c, err := svc.IV(ctx, symbol, t1, t2)
				if err != nil {
					return err
				}
				v, render = c, func() { renderIV(os.Stdout, c) }
			default:
				b, err := svc.Board(ctx, symbol)
				if err != nil {
					return err
				}
				v, render = b, func() { renderBoard(os.Stdout, b) }
			}

			if asJSON {
				data, err := json.Marshal(v)
				if err != nil {
					return err
				}
				out := pretty.Pretty(data)
				if isTerminal() {
					out = pretty.Color(out, nil)
				}
				_, err = os.Stdout.Write(out)
				return err
			}

			render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&compare, "compare", false, "compare max pain now against two snapshot times")
	cmd.Flags().BoolVar(&iv, "iv", false, "compare implied volatility against two snapshot times")
	cmd.Flags().StringVar(&t1, "t1", "", "first snapshot time HH:MM (default: latest)")
	cmd.Flags().StringVar(&t2, "t2", "", "second snapshot time HH:MM (default: previous)")
	cmd.MarkFlagsMutuallyExclusive("compare", "iv")

	return cmd
}

func isTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

