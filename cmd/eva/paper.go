package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evafinance/evacore/internal/paper"
	"github.com/evafinance/evacore/internal/tickers"
)

func newPaperCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paper",
		Short: "Paper position simulation",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "entry",
		Short: "Open positions for approved eligible signals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app := loadApp(ctx)
			defer app.store.Close()

			loop := newPaperLoop(app)
			stats, err := loop.Enter(ctx, 50)
			if err != nil {
				return err
			}
			fmt.Printf("eligible=%d opened=%d no_ticker=%d price_failures=%d\n",
				stats.Eligible, stats.Opened, stats.NoTicker, stats.PriceFail)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "update",
		Short: "Mark open positions and apply exit rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app := loadApp(ctx)
			defer app.store.Close()

			loop := newPaperLoop(app)
			stats, err := loop.Update(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("open=%d updated=%d closed=%d price_failures=%d\n",
				stats.Open, stats.Updated, stats.Closed, stats.PriceFail)
			return nil
		},
	})

	return cmd
}

func newPaperLoop(app *app) *paper.Loop {
	mapper := tickers.NewMapper(app.store, app.cfg.Tickers)
	prices := paper.NewHTTPPriceProvider(app.cfg.Paper.PriceURL)
	return paper.NewLoop(app.store, mapper, prices, app.cfg.Paper)
}
