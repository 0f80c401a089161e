package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evafinance/evacore/internal/models"
	"github.com/evafinance/evacore/internal/tickers"
	"github.com/evafinance/evacore/internal/trends"
)

func newBrandsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brands",
		Short: "Brand mapping and validation utilities",
	}
	cmd.AddCommand(newListUnmappedCmd(), newMapBrandCmd(), newValidateBrandCmd())
	return cmd
}

func newListUnmappedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-unmapped",
		Short: "List brands seen in events with no ticker mapping",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app := loadApp(ctx)
			defer app.store.Close()

			brands, err := app.store.UnmappedBrands(ctx, 100)
			if err != nil {
				return err
			}
			if len(brands) == 0 {
				fmt.Println("all event brands are mapped")
				return nil
			}
			for _, b := range brands {
				fmt.Println(b)
			}
			return nil
		},
	}
}

func newMapBrandCmd() *cobra.Command {
	var ticker, company, exchange string
	var material, auto bool

	cmd := &cobra.Command{
		Use:   "map <brand>",
		Short: "Map a brand to a ticker, manually or via provider search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			brand := strings.TrimSpace(args[0])
			if brand == "" {
				os.Exit(exitUser)
			}

			app := loadApp(ctx)
			defer app.store.Close()

			if auto {
				mapping, err := tickers.NewMapper(app.store, app.cfg.Tickers).EnsureMapped(ctx, brand)
				if err != nil {
					return err
				}
				fmt.Printf("brand=%s ticker=%s material=%v found=%v cached=%v\n",
					brand, mapping.Ticker, mapping.Material, mapping.Found, mapping.Cached)
				return nil
			}

			if ticker == "" {
				fmt.Fprintln(os.Stderr, "either --auto or --ticker is required")
				os.Exit(exitUser)
			}
			row := models.BrandTickerMap{Brand: brand, Ticker: &ticker, Material: material}
			if company != "" {
				row.ParentCompany = &company
			}
			if exchange != "" {
				row.Exchange = &exchange
			}
			if err := app.store.UpsertTickerMapping(ctx, row); err != nil {
				return err
			}
			fmt.Printf("mapped %s -> %s (material=%v)\n", brand, ticker, material)
			return nil
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker symbol")
	cmd.Flags().StringVar(&company, "company", "", "parent company name")
	cmd.Flags().StringVar(&exchange, "exchange", "", "listing exchange")
	cmd.Flags().BoolVar(&material, "material", false, "brand revenue is material to the ticker")
	cmd.Flags().BoolVar(&auto, "auto", false, "resolve via the search provider")
	return cmd
}

func newValidateBrandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <brand>",
		Short: "Run the external search-interest validation for one brand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app := loadApp(ctx)
			defer app.store.Close()

			validator := trends.NewValidator(app.cfg.Trends, newTrendsCache(app.cfg))
			res := validator.Validate(ctx, args[0])
			fmt.Printf("brand=%s status=%s interest=%.4f direction=%s boost=%+.4f validates=%v\n",
				res.Brand, res.Status, res.Interest, res.Direction, res.Boost, res.Validates)
			if res.Status == models.ValidationPending {
				// Upstream throttled or unreachable; retry later.
				os.Exit(exitProvider)
			}
			return nil
		},
	}
}
