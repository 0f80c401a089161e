package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/evafinance/evacore/internal/reco"
	"github.com/evafinance/evacore/internal/scoring"
	"github.com/evafinance/evacore/internal/trends"
	"github.com/evafinance/evacore/internal/triggers"
)

func newScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Run one trigger, scoring and drafting pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app := loadApp(ctx)
			defer app.store.Close()

			day := time.Now().UTC().Truncate(24 * time.Hour)

			if _, err := triggers.NewEmitter(app.store).Run(ctx, day); err != nil {
				return err
			}

			var validator *trends.Validator
			if app.cfg.Trends.Enabled {
				validator = trends.NewValidator(app.cfg.Trends, newTrendsCache(app.cfg))
			}
			runner := scoring.NewRunner(app.store,
				scoring.NewEngine(app.cfg.Scoring), validator,
				app.cfg.Scoring, app.cfg.Trends)
			if _, err := runner.Run(ctx, day); err != nil {
				return err
			}

			builder := reco.NewBuilder(app.store, app.cfg.Reco, version)
			_, err := builder.Run(ctx, 50)
			return err
		},
	}
}
