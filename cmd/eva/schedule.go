package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/extract"
	"github.com/evafinance/evacore/internal/ingest"
	"github.com/evafinance/evacore/internal/notify"
	"github.com/evafinance/evacore/internal/paper"
	"github.com/evafinance/evacore/internal/reco"
	"github.com/evafinance/evacore/internal/scheduler"
	"github.com/evafinance/evacore/internal/scoring"
	"github.com/evafinance/evacore/internal/tickers"
	"github.com/evafinance/evacore/internal/trends"
	"github.com/evafinance/evacore/internal/triggers"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run all pipeline jobs on their configured cron schedules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app := loadApp(ctx)
			defer app.store.Close()

			if app.cfg.Ingest.FeedsFile == "" {
				log.Error().Msg("EVA_FEEDS_CONFIG must point at a feeds/jobs file")
				os.Exit(exitUser)
			}
			file, err := config.LoadFeedsFile(app.cfg.Ingest.FeedsFile)
			if err != nil {
				log.Error().Err(err).Msg("feeds configuration invalid")
				os.Exit(exitUser)
			}

			sched := scheduler.New()
			registerJobs(sched, app)
			if err := sched.Load(ctx, file.Jobs); err != nil {
				log.Error().Err(err).Msg("job configuration invalid")
				os.Exit(exitUser)
			}
			return sched.Run(ctx)
		},
	}
}

// registerJobs binds every schedulable pipeline step.
func registerJobs(sched *scheduler.Scheduler, app *app) {
	conductor, err := ingest.NewConductor(app.cfg.Ingest)
	if err != nil {
		log.Error().Err(err).Msg("feed configuration invalid")
		os.Exit(exitUser)
	}

	strategy := extract.NewStrategy(
		asExtractor(extract.NewLLMExtractor(app.cfg.LLM)),
		extract.NewHeuristicExtractor(nil),
	)
	worker := extract.NewWorker(app.store, strategy)

	var validator *trends.Validator
	if app.cfg.Trends.Enabled {
		validator = trends.NewValidator(app.cfg.Trends, newTrendsCache(app.cfg))
	}
	runner := scoring.NewRunner(app.store,
		scoring.NewEngine(app.cfg.Scoring), validator, app.cfg.Scoring, app.cfg.Trends)
	emitter := triggers.NewEmitter(app.store)
	builder := reco.NewBuilder(app.store, app.cfg.Reco, version)
	notifier := notify.NewNotifier(app.store,
		notify.NewHTTPGateway(app.cfg.Notify), app.cfg.Notify)
	mapper := tickers.NewMapper(app.store, app.cfg.Tickers)
	loop := paper.NewLoop(app.store, mapper,
		paper.NewHTTPPriceProvider(app.cfg.Paper.PriceURL), app.cfg.Paper)

	sched.Register("ingest", func(ctx context.Context) error {
		_, err := conductor.RunOnce(ctx)
		return err
	})
	sched.Register("extract", func(ctx context.Context) error {
		// Drain the whole backlog, not just one batch.
		for {
			n, err := worker.RunOnce(ctx)
			if err != nil || n == 0 {
				return err
			}
		}
	})
	sched.Register("score", func(ctx context.Context) error {
		day := time.Now().UTC().Truncate(24 * time.Hour)
		if _, err := emitter.Run(ctx, day); err != nil {
			return err
		}
		if _, err := runner.Run(ctx, day); err != nil {
			return err
		}
		_, err := builder.Run(ctx, 50)
		return err
	})
	sched.Register("notify", func(ctx context.Context) error {
		_, err := notifier.RunOnce(ctx)
		return err
	})
	sched.Register("paper.entry", func(ctx context.Context) error {
		_, err := loop.Enter(ctx, 50)
		return err
	})
	sched.Register("paper.update", func(ctx context.Context) error {
		_, err := loop.Update(ctx, time.Now().UTC())
		return err
	})
	sched.Register("tickers.sweep", func(ctx context.Context) error {
		_, err := mapper.MapUnmapped(ctx, 50)
		return err
	})
}
