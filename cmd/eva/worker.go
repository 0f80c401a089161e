package main

import (
	"github.com/spf13/cobra"

	"github.com/evafinance/evacore/internal/extract"
	"github.com/evafinance/evacore/internal/notify"
)

func newWorkerCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the extraction worker and notifier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app := loadApp(ctx)
			defer app.store.Close()

			strategy := extract.NewStrategy(
				asExtractor(extract.NewLLMExtractor(app.cfg.LLM)),
				extract.NewHeuristicExtractor(nil),
			)
			worker := extract.NewWorker(app.store, strategy)
			notifier := notify.NewNotifier(app.store,
				notify.NewHTTPGateway(app.cfg.Notify), app.cfg.Notify)

			if once {
				if _, err := worker.RunOnce(ctx); err != nil {
					return err
				}
				_, err := notifier.RunOnce(ctx)
				return err
			}

			errCh := make(chan error, 2)
			go func() { errCh <- worker.Run(ctx) }()
			go func() { errCh <- notifier.Run(ctx) }()
			return <-errCh
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run one pass and exit")
	return cmd
}

// asExtractor keeps a nil *LLMExtractor from becoming a non-nil
// interface inside the strategy.
func asExtractor(llm *extract.LLMExtractor) extract.Extractor {
	if llm == nil {
		return nil
	}
	return llm
}
