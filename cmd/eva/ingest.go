package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/ingest"
)

func newIngestCmd() *cobra.Command {
	var loop bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Poll community feeds into the admission endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			// The conductor talks to the admission endpoint over HTTP
			// and needs no database of its own.
			cfg, err := config.Load()
			if err != nil {
				log.Error().Err(err).Msg("configuration invalid")
				os.Exit(exitUser)
			}

			conductor, err := ingest.NewConductor(cfg.Ingest)
			if err != nil {
				log.Error().Err(err).Msg("feed configuration invalid")
				os.Exit(exitUser)
			}

			if loop {
				return conductor.Run(ctx)
			}
			stats, err := conductor.RunOnce(ctx)
			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				// Feed fetches or admission posts failed upstream.
				os.Exit(exitProvider)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&loop, "loop", false, "run continuously on the configured interval")
	return cmd
}
