package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/errs"
	"github.com/evafinance/evacore/internal/store"
)

const (
	appName = "eva"
	version = "v1.0.0"
)

// Exit codes: 0 success, 1 user error, 2 store error, 3 external
// provider error.
const (
	exitOK       = 0
	exitUser     = 1
	exitStore    = 2
	exitProvider = 3
)

// exitCodeFor maps a classified error onto the exit-code contract.
// Unclassified failures count as user-facing errors.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	switch errs.KindOf(err) {
	case errs.KindStoreTransient, errs.KindStorePermanent:
		return exitStore
	case errs.KindTransientExternal, errs.KindPermanentExternal, errs.KindPoison:
		return exitProvider
	default:
		return exitUser
	}
}

func main() {
	setupLogging()

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "EVA signal core: community chatter in, auditable recommendations out",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newWorkerCmd(),
		newScoreCmd(),
		newPaperCmd(),
		newScheduleCmd(),
		newBrandsCmd(),
		newDraftsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(exitCodeFor(err))
	}
}

// setupLogging configures zerolog: human console output on a terminal,
// JSON otherwise.
func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("EVA_LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
}

// app holds the shared process dependencies for one command run.
type app struct {
	cfg   *config.Config
	store *store.Store
}

// loadApp loads config and connects the store. Configuration problems
// exit with the config code before any work starts.
func loadApp(ctx context.Context) *app {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("configuration invalid")
		os.Exit(exitUser)
	}
	st, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("store connection failed")
		os.Exit(exitStore)
	}
	return &app{cfg: cfg, store: st}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
