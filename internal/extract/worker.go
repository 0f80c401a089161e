package extract

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evafinance/evacore/internal/metrics"
	"github.com/evafinance/evacore/internal/models"
	"github.com/evafinance/evacore/internal/store"
)

const (
	// BatchSize is how many raw posts one worker pass claims.
	BatchSize = 20

	// claimStaleAfter is how long a stamped claim holds before another
	// worker may reclaim the row.
	claimStaleAfter = 10 * time.Minute

	// idleSleep is the poll interval when the backlog is empty.
	idleSleep = 10 * time.Second
)

// Worker drains the raw-post backlog into processed rows. Claims are
// short skip-locked transactions; extraction runs outside any
// transaction so a slow model call never holds row locks.
type Worker struct {
	store    *store.Store
	strategy *Strategy
}

// NewWorker builds an extraction worker.
func NewWorker(st *store.Store, strategy *Strategy) *Worker {
	return &Worker{store: st, strategy: strategy}
}

// Run loops until ctx is cancelled, sleeping when the backlog is empty.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().Int("batch", BatchSize).Msg("extraction worker started")
	for {
		n, err := w.RunOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("extraction pass failed")
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idleSleep):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// RunOnce claims one batch and processes every claimed row, returning
// how many rows completed. Row failures are logged and skipped; the
// claim stamp expires and the row is retried later.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	posts, err := w.store.ClaimUnprocessed(ctx, BatchSize, claimStaleAfter)
	if err != nil {
		return 0, err
	}
	if len(posts) == 0 {
		return 0, nil
	}

	done := 0
	for _, post := range posts {
		res, path := w.strategy.Extract(ctx, post.Text)
		err := w.store.CompleteExtraction(ctx, models.ProcessedPost{
			RawID:            post.ID,
			Brands:           res.Brands,
			Tags:             res.Tags,
			Sentiment:        res.Sentiment,
			Intent:           res.Intent,
			Tickers:          res.Tickers,
			ProcessorVersion: res.ProcessorVersion,
		})
		if err != nil {
			log.Error().Err(err).Int64("raw_id", post.ID).Msg("extraction completion failed")
			continue
		}
		metrics.Extractions.WithLabelValues(path).Inc()
		done++
	}
	log.Info().Int("claimed", len(posts)).Int("completed", done).Msg("extraction pass")
	return done, nil
}
