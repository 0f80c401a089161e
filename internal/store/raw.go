package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/evafinance/evacore/internal/errs"
	"github.com/evafinance/evacore/internal/models"
)

// InsertResult reports the outcome of an idempotent raw-post insert.
type InsertResult struct {
	ID        int64
	Duplicate bool
}

// InsertRaw persists one raw post keyed by (source, platform_id). A repeat
// delivery returns the original row's id with Duplicate set; the stored
// row is never rewritten.
func (s *Store) InsertRaw(ctx context.Context, post models.RawPost) (InsertResult, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO raw_posts (source, platform_id, ts, text, url, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source, platform_id) DO NOTHING
		RETURNING id`,
		post.Source, post.PlatformID, post.Timestamp, post.Text, post.URL, post.Meta,
	).Scan(&id)
	if err == nil {
		return InsertResult{ID: id}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return InsertResult{}, classify("store.insert_raw", err)
	}

	// Conflict path: the row already exists, return its id.
	err = s.db.QueryRowxContext(ctx, `
		SELECT id FROM raw_posts WHERE source = $1 AND platform_id = $2`,
		post.Source, post.PlatformID,
	).Scan(&id)
	if err != nil {
		return InsertResult{}, classify("store.insert_raw_lookup", err)
	}
	return InsertResult{ID: id, Duplicate: true}, nil
}

// ClaimUnprocessed atomically claims up to limit unprocessed raw posts for
// extraction. The claim is a short transaction: rows are locked with
// skip-locked semantics and stamped claimed_at, so concurrent workers never
// claim the same row and a crashed worker's claim expires after staleAfter.
// Extraction itself happens outside the transaction.
func (s *Store) ClaimUnprocessed(ctx context.Context, limit int, staleAfter time.Duration) ([]models.RawPost, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var rows []models.RawPost
	err := s.RetryTx(ctx, func(tx *sqlx.Tx) error {
		rows = nil
		err := tx.SelectContext(ctx, &rows, `
			SELECT id, source, platform_id, ts, text, url, meta, processed, claimed_at, created_at
			FROM raw_posts
			WHERE processed = FALSE
			  AND (claimed_at IS NULL OR claimed_at < now() - $2::interval)
			ORDER BY id ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED`,
			limit, staleAfter.String())
		if err != nil {
			return classify("store.claim_unprocessed", err)
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]int64, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		query, args, err := sqlx.In(`UPDATE raw_posts SET claimed_at = now() WHERE id IN (?)`, ids)
		if err != nil {
			return errs.StorePermanent("store.claim_stamp", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return classify("store.claim_stamp", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CompleteExtraction writes the processed row and marks the raw row
// processed in one transaction. The processed insert is idempotent on
// raw_id, so a crash between extraction and completion is safe to retry.
func (s *Store) CompleteExtraction(ctx context.Context, p models.ProcessedPost) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.RetryTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO processed_posts
				(raw_id, brands, tags, sentiment, intent, tickers, processor_version)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (raw_id) DO NOTHING`,
			p.RawID, p.Brands, p.Tags, p.Sentiment, p.Intent, p.Tickers, p.ProcessorVersion)
		if err != nil {
			return classify("store.insert_processed", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE raw_posts SET processed = TRUE, claimed_at = NULL WHERE id = $1`,
			p.RawID); err != nil {
			return classify("store.mark_processed", err)
		}
		return nil
	})
}

// UnprocessedCount returns the extraction backlog size.
func (s *Store) UnprocessedCount(ctx context.Context) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRowxContext(ctx,
		`SELECT count(*) FROM raw_posts WHERE processed = FALSE`).Scan(&n)
	if err != nil {
		return 0, classify("store.unprocessed_count", err)
	}
	return n, nil
}
