package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/evafinance/evacore/internal/models"
)

// InsertDraft registers one recommendation draft keyed by its triggering
// event. Repeat registration is a no-op; the bool reports whether a new
// row was written.
func (s *Store) InsertDraft(ctx context.Context, d models.RecommendationDraft) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendation_drafts (
			signal_event_id, brand, tag, event_time,
			final_confidence, band, bundle_path, bundle_sha256, markdown_path
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (signal_event_id) DO NOTHING`,
		d.SignalEventID, d.Brand, d.Tag, d.EventTime,
		d.FinalConfidence, d.Band, d.BundlePath, d.BundleSHA256, d.MarkdownPath)
	if err != nil {
		return false, classify("store.insert_draft", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("store.insert_draft", err)
	}
	return n > 0, nil
}

// ClaimApprovedDrafts claims up to limit deliverable drafts in a single
// transaction: approved, not yet notified, attempts under the cap, oldest
// first, locked with skip-locked semantics. Every claim increments
// attempts inside the same transaction, so a crash after the claim still
// costs one attempt and the poison cap holds.
func (s *Store) ClaimApprovedDrafts(ctx context.Context, limit, maxAttempts int) ([]models.RecommendationDraft, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var drafts []models.RecommendationDraft
	err := s.RetryTx(ctx, func(tx *sqlx.Tx) error {
		drafts = nil
		err := tx.SelectContext(ctx, &drafts, `
			UPDATE recommendation_drafts
			SET notify_attempts = notify_attempts + 1
			WHERE id IN (
				SELECT id FROM recommendation_drafts
				WHERE approved = TRUE
				  AND notified_at IS NULL
				  AND notify_attempts < $2
				ORDER BY created_at ASC
				LIMIT $1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, signal_event_id, brand, tag, event_time,
			          final_confidence, band, bundle_path, bundle_sha256, markdown_path,
			          approved, approved_by, approved_at, notified_at,
			          notify_attempts, last_notify_error, created_at`,
			limit, maxAttempts)
		if err != nil {
			return classify("store.claim_drafts", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

// MarkNotified records a successful delivery. The update re-checks that
// approval still holds and that no other worker already marked the draft,
// so a revoked approval between claim and delivery is not notified.
func (s *Store) MarkNotified(ctx context.Context, draftID int64) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE recommendation_drafts
		SET notified_at = now(), last_notify_error = NULL
		WHERE id = $1 AND approved = TRUE AND notified_at IS NULL`,
		draftID)
	if err != nil {
		return false, classify("store.mark_notified", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("store.mark_notified", err)
	}
	return n > 0, nil
}

// RecordNotifyFailure stores the normalized delivery error. Attempts were
// already charged at claim time.
func (s *Store) RecordNotifyFailure(ctx context.Context, draftID int64, errMsg string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if len(errMsg) > 500 {
		errMsg = errMsg[:500]
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE recommendation_drafts
		SET last_notify_error = $2
		WHERE id = $1`,
		draftID, errMsg)
	if err != nil {
		return classify("store.record_notify_failure", err)
	}
	return nil
}

// ApproveDraft sets the human approval with approver identity and time.
func (s *Store) ApproveDraft(ctx context.Context, draftID int64, approver string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE recommendation_drafts
		SET approved = TRUE, approved_by = $2, approved_at = now()
		WHERE id = $1 AND approved = FALSE`,
		draftID, approver)
	if err != nil {
		return false, classify("store.approve_draft", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("store.approve_draft", err)
	}
	return n > 0, nil
}

// ResetRetries clears a poison draft's attempts and error after operator
// investigation.
func (s *Store) ResetRetries(ctx context.Context, draftID int64) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE recommendation_drafts
		SET notify_attempts = 0, last_notify_error = NULL
		WHERE id = $1 AND notified_at IS NULL`,
		draftID)
	if err != nil {
		return false, classify("store.reset_retries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("store.reset_retries", err)
	}
	return n > 0, nil
}

// GetDraft fetches one draft by id.
func (s *Store) GetDraft(ctx context.Context, draftID int64) (*models.RecommendationDraft, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var d models.RecommendationDraft
	err := s.db.GetContext(ctx, &d, `
		SELECT id, signal_event_id, brand, tag, event_time,
		       final_confidence, band, bundle_path, bundle_sha256, markdown_path,
		       approved, approved_by, approved_at, notified_at,
		       notify_attempts, last_notify_error, created_at
		FROM recommendation_drafts WHERE id = $1`,
		draftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("store.get_draft", err)
	}
	return &d, nil
}

// EvidenceRow is one sanitizable excerpt source for a bundle.
type EvidenceRow struct {
	ProcessedID int64          `db:"processed_id"`
	RawID       int64          `db:"raw_id"`
	Source      string         `db:"source"`
	Community   sql.NullString `db:"community"`
	URL         sql.NullString `db:"url"`
	Text        string         `db:"text"`
	Sentiment   string         `db:"sentiment"`
	Intent      string         `db:"intent"`
	CreatedAt   time.Time      `db:"created_at"`
}

// EvidenceForBrand returns processed posts mentioning the brand inside the
// window, newest first, up to limit.
func (s *Store) EvidenceForBrand(ctx context.Context, brand string, from, to time.Time, limit int) ([]EvidenceRow, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var rows []EvidenceRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT pp.id AS processed_id, rp.id AS raw_id, rp.source,
		       rp.meta->>'community' AS community, rp.url, rp.text,
		       pp.sentiment, pp.intent, rp.created_at
		FROM processed_posts pp
		JOIN raw_posts rp ON rp.id = pp.raw_id
		WHERE $1 ILIKE ANY(pp.brands)
		  AND rp.ts BETWEEN $2 AND $3
		ORDER BY rp.ts DESC
		LIMIT $4`,
		brand, from, to, limit)
	if err != nil {
		return nil, classify("store.evidence_for_brand", err)
	}
	return rows, nil
}
