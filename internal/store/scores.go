package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/evafinance/evacore/internal/models"
)

// UpsertScore persists one confidence score, unique on
// (day, tag, brand, scoring_version). Re-running the scorer for an
// unchanged projection rewrites identical content.
func (s *Store) UpsertScore(ctx context.Context, sc models.ConfidenceScore) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO confidence_scores (
			day, tag, brand,
			acceleration_score, intent_score, spread_score, baseline_score, suppression_score,
			final_confidence, band, gate_failed_reason, scoring_version, details
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (day, tag, brand, scoring_version)
		DO UPDATE SET
			acceleration_score = EXCLUDED.acceleration_score,
			intent_score = EXCLUDED.intent_score,
			spread_score = EXCLUDED.spread_score,
			baseline_score = EXCLUDED.baseline_score,
			suppression_score = EXCLUDED.suppression_score,
			final_confidence = EXCLUDED.final_confidence,
			band = EXCLUDED.band,
			gate_failed_reason = EXCLUDED.gate_failed_reason,
			details = EXCLUDED.details,
			computed_at = now()`,
		sc.Day, sc.Tag, sc.Brand,
		sc.Acceleration, sc.Intent, sc.Spread, sc.Baseline, sc.Suppression,
		sc.Final, sc.Band, sc.GateFailReason, sc.ScoringVersion, sc.Details)
	if err != nil {
		return classify("store.upsert_score", err)
	}
	return nil
}

// ScoresNear returns confidence snapshots for a brand within the window
// [around-windowDays, around+windowDays]. The recommendation builder picks
// the best snapshot from these.
func (s *Store) ScoresNear(ctx context.Context, brand string, around time.Time, windowDays int) ([]models.ConfidenceScore, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var rows []models.ConfidenceScore
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, day, tag, brand,
		       acceleration_score, intent_score, spread_score, baseline_score, suppression_score,
		       final_confidence, band, gate_failed_reason, scoring_version, details, computed_at
		FROM confidence_scores
		WHERE lower(brand) = lower($1)
		  AND day BETWEEN $2::date - $3 AND $2::date + $3
		ORDER BY day DESC`,
		brand, around, windowDays)
	if err != nil {
		return nil, classify("store.scores_near", err)
	}
	return rows, nil
}

// PreviousBand returns the band persisted for (day, tag, brand, version)
// before the current scoring run, used to detect band transitions.
func (s *Store) PreviousBand(ctx context.Context, day time.Time, tag, brand, version string) (models.Band, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var band models.Band
	err := s.db.QueryRowxContext(ctx, `
		SELECT band FROM confidence_scores
		WHERE day = $1 AND tag = $2 AND brand = $3 AND scoring_version = $4`,
		day, tag, brand, version).Scan(&band)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, classify("store.previous_band", err)
	}
	return band, true, nil
}

// InsertTrendsValidation records one external-search validation attempt.
func (s *Store) InsertTrendsValidation(ctx context.Context, v models.TrendsValidation) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trends_validations (
			brand, checked_at, search_interest, trend_direction,
			validates_signal, confidence_boost, validation_status, query_term, error_message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.Brand, v.CheckedAt, v.SearchInterest, v.TrendDirection,
		v.ValidatesSignal, v.ConfidenceBoost, v.Status, v.QueryTerm, v.ErrorMessage)
	if err != nil {
		return classify("store.insert_trends_validation", err)
	}
	return nil
}
