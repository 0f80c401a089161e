package store

import (
	"context"
	"time"

	"github.com/evafinance/evacore/internal/models"
)

// candidateSQL materializes the candidate-signal projection from the base
// tables: daily (day, brand, tag) aggregates joined against the previous
// day's share of voice. meme_risk rises when evaluative chatter is high
// but action language is low.
const candidateSQL = `
WITH exploded AS (
	SELECT
		date_trunc('day', rp.ts)::date AS day,
		tag,
		brand,
		rp.source,
		COALESCE(rp.meta->>'community', rp.source) AS platform,
		pp.intent
	FROM processed_posts pp
	JOIN raw_posts rp ON rp.id = pp.raw_id
	CROSS JOIN LATERAL unnest(pp.tags) AS tag
	CROSS JOIN LATERAL unnest(pp.brands) AS brand
	WHERE tag <> '' AND brand <> ''
),
daily AS (
	SELECT
		day, tag, brand,
		count(*) AS msg_count,
		count(DISTINCT source) AS source_count,
		count(DISTINCT platform) AS platform_count,
		avg(CASE WHEN intent IN ('buy','own','recommendation') THEN 1.0 ELSE 0.0 END) AS action_intent_rate,
		avg(CASE WHEN intent IN ('none','complaint') THEN 1.0 ELSE 0.0 END) AS eval_intent_rate
	FROM exploded
	GROUP BY day, tag, brand
),
shares AS (
	SELECT
		day, tag, brand, msg_count, source_count, platform_count,
		action_intent_rate, eval_intent_rate,
		100.0 * msg_count / sum(msg_count) OVER (PARTITION BY day, tag) AS share_pct
	FROM daily
)
SELECT
	cur.day, cur.tag, cur.brand,
	cur.msg_count, cur.source_count, cur.platform_count,
	cur.action_intent_rate, cur.eval_intent_rate,
	COALESCE(cur.share_pct - prev.share_pct, 0.0) AS delta_pct,
	GREATEST(0.0, LEAST(1.0, cur.eval_intent_rate - cur.action_intent_rate)) AS meme_risk
FROM shares cur
LEFT JOIN shares prev
	ON prev.day = cur.day - 1 AND prev.tag = cur.tag AND prev.brand = cur.brand
WHERE cur.day >= $1
ORDER BY cur.day, cur.tag, cur.brand`

// CandidateSignals returns scoring candidates for days at or after since.
func (s *Store) CandidateSignals(ctx context.Context, since time.Time) ([]models.CandidateSignal, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var rows []models.CandidateSignal
	if err := s.db.SelectContext(ctx, &rows, candidateSQL, since); err != nil {
		return nil, classify("store.candidate_signals", err)
	}
	return rows, nil
}

// ElevatedTags returns tags currently ELEVATED with last_seen at or after
// the given cutoff, for TAG_ELEVATED trigger emission.
func (s *Store) ElevatedTags(ctx context.Context, lastSeenAfter time.Time) ([]models.BehaviorState, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var rows []models.BehaviorState
	err := s.db.SelectContext(ctx, &rows, `
		SELECT tag, state, confidence, first_seen, last_seen
		FROM behavior_states
		WHERE state = $1 AND last_seen >= $2
		ORDER BY last_seen DESC`,
		models.StateElevated, lastSeenAfter)
	if err != nil {
		return nil, classify("store.elevated_tags", err)
	}
	return rows, nil
}

// divergenceSQL materializes the brand-divergence trigger projection:
// brands whose share of tag-day messages moved by at least 5 percentage
// points day-over-day, with a z-score of the change against the tag's
// recent delta history.
const divergenceSQL = `
WITH exploded AS (
	SELECT
		date_trunc('day', rp.ts)::date AS day,
		tag,
		brand
	FROM processed_posts pp
	JOIN raw_posts rp ON rp.id = pp.raw_id
	CROSS JOIN LATERAL unnest(pp.tags) AS tag
	CROSS JOIN LATERAL unnest(pp.brands) AS brand
	WHERE tag <> '' AND brand <> ''
),
shares AS (
	SELECT
		day, tag, brand,
		100.0 * count(*) / sum(count(*)) OVER (PARTITION BY day, tag) AS share_pct
	FROM exploded
	GROUP BY day, tag, brand
),
deltas AS (
	SELECT
		cur.day, cur.tag, cur.brand,
		cur.share_pct - prev.share_pct AS delta_pct
	FROM shares cur
	JOIN shares prev
		ON prev.day = cur.day - 1 AND prev.tag = cur.tag AND prev.brand = cur.brand
),
stats AS (
	SELECT tag, avg(delta_pct) AS mean_delta, COALESCE(NULLIF(stddev_samp(delta_pct), 0), 1) AS sd_delta
	FROM deltas
	GROUP BY tag
)
SELECT
	d.tag, d.brand, d.day, d.delta_pct,
	(d.delta_pct - st.mean_delta) / st.sd_delta AS z_score
FROM deltas d
JOIN stats st ON st.tag = d.tag
WHERE abs(d.delta_pct) >= $1
  AND d.day >= $2
ORDER BY d.day DESC`

// BrandDivergences returns day-over-day share-of-voice moves of at least
// minDeltaPct percentage points for days at or after since.
func (s *Store) BrandDivergences(ctx context.Context, minDeltaPct float64, since time.Time) ([]models.BrandDivergence, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var rows []models.BrandDivergence
	if err := s.db.SelectContext(ctx, &rows, divergenceSQL, minDeltaPct, since); err != nil {
		return nil, classify("store.brand_divergences", err)
	}
	return rows, nil
}

// UpsertBehaviorState advances a tag's state row. last_seen only moves
// forward; transitions to ELEVATED latch until a later scoring run
// decides otherwise.
func (s *Store) UpsertBehaviorState(ctx context.Context, st models.BehaviorState) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO behavior_states (tag, state, confidence, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (tag) DO UPDATE SET
			state = EXCLUDED.state,
			confidence = EXCLUDED.confidence,
			last_seen = GREATEST(behavior_states.last_seen, EXCLUDED.last_seen)`,
		st.Tag, st.State, st.Confidence, st.LastSeen)
	if err != nil {
		return classify("store.upsert_behavior_state", err)
	}
	return nil
}
