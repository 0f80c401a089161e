package store

import (
	"context"

	"github.com/evafinance/evacore/internal/models"
)

// InsertEvent appends one signal event. The unique index on
// (event_type, coalesce(tag,''), coalesce(brand,''), day) makes repeat
// emission a no-op; the bool reports whether a new row was written.
func (s *Store) InsertEvent(ctx context.Context, ev models.SignalEvent) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO signal_events (event_type, tag, brand, day, severity, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_type, COALESCE(tag, ''), COALESCE(brand, ''), day) DO NOTHING`,
		ev.Kind, ev.Tag, ev.Brand, ev.Day, ev.Severity, ev.Payload)
	if err != nil {
		return false, classify("store.insert_event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("store.insert_event", err)
	}
	return n > 0, nil
}

// ListEvents returns events filtered on acknowledgement, newest first.
func (s *Store) ListEvents(ctx context.Context, acknowledged bool, limit int) ([]models.SignalEvent, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var events []models.SignalEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, event_type, tag, brand, day, severity, payload, acknowledged, created_at
		FROM signal_events
		WHERE acknowledged = $1
		ORDER BY id DESC
		LIMIT $2`,
		acknowledged, limit)
	if err != nil {
		return nil, classify("store.list_events", err)
	}
	return events, nil
}

// EventsSince returns events with id greater than afterID, oldest first.
// Used by the live event stream.
func (s *Store) EventsSince(ctx context.Context, afterID int64, limit int) ([]models.SignalEvent, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var events []models.SignalEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, event_type, tag, brand, day, severity, payload, acknowledged, created_at
		FROM signal_events
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2`,
		afterID, limit)
	if err != nil {
		return nil, classify("store.events_since", err)
	}
	return events, nil
}

// MaxEventID returns the highest event id regardless of acknowledgement,
// or 0 when no events exist. The live stream starts here on a fresh
// connection so already-acknowledged events are never replayed.
func (s *Store) MaxEventID(ctx context.Context) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowxContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM signal_events`).Scan(&id)
	if err != nil {
		return 0, classify("store.max_event_id", err)
	}
	return id, nil
}

// AckEvent marks one event acknowledged. Returns false when no row matched.
func (s *Store) AckEvent(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE signal_events SET acknowledged = TRUE WHERE id = $1`, id)
	if err != nil {
		return false, classify("store.ack_event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("store.ack_event", err)
	}
	return n > 0, nil
}

// EligibleEventsWithoutDraft returns RECOMMENDATION_ELIGIBLE events that do
// not yet have a recommendation draft, oldest first.
func (s *Store) EligibleEventsWithoutDraft(ctx context.Context, limit int) ([]models.SignalEvent, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var events []models.SignalEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT se.id, se.event_type, se.tag, se.brand, se.day, se.severity,
		       se.payload, se.acknowledged, se.created_at
		FROM signal_events se
		LEFT JOIN recommendation_drafts rd ON rd.signal_event_id = se.id
		WHERE se.event_type = $1
		  AND rd.signal_event_id IS NULL
		ORDER BY se.created_at ASC
		LIMIT $2`,
		models.EventRecommendationEligible, limit)
	if err != nil {
		return nil, classify("store.eligible_without_draft", err)
	}
	return events, nil
}

// EligibleEventsWithoutPosition returns approved RECOMMENDATION_ELIGIBLE
// events that have no paper position yet. Approval is the human gate: a
// position is only simulated once the draft behind the event was approved.
func (s *Store) EligibleEventsWithoutPosition(ctx context.Context, limit int) ([]models.SignalEvent, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var events []models.SignalEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT se.id, se.event_type, se.tag, se.brand, se.day, se.severity,
		       se.payload, se.acknowledged, se.created_at
		FROM signal_events se
		JOIN recommendation_drafts rd ON rd.signal_event_id = se.id AND rd.approved = TRUE
		LEFT JOIN paper_positions pp ON pp.signal_event_id = se.id
		WHERE se.event_type = $1
		  AND pp.id IS NULL
		ORDER BY se.day DESC
		LIMIT $2`,
		models.EventRecommendationEligible, limit)
	if err != nil {
		return nil, classify("store.eligible_without_position", err)
	}
	return events, nil
}
