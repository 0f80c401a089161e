// Package triggers turns projections over the processed corpus into
// signal events. Emission is idempotent: the store dedupes on
// (kind, tag, brand, day), so re-running an emitter pass is safe.
package triggers

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evafinance/evacore/internal/metrics"
	"github.com/evafinance/evacore/internal/models"
	"github.com/evafinance/evacore/internal/store"
)

const (
	// MinShareDeltaPct is the day-over-day share-of-voice move, in
	// percentage points, that qualifies as a brand divergence.
	MinShareDeltaPct = 5.0

	// criticalZScore upgrades a divergence to critical severity when the
	// move is an outlier against the tag's recent delta history.
	criticalZScore = 2.0

	// elevatedFreshness bounds how stale an ELEVATED tag may be and still
	// produce a TAG_ELEVATED event: last_seen today or yesterday.
	elevatedFreshness = 24 * time.Hour
)

// Emitter scans trigger projections and appends signal events.
type Emitter struct {
	store *store.Store
}

// NewEmitter builds a trigger emitter over the store.
func NewEmitter(st *store.Store) *Emitter {
	return &Emitter{store: st}
}

// Stats summarizes one emitter pass.
type Stats struct {
	TagElevated     int
	BrandDivergence int
}

// Run emits both trigger kinds for the given day and returns how many
// new events each produced. Duplicate emissions count as zero.
func (e *Emitter) Run(ctx context.Context, day time.Time) (Stats, error) {
	var stats Stats

	tagN, err := e.emitTagElevated(ctx, day)
	if err != nil {
		return stats, err
	}
	stats.TagElevated = tagN

	divN, err := e.emitBrandDivergence(ctx, day)
	if err != nil {
		return stats, err
	}
	stats.BrandDivergence = divN

	log.Info().
		Int("tag_elevated", stats.TagElevated).
		Int("brand_divergence", stats.BrandDivergence).
		Msg("trigger pass")
	return stats, nil
}

// emitTagElevated emits one TAG_ELEVATED per tag whose behavior state is
// ELEVATED and fresh. The event carries the state confidence so the
// reader sees why the tag latched.
func (e *Emitter) emitTagElevated(ctx context.Context, day time.Time) (int, error) {
	cutoff := day.Add(-elevatedFreshness)
	states, err := e.store.ElevatedTags(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	emitted := 0
	for _, st := range states {
		tag := st.Tag
		ok, err := e.store.InsertEvent(ctx, models.SignalEvent{
			Kind:     models.EventTagElevated,
			Tag:      &tag,
			Day:      day,
			Severity: models.SeverityWarning,
			Payload: models.JSONMap{
				"confidence": st.Confidence,
				"first_seen": st.FirstSeen.Format("2006-01-02"),
				"last_seen":  st.LastSeen.Format("2006-01-02"),
			},
		})
		if err != nil {
			return emitted, err
		}
		if ok {
			metrics.EventsEmitted.WithLabelValues(string(models.EventTagElevated)).Inc()
			emitted++
		}
	}
	return emitted, nil
}

// emitBrandDivergence emits one BRAND_DIVERGENCE per qualifying share
// move. Outlier moves (|z| above the critical threshold) are critical,
// the rest warning.
func (e *Emitter) emitBrandDivergence(ctx context.Context, day time.Time) (int, error) {
	divs, err := e.store.BrandDivergences(ctx, MinShareDeltaPct, day)
	if err != nil {
		return 0, err
	}

	emitted := 0
	for _, d := range divs {
		severity := models.SeverityWarning
		if math.Abs(d.ZScore) > criticalZScore {
			severity = models.SeverityCritical
		}
		tag, brand := d.Tag, d.Brand
		ok, err := e.store.InsertEvent(ctx, models.SignalEvent{
			Kind:     models.EventBrandDivergence,
			Tag:      &tag,
			Brand:    &brand,
			Day:      d.Day,
			Severity: severity,
			Payload: models.JSONMap{
				"delta_pct": d.DeltaPct,
				"z_score":   d.ZScore,
			},
		})
		if err != nil {
			return emitted, err
		}
		if ok {
			metrics.EventsEmitted.WithLabelValues(string(models.EventBrandDivergence)).Inc()
			emitted++
		}
	}
	return emitted, nil
}
