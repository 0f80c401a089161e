package reco

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/models"
	"github.com/evafinance/evacore/internal/store"
)

const (
	// evidenceWindowDays bounds evidence collection before the event.
	evidenceWindowDays = 7

	// snapshotWindowDays is how far either side of the event day the
	// builder searches for a confidence snapshot.
	snapshotWindowDays = 2

	generatorComponent = "evacore"
)

// Builder turns RECOMMENDATION_ELIGIBLE events into draft artifacts.
type Builder struct {
	store   *store.Store
	cfg     config.RecoConfig
	version string
}

// NewBuilder builds the recommendation builder.
func NewBuilder(st *store.Store, cfg config.RecoConfig, version string) *Builder {
	return &Builder{store: st, cfg: cfg, version: version}
}

// Run drafts every eligible event without one yet and returns how many
// drafts were created.
func (b *Builder) Run(ctx context.Context, limit int) (int, error) {
	events, err := b.store.EligibleEventsWithoutDraft(ctx, limit)
	if err != nil {
		return 0, err
	}

	built := 0
	for _, ev := range events {
		if ev.Brand == nil || *ev.Brand == "" || ev.Tag == nil || *ev.Tag == "" {
			continue
		}
		if err := b.buildOne(ctx, ev); err != nil {
			log.Error().Err(err).Int64("event_id", ev.ID).Msg("draft build failed")
			continue
		}
		built++
	}
	if built > 0 {
		log.Info().Int("built", built).Msg("recommendation drafts created")
	}
	return built, nil
}

func (b *Builder) buildOne(ctx context.Context, ev models.SignalEvent) error {
	brand, tag := *ev.Brand, *ev.Tag

	snapshot, err := b.pickSnapshot(ctx, brand, tag, ev.Day)
	if err != nil {
		return err
	}

	windowEnd := ev.Day.Add(24 * time.Hour)
	windowStart := ev.Day.AddDate(0, 0, -evidenceWindowDays)
	rows, err := b.store.EvidenceForBrand(ctx, brand, windowStart, windowEnd, b.cfg.EvidenceLimit)
	if err != nil {
		return err
	}

	bundle := b.assemble(ev, brand, tag, snapshot, rows, windowStart, windowEnd)

	slug := slugify(brand)
	outDir := filepath.Join(b.cfg.OutputDir, slug)
	bundlePath := filepath.Join(outDir, fmt.Sprintf("%d_evidence.json.gz", ev.ID))
	mdPath := filepath.Join(outDir, fmt.Sprintf("%d_EVA-Finance_Recommendation.md", ev.ID))

	sha, err := WriteBundle(bundlePath, bundle)
	if err != nil {
		return err
	}
	md, err := RenderMarkdown(bundle, bundlePath, sha, b.cfg.ExcerptMax, b.cfg.ExcerptChars)
	if err != nil {
		return err
	}
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return err
	}

	confidence := 0.0
	band := models.BandHigh
	if snapshot != nil {
		confidence = snapshot.Final
		band = snapshot.Band
	} else if v, ok := ev.Payload["final_confidence"].(float64); ok {
		confidence = v
	}

	created, err := b.store.InsertDraft(ctx, models.RecommendationDraft{
		SignalEventID:   ev.ID,
		Brand:           brand,
		Tag:             tag,
		EventTime:       ev.CreatedAt,
		FinalConfidence: confidence,
		Band:            band,
		BundlePath:      bundlePath,
		BundleSHA256:    sha,
		MarkdownPath:    mdPath,
	})
	if err != nil {
		return err
	}
	if created {
		log.Info().Int64("event_id", ev.ID).Str("brand", brand).
			Str("bundle", bundlePath).Msg("draft registered")
	}
	return nil
}

// pickSnapshot selects the confidence snapshot for the draft: scores
// within two days of the event, preferring the event's tag, then
// snapshots at or before the event day, then the closest day.
func (b *Builder) pickSnapshot(ctx context.Context, brand, tag string, day time.Time) (*models.ConfidenceScore, error) {
	scores, err := b.store.ScoresNear(ctx, brand, day, snapshotWindowDays)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}

	var best *models.ConfidenceScore
	bestRank := -1
	for i := range scores {
		sc := &scores[i]
		rank := 0
		if sc.Tag == tag {
			rank += 4
		}
		if !sc.Day.After(day) {
			rank += 2
		}
		gap := int(day.Sub(sc.Day).Hours() / 24)
		if gap < 0 {
			gap = -gap
		}
		rank += snapshotWindowDays - gap
		if rank > bestRank {
			best, bestRank = sc, rank
		}
	}
	return best, nil
}

func (b *Builder) assemble(ev models.SignalEvent, brand, tag string,
	snapshot *models.ConfidenceScore, rows []store.EvidenceRow,
	windowStart, windowEnd time.Time) Bundle {

	items := make([]EvidenceItem, 0, len(rows))
	for _, r := range rows {
		item := EvidenceItem{
			ProcessedMessageID: r.ProcessedID,
			RawMessageID:       r.RawID,
			CreatedAt:          r.CreatedAt.UTC().Format(time.RFC3339),
			Source:             EvidenceSource{Platform: r.Source},
			Raw:                EvidenceText{Text: r.Text},
			Sanitized:          EvidenceText{Text: Sanitize(r.Text)},
			Processed:          EvidenceMeta{Sentiment: r.Sentiment, Intent: r.Intent},
		}
		if r.Community.Valid {
			item.Source.Community = r.Community.String
		}
		if r.URL.Valid {
			item.Source.Permalink = r.URL.String
		}
		items = append(items, item)
	}

	bundle := Bundle{
		Schema:        BundleSchema,
		SchemaVersion: BundleSchemaVersion,
		Anchor: BundleAnchor{
			SignalEventID: ev.ID,
			EventType:     string(ev.Kind),
			EventTime:     ev.CreatedAt.UTC().Format(time.RFC3339),
			Entity:        BundleEntity{Name: brand, Tag: tag},
		},
		SourceWindow: BundleWindow{
			Start: windowStart.UTC().Format(time.RFC3339),
			End:   windowEnd.UTC().Format(time.RFC3339),
		},
		EvidenceItems: items,
		Generator:     BundleGenerator{Component: generatorComponent, Version: b.version},
	}
	if snapshot != nil {
		bundle.Snapshot = &SnapshotRecord{
			ID:              snapshot.ID,
			Day:             snapshot.Day.Format("2006-01-02"),
			Tag:             snapshot.Tag,
			FinalConfidence: snapshot.Final,
			Band:            string(snapshot.Band),
			ScoringVersion:  snapshot.ScoringVersion,
		}
	}
	return bundle
}
