package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/metrics"
	"github.com/evafinance/evacore/internal/store"
)

// Notifier drains approved, undelivered drafts through the gateway.
type Notifier struct {
	store   *store.Store
	gateway Gateway
	cfg     config.NotifyConfig
}

// NewNotifier builds a notifier.
func NewNotifier(st *store.Store, gateway Gateway, cfg config.NotifyConfig) *Notifier {
	return &Notifier{store: st, gateway: gateway, cfg: cfg}
}

// Stats summarizes one notifier pass.
type Stats struct {
	Claimed int
	Sent    int
	Failed  int
	Skipped int
}

// Run polls until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	log.Info().Dur("interval", n.cfg.PollInterval).Msg("notifier started")
	ticker := time.NewTicker(n.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := n.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("notifier pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch and delivers each draft. Attempts were
// charged at claim time; drafts past the attempt cap are never claimed
// and sit as poison until an operator resets them. A delivery success is
// only recorded when approval still holds.
func (n *Notifier) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	drafts, err := n.store.ClaimApprovedDrafts(ctx, n.cfg.ClaimLimit, n.cfg.MaxAttempts)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(drafts)

	for _, draft := range drafts {
		msg := Compose(n.cfg.Topic, draft)
		if err := n.gateway.Send(ctx, msg); err != nil {
			stats.Failed++
			metrics.Notifications.WithLabelValues("failed").Inc()
			log.Warn().Err(err).Int64("draft_id", draft.ID).
				Int("attempt", draft.Attempts).Msg("notification delivery failed")
			if rerr := n.store.RecordNotifyFailure(ctx, draft.ID, err.Error()); rerr != nil {
				log.Error().Err(rerr).Int64("draft_id", draft.ID).Msg("failure record failed")
			}
			continue
		}

		marked, err := n.store.MarkNotified(ctx, draft.ID)
		if err != nil {
			return stats, err
		}
		if !marked {
			// Approval was revoked between claim and delivery, or
			// another worker already marked it.
			stats.Skipped++
			log.Warn().Int64("draft_id", draft.ID).Msg("delivery not recorded, approval no longer holds")
			continue
		}
		stats.Sent++
		metrics.Notifications.WithLabelValues("sent").Inc()
		log.Info().Int64("draft_id", draft.ID).Str("brand", draft.Brand).Msg("notification sent")
	}

	if stats.Claimed > 0 {
		log.Info().Int("claimed", stats.Claimed).Int("sent", stats.Sent).
			Int("failed", stats.Failed).Msg("notifier pass")
	}
	return stats, nil
}
