package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/errs"
)

// rateLimitCooldown pauses the whole cycle after the feed rate-limits
// us, instead of hammering the remaining communities.
const rateLimitCooldown = 60 * time.Second

// Stats counts one ingestion cycle.
type Stats struct {
	Feeds     int `json:"feeds"`
	Fetched   int `json:"fetched"`
	Filtered  int `json:"filtered"`
	Posted    int `json:"posted"`
	Duplicate int `json:"duplicate"`
	Failed    int `json:"failed"`
}

// admissionReply is the admission endpoint's response shape.
type admissionReply struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	ID        int64  `json:"id"`
}

// Conductor polls configured feeds and forwards valid posts to the
// admission endpoint. One feed failing never stops the cycle.
type Conductor struct {
	cfg     config.IngestConfig
	fetcher *Fetcher
	client  *http.Client
	feeds   []config.Feed
}

// NewConductor builds a conductor over the configured feeds. When a
// feeds file is configured it wins over the env feed list.
func NewConductor(cfg config.IngestConfig) (*Conductor, error) {
	feeds := make([]config.Feed, 0, len(cfg.Feeds))
	for _, name := range cfg.Feeds {
		feeds = append(feeds, config.Feed{Name: name, Source: "reddit", Limit: cfg.PostLimit, Enabled: true})
	}
	if cfg.FeedsFile != "" {
		file, err := config.LoadFeedsFile(cfg.FeedsFile)
		if err != nil {
			return nil, err
		}
		feeds = file.EnabledFeeds()
	}
	return &Conductor{
		cfg:     cfg,
		fetcher: NewFetcher(cfg.UserAgent, cfg.FeedDelay),
		client:  &http.Client{Timeout: 30 * time.Second},
		feeds:   feeds,
	}, nil
}

// Run executes cycles until ctx is cancelled.
func (c *Conductor) Run(ctx context.Context) error {
	log.Info().Int("feeds", len(c.feeds)).Dur("interval", c.cfg.CycleInterval).
		Msg("ingestion conductor started")
	ticker := time.NewTicker(c.cfg.CycleInterval)
	defer ticker.Stop()
	for {
		if _, err := c.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("ingestion cycle failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce processes every enabled feed once and returns cycle stats.
func (c *Conductor) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	for _, feed := range c.feeds {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := c.processFeed(ctx, feed, &stats); err != nil {
			stats.Failed++
			log.Error().Err(err).Str("feed", feed.Name).Msg("feed cycle failed")
			if errs.KindOf(err) == errs.KindTransientExternal {
				log.Warn().Dur("cooldown", rateLimitCooldown).Msg("feed backpressure, cooling down")
				select {
				case <-ctx.Done():
					return stats, ctx.Err()
				case <-time.After(rateLimitCooldown):
				}
			}
			continue
		}
		stats.Feeds++
	}

	log.Info().
		Int("feeds", stats.Feeds).
		Int("fetched", stats.Fetched).
		Int("filtered", stats.Filtered).
		Int("posted", stats.Posted).
		Int("duplicate", stats.Duplicate).
		Int("failed", stats.Failed).
		Msg("ingestion cycle")
	return stats, nil
}

func (c *Conductor) processFeed(ctx context.Context, feed config.Feed, stats *Stats) error {
	limit := feed.Limit
	if limit <= 0 {
		limit = c.cfg.PostLimit
	}
	posts, err := c.fetcher.FetchNew(ctx, feed.Name, limit)
	if err != nil {
		return err
	}
	stats.Fetched += len(posts)

	valid := posts[:0]
	for _, post := range posts {
		if IsValidTextPost(post) {
			valid = append(valid, post)
		}
	}
	stats.Filtered += len(posts) - len(valid)

	for _, post := range valid {
		reply, err := c.admit(ctx, Normalize(post))
		if err != nil {
			stats.Failed++
			log.Warn().Err(err).Str("platform_id", post.ID).Msg("admission failed")
			continue
		}
		if reply.Duplicate {
			stats.Duplicate++
		} else {
			stats.Posted++
		}
	}
	return nil
}

// admit posts one envelope to the admission endpoint.
func (c *Conductor) admit(ctx context.Context, env Envelope) (admissionReply, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return admissionReply{}, errs.Permanent("ingest.admit", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AdmissionURL, bytes.NewReader(body))
	if err != nil {
		return admissionReply{}, errs.Permanent("ingest.admit", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return admissionReply{}, errs.Transient("ingest.admit", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return admissionReply{}, errs.Transient("ingest.admit", err)
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 500:
		return admissionReply{}, errs.Transient("ingest.admit", fmt.Errorf("admission status %d", resp.StatusCode))
	default:
		return admissionReply{}, errs.Permanent("ingest.admit", fmt.Errorf("admission status %d: %s", resp.StatusCode, raw))
	}

	var reply admissionReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return admissionReply{}, errs.Permanent("ingest.admit", err)
	}
	return reply, nil
}
