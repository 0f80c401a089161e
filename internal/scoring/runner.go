package scoring

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/metrics"
	"github.com/evafinance/evacore/internal/models"
	"github.com/evafinance/evacore/internal/store"
	"github.com/evafinance/evacore/internal/trends"
)

// Runner executes one scoring pass over recent candidates: factors,
// gates, bands, external validation for HIGH signals, persistence, and
// event emission.
type Runner struct {
	store     *store.Store
	engine    *Engine
	validator *trends.Validator
	scoreCfg  config.ScoringConfig
	trendsCfg config.TrendsConfig
}

// NewRunner builds a scoring runner. validator may be nil when external
// validation is disabled.
func NewRunner(st *store.Store, engine *Engine, validator *trends.Validator,
	scoreCfg config.ScoringConfig, trendsCfg config.TrendsConfig) *Runner {
	return &Runner{
		store:     st,
		engine:    engine,
		validator: validator,
		scoreCfg:  scoreCfg,
		trendsCfg: trendsCfg,
	}
}

// Stats summarizes one scoring pass.
type Stats struct {
	Candidates int
	Scored     int
	High       int
	Warm       int
	Validated  int
}

// Run scores every candidate in the lookback window ending at day.
func (r *Runner) Run(ctx context.Context, day time.Time) (Stats, error) {
	started := time.Now()
	defer func() {
		metrics.ScoreDuration.Observe(time.Since(started).Seconds())
	}()

	since := day.AddDate(0, 0, -r.scoreCfg.LookbackDays)
	candidates, err := r.store.CandidateSignals(ctx, since)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Candidates: len(candidates)}
	for _, c := range candidates {
		if c.Brand == "" || c.Tag == "" {
			continue
		}
		if err := r.scoreOne(ctx, c, &stats); err != nil {
			return stats, err
		}
		stats.Scored++
	}

	log.Info().
		Int("candidates", stats.Candidates).
		Int("scored", stats.Scored).
		Int("high", stats.High).
		Int("warm", stats.Warm).
		Int("validated", stats.Validated).
		Msg("scoring pass")
	return stats, nil
}

func (r *Runner) scoreOne(ctx context.Context, c models.CandidateSignal, stats *Stats) error {
	factors := r.engine.Compute(c)
	outcome := r.engine.Score(factors)

	details := models.JSONMap{
		"inputs": map[string]any{
			"delta_pct":          c.DeltaPct,
			"msg_count":          c.MsgCount,
			"source_count":       c.SourceCount,
			"platform_count":     c.PlatformCount,
			"action_intent_rate": c.ActionIntentRate,
			"eval_intent_rate":   c.EvalIntentRate,
			"meme_risk":          c.MemeRisk,
		},
		"scores": map[string]any{
			"acceleration": factors.Acceleration,
			"intent":       factors.Intent,
			"spread":       factors.Spread,
			"baseline":     factors.Baseline,
			"suppression":  factors.Suppression,
		},
	}

	// External validation only for HIGH signals above the floor; a
	// pending result leaves score and band untouched.
	if r.validator != nil && r.trendsCfg.Enabled &&
		outcome.Band == models.BandHigh && outcome.Final >= r.trendsCfg.MinConfidence {
		res := r.validator.Validate(ctx, c.Brand)
		// The attempt is always traceable from the persisted score, even
		// when a pending result leaves score and band untouched.
		details["validation"] = string(res.Status)
		if !res.FromCache {
			if err := r.validator.Record(ctx, res, r.store.InsertTrendsValidation); err != nil {
				log.Error().Err(err).Str("brand", c.Brand).Msg("trends validation record failed")
			}
		}
		if res.Status == models.ValidationCompleted {
			base := outcome.Final
			outcome.Final = round4(clamp(base + res.Boost))
			outcome.Band = r.engine.Band(outcome.Final)
			if outcome.Band == models.BandSuppressed {
				outcome.GateReason = "TRENDS_PENALTY_BELOW_THRESHOLD"
			}
			details["trends"] = map[string]any{
				"validates_signal":    res.Validates,
				"search_interest":     res.Interest,
				"trend_direction":     string(res.Direction),
				"confidence_boost":    res.Boost,
				"base_confidence":     base,
				"adjusted_confidence": outcome.Final,
			}
			stats.Validated++
		}
	}

	var gateReason *string
	if outcome.GateReason != "" {
		gr := outcome.GateReason
		gateReason = &gr
	}

	prev, found, err := r.store.PreviousBand(ctx, c.Day, c.Tag, c.Brand, r.scoreCfg.Version)
	if err != nil {
		return err
	}
	if found && prev != outcome.Band {
		log.Info().
			Str("tag", c.Tag).
			Str("brand", c.Brand).
			Str("from", string(prev)).
			Str("to", string(outcome.Band)).
			Msg("band transition")
	}

	if err := r.store.UpsertScore(ctx, models.ConfidenceScore{
		Day:            c.Day,
		Tag:            c.Tag,
		Brand:          c.Brand,
		Acceleration:   factors.Acceleration,
		Intent:         factors.Intent,
		Spread:         factors.Spread,
		Baseline:       factors.Baseline,
		Suppression:    factors.Suppression,
		Final:          outcome.Final,
		Band:           outcome.Band,
		GateFailReason: gateReason,
		ScoringVersion: r.scoreCfg.Version,
		Details:        details,
	}); err != nil {
		return err
	}
	metrics.ScoresComputed.WithLabelValues(string(outcome.Band)).Inc()

	return r.emit(ctx, c, factors, outcome, stats)
}

// emit leaves a WATCHLIST_WARM breadcrumb for warming candidates below
// HIGH and a RECOMMENDATION_ELIGIBLE event for HIGH ones. Both dedupe
// per (kind, tag, brand, day).
func (r *Runner) emit(ctx context.Context, c models.CandidateSignal, factors Factors, outcome Outcome, stats *Stats) error {
	tag, brand := c.Tag, c.Brand

	if warm, reason := isWatchlistWarm(factors); warm && outcome.Band != models.BandHigh {
		payload := models.JSONMap{
			"reason":           reason,
			"band":             string(outcome.Band),
			"final_confidence": outcome.Final,
			"scores": map[string]any{
				"acceleration": factors.Acceleration,
				"intent":       factors.Intent,
				"spread":       factors.Spread,
			},
			"scoring_version": r.scoreCfg.Version,
		}
		if outcome.GateReason != "" {
			payload["gate_failed_reason"] = outcome.GateReason
		}
		emitted, err := r.store.InsertEvent(ctx, models.SignalEvent{
			Kind:     models.EventWatchlistWarm,
			Tag:      &tag,
			Brand:    &brand,
			Day:      c.Day,
			Severity: models.SeverityWarning,
			Payload:  payload,
		})
		if err != nil {
			return err
		}
		if emitted {
			metrics.EventsEmitted.WithLabelValues(string(models.EventWatchlistWarm)).Inc()
			stats.Warm++
		}
	}

	if outcome.Band == models.BandHigh {
		emitted, err := r.store.InsertEvent(ctx, models.SignalEvent{
			Kind:     models.EventRecommendationEligible,
			Tag:      &tag,
			Brand:    &brand,
			Day:      c.Day,
			Severity: models.SeverityCritical,
			Payload: models.JSONMap{
				"final_confidence": outcome.Final,
				"scoring_version":  r.scoreCfg.Version,
			},
		})
		if err != nil {
			return err
		}
		if emitted {
			metrics.EventsEmitted.WithLabelValues(string(models.EventRecommendationEligible)).Inc()
		}
		stats.High++

		if err := r.store.UpsertBehaviorState(ctx, models.BehaviorState{
			Tag:        c.Tag,
			State:      models.StateElevated,
			Confidence: outcome.Final,
			FirstSeen:  c.Day,
			LastSeen:   c.Day,
		}); err != nil {
			return err
		}
	}
	return nil
}
