package scoring

import (
	"fmt"
	"math"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/models"
)

// Factor weights. Intent carries the most: committed language is the
// strongest predictor of follow-through.
const (
	weightIntent      = 0.30
	weightAccel       = 0.20
	weightSpread      = 0.20
	weightBaseline    = 0.15
	weightSuppression = 0.15
)

// Factors holds the five computed scores for one candidate.
type Factors struct {
	Acceleration float64
	Intent       float64
	Spread       float64
	Baseline     float64
	Suppression  float64
}

// Outcome is one banded score.
type Outcome struct {
	Band       models.Band
	Final      float64
	GateReason string
}

// Engine applies gates, weights and bands with configured thresholds.
type Engine struct {
	cfg config.ScoringConfig
}

// NewEngine builds the scoring engine from config.
func NewEngine(cfg config.ScoringConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Compute derives the five factors from one candidate's aggregates.
func (e *Engine) Compute(c models.CandidateSignal) Factors {
	return Factors{
		Acceleration: accelerationScore(c.DeltaPct),
		Intent:       intentScore(c.ActionIntentRate),
		Spread:       spreadScore(c.SourceCount, c.PlatformCount),
		Baseline:     baselineScore(c.MsgCount),
		Suppression:  suppressionScore(c.MemeRisk),
	}
}

// Score gates and bands one factor set. Gates check strictly-below, so a
// factor exactly at its threshold passes. A failed gate suppresses with
// final 0; intent is checked first, then suppression, then spread.
func (e *Engine) Score(f Factors) Outcome {
	if f.Intent < e.cfg.GateIntent {
		return Outcome{
			Band:       models.BandSuppressed,
			GateReason: fmt.Sprintf("GATE_INTENT_LT_%.2f", e.cfg.GateIntent),
		}
	}
	if f.Suppression < e.cfg.GateSuppression {
		return Outcome{
			Band:       models.BandSuppressed,
			GateReason: fmt.Sprintf("GATE_SUPPRESSION_LT_%.2f", e.cfg.GateSuppression),
		}
	}
	if f.Spread < e.cfg.GateSpread {
		return Outcome{
			Band:       models.BandSuppressed,
			GateReason: fmt.Sprintf("GATE_SPREAD_LT_%.2f", e.cfg.GateSpread),
		}
	}

	final := f.Intent*weightIntent +
		f.Acceleration*weightAccel +
		f.Spread*weightSpread +
		f.Baseline*weightBaseline +
		f.Suppression*weightSuppression
	final = round4(final)

	return Outcome{Band: e.Band(final), Final: final}
}

// Band classifies a final confidence with at-or-above semantics.
func (e *Engine) Band(final float64) models.Band {
	switch {
	case final >= e.cfg.BandHigh:
		return models.BandHigh
	case final >= e.cfg.BandWatchlist:
		return models.BandWatchlist
	default:
		return models.BandSuppressed
	}
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
