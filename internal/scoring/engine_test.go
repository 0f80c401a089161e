package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/models"
)

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		GateIntent:      0.50,
		GateSuppression: 0.40,
		GateSpread:      0.25,
		BandHigh:        0.60,
		BandWatchlist:   0.50,
		LookbackDays:    7,
		Version:         "v1",
	}
}

func TestAccelerationScore(t *testing.T) {
	tests := []struct {
		name     string
		deltaPct float64
		want     float64
	}{
		{"negative floors", -3.5, 0.20},
		{"zero floors", 0, 0.20},
		{"one point midway", 1.0, 0.575},
		{"two points saturates", 2.0, 0.95},
		{"beyond saturation stays capped", 10.0, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, accelerationScore(tt.deltaPct), 1e-9)
		})
	}
}

func TestIntentScore(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want float64
	}{
		{"zero floors", 0, 0.20},
		{"ten percent below knee", 0.10, 0.425},
		{"knee at twenty percent", 0.20, 0.65},
		{"above knee flattens", 0.35, 0.80},
		{"fifty percent saturates", 0.50, 0.95},
		{"full rate stays capped", 1.0, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, intentScore(tt.rate), 1e-9)
		})
	}
}

func TestIntentScoreContinuousAtKnee(t *testing.T) {
	below := intentScore(0.20 - 1e-9)
	above := intentScore(0.20 + 1e-9)
	assert.InDelta(t, below, above, 1e-6)
}

func TestSpreadScore(t *testing.T) {
	assert.InDelta(t, 0.0, spreadScore(1, 1), 1e-9)
	assert.InDelta(t, 1.0/3.0, spreadScore(2, 1), 1e-9)
	assert.InDelta(t, 2.0/3.0, spreadScore(3, 1), 1e-9)
	assert.InDelta(t, 1.0, spreadScore(4, 1), 1e-9)
	assert.InDelta(t, 1.0, spreadScore(7, 1), 1e-9)

	// Platform diversity can carry the score on its own.
	assert.InDelta(t, 2.0/3.0, spreadScore(1, 3), 1e-9)
	// The better of the two axes wins.
	assert.InDelta(t, 1.0, spreadScore(4, 2), 1e-9)
}

func TestSuppressionScore(t *testing.T) {
	assert.InDelta(t, 1.0, suppressionScore(0), 1e-9)
	assert.InDelta(t, 0.3, suppressionScore(0.7), 1e-9)
	assert.InDelta(t, 0.0, suppressionScore(1.0), 1e-9)
	assert.InDelta(t, 0.0, suppressionScore(2.5), 1e-9)
	assert.InDelta(t, 1.0, suppressionScore(-1), 1e-9)
}

func TestBaselineScore(t *testing.T) {
	assert.InDelta(t, 0.20, baselineScore(0), 1e-9)
	assert.InDelta(t, 0.20, baselineScore(1), 1e-9)
	assert.InDelta(t, 0.20+(5.0/20.0)*0.75, baselineScore(5), 1e-9)
	assert.InDelta(t, 0.95, baselineScore(20), 1e-9)
	assert.InDelta(t, 0.95, baselineScore(500), 1e-9)
}

func TestFactorsStayBounded(t *testing.T) {
	for _, f := range []float64{
		accelerationScore(-100), accelerationScore(100),
		intentScore(-1), intentScore(2),
		suppressionScore(-5), suppressionScore(5),
		baselineScore(-3), baselineScore(1000000),
		spreadScore(0, 0), spreadScore(100, 100),
	} {
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func TestScoreGateOrder(t *testing.T) {
	e := NewEngine(testScoringConfig())

	// All three gates fail; intent is reported because it is checked first.
	out := e.Score(Factors{Intent: 0.1, Suppression: 0.1, Spread: 0.1})
	assert.Equal(t, models.BandSuppressed, out.Band)
	assert.Equal(t, "GATE_INTENT_LT_0.50", out.GateReason)
	assert.Zero(t, out.Final)

	out = e.Score(Factors{Intent: 0.9, Suppression: 0.1, Spread: 0.1})
	assert.Equal(t, "GATE_SUPPRESSION_LT_0.40", out.GateReason)

	out = e.Score(Factors{Intent: 0.9, Suppression: 0.9, Spread: 0.1})
	assert.Equal(t, "GATE_SPREAD_LT_0.25", out.GateReason)
}

func TestScoreGateEqualPasses(t *testing.T) {
	e := NewEngine(testScoringConfig())

	out := e.Score(Factors{
		Intent:       0.50,
		Suppression:  0.40,
		Spread:       0.25,
		Acceleration: 0.20,
		Baseline:     0.20,
	})
	assert.Empty(t, out.GateReason)
	assert.Greater(t, out.Final, 0.0)
}

func TestScoreWeightedSum(t *testing.T) {
	e := NewEngine(testScoringConfig())

	f := Factors{
		Intent:       0.95,
		Acceleration: 0.95,
		Spread:       1.0,
		Baseline:     0.95,
		Suppression:  1.0,
	}
	out := e.Score(f)
	require.Empty(t, out.GateReason)
	// 0.95*0.30 + 0.95*0.20 + 1.0*0.20 + 0.95*0.15 + 1.0*0.15 = 0.9675
	assert.InDelta(t, 0.9675, out.Final, 1e-9)
	assert.Equal(t, models.BandHigh, out.Band)
}

func TestScoreRoundsToFourDecimals(t *testing.T) {
	e := NewEngine(testScoringConfig())

	out := e.Score(Factors{
		Intent:       0.65,
		Acceleration: 0.575,
		Spread:       1.0 / 3.0,
		Baseline:     0.3875,
		Suppression:  0.85,
	})
	require.Empty(t, out.GateReason)
	assert.Equal(t, out.Final, round4(out.Final))
}

func TestBandBoundariesAreInclusive(t *testing.T) {
	e := NewEngine(testScoringConfig())

	assert.Equal(t, models.BandHigh, e.Band(0.60))
	assert.Equal(t, models.BandWatchlist, e.Band(0.5999))
	assert.Equal(t, models.BandWatchlist, e.Band(0.50))
	assert.Equal(t, models.BandSuppressed, e.Band(0.4999))
}

func TestComputeMapsCandidateAggregates(t *testing.T) {
	e := NewEngine(testScoringConfig())

	f := e.Compute(models.CandidateSignal{
		DeltaPct:         2.5,
		ActionIntentRate: 0.10,
		SourceCount:      3,
		PlatformCount:    1,
		MsgCount:         20,
		MemeRisk:         0.30,
	})
	assert.InDelta(t, 0.95, f.Acceleration, 1e-9)
	assert.InDelta(t, 0.425, f.Intent, 1e-9)
	assert.InDelta(t, 2.0/3.0, f.Spread, 1e-9)
	assert.InDelta(t, 0.95, f.Baseline, 1e-9)
	assert.InDelta(t, 0.70, f.Suppression, 1e-9)

	// Intent at ten percent fails the gate even with everything else strong.
	out := e.Score(f)
	assert.Equal(t, models.BandSuppressed, out.Band)
	assert.Equal(t, "GATE_INTENT_LT_0.50", out.GateReason)
}

func TestIsWatchlistWarm(t *testing.T) {
	tests := []struct {
		name   string
		f      Factors
		warm   bool
		reason string
	}{
		{"spread first", Factors{Spread: 0.60, Acceleration: 0.90, Intent: 0.50}, true, "WARM_SPREAD_GE_0.60"},
		{"accel when spread cold", Factors{Spread: 0.30, Acceleration: 0.85}, true, "WARM_ACCEL_GE_0.85"},
		{"intent last", Factors{Spread: 0.30, Acceleration: 0.50, Intent: 0.45}, true, "WARM_INTENT_GE_0.45"},
		{"all cold", Factors{Spread: 0.59, Acceleration: 0.84, Intent: 0.44}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warm, reason := isWatchlistWarm(tt.f)
			assert.Equal(t, tt.warm, warm)
			assert.Equal(t, tt.reason, reason)
		})
	}
}
