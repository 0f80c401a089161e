package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(PostsIngested)
	PostsIngested.Inc()
	PostsIngested.Inc()
	assert.InDelta(t, before+2, testutil.ToFloat64(PostsIngested), 1e-9)
}

func TestLabelledCountersPartition(t *testing.T) {
	llm := Extractions.WithLabelValues("llm")
	fallback := Extractions.WithLabelValues("fallback")

	llmBefore := testutil.ToFloat64(llm)
	fbBefore := testutil.ToFloat64(fallback)

	llm.Inc()
	assert.InDelta(t, llmBefore+1, testutil.ToFloat64(llm), 1e-9)
	assert.InDelta(t, fbBefore, testutil.ToFloat64(fallback), 1e-9)
}

func TestGaugeMoves(t *testing.T) {
	OpenPositions.Set(3)
	assert.InDelta(t, 3, testutil.ToFloat64(OpenPositions), 1e-9)
	OpenPositions.Dec()
	assert.InDelta(t, 2, testutil.ToFloat64(OpenPositions), 1e-9)
}

func TestHistogramObserves(t *testing.T) {
	var m dto.Metric
	ScoreDuration.Observe(0.25)
	require.NoError(t, ScoreDuration.Write(&m))
	require.NotNil(t, m.Histogram)
	assert.GreaterOrEqual(t, m.Histogram.GetSampleCount(), uint64(1))
}
