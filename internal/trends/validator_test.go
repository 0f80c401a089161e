package trends

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/errs"
	"github.com/evafinance/evacore/internal/models"
)

// series builds 90 days at prev level followed by 30 at last level.
func series(prev, last float64) []float64 {
	out := make([]float64, 0, 90)
	for i := 0; i < 60; i++ {
		out = append(out, prev)
	}
	for i := 0; i < 30; i++ {
		out = append(out, last)
	}
	return out
}

func testValidator(t *testing.T, baseURL string) *Validator {
	t.Helper()
	v := NewValidator(config.TrendsConfig{
		Enabled:       true,
		BaseURL:       baseURL,
		CacheTTL:      time.Hour,
		MinConfidence: 0.60,
		MinDelay:      time.Millisecond,
		Timeout:       2 * time.Second,
	}, NewMemoryCache())
	v.backoff = errs.Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Retries: 2}
	return v
}

func serveSeries(t *testing.T, values []float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/interest", r.URL.Path)
		assert.Equal(t, "90", r.URL.Query().Get("days"))
		assert.NotEmpty(t, r.URL.Query().Get("term"))
		assert.Contains(t, r.Header.Get("User-Agent"), "eva-finance")
		json.NewEncoder(w).Encode(seriesResponse{Values: values})
	}))
}

func TestDetectDirection(t *testing.T) {
	assert.Equal(t, models.TrendRising, detectDirection(series(10, 13)))
	assert.Equal(t, models.TrendFalling, detectDirection(series(10, 7)))
	assert.Equal(t, models.TrendStable, detectDirection(series(10, 11)))
	assert.Equal(t, models.TrendUnknown, detectDirection(make([]float64, 59)))
	assert.Equal(t, models.TrendUnknown, detectDirection(series(0, 5)))
}

func TestRecentInterest(t *testing.T) {
	// Recent equals the period average: ratio 0.5.
	flat := series(10, 10)
	assert.InDelta(t, 0.5, recentInterest(flat), 1e-9)

	// All-zero series carries no interest.
	assert.Zero(t, recentInterest(make([]float64, 90)))

	// Recent spike caps at 1.0.
	spike := series(1, 100)
	assert.InDelta(t, 1.0, recentInterest(spike), 1e-9)
}

func TestConfidenceBoost(t *testing.T) {
	assert.Zero(t, confidenceBoost(0.19, models.TrendRising))
	assert.InDelta(t, 0.15*0.5, confidenceBoost(0.5, models.TrendRising), 1e-9)
	assert.InDelta(t, MaxBoost, confidenceBoost(1.0, models.TrendRising), 1e-9)
	assert.InDelta(t, 0.05*0.5, confidenceBoost(0.5, models.TrendStable), 1e-9)
	assert.InDelta(t, -0.075*0.5, confidenceBoost(0.5, models.TrendFalling), 1e-9)
	assert.GreaterOrEqual(t, confidenceBoost(1.0, models.TrendFalling), MaxPenalty)
	assert.Zero(t, confidenceBoost(0.8, models.TrendUnknown))
}

func TestValidatesConservatively(t *testing.T) {
	assert.True(t, validates(0.30, models.TrendRising))
	assert.False(t, validates(0.29, models.TrendRising))
	assert.True(t, validates(0.50, models.TrendStable))
	assert.False(t, validates(0.49, models.TrendStable))
	assert.False(t, validates(0.90, models.TrendFalling))
	assert.False(t, validates(0.90, models.TrendUnknown))
}

func TestValidateCompletedAndCached(t *testing.T) {
	srv := serveSeries(t, series(10, 13))
	defer srv.Close()

	v := testValidator(t, srv.URL)
	ctx := context.Background()

	res := v.Validate(ctx, "Hoka")
	require.Equal(t, models.ValidationCompleted, res.Status)
	assert.Equal(t, models.TrendRising, res.Direction)
	assert.False(t, res.FromCache)
	assert.Greater(t, res.Boost, 0.0)

	again := v.Validate(ctx, "Hoka")
	assert.True(t, again.FromCache)
	assert.Equal(t, res.Boost, again.Boost)
}

func TestValidatePendingOnRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	v := testValidator(t, srv.URL)
	res := v.Validate(context.Background(), "Nike")

	assert.Equal(t, models.ValidationPending, res.Status)
	assert.Equal(t, models.TrendUnknown, res.Direction)
	assert.Zero(t, res.Boost)
	assert.NotEmpty(t, res.Error)
	// Initial attempt plus the configured retries.
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	// Pending results are not cached; the next call hits upstream again.
	v.Validate(context.Background(), "Nike")
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
}

func TestValidateRecoversAfterOneRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(seriesResponse{Values: series(10, 11)})
	}))
	defer srv.Close()

	v := testValidator(t, srv.URL)
	res := v.Validate(context.Background(), "Teva")

	assert.Equal(t, models.ValidationCompleted, res.Status)
	assert.Equal(t, models.TrendStable, res.Direction)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestValidatePermanentFailureIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	v := testValidator(t, srv.URL)
	res := v.Validate(context.Background(), "Acme")

	assert.Equal(t, models.ValidationPending, res.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRecordBuildsValidationRow(t *testing.T) {
	v := testValidator(t, "http://unused")

	var got models.TrendsValidation
	err := v.Record(context.Background(), Result{
		Brand:     "Hoka",
		Interest:  0.42,
		Direction: models.TrendRising,
		Boost:     0.063,
		Validates: true,
		Status:    models.ValidationCompleted,
	}, func(_ context.Context, row models.TrendsValidation) error {
		got = row
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hoka", got.Brand)
	assert.Equal(t, "Hoka", got.QueryTerm)
	assert.InDelta(t, 0.42, got.SearchInterest, 1e-9)
	assert.True(t, got.ValidatesSignal)
	assert.Nil(t, got.ErrorMessage)
	assert.False(t, got.CheckedAt.IsZero())
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, ok := c.Get(ctx, "hoka")
	assert.False(t, ok)

	c.Set(ctx, "Hoka", Result{Brand: "Hoka", Boost: 0.1}, time.Hour)
	res, ok := c.Get(ctx, "  hoka ")
	require.True(t, ok)
	assert.InDelta(t, 0.1, res.Boost, 1e-9)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	c.Set(ctx, "nike", Result{Brand: "Nike"}, -time.Second)
	_, ok := c.Get(ctx, "nike")
	assert.False(t, ok)
}

func TestEvaluateRounds(t *testing.T) {
	res := evaluate("Brooks", series(10, 13))
	assert.Equal(t, res.Interest, round4(res.Interest))
	assert.Equal(t, res.Boost, round4(res.Boost))
	assert.Equal(t, models.ValidationCompleted, res.Status)
}
