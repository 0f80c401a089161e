// Package trends cross-validates social signals against external search
// interest. A brand with rising search behavior earns a confidence
// boost; a falling one earns a penalty. The validator degrades to a
// neutral pending result rather than blocking scoring.
package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/errs"
	"github.com/evafinance/evacore/internal/metrics"
	"github.com/evafinance/evacore/internal/models"
)

const (
	// lookbackDays is the interest window requested from the provider.
	lookbackDays = 90

	// MaxBoost and MaxPenalty bound the confidence adjustment.
	MaxBoost   = 0.15
	MaxPenalty = -0.10

	// minInterest below which the adjustment is neutral: absence of
	// search visibility is not evidence against the signal.
	minInterest = 0.20

	identityHeader = "eva-finance/1.0 (search-interest validation)"
)

// Result is one validation outcome. Status pending means the upstream
// could not be reached; callers must treat pending as no adjustment.
type Result struct {
	Brand     string                  `json:"brand"`
	Interest  float64                 `json:"interest"`
	Direction models.TrendDirection   `json:"direction"`
	Boost     float64                 `json:"boost"`
	Validates bool                    `json:"validates"`
	Status    models.ValidationStatus `json:"status"`
	Error     string                  `json:"error,omitempty"`
	FromCache bool                    `json:"-"`
}

// Validator fetches search-interest series and derives boost decisions.
// Requests are paced globally and rate-limit responses retried with a
// fresh session each attempt.
type Validator struct {
	cfg     config.TrendsConfig
	cache   Cache
	limiter *rate.Limiter
	backoff errs.Backoff

	// newClient builds the HTTP client for one attempt. Swappable in
	// tests; a fresh client per attempt drops any poisoned session
	// state the provider keyed a rate limit on.
	newClient func() *http.Client
}

// NewValidator builds a validator over the given cache.
func NewValidator(cfg config.TrendsConfig, cache Cache) *Validator {
	v := &Validator{
		cfg:     cfg,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Every(cfg.MinDelay), 1),
		backoff: errs.DefaultBackoff,
	}
	v.newClient = func() *http.Client {
		return &http.Client{Timeout: cfg.Timeout}
	}
	return v
}

// Validate returns the cached or freshly computed validation for brand.
// It never returns an error: upstream failure degrades to pending.
func (v *Validator) Validate(ctx context.Context, brand string) Result {
	if res, ok := v.cache.Get(ctx, brand); ok {
		res.FromCache = true
		metrics.TrendsLookups.WithLabelValues("cache_hit").Inc()
		return res
	}

	series, err := v.fetchSeries(ctx, brand)
	if err != nil {
		log.Warn().Err(err).Str("brand", brand).Msg("trends lookup abandoned")
		metrics.TrendsLookups.WithLabelValues("pending").Inc()
		return Result{
			Brand:     brand,
			Direction: models.TrendUnknown,
			Status:    models.ValidationPending,
			Error:     err.Error(),
		}
	}

	res := evaluate(brand, series)
	v.cache.Set(ctx, brand, res, v.cfg.CacheTTL)
	metrics.TrendsLookups.WithLabelValues("completed").Inc()
	log.Info().Str("brand", brand).
		Float64("interest", res.Interest).
		Str("direction", string(res.Direction)).
		Float64("boost", res.Boost).
		Msg("trends validation")
	return res
}

// Record persists one validation row. Pending rows are recorded too so
// operators can see abandoned lookups.
func (v *Validator) Record(ctx context.Context, res Result, insert func(context.Context, models.TrendsValidation) error) error {
	row := models.TrendsValidation{
		Brand:           res.Brand,
		CheckedAt:       time.Now().UTC(),
		SearchInterest:  res.Interest,
		TrendDirection:  res.Direction,
		ValidatesSignal: res.Validates,
		ConfidenceBoost: res.Boost,
		Status:          res.Status,
		QueryTerm:       res.Brand,
	}
	if res.Error != "" {
		msg := res.Error
		row.ErrorMessage = &msg
	}
	return insert(ctx, row)
}

type seriesResponse struct {
	Values []float64 `json:"values"`
}

// fetchSeries retrieves the daily interest series, retrying rate-limit
// responses on the backoff schedule with a fresh client each attempt.
func (v *Validator) fetchSeries(ctx context.Context, brand string) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt <= v.backoff.Retries; attempt++ {
		if attempt > 0 {
			delay := v.backoff.Delay(attempt - 1)
			log.Debug().Str("brand", brand).Dur("delay", delay).Int("attempt", attempt).
				Msg("trends retry after rate limit")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := v.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		values, err := v.fetchOnce(ctx, brand)
		if err == nil {
			return values, nil
		}
		lastErr = err
		if errs.KindOf(err) != errs.KindTransientExternal {
			return nil, err
		}
	}
	return nil, errs.Transient("trends.fetch",
		fmt.Errorf("retries exhausted for %q: %w", brand, lastErr))
}

func (v *Validator) fetchOnce(ctx context.Context, brand string) ([]float64, error) {
	u := fmt.Sprintf("%s/interest?term=%s&days=%d",
		v.cfg.BaseURL, url.QueryEscape(brand), lookbackDays)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errs.Permanent("trends.request", err)
	}
	req.Header.Set("User-Agent", identityHeader)

	resp, err := v.newClient().Do(req)
	if err != nil {
		return nil, errs.Transient("trends.request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errs.Transient("trends.request", fmt.Errorf("rate limited"))
	case resp.StatusCode >= 500:
		return nil, errs.Transient("trends.request", fmt.Errorf("upstream status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, errs.Permanent("trends.request", fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errs.Transient("trends.read", err)
	}
	var sr seriesResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, errs.Permanent("trends.decode", err)
	}
	if len(sr.Values) == 0 {
		return nil, errs.Permanent("trends.decode", fmt.Errorf("empty series for %q", brand))
	}
	return sr.Values, nil
}

// evaluate derives interest, direction, boost and the validation verdict
// from a daily series.
func evaluate(brand string, values []float64) Result {
	interest := recentInterest(values)
	direction := detectDirection(values)
	boost := confidenceBoost(interest, direction)
	return Result{
		Brand:     brand,
		Interest:  round4(interest),
		Direction: direction,
		Boost:     round4(boost),
		Validates: validates(interest, direction),
		Status:    models.ValidationCompleted,
	}
}

// recentInterest normalizes the last-30-day mean against the full-period
// mean: 0.5 means recent volume matches the period average, 1.0 means it
// doubled.
func recentInterest(values []float64) float64 {
	full := mean(values)
	if full == 0 {
		return 0
	}
	recent := full
	if len(values) >= 30 {
		recent = mean(values[len(values)-30:])
	}
	ratio := recent / full / 2.0
	if ratio > 1.0 {
		return 1.0
	}
	return ratio
}

// detectDirection compares the last 30 days against the 30 before them.
// A move beyond twenty percent either way is a trend; fewer than 60
// points is unknown.
func detectDirection(values []float64) models.TrendDirection {
	if len(values) < 60 {
		return models.TrendUnknown
	}
	last := mean(values[len(values)-30:])
	prev := mean(values[len(values)-60 : len(values)-30])
	if prev == 0 {
		return models.TrendUnknown
	}
	changePct := (last - prev) / prev * 100
	switch {
	case changePct > 20:
		return models.TrendRising
	case changePct < -20:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

// confidenceBoost maps interest and direction to a bounded adjustment.
func confidenceBoost(interest float64, direction models.TrendDirection) float64 {
	if interest < minInterest {
		return 0
	}
	switch direction {
	case models.TrendRising:
		boost := 0.15 * interest
		if boost > MaxBoost {
			return MaxBoost
		}
		return boost
	case models.TrendStable:
		boost := 0.05 * interest
		if boost > 0.05 {
			return 0.05
		}
		return boost
	case models.TrendFalling:
		penalty := -0.075 * interest
		if penalty < MaxPenalty {
			return MaxPenalty
		}
		return penalty
	default:
		return 0
	}
}

// validates is deliberately conservative: only clear support counts.
func validates(interest float64, direction models.TrendDirection) bool {
	if direction == models.TrendRising && interest >= 0.30 {
		return true
	}
	if direction == models.TrendStable && interest >= 0.50 {
		return true
	}
	return false
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round4(x float64) float64 {
	if x >= 0 {
		return float64(int64(x*10000+0.5)) / 10000
	}
	return float64(int64(x*10000-0.5)) / 10000
}
