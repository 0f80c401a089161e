package paper

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/metrics"
	"github.com/evafinance/evacore/internal/models"
	"github.com/evafinance/evacore/internal/store"
	"github.com/evafinance/evacore/internal/tickers"
)

// Loop runs the paper-position lifecycle: entry for approved eligible
// signals and daily mark-to-market with rule-based exits.
type Loop struct {
	store  *store.Store
	mapper *tickers.Mapper
	prices PriceProvider
	cfg    config.PaperConfig
}

// NewLoop builds the paper loop.
func NewLoop(st *store.Store, mapper *tickers.Mapper, prices PriceProvider, cfg config.PaperConfig) *Loop {
	return &Loop{store: st, mapper: mapper, prices: prices, cfg: cfg}
}

// EnterStats summarizes one entry pass.
type EnterStats struct {
	Eligible  int
	Opened    int
	NoTicker  int
	PriceFail int
}

// Enter opens positions for approved eligible events that have none.
// Only materially mapped brands get positions; a brand whose revenue the
// ticker does not represent is skipped.
func (l *Loop) Enter(ctx context.Context, limit int) (EnterStats, error) {
	var stats EnterStats
	events, err := l.store.EligibleEventsWithoutPosition(ctx, limit)
	if err != nil {
		return stats, err
	}
	stats.Eligible = len(events)

	for _, ev := range events {
		if ev.Brand == nil || *ev.Brand == "" || ev.Tag == nil || *ev.Tag == "" {
			continue
		}
		brand, tag := *ev.Brand, *ev.Tag

		mapping, err := l.mapper.EnsureMapped(ctx, brand)
		if err != nil {
			log.Warn().Err(err).Str("brand", brand).Msg("ticker mapping failed")
			continue
		}
		if !mapping.Found || !mapping.Material {
			stats.NoTicker++
			log.Debug().Str("brand", brand).Bool("found", mapping.Found).
				Bool("material", mapping.Material).Msg("no material ticker, skipping entry")
			continue
		}

		price, err := l.prices.Price(ctx, mapping.Ticker)
		if err != nil {
			stats.PriceFail++
			log.Warn().Err(err).Str("ticker", mapping.Ticker).Msg("entry price fetch failed")
			continue
		}

		opened, err := l.store.InsertPosition(ctx, models.PaperPosition{
			SignalEventID: ev.ID,
			Brand:         brand,
			Tag:           tag,
			Ticker:        mapping.Ticker,
			EntryDate:     time.Now().UTC().Truncate(24 * time.Hour),
			EntryPrice:    price,
			PositionSize:  l.cfg.PositionSize,
		})
		if err != nil {
			return stats, err
		}
		if opened {
			stats.Opened++
			metrics.OpenPositions.Inc()
			log.Info().Str("brand", brand).Str("ticker", mapping.Ticker).
				Float64("entry", price).Msg("paper position opened")
		}
	}
	return stats, nil
}

// UpdateStats summarizes one mark-to-market pass.
type UpdateStats struct {
	Open      int
	Updated   int
	Closed    int
	PriceFail int
}

// Update re-marks every open position and applies exit rules. Exactly
// one exit reason is recorded per close; time exit is checked first so a
// stale position closes on age even when price rules also fire.
func (l *Loop) Update(ctx context.Context, now time.Time) (UpdateStats, error) {
	var stats UpdateStats
	positions, err := l.store.OpenPositions(ctx)
	if err != nil {
		return stats, err
	}
	stats.Open = len(positions)
	metrics.OpenPositions.Set(float64(len(positions)))

	for _, pos := range positions {
		price, err := l.prices.Price(ctx, pos.Ticker)
		if err != nil {
			stats.PriceFail++
			log.Warn().Err(err).Str("ticker", pos.Ticker).Msg("mark price fetch failed")
			continue
		}

		returnPct := (price - pos.EntryPrice) / pos.EntryPrice
		returnDollar := round2(pos.PositionSize * returnPct)
		daysHeld := int(now.Sub(pos.EntryDate).Hours() / 24)

		if reason, exit := l.exitReason(returnPct, daysHeld); exit {
			closed, err := l.store.ClosePosition(ctx, pos.ID,
				now.Truncate(24*time.Hour), price, reason, round4(returnPct), returnDollar, daysHeld)
			if err != nil {
				return stats, err
			}
			if closed {
				stats.Closed++
				metrics.OpenPositions.Dec()
				log.Info().Str("ticker", pos.Ticker).Str("reason", string(reason)).
					Float64("return_pct", returnPct).Float64("return_dollar", returnDollar).
					Int("days_held", daysHeld).Msg("paper position closed")
			}
			continue
		}

		if err := l.store.UpdatePositionPrice(ctx, pos.ID, price, round4(returnPct), returnDollar, daysHeld); err != nil {
			return stats, err
		}
		stats.Updated++
	}

	log.Info().Int("open", stats.Open).Int("updated", stats.Updated).
		Int("closed", stats.Closed).Msg("paper update pass")
	return stats, nil
}

// exitReason applies the exit rules in priority order: age, profit
// target, stop loss.
func (l *Loop) exitReason(returnPct float64, daysHeld int) (models.ExitReason, bool) {
	if daysHeld >= l.cfg.MaxHoldDays {
		return models.ExitTimeExit, true
	}
	if returnPct >= l.cfg.ProfitTarget {
		return models.ExitProfitTarget, true
	}
	if returnPct <= l.cfg.StopLoss {
		return models.ExitStopLoss, true
	}
	return "", false
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func round4(x float64) float64 { return math.Round(x*10000) / 10000 }
