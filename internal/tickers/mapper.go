// Package tickers resolves consumer brands to tradable tickers using a
// market-data search API, caching results in the brand_ticker_map table.
package tickers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/errs"
	"github.com/evafinance/evacore/internal/models"
	"github.com/evafinance/evacore/internal/store"
)

// Mapping is the resolution outcome for one brand.
type Mapping struct {
	Brand    string
	Ticker   string
	Company  string
	Exchange string
	Material bool
	Found    bool
	Cached   bool
}

// Mapper performs brand-to-ticker resolution.
type Mapper struct {
	store   *store.Store
	cfg     config.TickersConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewMapper builds a rate-limited mapper.
func NewMapper(st *store.Store, cfg config.TickersConfig) *Mapper {
	return &Mapper{
		store:   st,
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(cfg.MinRequest), 1),
	}
}

// EnsureMapped resolves brand to a mapping, consulting the table first
// and the search provider on a miss. A provider miss is persisted as an
// empty mapping so the brand is not looked up again on every cycle.
func (m *Mapper) EnsureMapped(ctx context.Context, brand string) (Mapping, error) {
	existing, err := m.store.GetTickerMapping(ctx, brand)
	if err != nil {
		return Mapping{}, err
	}
	if existing != nil {
		out := Mapping{Brand: brand, Material: existing.Material, Cached: true}
		if existing.Ticker != nil && *existing.Ticker != "" {
			out.Ticker = *existing.Ticker
			out.Found = true
		}
		if existing.ParentCompany != nil {
			out.Company = *existing.ParentCompany
		}
		if existing.Exchange != nil {
			out.Exchange = *existing.Exchange
		}
		return out, nil
	}

	if !m.cfg.Enabled || m.cfg.APIKey == "" {
		return Mapping{Brand: brand}, nil
	}

	mapping, err := m.search(ctx, brand)
	if err != nil {
		return Mapping{}, err
	}

	row := models.BrandTickerMap{Brand: strings.ToLower(brand), Material: mapping.Material}
	if mapping.Found {
		row.Ticker = &mapping.Ticker
		if mapping.Company != "" {
			row.ParentCompany = &mapping.Company
		}
		if mapping.Exchange != "" {
			row.Exchange = &mapping.Exchange
		}
	}
	if err := m.store.UpsertTickerMapping(ctx, row); err != nil {
		return Mapping{}, err
	}
	log.Info().Str("brand", brand).Str("ticker", mapping.Ticker).
		Bool("found", mapping.Found).Msg("brand mapping resolved")
	return mapping, nil
}

type searchHit struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchangeShortName"`
}

// search queries the provider's symbol search. The first US-exchange hit
// whose name mentions the brand wins and is marked material.
func (m *Mapper) search(ctx context.Context, brand string) (Mapping, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return Mapping{}, err
	}

	u := fmt.Sprintf("%s/search-name?query=%s&limit=5&apikey=%s",
		m.cfg.BaseURL, url.QueryEscape(brand), url.QueryEscape(m.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Mapping{}, errs.Permanent("tickers.request", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return Mapping{}, errs.Transient("tickers.request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Mapping{}, errs.Transient("tickers.request", fmt.Errorf("provider status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return Mapping{}, errs.Permanent("tickers.request", fmt.Errorf("provider status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Mapping{}, errs.Transient("tickers.read", err)
	}
	var hits []searchHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return Mapping{}, errs.Permanent("tickers.decode", err)
	}

	lowerBrand := strings.ToLower(brand)
	for _, hit := range hits {
		if hit.Symbol == "" {
			continue
		}
		if hit.Exchange != "NASDAQ" && hit.Exchange != "NYSE" && hit.Exchange != "AMEX" {
			continue
		}
		material := strings.Contains(strings.ToLower(hit.Name), lowerBrand)
		return Mapping{
			Brand:    brand,
			Ticker:   hit.Symbol,
			Company:  hit.Name,
			Exchange: hit.Exchange,
			Material: material,
			Found:    true,
		}, nil
	}
	return Mapping{Brand: brand}, nil
}

// MapUnmapped sweeps brands seen in events that have no mapping yet.
func (m *Mapper) MapUnmapped(ctx context.Context, limit int) (int, error) {
	brands, err := m.store.UnmappedBrands(ctx, limit)
	if err != nil {
		return 0, err
	}
	mapped := 0
	for _, brand := range brands {
		res, err := m.EnsureMapped(ctx, brand)
		if err != nil {
			log.Warn().Err(err).Str("brand", brand).Msg("brand mapping failed")
			continue
		}
		if res.Found {
			mapped++
		}
	}
	return mapped, nil
}
