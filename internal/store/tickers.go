package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/evafinance/evacore/internal/models"
)

// GetTickerMapping looks up a brand's ticker mapping, case-insensitively.
// Returns nil when the brand is unmapped.
func (s *Store) GetTickerMapping(ctx context.Context, brand string) (*models.BrandTickerMap, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var m models.BrandTickerMap
	err := s.db.GetContext(ctx, &m, `
		SELECT brand, ticker, parent_company, material, exchange, updated_at
		FROM brand_ticker_map
		WHERE lower(brand) = lower($1)`,
		brand)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("store.get_ticker_mapping", err)
	}
	return &m, nil
}

// UpsertTickerMapping writes or refreshes a brand mapping. The brand key
// is stored lowercased so lookups stay case-insensitive.
func (s *Store) UpsertTickerMapping(ctx context.Context, m models.BrandTickerMap) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO brand_ticker_map (brand, ticker, parent_company, material, exchange, updated_at)
		VALUES (lower($1), $2, $3, $4, $5, now())
		ON CONFLICT (brand) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			parent_company = EXCLUDED.parent_company,
			material = EXCLUDED.material,
			exchange = EXCLUDED.exchange,
			updated_at = now()`,
		m.Brand, m.Ticker, m.ParentCompany, m.Material, m.Exchange)
	if err != nil {
		return classify("store.upsert_ticker_mapping", err)
	}
	return nil
}

// UnmappedBrands lists brands seen in signal events that have no ticker
// mapping yet, most recent first.
func (s *Store) UnmappedBrands(ctx context.Context, limit int) ([]string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var brands []string
	err := s.db.SelectContext(ctx, &brands, `
		SELECT DISTINCT se.brand
		FROM signal_events se
		LEFT JOIN brand_ticker_map btm ON btm.brand = lower(se.brand)
		WHERE se.brand IS NOT NULL AND se.brand <> ''
		  AND btm.brand IS NULL
		ORDER BY se.brand
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, classify("store.unmapped_brands", err)
	}
	return brands, nil
}
