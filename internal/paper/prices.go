// Package paper simulates fixed-size positions for approved signals and
// closes them on profit, stop, or time rules.
package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/evafinance/evacore/internal/errs"
)

// PriceProvider returns the latest close for a ticker.
type PriceProvider interface {
	Price(ctx context.Context, ticker string) (float64, error)
}

// HTTPPriceProvider reads the latest close from a chart endpoint.
type HTTPPriceProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPPriceProvider builds a paced price provider.
func NewHTTPPriceProvider(baseURL string) *HTTPPriceProvider {
	return &HTTPPriceProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

// Price implements PriceProvider.
func (p *HTTPPriceProvider) Price(ctx context.Context, ticker string) (float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	u := fmt.Sprintf("%s/%s?interval=1d&range=1d", p.baseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, errs.Permanent("paper.price_request", err)
	}
	req.Header.Set("User-Agent", "eva-finance/1.0 (paper position marks)")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, errs.Transient("paper.price_request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return 0, errs.Transient("paper.price_request", fmt.Errorf("provider status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return 0, errs.Permanent("paper.price_request", fmt.Errorf("provider status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, errs.Transient("paper.price_read", err)
	}
	var cr chartResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return 0, errs.Permanent("paper.price_decode", err)
	}
	if len(cr.Chart.Result) == 0 {
		return 0, errs.Permanent("paper.price_decode", fmt.Errorf("no quote for %q", ticker))
	}
	price := cr.Chart.Result[0].Meta.RegularMarketPrice
	if price <= 0 {
		return 0, errs.Permanent("paper.price_decode", fmt.Errorf("non-positive quote for %q", ticker))
	}
	return price, nil
}
