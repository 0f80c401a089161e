// Package ingest polls community feeds and forwards normalized posts to
// the admission endpoint. The conductor holds no database access; the
// admission endpoint owns deduplication.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/evafinance/evacore/internal/errs"
)

// FeedPost is one raw post as returned by the feed listing.
type FeedPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	Author     string  `json:"author"`
	Subreddit  string  `json:"subreddit"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data FeedPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Fetcher reads the newest posts of a community from the public JSON
// listing, pacing requests globally.
type Fetcher struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewFetcher builds a fetcher pacing one request per delay.
func NewFetcher(userAgent string, delay time.Duration) *Fetcher {
	return &Fetcher{
		baseURL:   "https://www.reddit.com",
		userAgent: userAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
	}
}

// FetchNew returns up to limit newest posts of the community.
func (f *Fetcher) FetchNew(ctx context.Context, community string, limit int) ([]FeedPost, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/r/%s/new.json?limit=%d", f.baseURL, community, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errs.Permanent("ingest.fetch", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errs.Transient("ingest.fetch", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errs.Transient("ingest.fetch", fmt.Errorf("rate limited on r/%s", community))
	case resp.StatusCode >= 500:
		return nil, errs.Transient("ingest.fetch", fmt.Errorf("feed status %d for r/%s", resp.StatusCode, community))
	case resp.StatusCode != http.StatusOK:
		return nil, errs.Permanent("ingest.fetch", fmt.Errorf("feed status %d for r/%s", resp.StatusCode, community))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errs.Transient("ingest.read", err)
	}
	var listing listingResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, errs.Permanent("ingest.decode", err)
	}

	posts := make([]FeedPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}
