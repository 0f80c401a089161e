// Package notify delivers approved recommendation drafts as push
// notifications. Claims are transactional with attempts charged up
// front, so a crashed delivery still counts toward the poison cap.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/evafinance/evacore/internal/config"
	"github.com/evafinance/evacore/internal/errs"
	"github.com/evafinance/evacore/internal/models"
)

// Message is one push payload in the ntfy publish shape.
type Message struct {
	Topic    string            `json:"topic"`
	Title    string            `json:"title"`
	Body     string            `json:"message"`
	Priority int               `json:"priority"`
	Tags     []string          `json:"tags,omitempty"`
	Extras   map[string]string `json:"extras,omitempty"`
}

// Gateway is the delivery capability.
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPGateway posts messages to an ntfy-compatible server behind a
// circuit breaker.
type HTTPGateway struct {
	cfg     config.NotifyConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPGateway builds the gateway from config.
func NewHTTPGateway(cfg config.NotifyConfig) *HTTPGateway {
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "notify-gateway",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("circuit breaker state change")
			},
		}),
	}
}

// Send implements Gateway.
func (g *HTTPGateway) Send(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		msg.Topic = g.cfg.Topic
	}
	_, err := g.breaker.Execute(func() (any, error) {
		return nil, g.post(ctx, msg)
	})
	return err
}

func (g *HTTPGateway) post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errs.Permanent("notify.encode", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return errs.Permanent("notify.request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return errs.Transient("notify.send", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return errs.Transient("notify.send", fmt.Errorf("gateway status %d", resp.StatusCode))
	default:
		return errs.Permanent("notify.send", fmt.Errorf("gateway status %d", resp.StatusCode))
	}
}

// Compose renders the push message for one approved draft.
func Compose(topic string, d models.RecommendationDraft) Message {
	return Message{
		Topic: topic,
		Title: fmt.Sprintf("EVA: %s recommendation ready", d.Brand),
		Body: fmt.Sprintf("%s / %s scored %.4f (%s). Draft: %s",
			d.Brand, d.Tag, d.FinalConfidence, d.Band, d.MarkdownPath),
		Priority: 4,
		Tags:     []string{"chart_with_upwards_trend"},
		Extras: map[string]string{
			"draft_id":      fmt.Sprintf("%d", d.ID),
			"bundle_sha256": d.BundleSHA256,
		},
	}
}
